package memory

import (
	"sync"

	"github.com/lovekaizen/agentsea/core"
)

// InMemoryStore is a volatile Store implementation keeping conversation logs
// in a process-local map. It is safe for concurrent access and best suited
// for tests or ephemeral demo servers. Returned slices are defensive copies
// to prevent external mutation of internal state.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]core.Message
	maxMessages   int
}

// InMemoryOptions configure retention behavior.
type InMemoryOptions struct {
	// MaxMessages bounds each conversation log; 0 means unbounded. When the
	// bound is exceeded the oldest messages are dropped, except that system
	// messages are retained and an assistant tool-call message is never
	// separated from its correlated tool results.
	MaxMessages int
}

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{
		conversations: make(map[string][]core.Message),
		maxMessages:   opts.MaxMessages,
	}
}

// Append adds messages to a conversation, creating it lazily. The whole batch
// becomes visible atomically.
func (s *InMemoryStore) Append(conversationID string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.conversations[conversationID], msgs...)
	if s.maxMessages > 0 && len(log) > s.maxMessages {
		log = trim(log, s.maxMessages)
	}
	s.conversations[conversationID] = log
	return nil
}

// History returns a copy of the conversation's message log in append order.
// An unknown conversation yields an empty history, not an error.
func (s *InMemoryStore) History(conversationID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.conversations[conversationID]
	out := make([]core.Message, len(log))
	copy(out, log)
	return out, nil
}

// Clear removes a conversation's log entirely.
func (s *InMemoryStore) Clear(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
	return nil
}

// Len reports the number of stored messages for a conversation.
func (s *InMemoryStore) Len(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations[conversationID])
}

// trim drops the oldest droppable messages until the log fits max. System
// messages survive, and dropping an assistant message that requested tool
// calls also drops the tool results correlated to it so providers never see
// an orphaned result.
func trim(log []core.Message, max int) []core.Message {
	var system []core.Message
	var rest []core.Message
	for _, msg := range log {
		if msg.Role == core.RoleSystem {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}

	budget := max - len(system)
	if budget < 0 {
		budget = 0
	}
	for len(rest) > budget {
		dropped := rest[0]
		rest = rest[1:]
		if dropped.Role == core.RoleAssistant && len(dropped.ToolCalls) > 0 {
			ids := make(map[string]bool, len(dropped.ToolCalls))
			for _, tc := range dropped.ToolCalls {
				ids[tc.ID] = true
			}
			for len(rest) > 0 && rest[0].Role == core.RoleTool && ids[rest[0].ToolCallID] {
				rest = rest[1:]
			}
		}
	}

	return append(system, rest...)
}
