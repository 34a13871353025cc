// Package memory persists per-conversation message logs. The Store contract
// is append-only: history is never rewritten, only extended (and bounded by a
// retention policy in the in-memory implementation).
package memory

import "github.com/lovekaizen/agentsea/core"

// Store persists the ordered message log of each conversation.
//
// Append must be atomic per call: either every message in the batch becomes
// visible or none does, so a cancelled execution never leaves a torn history.
type Store interface {
	Append(conversationID string, msgs ...core.Message) error
	History(conversationID string) ([]core.Message, error)
	Clear(conversationID string) error
}
