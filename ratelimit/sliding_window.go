package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow counts events per key in a trailing fixed-duration window to
// decide admission. Allow never blocks; it is a decision function for
// reject-fast enforcement at a request boundary.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
	now    func() time.Time
}

// NewSlidingWindow creates a limiter admitting at most max hits per key
// within the trailing window.
func NewSlidingWindow(window time.Duration, max int) *SlidingWindow {
	return &SlidingWindow{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records a hit for key and reports whether the key stays within its
// budget including this hit. Hits older than the window are pruned on each
// call.
func (w *SlidingWindow) Allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	kept := w.pruneLocked(key, now)
	if len(kept) >= w.max {
		return false
	}

	w.hits[key] = append(kept, now)
	return true
}

// Count reports the live hit count for key without recording a new hit.
func (w *SlidingWindow) Count(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pruneLocked(key, w.now()))
}

// pruneLocked drops hits older than the window and removes the key entirely
// once nothing is left, so keys seen once do not accumulate forever.
func (w *SlidingWindow) pruneLocked(key string, now time.Time) []time.Time {
	cutoff := now.Add(-w.window)
	kept := w.hits[key][:0]
	for _, t := range w.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(w.hits, key)
		return nil
	}
	w.hits[key] = kept
	return kept
}

// Reset forgets all recorded hits for key.
func (w *SlidingWindow) Reset(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.hits, key)
}
