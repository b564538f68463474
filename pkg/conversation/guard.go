// Package conversation manages conversation state: per-id mutual exclusion,
// turn history with rolling summarization, and monotonic workflow
// versioning.
package conversation

import "sync"

// Guard serializes units of work per conversation id. Two concurrent
// requests against the same conversation must not interleave their
// read-validate-write of the current workflow version; requests against
// different ids run in parallel.
type Guard struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the exclusive section for the conversation id and returns
// the unlock function. Mutexes are kept for the lifetime of the process;
// conversation ids are bounded by actual usage, not by a hot loop.
func (g *Guard) Lock(conversationID string) func() {
	g.mu.Lock()

	lock, ok := g.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[conversationID] = lock
	}

	g.mu.Unlock()

	lock.Lock()

	return lock.Unlock
}
