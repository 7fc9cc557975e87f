// Package rowwait implements the per-(table_id, row_id) condition that
// SSPConsistencyController.Get blocks on after a miss, and that the
// background worker signals once it has applied a reply for that row.
//
// It exists as its own package so the consistency controller (the waiter)
// and the background worker (the notifier) can share the primitive without
// importing each other.
package rowwait

import "sync"

type key struct {
	tableID int32
	rowID   int32
}

// Registry tracks outstanding waiters per (table_id, row_id).
type Registry struct {
	mu      sync.Mutex
	waiters map[key][]chan struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{waiters: make(map[key][]chan struct{})}
}

// Wait registers a new waiter for (tableID, rowID) and returns a channel
// that Notify closes. The caller should register before enqueueing its row
// request, so it cannot miss a Notify that arrives concurrently.
func (r *Registry) Wait(tableID, rowID int32) <-chan struct{} {
	ch := make(chan struct{})
	k := key{tableID, rowID}

	r.mu.Lock()
	r.waiters[k] = append(r.waiters[k], ch)
	r.mu.Unlock()
	return ch
}

// Notify wakes every waiter currently registered for (tableID, rowID).
func (r *Registry) Notify(tableID, rowID int32) {
	k := key{tableID, rowID}

	r.mu.Lock()
	chans := r.waiters[k]
	delete(r.waiters, k)
	r.mu.Unlock()

	for _, ch := range chans {
		close(ch)
	}
}
