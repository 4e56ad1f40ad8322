package controller

import (
	"sync"

	"github.com/customeros/mailsync/interfaces"
)

// listenerRegistry holds the persistent listener set with copy-on-write
// semantics: iteration works on an immutable snapshot, so listeners may
// register and unregister freely from any goroutine, including during
// fan-out.
type listenerRegistry struct {
	mu        sync.Mutex
	listeners []interfaces.MailListener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{}
}

func (r *listenerRegistry) Add(listener interfaces.MailListener) {
	if listener == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.listeners {
		if existing == listener {
			return
		}
	}
	next := make([]interfaces.MailListener, len(r.listeners), len(r.listeners)+1)
	copy(next, r.listeners)
	r.listeners = append(next, listener)
}

func (r *listenerRegistry) Remove(listener interfaces.MailListener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]interfaces.MailListener, 0, len(r.listeners))
	for _, existing := range r.listeners {
		if existing != listener {
			next = append(next, existing)
		}
	}
	r.listeners = next
}

// Snapshot returns the current immutable listener slice.
func (r *listenerRegistry) Snapshot() []interfaces.MailListener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listeners
}

// Union returns the persistent set plus one optional ad hoc listener
// without mutating the persistent set.
func (r *listenerRegistry) Union(extra interfaces.MailListener) []interfaces.MailListener {
	snapshot := r.Snapshot()
	if extra == nil {
		return snapshot
	}
	for _, existing := range snapshot {
		if existing == extra {
			return snapshot
		}
	}
	union := make([]interfaces.MailListener, len(snapshot), len(snapshot)+1)
	copy(union, snapshot)
	return append(union, extra)
}
