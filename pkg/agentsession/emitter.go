package agentsession

import (
	"sync"
)

// Emitter is an in-process Source. Emit dispatches on the caller's goroutine,
// to handlers in registration order.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventKind][]Handler

	// dispatch serializes Emit calls so a session's events are handled one at
	// a time even when several goroutines feed the emitter.
	dispatch sync.Mutex
}

// NewEmitter creates an Emitter with no handlers.
func NewEmitter() *Emitter {
	return &Emitter{
		handlers: make(map[EventKind][]Handler),
	}
}

// On registers handler for kind.
func (e *Emitter) On(kind EventKind, handler Handler) {
	if handler == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[kind] = append(e.handlers[kind], handler)
}

// Emit delivers ev to every handler registered for its kind and returns the
// number of handlers invoked.
func (e *Emitter) Emit(ev Event) int {
	if ev == nil {
		return 0
	}

	e.mu.RLock()
	hs := make([]Handler, len(e.handlers[ev.Kind()]))
	copy(hs, e.handlers[ev.Kind()])
	e.mu.RUnlock()

	e.dispatch.Lock()
	defer e.dispatch.Unlock()

	for _, h := range hs {
		h(ev)
	}
	return len(hs)
}
