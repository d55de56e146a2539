// Package event provides a small generic publish/subscribe primitive used
// throughout upnpkit in place of a string-keyed multiplex: every component
// that emits lifecycle or wire events declares a typed payload and exposes
// an Emitter[T] subscriber surface.
package event

import "sync"

// Emitter fans a typed payload out to a set of subscriber callbacks. The
// zero value is ready to use. Safe for concurrent Subscribe/Emit/Unsubscribe.
type Emitter[T any] struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(T)
}

// Subscription identifies a registered listener so it can be removed later.
type Subscription int

// Subscribe registers fn to be called with every value passed to Emit.
// It returns a Subscription that can be passed to Unsubscribe.
func (e *Emitter[T]) Subscribe(fn func(T)) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[int]func(T))
	}

	id := e.nextID
	e.nextID++
	e.listeners[id] = fn

	return Subscription(id)
}

// Unsubscribe removes a previously registered listener. It is a no-op if
// the subscription was already removed.
func (e *Emitter[T]) Unsubscribe(sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.listeners, int(sub))
}

// Emit calls every currently registered listener with v. Listeners are
// snapshotted before calling so a listener may safely Subscribe or
// Unsubscribe from within its own callback.
func (e *Emitter[T]) Emit(v T) {
	e.mu.Lock()
	fns := make([]func(T), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len reports the number of currently registered listeners.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}
