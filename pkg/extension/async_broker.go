package extension

import (
	"errors"
	"time"
)

// AsyncEventBroker maintains a list of listeners interested in a specific type of event.  Each
// listener is called on its own goroutine, and no result is returned.
type AsyncEventBroker[E any] struct {
	listeners listenerSet[func(E)]
}

// Emit sends the provided event to each registered listener in parallel.
func (eb *AsyncEventBroker[E]) Emit(event *E) {
	for _, l := range eb.listeners.snapshot() {
		go l(*event)
	}
}

// AddListener registers the named listener, replacing one with a duplicate name if present.
func (eb *AsyncEventBroker[E]) AddListener(name string, listener func(E)) {
	eb.listeners.add(name, listener)
}

// RemoveListener unregisters the named listener.
func (eb *AsyncEventBroker[E]) RemoveListener(name string) {
	eb.listeners.remove(name)
}

// Listeners returns the names of the registered listeners.
func (eb *AsyncEventBroker[E]) Listeners() []string {
	return eb.listeners.listenerNames()
}

// AsyncTestListener registers a listener and returns a func that waits for the next event, or
// times out with an error.  The listener unregisters itself after capacity events.
func (eb *AsyncEventBroker[E]) AsyncTestListener(name string, capacity int) func() (*E, error) {
	events := make(chan E, capacity)
	eb.AddListener(name, func(ev E) {
		events <- ev
	})

	count := 0
	return func() (*E, error) {
		count++
		if count >= capacity {
			defer eb.RemoveListener(name)
		}

		select {
		case ev := <-events:
			return &ev, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("timeout waiting for event")
		}
	}
}
