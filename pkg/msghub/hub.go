// Package msghub relays message activity to monitor listeners, keeping a short history for
// playback to listeners that join later.
package msghub

import (
	"container/ring"
	"context"

	"github.com/inbucket/courier/pkg/extension"
	"github.com/inbucket/courier/pkg/extension/event"
)

// Length of msghub operation queue
const opChanLen = 100

// Kinds of message activity relayed by the hub.
const (
	KindDelivered = "delivered"
	KindScheduled = "scheduled"
	KindSent      = "sent"
)

// Activity is a message event as seen by monitor listeners.
type Activity struct {
	Kind    string
	Message event.MessageMetadata
}

// Listener receives the contents of the history buffer, followed by new activity.
type Listener interface {
	Receive(a Activity) error
	Delete(mailbox string, id string) error
}

// Hub relays message activity on to its listeners.
type Hub struct {
	// history buffer, points next Activity to write.  Proceeding non-nil entry is oldest.
	history   *ring.Ring
	listeners map[Listener]struct{} // listeners interested in new activity
	opChan    chan func(h *Hub)     // operations queued for this actor
}

// New constructs a new Hub which will cache historyLen events in memory for playback to future
// listeners.  Start must be called to process the queue.
func New(historyLen int, extHost *extension.Host) *Hub {
	hub := &Hub{
		history:   ring.New(historyLen),
		listeners: make(map[Listener]struct{}),
		opChan:    make(chan func(h *Hub), opChanLen),
	}

	events := extHost.Events
	events.AfterMessageSent.AddListener("msghub", func(msg event.MessageMetadata) {
		hub.Dispatch(Activity{Kind: KindSent, Message: msg})
	})
	events.AfterMessageScheduled.AddListener("msghub", func(msg event.MessageMetadata) {
		hub.Dispatch(Activity{Kind: KindScheduled, Message: msg})
	})
	events.AfterMessageDelivered.AddListener("msghub", func(msg event.MessageMetadata) {
		hub.Dispatch(Activity{Kind: KindDelivered, Message: msg})
	})
	events.AfterMessageDeleted.AddListener("msghub", func(msg event.MessageMetadata) {
		hub.Delete(msg.Mailbox, msg.ID)
	})

	return hub
}

// Start Hub processing loop.
func (hub *Hub) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-hub.opChan:
			op(hub)
		}
	}
}

// Dispatch queues activity for broadcast by the hub.  It will be placed into the history buffer
// and then relayed to all registered listeners.
func (hub *Hub) Dispatch(a Activity) {
	hub.opChan <- func(h *Hub) {
		if h.history != nil {
			// Add to history buffer
			h.history.Value = a
			h.history = h.history.Next()

			// Deliver to all listeners, removing listeners if they return an error
			for l := range h.listeners {
				if err := l.Receive(a); err != nil {
					delete(h.listeners, l)
				}
			}
		}
	}
}

// Delete removes a message from the history buffer and notifies listeners.
func (hub *Hub) Delete(mailbox string, id string) {
	hub.opChan <- func(h *Hub) {
		if h.history == nil {
			return
		}
		// Rebuild the ring without the deleted message, keeping its size.
		size := h.history.Len()
		kept := ring.New(size)
		h.history.Do(func(v any) {
			if v == nil {
				return
			}
			a := v.(Activity)
			if a.Message.Mailbox == mailbox && a.Message.ID == id {
				return
			}
			kept.Value = a
			kept = kept.Next()
		})
		h.history = kept

		for l := range h.listeners {
			if err := l.Delete(mailbox, id); err != nil {
				delete(h.listeners, l)
			}
		}
	}
}

// AddListener registers a listener to receive broadcasted activity.
func (hub *Hub) AddListener(l Listener) {
	hub.opChan <- func(h *Hub) {
		// Playback log
		h.history.Do(func(v any) {
			if v != nil {
				_ = l.Receive(v.(Activity))
			}
		})

		// Add to listeners
		h.listeners[l] = struct{}{}
	}
}

// RemoveListener deletes a listener registration, it will cease to receive activity.
func (hub *Hub) RemoveListener(l Listener) {
	hub.opChan <- func(h *Hub) {
		delete(h.listeners, l)
	}
}

// Sync blocks until the msghub has processed its queue up to this point, useful
// for unit tests.
func (hub *Hub) Sync() {
	done := make(chan struct{})
	hub.opChan <- func(h *Hub) {
		close(done)
	}
	<-done
}
