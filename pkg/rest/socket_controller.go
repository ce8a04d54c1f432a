package rest

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/inbucket/courier/pkg/msghub"
	"github.com/inbucket/courier/pkg/rest/model"
	"github.com/inbucket/courier/pkg/server/web"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Monitor event variants.
const (
	variantDeleted   = "message-deleted"
	variantDelivered = "message-delivered"
	variantScheduled = "message-scheduled"
	variantSent      = "message-sent"
)

var errListenerClosed = errors.New("listener closed")

// options for gorilla connection upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// msgListener handles activity from the msghub.
type msgListener struct {
	hub     *msghub.Hub                     // Global message hub
	c       chan *model.JSONMonitorEventV1 // Queue of events from Receive()
	done    chan struct{}                  // Closed when the listener is closed
	once    sync.Once
	mailbox string // Name of mailbox to monitor, "" == all mailboxes
}

// newMsgListener creates a listener and registers it.  Optional mailbox parameter will restrict
// events sent to WebSocket to that mailbox only.
func newMsgListener(hub *msghub.Hub, mailbox string) *msgListener {
	ml := &msgListener{
		hub:     hub,
		c:       make(chan *model.JSONMonitorEventV1, 100),
		done:    make(chan struct{}),
		mailbox: mailbox,
	}
	hub.AddListener(ml)
	return ml
}

// Receive handles incoming activity.
func (ml *msgListener) Receive(a msghub.Activity) error {
	if ml.mailbox != "" && ml.mailbox != a.Message.Mailbox {
		// Did not match mailbox name
		return nil
	}
	variant := variantSent
	switch a.Kind {
	case msghub.KindDelivered:
		variant = variantDelivered
	case msghub.KindScheduled:
		variant = variantScheduled
	}
	return ml.queue(&model.JSONMonitorEventV1{
		Variant: variant,
		Header:  headerFromMetadata(&a.Message),
	})
}

// Delete handles a deleted message.
func (ml *msgListener) Delete(mailbox string, id string) error {
	if ml.mailbox != "" && ml.mailbox != mailbox {
		return nil
	}
	return ml.queue(&model.JSONMonitorEventV1{
		Variant: variantDeleted,
		Header:  &model.JSONMessageHeaderV1{Mailbox: mailbox, MessageID: id},
	})
}

func (ml *msgListener) queue(ev *model.JSONMonitorEventV1) error {
	select {
	case <-ml.done:
		return errListenerClosed
	default:
	}
	select {
	case ml.c <- ev:
		return nil
	case <-ml.done:
		return errListenerClosed
	}
}

// WSReader makes sure the websocket client is still connected, discards any messages from client
func (ml *msgListener) WSReader(conn *websocket.Conn) {
	slog := log.With().Str("module", "rest").Str("proto", "WebSocket").
		Str("remote", conn.RemoteAddr().String()).Logger()
	defer ml.Close()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		slog.Debug().Msg("Got pong")
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				// Unexpected close code
				slog.Warn().Err(err).Msg("Socket error")
			} else {
				slog.Debug().Msg("Closing socket")
			}
			break
		}
	}
}

// WSWriter relays queued events to the websocket client, and pings it periodically.
func (ml *msgListener) WSWriter(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ml.Close()
	}()

	// Handle events from hub until msgListener is closed
	for {
		select {
		case ev := <-ml.c:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if conn.WriteJSON(ev) != nil {
				// Write failed
				return
			}
		case <-ml.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			// Send ping
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if conn.WriteMessage(websocket.PingMessage, []byte{}) != nil {
				// Write error
				return
			}
			log.Debug().Str("module", "rest").Str("proto", "WebSocket").
				Str("remote", conn.RemoteAddr().String()).Msg("Sent ping")
		}
	}
}

// Close removes the listener registration.
func (ml *msgListener) Close() {
	ml.once.Do(func() {
		close(ml.done)
		ml.hub.RemoveListener(ml)
	})
}

// MonitorAllMessagesV1 is a web handler which upgrades the connection to a websocket and notifies
// the client of all message activity.
func MonitorAllMessagesV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	return monitor(w, req, ctx, "")
}

// MonitorMailboxMessagesV1 is a web handler which upgrades the connection to a websocket and
// notifies the client of activity in a particular mailbox.
func MonitorMailboxMessagesV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	name, err := mailboxName(ctx)
	if err != nil {
		return err
	}
	return monitor(w, req, ctx, name)
}

func monitor(w http.ResponseWriter, req *http.Request, ctx *web.Context, mailbox string) error {
	// Upgrade to Websocket.
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Debug().Str("module", "rest").Err(err).Msg("WebSocket upgrade failed")
		return nil
	}
	web.ExpWebSocketConnectsCurrent.Add(1)
	defer func() {
		_ = conn.Close()
		web.ExpWebSocketConnectsCurrent.Add(-1)
	}()
	log.Debug().Str("module", "rest").Str("proto", "WebSocket").Str("mailbox", mailbox).
		Str("remote", conn.RemoteAddr().String()).Msg("Upgraded to WebSocket")

	// Create, register listener; then interact with conn.
	ml := newMsgListener(ctx.MsgHub, mailbox)
	go ml.WSWriter(conn)
	ml.WSReader(conn)
	return nil
}
