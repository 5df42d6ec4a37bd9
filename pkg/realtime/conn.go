// Package realtime holds the server side of the live-update subsystem:
// connections, the registry, the liveness monitor, and the websocket
// handler.
package realtime

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/DarthNec/Fonana-sub001/pkg/auth"
	"github.com/DarthNec/Fonana-sub001/pkg/event"
	"github.com/DarthNec/Fonana-sub001/pkg/logger"
	"github.com/DarthNec/Fonana-sub001/pkg/telemetry"
)

const writeTimeout = 10 * time.Second

// Conn is one live client connection: the transport handle, its
// identity, and its outbound frame buffer. Channel membership lives in
// the Registry, not here, so teardown can purge both sides atomically.
type Conn struct {
	ID       string
	Identity auth.Identity

	ws   *websocket.Conn // nil for test connections
	send chan []byte
	done chan struct{}

	closeOnce    sync.Once
	deregistered atomic.Bool

	// awaitingPong/missedPings belong to the liveness monitor.
	awaitingPong atomic.Bool
	missedPings  atomic.Int32
}

// NewConn wraps an upgraded websocket connection.
func NewConn(ws *websocket.Conn, identity auth.Identity, sendBuffer int) *Conn {
	c := newConn(identity, sendBuffer)
	c.ws = ws
	return c
}

func newConn(identity auth.Identity, sendBuffer int) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &Conn{
		ID:       uuid.NewString(),
		Identity: identity,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

// enqueue queues one outbound frame without blocking. A full buffer
// drops the frame: live events are best-effort and a slow consumer must
// not stall fanout.
func (c *Conn) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		telemetry.FramesDropped.Inc()
		logger.Warn("frame_dropped_slow_consumer", "conn", c.ID, "user", c.Identity.UserID)
		return false
	}
}

// sendFrame marshals and enqueues a protocol frame.
func (c *Conn) sendFrame(f event.OutboundFrame) bool {
	payload, err := json.Marshal(f)
	if err != nil {
		logger.Error("frame_marshal_failed", "type", f.Type, "error", err)
		return false
	}
	return c.enqueue(payload)
}

// sendEvent marshals and enqueues a domain event.
func (c *Conn) sendEvent(ev event.Event) bool {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error("event_marshal_failed", "kind", ev.Kind, "error", err)
		return false
	}
	return c.enqueue(payload)
}

// shutdown stops the write pump and closes the transport. Safe to call
// from both the read loop and the liveness monitor.
func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// closeWithCode sends a close frame before shutting the transport down.
func (c *Conn) closeWithCode(code int, reason string) {
	if c.ws != nil {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	}
	c.shutdown()
}

// ping sends a protocol-level ping for the liveness cycle.
func (c *Conn) ping() error {
	if c.ws == nil {
		return nil
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// writePump drains the send buffer onto the wire. One writer per
// connection; gorilla permits concurrent WriteControl.
func (c *Conn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debug("write_failed", "conn", c.ID, "error", err)
				c.shutdown()
				return
			}
		}
	}
}
