package realtime

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DarthNec/Fonana-sub001/pkg/auth"
	"github.com/DarthNec/Fonana-sub001/pkg/channel"
	"github.com/DarthNec/Fonana-sub001/pkg/event"
	"github.com/DarthNec/Fonana-sub001/pkg/logger"
)

const maxFrameSize = 16 * 1024

// Handler upgrades websocket connections, runs the authentication
// handshake, and drives each connection's read loop.
type Handler struct {
	verifier   *auth.Verifier
	registry   *Registry
	limiter    *auth.DialLimiter
	upgrader   websocket.Upgrader
	heartbeat  time.Duration
	sendBuffer int
}

// HandlerOptions configures the websocket handler.
type HandlerOptions struct {
	Heartbeat  time.Duration
	SendBuffer int
	// CheckOrigin overrides the upgrader's origin policy; nil accepts
	// same-origin per gorilla's default.
	CheckOrigin func(r *http.Request) bool
}

func NewHandler(verifier *auth.Verifier, registry *Registry, limiter *auth.DialLimiter, opt HandlerOptions) *Handler {
	hb := opt.Heartbeat
	if hb <= 0 {
		hb = 30 * time.Second
	}
	return &Handler{
		verifier: verifier,
		registry: registry,
		limiter:  limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opt.CheckOrigin,
		},
		heartbeat:  hb,
		sendBuffer: opt.SendBuffer,
	}
}

// readTimeout must outlast a full liveness cycle plus response time.
func (h *Handler) readTimeout() time.Duration {
	return h.heartbeat*missedPingLimit + h.heartbeat
}

// ServeHTTP handles one connection for its whole life.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger.LogRequest(r)
	ip := clientIP(r)
	if h.limiter != nil && !h.limiter.Allow(ip) {
		logger.Warn("dial_rate_limited", "remote", ip)
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error.
		logger.Debug("upgrade_failed", "remote", ip, "error", err)
		return
	}

	// The handshake uses only the initial credential; there is no
	// deferred auth step. Refusal closes with 1008 immediately.
	identity, err := h.verifier.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		logger.Warn("auth_refused", "remote", ip, "error", err)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		_ = ws.Close()
		return
	}

	c := NewConn(ws, identity, h.sendBuffer)
	h.registry.Register(c)
	go c.writePump()

	c.sendFrame(event.OutboundFrame{
		Type: event.FrameConnected,
		Data: event.ConnectedData{UserID: identity.UserID, Message: "connected to realtime server"},
	})

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(h.readTimeout()))
	ws.SetPongHandler(func(string) error {
		MarkPong(c)
		return ws.SetReadDeadline(time.Now().Add(h.readTimeout()))
	})

	// The request context dies with the handler; the hijacked socket
	// outlives it, so frame dispatch runs on its own context.
	h.readLoop(context.Background(), c, ws)
	h.registry.Deregister(c)
}

// readLoop parses and dispatches inbound frames until the socket dies.
// Malformed frames get an error frame and the connection stays open.
func (h *Handler) readLoop(ctx context.Context, c *Conn, ws *websocket.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("read_failed", "conn", c.ID, "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(h.readTimeout()))

		var frame event.InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendFrame(event.OutboundFrame{
				Type: event.FrameError,
				Data: event.ErrorData{Message: "malformed frame"},
			})
			continue
		}
		h.dispatch(ctx, c, frame)
	}
}

func (h *Handler) dispatch(ctx context.Context, c *Conn, frame event.InboundFrame) {
	switch frame.Type {
	case event.FramePing:
		MarkPong(c)
		c.sendFrame(event.OutboundFrame{Type: event.FramePong})
	case event.FrameSubscribe:
		ch, err := channel.Parse(frame.Channel)
		if err != nil {
			c.sendFrame(event.OutboundFrame{
				Type: event.FrameError,
				Data: event.ErrorData{Message: err.Error()},
			})
			return
		}
		h.registry.Subscribe(ctx, c, ch)
	case event.FrameUnsubscribe:
		ch, err := channel.Parse(frame.Channel)
		if err != nil {
			c.sendFrame(event.OutboundFrame{
				Type: event.FrameError,
				Data: event.ErrorData{Message: err.Error()},
			})
			return
		}
		h.registry.Unsubscribe(c, ch)
	default:
		c.sendFrame(event.OutboundFrame{
			Type: event.FrameError,
			Data: event.ErrorData{Message: "unknown message type"},
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
