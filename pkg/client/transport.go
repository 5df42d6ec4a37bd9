package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DarthNec/Fonana-sub001/pkg/channel"
	"github.com/DarthNec/Fonana-sub001/pkg/event"
	"github.com/DarthNec/Fonana-sub001/pkg/logger"
)

// State is the transport connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateGaveUp is terminal: the reconnect budget is exhausted and
	// nothing happens until Connect is called again explicitly.
	StateGaveUp
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateGaveUp:
		return "gave_up"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// TokenProvider returns a short-lived credential for one connection
// attempt.
type TokenProvider func(ctx context.Context) (string, error)

// TransportOptions configures the client transport.
type TransportOptions struct {
	// URL is the websocket endpoint, e.g. "wss://host/ws". The token is
	// appended as a query parameter per connection attempt.
	URL   string
	Token TokenProvider
	// Manager receives every incoming domain event.
	Manager *Manager

	BaseDelay   time.Duration // first reconnect delay, default 1s
	MaxDelay    time.Duration // backoff cap, default 30s
	MaxAttempts int           // reconnect budget, default 10
	// PingInterval sends application-level ping frames while connected;
	// zero disables them.
	PingInterval time.Duration

	Dialer *websocket.Dialer

	// Optional hooks.
	OnStateChange func(State)
	OnConnected   func(event.ConnectedData)
	OnError       func(event.ErrorData)
	OnUnread      func(event.UnreadData)
}

func (o *TransportOptions) defaults() {
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
}

// Transport is the client-side socket wrapper: reconnect with backoff,
// outbound queueing while disconnected, automatic re-subscription on
// reconnect, and unread-count tracking.
type Transport struct {
	opt TransportOptions

	mu       sync.Mutex
	state    State
	attempts int
	ws       *websocket.Conn
	wmu      sync.Mutex // serializes socket writes
	// subs is the desired subscription set, keyed by channel key; it
	// survives disconnects and is replayed on reconnect.
	subs map[string]channel.Channel
	// pending holds outbound frames queued while not connected.
	pending   [][]byte
	reconnect *time.Timer
	// gen invalidates callbacks from a previous connection's read loop.
	gen    int
	unread int
	// connDone cancels connection-scoped timers (ping) on disconnect.
	connDone chan struct{}
}

// NewTransport builds a transport; call Connect to establish the
// connection.
func NewTransport(opt TransportOptions) (*Transport, error) {
	if opt.URL == "" {
		return nil, fmt.Errorf("transport URL required")
	}
	if opt.Token == nil {
		return nil, fmt.Errorf("token provider required")
	}
	opt.defaults()
	return &Transport{
		opt:   opt,
		state: StateDisconnected,
		subs:  make(map[string]channel.Channel),
	}, nil
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// UnreadCount returns the tracked unread-notification count.
func (t *Transport) UnreadCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unread
}

// Connect starts (or restarts) the connection. It resets the reconnect
// budget, including after give-up or Close.
func (t *Transport) Connect(ctx context.Context) {
	t.mu.Lock()
	if t.state == StateConnecting || t.state == StateConnected {
		t.mu.Unlock()
		return
	}
	t.attempts = 0
	t.stopReconnectLocked()
	// Leaving the closed/gave-up terminal states requires this explicit
	// Connect call.
	t.setStateLocked(StateDisconnected)
	t.mu.Unlock()
	t.dial(ctx)
}

// Close tears the connection down and cancels every pending timer. The
// transport stays closed until Connect is called again.
func (t *Transport) Close() {
	t.mu.Lock()
	t.setStateLocked(StateClosed)
	t.stopReconnectLocked()
	t.gen++
	ws := t.ws
	t.ws = nil
	if t.connDone != nil {
		close(t.connDone)
		t.connDone = nil
	}
	t.pending = nil
	t.mu.Unlock()
	if ws != nil {
		_ = ws.Close()
	}
}

// Subscribe records the channel in the desired set and requests the
// subscription. While disconnected the request is queued and will also
// be replayed by the reconnect logic (server-side subscribe is
// idempotent, so the duplicate is harmless).
func (t *Transport) Subscribe(ch channel.Channel) {
	t.mu.Lock()
	t.subs[ch.Key()] = ch
	t.mu.Unlock()
	t.sendFrame(event.InboundFrame{Type: event.FrameSubscribe, Channel: marshalChannel(ch)})
}

// Unsubscribe removes the channel from the desired set.
func (t *Transport) Unsubscribe(ch channel.Channel) {
	t.mu.Lock()
	delete(t.subs, ch.Key())
	t.mu.Unlock()
	t.sendFrame(event.InboundFrame{Type: event.FrameUnsubscribe, Channel: marshalChannel(ch)})
}

// Ping sends an application-level ping.
func (t *Transport) Ping() {
	t.sendFrame(event.InboundFrame{Type: event.FramePing})
}

func marshalChannel(ch channel.Channel) json.RawMessage {
	b, _ := json.Marshal(ch)
	return b
}

func (t *Transport) setStateLocked(s State) {
	if t.state == s {
		return
	}
	t.state = s
	if t.opt.OnStateChange != nil {
		go t.opt.OnStateChange(s)
	}
}

func (t *Transport) stopReconnectLocked() {
	if t.reconnect != nil {
		t.reconnect.Stop()
		t.reconnect = nil
	}
}

// sendFrame writes immediately when connected, otherwise queues in
// order for the flush on reconnect. Frames are never dropped here.
func (t *Transport) sendFrame(f event.InboundFrame) {
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	t.mu.Lock()
	ws := t.ws
	connected := t.state == StateConnected && ws != nil
	if !connected {
		t.pending = append(t.pending, payload)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.write(ws, payload)
}

func (t *Transport) write(ws *websocket.Conn, payload []byte) {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		logger.Debug("client_write_failed", "error", err)
	}
}

func (t *Transport) dial(ctx context.Context) {
	t.mu.Lock()
	if t.state == StateConnected || t.state == StateClosed {
		t.mu.Unlock()
		return
	}
	t.setStateLocked(StateConnecting)
	t.mu.Unlock()

	token, err := t.opt.Token(ctx)
	if err != nil {
		logger.Warn("token_fetch_failed", "error", err)
		t.onDisconnect(ctx, -1)
		return
	}
	target, err := appendToken(t.opt.URL, token)
	if err != nil {
		logger.Error("bad_transport_url", "url", t.opt.URL, "error", err)
		t.onDisconnect(ctx, -1)
		return
	}

	ws, _, err := t.opt.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		logger.Debug("dial_failed", "error", err)
		t.onDisconnect(ctx, -1)
		return
	}

	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		_ = ws.Close()
		return
	}
	t.ws = ws
	t.gen++
	gen := t.gen
	t.setStateLocked(StateConnected)
	t.attempts = 0
	flush := t.pending
	t.pending = nil
	resubs := make([]channel.Channel, 0, len(t.subs))
	for _, ch := range t.subs {
		resubs = append(resubs, ch)
	}
	done := make(chan struct{})
	t.connDone = done
	t.mu.Unlock()

	// Flush messages queued while disconnected, in order, then replay
	// the active subscriptions.
	for _, payload := range flush {
		t.write(ws, payload)
	}
	for _, ch := range resubs {
		f := event.InboundFrame{Type: event.FrameSubscribe, Channel: marshalChannel(ch)}
		if payload, err := json.Marshal(f); err == nil {
			t.write(ws, payload)
		}
	}

	if t.opt.PingInterval > 0 {
		go t.pingLoop(done, t.opt.PingInterval)
	}
	go t.readLoop(ctx, ws, gen)
}

func (t *Transport) pingLoop(done chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.Ping()
		}
	}
}

func (t *Transport) readLoop(ctx context.Context, ws *websocket.Conn, gen int) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			t.onDisconnect(ctx, gen)
			return
		}
		t.handleMessage(raw)
	}
}

// handleMessage routes one inbound wire message: domain events go to the
// event manager, protocol frames to their hooks.
func (t *Transport) handleMessage(raw []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.Type == "" {
		logger.Debug("client_bad_frame", "error", err)
		return
	}

	if event.Known(event.Kind(head.Type)) {
		var ev event.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.Debug("client_bad_event", "error", err)
			return
		}
		t.trackUnread(ev)
		if t.opt.Manager != nil {
			t.opt.Manager.Emit(ev)
		}
		return
	}

	switch head.Type {
	case event.FrameConnected:
		var f struct {
			Data event.ConnectedData `json:"data"`
		}
		if err := json.Unmarshal(raw, &f); err == nil && t.opt.OnConnected != nil {
			t.opt.OnConnected(f.Data)
		}
	case event.FrameUnreadNotifications:
		var f struct {
			Data event.UnreadData `json:"data"`
		}
		if err := json.Unmarshal(raw, &f); err != nil {
			return
		}
		t.mu.Lock()
		t.unread = f.Data.Count
		t.mu.Unlock()
		if t.opt.OnUnread != nil {
			t.opt.OnUnread(f.Data)
		}
	case event.FrameError:
		var f struct {
			Data event.ErrorData `json:"data"`
		}
		if err := json.Unmarshal(raw, &f); err == nil && t.opt.OnError != nil {
			t.opt.OnError(f.Data)
		}
	case event.FramePong, event.FrameSubscribed, event.FrameUnsubscribed:
		// Acknowledgments need no action: the desired-subscription set
		// already reflects intent.
	default:
		logger.Debug("client_unknown_frame", "type", head.Type)
	}
}

// trackUnread keeps the unread counter in sync with notification events.
func (t *Transport) trackUnread(ev event.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch ev.Kind {
	case event.Notification:
		t.unread++
	case event.NotificationRead:
		if t.unread > 0 {
			t.unread--
		}
	case event.NotificationsCleared:
		t.unread = 0
	}
}

// onDisconnect schedules a reconnect with exponential backoff. gen -1
// marks a failed dial (no live connection to invalidate).
func (t *Transport) onDisconnect(ctx context.Context, gen int) {
	t.mu.Lock()
	if t.state == StateClosed || (gen >= 0 && gen != t.gen) {
		t.mu.Unlock()
		return
	}
	if t.connDone != nil {
		close(t.connDone)
		t.connDone = nil
	}
	t.ws = nil
	if t.attempts >= t.opt.MaxAttempts {
		t.setStateLocked(StateGaveUp)
		t.mu.Unlock()
		logger.Warn("reconnect_budget_exhausted", "attempts", t.opt.MaxAttempts)
		return
	}
	t.setStateLocked(StateDisconnected)
	delay := t.opt.BaseDelay << t.attempts
	if delay > t.opt.MaxDelay || delay <= 0 {
		delay = t.opt.MaxDelay
	}
	t.attempts++
	attempt := t.attempts
	t.reconnect = time.AfterFunc(delay, func() { t.dial(ctx) })
	t.mu.Unlock()
	logger.Debug("reconnect_scheduled", "attempt", attempt, "delay", delay.String())
}

func appendToken(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
