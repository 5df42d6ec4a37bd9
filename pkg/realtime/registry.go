package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/DarthNec/Fonana-sub001/pkg/access"
	"github.com/DarthNec/Fonana-sub001/pkg/channel"
	"github.com/DarthNec/Fonana-sub001/pkg/event"
	"github.com/DarthNec/Fonana-sub001/pkg/logger"
	"github.com/DarthNec/Fonana-sub001/pkg/store"
	"github.com/DarthNec/Fonana-sub001/pkg/telemetry"
)

// Registry is the process-local table of live connections and their
// channel subscriptions. It is purely in-memory and never a source of
// truth; each process owns exactly its own connections.
//
// A user id maps to a *set* of connections: multi-device sessions fan
// out to every live connection rather than evicting the previous one.
type Registry struct {
	access  *access.Controller
	notifs  store.NotificationStore
	backlog int

	mu     sync.RWMutex
	byUser map[string]map[*Conn]struct{}
	byKey  map[string]map[*Conn]struct{}
	// keysOf tracks each connection's subscription set for atomic purge
	// on deregister.
	keysOf map[*Conn]map[string]struct{}
}

// NewRegistry builds an empty registry. backlogLimit caps the unread
// notifications delivered on notifications-channel subscribe.
func NewRegistry(ctrl *access.Controller, notifs store.NotificationStore, backlogLimit int) *Registry {
	if backlogLimit <= 0 {
		backlogLimit = 50
	}
	return &Registry{
		access:  ctrl,
		notifs:  notifs,
		backlog: backlogLimit,
		byUser:  make(map[string]map[*Conn]struct{}),
		byKey:   make(map[string]map[*Conn]struct{}),
		keysOf:  make(map[*Conn]map[string]struct{}),
	}
}

// Register adds a freshly authenticated connection.
func (r *Registry) Register(c *Conn) {
	r.mu.Lock()
	set := r.byUser[c.Identity.UserID]
	if set == nil {
		set = make(map[*Conn]struct{})
		r.byUser[c.Identity.UserID] = set
	}
	set[c] = struct{}{}
	r.keysOf[c] = make(map[string]struct{})
	r.mu.Unlock()
	telemetry.Connections.Inc()
	logger.Info("connection_registered", "conn", c.ID, "user", c.Identity.UserID, "sessions", len(set))
}

// Subscribe authorizes and records a subscription, acknowledging on the
// connection. Denial sends an error frame echoing the channel and leaves
// all state unchanged. Subscribing twice is idempotent.
func (r *Registry) Subscribe(ctx context.Context, c *Conn, ch channel.Channel) {
	if !r.access.CanAccess(ctx, c.Identity, ch) {
		logger.Warn("subscribe_denied", "conn", c.ID, "user", c.Identity.UserID, "channel", ch.Key())
		c.sendFrame(event.OutboundFrame{
			Type: event.FrameError,
			Data: event.ErrorData{Message: "access denied", Channel: ch},
		})
		return
	}

	key := ch.Key()
	r.mu.Lock()
	if _, live := r.keysOf[c]; !live {
		// Deregistered while the access check was in flight; do not
		// resurrect index entries for a dead connection.
		r.mu.Unlock()
		return
	}
	if _, dup := r.keysOf[c][key]; !dup {
		r.keysOf[c][key] = struct{}{}
		set := r.byKey[key]
		if set == nil {
			set = make(map[*Conn]struct{})
			r.byKey[key] = set
		}
		set[c] = struct{}{}
		telemetry.Subscriptions.Inc()
	}
	r.mu.Unlock()

	c.sendFrame(event.OutboundFrame{
		Type: event.FrameSubscribed,
		Data: event.SubscribedData{Channel: ch, ChannelKey: key},
	})
	logger.Debug("subscribed", "conn", c.ID, "channel", key)

	if ch.Kind == channel.KindNotifications {
		r.deliverBacklog(ctx, c, ch.UserID)
	}
}

// deliverBacklog pushes the persisted unread notifications right after a
// notifications-channel subscribe.
func (r *Registry) deliverBacklog(ctx context.Context, c *Conn, userID string) {
	if r.notifs == nil {
		return
	}
	records, err := r.notifs.Unread(ctx, userID, r.backlog)
	if err != nil {
		logger.Warn("backlog_read_failed", "user", userID, "error", err)
		return
	}
	count, err := r.notifs.UnreadCount(ctx, userID)
	if err != nil {
		count = len(records)
	}
	items := make([]json.RawMessage, 0, len(records))
	for _, n := range records {
		b, err := json.Marshal(n)
		if err != nil {
			continue
		}
		items = append(items, b)
	}
	c.sendFrame(event.OutboundFrame{
		Type: event.FrameUnreadNotifications,
		Data: event.UnreadData{Notifications: items, Count: count},
	})
}

// Unsubscribe removes one subscription. It acknowledges even when the
// key was not subscribed.
func (r *Registry) Unsubscribe(c *Conn, ch channel.Channel) {
	key := ch.Key()
	r.mu.Lock()
	r.dropKeyLocked(c, key)
	r.mu.Unlock()
	c.sendFrame(event.OutboundFrame{
		Type: event.FrameUnsubscribed,
		Data: event.SubscribedData{Channel: ch, ChannelKey: key},
	})
	logger.Debug("unsubscribed", "conn", c.ID, "channel", key)
}

func (r *Registry) dropKeyLocked(c *Conn, key string) {
	keys, ok := r.keysOf[c]
	if !ok {
		return
	}
	if _, subscribed := keys[key]; !subscribed {
		return
	}
	delete(keys, key)
	if set := r.byKey[key]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(r.byKey, key)
		}
	}
	telemetry.Subscriptions.Dec()
}

// Deregister removes the connection and purges every channel membership
// it held, atomically under the registry lock. It runs exactly once per
// connection even when an explicit close races a liveness eviction.
func (r *Registry) Deregister(c *Conn) {
	if !c.deregistered.CompareAndSwap(false, true) {
		return
	}
	r.mu.Lock()
	for key := range r.keysOf[c] {
		if set := r.byKey[key]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(r.byKey, key)
			}
		}
		telemetry.Subscriptions.Dec()
	}
	delete(r.keysOf, c)
	if set := r.byUser[c.Identity.UserID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(r.byUser, c.Identity.UserID)
		}
	}
	r.mu.Unlock()
	telemetry.Connections.Dec()
	c.shutdown()
	logger.Info("connection_deregistered", "conn", c.ID, "user", c.Identity.UserID)
}

// Broadcast delivers an event to every local subscriber of channelKey
// and returns the number of connections reached.
func (r *Registry) Broadcast(channelKey string, ev event.Event) int {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error("event_marshal_failed", "kind", ev.Kind, "error", err)
		return 0
	}
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.byKey[channelKey]))
	for c := range r.byKey[channelKey] {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range conns {
		if c.enqueue(payload) {
			delivered++
		}
	}
	if delivered > 0 {
		telemetry.EventsDelivered.Add(float64(delivered))
	}
	return delivered
}

// SendDirect bypasses the channel model and delivers to every live
// connection of userID on this process. It reports whether anything was
// delivered; there is no queueing for offline users.
func (r *Registry) SendDirect(userID string, ev event.Event) bool {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.byUser[userID]))
	for c := range r.byUser[userID] {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	delivered := false
	for _, c := range conns {
		if c.sendEvent(ev) {
			delivered = true
			telemetry.EventsDelivered.Inc()
		}
	}
	return delivered
}

// Conns returns a snapshot of every live connection.
func (r *Registry) Conns() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.keysOf))
	for c := range r.keysOf {
		out = append(out, c)
	}
	return out
}

// SubscriberCount reports the local subscriber count for a channel key.
func (r *Registry) SubscriberCount(channelKey string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey[channelKey])
}

// ConnectionCount reports the number of live connections for a user.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

// CloseAll terminates every connection with the given close code, used
// during graceful shutdown.
func (r *Registry) CloseAll(code int, reason string) {
	for _, c := range r.Conns() {
		c.closeWithCode(code, reason)
		r.Deregister(c)
	}
}
