// Package push exposes the server-side emitters the rest of the platform
// calls when domain state changes. Every helper fans out locally and
// relays over the bus so subscribers on other processes see the event
// too; bus failures degrade to local-only delivery.
package push

import (
	"context"

	"github.com/DarthNec/Fonana-sub001/pkg/bus"
	"github.com/DarthNec/Fonana-sub001/pkg/channel"
	"github.com/DarthNec/Fonana-sub001/pkg/event"
	"github.com/DarthNec/Fonana-sub001/pkg/realtime"
	"github.com/DarthNec/Fonana-sub001/pkg/store"
	"github.com/DarthNec/Fonana-sub001/pkg/telemetry"
)

// Publisher routes domain events to local subscribers and the bus.
type Publisher struct {
	registry *realtime.Registry
	bus      bus.Bus
	notifs   store.NotificationStore
	emitter  *event.Emitter
}

func NewPublisher(registry *realtime.Registry, b bus.Bus, notifs store.NotificationStore) *Publisher {
	if b == nil {
		b = bus.Noop{}
	}
	return &Publisher{registry: registry, bus: b, notifs: notifs, emitter: event.NewEmitter()}
}

// On registers a server-internal hook for a kind (metrics, audit,
// test observation). Returns a removal func.
func (p *Publisher) On(kind event.Kind, fn event.Handler) func() {
	return p.emitter.On(kind, fn)
}

// Relay handles an inbound bus envelope: local fanout only, never
// republished.
func (p *Publisher) Relay(env event.Envelope) {
	p.registry.Broadcast(env.ChannelKey, env.Event)
}

// Publish fans an event out to a channel, locally and across the bus.
func (p *Publisher) Publish(ctx context.Context, ch channel.Channel, ev event.Event) {
	telemetry.EventsPublished.WithLabelValues(string(ev.Kind)).Inc()
	p.emitter.Emit(ev)
	key := ch.Key()
	p.registry.Broadcast(key, ev)
	// Error already logged by the bus; local delivery stands either way.
	_ = p.bus.Publish(ctx, key, ev)
}

// SendDirect delivers a latency-sensitive personal push to the user's
// live local connections, bypassing the channel model. Offline users get
// nothing here; durability is the notification store's job.
func (p *Publisher) SendDirect(userID string, ev event.Event) bool {
	telemetry.EventsPublished.WithLabelValues(string(ev.Kind)).Inc()
	p.emitter.Emit(ev)
	return p.registry.SendDirect(userID, ev)
}
