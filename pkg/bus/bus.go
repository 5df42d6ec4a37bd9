// Package bus relays events between server processes. Cross-instance
// delivery is best-effort: a broken bus degrades the system to
// local-only fanout, it never takes connections down with it.
package bus

import (
	"context"
	"errors"

	"github.com/DarthNec/Fonana-sub001/pkg/event"
)

// ErrUnavailable marks publish failures caused by an unreachable bus.
var ErrUnavailable = errors.New("bus: unavailable")

// RelayFunc receives inbound envelopes published by other instances. The
// implementation must perform local fanout only and never republish.
type RelayFunc func(env event.Envelope)

// Bus publishes outbound envelopes and relays inbound ones.
type Bus interface {
	// Publish sends the event for channelKey to every other instance.
	Publish(ctx context.Context, channelKey string, ev event.Event) error
	// Start begins the inbound relay loop; it returns once the loop is
	// running. Envelopes originated by this instance are filtered out
	// before relay is invoked.
	Start(ctx context.Context, relay RelayFunc) error
	Close() error
}

// Noop is the single-instance bus: publishing goes nowhere and nothing
// arrives.
type Noop struct{}

func (Noop) Publish(context.Context, string, event.Event) error { return nil }
func (Noop) Start(context.Context, RelayFunc) error             { return nil }
func (Noop) Close() error                                       { return nil }
