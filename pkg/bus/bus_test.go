package bus

import (
	"context"
	"testing"

	"github.com/DarthNec/Fonana-sub001/pkg/event"
)

func TestMemoryBusRelaysToOtherInstancesOnly(t *testing.T) {
	broker := NewMemoryBroker()
	a := broker.Attach()
	b := broker.Attach()
	c := broker.Attach()

	var fromA, fromB, fromC []event.Envelope
	if err := a.Start(context.Background(), func(env event.Envelope) { fromA = append(fromA, env) }); err != nil {
		t.Fatalf("a.Start: %v", err)
	}
	if err := b.Start(context.Background(), func(env event.Envelope) { fromB = append(fromB, env) }); err != nil {
		t.Fatalf("b.Start: %v", err)
	}
	if err := c.Start(context.Background(), func(env event.Envelope) { fromC = append(fromC, env) }); err != nil {
		t.Fatalf("c.Start: %v", err)
	}

	ev := event.New(event.PostLiked, map[string]any{"postId": "p1", "likesCount": 6})
	if err := a.Publish(context.Background(), "post:p1", ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// The publisher never hears its own envelope back (it already fanned
	// out locally); every other instance hears it exactly once.
	if len(fromA) != 0 {
		t.Fatalf("publisher received own envelope: %v", fromA)
	}
	if len(fromB) != 1 || len(fromC) != 1 {
		t.Fatalf("relay counts: b=%d c=%d", len(fromB), len(fromC))
	}
	if fromB[0].ChannelKey != "post:p1" || fromB[0].Event.ID != ev.ID {
		t.Fatalf("envelope mismatch: %+v", fromB[0])
	}
}

func TestClosedBusStopsRelaying(t *testing.T) {
	broker := NewMemoryBroker()
	a := broker.Attach()
	b := broker.Attach()

	got := 0
	_ = b.Start(context.Background(), func(event.Envelope) { got++ })
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_ = a.Publish(context.Background(), "feed:u1", event.New(event.FeedUpdate, nil))
	if got != 0 {
		t.Fatalf("closed bus still relayed %d envelopes", got)
	}
}

func TestNoopBus(t *testing.T) {
	var n Noop
	if err := n.Publish(context.Background(), "k", event.New(event.Notification, nil)); err != nil {
		t.Fatalf("noop publish: %v", err)
	}
	if err := n.Start(context.Background(), func(event.Envelope) {}); err != nil {
		t.Fatalf("noop start: %v", err)
	}
}
