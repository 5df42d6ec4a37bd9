package client

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DarthNec/Fonana-sub001/pkg/event"
)

// fakeClock lets filter-window tests advance time without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time        { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(opt ManagerOptions) (*Manager, *fakeClock) {
	m := NewManager(opt)
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	m.now = clk.now
	return m, clk
}

func likeEvent(id string, count int) event.Event {
	return event.Event{
		Kind: event.PostLiked,
		ID:   id,
		Data: map[string]any{"postId": "p1", "likesCount": count},
	}
}

func TestDedupSuppressesRepeatedID(t *testing.T) {
	m, clk := newTestManager(ManagerOptions{DedupWindow: 5 * time.Second})

	var calls int
	m.On(event.PostLiked, func(event.Event) { calls++ })

	// Same id arriving twice via different paths must run handlers once,
	// even when the payloads differ.
	if !m.Dispatch(likeEvent("ev-1", 5)) {
		t.Fatal("first dispatch suppressed")
	}
	clk.advance(time.Second)
	if m.Dispatch(likeEvent("ev-1", 6)) {
		t.Fatal("duplicate id dispatched")
	}
	if calls != 1 {
		t.Fatalf("calls=%d", calls)
	}

	clk.advance(5 * time.Second)
	if !m.Dispatch(likeEvent("ev-1", 7)) {
		t.Fatal("dispatch suppressed after window expired")
	}
}

func TestThrottleSuppressesIdenticalPayloadBursts(t *testing.T) {
	m, clk := newTestManager(ManagerOptions{ThrottleWindow: 50 * time.Millisecond})

	// Distinct ids, identical payload: dedup passes, throttle holds.
	if !m.Dispatch(likeEvent("a", 5)) {
		t.Fatal("first dispatch suppressed")
	}
	if m.Dispatch(likeEvent("b", 5)) {
		t.Fatal("burst duplicate dispatched")
	}

	clk.advance(60 * time.Millisecond)
	if !m.Dispatch(likeEvent("c", 5)) {
		t.Fatal("dispatch suppressed after throttle window")
	}
}

func TestEmitDropsOldestOnOverflow(t *testing.T) {
	m, _ := newTestManager(ManagerOptions{QueueSize: 4})

	for i := 0; i < 6; i++ {
		m.Emit(likeEvent(fmt.Sprintf("ev-%d", i), i))
	}
	if got := m.Pending(); got != 4 {
		t.Fatalf("pending=%d want 4", got)
	}
	if got := m.Dropped(); got != 2 {
		t.Fatalf("dropped=%d want 2", got)
	}

	// The survivors are the newest four, oldest-first.
	first, ok := m.pop()
	if !ok || first.ID != "ev-2" {
		t.Fatalf("head=%v ok=%v", first.ID, ok)
	}
}

func TestRunDrainsQueueToHandlers(t *testing.T) {
	m := NewManager(ManagerOptions{DrainDelay: time.Millisecond})

	var seen atomic.Int32
	m.On(event.PostLiked, func(event.Event) { seen.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	for i := 0; i < 5; i++ {
		m.Emit(likeEvent(fmt.Sprintf("ev-%d", i), i))
	}

	deadline := time.Now().Add(2 * time.Second)
	for seen.Load() != 5 {
		if time.Now().After(deadline) {
			t.Fatalf("seen=%d want 5", seen.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
