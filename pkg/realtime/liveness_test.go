package realtime

import (
	"context"
	"testing"

	"github.com/DarthNec/Fonana-sub001/pkg/channel"
)

func TestLivenessEvictsAfterTwoMissedPings(t *testing.T) {
	r, _ := newTestRegistry(t)
	c := testConn("u1")
	r.Register(c)
	r.Subscribe(context.Background(), c, channel.Post("p1"))
	m := NewMonitor(r, 0)

	m.Cycle() // ping 1 sent
	if r.ConnectionCount("u1") != 1 {
		t.Fatal("evicted after a single unanswered cycle")
	}
	m.Cycle() // ping 1 missed, ping 2 sent
	if r.ConnectionCount("u1") != 1 {
		t.Fatal("evicted after one missed ping")
	}
	m.Cycle() // ping 2 missed: two consecutive, evict
	if r.ConnectionCount("u1") != 0 {
		t.Fatal("not evicted after two consecutive missed pings")
	}
	if n := r.SubscriberCount("post:p1"); n != 0 {
		t.Fatalf("residual membership after eviction: %d", n)
	}
}

func TestPongResetsLivenessCycle(t *testing.T) {
	r, _ := newTestRegistry(t)
	c := testConn("u1")
	r.Register(c)
	m := NewMonitor(r, 0)

	for i := 0; i < 6; i++ {
		m.Cycle()
		MarkPong(c)
	}
	if r.ConnectionCount("u1") != 1 {
		t.Fatal("responsive connection evicted")
	}

	// One slow pong does not kill the connection either.
	m.Cycle()
	m.Cycle()
	MarkPong(c)
	m.Cycle()
	if r.ConnectionCount("u1") != 1 {
		t.Fatal("evicted despite pong inside the second cycle")
	}
}
