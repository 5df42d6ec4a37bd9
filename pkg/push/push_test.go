package push

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DarthNec/Fonana-sub001/pkg/access"
	"github.com/DarthNec/Fonana-sub001/pkg/auth"
	"github.com/DarthNec/Fonana-sub001/pkg/bus"
	"github.com/DarthNec/Fonana-sub001/pkg/channel"
	"github.com/DarthNec/Fonana-sub001/pkg/event"
	"github.com/DarthNec/Fonana-sub001/pkg/realtime"
	"github.com/DarthNec/Fonana-sub001/pkg/store"
)

// instance bundles the pieces one server process would wire together.
type instance struct {
	registry *realtime.Registry
	notifs   *store.MemoryNotifications
	pub      *Publisher
	relayed  atomic.Int32 // envelopes received from the bus
	fanned   atomic.Int32 // local deliveries performed for those envelopes
}

func newInstance(t *testing.T, broker *bus.MemoryBroker) *instance {
	t.Helper()
	content := store.NewMemoryContent()
	content.PutPost(store.PostInfo{ID: "p1", CreatorID: "creator1"})
	notifs := store.NewMemoryNotifications()

	in := &instance{
		registry: realtime.NewRegistry(access.NewController(content), notifs, 50),
		notifs:   notifs,
	}
	b := broker.Attach()
	in.pub = NewPublisher(in.registry, b, notifs)
	err := b.Start(context.Background(), func(env event.Envelope) {
		in.relayed.Add(1)
		in.fanned.Add(int32(in.registry.Broadcast(env.ChannelKey, env.Event)))
	})
	if err != nil {
		t.Fatalf("bus start: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return in
}

func (in *instance) subscribe(t *testing.T, userID string, ch channel.Channel) *realtime.Conn {
	t.Helper()
	c := realtime.NewConn(nil, auth.Identity{UserID: userID}, 8)
	in.registry.Register(c)
	in.registry.Subscribe(context.Background(), c, ch)
	if in.registry.SubscriberCount(ch.Key()) == 0 {
		t.Fatalf("subscribe to %s failed", ch.Key())
	}
	return c
}

func TestPublishReachesRemoteSubscriberExactlyOnce(t *testing.T) {
	broker := bus.NewMemoryBroker()
	a := newInstance(t, broker)
	b := newInstance(t, broker)
	b.subscribe(t, "viewer", channel.Post("p1"))

	a.pub.PostLiked(context.Background(), "p1", 6, "viewer")

	if got := b.relayed.Load(); got != 1 {
		t.Fatalf("remote relays=%d want 1", got)
	}
	if got := b.fanned.Load(); got != 1 {
		t.Fatalf("remote deliveries=%d want 1", got)
	}
	// The publishing instance must not see its own envelope back.
	if got := a.relayed.Load(); got != 0 {
		t.Fatalf("origin relays=%d want 0", got)
	}
}

func TestRelayNeverRepublishesToTheBus(t *testing.T) {
	broker := bus.NewMemoryBroker()
	a := newInstance(t, broker)
	b := newInstance(t, broker)

	env := event.Envelope{
		ChannelKey: "post:p1",
		Origin:     "some-other-instance",
		Event:      event.New(event.PostLiked, map[string]any{"postId": "p1", "likesCount": 2}),
	}
	a.pub.Relay(env)

	time.Sleep(20 * time.Millisecond)
	if got := b.relayed.Load(); got != 0 {
		t.Fatalf("relay leaked back onto the bus: %d envelopes", got)
	}
}

func TestPublishSurvivesWithoutBus(t *testing.T) {
	content := store.NewMemoryContent()
	content.PutPost(store.PostInfo{ID: "p1", CreatorID: "creator1"})
	reg := realtime.NewRegistry(access.NewController(content), store.NewMemoryNotifications(), 50)
	pub := NewPublisher(reg, nil, nil)

	var seen atomic.Int32
	off := pub.On(event.PostLiked, func(event.Event) { seen.Add(1) })
	defer off()

	pub.PostLiked(context.Background(), "p1", 3, "u1")
	if seen.Load() != 1 {
		t.Fatalf("hook calls=%d want 1", seen.Load())
	}
}

func TestNotificationPersistsForOfflineUser(t *testing.T) {
	broker := bus.NewMemoryBroker()
	in := newInstance(t, broker)

	in.pub.Notification(context.Background(), store.NotificationRecord{
		UserID:  "u1",
		Kind:    "LIKE_POST",
		Title:   "Someone liked your post",
		Message: "viewer liked p1",
	})

	count, err := in.notifs.UnreadCount(context.Background(), "u1")
	if err != nil || count != 1 {
		t.Fatalf("unread=%d err=%v", count, err)
	}
	recs, err := in.notifs.Unread(context.Background(), "u1", 50)
	if err != nil || len(recs) != 1 {
		t.Fatalf("records=%d err=%v", len(recs), err)
	}
	if recs[0].ID == "" || recs[0].CreatedAt.IsZero() {
		t.Fatalf("record missing generated fields: %+v", recs[0])
	}
}

func TestNewSubscriptionPersistsThenPushes(t *testing.T) {
	broker := bus.NewMemoryBroker()
	in := newInstance(t, broker)

	var order []string
	off := in.pub.On(event.NewSubscription, func(event.Event) {
		order = append(order, "push")
	})
	defer off()

	in.pub.NewSubscription(context.Background(), "creator1", "u2", "bob", "premium")

	count, err := in.notifs.UnreadCount(context.Background(), "creator1")
	if err != nil || count != 1 {
		t.Fatalf("unread=%d err=%v", count, err)
	}
	if len(order) != 1 {
		t.Fatalf("push hook calls=%d want 1", len(order))
	}
}

func TestNotificationReadMarksStoredRecord(t *testing.T) {
	broker := bus.NewMemoryBroker()
	in := newInstance(t, broker)

	_ = in.notifs.Save(context.Background(), store.NotificationRecord{
		ID: "n1", UserID: "u1", Kind: "LIKE_POST", CreatedAt: time.Now(),
	})
	in.pub.NotificationRead(context.Background(), "u1", "n1")

	count, err := in.notifs.UnreadCount(context.Background(), "u1")
	if err != nil || count != 0 {
		t.Fatalf("unread=%d err=%v", count, err)
	}
}
