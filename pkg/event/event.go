// Package event defines the closed set of domain event kinds pushed to
// clients, the Event value itself, and the bus envelope used for
// cross-instance relay.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates every domain event the subsystem can push. The set is
// closed: frames with an unknown kind are rejected at the edges.
type Kind string

const (
	CreatorUpdated        Kind = "creator_updated"
	NewSubscription       Kind = "new_subscription"
	SubscriptionCancelled Kind = "subscription_cancelled"
	EarningsUpdated       Kind = "earnings_updated"
	FlashSaleCreated      Kind = "flash_sale_created"
	FlashSaleEnded        Kind = "flash_sale_ended"
	Notification          Kind = "notification"
	NotificationRead      Kind = "notification_read"
	NotificationsCleared  Kind = "notifications_cleared"
	PostLiked             Kind = "post_liked"
	PostUnliked           Kind = "post_unliked"
	PostCreated           Kind = "post_created"
	PostDeleted           Kind = "post_deleted"
	CommentAdded          Kind = "comment_added"
	CommentDeleted        Kind = "comment_deleted"
	FeedUpdate            Kind = "feed_update"
)

var kinds = map[Kind]struct{}{
	CreatorUpdated: {}, NewSubscription: {}, SubscriptionCancelled: {},
	EarningsUpdated: {}, FlashSaleCreated: {}, FlashSaleEnded: {},
	Notification: {}, NotificationRead: {}, NotificationsCleared: {},
	PostLiked: {}, PostUnliked: {}, PostCreated: {}, PostDeleted: {},
	CommentAdded: {}, CommentDeleted: {}, FeedUpdate: {},
}

// Known reports whether k is part of the closed kind set.
func Known(k Kind) bool {
	_, ok := kinds[k]
	return ok
}

// Event is the unit pushed to clients. Events are immutable once
// constructed; Data holds the kind-specific payload fields, which are
// flattened into the wire object next to type/id/timestamp.
type Event struct {
	Kind      Kind
	ID        string
	Timestamp time.Time
	Data      map[string]any
}

// New constructs an event with a fresh id and the current timestamp.
func New(kind Kind, data map[string]any) Event {
	return Event{
		Kind:      kind,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// MarshalJSON flattens the event into one wire object:
// {"type":"post_liked","id":"...","timestamp":...,"postId":"..."}.
func (e Event) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(e.Data)+3)
	for k, v := range e.Data {
		obj[k] = v
	}
	obj["type"] = string(e.Kind)
	if e.ID != "" {
		obj["id"] = e.ID
	}
	if !e.Timestamp.IsZero() {
		obj["timestamp"] = e.Timestamp.UnixMilli()
	}
	return json.Marshal(obj)
}

// UnmarshalJSON is the inverse of MarshalJSON: type/id/timestamp are
// lifted out and everything else lands in Data.
func (e *Event) UnmarshalJSON(b []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	t, _ := obj["type"].(string)
	if t == "" {
		return fmt.Errorf("event without type")
	}
	e.Kind = Kind(t)
	if !Known(e.Kind) {
		return fmt.Errorf("unknown event kind %q", t)
	}
	if id, ok := obj["id"].(string); ok {
		e.ID = id
	}
	if ms, ok := obj["timestamp"].(float64); ok {
		e.Timestamp = time.UnixMilli(int64(ms)).UTC()
	}
	delete(obj, "type")
	delete(obj, "id")
	delete(obj, "timestamp")
	if len(obj) > 0 {
		e.Data = obj
	} else {
		e.Data = nil
	}
	return nil
}

// Envelope carries an event plus its originating channel key across the
// bus. A receiving instance performs local fanout only and never
// republishes an envelope; Origin lets an instance skip envelopes it
// published itself, since it already fanned them out locally.
type Envelope struct {
	ChannelKey string `json:"channelKey"`
	Origin     string `json:"origin,omitempty"`
	Event      Event  `json:"event"`
}
