// Package store declares the external data collaborators the realtime
// subsystem reads from, plus a pebble-backed notification store used for
// the unread backlog. The registry itself never persists anything; these
// stores are the durable side of the platform.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced user or post does not exist.
var ErrNotFound = errors.New("store: not found")

// UserSnapshot is the minimal denormalized identity data resolved at
// authentication time.
type UserSnapshot struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	IsCreator bool   `json:"isCreator"`
}

// UserStore reads user identity snapshots.
type UserStore interface {
	GetUser(ctx context.Context, id string) (UserSnapshot, error)
}

// PostInfo carries the access-relevant fields of a post.
type PostInfo struct {
	ID        string
	CreatorID string
	IsLocked  bool
	// MinSubscriptionTier is empty when the post has no tier requirement.
	MinSubscriptionTier string
}

// ContentStore reads post and subscription data for access decisions.
type ContentStore interface {
	GetPost(ctx context.Context, postID string) (PostInfo, error)
	// HasActiveSubscription reports whether userID holds an active,
	// payment-completed subscription to creatorID.
	HasActiveSubscription(ctx context.Context, userID, creatorID string) (bool, error)
}

// NotificationRecord is one persisted notification.
type NotificationRecord struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Kind      string         `json:"type"`
	Title     string         `json:"title,omitempty"`
	Message   string         `json:"message,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	IsRead    bool           `json:"isRead"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NotificationStore persists notifications and serves the unread backlog
// delivered on notifications-channel subscribe.
type NotificationStore interface {
	Save(ctx context.Context, n NotificationRecord) error
	// Unread returns up to limit unread notifications, most recent first.
	Unread(ctx context.Context, userID string, limit int) ([]NotificationRecord, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, notifID string) error
	ClearAll(ctx context.Context, userID string) error
}
