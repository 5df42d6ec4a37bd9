// Package channel defines the closed set of subscribable channel kinds
// and the canonical key derivation used for registry indexing and bus
// topic naming.
package channel

import (
	"encoding/json"
	"fmt"
)

// Kind enumerates the channel variants.
type Kind string

const (
	KindCreator       Kind = "creator"
	KindNotifications Kind = "notifications"
	KindFeed          Kind = "feed"
	KindPost          Kind = "post"
)

// Channel is a tagged value naming one subscribable topic. Exactly one
// of the id fields is meaningful, selected by Kind.
type Channel struct {
	Kind   Kind   `json:"type"`
	UserID string `json:"userId,omitempty"`
	PostID string `json:"postId,omitempty"`
}

// Creator is the public fanout channel for a creator's profile updates.
func Creator(creatorID string) Channel {
	return Channel{Kind: KindCreator, UserID: creatorID}
}

// Notifications is the personal notification channel of a user.
func Notifications(userID string) Channel {
	return Channel{Kind: KindNotifications, UserID: userID}
}

// Feed is the personal feed-update channel of a user.
func Feed(userID string) Channel {
	return Channel{Kind: KindFeed, UserID: userID}
}

// Post is the per-post channel carrying likes/comments for one post.
func Post(postID string) Channel {
	return Channel{Kind: KindPost, PostID: postID}
}

// Key derives the canonical registry/bus key. Each kind has a distinct
// prefix, so keys from different kinds can never collide.
func (c Channel) Key() string {
	switch c.Kind {
	case KindCreator:
		return "creator:" + c.UserID
	case KindNotifications:
		return "notifications:" + c.UserID
	case KindFeed:
		return "feed:" + c.UserID
	case KindPost:
		return "post:" + c.PostID
	}
	return ""
}

// Valid reports whether the channel carries its required id.
func (c Channel) Valid() bool {
	switch c.Kind {
	case KindCreator, KindNotifications, KindFeed:
		return c.UserID != ""
	case KindPost:
		return c.PostID != ""
	}
	return false
}

func (c Channel) String() string { return c.Key() }

// Parse decodes a channel object from a wire frame and validates it.
func Parse(raw json.RawMessage) (Channel, error) {
	if len(raw) == 0 {
		return Channel{}, fmt.Errorf("missing channel")
	}
	var c Channel
	if err := json.Unmarshal(raw, &c); err != nil {
		return Channel{}, fmt.Errorf("malformed channel: %w", err)
	}
	if c.Kind == "" {
		return Channel{}, fmt.Errorf("missing channel.type")
	}
	if !c.Valid() {
		return Channel{}, fmt.Errorf("unknown or incomplete channel type %q", c.Kind)
	}
	return c, nil
}
