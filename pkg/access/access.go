// Package access decides whether an identity may subscribe to a channel.
package access

import (
	"context"
	"errors"

	"github.com/DarthNec/Fonana-sub001/pkg/auth"
	"github.com/DarthNec/Fonana-sub001/pkg/channel"
	"github.com/DarthNec/Fonana-sub001/pkg/logger"
	"github.com/DarthNec/Fonana-sub001/pkg/store"
)

// Controller evaluates channel authorization. Denial is a value, never an
// error: callers respond with an error frame and keep the connection.
type Controller struct {
	content store.ContentStore
}

func NewController(content store.ContentStore) *Controller {
	return &Controller{content: content}
}

// CanAccess reports whether id may subscribe to ch.
//
//   - creator: public fanout, always permitted.
//   - notifications/feed: only the owning user.
//   - post: the post's creator, anyone when the post is open (not locked,
//     no tier requirement), or holders of an active payment-completed
//     subscription to the post's creator. A missing post denies.
func (c *Controller) CanAccess(ctx context.Context, id auth.Identity, ch channel.Channel) bool {
	switch ch.Kind {
	case channel.KindCreator:
		return true
	case channel.KindNotifications, channel.KindFeed:
		return ch.UserID == id.UserID
	case channel.KindPost:
		return c.canAccessPost(ctx, id, ch.PostID)
	}
	return false
}

func (c *Controller) canAccessPost(ctx context.Context, id auth.Identity, postID string) bool {
	post, err := c.content.GetPost(ctx, postID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("post_lookup_failed", "post", postID, "error", err)
		}
		return false
	}
	if post.CreatorID == id.UserID {
		return true
	}
	if !post.IsLocked && post.MinSubscriptionTier == "" {
		return true
	}
	ok, err := c.content.HasActiveSubscription(ctx, id.UserID, post.CreatorID)
	if err != nil {
		logger.Warn("subscription_lookup_failed", "user", id.UserID, "creator", post.CreatorID, "error", err)
		return false
	}
	return ok
}
