package push

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/DarthNec/Fonana-sub001/pkg/channel"
	"github.com/DarthNec/Fonana-sub001/pkg/event"
	"github.com/DarthNec/Fonana-sub001/pkg/logger"
	"github.com/DarthNec/Fonana-sub001/pkg/store"
)

// CreatorUpdated announces profile changes on the creator's public
// channel.
func (p *Publisher) CreatorUpdated(ctx context.Context, creatorID string, fields map[string]any) {
	data := map[string]any{"creatorId": creatorID}
	for k, v := range fields {
		data[k] = v
	}
	p.Publish(ctx, channel.Creator(creatorID), event.New(event.CreatorUpdated, data))
}

// NewSubscription notifies a creator of a fresh subscription. The
// notification is persisted first so an offline creator still sees it in
// the backlog.
func (p *Publisher) NewSubscription(ctx context.Context, creatorID, subscriberID, subscriberName, plan string) {
	p.saveNotification(ctx, store.NotificationRecord{
		UserID:  creatorID,
		Kind:    "NEW_SUBSCRIBER",
		Title:   "New subscriber",
		Message: subscriberName + " subscribed to you",
		Meta:    map[string]any{"subscriberId": subscriberID, "plan": plan},
	})
	p.Publish(ctx, channel.Notifications(creatorID), event.New(event.NewSubscription, map[string]any{
		"creatorId":      creatorID,
		"subscriberId":   subscriberID,
		"subscriberName": subscriberName,
		"plan":           plan,
	}))
}

// SubscriptionCancelled notifies a creator of a cancellation.
func (p *Publisher) SubscriptionCancelled(ctx context.Context, creatorID, subscriberID string) {
	p.Publish(ctx, channel.Notifications(creatorID), event.New(event.SubscriptionCancelled, map[string]any{
		"creatorId":    creatorID,
		"subscriberId": subscriberID,
	}))
}

// EarningsUpdated pushes fresh earnings totals to the creator.
func (p *Publisher) EarningsUpdated(ctx context.Context, creatorID string, totals map[string]any) {
	data := map[string]any{"creatorId": creatorID}
	for k, v := range totals {
		data[k] = v
	}
	p.Publish(ctx, channel.Notifications(creatorID), event.New(event.EarningsUpdated, data))
}

// FlashSaleCreated announces a new flash sale on the creator's channel.
func (p *Publisher) FlashSaleCreated(ctx context.Context, creatorID string, sale map[string]any) {
	data := map[string]any{"creatorId": creatorID}
	for k, v := range sale {
		data[k] = v
	}
	p.Publish(ctx, channel.Creator(creatorID), event.New(event.FlashSaleCreated, data))
}

// FlashSaleEnded announces a flash sale's end.
func (p *Publisher) FlashSaleEnded(ctx context.Context, creatorID, saleID string) {
	p.Publish(ctx, channel.Creator(creatorID), event.New(event.FlashSaleEnded, map[string]any{
		"creatorId": creatorID,
		"saleId":    saleID,
	}))
}

// Notification persists a notification and pushes it to the user's
// notifications channel.
func (p *Publisher) Notification(ctx context.Context, n store.NotificationRecord) {
	p.saveNotification(ctx, n)
	p.Publish(ctx, channel.Notifications(n.UserID), event.New(event.Notification, map[string]any{
		"userId":       n.UserID,
		"notification": n,
	}))
}

// NotificationRead marks a notification read and pushes the change so
// every open tab updates its unread count.
func (p *Publisher) NotificationRead(ctx context.Context, userID, notifID string) {
	if p.notifs != nil {
		if err := p.notifs.MarkRead(ctx, userID, notifID); err != nil {
			logger.Warn("mark_read_failed", "user", userID, "notification", notifID, "error", err)
		}
	}
	p.Publish(ctx, channel.Notifications(userID), event.New(event.NotificationRead, map[string]any{
		"userId":         userID,
		"notificationId": notifID,
	}))
}

// NotificationsCleared clears a user's notifications and pushes the
// reset.
func (p *Publisher) NotificationsCleared(ctx context.Context, userID string) {
	if p.notifs != nil {
		if err := p.notifs.ClearAll(ctx, userID); err != nil {
			logger.Warn("clear_notifications_failed", "user", userID, "error", err)
		}
	}
	p.Publish(ctx, channel.Notifications(userID), event.New(event.NotificationsCleared, map[string]any{
		"userId": userID,
	}))
}

// PostLiked pushes the new like count to the post's channel.
func (p *Publisher) PostLiked(ctx context.Context, postID string, likesCount int, likerID string) {
	p.Publish(ctx, channel.Post(postID), event.New(event.PostLiked, map[string]any{
		"postId":     postID,
		"likesCount": likesCount,
		"likerId":    likerID,
	}))
}

// PostUnliked pushes the decremented like count.
func (p *Publisher) PostUnliked(ctx context.Context, postID string, likesCount int) {
	p.Publish(ctx, channel.Post(postID), event.New(event.PostUnliked, map[string]any{
		"postId":     postID,
		"likesCount": likesCount,
	}))
}

// PostCreated announces a new post on the creator's channel.
func (p *Publisher) PostCreated(ctx context.Context, creatorID, postID string, summary map[string]any) {
	data := map[string]any{"creatorId": creatorID, "postId": postID}
	for k, v := range summary {
		data[k] = v
	}
	p.Publish(ctx, channel.Creator(creatorID), event.New(event.PostCreated, data))
}

// PostDeleted announces a post removal on both the post channel and the
// creator channel.
func (p *Publisher) PostDeleted(ctx context.Context, creatorID, postID string) {
	ev := event.New(event.PostDeleted, map[string]any{"creatorId": creatorID, "postId": postID})
	p.Publish(ctx, channel.Post(postID), ev)
	p.Publish(ctx, channel.Creator(creatorID), ev)
}

// CommentAdded pushes a new comment to the post's channel.
func (p *Publisher) CommentAdded(ctx context.Context, postID string, comment map[string]any) {
	data := map[string]any{"postId": postID}
	for k, v := range comment {
		data[k] = v
	}
	p.Publish(ctx, channel.Post(postID), event.New(event.CommentAdded, data))
}

// CommentDeleted pushes a comment removal.
func (p *Publisher) CommentDeleted(ctx context.Context, postID, commentID string) {
	p.Publish(ctx, channel.Post(postID), event.New(event.CommentDeleted, map[string]any{
		"postId":    postID,
		"commentId": commentID,
	}))
}

// FeedUpdate pushes a feed refresh hint to one user's feed channel.
func (p *Publisher) FeedUpdate(ctx context.Context, userID string, data map[string]any) {
	payload := map[string]any{"userId": userID}
	for k, v := range data {
		payload[k] = v
	}
	p.Publish(ctx, channel.Feed(userID), event.New(event.FeedUpdate, payload))
}

func (p *Publisher) saveNotification(ctx context.Context, n store.NotificationRecord) {
	if p.notifs == nil {
		return
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := p.notifs.Save(ctx, n); err != nil {
		logger.Warn("notification_save_failed", "user", n.UserID, "error", err)
	}
}
