package access

import (
	"context"
	"testing"

	"github.com/DarthNec/Fonana-sub001/pkg/auth"
	"github.com/DarthNec/Fonana-sub001/pkg/channel"
	"github.com/DarthNec/Fonana-sub001/pkg/store"
)

func TestCanAccess(t *testing.T) {
	content := store.NewMemoryContent()
	content.PutPost(store.PostInfo{ID: "open", CreatorID: "creator1"})
	content.PutPost(store.PostInfo{ID: "locked", CreatorID: "creator1", IsLocked: true})
	content.PutPost(store.PostInfo{ID: "tiered", CreatorID: "creator1", MinSubscriptionTier: "premium"})
	content.SetSubscription("fan", "creator1", true)
	ctrl := NewController(content)
	ctx := context.Background()

	owner := auth.Identity{UserID: "creator1", IsCreator: true}
	fan := auth.Identity{UserID: "fan"}
	stranger := auth.Identity{UserID: "stranger"}

	cases := []struct {
		name string
		id   auth.Identity
		ch   channel.Channel
		want bool
	}{
		{"creator channel is public", stranger, channel.Creator("creator1"), true},
		{"own notifications", fan, channel.Notifications("fan"), true},
		{"foreign notifications", fan, channel.Notifications("creator1"), false},
		{"own feed", fan, channel.Feed("fan"), true},
		{"foreign feed", stranger, channel.Feed("fan"), false},
		{"open post, anyone", stranger, channel.Post("open"), true},
		{"locked post, stranger", stranger, channel.Post("locked"), false},
		{"locked post, subscriber", fan, channel.Post("locked"), true},
		{"locked post, owner", owner, channel.Post("locked"), true},
		{"tiered post, stranger", stranger, channel.Post("tiered"), false},
		{"tiered post, subscriber", fan, channel.Post("tiered"), true},
		{"missing post denies", owner, channel.Post("nope"), false},
	}
	for _, tc := range cases {
		if got := ctrl.CanAccess(ctx, tc.id, tc.ch); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}
