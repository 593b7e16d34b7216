package services

import (
	"context"
	"testing"
	"time"

	"creator-portal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFilter_Match(t *testing.T) {
	mine := Event{Type: EventApplicationUpdated, UserID: "u1"}
	theirs := Event{Type: EventApplicationUpdated, UserID: "u2"}
	broadcast := Event{Type: EventMissionCreated}

	owner := Filter{UserID: "u1"}
	assert.True(t, owner.Match(mine))
	assert.False(t, owner.Match(theirs))
	assert.True(t, owner.Match(broadcast))

	all := Filter{}
	assert.True(t, all.Match(mine))
	assert.True(t, all.Match(theirs))

	typed := Filter{Types: []EventType{EventNotificationCreated}}
	assert.False(t, typed.Match(mine))
	assert.True(t, typed.Match(Event{Type: EventNotificationCreated, UserID: "u9"}))
}

func TestHub_DeliversToMatchingSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx := context.Background()

	creatorSub := hub.Subscribe(Filter{UserID: "u1", Types: []EventType{EventApplicationUpdated}})
	defer creatorSub.Close()
	adminSub := hub.Subscribe(Filter{Types: []EventType{EventApplicationUpdated}})
	defer adminSub.Close()
	otherSub := hub.Subscribe(Filter{UserID: "u2"})
	defer otherSub.Close()

	hub.Publish(ctx, Event{Type: EventApplicationUpdated, UserID: "u1", Status: models.StatusPending})

	for _, sub := range []*Subscription{creatorSub, adminSub} {
		select {
		case e := <-sub.C:
			assert.Equal(t, "u1", e.UserID)
			assert.False(t, e.At.IsZero())
		case <-time.After(time.Second):
			t.Fatal("expected event")
		}
	}

	select {
	case e := <-otherSub.C:
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

func TestHub_CloseIsCancellation(t *testing.T) {
	hub := NewHub(zap.NewNop())
	sub := hub.Subscribe(Filter{})
	require.Equal(t, 1, hub.Len())

	sub.Close()
	sub.Close() // idempotent
	assert.Equal(t, 0, hub.Len())

	_, ok := <-sub.C
	assert.False(t, ok, "channel closed after Close")

	// publishing after close must not panic
	hub.Publish(context.Background(), Event{Type: EventMissionCreated})
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(zap.NewNop())
	slow := hub.Subscribe(Filter{})
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriptionBuffer*3; i++ {
			hub.Publish(context.Background(), Event{Type: EventMissionCreated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	assert.Len(t, slow.C, subscriptionBuffer)
}
