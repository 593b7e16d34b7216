package services

import (
	"context"
	"testing"
	"time"

	"creator-portal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisBus_RelaysBetweenInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newInstance := func() *RedisBus {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		bus := NewRedisBus(client, NewHub(zap.NewNop()), zap.NewNop())
		go func() { _ = bus.Run(ctx) }()
		select {
		case <-bus.Ready():
		case <-time.After(2 * time.Second):
			t.Fatal("redis relay did not subscribe")
		}
		return bus
	}

	writer := newInstance()
	reader := newInstance()

	sub := reader.Subscribe(Filter{UserID: "u1"})
	defer sub.Close()

	writer.Publish(ctx, Event{Type: EventApplicationUpdated, UserID: "u1", RecordID: "p1", Status: models.StatusApproved})

	select {
	case e := <-sub.C:
		assert.Equal(t, EventApplicationUpdated, e.Type)
		assert.Equal(t, "p1", e.RecordID)
		assert.Equal(t, models.StatusApproved, e.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("event not relayed through redis")
	}
}

func TestRedisBus_FallsBackToLocalDispatch(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	hub := NewHub(zap.NewNop())
	bus := NewRedisBus(client, hub, zap.NewNop())
	sub := bus.Subscribe(Filter{})
	defer sub.Close()

	mr.Close()
	bus.Publish(context.Background(), Event{Type: EventMissionCreated, RecordID: "m1"})

	select {
	case e := <-sub.C:
		assert.Equal(t, "m1", e.RecordID)
	case <-time.After(2 * time.Second):
		t.Fatal("local subscribers should still see the event")
	}
}

func TestRedisBus_RetriesSubscribeUntilRedisIsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	bus := NewRedisBus(client, NewHub(zap.NewNop()), zap.NewNop())
	bus.retryBase = 10 * time.Millisecond
	bus.retryMax = 50 * time.Millisecond

	sub := bus.Subscribe(Filter{UserID: "u1"})
	defer sub.Close()

	mr.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx) }()

	// redis down at boot: this instance still sees its own events
	bus.Publish(ctx, Event{Type: EventApplicationUpdated, UserID: "u1", RecordID: "p0"})
	select {
	case e := <-sub.C:
		assert.Equal(t, "p0", e.RecordID)
	case <-time.After(2 * time.Second):
		t.Fatal("event lost while redis was down")
	}

	time.Sleep(100 * time.Millisecond)
	select {
	case <-bus.Ready():
		t.Fatal("relay reported ready without redis")
	default:
	}

	require.NoError(t, mr.Restart())
	select {
	case <-bus.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe after redis came back")
	}

	bus.Publish(ctx, Event{Type: EventApplicationUpdated, UserID: "u1", RecordID: "p1"})
	select {
	case e := <-sub.C:
		assert.Equal(t, "p1", e.RecordID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not relayed after redis came back")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRedisBus_RunStopsWhileRetrying(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	bus := NewRedisBus(client, NewHub(zap.NewNop()), zap.NewNop())
	bus.retryBase = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient("not a url")
	require.Error(t, err)
}
