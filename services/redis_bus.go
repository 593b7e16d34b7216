// services/redis_bus.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisEventChannel = "creator-portal:events"

// RedisBus shares events between service instances. Publish goes through Redis and Run
// relays every received event into the local Hub, including this instance's own.
// Until the relay is subscribed, Publish also dispatches locally.
type RedisBus struct {
	client *redis.Client
	hub    *Hub
	log    *zap.Logger

	ready     chan struct{}
	readyOnce sync.Once

	retryBase time.Duration
	retryMax  time.Duration
}

func NewRedisBus(client *redis.Client, hub *Hub, log *zap.Logger) *RedisBus {
	return &RedisBus{
		client:    client,
		hub:       hub,
		log:       log,
		ready:     make(chan struct{}),
		retryBase: 500 * time.Millisecond,
		retryMax:  30 * time.Second,
	}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (b *RedisBus) Publish(ctx context.Context, e Event) {
	if !b.relaying() {
		b.hub.Dispatch(e)
	}

	payload, err := json.Marshal(e)
	if err == nil {
		err = b.client.Publish(ctx, redisEventChannel, payload).Err()
	}
	if err != nil && b.relaying() {
		// local consumers still get the event
		b.log.Warn("redis publish failed, dispatching locally", zap.Error(err))
		b.hub.Dispatch(e)
	}
}

func (b *RedisBus) Subscribe(f Filter) *Subscription {
	return b.hub.Subscribe(f)
}

// Ready is closed once the Redis subscription is confirmed.
func (b *RedisBus) Ready() <-chan struct{} {
	return b.ready
}

func (b *RedisBus) relaying() bool {
	select {
	case <-b.ready:
		return true
	default:
		return false
	}
}

// Run blocks relaying Redis messages until ctx is done. The initial subscribe is
// retried with exponential backoff; once subscribed, go-redis reconnects by itself.
func (b *RedisBus) Run(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		ps := b.client.Subscribe(ctx, redisEventChannel)
		_, err := ps.Receive(ctx)
		if err == nil {
			defer ps.Close()
			return b.relay(ctx, ps)
		}
		_ = ps.Close()

		delay := b.retryBase * time.Duration(1<<min(attempt, 16))
		if delay > b.retryMax {
			delay = b.retryMax
		}
		b.log.Warn("redis subscribe failed, retrying",
			zap.Error(err), zap.Int("attempt", attempt+1), zap.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *RedisBus) relay(ctx context.Context, ps *redis.PubSub) error {
	b.readyOnce.Do(func() { close(b.ready) })
	b.log.Info("redis event relay subscribed", zap.String("channel", redisEventChannel))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				b.log.Warn("dropping malformed event", zap.Error(err))
				continue
			}
			b.hub.Dispatch(e)
		}
	}
}
