// services/events.go
package services

import (
	"context"
	"sync"
	"time"

	"creator-portal/models"

	"go.uber.org/zap"
)

type EventType string

const (
	EventApplicationUpdated  EventType = "application.updated"
	EventNotificationCreated EventType = "notification.created"
	EventMissionCreated      EventType = "mission.created"
)

// Event tells subscribers that a record changed. It carries no snapshot: consumers
// re-read the store, so a dropped event is healed by the next one.
type Event struct {
	Type     EventType     `json:"type"`
	UserID   string        `json:"user_id,omitempty"` // owner; empty means broadcast
	RecordID string        `json:"record_id,omitempty"`
	Status   models.Status `json:"status,omitempty"`
	At       time.Time     `json:"at"`
}

// Filter selects events for one consumer. An empty UserID means all records (admin).
type Filter struct {
	UserID string
	Types  []EventType
}

func (f Filter) Match(e Event) bool {
	if f.UserID != "" && e.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// EventBus is the push side of status synchronization.
type EventBus interface {
	Publish(ctx context.Context, e Event)
	Subscribe(f Filter) *Subscription
}

const subscriptionBuffer = 16

// Subscription is a live feed of matching events. Close is the only way to cancel it.
type Subscription struct {
	C <-chan Event

	ch     chan Event
	id     uint64
	filter Filter
	hub    *Hub
	once   sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s.id) })
}

// Hub fans events out to in-process subscribers. A full subscriber buffer drops the
// event for that subscriber only.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	log    *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{subs: make(map[uint64]*Subscription), log: log}
}

func (h *Hub) Subscribe(f Filter) *Subscription {
	ch := make(chan Event, subscriptionBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{C: ch, ch: ch, id: h.nextID, filter: f, hub: h}
	h.subs[sub.id] = sub
	return sub
}

func (h *Hub) Publish(ctx context.Context, e Event) {
	h.Dispatch(e)
}

// Dispatch delivers e to every matching local subscriber without blocking.
func (h *Hub) Dispatch(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.filter.Match(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			h.log.Debug("subscriber buffer full, event dropped",
				zap.Uint64("subscription", sub.id), zap.String("type", string(e.Type)))
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}
