// services/stream_service.go
package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"creator-portal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultKeepAlive = 15 * time.Second

// StreamService pushes live snapshots to the creator dashboard, the admin queue and
// the navbar. Each stream subscribes before sending its first snapshot so no change
// between the two is missed, then re-reads the store on every matching event.
type StreamService struct {
	DB        *gorm.DB
	Bus       EventBus
	Log       *zap.Logger
	KeepAlive time.Duration
}

func NewStreamService(db *gorm.DB, bus EventBus, log *zap.Logger) *StreamService {
	return &StreamService{DB: db, Bus: bus, Log: log, KeepAlive: defaultKeepAlive}
}

type snapshotFunc func(ctx context.Context) (interface{}, error)

// StreamMyApplication emits "application" events carrying the caller's ApplicationView.
func (s *StreamService) StreamMyApplication(c *fiber.Ctx) error {
	who, _ := utils.IdentityFrom(c)
	userID := who.UserID

	return s.stream(c, "application",
		Filter{UserID: userID, Types: []EventType{EventApplicationUpdated}},
		func(ctx context.Context) (interface{}, error) {
			return loadView(s.DB.WithContext(ctx), userID)
		})
}

// StreamAdminQueue emits "queue" events carrying the full review queue.
func (s *StreamService) StreamAdminQueue(c *fiber.Ctx) error {
	apps := &ApplicationService{DB: s.DB, Log: s.Log}
	return s.stream(c, "queue",
		Filter{Types: []EventType{EventApplicationUpdated}},
		func(ctx context.Context) (interface{}, error) {
			return apps.List(ctx, ApplicationFilter{})
		})
}

// StreamMyNotifications emits "notifications" events carrying the caller's counts and
// latest items.
func (s *StreamService) StreamMyNotifications(c *fiber.Ctx) error {
	who, _ := utils.IdentityFrom(c)
	userID := who.UserID
	notes := &NotificationService{DB: s.DB, Log: s.Log}

	return s.stream(c, "notifications",
		Filter{UserID: userID, Types: []EventType{EventNotificationCreated}},
		func(ctx context.Context) (interface{}, error) {
			counts, err := notes.Counts(ctx, userID)
			if err != nil {
				return nil, err
			}
			items, err := notes.List(ctx, userID, false, 10)
			if err != nil {
				return nil, err
			}
			return fiber.Map{"counts": counts, "items": items}, nil
		})
}

func (s *StreamService) stream(c *fiber.Ctx, name string, f Filter, snapshot snapshotFunc) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	sub := s.Bus.Subscribe(f)
	log := s.Log.With(zap.String("stream", name), zap.String("user_id", f.UserID))

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		utils.ActiveSubscriptions.Inc()
		defer utils.ActiveSubscriptions.Dec()
		defer sub.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		send := func() bool {
			data, err := snapshot(ctx)
			if err != nil {
				log.Warn("snapshot failed", zap.Error(err))
				return true
			}
			if err := writeSSE(w, name, data); err != nil {
				return false
			}
			return w.Flush() == nil
		}

		if !send() {
			return
		}

		keepAlive := s.KeepAlive
		if keepAlive <= 0 {
			keepAlive = defaultKeepAlive
		}
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case _, ok := <-sub.C:
				if !ok {
					return
				}
				// coalesce a burst into one snapshot
				drain(sub.C)
				if !send() {
					log.Debug("client disconnected")
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": keepalive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					log.Debug("client disconnected")
					return
				}
			}
		}
	})

	return nil
}

func drain(ch <-chan Event) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// writeSSE writes one named server-sent event with a JSON data line.
func writeSSE(w *bufio.Writer, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
