// services/notification_service.go
package services

import (
	"context"
	"fmt"

	"creator-portal/models"
	"creator-portal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type NotificationService struct {
	DB  *gorm.DB
	Bus EventBus
	Log *zap.Logger
}

func NewNotificationService(db *gorm.DB, bus EventBus, log *zap.Logger) *NotificationService {
	return &NotificationService{DB: db, Bus: bus, Log: log}
}

// NotificationCounts feeds the navbar badge.
type NotificationCounts struct {
	Unviewed int64 `json:"unviewed"`
	Total    int64 `json:"total"`
}

const defaultNotificationLimit = 50

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unviewedOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultNotificationLimit
	}
	query := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if unviewedOnly {
		query = query.Where("viewed = ?", false)
	}

	var items []models.Notification
	if err := query.Order("created_at DESC").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *NotificationService) Counts(ctx context.Context, userID string) (NotificationCounts, error) {
	return notificationCounts(s.DB.WithContext(ctx), userID)
}

func notificationCounts(db *gorm.DB, userID string) (NotificationCounts, error) {
	var counts NotificationCounts
	if err := db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&counts.Total).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&models.Notification{}).
		Where("user_id = ? AND viewed = ?", userID, false).
		Count(&counts.Unviewed).Error; err != nil {
		return counts, err
	}
	return counts, nil
}

// MarkViewed flags one notification as viewed. Only the owner may do so.
func (s *NotificationService) MarkViewed(ctx context.Context, userID, id string) error {
	result := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("viewed", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	s.Bus.Publish(ctx, Event{Type: EventNotificationCreated, UserID: userID, RecordID: id})
	return nil
}

// MarkAllViewed clears the caller's badge and reports how many rows changed.
func (s *NotificationService) MarkAllViewed(ctx context.Context, userID string) (int64, error) {
	result := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND viewed = ?", userID, false).
		Update("viewed", true)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		s.Bus.Publish(ctx, Event{Type: EventNotificationCreated, UserID: userID})
	}
	return result.RowsAffected, nil
}

// --- HTTP handlers ---

func (s *NotificationService) ListMyNotifications(c *fiber.Ctx) error {
	who, _ := utils.IdentityFrom(c)
	items, err := s.List(c.UserContext(), who.UserID, c.QueryBool("unviewed", false), c.QueryInt("limit", defaultNotificationLimit))
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(items)
}

func (s *NotificationService) GetMyCounts(c *fiber.Ctx) error {
	who, _ := utils.IdentityFrom(c)
	counts, err := s.Counts(c.UserContext(), who.UserID)
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(counts)
}

func (s *NotificationService) MarkNotificationViewed(c *fiber.Ctx) error {
	who, _ := utils.IdentityFrom(c)
	if err := s.MarkViewed(c.UserContext(), who.UserID, c.Params("id")); err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(fiber.Map{"message": "OK"})
}

func (s *NotificationService) MarkAllMyNotificationsViewed(c *fiber.Ctx) error {
	who, _ := utils.IdentityFrom(c)
	n, err := s.MarkAllViewed(c.UserContext(), who.UserID)
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(fiber.Map{"message": "OK", "updated": n})
}
