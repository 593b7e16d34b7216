// services/mission_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"creator-portal/models"
	"creator-portal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MissionService struct {
	DB  *gorm.DB
	Bus EventBus
	Log *zap.Logger
}

func NewMissionService(db *gorm.DB, bus EventBus, log *zap.Logger) *MissionService {
	return &MissionService{DB: db, Bus: bus, Log: log}
}

type CreateMissionRequest struct {
	Brand    string  `json:"brand" validate:"required,max=120"`
	Task     string  `json:"task" validate:"required,max=2000"`
	Reward   float64 `json:"reward" validate:"gt=0"`
	Deadline string  `json:"deadline" validate:"required,max=64"`
	Target   string  `json:"target" validate:"omitempty,oneof=all_approved"`
}

// MyMissions is the creator's view of what they took on and what it paid.
type MyMissions struct {
	Acceptances []models.MissionAcceptance `json:"acceptances"`
	TotalEarned float64                    `json:"total_earned"`
	Completed   int                        `json:"completed"`
}

var deadlineLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
	"Jan 2, 2006",
}

// ParseDeadline reads an admin-entered deadline. Date-only values mean the end of that
// day in UTC. ok is false when nothing matched; the raw text is kept either way.
func ParseDeadline(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range deadlineLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if layout != time.RFC3339 {
			t = t.Add(24*time.Hour - time.Second)
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}

// Create stores a mission and drops a notification on every approved creator.
func (s *MissionService) Create(ctx context.Context, admin models.Identity, req CreateMissionRequest) (*models.Mission, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	mission := models.Mission{
		Brand:          strings.TrimSpace(req.Brand),
		Task:           strings.TrimSpace(req.Task),
		Reward:         req.Reward,
		Deadline:       strings.TrimSpace(req.Deadline),
		Target:         models.MissionTargetAllApproved,
		Status:         models.MissionStatusOpen,
		CreatedByID:    admin.UserID,
		CreatedByEmail: admin.Email,
	}
	if t, ok := ParseDeadline(req.Deadline); ok {
		if t.Before(time.Now()) {
			return nil, fmt.Errorf("%w: deadline is in the past", ErrValidation)
		}
		mission.DeadlineAt = &t
	}

	var recipients []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&mission).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.CreatorProfile{}).
			Where("status = ?", models.StatusApproved).
			Pluck("user_id", &recipients).Error; err != nil {
			return err
		}
		if len(recipients) == 0 {
			return nil
		}

		notes := make([]models.Notification, len(recipients))
		for i, userID := range recipients {
			notes[i] = models.Notification{
				UserID:      userID,
				Kind:        models.NotificationMission,
				Title:       fmt.Sprintf("New mission from %s", mission.Brand),
				Body:        fmt.Sprintf("%s Reward: %.2f. Deadline: %s.", mission.Task, mission.Reward, mission.Deadline),
				ReferenceID: mission.ID,
			}
		}
		return tx.CreateInBatches(&notes, 100).Error
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("mission created",
		zap.String("mission_id", mission.ID),
		zap.String("brand", mission.Brand),
		zap.Int("recipients", len(recipients)))

	s.Bus.Publish(ctx, Event{Type: EventMissionCreated, RecordID: mission.ID})
	for _, userID := range recipients {
		s.Bus.Publish(ctx, Event{Type: EventNotificationCreated, UserID: userID, RecordID: mission.ID})
	}
	return &mission, nil
}

// ListOpen returns open, unexpired missions. Only approved creators may see them.
func (s *MissionService) ListOpen(ctx context.Context, userID string) ([]models.Mission, error) {
	if err := s.requireApproved(ctx, userID); err != nil {
		return nil, err
	}

	var missions []models.Mission
	err := s.DB.WithContext(ctx).
		Where("status = ?", models.MissionStatusOpen).
		Where("deadline_at IS NULL OR deadline_at > ?", time.Now().UTC()).
		Order("created_at DESC").
		Find(&missions).Error
	if err != nil {
		return nil, err
	}
	return missions, nil
}

// ListAll is the admin listing with acceptance counts filled in.
func (s *MissionService) ListAll(ctx context.Context, status models.MissionStatus) ([]models.Mission, error) {
	query := s.DB.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var missions []models.Mission
	if err := query.Find(&missions).Error; err != nil {
		return nil, err
	}
	if len(missions) == 0 {
		return missions, nil
	}

	ids := make([]string, len(missions))
	for i, m := range missions {
		ids[i] = m.ID
	}
	var rows []struct {
		MissionID string
		Count     int64
	}
	if err := s.DB.WithContext(ctx).Model(&models.MissionAcceptance{}).
		Select("mission_id, COUNT(*) AS count").
		Where("mission_id IN ?", ids).
		Group("mission_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.MissionID] = r.Count
	}
	for i := range missions {
		missions[i].AcceptedCount = counts[missions[i].ID]
	}
	return missions, nil
}

// Accept records that an approved creator takes on an open mission. Accepting twice
// is a conflict.
func (s *MissionService) Accept(ctx context.Context, userID, missionID string) (*models.MissionAcceptance, error) {
	var acceptance models.MissionAcceptance
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireApproved(tx, userID); err != nil {
			return err
		}

		var mission models.Mission
		if err := tx.Where("id = ?", missionID).First(&mission).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: mission %s", ErrNotFound, missionID)
			}
			return err
		}
		if mission.Status != models.MissionStatusOpen || mission.Expired(time.Now()) {
			return fmt.Errorf("%w: mission is no longer open", ErrConflict)
		}

		acceptance = models.MissionAcceptance{
			MissionID: missionID,
			UserID:    userID,
			Status:    models.AcceptanceStatusAccepted,
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&acceptance)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: mission already accepted", ErrConflict)
		}
		acceptance.Mission = &mission
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("mission accepted", zap.String("mission_id", missionID), zap.String("user_id", userID))
	return &acceptance, nil
}

// Complete marks an acceptance done, snapshots the reward and tells the creator.
func (s *MissionService) Complete(ctx context.Context, acceptanceID string) (*models.MissionAcceptance, error) {
	var (
		acceptance   models.MissionAcceptance
		notification models.Notification
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Mission").Where("id = ?", acceptanceID).First(&acceptance).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: acceptance %s", ErrNotFound, acceptanceID)
			}
			return err
		}
		if acceptance.Status == models.AcceptanceStatusCompleted {
			return fmt.Errorf("%w: already completed", ErrConflict)
		}
		if acceptance.Mission == nil {
			return fmt.Errorf("%w: mission for acceptance %s", ErrNotFound, acceptanceID)
		}

		now := time.Now()
		acceptance.Status = models.AcceptanceStatusCompleted
		acceptance.RewardPaid = acceptance.Mission.Reward
		acceptance.CompletedAt = &now
		if err := tx.Model(&acceptance).Updates(map[string]interface{}{
			"status":       acceptance.Status,
			"reward_paid":  acceptance.RewardPaid,
			"completed_at": acceptance.CompletedAt,
		}).Error; err != nil {
			return err
		}

		notification = models.Notification{
			UserID:      acceptance.UserID,
			Kind:        models.NotificationMission,
			Title:       fmt.Sprintf("Mission complete: %s", acceptance.Mission.Brand),
			Body:        fmt.Sprintf("You earned %.2f.", acceptance.RewardPaid),
			ReferenceID: acceptance.MissionID,
		}
		return tx.Create(&notification).Error
	})
	if err != nil {
		return nil, err
	}

	s.Bus.Publish(ctx, Event{Type: EventNotificationCreated, UserID: acceptance.UserID, RecordID: notification.ID})
	return &acceptance, nil
}

// SetStatus lets an admin close or reopen a mission.
func (s *MissionService) SetStatus(ctx context.Context, missionID string, status models.MissionStatus) (*models.Mission, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown mission status %q", ErrValidation, status)
	}

	var mission models.Mission
	if err := s.DB.WithContext(ctx).Where("id = ?", missionID).First(&mission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: mission %s", ErrNotFound, missionID)
		}
		return nil, err
	}
	if status == models.MissionStatusOpen && mission.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: cannot reopen a mission past its deadline", ErrConflict)
	}
	if err := s.DB.WithContext(ctx).Model(&mission).Update("status", status).Error; err != nil {
		return nil, err
	}
	mission.Status = status
	return &mission, nil
}

func (s *MissionService) Acceptances(ctx context.Context, missionID string) ([]models.MissionAcceptance, error) {
	var items []models.MissionAcceptance
	if err := s.DB.WithContext(ctx).
		Where("mission_id = ?", missionID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *MissionService) MyMissions(ctx context.Context, userID string) (*MyMissions, error) {
	var items []models.MissionAcceptance
	if err := s.DB.WithContext(ctx).Preload("Mission").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}

	out := &MyMissions{Acceptances: items}
	for _, a := range items {
		if a.Status == models.AcceptanceStatusCompleted {
			out.Completed++
			out.TotalEarned += a.RewardPaid
		}
	}
	return out, nil
}

// ExpireOverdue moves open missions past their deadline to expired. Deadlines are
// stored in UTC.
func (s *MissionService) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	result := s.DB.WithContext(ctx).Model(&models.Mission{}).
		Where("status = ? AND deadline_at IS NOT NULL AND deadline_at <= ?", models.MissionStatusOpen, now.UTC()).
		Update("status", models.MissionStatusExpired)
	return result.RowsAffected, result.Error
}

func (s *MissionService) requireApproved(ctx context.Context, userID string) error {
	return requireApproved(s.DB.WithContext(ctx), userID)
}

func requireApproved(db *gorm.DB, userID string) error {
	var profile models.CreatorProfile
	if err := db.Select("status").Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: missions are open to approved creators only", ErrForbidden)
		}
		return err
	}
	if profile.Status != models.StatusApproved {
		return fmt.Errorf("%w: missions are open to approved creators only", ErrForbidden)
	}
	return nil
}

// --- HTTP handlers ---

func (s *MissionService) ListOpenMissions(c *fiber.Ctx) error {
	who, _ := utils.IdentityFrom(c)
	missions, err := s.ListOpen(c.UserContext(), who.UserID)
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(missions)
}

func (s *MissionService) AcceptMission(c *fiber.Ctx) error {
	who, _ := utils.IdentityFrom(c)
	acceptance, err := s.Accept(c.UserContext(), who.UserID, c.Params("id"))
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(acceptance)
}

func (s *MissionService) GetMyMissions(c *fiber.Ctx) error {
	who, _ := utils.IdentityFrom(c)
	out, err := s.MyMissions(c.UserContext(), who.UserID)
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(out)
}

// CreateMission (Admin only)
func (s *MissionService) CreateMission(c *fiber.Ctx) error {
	admin, _ := utils.IdentityFrom(c)

	var req CreateMissionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	mission, err := s.Create(c.UserContext(), admin, req)
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(mission)
}

func (s *MissionService) ListMissions(c *fiber.Ctx) error {
	var status models.MissionStatus
	if raw := strings.ToLower(c.Query("status")); raw != "" && raw != "all" {
		status = models.MissionStatus(raw)
		if !status.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status filter"})
		}
	}
	missions, err := s.ListAll(c.UserContext(), status)
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(missions)
}

func (s *MissionService) UpdateMissionStatus(c *fiber.Ctx) error {
	var req struct {
		Status models.MissionStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	mission, err := s.SetStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(mission)
}

func (s *MissionService) ListMissionAcceptances(c *fiber.Ctx) error {
	items, err := s.Acceptances(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(items)
}

func (s *MissionService) CompleteAcceptance(c *fiber.Ctx) error {
	acceptance, err := s.Complete(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(acceptance)
}
