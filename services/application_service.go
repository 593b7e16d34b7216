// services/application_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"strings"
	"time"

	"creator-portal/models"
	"creator-portal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxAvatarSize = 5 * 1024 * 1024 // 5MB

	cardCodeAttempts = 5
)

// newCardCode is replaced in tests to force collisions.
var newCardCode = NewCardCode

type ApplicationService struct {
	DB     *gorm.DB
	Bus    EventBus
	Mailer utils.Mailer
	Store  utils.ObjectStore
	Log    *zap.Logger
}

func NewApplicationService(db *gorm.DB, bus EventBus, mailer utils.Mailer, store utils.ObjectStore, log *zap.Logger) *ApplicationService {
	return &ApplicationService{DB: db, Bus: bus, Mailer: mailer, Store: store, Log: log}
}

type SubmitApplicationRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	Handle    string `json:"handle" validate:"required,max=64"`
	Platform  string `json:"platform" validate:"required,oneof=instagram tiktok youtube twitch x other"`
	Niche     string `json:"niche" validate:"max=80"`
	City      string `json:"city" validate:"max=80"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"max=32"`
	Followers int64  `json:"followers" validate:"gte=0"`
}

// ApplicationView is what every consumer renders: the profile, its card, and the
// effective status (none when nothing has been submitted).
type ApplicationView struct {
	Status  models.Status          `json:"status"`
	Profile *models.CreatorProfile `json:"profile,omitempty"`
	Card    *models.CreatorCard    `json:"card,omitempty"`
}

type ApplicationFilter struct {
	Status models.Status
	Limit  int
}

// Submit files or re-files the caller's application. Profile and card are written in
// one transaction, both ending in pending.
func (s *ApplicationService) Submit(ctx context.Context, who models.Identity, req SubmitApplicationRequest) (*ApplicationView, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	handle := NormalizeHandle(req.Handle)
	if handle == "" {
		return nil, fmt.Errorf("%w: handle is required", ErrValidation)
	}

	var (
		from models.Status
		view ApplicationView
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.CreatorProfile
		err := tx.Where("user_id = ?", who.UserID).First(&profile).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			from = models.StatusNone
			profile = models.CreatorProfile{UserID: who.UserID}
		case err != nil:
			return err
		default:
			from = profile.Status
		}

		if err := models.Transition(from, models.StatusPending); err != nil {
			return err
		}

		profile.Name = titleCase(req.Name)
		profile.Handle = handle
		profile.Platform = req.Platform
		profile.Niche = strings.TrimSpace(req.Niche)
		profile.City = titleCase(req.City)
		profile.Email = strings.ToLower(strings.TrimSpace(req.Email))
		profile.Phone = strings.TrimSpace(req.Phone)
		profile.Followers = req.Followers
		profile.Status = models.StatusPending
		profile.SubmissionCount++
		profile.StatusSeen = false
		profile.EmailNotified = false

		if err := tx.Save(&profile).Error; err != nil {
			return err
		}

		card, err := upsertCardStatus(tx, who.UserID, handle, models.StatusPending)
		if err != nil {
			return err
		}

		view = ApplicationView{Status: profile.Status, Profile: &profile, Card: card}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.StatusTransitionsTotal.WithLabelValues(string(from), string(models.StatusPending)).Inc()
	s.Log.Info("application submitted",
		zap.String("user_id", who.UserID), zap.String("from", string(from)), zap.String("handle", handle))

	s.Bus.Publish(ctx, Event{
		Type:     EventApplicationUpdated,
		UserID:   who.UserID,
		RecordID: view.Profile.ID,
		Status:   models.StatusPending,
	})
	return &view, nil
}

// Get returns the caller's application, or a view with status none.
func (s *ApplicationService) Get(ctx context.Context, userID string) (*ApplicationView, error) {
	return loadView(s.DB.WithContext(ctx), userID)
}

// List returns the admin review queue, most recently updated first.
func (s *ApplicationService) List(ctx context.Context, f ApplicationFilter) ([]ApplicationView, error) {
	query := s.DB.WithContext(ctx).Order("updated_at DESC")
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var profiles []models.CreatorProfile
	if err := query.Find(&profiles).Error; err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return []ApplicationView{}, nil
	}

	userIDs := make([]string, len(profiles))
	for i, p := range profiles {
		userIDs[i] = p.UserID
	}
	var cards []models.CreatorCard
	if err := s.DB.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&cards).Error; err != nil {
		return nil, err
	}
	cardByUser := make(map[string]*models.CreatorCard, len(cards))
	for i := range cards {
		cardByUser[cards[i].UserID] = &cards[i]
	}

	views := make([]ApplicationView, len(profiles))
	for i := range profiles {
		views[i] = ApplicationView{
			Status:  profiles[i].Status,
			Profile: &profiles[i],
			Card:    cardByUser[profiles[i].UserID],
		}
	}
	return views, nil
}

// Review decides a pending application (approved or rejected) on both records
// atomically. The profile row is locked for the decision, so of two concurrent
// reviewers the second sees the first's outcome and gets ErrInvalidTransition.
func (s *ApplicationService) Review(ctx context.Context, admin models.Identity, userID string, to models.Status, note string) (*ApplicationView, error) {
	if to != models.StatusApproved && to != models.StatusRejected {
		return nil, fmt.Errorf("%w: decision must be approved or rejected", ErrValidation)
	}
	return s.decide(ctx, admin, userID, models.StatusPending, to, note)
}

// Revoke demotes an approved creator to rejected.
func (s *ApplicationService) Revoke(ctx context.Context, admin models.Identity, userID, note string) (*ApplicationView, error) {
	return s.decide(ctx, admin, userID, models.StatusApproved, models.StatusRejected, note)
}

func (s *ApplicationService) decide(ctx context.Context, admin models.Identity, userID string, requireFrom, to models.Status, note string) (*ApplicationView, error) {
	var (
		from         models.Status
		view         ApplicationView
		notification models.Notification
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.CreatorProfile
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&profile).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no application for user %s", ErrNotFound, userID)
			}
			return err
		}
		from = profile.Status

		if requireFrom != "" && from != requireFrom {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
		}
		if err := models.Transition(from, to); err != nil {
			return err
		}

		now := time.Now()
		profile.Status = to
		profile.ReviewNote = strings.TrimSpace(note)
		profile.ReviewedByID = admin.UserID
		profile.ReviewedByEmail = admin.Email
		profile.ReviewedAt = &now
		profile.StatusSeen = false
		profile.EmailNotified = false
		if err := tx.Save(&profile).Error; err != nil {
			return err
		}

		card, err := upsertCardStatus(tx, userID, profile.Handle, to)
		if err != nil {
			return err
		}

		notification = statusNotification(&profile)
		if err := tx.Create(&notification).Error; err != nil {
			return err
		}

		view = ApplicationView{Status: to, Profile: &profile, Card: card}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.StatusTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	s.Log.Info("application reviewed",
		zap.String("user_id", userID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reviewer", admin.Email))

	s.Bus.Publish(ctx, Event{Type: EventApplicationUpdated, UserID: userID, RecordID: view.Profile.ID, Status: to})
	s.Bus.Publish(ctx, Event{Type: EventNotificationCreated, UserID: userID, RecordID: notification.ID})

	s.emailDecision(ctx, view.Profile)
	return &view, nil
}

// emailDecision tells the creator about a review. Failures are logged, never returned.
func (s *ApplicationService) emailDecision(ctx context.Context, profile *models.CreatorProfile) {
	if s.Mailer == nil || profile.Email == "" {
		return
	}
	subject, body := decisionEmail(profile)
	if err := s.Mailer.Send(profile.Email, subject, body); err != nil {
		s.Log.Warn("decision email failed", zap.String("user_id", profile.UserID), zap.Error(err))
		return
	}
	if err := s.DB.WithContext(ctx).Model(&models.CreatorProfile{}).
		Where("id = ?", profile.ID).
		Update("email_notified", true).Error; err != nil {
		s.Log.Warn("failed to flag email_notified", zap.String("user_id", profile.UserID), zap.Error(err))
		return
	}
	profile.EmailNotified = true
}

// MarkSeen records that the creator has seen their latest status.
func (s *ApplicationService) MarkSeen(ctx context.Context, userID string) error {
	result := s.DB.WithContext(ctx).Model(&models.CreatorProfile{}).
		Where("user_id = ?", userID).
		Update("status_seen", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: no application on file", ErrNotFound)
	}
	return nil
}

// UploadAvatar stores an image for the caller's profile and returns its URL.
func (s *ApplicationService) UploadAvatar(ctx context.Context, userID, filename, contentType string, body io.Reader) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: avatar must be an image", ErrValidation)
	}

	var profile models.CreatorProfile
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: submit an application first", ErrNotFound)
		}
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".png"
	}
	key := fmt.Sprintf("avatars/%s/%s%s", profile.ID, uuid.NewString(), ext)
	url, err := s.Store.Put(ctx, key, contentType, body)
	if err != nil {
		return "", err
	}

	if err := s.DB.WithContext(ctx).Model(&profile).Update("avatar_url", url).Error; err != nil {
		return "", err
	}

	s.Bus.Publish(ctx, Event{Type: EventApplicationUpdated, UserID: userID, RecordID: profile.ID, Status: profile.Status})
	return url, nil
}

// upsertCardStatus sets the card's status, creating the card (with a fresh code) if
// the identity has none. The existing code is kept otherwise.
func upsertCardStatus(tx *gorm.DB, userID, handle string, status models.Status) (*models.CreatorCard, error) {
	var card models.CreatorCard
	err := tx.Where("user_id = ?", userID).First(&card).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return CreateCard(tx, userID, handle, status)
	case err != nil:
		return nil, err
	}

	card.Status = status
	if err := tx.Save(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// CreateCard inserts a card, drawing a new code when the previous one is taken. Each
// attempt runs in a savepoint so a unique violation leaves the outer tx usable.
func CreateCard(tx *gorm.DB, userID, handle string, status models.Status) (*models.CreatorCard, error) {
	var err error
	for attempt := 0; attempt < cardCodeAttempts; attempt++ {
		card := models.CreatorCard{UserID: userID, Code: newCardCode(handle), Status: status}
		err = tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(&card).Error
		})
		if err == nil {
			return &card, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: could not allocate a card code: %v", ErrConflict, err)
}

func loadView(db *gorm.DB, userID string) (*ApplicationView, error) {
	var profile models.CreatorProfile
	if err := db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ApplicationView{Status: models.StatusNone}, nil
		}
		return nil, err
	}

	view := &ApplicationView{Status: profile.Status, Profile: &profile}
	var card models.CreatorCard
	err := db.Where("user_id = ?", userID).First(&card).Error
	switch {
	case err == nil:
		view.Card = &card
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return view, nil
}

func statusNotification(p *models.CreatorProfile) models.Notification {
	n := models.Notification{
		UserID:      p.UserID,
		Kind:        models.NotificationApplicationStatus,
		ReferenceID: p.ID,
	}
	switch p.Status {
	case models.StatusApproved:
		n.Title = "You're in! Your creator application was approved"
		n.Body = "Your creator card is active and missions are now open to you."
	case models.StatusRejected:
		n.Title = "Your creator application was not approved"
		n.Body = "You can update your details and apply again."
	default:
		n.Title = "Your creator application is under review"
	}
	if p.ReviewNote != "" {
		n.Body = strings.TrimSpace(n.Body + " Note from the team: " + p.ReviewNote)
	}
	return n
}

func decisionEmail(p *models.CreatorProfile) (string, string) {
	n := statusNotification(p)
	body := fmt.Sprintf("<p>Hi %s,</p><p>%s</p><p>%s</p>",
		html.EscapeString(p.Name), html.EscapeString(n.Title), html.EscapeString(n.Body))
	return n.Title, body
}

// --- HTTP handlers ---

// GetMyApplication returns the caller's application snapshot.
func (s *ApplicationService) GetMyApplication(c *fiber.Ctx) error {
	who, _ := utils.IdentityFrom(c)
	view, err := s.Get(c.UserContext(), who.UserID)
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(view)
}

// SubmitMyApplication creates the application or resubmits a rejected one.
func (s *ApplicationService) SubmitMyApplication(c *fiber.Ctx) error {
	who, _ := utils.IdentityFrom(c)

	var req SubmitApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Email == "" {
		req.Email = who.Email
	}
	if req.Name == "" {
		req.Name = who.Name
	}

	view, err := s.Submit(c.UserContext(), who, req)
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

func (s *ApplicationService) UploadMyAvatar(c *fiber.Ctx) error {
	who, _ := utils.IdentityFrom(c)

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file is required"})
	}
	if fileHeader.Size > maxAvatarSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar too large (max 5MB)"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to read avatar"})
	}
	defer file.Close()

	url, err := s.UploadAvatar(c.UserContext(), who.UserID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(fiber.Map{"avatar_url": url})
}

func (s *ApplicationService) MarkMyApplicationSeen(c *fiber.Ctx) error {
	who, _ := utils.IdentityFrom(c)
	if err := s.MarkSeen(c.UserContext(), who.UserID); err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(fiber.Map{"message": "OK", "status_seen": true})
}

// ListApplications is the admin review queue. ?status=pending|approved|rejected, ?limit=N
func (s *ApplicationService) ListApplications(c *fiber.Ctx) error {
	f := ApplicationFilter{Limit: c.QueryInt("limit", 0)}
	if raw := strings.ToLower(c.Query("status")); raw != "" && raw != "all" {
		status := models.Status(raw)
		if !status.Valid() || status == models.StatusNone {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status filter"})
		}
		f.Status = status
	}

	views, err := s.List(c.UserContext(), f)
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(views)
}

func (s *ApplicationService) GetApplication(c *fiber.Ctx) error {
	view, err := s.Get(c.UserContext(), c.Params("user_id"))
	if err != nil {
		return respondError(c, s.Log, err)
	}
	if view.Status == models.StatusNone {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Application not found"})
	}
	return c.JSON(view)
}

type reviewRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

func (s *ApplicationService) ApproveApplication(c *fiber.Ctx) error {
	return s.reviewHandler(c, func(ctx context.Context, admin models.Identity, userID, note string) (*ApplicationView, error) {
		return s.Review(ctx, admin, userID, models.StatusApproved, note)
	})
}

func (s *ApplicationService) RejectApplication(c *fiber.Ctx) error {
	return s.reviewHandler(c, func(ctx context.Context, admin models.Identity, userID, note string) (*ApplicationView, error) {
		return s.Review(ctx, admin, userID, models.StatusRejected, note)
	})
}

func (s *ApplicationService) RevokeApplication(c *fiber.Ctx) error {
	return s.reviewHandler(c, s.Revoke)
}

func (s *ApplicationService) reviewHandler(c *fiber.Ctx, apply func(context.Context, models.Identity, string, string) (*ApplicationView, error)) error {
	admin, _ := utils.IdentityFrom(c)

	var req reviewRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	view, err := apply(c.UserContext(), admin, c.Params("user_id"), req.Note)
	if err != nil {
		return respondError(c, s.Log, err)
	}
	return c.JSON(view)
}
