package workers

import (
	"context"
	"errors"
	"time"

	"creator-portal/models"
	"creator-portal/services"
	"creator-portal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CardReconciler heals profile/card pairs that drifted apart, e.g. rows written before
// both records were updated in one transaction. The profile is authoritative.
type CardReconciler struct {
	DB  *gorm.DB
	Bus services.EventBus
	Log *zap.Logger
}

func NewCardReconciler(db *gorm.DB, bus services.EventBus, log *zap.Logger) *CardReconciler {
	return &CardReconciler{DB: db, Bus: bus, Log: log}
}

type RepairReport struct {
	Checked  int      `json:"checked"`
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Failed   int      `json:"failed"`
	Repaired []string `json:"repaired_user_ids"`
}

type driftRow struct {
	UserID        string
	Handle        string
	ProfileStatus models.Status
	CardID        *string
	CardStatus    *models.Status
}

// ReconcileOnce runs one pass and reports what it changed.
func (r *CardReconciler) ReconcileOnce(ctx context.Context) (RepairReport, error) {
	var report RepairReport

	var rows []driftRow
	err := r.DB.WithContext(ctx).
		Table("creator_profiles AS p").
		Select("p.user_id, p.handle, p.status AS profile_status, c.id AS card_id, c.status AS card_status").
		Joins("LEFT JOIN creator_cards AS c ON c.user_id = p.user_id AND c.deleted_at IS NULL").
		Where("p.deleted_at IS NULL").
		Where("c.id IS NULL OR c.status <> p.status").
		Scan(&rows).Error
	if err != nil {
		return report, err
	}
	report.Checked = len(rows)

	for _, row := range rows {
		created, err := r.repair(ctx, row)
		if err != nil {
			report.Failed++
			r.Log.Error("card repair failed", zap.String("user_id", row.UserID), zap.Error(err))
			continue
		}
		if created {
			report.Created++
		} else {
			report.Updated++
		}
		report.Repaired = append(report.Repaired, row.UserID)
		utils.CardRepairsTotal.Inc()

		r.Bus.Publish(ctx, services.Event{
			Type:   services.EventApplicationUpdated,
			UserID: row.UserID,
			Status: row.ProfileStatus,
		})
	}

	if report.Checked > 0 {
		r.Log.Info("card reconcile pass",
			zap.Int("drifted", report.Checked),
			zap.Int("created", report.Created),
			zap.Int("updated", report.Updated),
			zap.Int("failed", report.Failed))
	}
	return report, nil
}

// repair re-reads the profile inside the transaction so a concurrent review is not
// overwritten with a stale status.
func (r *CardReconciler) repair(ctx context.Context, row driftRow) (bool, error) {
	created := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.CreatorProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", row.UserID).First(&profile).Error; err != nil {
			return err
		}

		var card models.CreatorCard
		err := tx.Where("user_id = ?", row.UserID).First(&card).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			_, err := services.CreateCard(tx, profile.UserID, profile.Handle, profile.Status)
			return err
		case err != nil:
			return err
		}

		if card.Status == profile.Status {
			return nil
		}
		return tx.Model(&card).Update("status", profile.Status).Error
	})
	return created, err
}

// Start runs ReconcileOnce every interval until ctx is cancelled.
func (r *CardReconciler) Start(ctx context.Context, interval time.Duration) {
	r.Log.Info("card reconciler started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Log.Info("card reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx); err != nil {
				// retry next tick
				r.Log.Error("card reconcile pass failed", zap.Error(err))
			}
		}
	}
}
