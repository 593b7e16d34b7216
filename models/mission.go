package models

import (
	"time"

	"gorm.io/gorm"
)

type MissionStatus string

const (
	MissionStatusOpen    MissionStatus = "open"
	MissionStatusClosed  MissionStatus = "closed"
	MissionStatusExpired MissionStatus = "expired"
)

func (s MissionStatus) Valid() bool {
	switch s {
	case MissionStatusOpen, MissionStatusClosed, MissionStatusExpired:
		return true
	}
	return false
}

// MissionTargetAllApproved broadcasts a mission to every approved creator.
const MissionTargetAllApproved = "all_approved"

type Mission struct {
	ID         string        `json:"id" gorm:"primaryKey;size:36"`
	Brand      string        `json:"brand" gorm:"not null"`
	Task       string        `json:"task" gorm:"type:text;not null"`
	Reward     float64       `json:"reward" gorm:"not null"`
	Deadline   string        `json:"deadline"`               // as entered by the admin
	DeadlineAt *time.Time    `json:"deadline_at,omitempty"` // nil when Deadline could not be parsed
	Target     string        `json:"target" gorm:"size:32;not null;default:'all_approved'"`
	Status     MissionStatus `json:"status" gorm:"size:16;index;not null;default:'open'"`

	CreatedByID    string `json:"created_by_id"`
	CreatedByEmail string `json:"created_by_email"`

	AcceptedCount int64 `json:"accepted_count,omitempty" gorm:"-"`

	Timestamps
}

func (m *Mission) BeforeCreate(tx *gorm.DB) error {
	newID(&m.ID)
	return nil
}

// Expired reports whether the parsed deadline is before now.
func (m *Mission) Expired(now time.Time) bool {
	return m.DeadlineAt != nil && m.DeadlineAt.Before(now)
}

type AcceptanceStatus string

const (
	AcceptanceStatusAccepted  AcceptanceStatus = "accepted"
	AcceptanceStatusCompleted AcceptanceStatus = "completed"
)

// MissionAcceptance records one creator taking on one mission.
type MissionAcceptance struct {
	ID          string           `json:"id" gorm:"primaryKey;size:36"`
	MissionID   string           `json:"mission_id" gorm:"uniqueIndex:idx_mission_user;not null;size:36"`
	UserID      string           `json:"user_id" gorm:"uniqueIndex:idx_mission_user;index;not null;size:128"`
	Status      AcceptanceStatus `json:"status" gorm:"size:16;not null;default:'accepted'"`
	RewardPaid  float64          `json:"reward_paid" gorm:"default:0"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`

	Mission *Mission `json:"mission,omitempty" gorm:"foreignKey:MissionID"`

	Timestamps
}

func (a *MissionAcceptance) BeforeCreate(tx *gorm.DB) error {
	newID(&a.ID)
	return nil
}
