package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformYouTube   = "youtube"
	PlatformTwitch    = "twitch"
	PlatformX         = "x"
	PlatformOther     = "other"
)

// CreatorProfile is the primary per-user application record.
type CreatorProfile struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"`
	UserID    string `json:"user_id" gorm:"uniqueIndex;not null;size:128"`
	Name      string `json:"name" gorm:"not null"`
	Handle    string `json:"handle" gorm:"index;not null"`
	Platform  string `json:"platform" gorm:"size:32;not null"`
	Niche     string `json:"niche"`
	City      string `json:"city"`
	Email     string `json:"email" gorm:"not null"`
	Phone     string `json:"phone"`
	Followers int64  `json:"followers" gorm:"default:0"`
	AvatarURL string `json:"avatar_url,omitempty" gorm:"type:text"`

	Status          Status `json:"status" gorm:"size:16;index;not null;default:'pending'"`
	SubmissionCount int    `json:"submission_count" gorm:"default:0"`

	// Review audit trail
	ReviewNote      string     `json:"review_note,omitempty" gorm:"type:text"`
	ReviewedByID    string     `json:"reviewed_by_id,omitempty"`
	ReviewedByEmail string     `json:"reviewed_by_email,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`

	// Notification flags
	StatusSeen    bool `json:"status_seen" gorm:"default:false"`
	EmailNotified bool `json:"email_notified" gorm:"default:false"`

	Timestamps
}

func (p *CreatorProfile) BeforeCreate(tx *gorm.DB) error {
	newID(&p.ID)
	return nil
}
