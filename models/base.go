package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// Migrate creates or updates every table the portal owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&CreatorProfile{},
		&CreatorCard{},
		&Mission{},
		&MissionAcceptance{},
		&Notification{},
	)
}
