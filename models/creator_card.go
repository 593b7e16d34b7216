package models

import "gorm.io/gorm"

// CreatorCard is the secondary per-user record. The unique user_id index keeps it at
// one card per identity; Status mirrors CreatorProfile.Status.
type CreatorCard struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	UserID string `json:"user_id" gorm:"uniqueIndex;not null;size:128"`
	Code   string `json:"code" gorm:"uniqueIndex;not null;size:32"`
	Status Status `json:"status" gorm:"size:16;not null;default:'pending'"`

	Timestamps
}

func (c *CreatorCard) BeforeCreate(tx *gorm.DB) error {
	newID(&c.ID)
	return nil
}
