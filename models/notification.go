package models

import "gorm.io/gorm"

type NotificationKind string

const (
	NotificationApplicationStatus NotificationKind = "application_status"
	NotificationMission           NotificationKind = "mission"
)

// Notification is one item in a user's navbar notification center.
type Notification struct {
	ID          string           `json:"id" gorm:"primaryKey;size:36"`
	UserID      string           `json:"user_id" gorm:"index;not null;size:128"`
	Kind        NotificationKind `json:"kind" gorm:"size:32;not null"`
	Title       string           `json:"title" gorm:"not null"`
	Body        string           `json:"body" gorm:"type:text"`
	ReferenceID string           `json:"reference_id,omitempty"`
	Viewed      bool             `json:"viewed" gorm:"default:false;index"`

	Timestamps
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	newID(&n.ID)
	return nil
}
