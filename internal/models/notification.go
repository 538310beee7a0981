package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a persisted back-office event. Polling clients read these;
// websocket clients also get them pushed.
type Notification struct {
	ID        string         `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Type      string         `gorm:"type:varchar(64);not null;index" json:"type"`
	Title     string         `gorm:"not null" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	Payload   datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	Audience  Role           `gorm:"type:varchar(16);index" json:"audience,omitempty"` // empty = everyone
	ReadAt    *time.Time     `json:"read_at"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
