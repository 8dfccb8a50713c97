package notifications

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Notification is the in-app row a user sees in their notification list
type Notification struct {
	ID        uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	Kind      string         `json:"kind" gorm:"not null;index"`
	TaskID    *uuid.UUID     `json:"task_id,omitempty" gorm:"type:uuid;index"`
	Title     string         `json:"title" gorm:"not null"`
	Body      string         `json:"body"`
	Payload   datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName pins the table name used by gorm
func (Notification) TableName() string {
	return "notifications"
}

// ChannelStatus is the outcome of one delivery channel
type ChannelStatus struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// Delivery channel names
const (
	ChannelInApp    = "in_app"
	ChannelRealtime = "realtime"
	ChannelPush     = "push"
)

// Delivery statuses
const (
	StatusDelivered = "delivered"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)
