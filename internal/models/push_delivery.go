package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PushDeliveryStatusSent   = "sent"
	PushDeliveryStatusFailed = "failed"
)

// PushDelivery records the outcome of a single push attempt.
type PushDelivery struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	ContactID   string            `gorm:"size:64;index" json:"contact_id"`
	StudentID   string            `gorm:"size:64" json:"student_id,omitempty"`
	TokenSuffix string            `gorm:"size:16" json:"token_suffix"`
	Type        string            `gorm:"size:64;index" json:"type"`
	Title       string            `gorm:"size:255" json:"title"`
	Body        string            `gorm:"type:text" json:"body"`
	Data        datatypes.JSONMap `gorm:"type:json" json:"data"`
	Status      string            `gorm:"size:16;not null" json:"status"`
	Error       string            `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
