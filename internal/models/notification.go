package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Notification types produced by the backend.
const (
	NotificationPaymentFailed    = "payment_failed"
	NotificationAnalysisComplete = "analysis_complete"
	NotificationAnalysisFailed   = "analysis_failed"
	NotificationSubscription     = "subscription"
)

// Notification is a user-facing message. Rows are only ever visible to their owner.
type Notification struct {
	ID        string                          `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string                          `json:"user_id" gorm:"type:uuid;index;not null"`
	Type      string                          `json:"type" gorm:"not null"`
	Title     string                          `json:"title"`
	Message   string                          `json:"message"`
	Read      bool                            `json:"read" gorm:"index;not null;default:false"`
	ReadAt    *time.Time                      `json:"read_at"`
	Priority  string                          `json:"priority" gorm:"not null;default:'normal'"`
	ActionURL string                          `json:"action_url"`
	Metadata  datatypes.JSONType[EventDetails] `json:"metadata"`
	CreatedAt time.Time                       `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	assignID(&n.ID)
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	return nil
}
