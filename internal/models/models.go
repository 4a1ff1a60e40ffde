package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Profile roles.
const (
	RoleUser       = "user"
	RolePro        = "pro"
	RoleEnterprise = "enterprise"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Subscription statuses mirrored from the payment provider.
const (
	SubscriptionActive     = "active"
	SubscriptionPastDue    = "past_due"
	SubscriptionCanceled   = "canceled"
	SubscriptionUnpaid     = "unpaid"
	SubscriptionIncomplete = "incomplete"
	SubscriptionTrialing   = "trialing"
	SubscriptionPaused     = "paused"
)

func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// Profile is the per-user record. Rows are created by the auth provider's signup trigger
// and are only ever soft deleted.
type Profile struct {
	ID                string                                `json:"id" gorm:"type:uuid;primaryKey"`
	Email             string                                `json:"email" gorm:"index"`
	FullName          string                                `json:"full_name"`
	Phone             string                                `json:"phone"`
	AvatarURL         string                                `json:"avatar_url"`
	Role              string                                `json:"role" gorm:"not null;default:'user'"`
	AnalysesThisMonth int                                   `json:"analyses_this_month" gorm:"not null;default:0"`
	LastAnalysisAt    *time.Time                            `json:"last_analysis_at"`
	StripeCustomerID  string                                `json:"-" gorm:"index"`
	Preferences       datatypes.JSONType[ProfilePreferences] `json:"preferences"`
	CreatedAt         time.Time                             `json:"created_at"`
	UpdatedAt         time.Time                             `json:"updated_at"`
	DeletedAt         gorm.DeletedAt                        `json:"-" gorm:"index"`
}

// SubscriptionPlan is catalog reference data, looked up by Stripe price id during webhook processing.
type SubscriptionPlan struct {
	ID                   string                          `json:"id" gorm:"type:uuid;primaryKey"`
	Name                 string                          `json:"name" gorm:"uniqueIndex;not null"`
	Description          string                          `json:"description"`
	PriceMonthly         int64                           `json:"price_monthly"` // cents
	PriceYearly          int64                           `json:"price_yearly"`  // cents
	AnalysesPerMonth     *int                            `json:"analyses_per_month"`
	StripePriceIDMonthly string                          `json:"stripe_price_id_monthly" gorm:"index"`
	StripePriceIDYearly  string                          `json:"stripe_price_id_yearly" gorm:"index"`
	Features             datatypes.JSONType[PlanFeatures] `json:"features"`
	Active               bool                            `json:"active" gorm:"default:true"`
	CreatedAt            time.Time                       `json:"created_at"`
	UpdatedAt            time.Time                       `json:"updated_at"`
}

func (p *SubscriptionPlan) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Subscription holds at most one row per user; status is driven by billing events only.
type Subscription struct {
	ID                   string            `json:"id" gorm:"type:uuid;primaryKey"`
	UserID               string            `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	PlanID               *string           `json:"plan_id" gorm:"type:uuid;index"`
	Plan                 *SubscriptionPlan `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
	Status               string            `json:"status" gorm:"not null;index"`
	StripeSubscriptionID string            `json:"stripe_subscription_id" gorm:"index"`
	StripeCustomerID     string            `json:"-" gorm:"index"`
	CurrentPeriodStart   *time.Time        `json:"current_period_start"`
	CurrentPeriodEnd     *time.Time        `json:"current_period_end"`
	CancelAtPeriodEnd    bool              `json:"cancel_at_period_end"`
	CanceledAt           *time.Time        `json:"canceled_at"`
	AnalysesUsed         int               `json:"analyses_used" gorm:"not null;default:0"`
	LastEventAt          *time.Time        `json:"-"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// IsActive reports whether the subscription currently grants plan entitlements.
func (s *Subscription) IsActive() bool {
	return s != nil && (s.Status == SubscriptionActive || s.Status == SubscriptionTrialing)
}

// Payment records a paid invoice.
type Payment struct {
	ID              string     `json:"id" gorm:"type:uuid;primaryKey"`
	UserID          string     `json:"user_id" gorm:"type:uuid;index;not null"`
	SubscriptionID  *string    `json:"subscription_id" gorm:"type:uuid;index"`
	StripeInvoiceID string     `json:"stripe_invoice_id" gorm:"uniqueIndex"`
	Amount          int64      `json:"amount"` // cents
	Currency        string     `json:"currency"`
	Status          string     `json:"status"`
	PaidAt          *time.Time `json:"paid_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// ActivityLog is the append-only audit trail.
type ActivityLog struct {
	ID           string                          `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       string                          `json:"user_id" gorm:"type:uuid;index;not null"`
	Action       string                          `json:"action" gorm:"index;not null"`
	ResourceType string                          `json:"resource_type"`
	ResourceID   string                          `json:"resource_id"`
	Details      datatypes.JSONType[EventDetails] `json:"details"`
	CreatedAt    time.Time                       `json:"created_at"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// WebhookEvent is the dedupe ledger for payment provider deliveries.
type WebhookEvent struct {
	ID              string     `json:"id" gorm:"type:uuid;primaryKey"`
	Provider        string     `json:"provider" gorm:"uniqueIndex:idx_webhook_provider_event;not null"`
	EventID         string     `json:"event_id" gorm:"uniqueIndex:idx_webhook_provider_event;not null"`
	EventType       string     `json:"event_type" gorm:"index"`
	Attempts        int        `json:"attempts"`
	ProcessedAt     *time.Time `json:"processed_at"`
	ProcessingError string     `json:"processing_error"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (w *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	assignID(&w.ID)
	return nil
}

// All lists every model for migrations.
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&SubscriptionPlan{},
		&Subscription{},
		&Payment{},
		&ActivityLog{},
		&WebhookEvent{},
		&Analysis{},
		&AnalysisHistoryReport{},
		&AnalysisVisualResult{},
		&AnalysisAudioResult{},
		&Notification{},
		&SavedVehicle{},
	}
}
