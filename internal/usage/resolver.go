package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/internal/models"
)

// Summary is the caller-facing view of the monthly allowance.
type Summary struct {
	Used      int        `json:"used"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
	Unlimited bool       `json:"unlimited"`
	Role      string     `json:"role"`
	PlanName  string     `json:"plan_name,omitempty"`
	ResetsAt  *time.Time `json:"resets_at,omitempty"`
}

// Resolver loads entitlement inputs from the database.
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a Resolver.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Load returns the caller's profile and, when one exists, their subscription with its plan.
func (r *Resolver) Load(ctx context.Context, tx *gorm.DB, userID string) (*models.Profile, *models.Subscription, error) {
	if tx == nil {
		tx = r.db
	}
	tx = tx.WithContext(ctx)

	var profile models.Profile
	if err := tx.Where("id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.NotFound("Profile")
		}
		return nil, nil, fmt.Errorf("load profile: %w", err)
	}

	var sub models.Subscription
	err := tx.Preload("Plan").Where("user_id = ?", userID).First(&sub).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &profile, nil, nil
	case err != nil:
		return nil, nil, fmt.Errorf("load subscription: %w", err)
	}
	return &profile, &sub, nil
}

// Limit resolves the caller's current monthly limit.
func (r *Resolver) Limit(ctx context.Context, tx *gorm.DB, userID string) (int, *models.Profile, error) {
	profile, sub, err := r.Load(ctx, tx, userID)
	if err != nil {
		return 0, nil, err
	}
	return ResolveQuota(profile, sub), profile, nil
}

// Summarize builds the usage summary shown on the dashboard.
func (r *Resolver) Summarize(ctx context.Context, userID string) (*Summary, error) {
	profile, sub, err := r.Load(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	return Summarize(profile, sub), nil
}

// Summarize is the pure form of Resolver.Summarize.
func Summarize(profile *models.Profile, sub *models.Subscription) *Summary {
	limit := ResolveQuota(profile, sub)
	s := &Summary{
		Used:      profile.AnalysesThisMonth,
		Limit:     limit,
		Unlimited: IsUnlimited(limit),
		Role:      profile.Role,
	}
	if remaining := limit - profile.AnalysesThisMonth; remaining > 0 {
		s.Remaining = remaining
	}
	if sub.IsActive() {
		if sub.Plan != nil {
			s.PlanName = sub.Plan.Name
		}
		s.ResetsAt = sub.CurrentPeriodEnd
	}
	return s
}
