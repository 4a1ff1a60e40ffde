package billing

import (
	"time"

	"myautowhiz-backend/internal/models"
)

// stripeStatuses maps the payment provider's subscription statuses onto local ones.
var stripeStatuses = map[string]string{
	"active":             models.SubscriptionActive,
	"past_due":           models.SubscriptionPastDue,
	"canceled":           models.SubscriptionCanceled,
	"unpaid":             models.SubscriptionUnpaid,
	"incomplete":         models.SubscriptionIncomplete,
	"incomplete_expired": models.SubscriptionCanceled,
	"trialing":           models.SubscriptionTrialing,
	"paused":             models.SubscriptionPaused,
}

// MapStripeStatus translates a provider status. Unknown values pass through unchanged.
func MapStripeStatus(status string) string {
	if local, ok := stripeStatuses[status]; ok {
		return local
	}
	return status
}

// SubscriptionChange is what a subscription.created/updated event says about a subscription.
type SubscriptionChange struct {
	UserID               string
	CustomerID           string
	StripeSubscriptionID string
	ProviderStatus       string
	PlanID               *string
	PeriodStart          *time.Time
	PeriodEnd            *time.Time
	CancelAtPeriodEnd    bool
	CanceledAt           *time.Time
	OccurredAt           time.Time
}

// NextSubscriptionState projects a change onto the current local subscription, which may be nil.
// It returns false when the change is older than the last event already applied.
func NextSubscriptionState(current *models.Subscription, change SubscriptionChange) (models.Subscription, bool) {
	var next models.Subscription
	if current != nil {
		if current.LastEventAt != nil && change.OccurredAt.Before(*current.LastEventAt) {
			return *current, false
		}
		next = *current
		next.Plan = nil
	}

	next.UserID = change.UserID
	next.Status = MapStripeStatus(change.ProviderStatus)
	if change.StripeSubscriptionID != "" {
		next.StripeSubscriptionID = change.StripeSubscriptionID
	}
	if change.CustomerID != "" {
		next.StripeCustomerID = change.CustomerID
	}
	if change.PlanID != nil {
		next.PlanID = change.PlanID
	}
	if change.PeriodStart != nil {
		next.CurrentPeriodStart = change.PeriodStart
	}
	if change.PeriodEnd != nil {
		next.CurrentPeriodEnd = change.PeriodEnd
	}
	next.CancelAtPeriodEnd = change.CancelAtPeriodEnd
	next.CanceledAt = change.CanceledAt

	occurred := change.OccurredAt
	next.LastEventAt = &occurred
	return next, true
}
