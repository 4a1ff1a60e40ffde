package activity

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"myautowhiz-backend/internal/models"
)

// Actions written to the activity log.
const (
	AnalysisCreated      = "analysis_created"
	AnalysisDeleted      = "analysis_deleted"
	AnalysisCompleted    = "analysis_completed"
	SubscriptionCreated  = "subscription_created"
	SubscriptionUpdated  = "subscription_updated"
	SubscriptionCanceled = "subscription_canceled"
	PaymentSucceeded     = "payment_succeeded"
	PaymentFailed        = "payment_failed"
	ProfileUpdated       = "profile_updated"
	AccountDeleted       = "account_deleted"
	VehicleSaved         = "vehicle_saved"
	VehicleRemoved       = "vehicle_removed"
	PlanUpdated          = "plan_updated"
)

// Resource types referenced by log entries.
const (
	ResourceAnalysis     = "analysis"
	ResourceSubscription = "subscription"
	ResourcePayment      = "payment"
	ResourceProfile      = "profile"
	ResourceVehicle      = "saved_vehicle"
	ResourcePlan         = "subscription_plan"
)

// Record appends one entry to the activity log using tx.
func Record(ctx context.Context, tx *gorm.DB, userID, action, resourceType, resourceID string, details models.EventDetails) error {
	entry := models.ActivityLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      datatypes.NewJSONType(details),
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("record %s: %w", action, err)
	}
	return nil
}

// List returns the caller's most recent activity, newest first.
func List(ctx context.Context, db *gorm.DB, userID string, limit, offset int) ([]models.ActivityLog, int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&models.ActivityLog{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count activity: %w", err)
	}

	var entries []models.ActivityLog
	if err := db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	return entries, total, nil
}
