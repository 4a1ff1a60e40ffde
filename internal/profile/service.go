package profile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"myautowhiz-backend/internal/activity"
	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/internal/models"
	"myautowhiz-backend/internal/usage"
)

// DeleteConfirmation must be sent verbatim to delete an account.
const DeleteConfirmation = "DELETE MY ACCOUNT"

// SubscriptionCanceler cancels the provider-side subscription of a deleted account.
type SubscriptionCanceler interface {
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// Service reads and edits the caller's own profile.
type Service struct {
	db       *gorm.DB
	resolver *usage.Resolver
	canceler SubscriptionCanceler
	now      func() time.Time
	log      *logrus.Entry
}

// NewService creates a Service.
func NewService(db *gorm.DB, resolver *usage.Resolver, canceler SubscriptionCanceler) *Service {
	return &Service{
		db:       db,
		resolver: resolver,
		canceler: canceler,
		now:      time.Now,
		log:      logrus.WithField("component", "profile"),
	}
}

// View is the profile page payload.
type View struct {
	Profile      *models.Profile      `json:"profile"`
	Subscription *models.Subscription `json:"subscription"`
	Usage        *usage.Summary       `json:"usage"`
}

// Patch holds the user-editable fields; nil means unchanged.
type Patch struct {
	FullName    *string                    `json:"full_name"`
	Phone       *string                    `json:"phone"`
	AvatarURL   *string                    `json:"avatar_url"`
	Preferences *models.ProfilePreferences `json:"preferences"`
}

// Get returns the caller's profile with its active subscription and usage.
func (s *Service) Get(ctx context.Context, userID string) (*View, error) {
	profile, sub, err := s.resolver.Load(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	view := &View{Profile: profile, Usage: usage.Summarize(profile, sub)}
	if sub.IsActive() {
		view.Subscription = sub
	}
	return view, nil
}

// Update applies a whitelisted patch.
func (s *Service) Update(ctx context.Context, userID string, p Patch) (*View, error) {
	updates := map[string]interface{}{}
	if p.FullName != nil {
		name := strings.TrimSpace(*p.FullName)
		if len(name) > 100 {
			return nil, apperrors.Validation("full_name must be at most 100 characters")
		}
		updates["full_name"] = name
	}
	if p.Phone != nil {
		phone := strings.TrimSpace(*p.Phone)
		if len(phone) > 32 {
			return nil, apperrors.Validation("phone must be at most 32 characters")
		}
		updates["phone"] = phone
	}
	if p.AvatarURL != nil {
		avatar := strings.TrimSpace(*p.AvatarURL)
		if avatar != "" && !strings.HasPrefix(avatar, "https://") {
			return nil, apperrors.Validation("avatar_url must be an https URL")
		}
		updates["avatar_url"] = avatar
	}
	if p.Preferences != nil {
		switch p.Preferences.DistanceUnit {
		case "", "mi", "km":
		default:
			return nil, apperrors.Validation("distance_unit must be mi or km")
		}
		updates["preferences"] = datatypes.NewJSONType(*p.Preferences)
	}
	if len(updates) == 0 {
		return nil, apperrors.Validation("no updatable fields provided")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Profile{}).Where("id = ?", userID).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("Profile")
		}
		fields := make([]string, 0, len(updates))
		for k := range updates {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		return activity.Record(ctx, tx, userID, activity.ProfileUpdated, activity.ResourceProfile, userID,
			models.EventDetails{Extra: map[string]string{"fields": strings.Join(fields, ",")}})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// Delete cancels any live subscription and soft deletes the profile.
func (s *Service) Delete(ctx context.Context, userID, confirmation string) error {
	if confirmation != DeleteConfirmation {
		return apperrors.Validation(fmt.Sprintf("confirmation must be exactly %q", DeleteConfirmation))
	}

	profile, sub, err := s.resolver.Load(ctx, nil, userID)
	if err != nil {
		return err
	}

	if sub != nil && sub.StripeSubscriptionID != "" && sub.Status != models.SubscriptionCanceled {
		if s.canceler == nil {
			return apperrors.Internal("Billing is not configured", nil)
		}
		if err := s.canceler.CancelSubscription(ctx, sub.StripeSubscriptionID); err != nil {
			return err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if sub != nil {
			if err := tx.Model(&models.Subscription{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
				"status":      models.SubscriptionCanceled,
				"canceled_at": s.now().UTC(),
			}).Error; err != nil {
				return fmt.Errorf("cancel subscription: %w", err)
			}
		}
		if err := tx.Delete(profile).Error; err != nil {
			return fmt.Errorf("delete profile: %w", err)
		}
		return activity.Record(ctx, tx, userID, activity.AccountDeleted, activity.ResourceProfile, userID, models.EventDetails{})
	})
	if err != nil {
		return err
	}

	s.log.WithField("user_id", userID).Info("account deleted")
	return nil
}
