package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"myautowhiz-backend/internal/activity"
	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/internal/metrics"
	"myautowhiz-backend/internal/models"
	"myautowhiz-backend/internal/usage"
)

const maxTags = 20

// Notifier creates user notifications inside the caller's transaction.
type Notifier interface {
	Create(ctx context.Context, tx *gorm.DB, n *models.Notification) error
}

// Service manages the analysis lifecycle.
type Service struct {
	db       *gorm.DB
	resolver *usage.Resolver
	notifier Notifier
	now      func() time.Time
	log      *logrus.Entry
}

// NewService creates a Service.
func NewService(db *gorm.DB, resolver *usage.Resolver, notifier Notifier) *Service {
	return &Service{
		db:       db,
		resolver: resolver,
		notifier: notifier,
		now:      time.Now,
		log:      logrus.WithField("component", "analysis"),
	}
}

// CreateInput is a new analysis request.
type CreateInput struct {
	VIN         string
	Mileage     *int
	AskingPrice *float64
	Options     models.AnalysisOptions
	Notes       string
	Tags        []string
}

// UpdateInput holds the user-editable fields; nil means unchanged.
type UpdateInput struct {
	Notes       *string
	Tags        *[]string
	Starred     *bool
	Mileage     *int
	AskingPrice *float64
}

// ListOptions selects a page of analyses.
type ListOptions struct {
	Status string
	Limit  int
	Offset int
}

// Page is one page of analyses.
type Page struct {
	Analyses []models.Analysis `json:"analyses"`
	Total    int64             `json:"total"`
	HasMore  bool              `json:"hasMore"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		if len(t) > 50 {
			return nil, apperrors.Validation("tags must be at most 50 characters")
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > maxTags {
		return nil, apperrors.Validation(fmt.Sprintf("at most %d tags are allowed", maxTags))
	}
	return out, nil
}

func validateNumbers(mileage *int, askingPrice *float64) error {
	if mileage != nil && *mileage < 0 {
		return apperrors.Validation("mileage cannot be negative")
	}
	if askingPrice != nil && *askingPrice < 0 {
		return apperrors.Validation("askingPrice cannot be negative")
	}
	return nil
}

// Create validates the request, consumes one unit of the caller's monthly quota and inserts
// a pending analysis. The quota increment, the insert and the activity entry commit together.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*models.Analysis, error) {
	vin := strings.ToUpper(strings.TrimSpace(in.VIN))
	if len(vin) != 17 {
		return nil, apperrors.Validation("VIN must be exactly 17 characters")
	}
	if err := validateNumbers(in.Mileage, in.AskingPrice); err != nil {
		return nil, err
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	record := &models.Analysis{
		UserID:      userID,
		VIN:         vin,
		Status:      models.AnalysisPending,
		Mileage:     in.Mileage,
		AskingPrice: in.AskingPrice,
		Options:     datatypes.NewJSONType(in.Options),
		Notes:       in.Notes,
		Tags:        datatypes.JSONSlice[string](tags),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		limit, profile, err := s.resolver.Limit(ctx, tx, userID)
		if err != nil {
			return err
		}

		// increment only while under the limit
		now := s.now().UTC()
		res := tx.Model(&models.Profile{}).
			Where("id = ? AND analyses_this_month < ?", userID, limit).
			Updates(map[string]interface{}{
				"analyses_this_month": gorm.Expr("analyses_this_month + 1"),
				"last_analysis_at":    now,
			})
		if res.Error != nil {
			return fmt.Errorf("increment analysis count: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			metrics.QuotaDenials.Inc()
			return apperrors.QuotaExceeded(profile.AnalysesThisMonth, limit)
		}

		if err := tx.Model(&models.Subscription{}).
			Where("user_id = ?", userID).
			Update("analyses_used", gorm.Expr("analyses_used + 1")).Error; err != nil {
			return fmt.Errorf("increment subscription usage: %w", err)
		}

		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("insert analysis: %w", err)
		}

		return activity.Record(ctx, tx, userID, activity.AnalysisCreated, activity.ResourceAnalysis, record.ID,
			models.EventDetails{AnalysisID: record.ID, VIN: vin})
	})
	if err != nil {
		return nil, err
	}

	metrics.AnalysesCreated.Inc()
	s.log.WithFields(logrus.Fields{
		"user_id":     userID,
		"analysis_id": record.ID,
	}).Info("analysis created")
	return record, nil
}

// Get returns an analysis with its detail records. Analyses owned by someone else are
// reported as not found.
func (s *Service) Get(ctx context.Context, id, userID string) (*models.Analysis, error) {
	var a models.Analysis
	err := s.db.WithContext(ctx).
		Preload("HistoryReport").
		Preload("VisualResults").
		Preload("AudioResults").
		Where("id = ? AND user_id = ?", id, userID).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Analysis")
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return &a, nil
}

// List returns the caller's analyses newest first.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) (*Page, error) {
	if opts.Status != "" && !validStatus(opts.Status) {
		return nil, apperrors.Validation("unknown status filter")
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Analysis{}).Where("user_id = ?", userID)
		if opts.Status != "" {
			q = q.Where("status = ?", opts.Status)
		}
		return q
	}

	page := &Page{Analyses: []models.Analysis{}, Limit: opts.Limit, Offset: opts.Offset}
	if err := scoped().Count(&page.Total).Error; err != nil {
		return nil, fmt.Errorf("count analyses: %w", err)
	}
	if err := scoped().Order("created_at DESC").Limit(opts.Limit).Offset(opts.Offset).Find(&page.Analyses).Error; err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	page.HasMore = int64(opts.Offset+opts.Limit) < page.Total
	return page, nil
}

// Update applies the whitelisted user-editable fields.
func (s *Service) Update(ctx context.Context, id, userID string, in UpdateInput) (*models.Analysis, error) {
	if err := validateNumbers(in.Mileage, in.AskingPrice); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Notes != nil {
		updates["notes"] = *in.Notes
	}
	if in.Tags != nil {
		tags, err := normalizeTags(*in.Tags)
		if err != nil {
			return nil, err
		}
		updates["tags"] = datatypes.JSONSlice[string](tags)
	}
	if in.Starred != nil {
		updates["starred"] = *in.Starred
	}
	if in.Mileage != nil {
		updates["mileage"] = *in.Mileage
	}
	if in.AskingPrice != nil {
		updates["asking_price"] = *in.AskingPrice
	}
	if len(updates) == 0 {
		return nil, apperrors.Validation("no updatable fields provided")
	}

	res := s.db.WithContext(ctx).Model(&models.Analysis{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update analysis: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("Analysis")
	}
	return s.Get(ctx, id, userID)
}

// Delete removes an analysis and its detail records.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Analysis
		err := tx.Where("id = ? AND user_id = ?", id, userID).First(&a).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("Analysis")
		}
		if err != nil {
			return fmt.Errorf("load analysis: %w", err)
		}

		if err := tx.Select(clause.Associations).Delete(&a).Error; err != nil {
			return fmt.Errorf("delete analysis: %w", err)
		}

		return activity.Record(ctx, tx, userID, activity.AnalysisDeleted, activity.ResourceAnalysis, a.ID,
			models.EventDetails{AnalysisID: a.ID, VIN: a.VIN})
	})
}
