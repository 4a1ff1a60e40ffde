package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"myautowhiz-backend/internal/activity"
	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/internal/models"
)

// transitions lists the allowed next statuses for each status.
var transitions = map[string][]string{
	models.AnalysisPending:    {models.AnalysisProcessing},
	models.AnalysisProcessing: {models.AnalysisCompleted, models.AnalysisFailed},
}

func validStatus(status string) bool {
	switch status {
	case models.AnalysisPending, models.AnalysisProcessing, models.AnalysisCompleted, models.AnalysisFailed:
		return true
	}
	return false
}

// CanTransition reports whether an analysis may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusUpdate is reported by the external analysis worker.
type StatusUpdate struct {
	Status       string
	OverallScore *float64
	Reason       string
}

// SetStatus advances an analysis through its state machine. It is only reachable from
// internal callers and is not limited to the analysis owner.
func (s *Service) SetStatus(ctx context.Context, id string, upd StatusUpdate) (*models.Analysis, error) {
	if !validStatus(upd.Status) {
		return nil, apperrors.Validation("unknown status")
	}

	var result models.Analysis
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&result).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Analysis")
			}
			return fmt.Errorf("load analysis: %w", err)
		}
		from := result.Status
		if !CanTransition(from, upd.Status) {
			return apperrors.Conflict(fmt.Sprintf("cannot move analysis from %s to %s", from, upd.Status))
		}

		updates := map[string]interface{}{"status": upd.Status}
		now := s.now().UTC()
		switch upd.Status {
		case models.AnalysisCompleted:
			updates["completed_at"] = now
			if upd.OverallScore != nil {
				updates["overall_score"] = *upd.OverallScore
			}
		case models.AnalysisFailed:
			updates["failure_reason"] = upd.Reason
		}

		// guard on the old status so concurrent workers cannot both apply
		res := tx.Model(&models.Analysis{}).Where("id = ? AND status = ?", id, from).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update analysis status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict("analysis status changed concurrently")
		}

		if err := s.notifyOutcome(ctx, tx, &result, upd); err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&result).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"analysis_id": id,
		"status":      upd.Status,
	}).Info("analysis status updated")
	return &result, nil
}

func (s *Service) notifyOutcome(ctx context.Context, tx *gorm.DB, a *models.Analysis, upd StatusUpdate) error {
	var n *models.Notification
	switch upd.Status {
	case models.AnalysisCompleted:
		n = &models.Notification{
			UserID:    a.UserID,
			Type:      models.NotificationAnalysisComplete,
			Title:     "Your vehicle analysis is ready",
			Message:   fmt.Sprintf("The report for VIN %s is complete.", a.VIN),
			Priority:  models.PriorityNormal,
			ActionURL: "/dashboard/analysis/" + a.ID,
		}
		if err := activity.Record(ctx, tx, a.UserID, activity.AnalysisCompleted, activity.ResourceAnalysis, a.ID,
			models.EventDetails{AnalysisID: a.ID, VIN: a.VIN, Status: upd.Status}); err != nil {
			return err
		}
	case models.AnalysisFailed:
		n = &models.Notification{
			UserID:    a.UserID,
			Type:      models.NotificationAnalysisFailed,
			Title:     "Vehicle analysis failed",
			Message:   fmt.Sprintf("We could not finish the report for VIN %s.", a.VIN),
			Priority:  models.PriorityHigh,
			ActionURL: "/dashboard/analysis/" + a.ID,
		}
	default:
		return nil
	}
	n.Metadata = datatypes.NewJSONType(models.EventDetails{AnalysisID: a.ID, VIN: a.VIN, Status: upd.Status})
	if s.notifier == nil {
		return nil
	}
	return s.notifier.Create(ctx, tx, n)
}
