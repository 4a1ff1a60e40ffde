package webhooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "myautowhiz-backend/internal/errors"
	"myautowhiz-backend/internal/metrics"
	"myautowhiz-backend/internal/models"
	"myautowhiz-backend/pkg/utils"
)

const (
	providerStripe  = "stripe"
	maxPayloadBytes = int64(1 << 20)
	signatureHeader = "Stripe-Signature"
)

// Applier projects a verified event onto local state.
type Applier interface {
	Apply(ctx context.Context, event *stripe.Event) error
}

// Handler ingests payment provider webhooks. Every delivery is recorded in the
// webhook ledger; events already processed are acknowledged without re-running.
type Handler struct {
	db      *gorm.DB
	applier Applier
	secret  string
	now     func() time.Time
	log     *logrus.Entry
}

// NewHandler creates a Handler verifying deliveries with the endpoint signing secret.
func NewHandler(db *gorm.DB, applier Applier, secret string) *Handler {
	return &Handler{
		db:      db,
		applier: applier,
		secret:  secret,
		now:     time.Now,
		log:     logrus.WithField("component", "webhooks"),
	}
}

// HandleStripeWebhook verifies and applies one Stripe event
func (h *Handler) HandleStripeWebhook(c *gin.Context) {
	if h.secret == "" {
		h.log.Error("stripe webhook secret is not configured")
		utils.RespondError(c, apperrors.Internal("Webhook not configured", nil))
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPayloadBytes))
	if err != nil {
		utils.RespondError(c, apperrors.Validation("Invalid payload"))
		return
	}

	sig := c.GetHeader(signatureHeader)
	if sig == "" {
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		utils.RespondError(c, apperrors.Signature(errors.New("missing signature header")))
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		h.log.WithError(err).Warn("stripe webhook signature verification failed")
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		utils.RespondError(c, apperrors.Signature(err))
		return
	}

	eventType := string(event.Type)
	log := h.log.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": eventType,
	})
	start := time.Now()
	defer func() {
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	ctx := c.Request.Context()
	record, err := h.claim(ctx, &event)
	if err != nil {
		log.WithError(err).Error("failed to record webhook event")
		metrics.WebhookEvents.WithLabelValues(eventType, "failed").Inc()
		utils.RespondError(c, apperrors.Internal("Failed to record webhook event", err))
		return
	}
	if record.ProcessedAt != nil {
		log.Info("webhook event already processed")
		metrics.WebhookEvents.WithLabelValues(eventType, "duplicate").Inc()
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}

	if err := h.applier.Apply(ctx, &event); err != nil {
		log.WithError(err).Error("webhook event processing failed")
		metrics.WebhookEvents.WithLabelValues(eventType, "failed").Inc()
		if markErr := h.finish(ctx, record, err); markErr != nil {
			log.WithError(markErr).Error("failed to record webhook failure")
		}
		utils.RespondError(c, apperrors.Internal("Webhook processing failed", err))
		return
	}

	if err := h.finish(ctx, record, nil); err != nil {
		log.WithError(err).Error("failed to mark webhook event processed")
	}
	metrics.WebhookEvents.WithLabelValues(eventType, "processed").Inc()
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// claim inserts the ledger row for an event if it does not exist and bumps its attempt count.
func (h *Handler) claim(ctx context.Context, event *stripe.Event) (*models.WebhookEvent, error) {
	db := h.db.WithContext(ctx)
	record := models.WebhookEvent{
		Provider:  providerStripe,
		EventID:   event.ID,
		EventType: string(event.Type),
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("insert webhook event: %w", err)
	}

	var stored models.WebhookEvent
	if err := db.Where("provider = ? AND event_id = ?", providerStripe, event.ID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("load webhook event: %w", err)
	}
	if stored.ProcessedAt != nil {
		return &stored, nil
	}

	if err := db.Model(&models.WebhookEvent{}).Where("id = ?", stored.ID).
		Update("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
		return nil, fmt.Errorf("count webhook attempt: %w", err)
	}
	stored.Attempts++
	return &stored, nil
}

func (h *Handler) finish(ctx context.Context, record *models.WebhookEvent, procErr error) error {
	updates := map[string]interface{}{"processing_error": ""}
	if procErr != nil {
		updates["processing_error"] = procErr.Error()
	} else {
		updates["processed_at"] = h.now().UTC()
	}
	return h.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", record.ID).Updates(updates).Error
}
