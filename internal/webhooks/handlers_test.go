package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"myautowhiz-backend/internal/billing"
	"myautowhiz-backend/internal/database/dbtest"
	"myautowhiz-backend/internal/models"
	"myautowhiz-backend/internal/notifications"
)

const testSecret = "whsec_test_myautowhiz"

type recordingApplier struct {
	calls []string
	fail  int
}

func (a *recordingApplier) Apply(_ context.Context, event *stripe.Event) error {
	a.calls = append(a.calls, event.ID)
	if a.fail > 0 {
		a.fail--
		return errors.New("database unavailable")
	}
	return nil
}

func payload(t *testing.T, id, eventType string, object map[string]interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":      id,
		"object":  "event",
		"type":    eventType,
		"created": time.Now().Unix(),
		"data":    map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return body
}

func sign(body []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	}).Header
}

func post(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/webhooks/stripe", h.HandleStripeWebhook)
	return router
}

func TestSignatureIsRequired(t *testing.T) {
	db := dbtest.New(t)
	applier := &recordingApplier{}
	router := newRouter(NewHandler(db, applier, testSecret))
	body := payload(t, "evt_1", "invoice.paid", map[string]interface{}{"id": "in_1"})

	w := post(router, body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_SIGNATURE")

	w = post(router, body, sign(body, "whsec_wrong"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tampered := append([]byte{}, body...)
	tampered = bytes.Replace(tampered, []byte("in_1"), []byte("in_2"), 1)
	w = post(router, tampered, sign(body, testSecret))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, applier.calls)
	var count int64
	require.NoError(t, db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMissingSecretFailsClosed(t *testing.T) {
	router := newRouter(NewHandler(dbtest.New(t), &recordingApplier{}, ""))
	body := payload(t, "evt_1", "invoice.paid", map[string]interface{}{"id": "in_1"})

	w := post(router, body, sign(body, testSecret))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestProcessedEventsAreNotReapplied(t *testing.T) {
	db := dbtest.New(t)
	applier := &recordingApplier{}
	router := newRouter(NewHandler(db, applier, testSecret))
	body := payload(t, "evt_dup", "invoice.paid", map[string]interface{}{"id": "in_1"})

	w := post(router, body, sign(body, testSecret))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	w = post(router, body, sign(body, testSecret))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"duplicate":true`)

	assert.Equal(t, []string{"evt_dup"}, applier.calls)

	var record models.WebhookEvent
	require.NoError(t, db.Where("event_id = ?", "evt_dup").First(&record).Error)
	assert.NotNil(t, record.ProcessedAt)
	assert.Equal(t, 1, record.Attempts)
	assert.Equal(t, "invoice.paid", record.EventType)
}

func TestFailedEventsAreRetried(t *testing.T) {
	db := dbtest.New(t)
	applier := &recordingApplier{fail: 1}
	router := newRouter(NewHandler(db, applier, testSecret))
	body := payload(t, "evt_retry", "invoice.payment_failed", map[string]interface{}{"id": "in_9"})

	w := post(router, body, sign(body, testSecret))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var record models.WebhookEvent
	require.NoError(t, db.Where("event_id = ?", "evt_retry").First(&record).Error)
	assert.Nil(t, record.ProcessedAt)
	assert.Equal(t, "database unavailable", record.ProcessingError)

	w = post(router, body, sign(body, testSecret))
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, db.Where("event_id = ?", "evt_retry").First(&record).Error)
	assert.NotNil(t, record.ProcessedAt)
	assert.Empty(t, record.ProcessingError)
	assert.Equal(t, 2, record.Attempts)
	assert.Len(t, applier.calls, 2)
}

func TestCheckoutCompletedEndToEnd(t *testing.T) {
	db := dbtest.New(t)
	plan := models.SubscriptionPlan{Name: "Pro", AnalysesPerMonth: dbtest.IntPtr(25), Active: true, StripePriceIDMonthly: "price_pro_monthly"}
	require.NoError(t, db.Create(&plan).Error)
	require.NoError(t, db.Create(&models.Profile{ID: "u1", Email: "u1@example.com", Role: models.RoleUser}).Error)

	reconciler := billing.NewReconciler(db, notifications.NewStore(db))
	router := newRouter(NewHandler(db, reconciler, testSecret))

	body := payload(t, "evt_checkout", billing.EventCheckoutCompleted, map[string]interface{}{
		"id":       "cs_1",
		"object":   "checkout.session",
		"customer": "cus_1",
		"metadata": map[string]interface{}{"user_id": "u1", "price_id": "price_pro_monthly"},
	})
	w := post(router, body, sign(body, testSecret))
	require.Equal(t, http.StatusOK, w.Code)

	var sub models.Subscription
	require.NoError(t, db.Where("user_id = ?", "u1").First(&sub).Error)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, 0, sub.AnalysesUsed)

	var profile models.Profile
	require.NoError(t, db.Where("id = ?", "u1").First(&profile).Error)
	assert.Equal(t, models.RolePro, profile.Role)

	// recognized but unusable payloads are still acknowledged
	body = payload(t, "evt_bad", billing.EventCheckoutCompleted, map[string]interface{}{"id": "cs_2", "metadata": map[string]interface{}{}})
	w = post(router, body, sign(body, testSecret))
	assert.Equal(t, http.StatusOK, w.Code)
}
