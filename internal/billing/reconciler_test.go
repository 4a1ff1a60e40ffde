package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"gorm.io/gorm"

	"myautowhiz-backend/internal/activity"
	"myautowhiz-backend/internal/database/dbtest"
	"myautowhiz-backend/internal/models"
	"myautowhiz-backend/internal/notifications"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db         *gorm.DB
	reconciler *Reconciler
	pro        models.SubscriptionPlan
	enterprise models.SubscriptionPlan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	r := NewReconciler(db, notifications.NewStore(db))
	r.now = func() time.Time { return testNow }

	f := &fixture{db: db, reconciler: r}
	f.pro = models.SubscriptionPlan{
		Name: "Pro", AnalysesPerMonth: dbtest.IntPtr(25), Active: true,
		StripePriceIDMonthly: "price_pro_monthly", StripePriceIDYearly: "price_pro_yearly",
	}
	f.enterprise = models.SubscriptionPlan{
		Name: "Enterprise", Active: true,
		StripePriceIDMonthly: "price_ent_monthly", StripePriceIDYearly: "price_ent_yearly",
	}
	require.NoError(t, db.Create(&f.pro).Error)
	require.NoError(t, db.Create(&f.enterprise).Error)
	return f
}

func (f *fixture) profile(t *testing.T, id, role, customerID string, used int) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.Profile{
		ID: id, Email: id + "@example.com", Role: role, StripeCustomerID: customerID, AnalysesThisMonth: used,
	}).Error)
}

func (f *fixture) apply(t *testing.T, id, eventType string, created time.Time, object map[string]interface{}) {
	t.Helper()
	require.NoError(t, f.reconciler.Apply(context.Background(), newEvent(t, id, eventType, created, object)))
}

func newEvent(t *testing.T, id, eventType string, created time.Time, object map[string]interface{}) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &stripe.Event{
		ID:      id,
		Type:    stripe.EventType(eventType),
		Created: created.Unix(),
		Data:    &stripe.EventData{Raw: raw},
	}
}

func (f *fixture) subscription(t *testing.T, userID string) models.Subscription {
	t.Helper()
	var sub models.Subscription
	require.NoError(t, f.db.Where("user_id = ?", userID).First(&sub).Error)
	return sub
}

func (f *fixture) reload(t *testing.T, userID string) models.Profile {
	t.Helper()
	var p models.Profile
	require.NoError(t, f.db.Where("id = ?", userID).First(&p).Error)
	return p
}

func checkoutObject(userID, priceID string) map[string]interface{} {
	return map[string]interface{}{
		"id":           "cs_test_1",
		"object":       "checkout.session",
		"customer":     "cus_1",
		"subscription": "sub_1",
		"metadata": map[string]interface{}{
			"user_id":  userID,
			"price_id": priceID,
		},
	}
}

func TestCheckoutCompletedActivatesSubscription(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "u1", models.RoleUser, "", 2)

	f.apply(t, "evt_1", EventCheckoutCompleted, testNow, checkoutObject("u1", "price_pro_monthly"))

	sub := f.subscription(t, "u1")
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, 0, sub.AnalysesUsed)
	require.NotNil(t, sub.PlanID)
	assert.Equal(t, f.pro.ID, *sub.PlanID)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, testNow.Add(30*24*time.Hour).Unix(), sub.CurrentPeriodEnd.Unix())

	p := f.reload(t, "u1")
	assert.Equal(t, models.RolePro, p.Role)
	assert.Equal(t, "cus_1", p.StripeCustomerID)

	var logs []models.ActivityLog
	require.NoError(t, f.db.Where("user_id = ? AND action = ?", "u1", activity.SubscriptionCreated).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, f.pro.ID, logs[0].Details.Data().PlanID)
}

func TestCheckoutCompletedUpsertsExistingRow(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "u1", models.RoleUser, "cus_1", 0)
	require.NoError(t, f.db.Create(&models.Subscription{
		UserID: "u1", Status: models.SubscriptionCanceled, AnalysesUsed: 7,
	}).Error)

	f.apply(t, "evt_1", EventCheckoutCompleted, testNow, checkoutObject("u1", "price_ent_yearly"))

	var count int64
	require.NoError(t, f.db.Model(&models.Subscription{}).Where("user_id = ?", "u1").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	sub := f.subscription(t, "u1")
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, 0, sub.AnalysesUsed)
	assert.Equal(t, f.enterprise.ID, *sub.PlanID)
	assert.Equal(t, models.RoleEnterprise, f.reload(t, "u1").Role)
}

func TestCheckoutCompletedKeepsStaffRole(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "admin", models.RoleAdmin, "", 0)

	f.apply(t, "evt_1", EventCheckoutCompleted, testNow, checkoutObject("admin", "price_pro_monthly"))

	assert.Equal(t, models.RoleAdmin, f.reload(t, "admin").Role)
	assert.Equal(t, models.SubscriptionActive, f.subscription(t, "admin").Status)
}

func TestCheckoutCompletedWithoutMetadataIsNoop(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "u1", models.RoleUser, "", 0)

	obj := checkoutObject("u1", "price_pro_monthly")
	obj["metadata"] = map[string]interface{}{"user_id": "u1"}
	f.apply(t, "evt_1", EventCheckoutCompleted, testNow, obj)

	f.apply(t, "evt_2", EventCheckoutCompleted, testNow, checkoutObject("u1", "price_unknown"))
	f.apply(t, "evt_3", EventCheckoutCompleted, testNow, checkoutObject("ghost", "price_pro_monthly"))

	var count int64
	require.NoError(t, f.db.Model(&models.Subscription{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, models.RoleUser, f.reload(t, "u1").Role)
}

func subscriptionObject(status string, priceID string, start time.Time) map[string]interface{} {
	return map[string]interface{}{
		"id":                   "sub_1",
		"object":               "subscription",
		"customer":             "cus_1",
		"status":               status,
		"cancel_at_period_end": true,
		"current_period_start": start.Unix(),
		"current_period_end":   start.AddDate(0, 1, 0).Unix(),
		"items": map[string]interface{}{
			"object": "list",
			"data": []interface{}{
				map[string]interface{}{
					"id":    "si_1",
					"price": map[string]interface{}{"id": priceID},
				},
			},
		},
	}
}

func TestSubscriptionUpdatedSynchronizesState(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "u1", models.RolePro, "cus_1", 0)

	f.apply(t, "evt_1", EventSubscriptionCreated, testNow, subscriptionObject("incomplete_expired", "price_pro_monthly", testNow))
	sub := f.subscription(t, "u1")
	assert.Equal(t, models.SubscriptionCanceled, sub.Status)
	assert.Equal(t, f.pro.ID, *sub.PlanID)
	assert.True(t, sub.CancelAtPeriodEnd)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, testNow.AddDate(0, 1, 0).Unix(), sub.CurrentPeriodEnd.Unix())

	f.apply(t, "evt_2", EventSubscriptionUpdated, testNow.Add(time.Minute), subscriptionObject("past_due", "price_pro_monthly", testNow))
	assert.Equal(t, models.SubscriptionPastDue, f.subscription(t, "u1").Status)

	// delivered late, older than the last applied event
	f.apply(t, "evt_0", EventSubscriptionUpdated, testNow.Add(-time.Hour), subscriptionObject("active", "price_pro_monthly", testNow))
	assert.Equal(t, models.SubscriptionPastDue, f.subscription(t, "u1").Status)

	var actions []string
	require.NoError(t, f.db.Model(&models.ActivityLog{}).Where("user_id = ?", "u1").Order("created_at").Pluck("action", &actions).Error)
	assert.ElementsMatch(t, []string{activity.SubscriptionCreated, activity.SubscriptionUpdated}, actions)
}

func TestCheckoutDoesNotShadowEarlierSubscriptionEvent(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "u1", models.RoleUser, "", 0)

	// checkout is processed first even though the provider created the subscription earlier
	f.apply(t, "evt_checkout", EventCheckoutCompleted, testNow.Add(2*time.Second), checkoutObject("u1", "price_pro_yearly"))
	f.apply(t, "evt_created", EventSubscriptionCreated, testNow, subscriptionObject("trialing", "price_pro_yearly", testNow))

	sub := f.subscription(t, "u1")
	assert.Equal(t, models.SubscriptionTrialing, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, testNow.AddDate(0, 1, 0).Unix(), sub.CurrentPeriodEnd.Unix())
	require.NotNil(t, sub.LastEventAt)
	assert.Equal(t, testNow.Unix(), sub.LastEventAt.Unix())

	// older than the applied subscription event
	f.apply(t, "evt_old", EventSubscriptionUpdated, testNow.Add(-time.Minute), subscriptionObject("past_due", "price_pro_yearly", testNow))
	assert.Equal(t, models.SubscriptionTrialing, f.subscription(t, "u1").Status)
}

func TestSubscriptionStatusSyncsRole(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "u1", models.RoleUser, "cus_1", 0)

	f.apply(t, "evt_1", EventSubscriptionCreated, testNow, subscriptionObject("active", "price_ent_monthly", testNow))
	assert.Equal(t, models.RoleEnterprise, f.reload(t, "u1").Role)

	f.apply(t, "evt_2", EventSubscriptionUpdated, testNow.Add(time.Minute), subscriptionObject("past_due", "price_ent_monthly", testNow))
	assert.Equal(t, models.RoleEnterprise, f.reload(t, "u1").Role)

	f.apply(t, "evt_3", EventSubscriptionUpdated, testNow.Add(2*time.Minute), subscriptionObject("unpaid", "price_ent_monthly", testNow))
	assert.Equal(t, models.RoleUser, f.reload(t, "u1").Role)

	f.apply(t, "evt_4", EventSubscriptionUpdated, testNow.Add(3*time.Minute), subscriptionObject("active", "price_pro_monthly", testNow))
	assert.Equal(t, models.RolePro, f.reload(t, "u1").Role)
}

func TestSubscriptionStatusKeepsStaffRole(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "ops", models.RoleAdmin, "cus_1", 0)

	f.apply(t, "evt_1", EventSubscriptionCreated, testNow, subscriptionObject("active", "price_pro_monthly", testNow))
	f.apply(t, "evt_2", EventSubscriptionUpdated, testNow.Add(time.Minute), subscriptionObject("canceled", "price_pro_monthly", testNow))
	assert.Equal(t, models.RoleAdmin, f.reload(t, "ops").Role)
}

func TestSubscriptionEventForUnknownCustomerIsNoop(t *testing.T) {
	f := newFixture(t)

	f.apply(t, "evt_1", EventSubscriptionUpdated, testNow, subscriptionObject("active", "price_pro_monthly", testNow))

	var count int64
	require.NoError(t, f.db.Model(&models.Subscription{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubscriptionDeletedDowngrades(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "u1", models.RolePro, "cus_1", 0)
	f.apply(t, "evt_1", EventCheckoutCompleted, testNow, checkoutObject("u1", "price_pro_monthly"))

	obj := subscriptionObject("canceled", "price_pro_monthly", testNow)
	obj["canceled_at"] = testNow.Add(time.Hour).Unix()
	f.apply(t, "evt_2", EventSubscriptionDeleted, testNow.Add(time.Hour), obj)

	sub := f.subscription(t, "u1")
	assert.Equal(t, models.SubscriptionCanceled, sub.Status)
	require.NotNil(t, sub.CanceledAt)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), sub.CanceledAt.Unix())
	assert.Equal(t, models.RoleUser, f.reload(t, "u1").Role)
}

func invoiceObject(id string) map[string]interface{} {
	return map[string]interface{}{
		"id":           id,
		"object":       "invoice",
		"customer":     "cus_1",
		"subscription": "sub_1",
		"amount_paid":  1999,
		"amount_due":   1999,
		"currency":     "usd",
		"status":       "paid",
	}
}

func TestInvoicePaidResetsUsageIdempotently(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "u1", models.RolePro, "cus_1", 2)
	f.apply(t, "evt_1", EventCheckoutCompleted, testNow, checkoutObject("u1", "price_pro_monthly"))
	require.NoError(t, f.db.Model(&models.Subscription{}).Where("user_id = ?", "u1").Updates(map[string]interface{}{
		"analyses_used": 9, "status": models.SubscriptionPastDue,
	}).Error)

	for i := 0; i < 2; i++ {
		f.apply(t, "evt_inv", EventInvoicePaid, testNow, invoiceObject("in_1"))

		assert.Equal(t, 0, f.reload(t, "u1").AnalysesThisMonth)
		sub := f.subscription(t, "u1")
		assert.Equal(t, 0, sub.AnalysesUsed)
		assert.Equal(t, models.SubscriptionActive, sub.Status)
	}

	var payments []models.Payment
	require.NoError(t, f.db.Where("user_id = ?", "u1").Find(&payments).Error)
	require.Len(t, payments, 1)
	assert.EqualValues(t, 1999, payments[0].Amount)
	assert.Equal(t, "usd", payments[0].Currency)
	assert.Equal(t, "in_1", payments[0].StripeInvoiceID)
}

func TestInvoicePaymentSucceededIsTreatedAsPaid(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "u1", models.RolePro, "cus_1", 5)

	f.apply(t, "evt_1", EventInvoicePaymentSucceeded, testNow, invoiceObject("in_2"))

	assert.Equal(t, 0, f.reload(t, "u1").AnalysesThisMonth)
	var count int64
	require.NoError(t, f.db.Model(&models.Payment{}).Where("stripe_invoice_id = ?", "in_2").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestInvoicePaymentFailedNotifies(t *testing.T) {
	f := newFixture(t)
	f.profile(t, "u1", models.RolePro, "cus_1", 0)
	f.apply(t, "evt_1", EventCheckoutCompleted, testNow, checkoutObject("u1", "price_pro_monthly"))

	obj := invoiceObject("in_3")
	obj["status"] = "open"
	obj["amount_due"] = 2500
	f.apply(t, "evt_2", EventInvoicePaymentFailed, testNow, obj)

	assert.Equal(t, models.SubscriptionPastDue, f.subscription(t, "u1").Status)

	var n models.Notification
	require.NoError(t, f.db.Where("user_id = ?", "u1").First(&n).Error)
	assert.Equal(t, models.NotificationPaymentFailed, n.Type)
	assert.Equal(t, models.PriorityHigh, n.Priority)
	assert.Equal(t, "in_3", n.Metadata.Data().InvoiceID)

	var log models.ActivityLog
	require.NoError(t, f.db.Where("user_id = ? AND action = ?", "u1", activity.PaymentFailed).First(&log).Error)
	assert.Equal(t, "in_3", log.Details.Data().InvoiceID)
	assert.EqualValues(t, 2500, log.Details.Data().AmountDue)
}

func TestUnhandledEventIsIgnored(t *testing.T) {
	f := newFixture(t)
	err := f.reconciler.Apply(context.Background(), newEvent(t, "evt_x", "customer.created", testNow, map[string]interface{}{"id": "cus_9"}))
	assert.NoError(t, err)
	assert.False(t, Handles("customer.created"))
	assert.True(t, Handles(EventInvoicePaid))
}

func TestSeedPlans(t *testing.T) {
	db := dbtest.New(t)
	prices := testPrices()

	require.NoError(t, SeedPlans(context.Background(), db, prices))
	require.NoError(t, SeedPlans(context.Background(), db, prices))

	var plans []models.SubscriptionPlan
	require.NoError(t, db.Order("price_monthly").Find(&plans).Error)
	require.Len(t, plans, 3)
	assert.Equal(t, "Free", plans[0].Name)
	assert.Equal(t, 2, *plans[0].AnalysesPerMonth)
	assert.Equal(t, "price_pro_monthly", plans[1].StripePriceIDMonthly)
	assert.Nil(t, plans[2].AnalysesPerMonth)
	assert.True(t, plans[2].Features.Data().PrioritySupport)
}
