package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"myautowhiz-backend/internal/activity"
	"myautowhiz-backend/internal/models"
)

// Payment provider event types handled by the reconciler.
const (
	EventCheckoutCompleted       = "checkout.session.completed"
	EventSubscriptionCreated     = "customer.subscription.created"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaid             = "invoice.paid"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
)

const checkoutPeriod = 30 * 24 * time.Hour

// Notifier creates user notifications inside the caller's transaction.
type Notifier interface {
	Create(ctx context.Context, tx *gorm.DB, n *models.Notification) error
}

// Reconciler projects verified payment provider events onto subscriptions, profiles,
// payments and notifications. Events that cannot be mapped to a user are logged and
// dropped; only storage failures are returned.
type Reconciler struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
	log      *logrus.Entry
}

// NewReconciler creates a Reconciler.
func NewReconciler(db *gorm.DB, notifier Notifier) *Reconciler {
	return &Reconciler{
		db:       db,
		notifier: notifier,
		now:      time.Now,
		log:      logrus.WithField("component", "billing"),
	}
}

// Handles reports whether the reconciler acts on an event type.
func Handles(eventType string) bool {
	switch eventType {
	case EventCheckoutCompleted, EventSubscriptionCreated, EventSubscriptionUpdated,
		EventSubscriptionDeleted, EventInvoicePaid, EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		return true
	}
	return false
}

// Apply runs the handler for one event inside a transaction.
func (r *Reconciler) Apply(ctx context.Context, event *stripe.Event) error {
	log := r.log.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	eventType := string(event.Type)
	if !Handles(eventType) {
		log.Info("ignoring unhandled event type")
		return nil
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		log.Error("event has no data object")
		return nil
	}

	occurred := r.now().UTC()
	if event.Created > 0 {
		occurred = time.Unix(event.Created, 0).UTC()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch eventType {
		case EventCheckoutCompleted:
			var sess stripe.CheckoutSession
			if !decode(log, event, &sess) {
				return nil
			}
			return r.checkoutCompleted(ctx, tx, log, event.ID, &sess)
		case EventSubscriptionCreated, EventSubscriptionUpdated:
			var sub stripe.Subscription
			if !decode(log, event, &sub) {
				return nil
			}
			return r.subscriptionChanged(ctx, tx, log, eventType, event.ID, occurred, &sub)
		case EventSubscriptionDeleted:
			var sub stripe.Subscription
			if !decode(log, event, &sub) {
				return nil
			}
			return r.subscriptionDeleted(ctx, tx, log, event.ID, &sub)
		case EventInvoicePaid, EventInvoicePaymentSucceeded:
			var inv stripe.Invoice
			if !decode(log, event, &inv) {
				return nil
			}
			return r.invoicePaid(ctx, tx, log, event.ID, &inv)
		default:
			var inv stripe.Invoice
			if !decode(log, event, &inv) {
				return nil
			}
			return r.invoicePaymentFailed(ctx, tx, log, event.ID, &inv)
		}
	})
}

func decode(log *logrus.Entry, event *stripe.Event, v interface{}) bool {
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		log.WithError(err).Error("failed to decode event object")
		return false
	}
	return true
}

// checkoutCompleted activates the plan bought at checkout. The period window is provisional
// and last_event_at is left alone, so subscription events are never judged stale against it.
func (r *Reconciler) checkoutCompleted(ctx context.Context, tx *gorm.DB, log *logrus.Entry, eventID string, sess *stripe.CheckoutSession) error {
	userID := sess.Metadata["user_id"]
	priceID := sess.Metadata["price_id"]
	if userID == "" || priceID == "" {
		log.Error("checkout session is missing user_id or price_id metadata")
		return nil
	}
	log = log.WithFields(logrus.Fields{"user_id": userID, "price_id": priceID})

	plan, err := planByPrice(tx, priceID)
	if err != nil {
		return err
	}
	if plan == nil {
		log.Error("no subscription plan matches checkout price")
		return nil
	}

	profile, err := profileByID(tx, userID)
	if err != nil {
		return err
	}
	if profile == nil {
		log.Error("checkout session references an unknown user")
		return nil
	}

	now := r.now().UTC()
	end := now.Add(checkoutPeriod)
	sub := models.Subscription{
		UserID:               userID,
		PlanID:               &plan.ID,
		Status:               models.SubscriptionActive,
		StripeSubscriptionID: idOfSubscription(sess.Subscription),
		StripeCustomerID:     idOfCustomer(sess.Customer),
		CurrentPeriodStart:   &now,
		CurrentPeriodEnd:     &end,
		AnalysesUsed:         0,
	}
	err = tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_id", "status", "stripe_subscription_id", "stripe_customer_id",
			"current_period_start", "current_period_end", "cancel_at_period_end",
			"canceled_at", "analyses_used", "updated_at",
		}),
	}).Create(&sub).Error
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	updates := map[string]interface{}{}
	if !isStaff(profile.Role) {
		updates["role"] = roleForPlan(plan.Name)
	}
	if customerID := idOfCustomer(sess.Customer); customerID != "" {
		updates["stripe_customer_id"] = customerID
	}
	if len(updates) > 0 {
		if err := tx.Model(&models.Profile{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
	}

	log.WithField("plan", plan.Name).Info("subscription activated from checkout")
	return activity.Record(ctx, tx, userID, activity.SubscriptionCreated, activity.ResourceSubscription, sub.StripeSubscriptionID,
		models.EventDetails{PlanID: plan.ID, PlanName: plan.Name, Status: models.SubscriptionActive, EventID: eventID})
}

func (r *Reconciler) subscriptionChanged(ctx context.Context, tx *gorm.DB, log *logrus.Entry, eventType, eventID string, occurred time.Time, sub *stripe.Subscription) error {
	customerID := idOfCustomer(sub.Customer)
	profile, err := profileByCustomer(tx, customerID)
	if err != nil {
		return err
	}
	if profile == nil {
		log.WithField("customer_id", customerID).Error("no profile for subscription customer")
		return nil
	}
	log = log.WithField("user_id", profile.ID)

	var planID *string
	var plan *models.SubscriptionPlan
	if priceID := currentPriceID(sub); priceID != "" {
		plan, err = planByPrice(tx, priceID)
		if err != nil {
			return err
		}
		if plan != nil {
			planID = &plan.ID
		} else {
			log.WithField("price_id", priceID).Warn("subscription price matches no plan")
		}
	}

	current, err := subscriptionByUser(tx, profile.ID)
	if err != nil {
		return err
	}

	next, apply := NextSubscriptionState(current, SubscriptionChange{
		UserID:               profile.ID,
		CustomerID:           customerID,
		StripeSubscriptionID: sub.ID,
		ProviderStatus:       string(sub.Status),
		PlanID:               planID,
		PeriodStart:          unixTime(sub.CurrentPeriodStart),
		PeriodEnd:            unixTime(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		CanceledAt:           unixTime(sub.CanceledAt),
		OccurredAt:           occurred,
	})
	if !apply {
		log.Info("ignoring stale subscription event")
		return nil
	}

	action := activity.SubscriptionUpdated
	if current == nil {
		action = activity.SubscriptionCreated
		if err := tx.Create(&next).Error; err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
	} else if err := tx.Save(&next).Error; err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}

	if role := syncedRole(profile.Role, next.Status, plan); role != "" && role != profile.Role {
		if err := tx.Model(&models.Profile{}).Where("id = ?", profile.ID).Update("role", role).Error; err != nil {
			return fmt.Errorf("sync profile role: %w", err)
		}
		log.WithField("role", role).Info("profile role synchronized")
	}

	details := models.EventDetails{Status: next.Status, EventID: eventID}
	if next.PlanID != nil {
		details.PlanID = *next.PlanID
	}
	log.WithField("status", next.Status).Info("subscription synchronized")
	return activity.Record(ctx, tx, profile.ID, action, activity.ResourceSubscription, sub.ID, details)
}

func (r *Reconciler) subscriptionDeleted(ctx context.Context, tx *gorm.DB, log *logrus.Entry, eventID string, sub *stripe.Subscription) error {
	customerID := idOfCustomer(sub.Customer)
	profile, err := profileByCustomer(tx, customerID)
	if err != nil {
		return err
	}
	if profile == nil {
		log.WithField("customer_id", customerID).Error("no profile for canceled subscription")
		return nil
	}

	canceledAt := r.now().UTC()
	if t := unixTime(sub.CanceledAt); t != nil {
		canceledAt = *t
	}
	if err := tx.Model(&models.Subscription{}).Where("user_id = ?", profile.ID).Updates(map[string]interface{}{
		"status":               models.SubscriptionCanceled,
		"canceled_at":          canceledAt,
		"cancel_at_period_end": false,
	}).Error; err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}

	if !isStaff(profile.Role) {
		if err := tx.Model(&models.Profile{}).Where("id = ?", profile.ID).Update("role", models.RoleUser).Error; err != nil {
			return fmt.Errorf("downgrade profile: %w", err)
		}
	}

	log.WithField("user_id", profile.ID).Info("subscription canceled")
	return activity.Record(ctx, tx, profile.ID, activity.SubscriptionCanceled, activity.ResourceSubscription, sub.ID,
		models.EventDetails{Status: models.SubscriptionCanceled, EventID: eventID})
}

func (r *Reconciler) invoicePaid(ctx context.Context, tx *gorm.DB, log *logrus.Entry, eventID string, inv *stripe.Invoice) error {
	customerID := idOfCustomer(inv.Customer)
	profile, err := profileByCustomer(tx, customerID)
	if err != nil {
		return err
	}
	if profile == nil {
		log.WithField("customer_id", customerID).Error("no profile for paid invoice")
		return nil
	}

	// renewal invoices are the only point where the monthly counters reset
	if err := tx.Model(&models.Profile{}).Where("id = ?", profile.ID).
		Update("analyses_this_month", 0).Error; err != nil {
		return fmt.Errorf("reset profile usage: %w", err)
	}
	if err := tx.Model(&models.Subscription{}).Where("user_id = ?", profile.ID).Updates(map[string]interface{}{
		"status":        models.SubscriptionActive,
		"analyses_used": 0,
	}).Error; err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}

	if inv.ID == "" {
		log.Warn("paid invoice has no id, skipping payment record")
		return nil
	}

	var subscriptionID *string
	if current, err := subscriptionByUser(tx, profile.ID); err != nil {
		return err
	} else if current != nil {
		subscriptionID = &current.ID
	}

	paidAt := r.now().UTC()
	if inv.StatusTransitions != nil {
		if t := unixTime(inv.StatusTransitions.PaidAt); t != nil {
			paidAt = *t
		}
	}
	payment := models.Payment{
		UserID:          profile.ID,
		SubscriptionID:  subscriptionID,
		StripeInvoiceID: inv.ID,
		Amount:          inv.AmountPaid,
		Currency:        string(inv.Currency),
		Status:          string(inv.Status),
		PaidAt:          &paidAt,
	}
	if payment.Status == "" {
		payment.Status = "paid"
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_invoice_id"}},
		DoNothing: true,
	}).Create(&payment).Error; err != nil {
		return fmt.Errorf("record payment: %w", err)
	}

	log.WithFields(logrus.Fields{"user_id": profile.ID, "invoice_id": inv.ID}).Info("invoice paid, usage reset")
	return activity.Record(ctx, tx, profile.ID, activity.PaymentSucceeded, activity.ResourcePayment, inv.ID,
		models.EventDetails{InvoiceID: inv.ID, Amount: inv.AmountPaid, Currency: string(inv.Currency), EventID: eventID})
}

func (r *Reconciler) invoicePaymentFailed(ctx context.Context, tx *gorm.DB, log *logrus.Entry, eventID string, inv *stripe.Invoice) error {
	customerID := idOfCustomer(inv.Customer)
	profile, err := profileByCustomer(tx, customerID)
	if err != nil {
		return err
	}
	if profile == nil {
		log.WithField("customer_id", customerID).Error("no profile for failed invoice")
		return nil
	}

	if err := tx.Model(&models.Subscription{}).Where("user_id = ?", profile.ID).
		Update("status", models.SubscriptionPastDue).Error; err != nil {
		return fmt.Errorf("mark subscription past due: %w", err)
	}

	details := models.EventDetails{
		InvoiceID: inv.ID,
		AmountDue: inv.AmountDue,
		Currency:  string(inv.Currency),
		Status:    models.SubscriptionPastDue,
		EventID:   eventID,
	}
	if r.notifier != nil {
		if err := r.notifier.Create(ctx, tx, &models.Notification{
			UserID:    profile.ID,
			Type:      models.NotificationPaymentFailed,
			Title:     "Payment failed",
			Message:   "We couldn't process your latest payment. Please update your payment method to keep your plan active.",
			Priority:  models.PriorityHigh,
			ActionURL: "/dashboard/billing",
			Metadata:  datatypes.NewJSONType(details),
		}); err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{"user_id": profile.ID, "invoice_id": inv.ID}).Warn("invoice payment failed")
	return activity.Record(ctx, tx, profile.ID, activity.PaymentFailed, activity.ResourcePayment, inv.ID, details)
}

func planByPrice(tx *gorm.DB, priceID string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := tx.Where("stripe_price_id_monthly = ? OR stripe_price_id_yearly = ?", priceID, priceID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find plan by price: %w", err)
	}
	return &plan, nil
}

func profileByID(tx *gorm.DB, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := tx.Where("id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &profile, nil
}

func profileByCustomer(tx *gorm.DB, customerID string) (*models.Profile, error) {
	if customerID == "" {
		return nil, nil
	}
	var profile models.Profile
	err := tx.Where("stripe_customer_id = ?", customerID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find profile by customer: %w", err)
	}
	return &profile, nil
}

func subscriptionByUser(tx *gorm.DB, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := tx.Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return &sub, nil
}

func currentPriceID(sub *stripe.Subscription) string {
	if sub.Items == nil {
		return ""
	}
	for _, item := range sub.Items.Data {
		if item != nil && item.Price != nil && item.Price.ID != "" {
			return item.Price.ID
		}
	}
	return ""
}

func idOfCustomer(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func idOfSubscription(s *stripe.Subscription) string {
	if s == nil {
		return ""
	}
	return s.ID
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func roleForPlan(planName string) string {
	if strings.Contains(strings.ToLower(planName), "enterprise") {
		return models.RoleEnterprise
	}
	return models.RolePro
}

// syncedRole returns the role a non-staff profile should hold after a subscription status change,
// or "" when the role stays as it is. past_due, incomplete and paused keep the current role.
func syncedRole(current, status string, plan *models.SubscriptionPlan) string {
	if isStaff(current) {
		return ""
	}
	switch status {
	case models.SubscriptionActive, models.SubscriptionTrialing:
		if plan == nil {
			return ""
		}
		return roleForPlan(plan.Name)
	case models.SubscriptionCanceled, models.SubscriptionUnpaid:
		return models.RoleUser
	}
	return ""
}

func isStaff(role string) bool {
	return role == models.RoleAdmin || role == models.RoleSuperAdmin
}
