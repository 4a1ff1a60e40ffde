package billing

import (
	"context"

	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/subscription"

	apperrors "myautowhiz-backend/internal/errors"
)

// CheckoutRequest describes a subscription checkout for one user.
type CheckoutRequest struct {
	UserID     string
	Email      string
	PriceID    string
	CustomerID string
	SuccessURL string
	CancelURL  string
}

// Gateway is the outbound surface of the payment provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// StripeGateway calls the Stripe API.
type StripeGateway struct{}

// NewStripeGateway configures the Stripe client key.
func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.UserID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("user_id", req.UserID)
	params.AddMetadata("price_id", req.PriceID)
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	sess, err := session.New(params)
	if err != nil {
		return "", apperrors.Upstream("Stripe checkout", err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := portal.New(params)
	if err != nil {
		return "", apperrors.Upstream("Stripe billing portal", err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := subscription.Cancel(subscriptionID, params); err != nil {
		return apperrors.Upstream("Stripe subscription", err)
	}
	return nil
}
