package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
)

// MetadataFirebaseUID is the metadata key linking Stripe objects back to a user.
const MetadataFirebaseUID = "firebaseUID"

// StripeConfig configures the Stripe API client.
type StripeConfig struct {
	SecretKey         string
	MaxNetworkRetries int64
	// BackendURL overrides the API base URL. Tests point it at an httptest server.
	BackendURL string
}

// StripeProvider implements Provider using Stripe resource clients bound to
// one key and backend. The package-level stripe.Key is never touched.
type StripeProvider struct {
	customers customer.Client
	checkout  checkoutsession.Client
	portal    portalsession.Client
}

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if cfg.SecretKey == "" {
		return nil, ErrInvalidAPIKey
	}

	backendConfig := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.BackendURL != "" {
		backendConfig.URL = stripe.String(cfg.BackendURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)

	return &StripeProvider{
		customers: customer.Client{B: backend, Key: cfg.SecretKey},
		checkout:  checkoutsession.Client{B: backend, Key: cfg.SecretKey},
		portal:    portalsession.Client{B: backend, Key: cfg.SecretKey},
	}, nil
}

// CreateCustomer creates a Stripe customer. The idempotency key is derived from
// the user ID, so two concurrent first checkouts for the same user within
// Stripe's idempotency window resolve to the same customer.
func (s *StripeProvider) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	customerParams := &stripe.CustomerParams{}
	customerParams.Context = ctx
	if params.Email != "" {
		customerParams.Email = stripe.String(params.Email)
	}
	if params.Name != "" {
		customerParams.Name = stripe.String(params.Name)
	}
	customerParams.AddMetadata(MetadataFirebaseUID, params.UserID)
	customerParams.SetIdempotencyKey("customer-create-" + params.UserID)

	c, err := s.customers.New(customerParams)
	if err != nil {
		return nil, fmt.Errorf("%w: create customer: %w", ErrProvider, err)
	}
	return &Customer{ID: c.ID, Email: c.Email}, nil
}

// CreateCheckoutSession creates a subscription-mode Checkout Session.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(params.CustomerID),
		ClientReferenceID: stripe.String(params.UserID),
		SuccessURL:        stripe.String(params.SuccessURL),
		CancelURL:         stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataFirebaseUID: params.UserID},
		},
	}
	sessionParams.Context = ctx

	sess, err := s.checkout.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %w", ErrProvider, err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// CreatePortalSession creates a Billing Portal session.
func (s *StripeProvider) CreatePortalSession(ctx context.Context, params PortalSessionParams) (*PortalSession, error) {
	portalParams := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(params.CustomerID),
		ReturnURL: stripe.String(params.ReturnURL),
	}
	portalParams.Context = ctx

	sess, err := s.portal.New(portalParams)
	if err != nil {
		return nil, fmt.Errorf("%w: create portal session: %w", ErrProvider, err)
	}
	return &PortalSession{ID: sess.ID, URL: sess.URL}, nil
}
