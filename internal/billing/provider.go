package billing

import (
	"context"
	"fmt"
)

// Provider is the outbound side of the billing integration: the calls this
// service makes to the billing provider on behalf of a signed-in user.
type Provider interface {
	// CreateCustomer creates a customer tagged with the user's Firebase UID.
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// CreateCheckoutSession starts a subscription checkout for one price.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)

	// CreatePortalSession opens the self-service portal for an existing customer.
	CreatePortalSession(ctx context.Context, params PortalSessionParams) (*PortalSession, error)
}

// CreateCustomerParams contains parameters for creating a customer.
type CreateCustomerParams struct {
	UserID string
	Email  string
	Name   string
}

// Customer is a billing provider customer.
type Customer struct {
	ID    string
	Email string
}

// CheckoutSessionParams contains parameters for a subscription checkout.
type CheckoutSessionParams struct {
	CustomerID string
	UserID     string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the created hosted checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// PortalSessionParams contains parameters for a customer portal session.
type PortalSessionParams struct {
	CustomerID string
	ReturnURL  string
}

// PortalSession is the created portal session.
type PortalSession struct {
	ID  string
	URL string
}

type unconfiguredProvider struct{}

// NewUnconfiguredProvider returns a Provider whose calls all fail with
// ErrProvider and ErrInvalidAPIKey. It stands in when no secret key is set so
// that webhooks can still be processed.
func NewUnconfiguredProvider() Provider {
	return unconfiguredProvider{}
}

func (unconfiguredProvider) CreateCustomer(context.Context, CreateCustomerParams) (*Customer, error) {
	return nil, fmt.Errorf("%w: %w", ErrProvider, ErrInvalidAPIKey)
}

func (unconfiguredProvider) CreateCheckoutSession(context.Context, CheckoutSessionParams) (*CheckoutSession, error) {
	return nil, fmt.Errorf("%w: %w", ErrProvider, ErrInvalidAPIKey)
}

func (unconfiguredProvider) CreatePortalSession(context.Context, PortalSessionParams) (*PortalSession, error) {
	return nil, fmt.Errorf("%w: %w", ErrProvider, ErrInvalidAPIKey)
}
