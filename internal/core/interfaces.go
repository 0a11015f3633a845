package core

import (
	"context"

	"plansync-backend-go/internal/models"
)

// UserService defines the read side of user records exposed to clients.
type UserService interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

// BillingService defines the billing operations behind the HTTP API.
type BillingService interface {
	// CreateCheckoutSession links a billing customer to the user if needed and
	// starts a subscription checkout for priceID.
	CreateCheckoutSession(ctx context.Context, userID, priceID string) (*CheckoutSessionResult, error)
	// CreatePortalSession returns the URL of the customer self-service portal.
	CreatePortalSession(ctx context.Context, userID string) (string, error)
	// HandleStripeWebhook verifies, normalizes and reconciles one delivery.
	HandleStripeWebhook(ctx context.Context, signature string, payload []byte) (*ReconcileResult, error)
}

// BillingEventService defines the per-delivery billing event log.
type BillingEventService interface {
	Record(ctx context.Context, event models.BillingEvent) error
	ListForUser(ctx context.Context, userID string, limit int) ([]models.BillingEvent, error)
}
