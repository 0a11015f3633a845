package api

import (
	"plansync-backend-go/internal/middleware"
	"plansync-backend-go/internal/models"
)

// ErrorResponse is the error envelope shared with the middleware package.
type ErrorResponse = middleware.ErrorResponse

// WebhookAckResponse acknowledges a webhook delivery.
type WebhookAckResponse struct {
	Received bool `json:"received"`
}

// CreateCheckoutSessionRequest defines the structure for creating a Stripe Checkout session.
type CreateCheckoutSessionRequest struct {
	PriceID string `json:"priceId" binding:"required"`
}

// CreateCheckoutSessionResponse returns the created Stripe Checkout session.
type CreateCheckoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreatePortalSessionResponse returns the URL for the Stripe Customer Portal.
type CreatePortalSessionResponse struct {
	URL string `json:"url"`
}

// BillingViewResponse is the billing-owned part of a user record.
type BillingViewResponse struct {
	ID           string                          `json:"id"`
	Email        string                          `json:"email,omitempty"`
	CustomerID   string                          `json:"customerId,omitempty"`
	Plan         models.Plan                     `json:"plan"`
	Subscription *models.Subscription            `json:"subscription"`
	Invoices     map[string]models.InvoiceRecord `json:"invoices"`
}

// BillingEventsResponse lists billing event log records, newest first.
type BillingEventsResponse struct {
	Events []models.BillingEvent `json:"events"`
}

// HealthResponse reports the status of the service and its dependencies.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func newBillingView(u *models.User) BillingViewResponse {
	invoices := u.Invoices
	if invoices == nil {
		invoices = map[string]models.InvoiceRecord{}
	}
	return BillingViewResponse{
		ID:           u.ID,
		Email:        u.Email,
		CustomerID:   u.CustomerID,
		Plan:         u.EffectivePlan(),
		Subscription: u.Subscription,
		Invoices:     invoices,
	}
}
