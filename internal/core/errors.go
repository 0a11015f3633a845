package core

import (
	"errors"
	"fmt"

	"plansync-backend-go/internal/billing"
)

var (
	// ErrUserNotFound is returned when a user (or the user a customer maps to) does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrMalformedEvent is returned when a normalized event fails validation.
	// It wraps billing.ErrMalformedEvent so callers can test for either.
	ErrMalformedEvent = fmt.Errorf("invalid billing event: %w", billing.ErrMalformedEvent)

	// ErrStoreUnavailable is returned for any store failure other than not-found.
	// The provider retries these deliveries.
	ErrStoreUnavailable = errors.New("user store unavailable")

	// ErrPlanNotFound is returned when checkout is requested for a price that is not offered.
	ErrPlanNotFound = errors.New("plan or price ID not found")

	// ErrUserStripeNotLinked is returned when a portal session is requested for a
	// user that never went through checkout.
	ErrUserStripeNotLinked = errors.New("user does not have a Stripe customer ID")
)

// Error codes reported to webhook senders and recorded in the billing event log.
const (
	CodeSignatureInvalid = "signature_invalid"
	CodeMalformedEvent   = "malformed_event"
	CodeUserNotFound     = "user_not_found"
	CodeStoreUnavailable = "store_unavailable"
	CodeInternalError    = "internal_error"
)

// WebhookErrorCode classifies an error returned by HandleStripeWebhook.
func WebhookErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, billing.ErrSignatureInvalid):
		return CodeSignatureInvalid
	case errors.Is(err, billing.ErrMalformedEvent):
		return CodeMalformedEvent
	case errors.Is(err, ErrUserNotFound):
		return CodeUserNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	default:
		return CodeInternalError
	}
}
