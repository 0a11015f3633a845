package billing

import "errors"

var (
	// ErrSignatureInvalid is returned when a webhook payload fails signature
	// verification: missing or unparsable header, wrong secret, mutated payload
	// or a timestamp outside the tolerance window.
	ErrSignatureInvalid = errors.New("billing: webhook signature invalid")

	// ErrMalformedEvent is returned when a verified payload is not a decodable
	// event envelope, or its object does not match the declared type.
	ErrMalformedEvent = errors.New("billing: malformed event")

	// ErrInvalidAPIKey is returned when the Stripe secret key is missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrProvider wraps failures returned by the billing provider API.
	ErrProvider = errors.New("billing: provider request failed")
)
