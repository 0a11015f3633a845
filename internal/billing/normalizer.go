package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// DefaultTolerance is the accepted age of a signed webhook payload.
const DefaultTolerance = webhook.DefaultTolerance

// Normalizer verifies Stripe webhook payloads and turns them into Events.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	secret    string
	tolerance time.Duration
}

// NewNormalizer creates a Normalizer for the given signing secret.
// A non-positive tolerance falls back to DefaultTolerance.
func NewNormalizer(secret string, tolerance time.Duration) *Normalizer {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Normalizer{secret: secret, tolerance: tolerance}
}

// Normalize verifies payload against signatureHeader (the Stripe-Signature
// header value) and classifies it. Verification always happens first, and a
// failure there is reported as ErrSignatureInvalid regardless of the payload.
func (n *Normalizer) Normalize(payload []byte, signatureHeader string) (Event, error) {
	if n.secret == "" {
		return nil, fmt.Errorf("%w: signing secret not configured", ErrSignatureInvalid)
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, signatureHeader, n.secret, n.tolerance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	var envelope stripe.Event
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrMalformedEvent, err)
	}
	if envelope.ID == "" || envelope.Type == "" {
		return nil, fmt.Errorf("%w: envelope is missing id or type", ErrMalformedEvent)
	}

	return classify(envelope)
}

func classify(envelope stripe.Event) (Event, error) {
	header := EventHeader{
		ID:      envelope.ID,
		Type:    string(envelope.Type),
		Created: envelope.Created,
	}

	switch envelope.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		raw, err := objectOf(envelope)
		if err != nil {
			return nil, err
		}
		return subscriptionUpserted(header, raw)

	case "customer.subscription.deleted":
		raw, err := objectOf(envelope)
		if err != nil {
			return nil, err
		}
		var sub stripe.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: decode subscription: %v", ErrMalformedEvent, err)
		}
		return SubscriptionDeleted{EventHeader: header, CustomerID: customerID(sub.Customer)}, nil

	case "invoice.paid":
		raw, err := objectOf(envelope)
		if err != nil {
			return nil, err
		}
		var inv stripe.Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: decode invoice: %v", ErrMalformedEvent, err)
		}
		return InvoicePaid{
			EventHeader:      header,
			CustomerID:       customerID(inv.Customer),
			InvoiceID:        inv.ID,
			Status:           string(inv.Status),
			Currency:         string(inv.Currency),
			AmountPaid:       inv.AmountPaid,
			HostedInvoiceURL: inv.HostedInvoiceURL,
			InvoicePDF:       inv.InvoicePDF,
			InvoiceCreated:   inv.Created,
		}, nil

	case "invoice.payment_failed":
		raw, err := objectOf(envelope)
		if err != nil {
			return nil, err
		}
		var inv stripe.Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: decode invoice: %v", ErrMalformedEvent, err)
		}
		return InvoicePaymentFailed{
			EventHeader:   header,
			CustomerID:    customerID(inv.Customer),
			BillingReason: string(inv.BillingReason),
		}, nil

	default:
		return Unhandled{EventHeader: header}, nil
	}
}

func subscriptionUpserted(header EventHeader, raw json.RawMessage) (Event, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("%w: decode subscription: %v", ErrMalformedEvent, err)
	}

	ev := SubscriptionUpserted{
		EventHeader:       header,
		CustomerID:        customerID(sub.Customer),
		SubscriptionID:    sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.TrialEnd > 0 {
		trialEnd := sub.TrialEnd
		ev.TrialEnd = &trialEnd
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 {
		first := sub.Items.Data[0]
		if first.Price != nil {
			ev.PriceID = first.Price.ID
		}
		ev.CurrentPeriodEnd = first.CurrentPeriodEnd
	}
	if ev.CurrentPeriodEnd == 0 {
		// Older API versions put the period on the subscription itself.
		var legacy struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		}
		if err := json.Unmarshal(raw, &legacy); err == nil {
			ev.CurrentPeriodEnd = legacy.CurrentPeriodEnd
		}
	}
	return ev, nil
}

func objectOf(envelope stripe.Event) (json.RawMessage, error) {
	if envelope.Data == nil || len(envelope.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: %s has no data.object", ErrMalformedEvent, envelope.Type)
	}
	return envelope.Data.Raw, nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
