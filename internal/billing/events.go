package billing

// Kind identifies a normalized event variant.
type Kind string

const (
	KindSubscriptionUpserted Kind = "subscription_upserted"
	KindSubscriptionDeleted  Kind = "subscription_deleted"
	KindInvoicePaid          Kind = "invoice_paid"
	KindInvoicePaymentFailed Kind = "invoice_payment_failed"
	KindUnhandled            Kind = "unhandled"
)

// BillingReasonSubscriptionCreate is the invoice billing reason for the first
// invoice of a new subscription.
const BillingReasonSubscriptionCreate = "subscription_create"

// EventHeader carries the provider envelope fields shared by every variant.
type EventHeader struct {
	ID      string `validate:"required"`
	Type    string `validate:"required"`
	Created int64
}

// Header returns the envelope fields.
func (h EventHeader) Header() EventHeader { return h }

// Event is a verified, normalized billing event. The set of implementations is
// closed: only the variants in this file satisfy it.
type Event interface {
	Header() EventHeader
	Kind() Kind
	isEvent()
}

// SubscriptionUpserted covers customer.subscription.created and .updated.
type SubscriptionUpserted struct {
	EventHeader
	CustomerID        string `validate:"required"`
	SubscriptionID    string `validate:"required"`
	PriceID           string `validate:"required"`
	Status            string `validate:"required"`
	CurrentPeriodEnd  int64
	CancelAtPeriodEnd bool
	TrialEnd          *int64
}

// SubscriptionDeleted covers customer.subscription.deleted.
type SubscriptionDeleted struct {
	EventHeader
	CustomerID string `validate:"required"`
}

// InvoicePaid covers invoice.paid.
type InvoicePaid struct {
	EventHeader
	CustomerID       string `validate:"required"`
	InvoiceID        string `validate:"required"`
	Status           string
	Currency         string
	AmountPaid       int64
	HostedInvoiceURL string
	InvoicePDF       string
	InvoiceCreated   int64
}

// InvoicePaymentFailed covers invoice.payment_failed.
type InvoicePaymentFailed struct {
	EventHeader
	CustomerID    string `validate:"required"`
	BillingReason string
}

// Unhandled is any event type this service does not act on.
type Unhandled struct {
	EventHeader
}

func (SubscriptionUpserted) Kind() Kind { return KindSubscriptionUpserted }
func (SubscriptionDeleted) Kind() Kind  { return KindSubscriptionDeleted }
func (InvoicePaid) Kind() Kind          { return KindInvoicePaid }
func (InvoicePaymentFailed) Kind() Kind { return KindInvoicePaymentFailed }
func (Unhandled) Kind() Kind            { return KindUnhandled }

func (SubscriptionUpserted) isEvent() {}
func (SubscriptionDeleted) isEvent()  {}
func (InvoicePaid) isEvent()          {}
func (InvoicePaymentFailed) isEvent() {}
func (Unhandled) isEvent()            {}

// CustomerIDOf returns the customer reference of e, or "" for Unhandled.
func CustomerIDOf(e Event) string {
	switch ev := e.(type) {
	case SubscriptionUpserted:
		return ev.CustomerID
	case SubscriptionDeleted:
		return ev.CustomerID
	case InvoicePaid:
		return ev.CustomerID
	case InvoicePaymentFailed:
		return ev.CustomerID
	default:
		return ""
	}
}
