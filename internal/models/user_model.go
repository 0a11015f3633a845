package models

import "time"

// Plan is the coarse entitlement flag derived from the billing subscription status.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// User represents a user document in the users collection.
// Only CustomerID, Plan, Subscription and Invoices are billing-owned; every other
// field belongs to the user-management side and is never written by billing code.
type User struct {
	// Firebase Auth UID, also the document ID.
	ID           string                   `json:"id" firestore:"-" bson:"_id"`
	UID          string                   `json:"uid,omitempty" firestore:"uid,omitempty" bson:"uid,omitempty"`
	Email        string                   `json:"email" firestore:"email" bson:"email"`
	DisplayName  string                   `json:"displayName,omitempty" firestore:"displayName,omitempty" bson:"displayName,omitempty"`
	PhotoURL     string                   `json:"photoURL,omitempty" firestore:"photoURL,omitempty" bson:"photoURL,omitempty"`
	Usage        map[string]int64         `json:"usage,omitempty" firestore:"usage,omitempty" bson:"usage,omitempty"`
	CustomerID   string                   `json:"customerId,omitempty" firestore:"customerId,omitempty" bson:"customerId,omitempty"`
	Plan         Plan                     `json:"plan" firestore:"plan" bson:"plan"`
	Subscription *Subscription            `json:"subscription" firestore:"subscription" bson:"subscription"`
	Invoices     map[string]InvoiceRecord `json:"invoices,omitempty" firestore:"invoices,omitempty" bson:"invoices,omitempty"`
	CreatedAt    time.Time                `json:"createdAt" firestore:"createdAt,serverTimestamp" bson:"createdAt"`
	UpdatedAt    time.Time                `json:"updatedAt" firestore:"updatedAt,serverTimestamp" bson:"updatedAt"`
}

// Subscription is the embedded billing subscription. It is always replaced as a whole.
type Subscription struct {
	SubscriptionID    string `json:"subscriptionId" firestore:"subscriptionId" bson:"subscriptionId"`
	PriceID           string `json:"priceId" firestore:"priceId" bson:"priceId"`
	Status            string `json:"status" firestore:"status" bson:"status"`
	CurrentPeriodEnd  int64  `json:"currentPeriodEnd" firestore:"currentPeriodEnd" bson:"currentPeriodEnd"`
	CancelAtPeriodEnd bool   `json:"cancelAtPeriodEnd" firestore:"cancelAtPeriodEnd" bson:"cancelAtPeriodEnd"`
	TrialEnd          *int64 `json:"trialEnd" firestore:"trialEnd" bson:"trialEnd"`
}

// InvoiceRecord is the metadata kept for a paid invoice, keyed by invoice ID on the user.
type InvoiceRecord struct {
	Status           string `json:"status" firestore:"status" bson:"status"`
	Currency         string `json:"currency" firestore:"currency" bson:"currency"`
	AmountPaid       int64  `json:"amountPaid" firestore:"amountPaid" bson:"amountPaid"`
	HostedInvoiceURL string `json:"hostedInvoiceUrl" firestore:"hostedInvoiceUrl" bson:"hostedInvoiceUrl"`
	InvoicePDF       string `json:"invoicePdf" firestore:"invoicePdf" bson:"invoicePdf"`
	Created          int64  `json:"created" firestore:"created" bson:"created"`
}

// Clone returns a deep copy of the user so callers can mutate it freely.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Usage != nil {
		c.Usage = make(map[string]int64, len(u.Usage))
		for k, v := range u.Usage {
			c.Usage[k] = v
		}
	}
	if u.Subscription != nil {
		sub := *u.Subscription
		if u.Subscription.TrialEnd != nil {
			te := *u.Subscription.TrialEnd
			sub.TrialEnd = &te
		}
		c.Subscription = &sub
	}
	if u.Invoices != nil {
		c.Invoices = make(map[string]InvoiceRecord, len(u.Invoices))
		for k, v := range u.Invoices {
			c.Invoices[k] = v
		}
	}
	return &c
}

// EffectivePlan treats an empty plan as free.
func (u *User) EffectivePlan() Plan {
	if u == nil || u.Plan == "" {
		return PlanFree
	}
	return u.Plan
}
