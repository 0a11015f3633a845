package models

import "time"

// BillingEventOutcome is what the reconciler did with a delivery.
type BillingEventOutcome string

const (
	OutcomeApplied BillingEventOutcome = "applied"
	OutcomeSkipped BillingEventOutcome = "skipped"
	OutcomeIgnored BillingEventOutcome = "ignored"
	OutcomeFailed  BillingEventOutcome = "failed"
)

// BillingEvent records one webhook delivery and its result.
// Several records can share an EventID when the provider redelivers.
type BillingEvent struct {
	ID         string              `json:"id" firestore:"-" bson:"_id"`
	EventID    string              `json:"eventId" firestore:"eventId" bson:"eventId"`
	Type       string              `json:"type" firestore:"type" bson:"type"`                                                 // raw provider type, e.g. "invoice.paid"
	Kind       string              `json:"kind" firestore:"kind" bson:"kind"`
	CustomerID string              `json:"customerId,omitempty" firestore:"customerId,omitempty" bson:"customerId,omitempty"`
	UserID     string              `json:"userId,omitempty" firestore:"userId,omitempty" bson:"userId,omitempty"`
	Outcome    BillingEventOutcome `json:"outcome" firestore:"outcome" bson:"outcome"`
	PlanBefore Plan                `json:"planBefore,omitempty" firestore:"planBefore,omitempty" bson:"planBefore,omitempty"`
	PlanAfter  Plan                `json:"planAfter,omitempty" firestore:"planAfter,omitempty" bson:"planAfter,omitempty"`
	ErrorCode  string              `json:"errorCode,omitempty" firestore:"errorCode,omitempty" bson:"errorCode,omitempty"`
	ReceivedAt time.Time           `json:"receivedAt" firestore:"receivedAt" bson:"receivedAt"`
}
