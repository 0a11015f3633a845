package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"plansync-backend-go/internal/models"
	"plansync-backend-go/pkg/messagequeue"
)

// DefaultPlanSubject is the subject plan changes are published on.
const DefaultPlanSubject = "billing.plan.changed"

// PlanChange is emitted after a user's plan flips.
type PlanChange struct {
	UserID     string      `json:"userId"`
	CustomerID string      `json:"customerId"`
	From       models.Plan `json:"from"`
	To         models.Plan `json:"to"`
	EventID    string      `json:"eventId"`
	Kind       string      `json:"kind"`
	At         time.Time   `json:"at"`
}

// Publisher fans plan changes out to interested services.
type Publisher interface {
	PublishPlanChange(ctx context.Context, change PlanChange) error
}

type queuePublisher struct {
	mq      messagequeue.MessageQueue
	subject string
}

// NewQueuePublisher publishes JSON-encoded plan changes on subject.
func NewQueuePublisher(mq messagequeue.MessageQueue, subject string) Publisher {
	if subject == "" {
		subject = DefaultPlanSubject
	}
	return &queuePublisher{mq: mq, subject: subject}
}

func (p *queuePublisher) PublishPlanChange(ctx context.Context, change PlanChange) error {
	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode plan change: %w", err)
	}
	return p.mq.Publish(ctx, p.subject, body)
}

type noopPublisher struct{}

// NewNoopPublisher returns a Publisher that drops everything. Used when no
// broker is configured.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PublishPlanChange(context.Context, PlanChange) error { return nil }
