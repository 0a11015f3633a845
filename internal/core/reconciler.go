package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"plansync-backend-go/internal/billing"
	"plansync-backend-go/internal/db"
	"plansync-backend-go/internal/lock"
	"plansync-backend-go/internal/models"
	"plansync-backend-go/internal/notify"
	"plansync-backend-go/internal/telemetry"
)

// ReconcileResult describes what Reconcile did with one event.
type ReconcileResult struct {
	Kind       billing.Kind
	EventID    string
	CustomerID string
	UserID     string
	Outcome    models.BillingEventOutcome
	PlanBefore models.Plan
	PlanAfter  models.Plan
}

// Reconciler applies normalized billing events to user records.
type Reconciler struct {
	users     db.UserRepository
	index     *CustomerIndex
	locker    lock.Locker
	publisher notify.Publisher
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	validate  *validator.Validate
	now       func() time.Time
}

// NewReconciler creates a Reconciler. A nil publisher drops plan changes and
// a nil metrics disables instrumentation.
func NewReconciler(users db.UserRepository, locker lock.Locker, publisher notify.Publisher, metrics *telemetry.Metrics, logger *zap.Logger) *Reconciler {
	if publisher == nil {
		publisher = notify.NewNoopPublisher()
	}
	return &Reconciler{
		users:     users,
		index:     NewCustomerIndex(users, metrics, logger),
		locker:    locker,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		validate:  validator.New(),
		now:       time.Now,
	}
}

// Reconcile looks up the user the event's customer belongs to and applies the
// event's mutation in one partial update. The returned result is non-nil even
// when an error is returned.
func (r *Reconciler) Reconcile(ctx context.Context, ev billing.Event) (*ReconcileResult, error) {
	res := &ReconcileResult{
		Kind:       ev.Kind(),
		EventID:    ev.Header().ID,
		CustomerID: billing.CustomerIDOf(ev),
		Outcome:    models.OutcomeIgnored,
	}
	log := r.logger.With(
		zap.String("event_id", res.EventID),
		zap.String("event_type", ev.Header().Type),
		zap.String("kind", string(res.Kind)),
	)

	if _, ok := ev.(billing.Unhandled); ok {
		log.Debug("Ignoring unhandled billing event type")
		return res, nil
	}
	patch, ok := patchFor(ev)
	if !ok {
		log.Debug("Billing event requires no mutation")
		return res, nil
	}
	if err := r.validate.Struct(ev); err != nil {
		res.Outcome = models.OutcomeFailed
		return res, fmt.Errorf("%w: %s %s: %v", ErrMalformedEvent, res.Kind, res.EventID, err)
	}

	userID, err := r.index.Lookup(ctx, res.CustomerID)
	if err != nil {
		res.Outcome = models.OutcomeFailed
		return res, fmt.Errorf("%w: lookup customer %s: %v", ErrStoreUnavailable, res.CustomerID, err)
	}
	if userID == "" {
		return r.onMissingUser(log, res)
	}
	res.UserID = userID
	log = log.With(zap.String("user_id", userID))

	release, err := r.locker.Acquire(ctx, userID)
	if err != nil {
		res.Outcome = models.OutcomeFailed
		return res, fmt.Errorf("%w: lock user %s: %v", ErrStoreUnavailable, userID, err)
	}
	before, err := r.users.UpdateFields(ctx, userID, patch)
	release()
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			// The document disappeared between lookup and update.
			return r.onMissingUser(log, res)
		}
		if errors.Is(err, db.ErrInvalidPatch) {
			res.Outcome = models.OutcomeFailed
			return res, fmt.Errorf("%w: %s %s: %v", ErrMalformedEvent, res.Kind, res.EventID, err)
		}
		res.Outcome = models.OutcomeFailed
		return res, fmt.Errorf("%w: update user %s: %v", ErrStoreUnavailable, userID, err)
	}

	res.Outcome = models.OutcomeApplied
	res.PlanBefore = before.EffectivePlan()
	res.PlanAfter = res.PlanBefore
	if patch.Plan != nil {
		res.PlanAfter = *patch.Plan
	}
	log.Info("Billing event applied",
		zap.String("plan_before", string(res.PlanBefore)),
		zap.String("plan_after", string(res.PlanAfter)),
	)

	if res.PlanBefore != res.PlanAfter {
		r.planChanged(ctx, log, res)
	}
	return res, nil
}

func (r *Reconciler) onMissingUser(log *zap.Logger, res *ReconcileResult) (*ReconcileResult, error) {
	if res.Kind == billing.KindSubscriptionUpserted {
		res.Outcome = models.OutcomeFailed
		return res, fmt.Errorf("%w: no user for customer %s", ErrUserNotFound, res.CustomerID)
	}
	log.Warn("No user for billing customer; skipping event", zap.String("customer_id", res.CustomerID))
	res.Outcome = models.OutcomeSkipped
	return res, nil
}

func (r *Reconciler) planChanged(ctx context.Context, log *zap.Logger, res *ReconcileResult) {
	if r.metrics != nil {
		r.metrics.PlanTransitions.WithLabelValues(string(res.PlanBefore), string(res.PlanAfter)).Inc()
	}
	change := notify.PlanChange{
		UserID:     res.UserID,
		CustomerID: res.CustomerID,
		From:       res.PlanBefore,
		To:         res.PlanAfter,
		EventID:    res.EventID,
		Kind:       string(res.Kind),
		At:         r.now().UTC(),
	}
	if err := r.publisher.PublishPlanChange(ctx, change); err != nil {
		log.Error("Failed to publish plan change", zap.Error(err))
		if r.metrics != nil {
			r.metrics.PlanPublishFailures.Inc()
		}
	}
}

// PlanForStatus maps a subscription status to the plan it entitles.
func PlanForStatus(status string) models.Plan {
	switch status {
	case "active", "trialing":
		return models.PlanPro
	default:
		return models.PlanFree
	}
}

// patchFor builds the mutation for ev. ok is false when the event needs none.
func patchFor(ev billing.Event) (patch models.UserPatch, ok bool) {
	switch e := ev.(type) {
	case billing.SubscriptionUpserted:
		sub := &models.Subscription{
			SubscriptionID:    e.SubscriptionID,
			PriceID:           e.PriceID,
			Status:            e.Status,
			CurrentPeriodEnd:  e.CurrentPeriodEnd,
			CancelAtPeriodEnd: e.CancelAtPeriodEnd,
		}
		if e.TrialEnd != nil {
			te := *e.TrialEnd
			sub.TrialEnd = &te
		}
		return models.UserPatch{Plan: models.PlanPtr(PlanForStatus(e.Status)), Subscription: sub}, true

	case billing.SubscriptionDeleted:
		return models.UserPatch{Plan: models.PlanPtr(models.PlanFree), ClearSubscription: true}, true

	case billing.InvoicePaid:
		return models.UserPatch{Invoices: map[string]models.InvoiceRecord{
			e.InvoiceID: {
				Status:           e.Status,
				Currency:         e.Currency,
				AmountPaid:       e.AmountPaid,
				HostedInvoiceURL: e.HostedInvoiceURL,
				InvoicePDF:       e.InvoicePDF,
				Created:          e.InvoiceCreated,
			},
		}}, true

	case billing.InvoicePaymentFailed:
		// Only a failed first invoice (trial conversion) downgrades; renewals
		// are left to the subscription status events.
		if e.BillingReason != billing.BillingReasonSubscriptionCreate {
			return models.UserPatch{}, false
		}
		return models.UserPatch{Plan: models.PlanPtr(models.PlanFree), ClearSubscription: true}, true

	default:
		return models.UserPatch{}, false
	}
}
