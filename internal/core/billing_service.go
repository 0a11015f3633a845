package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"plansync-backend-go/internal/billing"
	"plansync-backend-go/internal/db"
	"plansync-backend-go/internal/models"
	"plansync-backend-go/internal/telemetry"
)

// CheckoutURLs are the browser redirect targets handed to the billing provider.
type CheckoutURLs struct {
	SuccessURL string
	CancelURL  string
	ReturnURL  string
}

// CheckoutSessionResult is returned by CreateCheckoutSession.
type CheckoutSessionResult struct {
	SessionID string
	URL       string
}

// BillingServiceDeps groups the collaborators of the billing service.
type BillingServiceDeps struct {
	Normalizer *billing.Normalizer
	Reconciler *Reconciler
	Provider   billing.Provider
	Users      db.UserRepository
	Events     BillingEventService
	Metrics    *telemetry.Metrics
	Logger     *zap.Logger
	URLs       CheckoutURLs
	// AllowedPriceIDs restricts checkout to these prices. Empty allows any.
	AllowedPriceIDs []string
}

// billingService implements the BillingService interface.
type billingService struct {
	normalizer    *billing.Normalizer
	reconciler    *Reconciler
	provider      billing.Provider
	users         db.UserRepository
	events        BillingEventService
	metrics       *telemetry.Metrics
	logger        *zap.Logger
	urls          CheckoutURLs
	allowedPrices map[string]struct{}
	now           func() time.Time
}

// NewBillingService creates a new BillingService instance.
func NewBillingService(deps BillingServiceDeps) BillingService {
	allowed := make(map[string]struct{}, len(deps.AllowedPriceIDs))
	for _, id := range deps.AllowedPriceIDs {
		if id != "" {
			allowed[id] = struct{}{}
		}
	}
	return &billingService{
		normalizer:    deps.Normalizer,
		reconciler:    deps.Reconciler,
		provider:      deps.Provider,
		users:         deps.Users,
		events:        deps.Events,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		urls:          deps.URLs,
		allowedPrices: allowed,
		now:           time.Now,
	}
}

// HandleStripeWebhook runs normalize, reconcile and the event log for one delivery.
// The returned error is classified by WebhookErrorCode.
func (s *billingService) HandleStripeWebhook(ctx context.Context, signature string, payload []byte) (*ReconcileResult, error) {
	start := s.now()
	receivedAt := start.UTC()

	ev, err := s.normalizer.Normalize(payload, signature)
	if err != nil {
		code := WebhookErrorCode(err)
		s.logger.Warn("Rejected Stripe webhook", zap.String("code", code), zap.Error(err))
		if s.metrics != nil {
			s.metrics.WebhookFailed.WithLabelValues(code).Inc()
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.WebhookReceived.WithLabelValues(ev.Header().Type).Inc()
	}

	res, err := s.reconciler.Reconcile(ctx, ev)
	code := WebhookErrorCode(err)
	if err != nil {
		s.logger.Error("Failed to reconcile Stripe webhook",
			zap.String("event_id", ev.Header().ID),
			zap.String("event_type", ev.Header().Type),
			zap.String("code", code),
			zap.Error(err),
		)
	}
	if s.metrics != nil {
		s.metrics.WebhookProcessed.WithLabelValues(string(res.Kind), string(res.Outcome)).Inc()
		s.metrics.WebhookLatency.WithLabelValues(string(res.Kind)).Observe(s.now().Sub(start).Seconds())
		if err != nil {
			s.metrics.WebhookFailed.WithLabelValues(code).Inc()
		}
	}

	s.record(ctx, models.BillingEvent{
		EventID:    res.EventID,
		Type:       ev.Header().Type,
		Kind:       string(res.Kind),
		CustomerID: res.CustomerID,
		UserID:     res.UserID,
		Outcome:    res.Outcome,
		PlanBefore: res.PlanBefore,
		PlanAfter:  res.PlanAfter,
		ErrorCode:  code,
		ReceivedAt: receivedAt,
	})
	return res, err
}

// record writes to the event log. Failures never affect the delivery response.
func (s *billingService) record(ctx context.Context, event models.BillingEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(ctx, event); err != nil {
		s.logger.Warn("Failed to record billing event", zap.String("event_id", event.EventID), zap.Error(err))
	}
}

// CreateCheckoutSession creates a subscription-mode checkout session for the user,
// creating and linking a billing customer on first use.
func (s *billingService) CreateCheckoutSession(ctx context.Context, userID, priceID string) (*CheckoutSessionResult, error) {
	if len(s.allowedPrices) > 0 {
		if _, ok := s.allowedPrices[priceID]; !ok {
			return nil, fmt.Errorf("%w: price ID '%s'", ErrPlanNotFound, priceID)
		}
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	customerID := user.CustomerID
	if customerID == "" {
		// Concurrent first checkouts for one user may both get here. The
		// provider idempotency key collapses them into a single customer.
		customer, err := s.provider.CreateCustomer(ctx, billing.CreateCustomerParams{
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.DisplayName,
		})
		if err != nil {
			return nil, err
		}
		if err := s.users.SetCustomerID(ctx, user.ID, customer.ID); err != nil {
			return nil, s.storeError(err, "link customer to user '%s'", user.ID)
		}
		customerID = customer.ID
		s.logger.Info("Linked billing customer to user", zap.String("user_id", user.ID), zap.String("customer_id", customerID))
	}

	session, err := s.provider.CreateCheckoutSession(ctx, billing.CheckoutSessionParams{
		CustomerID: customerID,
		UserID:     user.ID,
		PriceID:    priceID,
		SuccessURL: s.urls.SuccessURL,
		CancelURL:  s.urls.CancelURL,
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutSessionResult{SessionID: session.ID, URL: session.URL}, nil
}

// CreatePortalSession returns a billing portal URL for a user that has a customer.
func (s *billingService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.CustomerID == "" {
		return "", fmt.Errorf("%w for user %s", ErrUserStripeNotLinked, userID)
	}

	session, err := s.provider.CreatePortalSession(ctx, billing.PortalSessionParams{
		CustomerID: user.CustomerID,
		ReturnURL:  s.urls.ReturnURL,
	})
	if err != nil {
		return "", err
	}
	return session.URL, nil
}

func (s *billingService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, s.storeError(err, "get user '%s'", userID)
	}
	return user, nil
}

func (s *billingService) storeError(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUserNotFound, msg)
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, msg, err)
}
