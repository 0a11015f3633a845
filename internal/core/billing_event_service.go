package core

import (
	"context"
	"errors"
	"fmt"

	"plansync-backend-go/internal/db"
	"plansync-backend-go/internal/models"
)

const (
	defaultEventListLimit = 20
	maxEventListLimit     = 100
)

// billingEventService implements the BillingEventService interface.
type billingEventService struct {
	eventRepo db.BillingEventRepository
}

// NewBillingEventService creates a new BillingEventService instance.
func NewBillingEventService(eventRepo db.BillingEventRepository) BillingEventService {
	return &billingEventService{
		eventRepo: eventRepo,
	}
}

// Record stores one delivery record.
func (s *billingEventService) Record(ctx context.Context, event models.BillingEvent) error {
	if s.eventRepo == nil {
		return errors.New("BillingEventRepository not initialized in BillingEventService")
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to record billing event '%s': %w", event.EventID, err)
	}
	return nil
}

// ListForUser returns the newest records for a user. limit is clamped to [1, 100].
func (s *billingEventService) ListForUser(ctx context.Context, userID string, limit int) ([]models.BillingEvent, error) {
	if s.eventRepo == nil {
		return nil, errors.New("BillingEventRepository not initialized in BillingEventService")
	}
	if limit <= 0 {
		limit = defaultEventListLimit
	}
	if limit > maxEventListLimit {
		limit = maxEventListLimit
	}
	events, err := s.eventRepo.ListByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list billing events for user '%s': %v", ErrStoreUnavailable, userID, err)
	}
	return events, nil
}
