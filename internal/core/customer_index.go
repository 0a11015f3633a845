package core

import (
	"context"

	"go.uber.org/zap"

	"plansync-backend-go/internal/db"
	"plansync-backend-go/internal/telemetry"
)

// CustomerIndex resolves a billing customer ID to the owning user ID.
type CustomerIndex struct {
	users   db.UserRepository
	metrics *telemetry.Metrics
	logger  *zap.Logger
}

// NewCustomerIndex creates a CustomerIndex over the user repository.
func NewCustomerIndex(users db.UserRepository, metrics *telemetry.Metrics, logger *zap.Logger) *CustomerIndex {
	return &CustomerIndex{users: users, metrics: metrics, logger: logger}
}

// Lookup returns the user ID whose customerId equals customerID, or "" when
// there is none. Two results are requested so duplicates can be detected; the
// first match wins and the duplicate is logged and counted.
func (i *CustomerIndex) Lookup(ctx context.Context, customerID string) (string, error) {
	ids, err := i.users.FindIDsByCustomerID(ctx, customerID, 2)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}
	if len(ids) > 1 {
		i.logger.Warn("Customer ID is linked to more than one user; using the first match",
			zap.String("customer_id", customerID),
			zap.Strings("user_ids", ids),
		)
		if i.metrics != nil {
			i.metrics.CustomerDuplicates.Inc()
		}
	}
	return ids[0], nil
}
