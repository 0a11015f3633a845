package db

import (
	"context"

	"plansync-backend-go/internal/models"
)

// UserRepository defines the storage operations on user documents needed by billing.
// Implementations must never overwrite a whole document: collaborator-owned
// fields stay untouched by every method here.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	// FindIDsByCustomerID returns at most limit user IDs whose customerId equals
	// customerID exactly. An empty slice (not an error) means no match.
	FindIDsByCustomerID(ctx context.Context, customerID string, limit int) ([]string, error)
	// UpdateFields atomically reads the user, overlays patch and writes back only
	// the patched keys. It returns the pre-update record; drivers may populate
	// only ID and Plan so that foreign fields never have to decode.
	// ErrInvalidPatch is returned when the patch cannot be stored as given.
	UpdateFields(ctx context.Context, userID string, patch models.UserPatch) (*models.User, error)
	// SetCustomerID links a billing customer to an existing user.
	SetCustomerID(ctx context.Context, userID, customerID string) error
}

// BillingEventRepository stores one record per webhook delivery.
type BillingEventRepository interface {
	Create(ctx context.Context, event models.BillingEvent) error
	ListByUserID(ctx context.Context, userID string, limit int) ([]models.BillingEvent, error)
}
