package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"plansync-backend-go/internal/models"
)

// MemoryUserRepository keeps users in a map. It is used for local runs
// (STORE_DRIVER=memory) and in tests. All methods return copies.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

// NewMemoryUserRepository creates an empty in-memory user store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*models.User)}
}

// Put inserts or replaces a user. It stands in for the user-management side
// that owns document creation.
func (r *MemoryUserRepository) Put(user *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user.Clone()
}

func (r *MemoryUserRepository) GetByID(_ context.Context, userID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("get user '%s': %w", userID, ErrNotFound)
	}
	return u.Clone(), nil
}

// FindIDsByCustomerID returns matches in ID order so results are deterministic.
func (r *MemoryUserRepository) FindIDsByCustomerID(_ context.Context, customerID string, limit int) ([]string, error) {
	if customerID == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = 1
	}
	r.mu.RLock()
	ids := make([]string, 0)
	for id, u := range r.users {
		if u.CustomerID == customerID {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *MemoryUserRepository) UpdateFields(_ context.Context, userID string, patch models.UserPatch) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("update user '%s': %w", userID, ErrNotFound)
	}
	before := u.Clone()
	patch.Apply(u)
	return before, nil
}

func (r *MemoryUserRepository) SetCustomerID(_ context.Context, userID, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("set customerId for user '%s': %w", userID, ErrNotFound)
	}
	u.CustomerID = customerID
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// MemoryBillingEventRepository is an append-only slice of billing events.
type MemoryBillingEventRepository struct {
	mu     sync.RWMutex
	events []models.BillingEvent
}

// NewMemoryBillingEventRepository creates an empty in-memory event log.
func NewMemoryBillingEventRepository() *MemoryBillingEventRepository {
	return &MemoryBillingEventRepository{}
}

func (r *MemoryBillingEventRepository) Create(_ context.Context, event models.BillingEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *MemoryBillingEventRepository) ListByUserID(_ context.Context, userID string, limit int) ([]models.BillingEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.BillingEvent, 0)
	// newest first
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.events[i].UserID == userID {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}

// All returns every stored record in insertion order.
func (r *MemoryBillingEventRepository) All() []models.BillingEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.BillingEvent, len(r.events))
	copy(out, r.events)
	return out
}
