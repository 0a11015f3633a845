package billing

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a billing provider for tests. Each method can be overridden
// through its Func field; the defaults return deterministic fake objects.
type MockProvider struct {
	CreateCustomerFunc        func(ctx context.Context, params CreateCustomerParams) (*Customer, error)
	CreateCheckoutSessionFunc func(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
	CreatePortalSessionFunc   func(ctx context.Context, params PortalSessionParams) (*PortalSession, error)

	mu sync.Mutex
	// CallLog tracks method calls for test assertions
	CallLog []string
}

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) record(call string) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, call)
	m.mu.Unlock()
}

// Calls returns a copy of the call log.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.CallLog))
	copy(out, m.CallLog)
	return out
}

func (m *MockProvider) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	m.record(fmt.Sprintf("CreateCustomer(%s)", params.UserID))
	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, params)
	}
	return &Customer{ID: "cus_mock_" + params.UserID, Email: params.Email}, nil
}

func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	m.record(fmt.Sprintf("CreateCheckoutSession(%s, %s)", params.CustomerID, params.PriceID))
	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}
	id := "cs_mock_" + params.UserID
	return &CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (m *MockProvider) CreatePortalSession(ctx context.Context, params PortalSessionParams) (*PortalSession, error) {
	m.record(fmt.Sprintf("CreatePortalSession(%s)", params.CustomerID))
	if m.CreatePortalSessionFunc != nil {
		return m.CreatePortalSessionFunc(ctx, params)
	}
	return &PortalSession{ID: "bps_mock", URL: "https://billing.stripe.test/p/" + params.CustomerID}, nil
}
