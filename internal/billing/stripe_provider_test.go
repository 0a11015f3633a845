package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Path   string
	Form   url.Values
	Header http.Header
}

// newStripeTestServer serves canned Stripe responses per path and records requests.
func newStripeTestServer(t *testing.T, responses map[string]string) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []recordedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		requests = append(requests, recordedRequest{Path: r.URL.Path, Form: r.PostForm, Header: r.Header.Clone()})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		body, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such resource"}}`))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), requests...)
	}
}

func newTestStripeProvider(t *testing.T, serverURL string) *StripeProvider {
	t.Helper()
	p, err := NewStripeProvider(StripeConfig{SecretKey: "sk_test_secret", BackendURL: serverURL})
	require.NoError(t, err)
	return p
}

func TestNewStripeProvider_RequiresKey(t *testing.T) {
	_, err := NewStripeProvider(StripeConfig{})
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestStripeProvider_CreateCustomer(t *testing.T) {
	server, requests := newStripeTestServer(t, map[string]string{
		"/v1/customers": `{"id":"cus_123","object":"customer","email":"ada@example.com"}`,
	})
	p := newTestStripeProvider(t, server.URL)

	c, err := p.CreateCustomer(context.Background(), CreateCustomerParams{UserID: "uid_1", Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "cus_123", c.ID)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "uid_1", reqs[0].Form.Get("metadata[firebaseUID]"))
	assert.Equal(t, "ada@example.com", reqs[0].Form.Get("email"))
	assert.Equal(t, "customer-create-uid_1", reqs[0].Header.Get("Idempotency-Key"))
	assert.Equal(t, "Bearer sk_test_secret", reqs[0].Header.Get("Authorization"))
}

func TestStripeProvider_CreateCheckoutSession(t *testing.T) {
	server, requests := newStripeTestServer(t, map[string]string{
		"/v1/checkout/sessions": `{"id":"cs_123","object":"checkout.session","url":"https://checkout.stripe.test/c/cs_123"}`,
	})
	p := newTestStripeProvider(t, server.URL)

	sess, err := p.CreateCheckoutSession(context.Background(), CheckoutSessionParams{
		CustomerID: "cus_123",
		UserID:     "uid_1",
		PriceID:    "price_pro",
		SuccessURL: "https://app.test/success",
		CancelURL:  "https://app.test/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_123", sess.ID)
	assert.Equal(t, "https://checkout.stripe.test/c/cs_123", sess.URL)

	form := requests()[0].Form
	assert.Equal(t, "subscription", form.Get("mode"))
	assert.Equal(t, "cus_123", form.Get("customer"))
	assert.Equal(t, "uid_1", form.Get("client_reference_id"))
	assert.Equal(t, "price_pro", form.Get("line_items[0][price]"))
	assert.Equal(t, "1", form.Get("line_items[0][quantity]"))
	assert.Equal(t, "uid_1", form.Get("subscription_data[metadata][firebaseUID]"))
}

func TestStripeProvider_CreatePortalSession(t *testing.T) {
	server, requests := newStripeTestServer(t, map[string]string{
		"/v1/billing_portal/sessions": `{"id":"bps_1","object":"billing_portal.session","url":"https://billing.stripe.test/p/1"}`,
	})
	p := newTestStripeProvider(t, server.URL)

	sess, err := p.CreatePortalSession(context.Background(), PortalSessionParams{CustomerID: "cus_123", ReturnURL: "https://app.test/account"})
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.test/p/1", sess.URL)
	assert.Equal(t, "https://app.test/account", requests()[0].Form.Get("return_url"))
}

func TestStripeProvider_ErrorsWrapProviderError(t *testing.T) {
	server, _ := newStripeTestServer(t, map[string]string{})
	p := newTestStripeProvider(t, server.URL)

	_, err := p.CreateCheckoutSession(context.Background(), CheckoutSessionParams{CustomerID: "cus_1", UserID: "uid_1", PriceID: "price_missing"})
	assert.ErrorIs(t, err, ErrProvider)

	_, err = p.CreatePortalSession(context.Background(), PortalSessionParams{CustomerID: "cus_1"})
	assert.ErrorIs(t, err, ErrProvider)

	_, err = p.CreateCustomer(context.Background(), CreateCustomerParams{UserID: "uid_1"})
	assert.ErrorIs(t, err, ErrProvider)
}

func TestUnconfiguredProvider(t *testing.T) {
	p := NewUnconfiguredProvider()
	_, err := p.CreateCheckoutSession(context.Background(), CheckoutSessionParams{})
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}
