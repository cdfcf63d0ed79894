package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func newTestStripe(t *testing.T, handler http.HandlerFunc) *Stripe {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripe("sk_test_123", &stripe.Backends{API: backend})
}

func TestStripe_CreateSession(t *testing.T) {
	var form map[string]string
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"mode":        r.PostForm.Get("mode"),
			"currency":    r.PostForm.Get("line_items[0][price_data][currency]"),
			"unit_amount": r.PostForm.Get("line_items[0][price_data][unit_amount]"),
			"reference":   r.PostForm.Get("client_reference_id"),
			"success_url": r.PostForm.Get("success_url"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.example/cs_test_1"}`))
	})

	sess, err := s.CreateSession(context.Background(), Request{
		OrderID:     "abc123",
		Currency:    "sgd",
		AmountMinor: 2500,
		SuccessURL:  "http://localhost:8000/orders/abc123",
		CancelURL:   "http://localhost:8000/cart",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", sess.ID)
	assert.Equal(t, "https://checkout.example/cs_test_1", sess.URL)

	assert.Equal(t, "payment", form["mode"])
	assert.Equal(t, "sgd", form["currency"])
	assert.Equal(t, "2500", form["unit_amount"])
	assert.Equal(t, "abc123", form["reference"])
	assert.Equal(t, "http://localhost:8000/orders/abc123", form["success_url"])
}

func TestStripe_ProviderError(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad currency"}}`))
	})

	_, err := s.CreateSession(context.Background(), Request{OrderID: "x", Currency: "zzz", AmountMinor: 100})
	require.Error(t, err)

	var stripeErr *stripe.Error
	assert.ErrorAs(t, err, &stripeErr)
}

func TestStripe_RejectsNonPositiveAmount(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("provider must not be called")
	})

	_, err := s.CreateSession(context.Background(), Request{OrderID: "x", Currency: "sgd"})
	assert.Error(t, err)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.CreateSession(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
