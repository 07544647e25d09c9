package yookassa_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/checkout/gateway"
	"github.com/xraph/checkout/gateway/yookassa"
	"github.com/xraph/checkout/id"
	"github.com/xraph/checkout/payment"
	"github.com/xraph/checkout/types"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := yookassa.New("", "secret")
	require.ErrorIs(t, err, yookassa.ErrNotConfigured)

	_, err = yookassa.New("shop", "")
	require.ErrorIs(t, err, yookassa.ErrNotConfigured)
}

func TestCreatePayment(t *testing.T) {
	orderID := id.NewOrderID()
	keys := map[string]struct{}{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "shop-1", user)
		assert.Equal(t, "sk-1", pass)

		key := r.Header.Get("Idempotence-Key")
		assert.NotEmpty(t, key)
		keys[key] = struct{}{}

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"value": "2500.00", "currency": "RUB"}, body["amount"])
		assert.Equal(t, true, body["capture"])
		assert.Equal(t, map[string]any{"type": "redirect", "return_url": "https://t.me"}, body["confirmation"])
		assert.Equal(t, map[string]any{"order_id": orderID.String()}, body["metadata"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"2d3f-pay","status":"pending","confirmation":{"type":"redirect","confirmation_url":"https://pay.example/2d3f"}}`)) //nolint:errcheck // test
	}))
	defer srv.Close()

	c, err := yookassa.New("shop-1", "sk-1", yookassa.WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	req := gateway.CreateRequest{
		OrderID:     orderID,
		Amount:      types.RUB(250000),
		Description: "Order " + orderID.String(),
		ReturnURL:   "https://t.me",
	}
	for range 2 {
		p, err := c.CreatePayment(t.Context(), req)
		require.NoError(t, err)
		assert.Equal(t, "2d3f-pay", p.Ref)
		assert.Equal(t, "https://pay.example/2d3f", p.ConfirmationURL)
	}
	assert.Len(t, keys, 2, "each create uses a fresh idempotence key")
}

func TestCheckPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/payments/2d3f-pay", r.URL.Path)
		assert.Empty(t, r.Header.Get("Idempotence-Key"))
		_, _ = w.Write([]byte(`{"id":"2d3f-pay","status":"succeeded"}`)) //nolint:errcheck // test
	}))
	defer srv.Close()

	c, err := yookassa.New("shop-1", "sk-1", yookassa.WithBaseURL(srv.URL))
	require.NoError(t, err)

	status, err := c.CheckPayment(t.Context(), "2d3f-pay")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSucceeded, status)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","code":"invalid_credentials","description":"bad key"}`)) //nolint:errcheck // test
	}))
	defer srv.Close()

	c, err := yookassa.New("shop-1", "sk-1", yookassa.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.CheckPayment(t.Context(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_credentials")

	_, err = c.CreatePayment(t.Context(), gateway.CreateRequest{OrderID: id.NewOrderID(), Amount: types.RUB(100)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
