package revolut_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fbr-shop/payment-service/internal/provider"
	"github.com/fbr-shop/payment-service/internal/provider/revolut"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, baseURL string) *revolut.Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return revolut.New(logger, revolut.Config{
		BaseURL:       baseURL,
		APIKey:        "sk_test",
		WebhookSecret: "whsec_test",
		SuccessURL:    "https://shop.example.com/checkout/success",
		CancelURL:     "https://shop.example.com/checkout/cancel",
	})
}

func TestClient_CreatePayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/orders", r.URL.Path)
		require.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 4999, body["amount"], "request amount must be minor units")
		assert.Equal(t, "EUR", body["currency"])
		assert.Equal(t, "ord-1", body["merchant_order_ext_ref"])
		assert.Contains(t, body["redirect_url"], "order_id=ord-1")

		meta, ok := body["metadata"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, meta["items"], "p1")

		json.NewEncoder(w).Encode(map[string]any{
			"id":           "rev_123",
			"state":        "pending",
			"checkout_url": "https://checkout.example.com/rev_123",
			"order_amount": map[string]any{"value": 4999, "currency": "EUR"},
		})
	}))
	defer srv.Close()

	intent, err := newClient(t, srv.URL).CreatePayment(context.Background(), provider.OrderDetails{
		OrderID:  "ord-1",
		Amount:   decimal.RequireFromString("49.99"),
		Currency: "EUR",
		Email:    "customer@example.com",
		ItemsSummary: []provider.ItemSummary{
			{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("10.00")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "rev_123", intent.ID)
	assert.Equal(t, "https://checkout.example.com/rev_123", intent.CheckoutURL)
	assert.Equal(t, "49.99", intent.Amount.StringFixed(2), "response amount converted back exactly once")
	assert.Equal(t, "pending", intent.State)
}

func TestClient_CreatePayment_ProviderRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"amount too low"}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).CreatePayment(context.Background(), provider.OrderDetails{
		OrderID:  "ord-1",
		Amount:   decimal.NewFromInt(0),
		Currency: "EUR",
	})

	var perr *provider.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusUnprocessableEntity, perr.Status)
	assert.Contains(t, perr.Body, "amount too low")
}

func TestClient_GetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/orders/rev_123", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"id":           "rev_123",
			"state":        "completed",
			"order_amount": map[string]any{"value": 2000, "currency": "EUR"},
		})
	}))
	defer srv.Close()

	intent, err := newClient(t, srv.URL).GetPayment(context.Background(), "rev_123")
	require.NoError(t, err)
	assert.Equal(t, "completed", intent.State)
	assert.Equal(t, "20.00", intent.Amount.StringFixed(2))
}

func sign(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v1." + ts + "."))
	mac.Write(body)
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

func signedHeader(signature, ts string) http.Header {
	h := http.Header{}
	if signature != "" {
		h.Set(revolut.SignatureHeader, signature)
	}
	if ts != "" {
		h.Set(revolut.TimestampHeader, ts)
	}
	return h
}

func TestClient_VerifyWebhookSignature(t *testing.T) {
	client := newClient(t, "http://unused")
	body := []byte(`{"event":"ORDER_COMPLETED","order_id":"rev_123"}`)
	const ts = "1693526400000"

	t.Run("valid", func(t *testing.T) {
		assert.True(t, client.VerifyWebhookSignature(body, signedHeader(sign("whsec_test", ts, body), ts)))
	})

	t.Run("missing signature header", func(t *testing.T) {
		assert.False(t, client.VerifyWebhookSignature(body, signedHeader("", ts)))
	})

	t.Run("missing timestamp header", func(t *testing.T) {
		assert.False(t, client.VerifyWebhookSignature(body, signedHeader(sign("whsec_test", ts, body), "")))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, client.VerifyWebhookSignature(body, signedHeader(sign("other", ts, body), ts)))
	})

	t.Run("tampered body, stale signature", func(t *testing.T) {
		header := signedHeader(sign("whsec_test", ts, body), ts)
		tampered := []byte(`{"event":"ORDER_COMPLETED","order_id":"rev_999"}`)
		assert.False(t, client.VerifyWebhookSignature(tampered, header))
	})

	t.Run("tampered timestamp", func(t *testing.T) {
		header := signedHeader(sign("whsec_test", ts, body), "1693526499999")
		assert.False(t, client.VerifyWebhookSignature(body, header))
	})

	t.Run("multiple candidates, one valid", func(t *testing.T) {
		header := signedHeader(sign("other", ts, body)+","+sign("whsec_test", ts, body), ts)
		assert.True(t, client.VerifyWebhookSignature(body, header))
	})

	t.Run("garbage header", func(t *testing.T) {
		assert.False(t, client.VerifyWebhookSignature(body, signedHeader("v1=nothex", ts)))
	})
}

func TestClient_ParseWebhook(t *testing.T) {
	client := newClient(t, "http://unused")

	event, err := client.ParseWebhook([]byte(`{"event":"ORDER_COMPLETED","order_id":"rev_123","merchant_order_ext_ref":"ord-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "ORDER_COMPLETED", event.Type)
	assert.Equal(t, "rev_123", event.PaymentID)
	assert.Equal(t, "ord-1", event.OrderID)
	assert.NotEmpty(t, event.ID)

	_, err = client.ParseWebhook([]byte("not json"))
	assert.Error(t, err)
}
