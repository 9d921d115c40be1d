package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/core"
)

func testClientConfig(url string) ClientConfig {
	return ClientConfig{
		BaseURL:        url,
		APIKey:         "secret-key",
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		RequestTimeout: time.Second,
	}
}

func TestTryploPay_ParseWebhook(t *testing.T) {
	tp := NewTryploPay(Config{}, zap.NewNop())

	n, err := tp.ParseWebhook([]byte(`{"id":"inv_1","external_id":"ext-1","token":"tk","status":3,"amount":49.9,"paid_at":"2024-05-01T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, core.GatewayTryploPay, n.Gateway)
	assert.Equal(t, "transaction.updated", n.EventType)
	assert.Equal(t, "ext-1", n.ExternalID)
	assert.Equal(t, "inv_1", n.InvoiceID)
	assert.Equal(t, "tk", n.Token)
	assert.Equal(t, 3, n.StatusCode)
	assert.True(t, decimal.RequireFromString("49.9").Equal(n.Amount))
	require.NotNil(t, n.PaymentDate)
	assert.Equal(t, 2024, n.PaymentDate.Year())
	assert.NotEmpty(t, n.Raw)

	n, err = tp.ParseWebhook([]byte(`{"id":77,"external_id":"ext-2","status":"5"}`))
	require.NoError(t, err)
	assert.Equal(t, "77", n.InvoiceID)
	assert.Equal(t, 5, n.StatusCode)
	assert.Nil(t, n.PaymentDate)
}

func TestTryploPay_ParseWebhookInvalid(t *testing.T) {
	tp := NewTryploPay(Config{}, zap.NewNop())

	_, err := tp.ParseWebhook([]byte(`{"external_id":"ext-1"}`))
	assert.ErrorIs(t, err, core.ErrInvalidPayload)

	_, err = tp.ParseWebhook([]byte(`[1,2]`))
	assert.ErrorIs(t, err, core.ErrInvalidPayload)

	_, err = tp.ParseWebhook([]byte(`{"external_id":"ext-1","status":"paid"}`))
	assert.ErrorIs(t, err, core.ErrInvalidPayload)
}

func TestTryploPay_Authenticate(t *testing.T) {
	open := NewTryploPay(Config{}, zap.NewNop())
	assert.NoError(t, open.Authenticate(http.Header{}, nil))

	tp := NewTryploPay(Config{WebhookSecret: "s3"}, zap.NewNop())
	assert.ErrorIs(t, tp.Authenticate(http.Header{}, nil), core.ErrUnauthorized)

	h := http.Header{}
	h.Set(TryploPayTokenHeader, "s3")
	assert.NoError(t, tp.Authenticate(h, nil))
}

func TestTryploPay_CreateInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transactions", r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(4990), body["amount"])
		assert.Equal(t, "pix", body["payment_method"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"inv_1","external_id":"ext-1","token":"tk","amount":4990,
			"pix":{"qr_code":"00020126","qr_code_image":"https://img","expires_at":"2024-05-01T10:15:00Z"}}`))
	}))
	defer srv.Close()

	tp := NewTryploPay(Config{Client: testClientConfig(srv.URL)}, zap.NewNop())
	inv, err := tp.CreateInvoice(context.Background(), core.CreateInvoiceRequest{
		Gateway:    core.GatewayTryploPay,
		ExternalID: "ext-1",
		Amount:     decimal.RequireFromString("49.90"),
		Customer:   core.Customer{Name: "Maria"},
	})
	require.NoError(t, err)
	assert.Equal(t, "inv_1", inv.InvoiceID)
	assert.Equal(t, "00020126", inv.PixCode)
	assert.True(t, decimal.RequireFromString("49.90").Equal(inv.Amount))
	require.NotNil(t, inv.ExpiresAt)
}

func TestTryploPay_CreateInvoiceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"inv_2","pix":{"qr_code":"0002"}}`))
	}))
	defer srv.Close()

	tp := NewTryploPay(Config{Client: testClientConfig(srv.URL)}, zap.NewNop())
	inv, err := tp.CreateInvoice(context.Background(), core.CreateInvoiceRequest{ExternalID: "ext-2", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "ext-2", inv.ExternalID)
	assert.True(t, decimal.NewFromInt(10).Equal(inv.Amount))
}

func TestTryploPay_CreateInvoiceClientErrorIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"invalid document"}`))
	}))
	defer srv.Close()

	tp := NewTryploPay(Config{Client: testClientConfig(srv.URL)}, zap.NewNop())
	_, err := tp.CreateInvoice(context.Background(), core.CreateInvoiceRequest{ExternalID: "ext-3", Amount: decimal.NewFromInt(10)})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "invalid document")
	assert.Equal(t, int32(1), calls.Load())
}
