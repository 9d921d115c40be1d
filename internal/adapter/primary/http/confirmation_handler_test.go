package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/adapter/secondary/gateway"
	"github.com/cashflow/pix-gateway/internal/adapter/secondary/memory"
	"github.com/cashflow/pix-gateway/internal/adapter/secondary/messaging"
	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/core/service"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

const webhookToken = "s3cret"

func setupServer(t *testing.T, upstream string, bodyLimit string) *echo.Echo {
	t.Helper()
	store := memory.NewStore()
	adapters := []output.GatewayAdapter{
		gateway.NewTryploPay(gateway.Config{
			Client: gateway.ClientConfig{
				BaseURL:        upstream,
				APIKey:         "key",
				MaxRetries:     0,
				RetryDelay:     time.Millisecond,
				RequestTimeout: time.Second,
			},
			WebhookSecret: webhookToken,
		}, zap.NewNop()),
	}
	svc := service.NewConfirmationService(store, store, messaging.NopPublisher{}, adapters, zap.NewNop())
	return NewServer(NewConfirmationHandler(svc, zap.NewNop()), zap.NewNop(), bodyLimit)
}

func do(e *echo.Echo, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func postWebhook(e *echo.Echo, gw, body string) *httptest.ResponseRecorder {
	return do(e, http.MethodPost, "/api/v1/webhooks/"+gw, body, map[string]string{gateway.TryploPayTokenHeader: webhookToken})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestWebhookThenStatus(t *testing.T) {
	e := setupServer(t, "http://unused", "")

	rec := postWebhook(e, "tryplopay", `{"id":"inv_1","external_id":"ext-1","token":"tk","status":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ext-1", body["externalId"])
	assert.Equal(t, "pending", body["outcome"])

	rec = do(e, http.MethodGet, "/api/v1/payments/status?externalId=ext-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, false, body["isTerminal"])

	rec = postWebhook(e, "TryploPay", `{"id":"inv_1","external_id":"ext-1","token":"tk","status":3,"amount":49.9}`)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, q := range []string{"externalId=ext-1", "invoiceId=inv_1", "token=tk", "token=token_tk"} {
		rec = do(e, http.MethodGet, "/api/v1/payments/status?"+q, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, q)
		body = decode(t, rec)
		assert.Equal(t, true, body["found"], q)
		assert.Equal(t, true, body["isTerminal"], q)
		assert.Equal(t, true, body["isPaid"], q)
		assert.Equal(t, "paid", body["outcome"], q)
	}

	rec = do(e, http.MethodGet, "/api/v1/payments/confirmations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []core.PaymentConfirmation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestWebhookErrors(t *testing.T) {
	e := setupServer(t, "http://unused", "")

	rec := do(e, http.MethodPost, "/api/v1/webhooks/tryplopay", `{"external_id":"ext-1","status":1}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(e, "stripe", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postWebhook(e, "superpay", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, "gateway not configured")

	rec = postWebhook(e, "tryplopay", `{"external_id":"ext-1","status":99}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postWebhook(e, "tryplopay", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postWebhook(e, "tryplopay", `{"status":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/payments/status?externalId=ext-1", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookBodyLimit(t *testing.T) {
	e := setupServer(t, "http://unused", "1K")

	big := `{"external_id":"ext-1","status":1,"pad":"` + strings.Repeat("x", 2048) + `"}`
	rec := postWebhook(e, "tryplopay", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGetStatus(t *testing.T) {
	e := setupServer(t, "http://unused", "")

	rec := do(e, http.MethodGet, "/api/v1/payments/status", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/payments/status?invoiceId=nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decode(t, rec)["found"])
}

func TestRecentEvents(t *testing.T) {
	e := setupServer(t, "http://unused", "")
	for _, ext := range []string{"a", "b", "c"} {
		require.Equal(t, http.StatusOK, postWebhook(e, "tryplopay", `{"external_id":"`+ext+`","status":1}`).Code)
	}

	rec := do(e, http.MethodGet, "/api/v1/webhooks/events?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []core.WebhookEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, "c", events[0].ExternalID)

	rec = do(e, http.MethodGet, "/api/v1/webhooks/events?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateInvoice(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Authorization"), "key") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"inv_9","external_id":"ext-9","amount":1000,"pix":{"qr_code":"000201"}}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer upstream.Close()
	e := setupServer(t, upstream.URL, "")

	rec := do(e, http.MethodPost, "/api/v1/payments/tryplopay/invoices", `{"externalId":"ext-9","amount":"10.00"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv core.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, "inv_9", inv.InvoiceID)
	assert.Equal(t, "000201", inv.PixCode)

	rec = do(e, http.MethodPost, "/api/v1/payments/tryplopay/invoices", `{"amount":0}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/payments/nowhere/invoices", `{"amount":5}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateInvoiceUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid document"}`))
	}))
	defer upstream.Close()
	e := setupServer(t, upstream.URL, "")

	rec := do(e, http.MethodPost, "/api/v1/payments/tryplopay/invoices", `{"amount":5}`, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealth(t *testing.T) {
	e := setupServer(t, "http://unused", "")
	rec := do(e, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
