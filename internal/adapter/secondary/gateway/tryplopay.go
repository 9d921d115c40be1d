package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

// TryploPayTokenHeader carries the shared webhook token
const TryploPayTokenHeader = "X-Tryplopay-Token"

// TryploPay is the adapter for the TryploPay API
type TryploPay struct {
	client       *client
	apiKey       string
	ttl          time.Duration
	authenticate func(http.Header, []byte) error
	table        core.StatusTable
}

var _ output.GatewayAdapter = (*TryploPay)(nil)

// NewTryploPay creates a TryploPay adapter
func NewTryploPay(cfg Config, logger *zap.Logger) *TryploPay {
	return &TryploPay{
		client:       newClient(core.GatewayTryploPay, cfg.Client, logger),
		apiKey:       cfg.Client.APIKey,
		ttl:          cfg.ConfirmationTTL,
		authenticate: tokenVerifier(TryploPayTokenHeader, cfg.WebhookSecret),
		table:        core.TryploPayStatusTable(),
	}
}

func (t *TryploPay) Gateway() core.Gateway          { return core.GatewayTryploPay }
func (t *TryploPay) StatusTable() core.StatusTable  { return t.table }
func (t *TryploPay) ConfirmationTTL() time.Duration { return t.ttl }

// Authenticate checks the shared token when one is configured
func (t *TryploPay) Authenticate(headers http.Header, body []byte) error {
	return t.authenticate(headers, body)
}

type tryploPayWebhook struct {
	Event      string              `json:"event"`
	ID         flexString          `json:"id"`
	ExternalID string              `json:"external_id"`
	Token      string              `json:"token"`
	Status     *flexInt            `json:"status"`
	Amount     decimal.NullDecimal `json:"amount"`
	PaidAt     string              `json:"paid_at"`
}

// ParseWebhook reads the flat TryploPay payload
func (t *TryploPay) ParseWebhook(body []byte) (*core.WebhookNotification, error) {
	var p tryploPayWebhook
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidPayload, err)
	}
	if p.Status == nil {
		return nil, fmt.Errorf("%w: missing status", core.ErrInvalidPayload)
	}
	eventType := p.Event
	if eventType == "" {
		eventType = "transaction.updated"
	}
	return &core.WebhookNotification{
		Gateway:     core.GatewayTryploPay,
		EventType:   eventType,
		ExternalID:  p.ExternalID,
		InvoiceID:   string(p.ID),
		Token:       p.Token,
		StatusCode:  int(*p.Status),
		Amount:      p.Amount.Decimal,
		PaymentDate: parseTime(p.PaidAt),
		Raw:         append(json.RawMessage(nil), body...),
	}, nil
}

type tryploPayCharge struct {
	ExternalID    string        `json:"external_id"`
	Amount        int64         `json:"amount"`
	PaymentMethod string        `json:"payment_method"`
	Description   string        `json:"description,omitempty"`
	Customer      core.Customer `json:"customer"`
}

type tryploPayChargeResponse struct {
	ID         flexString `json:"id"`
	ExternalID string     `json:"external_id"`
	Token      string     `json:"token"`
	Amount     int64      `json:"amount"`
	Pix        struct {
		QRCode      string `json:"qr_code"`
		QRCodeImage string `json:"qr_code_image"`
		ExpiresAt   string `json:"expires_at"`
	} `json:"pix"`
}

// CreateInvoice creates a PIX transaction. TryploPay takes amounts in cents.
func (t *TryploPay) CreateInvoice(ctx context.Context, req core.CreateInvoiceRequest) (*core.Invoice, error) {
	body := tryploPayCharge{
		ExternalID:    req.ExternalID,
		Amount:        req.Amount.Shift(2).Round(0).IntPart(),
		PaymentMethod: "pix",
		Description:   req.Description,
		Customer:      req.Customer,
	}
	var resp tryploPayChargeResponse
	err := t.client.post(ctx, "/v1/transactions", body, &resp, func(r *resty.Request) {
		r.SetAuthToken(t.apiKey)
	})
	if err != nil {
		return nil, err
	}

	externalID := resp.ExternalID
	if externalID == "" {
		externalID = req.ExternalID
	}
	amount := req.Amount
	if resp.Amount > 0 {
		amount = decimal.New(resp.Amount, -2)
	}
	return &core.Invoice{
		Gateway:     core.GatewayTryploPay,
		ExternalID:  externalID,
		InvoiceID:   string(resp.ID),
		Token:       resp.Token,
		PixCode:     resp.Pix.QRCode,
		QRCodeImage: resp.Pix.QRCodeImage,
		Amount:      amount,
		ExpiresAt:   parseTime(resp.Pix.ExpiresAt),
	}, nil
}
