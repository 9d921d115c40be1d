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

// SuperPayBRSignatureHeader carries the HMAC of SuperPayBR webhooks
const SuperPayBRSignatureHeader = "X-SuperPay-Signature"

// SuperPayBRUserIDHeader identifies the SuperPayBR account on unsigned webhooks
const SuperPayBRUserIDHeader = "userid"

// DefaultSuperPayBRTTL is how long SuperPayBR confirmations stay cached
const DefaultSuperPayBRTTL = 15 * time.Minute

// SuperPay is the adapter for both SuperPay API generations. They share the
// event/invoices webhook envelope and differ in status vocabulary, charge
// endpoint and authentication.
type SuperPay struct {
	gateway      core.Gateway
	client       *client
	apiKey       string
	invoicePath  string
	ttl          time.Duration
	authenticate func(http.Header, []byte) error
	table        core.StatusTable
}

var _ output.GatewayAdapter = (*SuperPay)(nil)

// NewSuperPay creates an adapter for the legacy SuperPay API
func NewSuperPay(cfg Config, logger *zap.Logger) *SuperPay {
	return &SuperPay{
		gateway:      core.GatewaySuperPay,
		client:       newClient(core.GatewaySuperPay, cfg.Client, logger),
		apiKey:       cfg.Client.APIKey,
		invoicePath:  "/invoices",
		ttl:          cfg.ConfirmationTTL,
		authenticate: noAuth,
		table:        core.SuperPayStatusTable(),
	}
}

// NewSuperPayBR creates an adapter for the SuperPayBR v4 API
func NewSuperPayBR(cfg Config, logger *zap.Logger) *SuperPay {
	return &SuperPay{
		gateway:      core.GatewaySuperPayBR,
		client:       newClient(core.GatewaySuperPayBR, cfg.Client, logger),
		apiKey:       cfg.Client.APIKey,
		invoicePath:  "/v4/invoices",
		ttl:          cfg.ConfirmationTTL,
		authenticate: superPayBRVerifier(cfg.WebhookSecret, cfg.WebhookUserID),
		table:        core.SuperPayBRStatusTable(),
	}
}

func (s *SuperPay) Gateway() core.Gateway          { return s.gateway }
func (s *SuperPay) StatusTable() core.StatusTable  { return s.table }
func (s *SuperPay) ConfirmationTTL() time.Duration { return s.ttl }

func (s *SuperPay) Authenticate(headers http.Header, body []byte) error {
	return s.authenticate(headers, body)
}

type superPayWebhook struct {
	Event *struct {
		Type string `json:"type"`
		Date string `json:"date"`
	} `json:"event"`
	Invoices *struct {
		ID         flexString `json:"id"`
		ExternalID string     `json:"external_id"`
		Token      string     `json:"token"`
		Status     struct {
			Code        *flexInt `json:"code"`
			Title       string   `json:"title"`
			Description string   `json:"description"`
		} `json:"status"`
		Prices struct {
			Total decimal.NullDecimal `json:"total"`
		} `json:"prices"`
		Payment struct {
			PayDate string `json:"payDate"`
		} `json:"payment"`
	} `json:"invoices"`
}

// ParseWebhook reads the event/invoices envelope
func (s *SuperPay) ParseWebhook(body []byte) (*core.WebhookNotification, error) {
	var p superPayWebhook
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidPayload, err)
	}
	if p.Event == nil || p.Invoices == nil {
		return nil, fmt.Errorf("%w: event and invoices are required", core.ErrInvalidPayload)
	}
	inv := p.Invoices
	if inv.Status.Code == nil {
		return nil, fmt.Errorf("%w: missing invoices.status.code", core.ErrInvalidPayload)
	}
	return &core.WebhookNotification{
		Gateway:     s.gateway,
		EventType:   p.Event.Type,
		ExternalID:  inv.ExternalID,
		InvoiceID:   string(inv.ID),
		Token:       inv.Token,
		StatusCode:  int(*inv.Status.Code),
		Amount:      inv.Prices.Total.Decimal,
		PaymentDate: parseTime(inv.Payment.PayDate),
		Raw:         append(json.RawMessage(nil), body...),
	}, nil
}

type superPayInvoice struct {
	Client struct {
		Name     string `json:"name"`
		Document string `json:"document,omitempty"`
		Email    string `json:"email,omitempty"`
		Phone    string `json:"phone,omitempty"`
	} `json:"client"`
	Payment struct {
		ID     string  `json:"id"`
		Type   string  `json:"type"`
		Amount float64 `json:"amount"`
	} `json:"payment"`
	Products []superPayProduct `json:"products"`
}

type superPayProduct struct {
	Title  string  `json:"title"`
	Qnt    int     `json:"qnt"`
	Amount float64 `json:"amount"`
}

type superPayInvoiceResponse struct {
	Data struct {
		ID         flexString `json:"id"`
		ExternalID string     `json:"external_id"`
		Token      string     `json:"token"`
		Prices     struct {
			Total decimal.NullDecimal `json:"total"`
		} `json:"prices"`
		Payment struct {
			Due     string `json:"due"`
			Details struct {
				PixCode string `json:"pix_code"`
				QRCode  string `json:"qrcode"`
			} `json:"details"`
		} `json:"payment"`
	} `json:"data"`
}

// CreateInvoice creates a PIX invoice
func (s *SuperPay) CreateInvoice(ctx context.Context, req core.CreateInvoiceRequest) (*core.Invoice, error) {
	var body superPayInvoice
	body.Client.Name = req.Customer.Name
	body.Client.Document = req.Customer.Document
	body.Client.Email = req.Customer.Email
	body.Client.Phone = req.Customer.Phone
	body.Payment.ID = req.ExternalID
	body.Payment.Type = "PIX"
	body.Payment.Amount = req.Amount.InexactFloat64()
	title := req.Description
	if title == "" {
		title = "Pagamento " + req.ExternalID
	}
	body.Products = []superPayProduct{{Title: title, Qnt: 1, Amount: req.Amount.InexactFloat64()}}

	var resp superPayInvoiceResponse
	err := s.client.post(ctx, s.invoicePath, body, &resp, func(r *resty.Request) {
		if s.gateway == core.GatewaySuperPayBR {
			r.SetAuthToken(s.apiKey)
		} else {
			r.SetHeader("token", s.apiKey)
		}
	})
	if err != nil {
		return nil, err
	}

	data := resp.Data
	externalID := data.ExternalID
	if externalID == "" {
		externalID = req.ExternalID
	}
	amount := req.Amount
	if data.Prices.Total.Valid {
		amount = data.Prices.Total.Decimal
	}
	return &core.Invoice{
		Gateway:     s.gateway,
		ExternalID:  externalID,
		InvoiceID:   string(data.ID),
		Token:       data.Token,
		PixCode:     data.Payment.Details.PixCode,
		QRCodeImage: data.Payment.Details.QRCode,
		Amount:      amount,
		ExpiresAt:   parseTime(data.Payment.Due),
	}, nil
}
