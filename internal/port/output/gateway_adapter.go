package output

import (
	"context"
	"net/http"
	"time"

	"github.com/cashflow/pix-gateway/internal/core"
)

// GatewayAdapter is an output port wrapping one PIX gateway: its status
// vocabulary, its webhook format and its charge API.
type GatewayAdapter interface {
	Gateway() core.Gateway

	StatusTable() core.StatusTable

	// ConfirmationTTL is how long stored confirmations stay readable, zero for forever
	ConfirmationTTL() time.Duration

	// Authenticate checks the webhook request headers and body
	Authenticate(headers http.Header, body []byte) error

	// ParseWebhook extracts the notification from a raw webhook body
	ParseWebhook(body []byte) (*core.WebhookNotification, error)

	// CreateInvoice creates a PIX charge
	CreateInvoice(ctx context.Context, req core.CreateInvoiceRequest) (*core.Invoice, error)
}
