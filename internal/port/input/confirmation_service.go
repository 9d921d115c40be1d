package input

import (
	"context"
	"net/http"

	"github.com/cashflow/pix-gateway/internal/core"
)

// ConfirmationService is an input port (primary port) for payment confirmations
// Primary adapters (HTTP handlers) will use this
type ConfirmationService interface {
	// Ingest authenticates, parses and stores a gateway webhook
	Ingest(ctx context.Context, gateway core.Gateway, headers http.Header, body []byte) (*core.PaymentConfirmation, error)

	// Get retrieves a confirmation by external ID, invoice ID or token
	Get(ctx context.Context, identifier string) (*core.PaymentConfirmation, error)

	// List returns one confirmation per external ID, newest first
	List(ctx context.Context) ([]core.PaymentConfirmation, error)

	// RecentEvents returns the latest webhook events, newest first
	RecentEvents(ctx context.Context, limit int) ([]core.WebhookEvent, error)

	// CreateInvoice creates a PIX charge on a gateway
	CreateInvoice(ctx context.Context, req core.CreateInvoiceRequest) (*core.Invoice, error)
}
