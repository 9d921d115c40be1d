package output

import (
	"context"
	"time"

	"github.com/cashflow/pix-gateway/internal/core"
)

// MaxRecentEvents caps the webhook event log
const MaxRecentEvents = 100

// ConfirmationStore is an output port (secondary port) for confirmation data access
// Secondary adapters (memory, redis, postgres) will implement this
type ConfirmationStore interface {
	// Save creates or overwrites the confirmation under all of its keys
	Save(ctx context.Context, c *core.PaymentConfirmation) error

	// Get resolves an external ID, invoice ID or token to a confirmation
	Get(ctx context.Context, identifier string) (*core.PaymentConfirmation, error)

	// List returns one confirmation per external ID sorted by ReceivedAt descending
	List(ctx context.Context) ([]core.PaymentConfirmation, error)

	// DeleteExpired removes confirmations whose ExpiresAt is not after now
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// EventLog is an output port for the capped log of recent webhook events
type EventLog interface {
	// Append records an event, evicting the oldest beyond MaxRecentEvents
	Append(ctx context.Context, evt core.WebhookEvent) error

	// Recent returns up to limit events, newest first
	Recent(ctx context.Context, limit int) ([]core.WebhookEvent, error)
}
