package output

import (
	"context"

	"github.com/cashflow/pix-gateway/internal/core"
)

// ConfirmationPublisher is an output port (secondary port) for confirmation messaging
// Secondary adapters (RabbitMQ, Kafka) will implement this
type ConfirmationPublisher interface {
	// PublishConfirmation publishes a terminal confirmation event
	PublishConfirmation(ctx context.Context, evt core.ConfirmationEvent) error
	// Close closes the messaging connection
	Close() error
}
