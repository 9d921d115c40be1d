package output

import (
	"context"
	"errors"

	"github.com/cashflow/pix-gateway/internal/core"
)

// ErrAlreadyArchived is returned when an event was archived before
var ErrAlreadyArchived = errors.New("confirmation event already archived")

// ConfirmationArchive is an output port for durable storage of terminal confirmation events
type ConfirmationArchive interface {
	// Archive stores evt once, returning ErrAlreadyArchived for redeliveries
	Archive(ctx context.Context, evt core.ConfirmationEvent) error
}
