// Package messaging moves terminal confirmation events between the API and the worker.
package messaging

import (
	"context"
	"errors"

	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

// Handler processes one confirmation event
type Handler func(ctx context.Context, evt core.ConfirmationEvent) error

// isTerminalError reports whether redelivering the event cannot help
func isTerminalError(err error) bool {
	return errors.Is(err, output.ErrAlreadyArchived) || errors.Is(err, core.ErrInvalidPayload)
}

// NopPublisher drops every event
type NopPublisher struct{}

var _ output.ConfirmationPublisher = NopPublisher{}

func (NopPublisher) PublishConfirmation(context.Context, core.ConfirmationEvent) error { return nil }
func (NopPublisher) Close() error                                                     { return nil }
