package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

// ArchiveProcessor persists terminal confirmation events consumed by the worker
type ArchiveProcessor struct {
	archive output.ConfirmationArchive
	logger  *zap.Logger
}

// NewArchiveProcessor creates a new archive processor
func NewArchiveProcessor(archive output.ConfirmationArchive, logger *zap.Logger) *ArchiveProcessor {
	return &ArchiveProcessor{
		archive: archive,
		logger:  logger,
	}
}

// Process archives evt. It is idempotent on the event ID: redelivered events
// return output.ErrAlreadyArchived so the consumer can acknowledge them.
func (p *ArchiveProcessor) Process(ctx context.Context, evt core.ConfirmationEvent) error {
	if evt.EventID == uuid.Nil || evt.ExternalID == "" {
		return fmt.Errorf("%w: missing event or external id", core.ErrInvalidPayload)
	}
	if evt.Outcome == core.OutcomePending || evt.Outcome == "" {
		return fmt.Errorf("%w: outcome %q is not terminal", core.ErrInvalidPayload, evt.Outcome)
	}

	if err := p.archive.Archive(ctx, evt); err != nil {
		if errors.Is(err, output.ErrAlreadyArchived) {
			return err
		}
		return fmt.Errorf("failed to archive confirmation: %w", err)
	}

	p.logger.Info("archived confirmation",
		zap.String("event_id", evt.EventID.String()),
		zap.String("event_type", evt.EventType),
		zap.String("gateway", string(evt.Gateway)),
		zap.String("external_id", evt.ExternalID),
	)
	return nil
}
