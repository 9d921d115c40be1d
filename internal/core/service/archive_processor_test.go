package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/core/service"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

type fakeArchive struct {
	seen map[uuid.UUID]bool
	err  error
}

func (f *fakeArchive) Archive(_ context.Context, evt core.ConfirmationEvent) error {
	if f.err != nil {
		return f.err
	}
	if f.seen[evt.EventID] {
		return output.ErrAlreadyArchived
	}
	f.seen[evt.EventID] = true
	return nil
}

func paidEvent() core.ConfirmationEvent {
	evt, _ := core.NewConfirmationEvent(&core.PaymentConfirmation{
		ExternalID: "ext-1",
		Gateway:    core.GatewaySuperPay,
		StatusCode: 5,
		IsPaid:     true,
	}, time.Now())
	return evt
}

func TestArchiveProcessor_Idempotent(t *testing.T) {
	archive := &fakeArchive{seen: map[uuid.UUID]bool{}}
	p := service.NewArchiveProcessor(archive, zap.NewNop())
	evt := paidEvent()

	require.NoError(t, p.Process(context.Background(), evt))
	assert.ErrorIs(t, p.Process(context.Background(), evt), output.ErrAlreadyArchived)
}

func TestArchiveProcessor_RejectsInvalidEvents(t *testing.T) {
	p := service.NewArchiveProcessor(&fakeArchive{seen: map[uuid.UUID]bool{}}, zap.NewNop())

	evt := paidEvent()
	evt.ExternalID = ""
	assert.ErrorIs(t, p.Process(context.Background(), evt), core.ErrInvalidPayload)

	evt = paidEvent()
	evt.Outcome = core.OutcomePending
	assert.ErrorIs(t, p.Process(context.Background(), evt), core.ErrInvalidPayload)
}

func TestArchiveProcessor_WrapsStorageErrors(t *testing.T) {
	boom := errors.New("db down")
	p := service.NewArchiveProcessor(&fakeArchive{err: boom}, zap.NewNop())

	err := p.Process(context.Background(), paidEvent())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, output.ErrAlreadyArchived)
}
