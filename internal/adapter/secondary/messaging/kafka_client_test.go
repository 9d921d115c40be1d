package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

func newTestConsumer() *KafkaConsumer {
	return &KafkaConsumer{logger: zap.NewNop(), retryInitial: time.Millisecond, retryMax: 5 * time.Millisecond}
}

func eventMessage(t *testing.T) kafka.Message {
	t.Helper()
	val, err := json.Marshal(core.ConfirmationEvent{EventID: uuid.New(), ExternalID: "ext-1"})
	require.NoError(t, err)
	return kafka.Message{Key: []byte("ext-1"), Value: val}
}

func TestKafkaConsumer_RetriesUntilHandled(t *testing.T) {
	c := newTestConsumer()
	calls := 0
	handler := func(context.Context, core.ConfirmationEvent) error {
		calls++
		if calls < 8 {
			return errors.New("store unavailable")
		}
		return nil
	}

	assert.True(t, c.handle(context.Background(), handler, eventMessage(t)))
	assert.Equal(t, 8, calls)
}

func TestKafkaConsumer_TerminalErrorIsCommitted(t *testing.T) {
	c := newTestConsumer()
	calls := 0
	handler := func(context.Context, core.ConfirmationEvent) error {
		calls++
		return output.ErrAlreadyArchived
	}

	assert.True(t, c.handle(context.Background(), handler, eventMessage(t)))
	assert.Equal(t, 1, calls)
}

func TestKafkaConsumer_MalformedMessageIsCommitted(t *testing.T) {
	c := newTestConsumer()
	handler := func(context.Context, core.ConfirmationEvent) error {
		t.Fatal("handler must not run")
		return nil
	}

	assert.True(t, c.handle(context.Background(), handler, kafka.Message{Value: []byte("{")}))
}

func TestKafkaConsumer_FailingEventStaysUncommittedOnShutdown(t *testing.T) {
	c := newTestConsumer()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	handler := func(context.Context, core.ConfirmationEvent) error {
		return errors.New("store unavailable")
	}

	assert.False(t, c.handle(ctx, handler, eventMessage(t)))
}
