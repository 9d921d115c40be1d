package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGateway(t *testing.T) {
	g, err := ParseGateway(" SuperPayBR ")
	require.NoError(t, err)
	assert.Equal(t, GatewaySuperPayBR, g)

	_, err = ParseGateway("stripe")
	assert.True(t, errors.Is(err, ErrUnknownGateway))
}

func TestNewConfirmation(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	n := &WebhookNotification{
		Gateway:    GatewaySuperPayBR,
		ExternalID: "ext-1",
		InvoiceID:  "123",
		Token:      "tk",
		StatusCode: 5,
		Amount:     decimal.RequireFromString("49.90"),
	}
	info := SuperPayBRStatusTable()[5]

	c := NewConfirmation(n, info, now, 15*time.Minute)

	assert.Equal(t, "ext-1", c.ExternalID)
	assert.True(t, c.IsPaid)
	assert.True(t, c.IsTerminal())
	assert.Equal(t, OutcomePaid, c.Outcome())
	require.NotNil(t, c.ExpiresAt)
	assert.Equal(t, now.Add(15*time.Minute), *c.ExpiresAt)
	assert.False(t, c.Expired(now.Add(14*time.Minute)))
	assert.True(t, c.Expired(now.Add(15*time.Minute)))
	assert.Equal(t, []string{"ext-1", "123", "token_tk"}, c.Keys())
}

func TestNewConfirmation_FallsBackToInvoiceID(t *testing.T) {
	n := &WebhookNotification{Gateway: GatewayTryploPay, InvoiceID: "inv_9", StatusCode: 1}

	c := NewConfirmation(n, TryploPayStatusTable()[1], time.Now(), 0)

	assert.Equal(t, "inv_9", c.ExternalID)
	assert.Nil(t, c.ExpiresAt)
	assert.False(t, c.Expired(time.Now().Add(24*time.Hour)))
	assert.Equal(t, []string{"inv_9"}, c.Keys())
}

func TestNewConfirmationEvent(t *testing.T) {
	c := &PaymentConfirmation{ExternalID: "ext-1", Gateway: GatewaySuperPay, StatusCode: 15, IsExpired: true}

	evt, ok := NewConfirmationEvent(c, time.Now())
	require.True(t, ok)
	assert.Equal(t, "PaymentExpired", evt.EventType)
	assert.Equal(t, OutcomeExpired, evt.Outcome)

	_, ok = NewConfirmationEvent(&PaymentConfirmation{ExternalID: "ext-2"}, time.Now())
	assert.False(t, ok)
}
