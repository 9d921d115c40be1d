package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway identifies a PIX payment gateway
type Gateway string

const (
	GatewayTryploPay  Gateway = "tryplopay"
	GatewaySuperPay   Gateway = "superpay"
	GatewaySuperPayBR Gateway = "superpaybr"
)

// Gateways lists every supported gateway
var Gateways = []Gateway{GatewayTryploPay, GatewaySuperPay, GatewaySuperPayBR}

// ParseGateway converts a case-insensitive name to a Gateway
func ParseGateway(s string) (Gateway, error) {
	g := Gateway(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Gateways {
		if g == known {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGateway, s)
}

// TokenPrefix is prepended to tokens by clients that store them namespaced
const TokenPrefix = "token_"

// PaymentConfirmation is the last-seen status of a payment
type PaymentConfirmation struct {
	ExternalID        string          `json:"externalId"`
	InvoiceID         string          `json:"invoiceId,omitempty"`
	Token             string          `json:"token,omitempty"`
	Gateway           Gateway         `json:"gateway"`
	StatusCode        int             `json:"statusCode"`
	StatusName        string          `json:"statusName"`
	StatusDescription string          `json:"statusDescription,omitempty"`
	IsPaid            bool            `json:"isPaid"`
	IsDenied          bool            `json:"isDenied"`
	IsExpired         bool            `json:"isExpired"`
	IsCanceled        bool            `json:"isCanceled"`
	IsRefunded        bool            `json:"isRefunded"`
	Amount            decimal.Decimal `json:"amount"`
	PaymentDate       *time.Time      `json:"paymentDate,omitempty"`
	ReceivedAt        time.Time       `json:"receivedAt"`
	ExpiresAt         *time.Time      `json:"expiresAt,omitempty"`
	RawData           json.RawMessage `json:"rawData,omitempty"`
}

// NewConfirmation builds a confirmation from a parsed webhook and its status.
// The flags all come from info, so at most one terminal flag is set.
func NewConfirmation(n *WebhookNotification, info StatusInfo, receivedAt time.Time, ttl time.Duration) *PaymentConfirmation {
	c := &PaymentConfirmation{
		ExternalID:        n.ExternalID,
		InvoiceID:         n.InvoiceID,
		Token:             n.Token,
		Gateway:           n.Gateway,
		StatusCode:        info.Code,
		StatusName:        info.Name,
		StatusDescription: info.Description,
		IsPaid:            info.IsPaid,
		IsDenied:          info.IsDenied,
		IsExpired:         info.IsExpired,
		IsCanceled:        info.IsCanceled,
		IsRefunded:        info.IsRefunded,
		Amount:            n.Amount,
		PaymentDate:       n.PaymentDate,
		ReceivedAt:        receivedAt,
		RawData:           n.Raw,
	}
	if c.ExternalID == "" {
		// some gateways only echo their own identifier back
		c.ExternalID = n.InvoiceID
	}
	if ttl > 0 {
		exp := receivedAt.Add(ttl)
		c.ExpiresAt = &exp
	}
	return c
}

// IsTerminal reports whether the payment reached a final state
func (c *PaymentConfirmation) IsTerminal() bool {
	return c.IsPaid || c.IsDenied || c.IsExpired || c.IsCanceled || c.IsRefunded
}

// Outcome returns the normalized outcome of the payment
func (c *PaymentConfirmation) Outcome() Outcome {
	return outcomeOf(c.IsPaid, c.IsDenied, c.IsExpired, c.IsCanceled, c.IsRefunded)
}

// Expired reports whether the cached record outlived its TTL
func (c *PaymentConfirmation) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Keys returns the non-empty lookup keys of the record, external ID first
func (c *PaymentConfirmation) Keys() []string {
	keys := []string{c.ExternalID}
	if c.InvoiceID != "" && c.InvoiceID != c.ExternalID {
		keys = append(keys, c.InvoiceID)
	}
	if c.Token != "" {
		keys = append(keys, TokenPrefix+c.Token)
	}
	return keys
}

// WebhookNotification is a gateway webhook reduced to the fields we store
type WebhookNotification struct {
	Gateway     Gateway
	EventType   string
	ExternalID  string
	InvoiceID   string
	Token       string
	StatusCode  int
	Amount      decimal.Decimal
	PaymentDate *time.Time
	Raw         json.RawMessage
}

// WebhookEvent is one entry of the recent webhook events log
type WebhookEvent struct {
	ID         uuid.UUID `json:"id"`
	Gateway    Gateway   `json:"gateway"`
	EventType  string    `json:"eventType"`
	ExternalID string    `json:"externalId"`
	InvoiceID  string    `json:"invoiceId,omitempty"`
	StatusCode int       `json:"statusCode"`
	StatusName string    `json:"statusName"`
	Outcome    Outcome   `json:"outcome"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// NewWebhookEvent derives the event log entry for a stored confirmation
func NewWebhookEvent(eventType string, c *PaymentConfirmation) WebhookEvent {
	return WebhookEvent{
		ID:         uuid.New(),
		Gateway:    c.Gateway,
		EventType:  eventType,
		ExternalID: c.ExternalID,
		InvoiceID:  c.InvoiceID,
		StatusCode: c.StatusCode,
		StatusName: c.StatusName,
		Outcome:    c.Outcome(),
		ReceivedAt: c.ReceivedAt,
	}
}

// ConfirmationEvent is published to the broker when a payment reaches a terminal state
type ConfirmationEvent struct {
	EventID    uuid.UUID       `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Gateway    Gateway         `json:"gateway"`
	ExternalID string          `json:"externalId"`
	InvoiceID  string          `json:"invoiceId,omitempty"`
	StatusCode int             `json:"statusCode"`
	Outcome    Outcome         `json:"outcome"`
	Amount     decimal.Decimal `json:"amount"`
}

var eventTypes = map[Outcome]string{
	OutcomePaid:     "PaymentPaid",
	OutcomeDenied:   "PaymentDenied",
	OutcomeExpired:  "PaymentExpired",
	OutcomeCanceled: "PaymentCanceled",
	OutcomeRefunded: "PaymentRefunded",
}

// NewConfirmationEvent returns the broker event for a terminal confirmation.
// ok is false while the payment is still pending.
func NewConfirmationEvent(c *PaymentConfirmation, now time.Time) (ConfirmationEvent, bool) {
	eventType, ok := eventTypes[c.Outcome()]
	if !ok {
		return ConfirmationEvent{}, false
	}
	return ConfirmationEvent{
		EventID:    uuid.New(),
		EventType:  eventType,
		OccurredAt: now.UTC(),
		Gateway:    c.Gateway,
		ExternalID: c.ExternalID,
		InvoiceID:  c.InvoiceID,
		StatusCode: c.StatusCode,
		Outcome:    c.Outcome(),
		Amount:     c.Amount,
	}, true
}
