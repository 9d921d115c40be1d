package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is the payer attached to a PIX charge
type Customer struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Document string `json:"document,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// CreateInvoiceRequest asks a gateway for a new PIX charge
type CreateInvoiceRequest struct {
	Gateway     Gateway
	ExternalID  string
	Amount      decimal.Decimal
	Description string
	Customer    Customer
}

// Invoice is a PIX charge created on a gateway
type Invoice struct {
	Gateway     Gateway         `json:"gateway"`
	ExternalID  string          `json:"externalId"`
	InvoiceID   string          `json:"invoiceId"`
	Token       string          `json:"token,omitempty"`
	PixCode     string          `json:"pixCode"`
	QRCodeImage string          `json:"qrCodeImage,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
}
