package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentConfirmation represents the last-seen status of a payment in the database.
// One row per external ID; invoice ID and token are indexed columns of the same row.
type PaymentConfirmation struct {
	ExternalID        string          `gorm:"type:varchar(255);primaryKey" json:"external_id"`
	InvoiceID         string          `gorm:"type:varchar(255);index" json:"invoice_id"`
	Token             string          `gorm:"type:varchar(255);index" json:"token"`
	Gateway           string          `gorm:"type:varchar(20);not null" json:"gateway"`
	StatusCode        int             `gorm:"not null" json:"status_code"`
	StatusName        string          `gorm:"type:varchar(100)" json:"status_name"`
	StatusDescription string          `gorm:"type:varchar(255)" json:"status_description"`
	IsPaid            bool            `gorm:"not null;default:false" json:"is_paid"`
	IsDenied          bool            `gorm:"not null;default:false" json:"is_denied"`
	IsExpired         bool            `gorm:"not null;default:false" json:"is_expired"`
	IsCanceled        bool            `gorm:"not null;default:false" json:"is_canceled"`
	IsRefunded        bool            `gorm:"not null;default:false" json:"is_refunded"`
	Amount            decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount"`
	PaymentDate       *time.Time      `json:"payment_date"`
	ReceivedAt        time.Time       `gorm:"not null;index" json:"received_at"`
	ExpiresAt         *time.Time      `gorm:"index" json:"expires_at"`
	RawData           datatypes.JSON  `json:"raw_data"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (PaymentConfirmation) TableName() string {
	return "payment_confirmations"
}

// WebhookEvent is one row of the capped recent webhook events log
type WebhookEvent struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"event_id"`
	Gateway    string    `gorm:"type:varchar(20);not null" json:"gateway"`
	EventType  string    `gorm:"type:varchar(100)" json:"event_type"`
	ExternalID string    `gorm:"type:varchar(255);index" json:"external_id"`
	InvoiceID  string    `gorm:"type:varchar(255)" json:"invoice_id"`
	StatusCode int       `json:"status_code"`
	StatusName string    `gorm:"type:varchar(100)" json:"status_name"`
	Outcome    string    `gorm:"type:varchar(20)" json:"outcome"`
	ReceivedAt time.Time `gorm:"not null" json:"received_at"`
}

// TableName specifies the table name for GORM
func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}
	return nil
}

// ConfirmationArchive is the durable copy of a terminal confirmation event
type ConfirmationArchive struct {
	EventID    uuid.UUID       `gorm:"type:uuid;primaryKey" json:"event_id"`
	EventType  string          `gorm:"type:varchar(50);not null" json:"event_type"`
	Gateway    string          `gorm:"type:varchar(20);not null" json:"gateway"`
	ExternalID string          `gorm:"type:varchar(255);not null;index" json:"external_id"`
	InvoiceID  string          `gorm:"type:varchar(255)" json:"invoice_id"`
	StatusCode int             `json:"status_code"`
	Outcome    string          `gorm:"type:varchar(20);not null" json:"outcome"`
	Amount     decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount"`
	OccurredAt time.Time       `gorm:"not null" json:"occurred_at"`
	ArchivedAt time.Time       `gorm:"not null" json:"archived_at"`
}

// TableName specifies the table name for GORM
func (ConfirmationArchive) TableName() string {
	return "confirmation_archive"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (a *ConfirmationArchive) BeforeCreate(tx *gorm.DB) error {
	if a.ArchivedAt.IsZero() {
		a.ArchivedAt = time.Now()
	}
	return nil
}

