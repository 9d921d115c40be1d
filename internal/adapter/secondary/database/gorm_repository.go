package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cashflow/pix-gateway/internal/constant/model/db"
	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

// GormConfirmationRepository is a secondary adapter that implements the
// ConfirmationStore and EventLog output ports
type GormConfirmationRepository struct {
	gormDB *gorm.DB
	now    func() time.Time
}

var (
	_ output.ConfirmationStore = (*GormConfirmationRepository)(nil)
	_ output.EventLog          = (*GormConfirmationRepository)(nil)
)

// NewGormConfirmationRepository creates a new GORM confirmation repository
func NewGormConfirmationRepository(gormDB *gorm.DB) *GormConfirmationRepository {
	return &GormConfirmationRepository{gormDB: gormDB, now: time.Now}
}

// toCore converts db.PaymentConfirmation to core.PaymentConfirmation
func toCore(p *db.PaymentConfirmation) *core.PaymentConfirmation {
	var raw json.RawMessage
	if len(p.RawData) > 0 && string(p.RawData) != "null" {
		raw = json.RawMessage(p.RawData)
	}
	return &core.PaymentConfirmation{
		ExternalID:        p.ExternalID,
		InvoiceID:         p.InvoiceID,
		Token:             p.Token,
		Gateway:           core.Gateway(p.Gateway),
		StatusCode:        p.StatusCode,
		StatusName:        p.StatusName,
		StatusDescription: p.StatusDescription,
		IsPaid:            p.IsPaid,
		IsDenied:          p.IsDenied,
		IsExpired:         p.IsExpired,
		IsCanceled:        p.IsCanceled,
		IsRefunded:        p.IsRefunded,
		Amount:            p.Amount,
		PaymentDate:       p.PaymentDate,
		ReceivedAt:        p.ReceivedAt,
		ExpiresAt:         p.ExpiresAt,
		RawData:           raw,
	}
}

// fromCore converts core.PaymentConfirmation to db.PaymentConfirmation
func fromCore(c *core.PaymentConfirmation) *db.PaymentConfirmation {
	raw := datatypes.JSON("null")
	if len(c.RawData) > 0 {
		raw = datatypes.JSON(c.RawData)
	}
	return &db.PaymentConfirmation{
		ExternalID:        c.ExternalID,
		InvoiceID:         c.InvoiceID,
		Token:             c.Token,
		Gateway:           string(c.Gateway),
		StatusCode:        c.StatusCode,
		StatusName:        c.StatusName,
		StatusDescription: c.StatusDescription,
		IsPaid:            c.IsPaid,
		IsDenied:          c.IsDenied,
		IsExpired:         c.IsExpired,
		IsCanceled:        c.IsCanceled,
		IsRefunded:        c.IsRefunded,
		Amount:            c.Amount,
		PaymentDate:       c.PaymentDate,
		ReceivedAt:        c.ReceivedAt,
		ExpiresAt:         c.ExpiresAt,
		RawData:           raw,
	}
}

// Save upserts the confirmation row for its external ID
func (r *GormConfirmationRepository) Save(ctx context.Context, c *core.PaymentConfirmation) error {
	row := fromCore(c)
	err := r.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns(updatableColumns),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save confirmation: %w", err)
	}
	return nil
}

var updatableColumns = []string{
	"invoice_id", "token", "gateway", "status_code", "status_name", "status_description",
	"is_paid", "is_denied", "is_expired", "is_canceled", "is_refunded",
	"amount", "payment_date", "received_at", "expires_at", "raw_data", "updated_at",
}

// Get tries identifier as external ID, invoice ID and token, in that order
func (r *GormConfirmationRepository) Get(ctx context.Context, identifier string) (*core.PaymentConfirmation, error) {
	lookups := []struct {
		column string
		value  string
	}{
		{"external_id", identifier},
		{"invoice_id", identifier},
		{"token", identifier},
		{"token", strings.TrimPrefix(identifier, core.TokenPrefix)},
	}

	tx := r.gormDB.WithContext(ctx)
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		var row db.PaymentConfirmation
		err := tx.Where(l.column+" = ?", l.value).Order("received_at desc").First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get confirmation: %w", err)
		}

		c := toCore(&row)
		if c.Expired(r.now()) {
			if err := tx.Delete(&db.PaymentConfirmation{}, "external_id = ?", row.ExternalID).Error; err != nil {
				return nil, fmt.Errorf("failed to delete expired confirmation: %w", err)
			}
			return nil, core.ErrNotFound
		}
		return c, nil
	}
	return nil, core.ErrNotFound
}

// List returns unexpired confirmations, newest first
func (r *GormConfirmationRepository) List(ctx context.Context) ([]core.PaymentConfirmation, error) {
	var rows []db.PaymentConfirmation
	err := r.gormDB.WithContext(ctx).
		Where("expires_at IS NULL OR expires_at > ?", r.now()).
		Order("received_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmations: %w", err)
	}

	list := make([]core.PaymentConfirmation, 0, len(rows))
	for i := range rows {
		list = append(list, *toCore(&rows[i]))
	}
	return list, nil
}

// DeleteExpired removes rows whose TTL has passed
func (r *GormConfirmationRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res := r.gormDB.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&db.PaymentConfirmation{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired confirmations: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Append inserts evt and trims the log to the newest MaxRecentEvents rows
func (r *GormConfirmationRepository) Append(ctx context.Context, evt core.WebhookEvent) error {
	return r.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := db.WebhookEvent{
			EventID:    evt.ID,
			Gateway:    string(evt.Gateway),
			EventType:  evt.EventType,
			ExternalID: evt.ExternalID,
			InvoiceID:  evt.InvoiceID,
			StatusCode: evt.StatusCode,
			StatusName: evt.StatusName,
			Outcome:    string(evt.Outcome),
			ReceivedAt: evt.ReceivedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to append webhook event: %w", err)
		}

		newest := tx.Model(&db.WebhookEvent{}).Select("id").Order("id desc").Limit(output.MaxRecentEvents)
		if err := tx.Where("id NOT IN (?)", newest).Delete(&db.WebhookEvent{}).Error; err != nil {
			return fmt.Errorf("failed to trim webhook events: %w", err)
		}
		return nil
	})
}

// Recent returns up to limit events, newest first
func (r *GormConfirmationRepository) Recent(ctx context.Context, limit int) ([]core.WebhookEvent, error) {
	if limit <= 0 || limit > output.MaxRecentEvents {
		limit = output.MaxRecentEvents
	}
	var rows []db.WebhookEvent
	if err := r.gormDB.WithContext(ctx).Order("id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read webhook events: %w", err)
	}

	events := make([]core.WebhookEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, core.WebhookEvent{
			ID:         row.EventID,
			Gateway:    core.Gateway(row.Gateway),
			EventType:  row.EventType,
			ExternalID: row.ExternalID,
			InvoiceID:  row.InvoiceID,
			StatusCode: row.StatusCode,
			StatusName: row.StatusName,
			Outcome:    core.Outcome(row.Outcome),
			ReceivedAt: row.ReceivedAt,
		})
	}
	return events, nil
}
