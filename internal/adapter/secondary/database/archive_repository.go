package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cashflow/pix-gateway/internal/constant/model/db"
	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

// GormArchiveRepository implements the ConfirmationArchive output port
type GormArchiveRepository struct {
	gormDB *gorm.DB
}

// NewGormArchiveRepository creates a new GORM archive repository
func NewGormArchiveRepository(gormDB *gorm.DB) output.ConfirmationArchive {
	return &GormArchiveRepository{gormDB: gormDB}
}

// Archive inserts evt unless its event ID is already stored
func (r *GormArchiveRepository) Archive(ctx context.Context, evt core.ConfirmationEvent) error {
	row := db.ConfirmationArchive{
		EventID:    evt.EventID,
		EventType:  evt.EventType,
		Gateway:    string(evt.Gateway),
		ExternalID: evt.ExternalID,
		InvoiceID:  evt.InvoiceID,
		StatusCode: evt.StatusCode,
		Outcome:    string(evt.Outcome),
		Amount:     evt.Amount,
		OccurredAt: evt.OccurredAt,
	}
	res := r.gormDB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to archive confirmation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return output.ErrAlreadyArchived
	}
	return nil
}
