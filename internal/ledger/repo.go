package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
	"github.com/vitalshift/vitalshift-backend/pkg/enums"
)

// Repository manages persistence for ledger entries. The table is
// append-only; there are deliberately no update or delete methods.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	ListByStintID(ctx context.Context, stintID uuid.UUID) ([]models.LedgerEntry, error)
	HasEntry(ctx context.Context, stintID uuid.UUID, entryType enums.LedgerEntryType) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByStintID(ctx context.Context, stintID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("stint_id = ?", stintID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) HasEntry(ctx context.Context, stintID uuid.UUID, entryType enums.LedgerEntryType) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("stint_id = ? AND type = ?", stintID, entryType).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
