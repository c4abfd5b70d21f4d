package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
	"github.com/vitalshift/vitalshift-backend/pkg/enums"
)

// Repository manages payout rows. The insert races on the stint_id unique
// index and every status move is a compare-and-swap, mirroring the payment
// intent side.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.Payout) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	FindByStintID(ctx context.Context, stintID uuid.UUID) (*models.Payout, error)
	FindByExternalTransactionID(ctx context.Context, reference string) (*models.Payout, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]models.Payout, error)
	ClaimForProcessing(ctx context.Context, id uuid.UUID) (int64, error)
	SetExternalTransactionID(ctx context.Context, id uuid.UUID, reference string) (int64, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (int64, error)
	RescheduleForRetry(ctx context.Context, id uuid.UUID, reason string, retryCount int, scheduledAt time.Time) (int64, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payout repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindByStintID(ctx context.Context, stintID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).
		Where("stint_id = ?", stintID).
		First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindByExternalTransactionID(ctx context.Context, reference string) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).
		Where("external_transaction_id = ?", reference).
		First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindDue(ctx context.Context, now time.Time, limit int) ([]models.Payout, error) {
	var due []models.Payout
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.PayoutStatusPending).
		Where("scheduled_at <= ?", now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}

func (r *repository) ClaimForProcessing(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", id, enums.PayoutStatusPending).
		Update("status", enums.PayoutStatusProcessing)
	return res.RowsAffected, res.Error
}

func (r *repository) SetExternalTransactionID(ctx context.Context, id uuid.UUID, reference string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ?", id).
		Update("external_transaction_id", reference)
	return res.RowsAffected, res.Error
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", id, enums.PayoutStatusProcessing).
		Update("status", enums.PayoutStatusCompleted)
	return res.RowsAffected, res.Error
}

// RescheduleForRetry puts a processing payout back in the pending queue
// with a bumped retry count and a later due time.
func (r *repository) RescheduleForRetry(ctx context.Context, id uuid.UUID, reason string, retryCount int, scheduledAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", id, enums.PayoutStatusProcessing).
		Updates(map[string]any{
			"status":         enums.PayoutStatusPending,
			"retry_count":    retryCount,
			"scheduled_at":   scheduledAt,
			"failure_reason": reason,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status IN ?", id, []enums.PayoutStatus{
			enums.PayoutStatusPending,
			enums.PayoutStatusProcessing,
		}).
		Updates(map[string]any{
			"status":         enums.PayoutStatusFailed,
			"failure_reason": reason,
		})
	return res.RowsAffected, res.Error
}
