package stints

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
	"github.com/vitalshift/vitalshift-backend/pkg/enums"
)

// Repository manages stint rows for the settlement pipeline. Status moves
// are conditional updates keyed on the current status so concurrent writers
// resolve at the database instead of via read-then-write races; every
// mutator reports rows affected so callers can tell a no-op from a win.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Stint, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, completedAt, disputeWindowEndsAt time.Time) (int64, error)
	MarkDisputed(ctx context.Context, id uuid.UUID) (int64, error)
	FindSettleable(ctx context.Context, now time.Time, limit int) ([]models.Stint, error)
	MarkReadyForSettlement(ctx context.Context, id uuid.UUID) (int64, error)
	FindReadyWithoutPayout(ctx context.Context, limit int) ([]models.Stint, error)
	MarkSettled(ctx context.Context, id uuid.UUID, settledAt time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stint repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Stint, error) {
	var stint models.Stint
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&stint).Error; err != nil {
		return nil, err
	}
	return &stint, nil
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, completedAt, disputeWindowEndsAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Stint{}).
		Where("id = ? AND status = ?", id, enums.StintStatusInProgress).
		Updates(map[string]any{
			"status":                 enums.StintStatusCompleted,
			"completed_at":           completedAt,
			"dispute_window_ends_at": disputeWindowEndsAt,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) MarkDisputed(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Stint{}).
		Where("id = ? AND status = ? AND settled_at IS NULL", id, enums.StintStatusCompleted).
		Update("status", enums.StintStatusDisputed)
	return res.RowsAffected, res.Error
}

// FindSettleable returns completed stints whose dispute window has elapsed,
// whose employer charge succeeded, and which have not yet been queued.
func (r *repository) FindSettleable(ctx context.Context, now time.Time, limit int) ([]models.Stint, error) {
	var stints []models.Stint
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.StintStatusCompleted).
		Where("is_ready_for_settlement = FALSE").
		Where("dispute_window_ends_at IS NOT NULL AND dispute_window_ends_at <= ?", now).
		Where("EXISTS (SELECT 1 FROM payment_intents pi WHERE pi.stint_id = stints.id AND pi.status = ?)", enums.PaymentIntentStatusSuccess).
		Order("dispute_window_ends_at ASC").
		Limit(limit).
		Find(&stints).Error
	if err != nil {
		return nil, err
	}
	return stints, nil
}

func (r *repository) MarkReadyForSettlement(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Stint{}).
		Where("id = ? AND status = ? AND is_ready_for_settlement = FALSE", id, enums.StintStatusCompleted).
		Update("is_ready_for_settlement", true)
	return res.RowsAffected, res.Error
}

// FindReadyWithoutPayout is the second settlement phase feed: stints flagged
// ready whose payout row does not exist yet.
func (r *repository) FindReadyWithoutPayout(ctx context.Context, limit int) ([]models.Stint, error) {
	var stints []models.Stint
	err := r.db.WithContext(ctx).
		Where("is_ready_for_settlement = TRUE").
		Where("settled_at IS NULL").
		Where("status = ?", enums.StintStatusCompleted).
		Where("NOT EXISTS (SELECT 1 FROM payouts p WHERE p.stint_id = stints.id)").
		Order("dispute_window_ends_at ASC").
		Limit(limit).
		Find(&stints).Error
	if err != nil {
		return nil, err
	}
	return stints, nil
}

func (r *repository) MarkSettled(ctx context.Context, id uuid.UUID, settledAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Stint{}).
		Where("id = ? AND status = ?", id, enums.StintStatusCompleted).
		Updates(map[string]any{
			"status":     enums.StintStatusSettled,
			"settled_at": settledAt,
		})
	return res.RowsAffected, res.Error
}
