package paymentintents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
	"github.com/vitalshift/vitalshift-backend/pkg/enums"
)

// Repository manages payment intent rows. Status moves are compare-and-swap
// updates keyed on the allowed source statuses; zero rows affected means a
// concurrent writer got there first and the caller must treat it as a no-op
// or a conflict, never retry blindly.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	FindActive(ctx context.Context, stintID, applicationID uuid.UUID) (*models.PaymentIntent, error)
	FindByGatewayReference(ctx context.Context, reference string) (*models.PaymentIntent, error)
	FindSucceededByStintID(ctx context.Context, stintID uuid.UUID) (*models.PaymentIntent, error)
	FindStale(ctx context.Context, now time.Time, limit int) ([]models.PaymentIntent, error)
	SetGatewayReference(ctx context.Context, id uuid.UUID, reference string) (int64, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.PaymentIntentStatus, to enums.PaymentIntentStatus, failureReason *string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment intent repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

// FindActive returns the non-terminal intent for a (stint, application)
// pair, if one exists. The partial unique index guarantees at most one.
func (r *repository) FindActive(ctx context.Context, stintID, applicationID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("stint_id = ? AND application_id = ?", stintID, applicationID).
		Where("status IN ?", []enums.PaymentIntentStatus{
			enums.PaymentIntentStatusCreated,
			enums.PaymentIntentStatusProcessing,
		}).
		First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) FindByGatewayReference(ctx context.Context, reference string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("gateway_reference = ?", reference).
		First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

// FindSucceededByStintID returns the successful charge for a stint, used by
// settlement to cross-check the fee computed at acceptance time.
func (r *repository) FindSucceededByStintID(ctx context.Context, stintID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("stint_id = ? AND status = ?", stintID, enums.PaymentIntentStatusSuccess).
		First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

// FindStale returns non-terminal intents whose TTL has lapsed.
func (r *repository) FindStale(ctx context.Context, now time.Time, limit int) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.PaymentIntentStatus{
			enums.PaymentIntentStatusCreated,
			enums.PaymentIntentStatusProcessing,
		}).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *repository) SetGatewayReference(ctx context.Context, id uuid.UUID, reference string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ?", id).
		Update("gateway_reference", reference)
	return res.RowsAffected, res.Error
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.PaymentIntentStatus, to enums.PaymentIntentStatus, failureReason *string) (int64, error) {
	updates := map[string]any{"status": to}
	if failureReason != nil {
		updates["failure_reason"] = *failureReason
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}
