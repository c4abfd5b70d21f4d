package invoices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
)

// Repository manages invoice rows. Numbering comes from a database sequence
// so two settlement runs can never mint the same invoice number.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	NextSequence(ctx context.Context) (int64, error)
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindByStintID(ctx context.Context, stintID uuid.UUID) (*models.Invoice, error)
	ListByEmployer(ctx context.Context, employerID uuid.UUID, limit int) ([]models.Invoice, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Invoice, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an invoice repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) NextSequence(ctx context.Context) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).
		Raw("SELECT nextval('invoice_number_seq')").
		Scan(&next).Error
	return next, err
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindByStintID(ctx context.Context, stintID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Where("stint_id = ?", stintID).
		First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ListByEmployer(ctx context.Context, employerID uuid.UUID, limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("employer_id = ?", employerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("is_paid = FALSE").
		Where("due_at <= ?", now).
		Order("due_at ASC").
		Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND is_paid = FALSE", id).
		Updates(map[string]any{
			"is_paid": true,
			"paid_at": paidAt,
		})
	return res.RowsAffected, res.Error
}
