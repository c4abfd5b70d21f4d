package invoices

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitalshift/vitalshift-backend/internal/fees"
	"github.com/vitalshift/vitalshift-backend/internal/ledger"
	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
	"github.com/vitalshift/vitalshift-backend/pkg/enums"
	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

// Service issues booking-fee invoices to employers and tracks payment.
type Service interface {
	IssueTx(ctx context.Context, tx *gorm.DB, input IssueInput) (*models.Invoice, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	ListByEmployer(ctx context.Context, employerID uuid.UUID, limit int) ([]models.Invoice, error)
	ListOverdue(ctx context.Context, limit int) ([]models.Invoice, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

// IssueInput creates an invoice for a settled stint's booking fee.
type IssueInput struct {
	Stint     *models.Stint
	Breakdown fees.Breakdown
}

// lineItem is what lands in the invoice's line_items jsonb column.
type lineItem struct {
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
}

// ServiceParams wires the dependencies an invoice service needs.
type ServiceParams struct {
	Repo   Repository
	Ledger ledger.Service
	Logger *logger.Logger
	DueIn  time.Duration
	Now    func() time.Time
}

type service struct {
	repo   Repository
	ledger ledger.Service
	log    *logger.Logger
	dueIn  time.Duration
	now    func() time.Time
}

// NewService validates params and returns an invoice service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DueIn <= 0 {
		params.DueIn = 7 * 24 * time.Hour
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:   params.Repo,
		ledger: params.Ledger,
		log:    params.Logger,
		dueIn:  params.DueIn,
		now:    params.Now,
	}, nil
}

// IssueTx creates the invoice inside the caller's transaction, alongside the
// payout it belongs to. Numbers look like INV-2025-00000042.
func (s *service) IssueTx(ctx context.Context, tx *gorm.DB, input IssueInput) (*models.Invoice, error) {
	if input.Stint == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stint is required")
	}

	repo := s.repo.WithTx(tx)

	seq, err := repo.NextSequence(ctx)
	if err != nil {
		return nil, err
	}

	issuedAt := s.now().UTC()
	items, _ := json.Marshal([]lineItem{
		{Description: "stint gross", AmountCents: input.Breakdown.GrossCents},
		{Description: fmt.Sprintf("booking fee %d%%", input.Breakdown.BookingFeePercent), AmountCents: input.Breakdown.BookingFeeCents},
	})

	invoice := &models.Invoice{
		InvoiceNumber:    fmt.Sprintf("INV-%d-%08d", issuedAt.Year(), seq),
		EmployerID:       input.Stint.EmployerID,
		StintID:          input.Stint.ID,
		AmountCents:      input.Breakdown.BookingFeeCents,
		FeePercent:       input.Breakdown.BookingFeePercent,
		TotalChargeCents: input.Breakdown.TotalChargeCents,
		Currency:         input.Stint.Currency,
		DueAt:            issuedAt.Add(s.dueIn),
		LineItems:        items,
	}

	if err := repo.Create(ctx, invoice); err != nil {
		return nil, err
	}

	if _, err := s.ledger.RecordTx(ctx, tx, ledger.RecordEntryInput{
		StintID:     input.Stint.ID,
		Type:        enums.LedgerEntryTypeInvoiceIssued,
		AmountCents: invoice.AmountCents,
		Currency:    invoice.Currency,
		Reference:   invoice.InvoiceNumber,
	}); err != nil {
		return nil, err
	}

	return invoice, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) ListByEmployer(ctx context.Context, employerID uuid.UUID, limit int) ([]models.Invoice, error) {
	if employerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "employer id is required")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByEmployer(ctx, employerID, limit)
}

func (s *service) ListOverdue(ctx context.Context, limit int) ([]models.Invoice, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListOverdue(ctx, s.now().UTC(), limit)
}

// MarkPaid records an employer payment against the invoice. Paying twice is
// a conflict, not a double credit.
func (s *service) MarkPaid(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}

	affected, err := s.repo.MarkPaid(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is already paid")
	}
	return s.repo.FindByID(ctx, id)
}
