package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
	"github.com/vitalshift/vitalshift-backend/pkg/enums"
)

// Service defines operations that record and read ledger entries.
type Service interface {
	Record(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error)
	RecordTx(ctx context.Context, tx *gorm.DB, input RecordEntryInput) (*models.LedgerEntry, error)
	ListByStintID(ctx context.Context, stintID uuid.UUID) ([]models.LedgerEntry, error)
	HasEntry(ctx context.Context, stintID uuid.UUID, entryType enums.LedgerEntryType) (bool, error)
}

type service struct {
	repo Repository
}

// RecordEntryInput captures the immutable data a ledger entry requires.
// Amounts are signed: money moving toward the platform is positive, money
// moving out is negative.
type RecordEntryInput struct {
	StintID     uuid.UUID             `json:"stint_id"`
	Type        enums.LedgerEntryType `json:"type"`
	AmountCents int64                 `json:"amount_cents"`
	Currency    enums.Currency        `json:"currency"`
	Reference   string                `json:"reference"`
	Metadata    json.RawMessage       `json:"metadata"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error) {
	return s.record(ctx, s.repo, input)
}

// RecordTx writes a ledger entry inside an existing transaction so state
// changes and their audit rows commit or roll back together.
func (s *service) RecordTx(ctx context.Context, tx *gorm.DB, input RecordEntryInput) (*models.LedgerEntry, error) {
	return s.record(ctx, s.repo.WithTx(tx), input)
}

func (s *service) record(ctx context.Context, repo Repository, input RecordEntryInput) (*models.LedgerEntry, error) {
	if input.StintID == uuid.Nil {
		return nil, fmt.Errorf("stint id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger entry type %q", input.Type)
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyKES
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("invalid currency %q", currency)
	}

	entry := &models.LedgerEntry{
		StintID:     input.StintID,
		Type:        input.Type,
		AmountCents: input.AmountCents,
		Currency:    currency,
		Metadata:    input.Metadata,
	}
	if input.Reference != "" {
		ref := input.Reference
		entry.Reference = &ref
	}

	if err := repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) ListByStintID(ctx context.Context, stintID uuid.UUID) ([]models.LedgerEntry, error) {
	if stintID == uuid.Nil {
		return nil, fmt.Errorf("stint id is required")
	}
	return s.repo.ListByStintID(ctx, stintID)
}

func (s *service) HasEntry(ctx context.Context, stintID uuid.UUID, entryType enums.LedgerEntryType) (bool, error) {
	if stintID == uuid.Nil {
		return false, fmt.Errorf("stint id is required")
	}
	if !entryType.IsValid() {
		return false, fmt.Errorf("invalid ledger entry type %q", entryType)
	}
	return s.repo.HasEntry(ctx, stintID, entryType)
}
