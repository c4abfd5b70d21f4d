package stints

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitalshift/vitalshift-backend/internal/ledger"
	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
	"github.com/vitalshift/vitalshift-backend/pkg/enums"
	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

type fakeRepo struct {
	markCompletedFn func(ctx context.Context, id uuid.UUID, completedAt, windowEnds time.Time) (int64, error)
	markDisputedFn  func(ctx context.Context, id uuid.UUID) (int64, error)
	findByIDFn      func(ctx context.Context, id uuid.UUID) (*models.Stint, error)
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Stint, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return &models.Stint{ID: id}, nil
}

func (f *fakeRepo) MarkCompleted(ctx context.Context, id uuid.UUID, completedAt, windowEnds time.Time) (int64, error) {
	if f.markCompletedFn != nil {
		return f.markCompletedFn(ctx, id, completedAt, windowEnds)
	}
	return 1, nil
}

func (f *fakeRepo) MarkDisputed(ctx context.Context, id uuid.UUID) (int64, error) {
	if f.markDisputedFn != nil {
		return f.markDisputedFn(ctx, id)
	}
	return 1, nil
}

func (f *fakeRepo) FindSettleable(ctx context.Context, now time.Time, limit int) ([]models.Stint, error) {
	return nil, nil
}

func (f *fakeRepo) MarkReadyForSettlement(ctx context.Context, id uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) FindReadyWithoutPayout(ctx context.Context, limit int) ([]models.Stint, error) {
	return nil, nil
}

func (f *fakeRepo) MarkSettled(ctx context.Context, id uuid.UUID, settledAt time.Time) (int64, error) {
	return 0, nil
}

type fakeLedger struct{}

func (f *fakeLedger) Record(ctx context.Context, input ledger.RecordEntryInput) (*models.LedgerEntry, error) {
	return &models.LedgerEntry{}, nil
}

func (f *fakeLedger) RecordTx(ctx context.Context, tx *gorm.DB, input ledger.RecordEntryInput) (*models.LedgerEntry, error) {
	return &models.LedgerEntry{}, nil
}

func (f *fakeLedger) ListByStintID(ctx context.Context, stintID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeLedger) HasEntry(ctx context.Context, stintID uuid.UUID, entryType enums.LedgerEntryType) (bool, error) {
	return false, nil
}

func newTestService(t *testing.T, repo Repository, now func() time.Time) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:          repo,
		Ledger:        &fakeLedger{},
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		DisputeWindow: 24 * time.Hour,
		Now:           now,
	})
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return svc
}

func TestService_CompleteStampsDisputeWindow(t *testing.T) {
	fixed := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{}

	var gotCompletedAt, gotWindowEnds time.Time
	repo.markCompletedFn = func(ctx context.Context, id uuid.UUID, completedAt, windowEnds time.Time) (int64, error) {
		gotCompletedAt = completedAt
		gotWindowEnds = windowEnds
		return 1, nil
	}

	svc := newTestService(t, repo, func() time.Time { return fixed })

	if _, err := svc.Complete(context.Background(), uuid.New()); err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if !gotCompletedAt.Equal(fixed) {
		t.Fatalf("completed at: got %v want %v", gotCompletedAt, fixed)
	}
	if want := fixed.Add(24 * time.Hour); !gotWindowEnds.Equal(want) {
		t.Fatalf("dispute window: got %v want %v", gotWindowEnds, want)
	}
}

func TestService_CompleteWrongState(t *testing.T) {
	repo := &fakeRepo{
		markCompletedFn: func(ctx context.Context, id uuid.UUID, completedAt, windowEnds time.Time) (int64, error) {
			return 0, nil
		},
	}
	svc := newTestService(t, repo, time.Now)

	_, err := svc.Complete(context.Background(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestService_Dispute(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo, time.Now)

	if _, err := svc.Dispute(context.Background(), uuid.New()); err != nil {
		t.Fatalf("Dispute error: %v", err)
	}

	repo.markDisputedFn = func(ctx context.Context, id uuid.UUID) (int64, error) { return 0, nil }
	_, err := svc.Dispute(context.Background(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for settled stint, got %v", err)
	}
}

func TestService_ValidatesIDs(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, time.Now)

	if _, err := svc.GetByID(context.Background(), uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Complete(context.Background(), uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Dispute(context.Background(), uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
