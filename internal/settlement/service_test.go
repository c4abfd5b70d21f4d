package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitalshift/vitalshift-backend/internal/fees"
	"github.com/vitalshift/vitalshift-backend/internal/invoices"
	"github.com/vitalshift/vitalshift-backend/internal/ledger"
	"github.com/vitalshift/vitalshift-backend/internal/payouts"
	"github.com/vitalshift/vitalshift-backend/internal/stints"
	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
	"github.com/vitalshift/vitalshift-backend/pkg/enums"
	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeStintRepo struct {
	stints  map[uuid.UUID]*models.Stint
	payouts *fakePayoutService
}

func (f *fakeStintRepo) WithTx(tx *gorm.DB) stints.Repository { return f }

func (f *fakeStintRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Stint, error) {
	stint, ok := f.stints[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return stint, nil
}

func (f *fakeStintRepo) MarkCompleted(ctx context.Context, id uuid.UUID, completedAt, windowEnds time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStintRepo) MarkDisputed(ctx context.Context, id uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeStintRepo) FindSettleable(ctx context.Context, now time.Time, limit int) ([]models.Stint, error) {
	var out []models.Stint
	for _, stint := range f.stints {
		if stint.Status == enums.StintStatusCompleted &&
			!stint.IsReadyForSettlement &&
			stint.DisputeWindowEndsAt != nil &&
			!stint.DisputeWindowEndsAt.After(now) {
			out = append(out, *stint)
		}
	}
	return out, nil
}

func (f *fakeStintRepo) MarkReadyForSettlement(ctx context.Context, id uuid.UUID) (int64, error) {
	stint, ok := f.stints[id]
	if !ok || stint.Status != enums.StintStatusCompleted || stint.IsReadyForSettlement {
		return 0, nil
	}
	stint.IsReadyForSettlement = true
	return 1, nil
}

func (f *fakeStintRepo) FindReadyWithoutPayout(ctx context.Context, limit int) ([]models.Stint, error) {
	var out []models.Stint
	for _, stint := range f.stints {
		if stint.IsReadyForSettlement && stint.SettledAt == nil && stint.Status == enums.StintStatusCompleted {
			if _, exists := f.payouts.byStint[stint.ID]; !exists {
				out = append(out, *stint)
			}
		}
	}
	return out, nil
}

func (f *fakeStintRepo) MarkSettled(ctx context.Context, id uuid.UUID, settledAt time.Time) (int64, error) {
	stint, ok := f.stints[id]
	if !ok || stint.Status != enums.StintStatusCompleted {
		return 0, nil
	}
	stint.Status = enums.StintStatusSettled
	stint.SettledAt = &settledAt
	return 1, nil
}

type fakeIntentReader struct {
	byStint map[uuid.UUID]*models.PaymentIntent
}

func (f *fakeIntentReader) FindSucceededByStintID(ctx context.Context, stintID uuid.UUID) (*models.PaymentIntent, error) {
	intent, ok := f.byStint[stintID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return intent, nil
}

type fakePayoutService struct {
	byStint    map[uuid.UUID]*models.Payout
	scheduleFn func(input payouts.ScheduleInput) (*models.Payout, error)
}

func (f *fakePayoutService) ScheduleTx(ctx context.Context, tx *gorm.DB, input payouts.ScheduleInput) (*models.Payout, error) {
	if f.scheduleFn != nil {
		return f.scheduleFn(input)
	}
	if _, exists := f.byStint[input.Stint.ID]; exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout already exists for stint")
	}
	payout := &models.Payout{
		ID:             uuid.New(),
		StintID:        input.Stint.ID,
		NetAmountCents: input.Breakdown.NetPayoutCents,
		Status:         enums.PayoutStatusPending,
	}
	f.byStint[input.Stint.ID] = payout
	return payout, nil
}

func (f *fakePayoutService) GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePayoutService) GetByStintID(ctx context.Context, stintID uuid.UUID) (*models.Payout, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePayoutService) DispatchDue(ctx context.Context) (payouts.DispatchStats, error) {
	return payouts.DispatchStats{}, nil
}

func (f *fakePayoutService) ApplyTransferResult(ctx context.Context, result payouts.TransferResult) error {
	return nil
}

func (f *fakePayoutService) AdminFail(ctx context.Context, id uuid.UUID, reason string) error {
	return nil
}

type fakeInvoiceService struct {
	issued  []uuid.UUID
	issueFn func(input invoices.IssueInput) (*models.Invoice, error)
}

func (f *fakeInvoiceService) IssueTx(ctx context.Context, tx *gorm.DB, input invoices.IssueInput) (*models.Invoice, error) {
	if f.issueFn != nil {
		return f.issueFn(input)
	}
	f.issued = append(f.issued, input.Stint.ID)
	return &models.Invoice{StintID: input.Stint.ID}, nil
}

func (f *fakeInvoiceService) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeInvoiceService) ListByEmployer(ctx context.Context, employerID uuid.UUID, limit int) ([]models.Invoice, error) {
	return nil, nil
}

func (f *fakeInvoiceService) ListOverdue(ctx context.Context, limit int) ([]models.Invoice, error) {
	return nil, nil
}

func (f *fakeInvoiceService) MarkPaid(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return nil, gorm.ErrRecordNotFound
}

type fakeLedger struct {
	calls []ledger.RecordEntryInput
}

func (f *fakeLedger) Record(ctx context.Context, input ledger.RecordEntryInput) (*models.LedgerEntry, error) {
	f.calls = append(f.calls, input)
	return &models.LedgerEntry{}, nil
}

func (f *fakeLedger) RecordTx(ctx context.Context, tx *gorm.DB, input ledger.RecordEntryInput) (*models.LedgerEntry, error) {
	return f.Record(ctx, input)
}

func (f *fakeLedger) ListByStintID(ctx context.Context, stintID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeLedger) HasEntry(ctx context.Context, stintID uuid.UUID, entryType enums.LedgerEntryType) (bool, error) {
	return false, nil
}

type fixture struct {
	stints   *fakeStintRepo
	intents  *fakeIntentReader
	payouts  *fakePayoutService
	invoices *fakeInvoiceService
	ledger   *fakeLedger
	svc      Service
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		intents:  &fakeIntentReader{byStint: map[uuid.UUID]*models.PaymentIntent{}},
		payouts:  &fakePayoutService{byStint: map[uuid.UUID]*models.Payout{}},
		invoices: &fakeInvoiceService{},
		ledger:   &fakeLedger{},
		now:      time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
	}
	f.stints = &fakeStintRepo{stints: map[uuid.UUID]*models.Stint{}, payouts: f.payouts}

	svc, err := NewService(ServiceParams{
		DB:        &fakeTxRunner{},
		Stints:    f.stints,
		Intents:   f.intents,
		Payouts:   f.payouts,
		Invoices:  f.invoices,
		Ledger:    f.ledger,
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Schedule:  fees.CurrentSchedule(),
		BatchSize: 100,
		Now:       func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	f.svc = svc
	return f
}

// addEligibleStint creates a completed stint whose dispute window elapsed an
// hour ago, with a matching successful charge.
func (f *fixture) addEligibleStint(gross int64) *models.Stint {
	professionalID := uuid.New()
	windowEnds := f.now.Add(-time.Hour)
	stint := &models.Stint{
		ID:                  uuid.New(),
		EmployerID:          uuid.New(),
		ProfessionalID:      &professionalID,
		OfferedRateCents:    gross,
		Currency:            enums.CurrencyKES,
		PayoutMethod:        enums.PayoutMethodMpesa,
		Status:              enums.StintStatusCompleted,
		DisputeWindowEndsAt: &windowEnds,
	}
	f.stints.stints[stint.ID] = stint

	breakdown, _ := fees.Calculate(gross, false, fees.CurrentSchedule())
	f.intents.byStint[stint.ID] = &models.PaymentIntent{
		ID:          uuid.New(),
		StintID:     stint.ID,
		AmountCents: breakdown.TotalChargeCents,
		Status:      enums.PaymentIntentStatusSuccess,
	}
	return stint
}

func TestService_RunSettlesEligibleStints(t *testing.T) {
	f := newFixture(t)
	stint := f.addEligibleStint(5000)

	result, err := f.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.MarkedReady != 1 || result.Processed != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	payout, ok := f.payouts.byStint[stint.ID]
	if !ok {
		t.Fatal("payout not created")
	}
	if payout.NetAmountCents != 4693 {
		t.Fatalf("net amount: got %d want 4693", payout.NetAmountCents)
	}
	if len(f.invoices.issued) != 1 || f.invoices.issued[0] != stint.ID {
		t.Fatalf("invoice not issued: %v", f.invoices.issued)
	}
}

// Settlement itself owns the completed -> settled transition, in the same
// transaction that schedules the payout and issues the invoice.
func TestService_RunMarksStintSettled(t *testing.T) {
	f := newFixture(t)
	stint := f.addEligibleStint(5000)

	if _, err := f.svc.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if stint.Status != enums.StintStatusSettled {
		t.Fatalf("status: got %s want settled", stint.Status)
	}
	if stint.SettledAt == nil || !stint.SettledAt.Equal(f.now) {
		t.Fatalf("settled at: got %v want %v", stint.SettledAt, f.now)
	}
}

func TestService_RunTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.addEligibleStint(5000)

	if _, err := f.svc.Run(context.Background()); err != nil {
		t.Fatalf("first Run error: %v", err)
	}
	second, err := f.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if second.MarkedReady != 0 || second.Processed != 0 || second.Failed != 0 {
		t.Fatalf("second run should be a no-op: %+v", second)
	}
	if len(f.payouts.byStint) != 1 {
		t.Fatalf("expected one payout, got %d", len(f.payouts.byStint))
	}
	if len(f.invoices.issued) != 1 {
		t.Fatalf("expected one invoice, got %d", len(f.invoices.issued))
	}
}

func TestService_RunSkipsDisputeWindowStillOpen(t *testing.T) {
	f := newFixture(t)
	stint := f.addEligibleStint(5000)
	openWindow := f.now.Add(time.Hour)
	stint.DisputeWindowEndsAt = &openWindow

	result, err := f.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Scanned != 0 || result.Processed != 0 {
		t.Fatalf("open-window stint must not settle: %+v", result)
	}
}

func TestService_RunLostRaceIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.addEligibleStint(5000)
	f.payouts.scheduleFn = func(input payouts.ScheduleInput) (*models.Payout, error) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout already exists for stint")
	}

	result, err := f.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Failed != 0 {
		t.Fatalf("lost race must not count as failure: %+v", result)
	}
	if result.Processed != 0 {
		t.Fatalf("lost race must not count as processed: %+v", result)
	}
}

func TestService_RunIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	bad := f.addEligibleStint(5000)
	f.addEligibleStint(10000)

	f.invoices.issueFn = func(input invoices.IssueInput) (*models.Invoice, error) {
		if input.Stint.ID == bad.ID {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "sequence unavailable")
		}
		f.invoices.issued = append(f.invoices.issued, input.Stint.ID)
		return &models.Invoice{StintID: input.Stint.ID}, nil
	}

	result, err := f.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.Processed != 1 || result.Failed != 1 {
		t.Fatalf("one success and one failure expected: %+v", result)
	}
}

func TestService_RunFlagsFeeDivergence(t *testing.T) {
	f := newFixture(t)
	stint := f.addEligibleStint(5000)
	// Employer was charged far less than today's schedule would produce.
	f.intents.byStint[stint.ID].AmountCents = 4000

	if _, err := f.svc.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	found := false
	for _, call := range f.ledger.calls {
		if call.Type == enums.LedgerEntryTypeManualAdjustment && call.StintID == stint.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected manual_adjustment ledger flag, got %+v", f.ledger.calls)
	}

	// The payout still uses the settlement-time figure.
	if payout := f.payouts.byStint[stint.ID]; payout.NetAmountCents != 4693 {
		t.Fatalf("net amount: got %d want 4693", payout.NetAmountCents)
	}
}

func TestService_RunWithinToleranceNoFlag(t *testing.T) {
	f := newFixture(t)
	stint := f.addEligibleStint(5000)
	// 4% off, inside the tolerance.
	f.intents.byStint[stint.ID].AmountCents = 5530

	if _, err := f.svc.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	for _, call := range f.ledger.calls {
		if call.Type == enums.LedgerEntryTypeManualAdjustment {
			t.Fatalf("unexpected divergence flag: %+v", call)
		}
	}
}
