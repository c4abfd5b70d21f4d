package payouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitalshift/vitalshift-backend/internal/fees"
	"github.com/vitalshift/vitalshift-backend/internal/ledger"
	"github.com/vitalshift/vitalshift-backend/pkg/db"
	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
	"github.com/vitalshift/vitalshift-backend/pkg/enums"
	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
	"github.com/vitalshift/vitalshift-backend/pkg/gateway"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

// payoutStintKey is the unique index that makes payout creation at-most-once
// per stint.
const payoutStintKey = "payouts_stint_id_key"

// TransferGateway is the slice of the provider client this service needs.
type TransferGateway interface {
	Transfer(ctx context.Context, params gateway.TransferParams) (string, error)
	VerifyByReference(ctx context.Context, reference string) (*gateway.Verification, error)
}

// notifier emits best-effort payout lifecycle notifications. Optional.
type notifier interface {
	PayoutCompleted(ctx context.Context, stintID, professionalID uuid.UUID, netAmountCents int64)
	PayoutFailed(ctx context.Context, stintID, professionalID uuid.UUID, reason string)
}

// Service owns the professional payout lifecycle: scheduling at settlement,
// dispatching due payouts to the provider, and reconciling transfer results.
type Service interface {
	ScheduleTx(ctx context.Context, tx *gorm.DB, input ScheduleInput) (*models.Payout, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	GetByStintID(ctx context.Context, stintID uuid.UUID) (*models.Payout, error)
	DispatchDue(ctx context.Context) (DispatchStats, error)
	ApplyTransferResult(ctx context.Context, result TransferResult) error
	AdminFail(ctx context.Context, id uuid.UUID, reason string) error
}

// ScheduleInput creates a payout row for a settled stint.
type ScheduleInput struct {
	Stint       *models.Stint
	Breakdown   fees.Breakdown
	ScheduledAt time.Time
}

// TransferResult is a provider transfer outcome, from webhook or verify.
type TransferResult struct {
	Reference     string
	Success       bool
	TransactionID string
	FailureReason string
}

// DispatchStats summarizes one dispatch sweep.
type DispatchStats struct {
	Dispatched  int
	Rescheduled int
	Failed      int
}

// ServiceParams wires the dependencies a payout service needs.
type ServiceParams struct {
	Repo           Repository
	Ledger         ledger.Service
	Gateway        TransferGateway
	Logger         *logger.Logger
	Notifier       notifier
	MaxRetries     int
	BaseRetryDelay time.Duration
	BatchSize      int
	Now            func() time.Time
}

type service struct {
	repo           Repository
	ledger         ledger.Service
	gateway        TransferGateway
	log            *logger.Logger
	notifier       notifier
	maxRetries     int
	baseRetryDelay time.Duration
	batchSize      int
	now            func() time.Time
}

// NewService validates params and returns a payout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("transfer gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.MaxRetries <= 0 {
		params.MaxRetries = 3
	}
	if params.BaseRetryDelay <= 0 {
		params.BaseRetryDelay = 5 * time.Minute
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 100
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:           params.Repo,
		ledger:         params.Ledger,
		gateway:        params.Gateway,
		log:            params.Logger,
		notifier:       params.Notifier,
		maxRetries:     params.MaxRetries,
		baseRetryDelay: params.BaseRetryDelay,
		batchSize:      params.BatchSize,
		now:            params.Now,
	}, nil
}

// ScheduleTx inserts the payout row for a stint inside the caller's
// transaction. Two settlement runs racing the same stint both reach this
// insert; the loser gets a unique violation on stint_id and a conflict
// error it should treat as someone else's win.
func (s *service) ScheduleTx(ctx context.Context, tx *gorm.DB, input ScheduleInput) (*models.Payout, error) {
	if input.Stint == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stint is required")
	}
	if input.Stint.ProfessionalID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stint has no professional")
	}

	payout := &models.Payout{
		StintID:            input.Stint.ID,
		ProfessionalID:     *input.Stint.ProfessionalID,
		EmployerID:         input.Stint.EmployerID,
		GrossAmountCents:   input.Breakdown.GrossCents,
		PlatformFeePercent: input.Breakdown.ProfessionalFeePercent,
		PlatformFeeCents:   input.Breakdown.ProfessionalFeeCents,
		GatewayCostCents:   input.Breakdown.GatewayCostCents,
		NetAmountCents:     input.Breakdown.NetPayoutCents,
		Currency:           input.Stint.Currency,
		Method:             input.Stint.PayoutMethod,
		Status:             enums.PayoutStatusPending,
		ScheduledAt:        input.ScheduledAt,
		FeeScheduleVersion: input.Breakdown.ScheduleVersion,
	}

	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, payout); err != nil {
		if db.IsUniqueViolation(err, payoutStintKey) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payout already exists for stint").
				WithDetails(map[string]any{"stint_id": input.Stint.ID})
		}
		return nil, err
	}

	metadata, _ := json.Marshal(input.Breakdown)
	if _, err := s.ledger.RecordTx(ctx, tx, ledger.RecordEntryInput{
		StintID:     input.Stint.ID,
		Type:        enums.LedgerEntryTypePayoutScheduled,
		AmountCents: -payout.NetAmountCents,
		Currency:    payout.Currency,
		Reference:   payout.ID.String(),
		Metadata:    metadata,
	}); err != nil {
		return nil, err
	}

	return payout, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) GetByStintID(ctx context.Context, stintID uuid.UUID) (*models.Payout, error) {
	if stintID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stint id is required")
	}
	return s.repo.FindByStintID(ctx, stintID)
}

// DispatchDue sends every due pending payout to the provider. One payout
// failing never stops the sweep; stats report what happened.
func (s *service) DispatchDue(ctx context.Context) (DispatchStats, error) {
	var stats DispatchStats

	due, err := s.repo.FindDue(ctx, s.now().UTC(), s.batchSize)
	if err != nil {
		return stats, err
	}

	for _, payout := range due {
		outcome, err := s.dispatchOne(ctx, payout)
		if err != nil && outcome == outcomeFailed {
			s.log.Error(s.log.WithPayoutID(ctx, payout.ID.String()), "payout dispatch failed", err)
		}
		switch outcome {
		case outcomeDispatched:
			stats.Dispatched++
		case outcomeRescheduled:
			stats.Rescheduled++
		case outcomeFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

type dispatchOutcome int

const (
	outcomeSkipped dispatchOutcome = iota
	outcomeDispatched
	outcomeRescheduled
	outcomeFailed
)

func (s *service) dispatchOne(ctx context.Context, payout models.Payout) (dispatchOutcome, error) {
	ctx = s.log.WithPayoutID(s.log.WithStintID(ctx, payout.StintID.String()), payout.ID.String())

	claimed, err := s.repo.ClaimForProcessing(ctx, payout.ID)
	if err != nil {
		return outcomeFailed, err
	}
	if claimed == 0 {
		// Another worker claimed it first.
		return outcomeSkipped, nil
	}

	if _, err := s.ledger.Record(ctx, ledger.RecordEntryInput{
		StintID:     payout.StintID,
		Type:        enums.LedgerEntryTypePayoutAttempted,
		AmountCents: -payout.NetAmountCents,
		Currency:    payout.Currency,
		Reference:   payout.ID.String(),
	}); err != nil {
		s.log.Error(ctx, "record payout attempted ledger entry", err)
	}

	// The key is stable per attempt, so a timed-out transfer retried with
	// the same retry count cannot pay the professional twice.
	idempotencyKey := fmt.Sprintf("%s:%s:%d", payout.StintID, payout.ProfessionalID, payout.RetryCount)

	reference, err := s.gateway.Transfer(ctx, gateway.TransferParams{
		Recipient:      payout.ProfessionalID.String(),
		Method:         payout.Method.String(),
		AmountCents:    payout.NetAmountCents,
		Currency:       payout.Currency.String(),
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return s.handleAttemptFailure(ctx, payout, err)
	}

	if _, err := s.repo.SetExternalTransactionID(ctx, payout.ID, reference); err != nil {
		return outcomeFailed, err
	}
	s.log.Info(s.log.WithGatewayRef(ctx, reference), "payout transfer submitted")
	return outcomeDispatched, nil
}

// handleAttemptFailure reschedules with exponential backoff until the retry
// budget runs out, then parks the payout as failed for an operator.
func (s *service) handleAttemptFailure(ctx context.Context, payout models.Payout, cause error) (dispatchOutcome, error) {
	reason := cause.Error()
	if appErr := pkgerrors.As(cause); appErr != nil {
		reason = appErr.Message()
	}

	// RetryCount is how many reschedules already happened; the budget allows
	// maxRetries of them before the payout parks.
	if payout.RetryCount >= s.maxRetries {
		if _, err := s.repo.MarkFailed(ctx, payout.ID, reason); err != nil {
			return outcomeFailed, err
		}
		metadata, _ := json.Marshal(map[string]any{"retry_count": payout.RetryCount, "reason": reason})
		if _, err := s.ledger.Record(ctx, ledger.RecordEntryInput{
			StintID:     payout.StintID,
			Type:        enums.LedgerEntryTypePayoutFailed,
			AmountCents: -payout.NetAmountCents,
			Currency:    payout.Currency,
			Reference:   payout.ID.String(),
			Metadata:    metadata,
		}); err != nil {
			s.log.Error(ctx, "record payout failed ledger entry", err)
		}
		s.log.Error(ctx, "payout failed after exhausting retries", cause)
		if s.notifier != nil {
			s.notifier.PayoutFailed(ctx, payout.StintID, payout.ProfessionalID, reason)
		}
		return outcomeFailed, nil
	}

	// 5m, 15m, 45m for the default base delay.
	delay := s.baseRetryDelay
	for i := 0; i < payout.RetryCount; i++ {
		delay *= 3
	}
	nextAttempt := s.now().UTC().Add(delay)

	if _, err := s.repo.RescheduleForRetry(ctx, payout.ID, reason, payout.RetryCount+1, nextAttempt); err != nil {
		return outcomeFailed, err
	}
	s.log.Warn(s.log.WithField(ctx, "next_attempt_at", nextAttempt), "payout rescheduled after provider failure")
	return outcomeRescheduled, nil
}

// ApplyTransferResult reconciles a provider transfer outcome. Failure goes
// through the same retry ladder as a dispatch-time error. Replays of
// terminal payouts are no-ops.
func (s *service) ApplyTransferResult(ctx context.Context, result TransferResult) error {
	if result.Reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfer reference is required")
	}

	payout, err := s.repo.FindByExternalTransactionID(ctx, result.Reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no payout for transfer reference").
				WithDetails(map[string]any{"reference": result.Reference})
		}
		return err
	}

	ctx = s.log.WithGatewayRef(s.log.WithPayoutID(ctx, payout.ID.String()), result.Reference)

	if payout.Status == enums.PayoutStatusCompleted || payout.Status == enums.PayoutStatusFailed {
		s.log.Info(ctx, "transfer result for terminal payout ignored")
		return nil
	}

	if result.Success {
		won, err := s.repo.MarkCompleted(ctx, payout.ID)
		if err != nil {
			return err
		}
		if won == 0 {
			s.log.Info(ctx, "lost payout completion race, no-op")
			return nil
		}

		metadata, _ := json.Marshal(map[string]any{"transaction_id": result.TransactionID})
		if _, err := s.ledger.Record(ctx, ledger.RecordEntryInput{
			StintID:     payout.StintID,
			Type:        enums.LedgerEntryTypePayoutCompleted,
			AmountCents: -payout.NetAmountCents,
			Currency:    payout.Currency,
			Reference:   result.Reference,
			Metadata:    metadata,
		}); err != nil {
			s.log.Error(ctx, "record payout completed ledger entry", err)
		}

		if s.notifier != nil {
			s.notifier.PayoutCompleted(ctx, payout.StintID, payout.ProfessionalID, payout.NetAmountCents)
		}
		return nil
	}

	reason := result.FailureReason
	if reason == "" {
		reason = "transfer failed"
	}
	_, err = s.handleAttemptFailure(ctx, *payout, pkgerrors.New(pkgerrors.CodeGateway, reason))
	return err
}

// AdminFail lets an operator park a payout that keeps bouncing, for example
// when the recipient's account is closed.
func (s *service) AdminFail(ctx context.Context, id uuid.UUID, reason string) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	if reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	payout, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	affected, err := s.repo.MarkFailed(ctx, id, reason)
	if err != nil {
		return err
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payout is already terminal")
	}

	metadata, _ := json.Marshal(map[string]any{"reason": reason, "actor": "admin"})
	if _, err := s.ledger.Record(ctx, ledger.RecordEntryInput{
		StintID:     payout.StintID,
		Type:        enums.LedgerEntryTypePayoutFailed,
		AmountCents: -payout.NetAmountCents,
		Currency:    payout.Currency,
		Reference:   payout.ID.String(),
		Metadata:    metadata,
	}); err != nil {
		s.log.Error(ctx, "record payout failed ledger entry", err)
	}
	return nil
}
