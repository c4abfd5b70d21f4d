package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

// feeDivergenceTolerance is how far the settlement-time total charge may
// drift from what the employer was actually charged before finance gets a
// ledger flag. Expressed as a fraction of the charged amount.
const feeDivergenceTolerance = 0.10

// txRunner runs a function inside a database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// intentReader finds the successful employer charge for a stint.
type intentReader interface {
	FindSucceededByStintID(ctx context.Context, stintID uuid.UUID) (*models.PaymentIntent, error)
}

// Result summarizes one settlement run.
type Result struct {
	Scanned     int `json:"scanned"`
	MarkedReady int `json:"marked_ready"`
	Processed   int `json:"processed"`
	Failed      int `json:"failed"`
}

// Service is the settlement orchestrator. Each run does two passes: flag
// stints whose dispute window has elapsed, then turn every flagged stint
// into a payout plus an invoice and mark it settled, one transaction per
// stint.
type Service interface {
	Run(ctx context.Context) (Result, error)
}

// ServiceParams wires the dependencies the orchestrator needs.
type ServiceParams struct {
	DB        txRunner
	Stints    stints.Repository
	Intents   intentReader
	Payouts   payouts.Service
	Invoices  invoices.Service
	Ledger    ledger.Service
	Logger    *logger.Logger
	Schedule  fees.Schedule
	BatchSize int
	Now       func() time.Time
}

type service struct {
	db        txRunner
	stints    stints.Repository
	intents   intentReader
	payouts   payouts.Service
	invoices  invoices.Service
	ledger    ledger.Service
	log       *logger.Logger
	schedule  fees.Schedule
	batchSize int
	now       func() time.Time
}

// NewService validates params and returns the orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Stints == nil {
		return nil, fmt.Errorf("stint repository required")
	}
	if params.Intents == nil {
		return nil, fmt.Errorf("intent reader required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := params.Schedule.Validate(); err != nil {
		return nil, fmt.Errorf("fee schedule: %w", err)
	}
	if params.BatchSize <= 0 {
		params.BatchSize = 100
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		db:        params.DB,
		stints:    params.Stints,
		intents:   params.Intents,
		payouts:   params.Payouts,
		invoices:  params.Invoices,
		ledger:    params.Ledger,
		log:       params.Logger,
		schedule:  params.Schedule,
		batchSize: params.BatchSize,
		now:       params.Now,
	}, nil
}

func (s *service) Run(ctx context.Context) (Result, error) {
	var result Result

	if err := s.flagEligible(ctx, &result); err != nil {
		return result, err
	}
	if err := s.settleFlagged(ctx, &result); err != nil {
		return result, err
	}

	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"scanned":      result.Scanned,
		"marked_ready": result.MarkedReady,
		"processed":    result.Processed,
		"failed":       result.Failed,
	}), "settlement run complete")

	return result, nil
}

// flagEligible is pass one: find completed stints with a successful charge
// whose dispute window has elapsed and flag them. The flag is a CAS, so two
// runs scanning the same stint flag it once.
func (s *service) flagEligible(ctx context.Context, result *Result) error {
	eligible, err := s.stints.FindSettleable(ctx, s.now().UTC(), s.batchSize)
	if err != nil {
		return fmt.Errorf("scan settleable stints: %w", err)
	}
	result.Scanned = len(eligible)

	for _, stint := range eligible {
		affected, err := s.stints.MarkReadyForSettlement(ctx, stint.ID)
		if err != nil {
			return fmt.Errorf("flag stint %s: %w", stint.ID, err)
		}
		if affected > 0 {
			result.MarkedReady++
		}
	}
	return nil
}

// settleFlagged is pass two. Each stint settles in its own transaction so
// one bad stint cannot poison the batch; a unique violation on the payout
// insert means a concurrent run already settled it and is not a failure.
func (s *service) settleFlagged(ctx context.Context, result *Result) error {
	ready, err := s.stints.FindReadyWithoutPayout(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("scan flagged stints: %w", err)
	}

	for _, stint := range ready {
		if err := s.settleOne(ctx, stint); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
				continue
			}
			result.Failed++
			s.log.Error(s.log.WithStintID(ctx, stint.ID.String()), "settle stint", err)
			continue
		}
		result.Processed++
	}
	return nil
}

func (s *service) settleOne(ctx context.Context, stint models.Stint) error {
	breakdown, err := fees.Calculate(stint.OfferedRateCents, stint.Urgent, s.schedule)
	if err != nil {
		return err
	}

	s.checkFeeDivergence(ctx, stint, breakdown)

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.payouts.ScheduleTx(ctx, tx, payouts.ScheduleInput{
			Stint:       &stint,
			Breakdown:   breakdown,
			ScheduledAt: s.now().UTC(),
		}); err != nil {
			return err
		}

		if _, err := s.invoices.IssueTx(ctx, tx, invoices.IssueInput{
			Stint:     &stint,
			Breakdown: breakdown,
		}); err != nil {
			return err
		}

		affected, err := s.stints.WithTx(tx).MarkSettled(ctx, stint.ID, s.now().UTC())
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "stint no longer settleable").
				WithDetails(map[string]any{"stint_id": stint.ID})
		}
		return nil
	})
}

// checkFeeDivergence compares what settlement computed against what the
// employer was charged at acceptance. The settlement-time figure is the one
// that pays out; a large gap gets a ledger flag so finance can reconcile.
func (s *service) checkFeeDivergence(ctx context.Context, stint models.Stint, breakdown fees.Breakdown) {
	intent, err := s.intents.FindSucceededByStintID(ctx, stint.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Error(ctx, "look up charge for divergence check", err)
		}
		return
	}

	charged := intent.AmountCents
	if charged <= 0 {
		return
	}
	diff := breakdown.TotalChargeCents - charged
	if diff < 0 {
		diff = -diff
	}
	if float64(diff) <= float64(charged)*feeDivergenceTolerance {
		return
	}

	logCtx := s.log.WithFields(s.log.WithStintID(ctx, stint.ID.String()), map[string]any{
		"charged_cents":    charged,
		"recomputed_cents": breakdown.TotalChargeCents,
	})
	s.log.Warn(logCtx, "fee schedule diverged since charge, flagging for finance")

	metadata, _ := json.Marshal(map[string]any{
		"charged_cents":    charged,
		"recomputed_cents": breakdown.TotalChargeCents,
		"schedule_version": breakdown.ScheduleVersion,
	})
	if _, err := s.ledger.Record(ctx, ledger.RecordEntryInput{
		StintID:     stint.ID,
		Type:        enums.LedgerEntryTypeManualAdjustment,
		AmountCents: diff,
		Currency:    stint.Currency,
		Reference:   intent.ID.String(),
		Metadata:    metadata,
	}); err != nil {
		s.log.Error(ctx, "record divergence ledger entry", err)
	}
}
