package cron

import (
	"context"
	"fmt"

	"github.com/vitalshift/vitalshift-backend/internal/settlement"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

type settlementRunner interface {
	Run(ctx context.Context) (settlement.Result, error)
}

// SettlementJobParams configure the settlement orchestration job.
type SettlementJobParams struct {
	Logger     *logger.Logger
	Settlement settlementRunner
}

// NewSettlementJob builds the job that settles stints whose dispute window
// has elapsed.
func NewSettlementJob(params SettlementJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	return &settlementJob{
		logg:       params.Logger,
		settlement: params.Settlement,
	}, nil
}

type settlementJob struct {
	logg       *logger.Logger
	settlement settlementRunner
}

func (j *settlementJob) Name() string { return "settlement" }

func (j *settlementJob) Run(ctx context.Context) error {
	result, err := j.settlement.Run(ctx)
	if err != nil {
		return fmt.Errorf("settlement run: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":      result.Scanned,
		"marked_ready": result.MarkedReady,
		"processed":    result.Processed,
		"failed":       result.Failed,
	})
	j.logg.Info(logCtx, "settlement run complete")
	if result.Failed > 0 {
		return fmt.Errorf("settlement run left %d stints unsettled", result.Failed)
	}
	return nil
}
