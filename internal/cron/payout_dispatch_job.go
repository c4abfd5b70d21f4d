package cron

import (
	"context"
	"fmt"

	"github.com/vitalshift/vitalshift-backend/internal/payouts"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

type payoutDispatcher interface {
	DispatchDue(ctx context.Context) (payouts.DispatchStats, error)
}

// PayoutDispatchJobParams configure the payout dispatch job.
type PayoutDispatchJobParams struct {
	Logger  *logger.Logger
	Payouts payoutDispatcher
}

// NewPayoutDispatchJob builds the job that pushes due payouts to the payment
// gateway, including retries whose backoff has elapsed.
func NewPayoutDispatchJob(params PayoutDispatchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	return &payoutDispatchJob{
		logg:    params.Logger,
		payouts: params.Payouts,
	}, nil
}

type payoutDispatchJob struct {
	logg    *logger.Logger
	payouts payoutDispatcher
}

func (j *payoutDispatchJob) Name() string { return "payout-dispatch" }

func (j *payoutDispatchJob) Run(ctx context.Context) error {
	stats, err := j.payouts.DispatchDue(ctx)
	if err != nil {
		return fmt.Errorf("dispatch due payouts: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"dispatched":  stats.Dispatched,
		"rescheduled": stats.Rescheduled,
		"failed":      stats.Failed,
	})
	j.logg.Info(logCtx, "payout dispatch complete")
	return nil
}
