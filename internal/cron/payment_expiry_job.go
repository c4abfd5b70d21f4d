package cron

import (
	"context"
	"fmt"

	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

type staleIntentExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// PaymentExpiryJobParams configure the stale payment intent sweep.
type PaymentExpiryJobParams struct {
	Logger  *logger.Logger
	Intents staleIntentExpirer
}

// NewPaymentExpiryJob builds the job that moves overdue payment intents to
// their expired state.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Intents == nil {
		return nil, fmt.Errorf("payment intent service required")
	}
	return &paymentExpiryJob{
		logg:    params.Logger,
		intents: params.Intents,
	}, nil
}

type paymentExpiryJob struct {
	logg    *logger.Logger
	intents staleIntentExpirer
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	expired, err := j.intents.ExpireStale(ctx)
	if err != nil {
		return fmt.Errorf("expire stale payment intents: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"expired": expired})
	j.logg.Info(logCtx, "payment expiry sweep complete")
	return nil
}
