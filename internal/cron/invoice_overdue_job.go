package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
	"github.com/vitalshift/vitalshift-backend/pkg/redis"
)

const (
	overdueBatchSize       = 200
	overdueReminderScope   = "invoice-overdue"
	defaultReminderBackoff = 24 * time.Hour
)

type overdueInvoiceLister interface {
	ListOverdue(ctx context.Context, limit int) ([]models.Invoice, error)
}

type overdueNotifier interface {
	InvoiceOverdue(ctx context.Context, employerID uuid.UUID, invoiceNumber string, amountCents int64)
}

// InvoiceOverdueJobParams configure the overdue invoice reminder job.
type InvoiceOverdueJobParams struct {
	Logger   *logger.Logger
	Invoices overdueInvoiceLister
	Notifier overdueNotifier
	Store    redis.IdempotencyStore
	Backoff  time.Duration
}

// NewInvoiceOverdueJob builds the job that reminds employers about unpaid
// invoices past their due date. Redis keeps each reminder from repeating
// within the backoff window.
func NewInvoiceOverdueJob(params InvoiceOverdueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	backoff := params.Backoff
	if backoff <= 0 {
		backoff = defaultReminderBackoff
	}
	return &invoiceOverdueJob{
		logg:     params.Logger,
		invoices: params.Invoices,
		notifier: params.Notifier,
		store:    params.Store,
		backoff:  backoff,
	}, nil
}

type invoiceOverdueJob struct {
	logg     *logger.Logger
	invoices overdueInvoiceLister
	notifier overdueNotifier
	store    redis.IdempotencyStore
	backoff  time.Duration
}

func (j *invoiceOverdueJob) Name() string { return "invoice-overdue" }

func (j *invoiceOverdueJob) Run(ctx context.Context) error {
	invoices, err := j.invoices.ListOverdue(ctx, overdueBatchSize)
	if err != nil {
		return fmt.Errorf("list overdue invoices: %w", err)
	}
	notified := 0
	var sweepErr error
	for _, invoice := range invoices {
		key := j.store.IdempotencyKey(overdueReminderScope, invoice.ID.String())
		fresh, err := j.store.SetNX(ctx, key, "1", j.backoff)
		if err != nil {
			// One bad mark should not starve the rest of the batch.
			sweepErr = multierr.Append(sweepErr, fmt.Errorf("mark reminder for invoice %s: %w", invoice.ID, err))
			continue
		}
		if !fresh {
			continue
		}
		j.notifier.InvoiceOverdue(ctx, invoice.EmployerID, invoice.InvoiceNumber, invoice.AmountCents)
		notified++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"overdue":  len(invoices),
		"notified": notified,
	})
	j.logg.Info(logCtx, "invoice overdue sweep complete")
	return sweepErr
}
