package cron

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

type fakeOverdueLister struct {
	invoices []models.Invoice
	err      error
}

func (f *fakeOverdueLister) ListOverdue(ctx context.Context, limit int) ([]models.Invoice, error) {
	return f.invoices, f.err
}

type fakeOverdueNotifier struct {
	numbers []string
}

func (f *fakeOverdueNotifier) InvoiceOverdue(ctx context.Context, employerID uuid.UUID, invoiceNumber string, amountCents int64) {
	f.numbers = append(f.numbers, invoiceNumber)
}

type fakeReminderStore struct {
	marked map[string]bool
	err    error
}

func (f *fakeReminderStore) Get(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (f *fakeReminderStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.marked == nil {
		f.marked = map[string]bool{}
	}
	if f.marked[key] {
		return false, nil
	}
	f.marked[key] = true
	return true, nil
}

func (f *fakeReminderStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("test:idemp:%s:%s", scope, id)
}

func (f *fakeReminderStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.marked, key)
	}
	return nil
}

func newInvoiceOverdueJob(t *testing.T, lister *fakeOverdueLister, notifier *fakeOverdueNotifier, store *fakeReminderStore) Job {
	t.Helper()
	job, err := NewInvoiceOverdueJob(InvoiceOverdueJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Invoices: lister,
		Notifier: notifier,
		Store:    store,
	})
	if err != nil {
		t.Fatalf("NewInvoiceOverdueJob: %v", err)
	}
	return job
}

func TestInvoiceOverdueJobNotifiesOncePerWindow(t *testing.T) {
	lister := &fakeOverdueLister{invoices: []models.Invoice{
		{ID: uuid.New(), EmployerID: uuid.New(), InvoiceNumber: "INV-2026-00000001", AmountCents: 750},
		{ID: uuid.New(), EmployerID: uuid.New(), InvoiceNumber: "INV-2026-00000002", AmountCents: 1000},
	}}
	notifier := &fakeOverdueNotifier{}
	job := newInvoiceOverdueJob(t, lister, notifier, &fakeReminderStore{})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.numbers) != 2 {
		t.Fatalf("expected two reminders, got %d", len(notifier.numbers))
	}

	// A second sweep inside the backoff window stays quiet.
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(notifier.numbers) != 2 {
		t.Fatalf("reminder repeated within backoff window: %v", notifier.numbers)
	}
}

func TestInvoiceOverdueJobPropagatesErrors(t *testing.T) {
	job := newInvoiceOverdueJob(t, &fakeOverdueLister{err: errors.New("boom")}, &fakeOverdueNotifier{}, &fakeReminderStore{})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	lister := &fakeOverdueLister{invoices: []models.Invoice{{ID: uuid.New(), InvoiceNumber: "INV-2026-00000003"}}}
	job = newInvoiceOverdueJob(t, lister, &fakeOverdueNotifier{}, &fakeReminderStore{err: errors.New("redis down")})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when marking fails")
	}
}
