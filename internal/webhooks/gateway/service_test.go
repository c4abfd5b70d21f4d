package gatewaywebhook

import (
	"context"
	"testing"

	"github.com/vitalshift/vitalshift-backend/internal/paymentintents"
	"github.com/vitalshift/vitalshift-backend/internal/payouts"
	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

type fakeIntents struct {
	results []paymentintents.GatewayResult
	err     error
}

func (f *fakeIntents) ApplyGatewayResult(ctx context.Context, result paymentintents.GatewayResult) error {
	f.results = append(f.results, result)
	return f.err
}

type fakePayouts struct {
	results []payouts.TransferResult
	err     error
}

func (f *fakePayouts) ApplyTransferResult(ctx context.Context, result payouts.TransferResult) error {
	f.results = append(f.results, result)
	return f.err
}

func newTestService(t *testing.T, intents *fakeIntents, transfers *fakePayouts) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Intents: intents,
		Payouts: transfers,
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return svc
}

func TestService_HandleEventChargeCompleted(t *testing.T) {
	intents := &fakeIntents{}
	svc := newTestService(t, intents, &fakePayouts{})

	err := svc.HandleEvent(context.Background(), &Event{
		EventID:       "evt_1",
		Type:          "charge.completed",
		Reference:     "REF-1",
		TransactionID: "TX-1",
	})
	if err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}
	if len(intents.results) != 1 {
		t.Fatalf("expected one intent reconciliation, got %d", len(intents.results))
	}
	got := intents.results[0]
	if !got.Success || got.Reference != "REF-1" || got.TransactionID != "TX-1" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestService_HandleEventChargeFailed(t *testing.T) {
	intents := &fakeIntents{}
	svc := newTestService(t, intents, &fakePayouts{})

	err := svc.HandleEvent(context.Background(), &Event{
		EventID:       "evt_2",
		Type:          "charge.failed",
		Reference:     "REF-2",
		FailureReason: "card declined",
	})
	if err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}
	got := intents.results[0]
	if got.Success || got.FailureReason != "card declined" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestService_HandleEventTransferCompleted(t *testing.T) {
	transfers := &fakePayouts{}
	svc := newTestService(t, &fakeIntents{}, transfers)

	err := svc.HandleEvent(context.Background(), &Event{
		EventID:       "evt_3",
		Type:          "transfer.completed",
		Reference:     "TRF-1",
		TransactionID: "TX-3",
	})
	if err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}
	if len(transfers.results) != 1 || !transfers.results[0].Success {
		t.Fatalf("unexpected results: %+v", transfers.results)
	}
}

func TestService_HandleEventTransferFailed(t *testing.T) {
	transfers := &fakePayouts{}
	svc := newTestService(t, &fakeIntents{}, transfers)

	err := svc.HandleEvent(context.Background(), &Event{
		EventID:       "evt_4",
		Type:          "transfer.failed",
		Reference:     "TRF-2",
		FailureReason: "recipient unreachable",
	})
	if err != nil {
		t.Fatalf("HandleEvent error: %v", err)
	}
	if transfers.results[0].Success || transfers.results[0].FailureReason != "recipient unreachable" {
		t.Fatalf("unexpected results: %+v", transfers.results)
	}
}

func TestService_HandleEventUnknownTypeIgnored(t *testing.T) {
	intents := &fakeIntents{}
	transfers := &fakePayouts{}
	svc := newTestService(t, intents, transfers)

	err := svc.HandleEvent(context.Background(), &Event{
		EventID:   "evt_5",
		Type:      "charge.refunded",
		Reference: "REF-5",
	})
	if err != nil {
		t.Fatalf("unknown types must be acknowledged: %v", err)
	}
	if len(intents.results) != 0 || len(transfers.results) != 0 {
		t.Fatal("unknown type must not be routed")
	}
}

func TestService_HandleEventUnknownReferenceAcknowledged(t *testing.T) {
	intents := &fakeIntents{err: pkgerrors.New(pkgerrors.CodeNotFound, "no payment intent for reference")}
	transfers := &fakePayouts{err: pkgerrors.New(pkgerrors.CodeNotFound, "no payout for transfer reference")}
	svc := newTestService(t, intents, transfers)

	err := svc.HandleEvent(context.Background(), &Event{
		EventID:   "evt_8",
		Type:      "charge.completed",
		Reference: "REF-GONE",
	})
	if err != nil {
		t.Fatalf("unknown charge reference must be acknowledged: %v", err)
	}

	err = svc.HandleEvent(context.Background(), &Event{
		EventID:   "evt_9",
		Type:      "transfer.completed",
		Reference: "TRF-GONE",
	})
	if err != nil {
		t.Fatalf("unknown transfer reference must be acknowledged: %v", err)
	}
}

func TestService_HandleEventReconcilerErrorPropagates(t *testing.T) {
	intents := &fakeIntents{err: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")}
	svc := newTestService(t, intents, &fakePayouts{})

	err := svc.HandleEvent(context.Background(), &Event{
		EventID:   "evt_10",
		Type:      "charge.completed",
		Reference: "REF-10",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("transient errors must propagate for redelivery, got %v", err)
	}
}

func TestService_HandleEventValidation(t *testing.T) {
	svc := newTestService(t, &fakeIntents{}, &fakePayouts{})

	if err := svc.HandleEvent(context.Background(), nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil event, got %v", err)
	}
	err := svc.HandleEvent(context.Background(), &Event{EventID: "evt_6", Type: "charge.completed"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing reference, got %v", err)
	}
}

func TestEvent_ID(t *testing.T) {
	if got := (&Event{EventID: " evt_7 "}).ID(); got != "evt_7" {
		t.Fatalf("got %q", got)
	}
	if got := (&Event{Reference: "REF-7"}).ID(); got != "REF-7" {
		t.Fatalf("fallback to reference: got %q", got)
	}
}
