package gatewaywebhook

import (
	"context"
	"strings"
	"time"

	"github.com/vitalshift/vitalshift-backend/internal/paymentintents"
	"github.com/vitalshift/vitalshift-backend/internal/payouts"
	"github.com/vitalshift/vitalshift-backend/pkg/enums"
	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

// Event is the provider's webhook payload. Reference ties the event back to
// the charge or transfer we created.
type Event struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	Reference     string    `json:"reference"`
	TransactionID string    `json:"transaction_id"`
	FailureReason string    `json:"failure_reason"`
	AmountCents   int64     `json:"amount_cents"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ID returns the identifier the idempotency guard keys on.
func (e *Event) ID() string {
	if id := strings.TrimSpace(e.EventID); id != "" {
		return id
	}
	return strings.TrimSpace(e.Reference)
}

type intentReconciler interface {
	ApplyGatewayResult(ctx context.Context, result paymentintents.GatewayResult) error
}

type payoutReconciler interface {
	ApplyTransferResult(ctx context.Context, result payouts.TransferResult) error
}

// ServiceParams wire the reconciler's dependencies.
type ServiceParams struct {
	Intents intentReconciler
	Payouts payoutReconciler
	Logger  *logger.Logger
}

// Service routes provider events to the charge or transfer they belong to.
type Service struct {
	intents intentReconciler
	payouts payoutReconciler
	log     *logger.Logger
}

// NewService validates params and returns the webhook reconciler.
func NewService(params ServiceParams) (*Service, error) {
	if params.Intents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "intent reconciler required")
	}
	if params.Payouts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payout reconciler required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		intents: params.Intents,
		payouts: params.Payouts,
		log:     params.Logger,
	}, nil
}

// HandleEvent applies one provider event. Event types outside the known set
// and references that match nothing we created are acknowledged and dropped
// so the provider stops redelivering them.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event is required")
	}
	if event.Reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event reference is required")
	}

	eventType, err := enums.ParseGatewayEventType(event.Type)
	if err != nil {
		s.log.Warn(s.log.WithField(ctx, "event_type", event.Type), "unknown gateway event type ignored")
		return nil
	}

	ctx = s.log.WithGatewayRef(ctx, event.Reference)

	switch eventType {
	case enums.GatewayEventChargeCompleted:
		err = s.intents.ApplyGatewayResult(ctx, paymentintents.GatewayResult{
			Reference:     event.Reference,
			Success:       true,
			TransactionID: event.TransactionID,
		})
	case enums.GatewayEventChargeFailed:
		err = s.intents.ApplyGatewayResult(ctx, paymentintents.GatewayResult{
			Reference:     event.Reference,
			FailureReason: event.FailureReason,
		})
	case enums.GatewayEventTransferCompleted:
		err = s.payouts.ApplyTransferResult(ctx, payouts.TransferResult{
			Reference:     event.Reference,
			Success:       true,
			TransactionID: event.TransactionID,
		})
	case enums.GatewayEventTransferFailed:
		err = s.payouts.ApplyTransferResult(ctx, payouts.TransferResult{
			Reference:     event.Reference,
			FailureReason: event.FailureReason,
		})
	}

	// A reference we have no row for will never match, no matter how many
	// times the provider redelivers. Acknowledge it instead of erroring.
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		s.log.Warn(ctx, "event references no known charge or transfer, acknowledged")
		return nil
	}
	return err
}
