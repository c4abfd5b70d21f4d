package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

const publishTimeout = 10 * time.Second

// Event types emitted on the notification topic. Downstream consumers fan
// these out to SMS and email.
const (
	EventPaymentFailed   = "payment.failed"
	EventPayoutCompleted = "payout.completed"
	EventPayoutFailed    = "payout.failed"
	EventInvoiceOverdue  = "invoice.overdue"
)

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
}

// Service publishes settlement lifecycle events for the notification
// pipeline. Publishing is best effort: money movement never blocks on it,
// failures are logged and dropped.
type Service interface {
	PaymentFailed(ctx context.Context, stintID, employerID uuid.UUID, reason string)
	PayoutCompleted(ctx context.Context, stintID, professionalID uuid.UUID, netAmountCents int64)
	PayoutFailed(ctx context.Context, stintID, professionalID uuid.UUID, reason string)
	InvoiceOverdue(ctx context.Context, employerID uuid.UUID, invoiceNumber string, amountCents int64)
}

type service struct {
	pub  publisher
	logg *logger.Logger
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}

// NewService wraps a topic publisher in the notification service.
func NewService(pub *pubsub.Publisher, logg *logger.Logger) (Service, error) {
	if pub == nil {
		return nil, fmt.Errorf("notification publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{pub: &gcpPublisher{pub}, logg: logg}, nil
}

func newServiceWithPublisher(pub publisher, logg *logger.Logger) Service {
	return &service{pub: pub, logg: logg}
}

func (s *service) PaymentFailed(ctx context.Context, stintID, employerID uuid.UUID, reason string) {
	s.emit(ctx, EventPaymentFailed, map[string]any{
		"stint_id":    stintID,
		"employer_id": employerID,
		"reason":      reason,
	})
}

func (s *service) PayoutCompleted(ctx context.Context, stintID, professionalID uuid.UUID, netAmountCents int64) {
	s.emit(ctx, EventPayoutCompleted, map[string]any{
		"stint_id":         stintID,
		"professional_id":  professionalID,
		"net_amount_cents": netAmountCents,
	})
}

func (s *service) PayoutFailed(ctx context.Context, stintID, professionalID uuid.UUID, reason string) {
	s.emit(ctx, EventPayoutFailed, map[string]any{
		"stint_id":        stintID,
		"professional_id": professionalID,
		"reason":          reason,
	})
}

func (s *service) InvoiceOverdue(ctx context.Context, employerID uuid.UUID, invoiceNumber string, amountCents int64) {
	s.emit(ctx, EventInvoiceOverdue, map[string]any{
		"employer_id":    employerID,
		"invoice_number": invoiceNumber,
		"amount_cents":   amountCents,
	})
}

func (s *service) emit(ctx context.Context, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logg.Error(ctx, "encode notification payload", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	result := s.pub.Publish(publishCtx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":   uuid.NewString(),
			"event_type": eventType,
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
	if result == nil {
		return
	}
	if _, err := result.Get(publishCtx); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "event_type", eventType), "publish notification", err)
	}
}
