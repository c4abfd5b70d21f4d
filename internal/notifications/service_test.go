package notifications

import (
	"context"
	"encoding/json"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

type fakeResult struct {
	err error
}

func (f *fakeResult) Get(ctx context.Context) (string, error) {
	return "msg-1", f.err
}

type fakePublisher struct {
	messages []*pubsub.Message
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	return &fakeResult{err: f.err}
}

func TestService_PayoutCompleted(t *testing.T) {
	pub := &fakePublisher{}
	svc := newServiceWithPublisher(pub, logger.New(logger.Options{ServiceName: "test"}))

	stintID := uuid.New()
	professionalID := uuid.New()
	svc.PayoutCompleted(context.Background(), stintID, professionalID, 4693)

	if len(pub.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Attributes["event_type"] != EventPayoutCompleted {
		t.Fatalf("event type: got %q", msg.Attributes["event_type"])
	}
	if msg.Attributes["event_id"] == "" {
		t.Fatal("event id missing")
	}

	var payload map[string]any
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["stint_id"] != stintID.String() {
		t.Fatalf("stint id: got %v", payload["stint_id"])
	}
	if payload["net_amount_cents"] != float64(4693) {
		t.Fatalf("net amount: got %v", payload["net_amount_cents"])
	}
}

func TestService_PublishFailureDoesNotPanic(t *testing.T) {
	pub := &fakePublisher{err: context.DeadlineExceeded}
	svc := newServiceWithPublisher(pub, logger.New(logger.Options{ServiceName: "test"}))

	// Best effort: errors are swallowed after logging.
	svc.PaymentFailed(context.Background(), uuid.New(), uuid.New(), "card declined")
	if len(pub.messages) != 1 {
		t.Fatalf("expected publish attempt, got %d", len(pub.messages))
	}
}
