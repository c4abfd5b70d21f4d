package paymentintents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitalshift/vitalshift-backend/internal/fees"
	"github.com/vitalshift/vitalshift-backend/internal/ledger"
	"github.com/vitalshift/vitalshift-backend/pkg/db"
	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
	"github.com/vitalshift/vitalshift-backend/pkg/enums"
	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
	"github.com/vitalshift/vitalshift-backend/pkg/gateway"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

// activeIntentKey is the partial unique index guarding one live intent per
// (stint, application) pair.
const activeIntentKey = "payment_intents_active_stint_application_key"

// PaymentGateway is the slice of the provider client this service needs.
type PaymentGateway interface {
	PushPayment(ctx context.Context, params gateway.PushPaymentParams) (string, error)
	CardCheckout(ctx context.Context, params gateway.CardCheckoutParams) (*gateway.CheckoutLink, error)
	VerifyByReference(ctx context.Context, reference string) (*gateway.Verification, error)
}

// notifier emits best-effort payment lifecycle notifications. Optional.
type notifier interface {
	PaymentFailed(ctx context.Context, stintID, employerID uuid.UUID, reason string)
}

// Service owns the employer charge lifecycle from acceptance to a terminal
// payment state.
type Service interface {
	Create(ctx context.Context, input CreateIntentInput) (*models.PaymentIntent, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	InitiateMpesa(ctx context.Context, id uuid.UUID, phone string) (*models.PaymentIntent, error)
	InitiateCard(ctx context.Context, id uuid.UUID, email string) (*gateway.CheckoutLink, error)
	Verify(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	ApplyGatewayResult(ctx context.Context, result GatewayResult) error
	ExpireStale(ctx context.Context) (int, error)
}

// CreateIntentInput carries everything needed to raise an employer charge.
// AmountCents is the stint gross; the booking fee is added on top here.
type CreateIntentInput struct {
	StintID        uuid.UUID      `json:"stint_id" validate:"required"`
	ApplicationID  uuid.UUID      `json:"application_id" validate:"required"`
	EmployerID     uuid.UUID      `json:"employer_id" validate:"required"`
	ProfessionalID uuid.UUID      `json:"professional_id" validate:"required"`
	AmountCents    int64          `json:"amount_cents" validate:"gt=0"`
	Currency       enums.Currency `json:"currency"`
	Urgent         bool           `json:"urgent"`
}

// GatewayResult is a provider outcome applied to an intent, either from a
// webhook or from an explicit verify poll.
type GatewayResult struct {
	Reference     string
	Success       bool
	TransactionID string
	FailureReason string
}

// ServiceParams wires the dependencies a payment intent service needs.
type ServiceParams struct {
	DB       *db.Client
	Repo     Repository
	Ledger   ledger.Service
	Gateway  PaymentGateway
	Logger   *logger.Logger
	Notifier notifier
	Schedule fees.Schedule
	TTL      time.Duration
	Now      func() time.Time
}

type service struct {
	db       *db.Client
	repo     Repository
	ledger   ledger.Service
	gateway  PaymentGateway
	log      *logger.Logger
	notifier notifier
	schedule fees.Schedule
	ttl      time.Duration
	now      func() time.Time
}

// NewService validates params and returns a payment intent service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payment intent repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := params.Schedule.Validate(); err != nil {
		return nil, fmt.Errorf("fee schedule: %w", err)
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("intent ttl must be positive")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		db:       params.DB,
		repo:     params.Repo,
		ledger:   params.Ledger,
		gateway:  params.Gateway,
		log:      params.Logger,
		notifier: params.Notifier,
		schedule: params.Schedule,
		ttl:      params.TTL,
		now:      params.Now,
	}, nil
}

// Create raises a charge for an accepted application. Racing a duplicate
// acceptance loses on the partial unique index and returns the intent the
// winner created instead of failing the request.
func (s *service) Create(ctx context.Context, input CreateIntentInput) (*models.PaymentIntent, error) {
	if input.StintID == uuid.Nil || input.ApplicationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stint id and application id are required")
	}
	if input.EmployerID == uuid.Nil || input.ProfessionalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "employer id and professional id are required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyKES
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}

	breakdown, err := fees.Calculate(input.AmountCents, input.Urgent, s.schedule)
	if err != nil {
		return nil, err
	}

	intent := &models.PaymentIntent{
		StintID:        input.StintID,
		ApplicationID:  input.ApplicationID,
		EmployerID:     input.EmployerID,
		ProfessionalID: input.ProfessionalID,
		AmountCents:    breakdown.TotalChargeCents,
		Currency:       currency,
		Urgent:         input.Urgent,
		Status:         enums.PaymentIntentStatusCreated,
		ExpiresAt:      s.now().UTC().Add(s.ttl),
	}

	if err := s.repo.Create(ctx, intent); err != nil {
		if db.IsUniqueViolation(err, activeIntentKey) {
			return s.repo.FindActive(ctx, input.StintID, input.ApplicationID)
		}
		return nil, err
	}

	metadata, _ := json.Marshal(breakdown)
	if _, err := s.ledger.Record(ctx, ledger.RecordEntryInput{
		StintID:     intent.StintID,
		Type:        enums.LedgerEntryTypeFeeComputed,
		AmountCents: breakdown.TotalChargeCents,
		Currency:    currency,
		Reference:   intent.ID.String(),
		Metadata:    metadata,
	}); err != nil {
		s.log.Error(ctx, "record fee ledger entry", err)
	}

	return intent, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	return s.repo.FindByID(ctx, id)
}

// InitiateMpesa pushes a payment prompt to the employer's phone. The intent
// is flipped to processing before the provider is called so a crash between
// the two leaves a row the expiry sweep can clean up, never a charge we
// have no record of.
func (s *service) InitiateMpesa(ctx context.Context, id uuid.UUID, phone string) (*models.PaymentIntent, error) {
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}

	intent, claimed, err := s.claimForProcessing(ctx, id)
	if err != nil {
		return nil, err
	}
	if intent.GatewayReference != nil {
		return intent, nil
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment initiation already in progress")
	}

	reference, err := s.gateway.PushPayment(ctx, gateway.PushPaymentParams{
		Phone:       phone,
		AmountCents: intent.AmountCents,
		Currency:    intent.Currency.String(),
	})
	if err != nil {
		s.releaseClaim(ctx, intent.ID)
		return nil, err
	}

	return s.attachReference(ctx, intent, reference)
}

// InitiateCard creates a hosted checkout link for card payment.
func (s *service) InitiateCard(ctx context.Context, id uuid.UUID, email string) (*gateway.CheckoutLink, error) {
	intent, claimed, err := s.claimForProcessing(ctx, id)
	if err != nil {
		return nil, err
	}
	if intent.GatewayReference != nil {
		return &gateway.CheckoutLink{Reference: *intent.GatewayReference}, nil
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment initiation already in progress")
	}

	link, err := s.gateway.CardCheckout(ctx, gateway.CardCheckoutParams{
		Email:       email,
		AmountCents: intent.AmountCents,
		Currency:    intent.Currency.String(),
	})
	if err != nil {
		s.releaseClaim(ctx, intent.ID)
		return nil, err
	}

	if _, err := s.attachReference(ctx, intent, link.Reference); err != nil {
		return nil, err
	}
	return link, nil
}

// claimForProcessing moves created -> processing. The swap decides who may
// talk to the provider: only the caller that won it initiates, so two
// concurrent initiations cannot prompt the employer twice. A loser that
// finds a reference already attached gets the intent back as a no-op.
func (s *service) claimForProcessing(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, bool, error) {
	if id == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}

	affected, err := s.repo.TransitionStatus(ctx, id,
		[]enums.PaymentIntentStatus{enums.PaymentIntentStatusCreated},
		enums.PaymentIntentStatusProcessing, nil)
	if err != nil {
		return nil, false, err
	}

	intent, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if affected == 0 && intent.Status != enums.PaymentIntentStatusProcessing {
		return nil, false, pkgerrors.New(pkgerrors.CodeStateConflict, "payment intent is not payable").
			WithDetails(map[string]any{"status": intent.Status})
	}
	return intent, affected > 0, nil
}

// releaseClaim undoes the processing claim after a provider call failed so
// the employer can retry. Best effort; the expiry sweep is the backstop.
func (s *service) releaseClaim(ctx context.Context, id uuid.UUID) {
	if _, err := s.repo.TransitionStatus(ctx, id,
		[]enums.PaymentIntentStatus{enums.PaymentIntentStatusProcessing},
		enums.PaymentIntentStatusCreated, nil); err != nil {
		s.log.Error(ctx, "release payment intent claim", err)
	}
}

func (s *service) attachReference(ctx context.Context, intent *models.PaymentIntent, reference string) (*models.PaymentIntent, error) {
	if _, err := s.repo.SetGatewayReference(ctx, intent.ID, reference); err != nil {
		return nil, err
	}
	intent.GatewayReference = &reference

	metadata, _ := json.Marshal(map[string]any{"payment_intent_id": intent.ID})
	if _, err := s.ledger.Record(ctx, ledger.RecordEntryInput{
		StintID:     intent.StintID,
		Type:        enums.LedgerEntryTypePaymentInitiated,
		AmountCents: intent.AmountCents,
		Currency:    intent.Currency,
		Reference:   reference,
		Metadata:    metadata,
	}); err != nil {
		s.log.Error(ctx, "record payment initiated ledger entry", err)
	}
	return intent, nil
}

// Verify polls the provider for the intent's charge and applies the result.
// Terminal intents are returned as-is without touching the provider.
func (s *service) Verify(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	intent, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if intent.Status.IsTerminal() {
		return intent, nil
	}
	if intent.GatewayReference == nil {
		return intent, nil
	}

	verification, err := s.gateway.VerifyByReference(ctx, *intent.GatewayReference)
	if err != nil {
		return nil, err
	}

	switch verification.Status {
	case gateway.StatusSuccess:
		err = s.ApplyGatewayResult(ctx, GatewayResult{
			Reference:     verification.Reference,
			Success:       true,
			TransactionID: verification.TransactionID,
		})
	case gateway.StatusFailed:
		err = s.ApplyGatewayResult(ctx, GatewayResult{
			Reference:     verification.Reference,
			FailureReason: verification.FailureReason,
		})
	default:
		return intent, nil
	}
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// ApplyGatewayResult reconciles a provider outcome onto the intent it
// references. Replays and races against the expiry sweep are absorbed:
// terminal intents stay terminal, and a success that lands after expiry is
// recorded as a manual adjustment for finance instead of resurrecting the
// intent.
func (s *service) ApplyGatewayResult(ctx context.Context, result GatewayResult) error {
	if result.Reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway reference is required")
	}

	intent, err := s.repo.FindByGatewayReference(ctx, result.Reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no payment intent for reference").
				WithDetails(map[string]any{"reference": result.Reference})
		}
		return err
	}

	ctx = s.log.WithGatewayRef(s.log.WithStintID(ctx, intent.StintID.String()), result.Reference)

	if intent.Status.IsTerminal() {
		if intent.Status == enums.PaymentIntentStatusExpired && result.Success {
			return s.recordLateSuccess(ctx, intent, result)
		}
		s.log.Info(ctx, "gateway result for terminal intent ignored")
		return nil
	}

	from := []enums.PaymentIntentStatus{
		enums.PaymentIntentStatusCreated,
		enums.PaymentIntentStatusProcessing,
	}

	if result.Success {
		affected, err := s.repo.TransitionStatus(ctx, intent.ID, from, enums.PaymentIntentStatusSuccess, nil)
		if err != nil {
			return err
		}
		if affected == 0 {
			s.log.Info(ctx, "lost payment success race, no-op")
			return nil
		}
		metadata, _ := json.Marshal(map[string]any{"transaction_id": result.TransactionID})
		_, err = s.ledger.Record(ctx, ledger.RecordEntryInput{
			StintID:     intent.StintID,
			Type:        enums.LedgerEntryTypePaymentSucceeded,
			AmountCents: intent.AmountCents,
			Currency:    intent.Currency,
			Reference:   result.Reference,
			Metadata:    metadata,
		})
		return err
	}

	reason := result.FailureReason
	if reason == "" {
		reason = "payment failed"
	}
	affected, err := s.repo.TransitionStatus(ctx, intent.ID, from, enums.PaymentIntentStatusFailed, &reason)
	if err != nil {
		return err
	}
	if affected == 0 {
		s.log.Info(ctx, "lost payment failure race, no-op")
		return nil
	}
	metadata, _ := json.Marshal(map[string]any{"failure_reason": reason})
	if _, err := s.ledger.Record(ctx, ledger.RecordEntryInput{
		StintID:     intent.StintID,
		Type:        enums.LedgerEntryTypePaymentFailed,
		AmountCents: intent.AmountCents,
		Currency:    intent.Currency,
		Reference:   result.Reference,
		Metadata:    metadata,
	}); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.PaymentFailed(ctx, intent.StintID, intent.EmployerID, reason)
	}
	return nil
}

// recordLateSuccess books money that arrived for an already-expired intent.
// Finance reconciles these by hand; the intent itself never comes back.
func (s *service) recordLateSuccess(ctx context.Context, intent *models.PaymentIntent, result GatewayResult) error {
	s.log.Warn(ctx, "payment succeeded after intent expiry, booking manual adjustment")
	metadata, _ := json.Marshal(map[string]any{
		"transaction_id": result.TransactionID,
		"intent_status":  intent.Status,
	})
	_, err := s.ledger.Record(ctx, ledger.RecordEntryInput{
		StintID:     intent.StintID,
		Type:        enums.LedgerEntryTypeManualAdjustment,
		AmountCents: intent.AmountCents,
		Currency:    intent.Currency,
		Reference:   result.Reference,
		Metadata:    metadata,
	})
	return err
}

const expireBatchSize = 500

// ExpireStale sweeps non-terminal intents past their TTL into expired. Each
// move is a compare-and-swap, so a webhook landing mid-sweep wins or loses
// cleanly per intent.
func (s *service) ExpireStale(ctx context.Context) (int, error) {
	stale, err := s.repo.FindStale(ctx, s.now().UTC(), expireBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, intent := range stale {
		reason := "payment window elapsed"
		affected, err := s.repo.TransitionStatus(ctx, intent.ID,
			[]enums.PaymentIntentStatus{
				enums.PaymentIntentStatusCreated,
				enums.PaymentIntentStatusProcessing,
			},
			enums.PaymentIntentStatusExpired, &reason)
		if err != nil {
			return expired, err
		}
		if affected == 0 {
			continue
		}
		expired++

		if _, err := s.ledger.Record(ctx, ledger.RecordEntryInput{
			StintID:     intent.StintID,
			Type:        enums.LedgerEntryTypePaymentExpired,
			AmountCents: intent.AmountCents,
			Currency:    intent.Currency,
			Reference:   intent.ID.String(),
		}); err != nil {
			s.log.Error(ctx, "record payment expired ledger entry", err)
		}
	}
	return expired, nil
}
