package stints

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vitalshift/vitalshift-backend/internal/ledger"
	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

// Service exposes the stint lifecycle moves the settlement engine owns:
// completion (which opens the dispute window) and disputes (which pause it).
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Stint, error)
	Complete(ctx context.Context, id uuid.UUID) (*models.Stint, error)
	Dispute(ctx context.Context, id uuid.UUID) (*models.Stint, error)
}

// ServiceParams wires the dependencies a stint service needs.
type ServiceParams struct {
	Repo          Repository
	Ledger        ledger.Service
	Logger        *logger.Logger
	DisputeWindow time.Duration
	Now           func() time.Time
}

type service struct {
	repo          Repository
	ledger        ledger.Service
	log           *logger.Logger
	disputeWindow time.Duration
	now           func() time.Time
}

// NewService validates params and returns a stint service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("stint repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DisputeWindow <= 0 {
		return nil, fmt.Errorf("dispute window must be positive")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:          params.Repo,
		ledger:        params.Ledger,
		log:           params.Logger,
		disputeWindow: params.DisputeWindow,
		now:           params.Now,
	}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Stint, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stint id is required")
	}
	return s.repo.FindByID(ctx, id)
}

// Complete moves an in-progress stint to completed and stamps the dispute
// window. Settlement will not touch the stint until the window has elapsed.
func (s *service) Complete(ctx context.Context, id uuid.UUID) (*models.Stint, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stint id is required")
	}

	completedAt := s.now().UTC()
	windowEnds := completedAt.Add(s.disputeWindow)

	affected, err := s.repo.MarkCompleted(ctx, id, completedAt, windowEnds)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "stint is not in progress")
	}

	ctx = s.log.WithStintID(ctx, id.String())
	ctx = s.log.WithField(ctx, "dispute_window_ends_at", windowEnds)
	s.log.Info(ctx, "stint completed")

	return s.repo.FindByID(ctx, id)
}

// Dispute pauses settlement for a completed stint. A disputed stint drops
// out of every settlement scan until an operator resolves it.
func (s *service) Dispute(ctx context.Context, id uuid.UUID) (*models.Stint, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stint id is required")
	}

	affected, err := s.repo.MarkDisputed(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "stint cannot be disputed in its current state")
	}

	s.log.Warn(s.log.WithStintID(ctx, id.String()), "stint disputed, settlement paused")

	return s.repo.FindByID(ctx, id)
}
