package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vitalshift/vitalshift-backend/api/responses"
	"github.com/vitalshift/vitalshift-backend/api/validators"
	"github.com/vitalshift/vitalshift-backend/internal/payouts"
	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

type adminFailPayoutRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// GetPayout returns one payout by id.
func GetPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := payoutIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payout, err := svc.GetByID(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

// GetStintPayout returns the payout attached to a stint, if any.
func GetStintPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := stintIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payout, err := svc.GetByStintID(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

// AdminFailPayout force-fails a payout for manual resolution.
func AdminFailPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := payoutIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req adminFailPayoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.AdminFail(ctx, id, validators.SanitizeString(req.Reason, 500)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

func payoutIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "payoutId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payout id").
			WithDetails(map[string]string{"payout_id": raw})
	}
	return id, nil
}
