package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vitalshift/vitalshift-backend/api/responses"
	"github.com/vitalshift/vitalshift-backend/api/validators"
	"github.com/vitalshift/vitalshift-backend/internal/paymentintents"
	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

type mpesaInitiateRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,min=10,max=15"`
}

type cardInitiateRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// CreatePayment raises an employer charge for an accepted stint application.
func CreatePayment(svc paymentintents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var input paymentintents.CreateIntentInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		intent, err := svc.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, intent)
	}
}

// GetPayment returns one payment intent by id.
func GetPayment(svc paymentintents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := paymentIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		intent, err := svc.GetByID(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}

// InitiateMpesaPayment pushes an STK prompt to the employer's phone.
func InitiateMpesaPayment(svc paymentintents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := paymentIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req mpesaInitiateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		intent, err := svc.InitiateMpesa(ctx, id, validators.SanitizeString(req.PhoneNumber, 15))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}

// InitiateCardPayment creates a hosted card checkout link.
func InitiateCardPayment(svc paymentintents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := paymentIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req cardInitiateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		link, err := svc.InitiateCard(ctx, id, validators.SanitizeString(req.Email, 254))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, link)
	}
}

// VerifyPayment polls the provider for the intent's current state. The
// webhook is the primary signal; this exists for clients stuck waiting.
func VerifyPayment(svc paymentintents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := paymentIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		intent, err := svc.Verify(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}

func paymentIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "paymentId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment id").
			WithDetails(map[string]string{"payment_id": raw})
	}
	return id, nil
}
