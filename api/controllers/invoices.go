package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vitalshift/vitalshift-backend/api/responses"
	"github.com/vitalshift/vitalshift-backend/api/validators"
	"github.com/vitalshift/vitalshift-backend/internal/invoices"
	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

// ListInvoices returns an employer's invoices, newest first.
func ListInvoices(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rawEmployer := r.URL.Query().Get("employer_id")
		employerID, err := uuid.Parse(rawEmployer)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "employer_id query parameter is required").
				WithDetails(map[string]string{"employer_id": rawEmployer}))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, err := svc.ListByEmployer(ctx, employerID, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// GetInvoice returns one invoice by id.
func GetInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := invoiceIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		invoice, err := svc.GetByID(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

// PayInvoice marks an invoice settled by the employer.
func PayInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := invoiceIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		invoice, err := svc.MarkPaid(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

func invoiceIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "invoiceId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid invoice id").
			WithDetails(map[string]string{"invoice_id": raw})
	}
	return id, nil
}
