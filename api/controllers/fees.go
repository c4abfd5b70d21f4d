package controllers

import (
	"net/http"
	"strconv"

	"github.com/vitalshift/vitalshift-backend/api/responses"
	"github.com/vitalshift/vitalshift-backend/internal/fees"
	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

// QuoteFees previews the full fee breakdown for a prospective charge without
// touching any state.
func QuoteFees(schedule fees.Schedule, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rawAmount := r.URL.Query().Get("amount_cents")
		amount, err := strconv.ParseInt(rawAmount, 10, 64)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount_cents query parameter is required").
				WithDetails(map[string]string{"amount_cents": rawAmount}))
			return
		}
		urgent := r.URL.Query().Get("urgent") == "true"

		breakdown, err := fees.Calculate(amount, urgent, schedule)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, breakdown)
	}
}
