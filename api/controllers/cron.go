package controllers

import (
	"context"
	"net/http"

	"github.com/vitalshift/vitalshift-backend/api/responses"
	"github.com/vitalshift/vitalshift-backend/internal/payouts"
	"github.com/vitalshift/vitalshift-backend/internal/settlement"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

type staleExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

type settlementRunner interface {
	Run(ctx context.Context) (settlement.Result, error)
}

type payoutDispatcher interface {
	DispatchDue(ctx context.Context) (payouts.DispatchStats, error)
}

// CronExpirePayments sweeps payment intents past their TTL. Invoked by the
// external scheduler; the cron worker runs the same sweep on its own loop.
func CronExpirePayments(svc staleExpirer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		expired, err := svc.ExpireStale(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"expired": expired})
	}
}

// CronProcessPayouts settles eligible stints then dispatches due payouts.
func CronProcessPayouts(settlements settlementRunner, dispatcher payoutDispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		result, err := settlements.Run(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		stats, err := dispatcher.DispatchDue(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"processed": result.Processed + stats.Dispatched,
			"failed":    result.Failed + stats.Failed,
			"settlement": map[string]int{
				"scanned":      result.Scanned,
				"marked_ready": result.MarkedReady,
				"processed":    result.Processed,
				"failed":       result.Failed,
			},
			"payouts": map[string]int{
				"dispatched":  stats.Dispatched,
				"rescheduled": stats.Rescheduled,
				"failed":      stats.Failed,
			},
		})
	}
}
