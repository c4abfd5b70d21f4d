package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/vitalshift/vitalshift-backend/api/responses"
	pkgerrors "github.com/vitalshift/vitalshift-backend/pkg/errors"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
)

// CronAuth guards the scheduler-only endpoints with a shared bearer secret.
func CronAuth(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if secret == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cron secret not configured"))
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token required"))
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid cron token"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
