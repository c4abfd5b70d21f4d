package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vitalshift/vitalshift-backend/api/controllers"
	webhookcontrollers "github.com/vitalshift/vitalshift-backend/api/controllers/webhooks"
	"github.com/vitalshift/vitalshift-backend/api/middleware"
	"github.com/vitalshift/vitalshift-backend/internal/fees"
	"github.com/vitalshift/vitalshift-backend/internal/invoices"
	"github.com/vitalshift/vitalshift-backend/internal/ledger"
	"github.com/vitalshift/vitalshift-backend/internal/paymentintents"
	"github.com/vitalshift/vitalshift-backend/internal/payouts"
	"github.com/vitalshift/vitalshift-backend/internal/settlement"
	"github.com/vitalshift/vitalshift-backend/internal/stints"
	gatewaywebhook "github.com/vitalshift/vitalshift-backend/internal/webhooks/gateway"
	"github.com/vitalshift/vitalshift-backend/pkg/config"
	"github.com/vitalshift/vitalshift-backend/pkg/db"
	"github.com/vitalshift/vitalshift-backend/pkg/gateway"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
	"github.com/vitalshift/vitalshift-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatewayClient *gateway.Client,
	feeSchedule fees.Schedule,
	ledgerService ledger.Service,
	stintService stints.Service,
	paymentService paymentintents.Service,
	payoutService payouts.Service,
	invoiceService invoices.Service,
	settlementService settlement.Service,
	webhookService *gatewaywebhook.Service,
	webhookGuard *gatewaywebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// Signature verification is only bypassable outside production.
	skipWebhookVerify := cfg.FeatureFlags.SkipWebhookVerify && !cfg.App.IsProd()
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(webhookService, gatewayClient, webhookGuard, skipWebhookVerify, logg))
	})

	r.Route("/cron", func(r chi.Router) {
		r.Use(middleware.CronAuth(cfg.Cron.Secret, logg))
		r.Post("/expire-payments", controllers.CronExpirePayments(paymentService, logg))
		r.Post("/process-payouts", controllers.CronProcessPayouts(settlementService, payoutService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/fees/quote", controllers.QuoteFees(feeSchedule, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.CreatePayment(paymentService, logg))
			r.Get("/{paymentId}", controllers.GetPayment(paymentService, logg))
			r.Post("/{paymentId}/mpesa", controllers.InitiateMpesaPayment(paymentService, logg))
			r.Post("/{paymentId}/card", controllers.InitiateCardPayment(paymentService, logg))
			r.Post("/{paymentId}/verify", controllers.VerifyPayment(paymentService, logg))
		})

		r.Route("/stints", func(r chi.Router) {
			r.Get("/{stintId}", controllers.GetStint(stintService, logg))
			r.Post("/{stintId}/complete", controllers.CompleteStint(stintService, logg))
			r.Post("/{stintId}/dispute", controllers.DisputeStint(stintService, logg))
			r.Get("/{stintId}/ledger", controllers.StintLedger(ledgerService, logg))
			r.Get("/{stintId}/payout", controllers.GetStintPayout(payoutService, logg))
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Get("/{payoutId}", controllers.GetPayout(payoutService, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", controllers.ListInvoices(invoiceService, logg))
			r.Get("/{invoiceId}", controllers.GetInvoice(invoiceService, logg))
			r.Post("/{invoiceId}/pay", controllers.PayInvoice(invoiceService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Post("/payouts/{payoutId}/fail", controllers.AdminFailPayout(payoutService, logg))
	})

	return r
}
