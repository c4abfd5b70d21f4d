package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/vitalshift/vitalshift-backend/api/routes"
	"github.com/vitalshift/vitalshift-backend/internal/fees"
	"github.com/vitalshift/vitalshift-backend/internal/invoices"
	"github.com/vitalshift/vitalshift-backend/internal/ledger"
	"github.com/vitalshift/vitalshift-backend/internal/notifications"
	"github.com/vitalshift/vitalshift-backend/internal/paymentintents"
	"github.com/vitalshift/vitalshift-backend/internal/payouts"
	"github.com/vitalshift/vitalshift-backend/internal/settlement"
	"github.com/vitalshift/vitalshift-backend/internal/stints"
	gatewaywebhook "github.com/vitalshift/vitalshift-backend/internal/webhooks/gateway"
	"github.com/vitalshift/vitalshift-backend/pkg/config"
	"github.com/vitalshift/vitalshift-backend/pkg/db"
	"github.com/vitalshift/vitalshift-backend/pkg/gateway"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
	"github.com/vitalshift/vitalshift-backend/pkg/migrate"
	"github.com/vitalshift/vitalshift-backend/pkg/pubsub"
	"github.com/vitalshift/vitalshift-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	schedule, err := fees.ScheduleForVersion(cfg.Fees.ScheduleVersion)
	if err != nil {
		logg.Error(context.Background(), "failed to load fee schedule", err)
		os.Exit(1)
	}

	var notifyService notifications.Service
	if cfg.FeatureFlags.NotifyEnabled && cfg.GCP.ProjectID != "" {
		psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		notifyService, err = notifications.NewService(psClient.NotificationPublisher(), logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create notification service", err)
			os.Exit(1)
		}
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	stintRepo := stints.NewRepository(dbClient.DB())
	stintService, err := stints.NewService(stints.ServiceParams{
		Repo:          stintRepo,
		Ledger:        ledgerService,
		Logger:        logg,
		DisputeWindow: cfg.Cron.DisputeWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stint service", err)
		os.Exit(1)
	}

	intentRepo := paymentintents.NewRepository(dbClient.DB())
	paymentService, err := paymentintents.NewService(paymentintents.ServiceParams{
		DB:       dbClient,
		Repo:     intentRepo,
		Ledger:   ledgerService,
		Gateway:  gatewayClient,
		Logger:   logg,
		Notifier: notifyService,
		Schedule: schedule,
		TTL:      cfg.Cron.IntentTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment intent service", err)
		os.Exit(1)
	}

	payoutService, err := payouts.NewService(payouts.ServiceParams{
		Repo:           payouts.NewRepository(dbClient.DB()),
		Ledger:         ledgerService,
		Gateway:        gatewayClient,
		Logger:         logg,
		Notifier:       notifyService,
		MaxRetries:     cfg.Cron.PayoutMaxRetries,
		BaseRetryDelay: cfg.Cron.PayoutRetryDelay,
		BatchSize:      cfg.Cron.PayoutBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}

	invoiceService, err := invoices.NewService(invoices.ServiceParams{
		Repo:   invoices.NewRepository(dbClient.DB()),
		Ledger: ledgerService,
		Logger: logg,
		DueIn:  cfg.Cron.InvoiceDueIn,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		DB:        dbClient,
		Stints:    stintRepo,
		Intents:   intentRepo,
		Payouts:   payoutService,
		Invoices:  invoiceService,
		Ledger:    ledgerService,
		Logger:    logg,
		Schedule:  schedule,
		BatchSize: cfg.Cron.PayoutBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	webhookService, err := gatewaywebhook.NewService(gatewaywebhook.ServiceParams{
		Intents: paymentService,
		Payouts: payoutService,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := gatewaywebhook.NewIdempotencyGuard(redisClient, cfg.Cron.WebhookEventTTL, "gateway-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			gatewayClient,
			schedule,
			ledgerService,
			stintService,
			paymentService,
			payoutService,
			invoiceService,
			settlementService,
			webhookService,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
