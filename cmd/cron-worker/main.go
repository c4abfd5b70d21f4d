package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitalshift/vitalshift-backend/internal/cron"
	"github.com/vitalshift/vitalshift-backend/internal/fees"
	"github.com/vitalshift/vitalshift-backend/internal/invoices"
	"github.com/vitalshift/vitalshift-backend/internal/ledger"
	"github.com/vitalshift/vitalshift-backend/internal/notifications"
	"github.com/vitalshift/vitalshift-backend/internal/paymentintents"
	"github.com/vitalshift/vitalshift-backend/internal/payouts"
	"github.com/vitalshift/vitalshift-backend/internal/settlement"
	"github.com/vitalshift/vitalshift-backend/internal/stints"
	"github.com/vitalshift/vitalshift-backend/pkg/config"
	"github.com/vitalshift/vitalshift-backend/pkg/db"
	"github.com/vitalshift/vitalshift-backend/pkg/gateway"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
	"github.com/vitalshift/vitalshift-backend/pkg/metrics"
	"github.com/vitalshift/vitalshift-backend/pkg/migrate"
	"github.com/vitalshift/vitalshift-backend/pkg/pubsub"
	"github.com/vitalshift/vitalshift-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	registry := cron.NewRegistry()

	expiryJob, err := cron.NewPaymentExpiryJob(cron.PaymentExpiryJobParams{
		Logger:  logg,
		Intents: paymentService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment expiry job", err)
		os.Exit(1)
	}
	registry.Register(expiryJob)

	if cfg.Cron.SettlementEnabled {
		settlementJob, err := cron.NewSettlementJob(cron.SettlementJobParams{
			Logger:     logg,
			Settlement: settlementService,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create settlement job", err)
			os.Exit(1)
		}
		registry.Register(settlementJob)

		dispatchJob, err := cron.NewPayoutDispatchJob(cron.PayoutDispatchJobParams{
			Logger:  logg,
			Payouts: payoutService,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create payout dispatch job", err)
			os.Exit(1)
		}
		registry.Register(dispatchJob)
	}

	if notifyService != nil {
		overdueJob, err := cron.NewInvoiceOverdueJob(cron.InvoiceOverdueJobParams{
			Logger:   logg,
			Invoices: invoiceService,
			Notifier: notifyService,
			Store:    redisClient,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create invoice overdue job", err)
			os.Exit(1)
		}
		registry.Register(overdueJob)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
