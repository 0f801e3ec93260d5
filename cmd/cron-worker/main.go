package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/printhub/vendor-ledger/internal/balance"
	"github.com/printhub/vendor-ledger/internal/bootstrap"
	"github.com/printhub/vendor-ledger/internal/cron"
	"github.com/printhub/vendor-ledger/internal/health"
	"github.com/printhub/vendor-ledger/internal/ledger"
	"github.com/printhub/vendor-ledger/internal/orders"
	"github.com/printhub/vendor-ledger/pkg/metrics"
	"github.com/printhub/vendor-ledger/pkg/outbox"
)

func main() {
	ctx := context.Background()
	rt, err := bootstrap.Start(ctx, "cron-worker")
	if err != nil {
		bootstrap.Exit(nil, "cron-worker bootstrap failed", err)
	}
	defer rt.Close()

	redisClient, err := rt.Redis(ctx)
	if err != nil {
		bootstrap.Exit(rt.Logger, "redis unavailable", err)
	}

	registerer := prometheus.DefaultRegisterer
	ledgerRepo := ledger.NewRepository(rt.DB.DB())
	balanceService, err := balance.NewService(ledgerRepo)
	if err != nil {
		bootstrap.Exit(rt.Logger, "failed to create balance service", err)
	}
	thresholds, err := health.NewThresholds(rt.Config.Ledger.HealthWarningRatio, rt.Config.Ledger.HealthCriticalRatio)
	if err != nil {
		bootstrap.Exit(rt.Logger, "invalid health thresholds", err)
	}
	healthService, err := health.NewService(balanceService, ledgerRepo, orders.NewRepository(rt.DB.DB()), thresholds)
	if err != nil {
		bootstrap.Exit(rt.Logger, "failed to create health service", err)
	}

	healthJob, err := cron.NewLedgerHealthJob(cron.LedgerHealthJobParams{
		Logger:  rt.Logger,
		Health:  healthService,
		Metrics: metrics.NewLedgerMetrics(registerer),
	})
	if err != nil {
		bootstrap.Exit(rt.Logger, "failed to create ledger health job", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       rt.Logger,
		DB:           rt.DB,
		Repository:   outbox.NewRepository(rt.DB.DB()),
		Retention:    rt.Config.Outbox.Retention,
		KeepAttempts: rt.Config.Outbox.KeepAttempts,
	})
	if err != nil {
		bootstrap.Exit(rt.Logger, "failed to create outbox retention job", err)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.Key("lock", "cron-worker", lockScope(rt.Config.App.Env)), rt.Config.Cron.LockTTL)
	if err != nil {
		bootstrap.Exit(rt.Logger, "failed to create cron lock", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     rt.Logger,
		Registry:   cron.NewRegistry(healthJob, retentionJob),
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(registerer),
		Interval:   rt.Config.Cron.Interval,
		JobTimeout: rt.Config.Cron.JobTimeout,
	})
	if err != nil {
		bootstrap.Exit(rt.Logger, "failed to create cron service", err)
	}

	if err := rt.Run(ctx, service.Run); err != nil {
		rt.Close()
		bootstrap.Exit(rt.Logger, "cron worker stopped unexpectedly", err)
	}
}

func lockScope(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
