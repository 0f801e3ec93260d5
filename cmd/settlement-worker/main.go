package main

import (
	"context"

	"github.com/printhub/vendor-ledger/internal/bootstrap"
	settlementconsumer "github.com/printhub/vendor-ledger/internal/consumers/settlement"
	"github.com/printhub/vendor-ledger/internal/ledger"
	"github.com/printhub/vendor-ledger/pkg/enums"
	"github.com/printhub/vendor-ledger/pkg/outbox/idempotency"
	"github.com/printhub/vendor-ledger/pkg/pagination"
)

func main() {
	ctx := context.Background()
	rt, err := bootstrap.Start(ctx, "settlement-worker")
	if err != nil {
		bootstrap.Exit(nil, "settlement-worker bootstrap failed", err)
	}
	defer rt.Close()
	cfg := rt.Config

	currency, err := enums.ParseCurrency(cfg.Ledger.Currency)
	if err != nil {
		bootstrap.Exit(rt.Logger, "invalid ledger currency", err)
	}
	redisClient, err := rt.Redis(ctx)
	if err != nil {
		bootstrap.Exit(rt.Logger, "redis unavailable", err)
	}
	pubsubClient, err := rt.PubSub(ctx)
	if err != nil {
		bootstrap.Exit(rt.Logger, "pubsub unavailable", err)
	}
	subscription, err := pubsubClient.SettlementSubscription()
	if err != nil {
		bootstrap.Exit(rt.Logger, "settlement subscription unavailable", err)
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		bootstrap.Exit(rt.Logger, "failed to create idempotency manager", err)
	}
	ledgerService, err := ledger.NewService(
		ledger.NewRepository(rt.DB.DB()),
		pagination.Bounds{Default: cfg.Ledger.DefaultPageSize, Max: cfg.Ledger.MaxPageSize},
		rt.Logger,
	)
	if err != nil {
		bootstrap.Exit(rt.Logger, "failed to create ledger service", err)
	}
	consumer, err := settlementconsumer.NewConsumer(subscription, ledgerService, manager, currency, rt.Logger)
	if err != nil {
		bootstrap.Exit(rt.Logger, "failed to create settlement consumer", err)
	}

	runCtx := rt.Logger.WithField(ctx, "subscription", cfg.PubSub.SettlementSubscription)
	if err := rt.Run(runCtx, consumer.Run); err != nil {
		rt.Close()
		bootstrap.Exit(rt.Logger, "settlement worker stopped unexpectedly", err)
	}
}
