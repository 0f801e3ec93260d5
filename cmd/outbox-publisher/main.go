package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/printhub/vendor-ledger/internal/bootstrap"
	"github.com/printhub/vendor-ledger/pkg/metrics"
	"github.com/printhub/vendor-ledger/pkg/outbox"
	"github.com/printhub/vendor-ledger/pkg/outbox/registry"
)

func main() {
	ctx := context.Background()
	rt, err := bootstrap.Start(ctx, "outbox-publisher")
	if err != nil {
		bootstrap.Exit(nil, "outbox-publisher bootstrap failed", err)
	}
	defer rt.Close()

	topics, err := rt.PubSub(ctx)
	if err != nil {
		bootstrap.Exit(rt.Logger, "pubsub unavailable", err)
	}
	events, err := registry.NewEventRegistry(rt.Config.PubSub)
	if err != nil {
		bootstrap.Exit(rt.Logger, "invalid event registry", err)
	}

	conn := rt.DB.DB()
	relay, err := NewRelay(RelayParams{
		Outbox:     rt.Config.Outbox,
		Logger:     rt.Logger,
		DB:         rt.DB,
		Topics:     topics,
		Repository: outbox.NewRepository(conn),
		DLQ:        outbox.NewDLQRepository(conn),
		Registry:   events,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		bootstrap.Exit(rt.Logger, "failed to create outbox relay", err)
	}

	if err := rt.Run(ctx, relay.Run); err != nil {
		rt.Close()
		bootstrap.Exit(rt.Logger, "outbox publisher stopped unexpectedly", err)
	}
}
