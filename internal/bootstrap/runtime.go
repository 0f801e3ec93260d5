// Package bootstrap owns the startup and shutdown sequence shared by the
// worker binaries: config, logging, database, optional Redis and Pub/Sub,
// and the ops server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/printhub/vendor-ledger/pkg/config"
	"github.com/printhub/vendor-ledger/pkg/db"
	"github.com/printhub/vendor-ledger/pkg/logger"
	"github.com/printhub/vendor-ledger/pkg/migrate"
	"github.com/printhub/vendor-ledger/pkg/ops"
	"github.com/printhub/vendor-ledger/pkg/pubsub"
	"github.com/printhub/vendor-ledger/pkg/redis"
)

type resource struct {
	name   string
	closer io.Closer
}

// Runtime holds the shared dependencies of one worker process. Resources are
// closed in reverse order of acquisition.
type Runtime struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client

	checks    map[string]ops.Pinger
	resources []resource
}

// Start loads .env and config, builds the logger, connects the database and
// applies dev migrations when enabled.
func Start(ctx context.Context, kind string) (*Runtime, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = kind

	rt := &Runtime{
		Kind:   kind,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       cfg.App.LogLevel,
			WarnStack:   cfg.App.LogWarnStack,
			Console:     cfg.App.ConsoleLogs(),
		}),
		checks: map[string]ops.Pinger{},
	}

	client, err := db.New(ctx, cfg.DB, cfg.Ledger.TxTimeout, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	rt.DB = client
	rt.track("database", client, client)

	if err := migrate.AutoRun(ctx, cfg, rt.Logger, client); err != nil {
		rt.Close()
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return rt, nil
}

// Redis connects the shared Redis client and adds it to readiness checks.
func (rt *Runtime) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	rt.track("redis", client, client)
	return client, nil
}

// PubSub connects Pub/Sub and adds it to readiness checks.
func (rt *Runtime) PubSub(ctx context.Context) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, rt.Config.GCP, rt.Config.PubSub, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: %w", err)
	}
	rt.track("pubsub", client, client)
	return client, nil
}

func (rt *Runtime) track(name string, pinger ops.Pinger, closer io.Closer) {
	rt.checks[name] = pinger
	rt.resources = append(rt.resources, resource{name: name, closer: closer})
}

// Run serves the ops router and blocks in loop until SIGINT, SIGTERM or
// loop's own return. Cancellation is a clean exit.
func (rt *Runtime) Run(ctx context.Context, loop func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = rt.Logger.WithFields(ctx, map[string]any{
		"env":         rt.Config.App.Env,
		"serviceKind": rt.Kind,
	})

	router, err := rt.router()
	if err != nil {
		return err
	}
	go func() {
		if err := ops.Serve(ctx, ":"+rt.Config.App.OpsPort, router, rt.Logger); err != nil {
			rt.Logger.Error(ctx, "ops server stopped", err)
		}
	}()

	rt.Logger.Info(ctx, rt.Kind+" starting")
	if err := loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	rt.Logger.Info(ctx, rt.Kind+" shutting down")
	return nil
}

func (rt *Runtime) router() (http.Handler, error) {
	return ops.NewRouter(ops.Params{
		Env:      rt.Config.App.Env,
		Logger:   rt.Logger,
		Gatherer: prometheus.DefaultGatherer,
		Checks:   rt.checks,
	})
}

// Close releases every tracked resource, newest first, and logs failures.
func (rt *Runtime) Close() {
	var errs error
	for i := len(rt.resources) - 1; i >= 0; i-- {
		res := rt.resources[i]
		if err := res.closer.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", res.name, err))
		}
	}
	rt.resources = nil
	if errs != nil {
		rt.Logger.Error(context.Background(), "shutdown incomplete", errs)
	}
}

// Exit logs err against msg and terminates the process. Before a Runtime
// exists logg may be nil; the error then goes to stderr.
func Exit(logg *logger.Logger, msg string, err error) {
	if logg == nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	} else {
		logg.Error(context.Background(), msg, err)
	}
	os.Exit(1)
}
