package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/printhub/vendor-ledger/pkg/logger"
)

const pingTimeout = 2 * time.Second

// Pinger is implemented by db.Client and redis.Client.
type Pinger interface {
	Ping(context.Context) error
}

// Params configures the operational router served by the worker binaries.
type Params struct {
	Env      string
	Logger   *logger.Logger
	Gatherer prometheus.Gatherer
	Checks   map[string]Pinger
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewRouter exposes /healthz, /readyz and /metrics.
func NewRouter(params Params) (http.Handler, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(RequestID(params.Logger))
	r.Use(Recoverer(params.Logger))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Ledger-Env", params.Env)
		writeJSON(w, http.StatusOK, healthResponse{Status: "live"})
	})
	r.Get("/readyz", readyHandler(params))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r, nil
}

func readyHandler(params Params) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		resp := healthResponse{Status: "ready", Checks: map[string]string{}}
		status := http.StatusOK
		for name, pinger := range params.Checks {
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				logCtx := params.Logger.WithField(ctx, "dependency", name)
				params.Logger.Error(logCtx, "ops.readiness_failed", err)
				resp.Checks[name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		w.Header().Set("X-Ledger-Env", params.Env)
		writeJSON(w, status, resp)
	}
}

// Serve runs the router on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logg *logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", addr), "ops server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
