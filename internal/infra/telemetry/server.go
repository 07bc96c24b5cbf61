package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hive/internal/domain"
)

// Observability routes.
const (
	MetricsPath     = "/metrics"
	HealthzPath     = "/healthz"
	DiagnosticsPath = "/debug/diagnostics"
)

// HTTPServerOptions selects what the observability listener serves.
type HTTPServerOptions struct {
	Addr          string
	EnableMetrics bool
	EnableHealthz bool
	Health        *HealthTracker
	Registry      prometheus.Gatherer
	// Diagnostics, when set, is mounted at DiagnosticsPath.
	Diagnostics http.Handler
}

func (o HTTPServerOptions) serves() bool {
	return o.EnableMetrics || o.EnableHealthz || o.Diagnostics != nil
}

// NewObservabilityHandler routes the enabled observability endpoints.
func NewObservabilityHandler(opts HTTPServerOptions) http.Handler {
	router := mux.NewRouter()
	if opts.EnableMetrics {
		registry := opts.Registry
		if registry == nil {
			registry = prometheus.DefaultGatherer
		}
		router.Handle(MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	if opts.EnableHealthz {
		router.Handle(HealthzPath, healthHandler(opts.Health)).Methods(http.MethodGet)
	}
	if opts.Diagnostics != nil {
		router.Handle(DiagnosticsPath, opts.Diagnostics).Methods(http.MethodGet)
	}
	return router
}

// StartHTTPServer serves the observability endpoints until ctx is done.
// It returns nil immediately when nothing is enabled.
func StartHTTPServer(ctx context.Context, opts HTTPServerOptions, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !opts.serves() {
		return nil
	}
	addr := opts.Addr
	if addr == "" {
		addr = domain.DefaultObservabilityListenAddress
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           NewObservabilityHandler(opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	failed := make(chan error, 1)
	go func() {
		logger.Info("observability server listening",
			zap.String("addr", addr),
			zap.Bool("metrics", opts.EnableMetrics),
			zap.Bool("healthz", opts.EnableHealthz),
			zap.Bool("diagnostics", opts.Diagnostics != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	select {
	case err := <-failed:
		return fmt.Errorf("observability server on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), domain.DefaultHTTPShutdownTimeoutSeconds*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("observability server shutdown error", zap.Error(err))
		return err
	}
	logger.Info("observability server stopped", zap.String("addr", addr))
	return nil
}

// healthHandler answers 200 while every heartbeat is fresh and 503 otherwise.
func healthHandler(tracker *HealthTracker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		report := HealthReport{Status: "ok"}
		if tracker != nil {
			report = tracker.Report()
		}
		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	})
}
