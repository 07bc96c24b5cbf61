package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"hive/internal/app/automation"
	"hive/internal/app/httpapi"
	"hive/internal/domain"
	"hive/internal/infra/ratelimit"
	"hive/internal/infra/schedule"
	"hive/internal/infra/store"
	"hive/internal/infra/telemetry"
	"hive/internal/infra/telemetry/diagnostics"
)

const (
	defaultMaintenanceInterval = time.Minute
	runLedgerRetention         = 48 * time.Hour
)

// Application wires the core runtime and dependencies.
type Application struct {
	ctx        context.Context
	configPath string

	logger        *zap.Logger
	config        domain.RuntimeConfig
	registry      *prometheus.Registry
	health        *telemetry.HealthTracker
	diagnostics   *diagnostics.Hub
	store         *store.Store
	worker        *automation.Worker
	runner        *schedule.Runner
	throttle      *ratelimit.EventThrottle
	api           *httpapi.API
	reloadManager *ReloadManager
}

// ApplicationOptions captures dependencies and settings for Application.
type ApplicationOptions struct {
	Context       context.Context
	ServeConfig   ServeConfig
	Logger        *zap.Logger
	Config        domain.RuntimeConfig
	Registry      *prometheus.Registry
	Health        *telemetry.HealthTracker
	Diagnostics   *diagnostics.Hub
	Store         *store.Store
	Worker        *automation.Worker
	Runner        *schedule.Runner
	Throttle      *ratelimit.EventThrottle
	API           *httpapi.API
	ReloadManager *ReloadManager
}

// NewApplication constructs the core application runtime.
func NewApplication(opts ApplicationOptions) *Application {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Application{
		ctx:           ctx,
		configPath:    opts.ServeConfig.ConfigPath,
		logger:        logger,
		config:        opts.Config,
		registry:      opts.Registry,
		health:        opts.Health,
		diagnostics:   opts.Diagnostics,
		store:         opts.Store,
		worker:        opts.Worker,
		runner:        opts.Runner,
		throttle:      opts.Throttle,
		api:           opts.API,
		reloadManager: opts.ReloadManager,
	}
}

// Run starts the core services and blocks until shutdown.
func (a *Application) Run() error {
	a.logger.Info("configuration loaded",
		zap.String("config", a.configPath),
		zap.String("storage", a.config.Storage.Path),
		zap.String("listen", a.config.HTTP.ListenAddress),
	)

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()

	metricsEnabled, healthzEnabled := observabilityDefaults()
	obsOptions := telemetry.ObservabilityControllerOptions{
		DefaultMetricsEnabled: metricsEnabled,
		DefaultHealthzEnabled: healthzEnabled,
		Registry:              a.registry,
		Health:                a.health,
		Logger:                a.logger,
	}
	if a.diagnostics != nil {
		obsOptions.Diagnostics = a.diagnostics.Handler()
	}
	obsController := telemetry.NewObservabilityController(obsOptions)
	defer obsController.Stop()
	if a.reloadManager != nil {
		a.reloadManager.SetObservabilityController(obsController)
	}
	if err := obsController.Apply(ctx, a.config.Observability); err != nil {
		a.logger.Warn("observability apply failed", zap.Error(err))
	}

	if a.reloadManager != nil {
		a.reloadManager.Start(ctx)
	}

	if a.worker != nil {
		if err := a.worker.Start(ctx); err != nil {
			return err
		}
	}
	if a.runner != nil {
		go func() {
			if err := a.runner.Run(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("schedule runner stopped", zap.Error(err))
			}
		}()
	}
	go a.maintain(ctx, defaultMaintenanceInterval)

	return httpapi.Serve(ctx, a.config.HTTP.ListenAddress, a.api, a.logger)
}

// maintain prunes idle throttle buckets and old run ledger entries.
func (a *Application) maintain(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if a.throttle != nil {
				a.throttle.Prune(now)
			}
			if a.store == nil {
				continue
			}
			removed, err := a.store.PruneRuns(ctx, now.Add(-runLedgerRetention))
			if err != nil {
				a.logger.Warn("run ledger prune failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				a.logger.Debug("run ledger pruned", zap.Int("removed", removed))
			}
		}
	}
}

// Diagnostics returns the diagnostics hub if configured.
func (a *Application) Diagnostics() *diagnostics.Hub {
	if a == nil {
		return nil
	}
	return a.diagnostics
}
