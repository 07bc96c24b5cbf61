package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"hive/internal/app/automation"
	"hive/internal/app/catalog"
	"hive/internal/app/connections"
	"hive/internal/app/httpapi"
	"hive/internal/domain"
	"hive/internal/infra/access"
	"hive/internal/infra/conncache"
	"hive/internal/infra/dispatch"
	"hive/internal/infra/eventbus"
	"hive/internal/infra/ratelimit"
	"hive/internal/infra/schedule"
	"hive/internal/infra/store"
	"hive/internal/infra/telemetry"
	"hive/internal/infra/telemetry/diagnostics"
)

func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

func NewMetrics(registry *prometheus.Registry) domain.Metrics {
	return telemetry.NewPrometheusMetrics(registry)
}

func NewHealthTracker() *telemetry.HealthTracker {
	return telemetry.NewHealthTracker()
}

func NewDiagnosticsHub(ctx context.Context, logs *telemetry.LogBroadcaster) *diagnostics.Hub {
	return diagnostics.NewHub(ctx, logs, diagnostics.HubOptions{})
}

func NewDiagnosticsProbe(hub *diagnostics.Hub) diagnostics.Probe {
	return hub
}

func NewConfigProvider(ctx context.Context, cfg ServeConfig, logger *zap.Logger) (*catalog.ConfigProvider, error) {
	return catalog.NewConfigProvider(ctx, cfg.ConfigPath, logger)
}

func NewRuntimeConfig(provider *catalog.ConfigProvider) domain.RuntimeConfig {
	return provider.Snapshot().Config
}

// NewAutomationLocation resolves the timezone that bounds daily run quotas.
func NewAutomationLocation(cfg domain.RuntimeConfig) (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.Automation.Timezone)
	if err != nil {
		return nil, fmt.Errorf("automation timezone: %w", err)
	}
	return loc, nil
}

func NewStore(cfg domain.RuntimeConfig, logger *zap.Logger) (*store.Store, func(), error) {
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Warn("store close failed", zap.Error(err))
		}
	}
	return st, cleanup, nil
}

func NewConnectionCache() *conncache.Cache {
	return conncache.New()
}

func NewConnectionService(
	st *store.Store,
	cache *conncache.Cache,
	cfg domain.RuntimeConfig,
	metrics domain.Metrics,
	probe diagnostics.Probe,
	logger *zap.Logger,
) *connections.Service {
	return connections.NewService(st, cache, connections.Options{
		TTL:         connections.TTLPolicyFromConfig(cfg.Connections),
		Concurrency: cfg.Connections.ResolveConcurrency,
		Metrics:     metrics,
		Logger:      logger,
		Probe:       probe,
	})
}

func NewEventBus(logger *zap.Logger) (*eventbus.Bus, func()) {
	bus := eventbus.New(eventbus.Options{Logger: logger})
	cleanup := func() {
		if err := bus.Close(); err != nil {
			logger.Warn("event bus close failed", zap.Error(err))
		}
	}
	return bus, cleanup
}

func NewToolInvoker(bus *eventbus.Bus) *eventbus.Invoker {
	return eventbus.NewInvoker(bus, time.Now)
}

func NewDispatcher(st *store.Store, invoker *eventbus.Invoker, cfg domain.RuntimeConfig, metrics domain.Metrics, logger *zap.Logger) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(st, st, invoker, dispatch.Options{
		MaxTriggerDepth: cfg.Automation.MaxTriggerDepth,
		Metrics:         metrics,
		Logger:          logger,
	})
}

func NewAccessChecker(cfg domain.RuntimeConfig) *access.OwnerOrAdmin {
	return access.NewOwnerOrAdmin(cfg.Access.AdminUsers)
}

func NewAutomationEngine(
	st *store.Store,
	dispatcher *dispatch.Dispatcher,
	checker *access.OwnerOrAdmin,
	cfg domain.RuntimeConfig,
	loc *time.Location,
	metrics domain.Metrics,
	probe diagnostics.Probe,
	logger *zap.Logger,
) *automation.Engine {
	return automation.NewEngine(st, st, dispatcher, checker, automation.Options{
		Limits:   cfg.Automation.DefaultLimits(),
		Location: loc,
		Metrics:  metrics,
		Logger:   logger,
		Probe:    probe,
	})
}

func NewAutomationWorker(engine *automation.Engine, bus *eventbus.Bus, cfg domain.RuntimeConfig, logger *zap.Logger) *automation.Worker {
	return automation.NewWorker(engine, bus, automation.WorkerOptions{
		EventTimeout: cfg.Automation.EventTimeout(),
		Logger:       logger,
	})
}

func NewScheduleRunner(
	st *store.Store,
	bus *eventbus.Bus,
	cfg domain.RuntimeConfig,
	loc *time.Location,
	health *telemetry.HealthTracker,
	logger *zap.Logger,
) *schedule.Runner {
	interval := cfg.Automation.ScheduleInterval()
	return schedule.NewRunner(st, bus, schedule.RunnerOptions{
		Interval:  interval,
		Location:  loc,
		Logger:    logger,
		Heartbeat: health.Register("schedule", 3*interval),
	})
}

func NewEventThrottle(cfg domain.RuntimeConfig) *ratelimit.EventThrottle {
	return ratelimit.NewEventThrottle(float64(cfg.Automation.EventsPerSecond), cfg.Automation.EventBurst)
}

func NewHTTPAPI(
	resolver *connections.Service,
	st *store.Store,
	engine *automation.Engine,
	bus *eventbus.Bus,
	throttle *ratelimit.EventThrottle,
	cfg domain.RuntimeConfig,
	metrics domain.Metrics,
	logger *zap.Logger,
) *httpapi.API {
	return httpapi.New(httpapi.Options{
		Resolver:       resolver,
		Elements:       st,
		States:         st,
		Previewer:      engine,
		Publisher:      bus,
		Throttle:       throttle,
		Metrics:        metrics,
		Logger:         logger,
		RequestTimeout: cfg.HTTP.RequestTimeout(),
	})
}
