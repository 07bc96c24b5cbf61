package telemetry

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"hive/internal/domain"
)

// ObservabilityControllerOptions holds the fixed inputs of the observability
// listener. The Default* flags apply when the config leaves them unset.
type ObservabilityControllerOptions struct {
	DefaultMetricsEnabled bool
	DefaultHealthzEnabled bool
	Registry              prometheus.Gatherer
	Health                *HealthTracker
	Diagnostics           http.Handler
	Logger                *zap.Logger
}

// ListenerPlan is the resolved listener configuration.
type ListenerPlan struct {
	Addr           string
	MetricsEnabled bool
	HealthzEnabled bool
}

// Enabled reports whether any endpoint is served.
func (p ListenerPlan) Enabled() bool {
	return p.MetricsEnabled || p.HealthzEnabled
}

// ObservabilityController restarts the observability listener when its
// config changes and leaves it alone otherwise.
type ObservabilityController struct {
	opts   ObservabilityControllerOptions
	logger *zap.Logger

	mu      sync.Mutex
	current ListenerPlan
	stop    context.CancelFunc
	gen     uint64
}

func NewObservabilityController(opts ObservabilityControllerOptions) *ObservabilityController {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObservabilityController{
		opts:   opts,
		logger: logger.Named("observability"),
	}
}

// Plan resolves cfg against the controller defaults.
func (c *ObservabilityController) Plan(cfg domain.ObservabilityConfig) ListenerPlan {
	plan := ListenerPlan{
		Addr:           strings.TrimSpace(cfg.ListenAddress),
		MetricsEnabled: c.opts.DefaultMetricsEnabled,
		HealthzEnabled: c.opts.DefaultHealthzEnabled,
	}
	if plan.Addr == "" {
		plan.Addr = domain.DefaultObservabilityListenAddress
	}
	if cfg.MetricsEnabled != nil {
		plan.MetricsEnabled = *cfg.MetricsEnabled
	}
	if cfg.HealthzEnabled != nil {
		plan.HealthzEnabled = *cfg.HealthzEnabled
	}
	return plan
}

// Current returns the plan of the running listener, if any.
func (c *ObservabilityController) Current() (ListenerPlan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.stop != nil
}

// Apply starts, restarts or stops the listener to match cfg.
func (c *ObservabilityController) Apply(ctx context.Context, cfg domain.ObservabilityConfig) error {
	if c == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	plan := c.Plan(cfg)

	c.mu.Lock()
	defer c.mu.Unlock()

	if plan == c.current && c.stop != nil {
		return nil
	}
	c.stopLocked()
	c.current = plan
	if !plan.Enabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, stop := context.WithCancel(ctx)
	c.stop = stop
	c.gen++
	gen := c.gen

	c.logger.Info("observability listener starting",
		EventField(EventConfigReload),
		zap.String("addr", plan.Addr),
	)
	go c.serve(runCtx, plan, gen)
	return nil
}

func (c *ObservabilityController) serve(ctx context.Context, plan ListenerPlan, gen uint64) {
	err := StartHTTPServer(ctx, HTTPServerOptions{
		Addr:          plan.Addr,
		EnableMetrics: plan.MetricsEnabled,
		EnableHealthz: plan.HealthzEnabled,
		Health:        c.opts.Health,
		Registry:      c.opts.Registry,
		Diagnostics:   c.opts.Diagnostics,
	}, c.logger)
	if err != nil {
		c.logger.Error("observability listener failed", zap.String("addr", plan.Addr), zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A later Apply may already own the slot.
	if c.gen == gen {
		c.stop = nil
	}
}

// Stop shuts down the running listener, if any.
func (c *ObservabilityController) Stop() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.current = ListenerPlan{}
}

func (c *ObservabilityController) stopLocked() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
}
