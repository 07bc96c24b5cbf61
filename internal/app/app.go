package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"hive/internal/app/automation"
	"hive/internal/app/connections"
	"hive/internal/domain"
	"hive/internal/infra/access"
	"hive/internal/infra/catalog"
	"hive/internal/infra/conncache"
	"hive/internal/infra/dispatch"
	"hive/internal/infra/store"
	"hive/internal/infra/telemetry"
)

// App is the entry point behind the CLI commands.
type App struct {
	logger *zap.Logger
	logs   *telemetry.LogBroadcaster
}

// ServeConfig configures the long-running service.
type ServeConfig struct {
	ConfigPath string
}

// ValidateConfig names the config file to check.
type ValidateConfig struct {
	ConfigPath string
}

// SeedConfig names the config and the fixture to import.
type SeedConfig struct {
	ConfigPath string
	File       string
}

// ResolveConfig asks for the resolved inputs of one tool instance.
type ResolveConfig struct {
	ConfigPath  string
	InstanceID  string
	SpaceID     string
	BypassCache bool
}

// ResolveReport is what a tool instance sees after resolution.
type ResolveReport struct {
	InstanceID string                     `json:"instanceId"`
	Resolved   domain.ResolvedConnections `json:"resolved"`
	Elements   []*domain.ToolElement      `json:"elements"`
}

// PreviewConfig asks for a dry run of one automation.
type PreviewConfig struct {
	ConfigPath   string
	AutomationID string
	UserID       string
	DeploymentID string
	MockState    map[string]any
}

func New(logger *zap.Logger) *App {
	return NewWithBroadcaster(logger, nil)
}

// NewWithBroadcaster shares an existing log broadcaster with the service.
func NewWithBroadcaster(logger *zap.Logger, logs *telemetry.LogBroadcaster) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		logger: logger,
		logs:   logs,
	}
}

// Serve runs the service until ctx is done.
func (a *App) Serve(ctx context.Context, cfg ServeConfig) error {
	application, cleanup, err := InitializeApplication(ctx, cfg, LoggingConfig{
		Logger:      a.logger,
		Broadcaster: a.logs,
	})
	if err != nil {
		return err
	}
	defer cleanup()
	return application.Run()
}

// ValidateConfig loads and normalizes the config without starting anything.
func (a *App) ValidateConfig(ctx context.Context, cfg ValidateConfig) (domain.RuntimeConfig, error) {
	if strings.TrimSpace(cfg.ConfigPath) == "" {
		return domain.RuntimeConfig{}, errors.New("config path is required")
	}
	return catalog.NewLoader(a.logger).LoadRuntimeConfig(ctx, cfg.ConfigPath)
}

// Seed imports a fixture into the configured store.
func (a *App) Seed(ctx context.Context, cfg SeedConfig) (catalog.SeedSummary, error) {
	seed, err := catalog.LoadSeed(cfg.File)
	if err != nil {
		return catalog.SeedSummary{}, err
	}
	if problems := seed.Validate(); len(problems) > 0 {
		return catalog.SeedSummary{}, fmt.Errorf("seed validation failed: %s", strings.Join(problems, "; "))
	}
	runtimeCfg, err := a.loadConfig(ctx, cfg.ConfigPath)
	if err != nil {
		return catalog.SeedSummary{}, err
	}
	st, err := store.Open(runtimeCfg.Storage.Path)
	if err != nil {
		return catalog.SeedSummary{}, err
	}
	defer a.closeStore(st)

	summary, err := seed.Apply(ctx, st)
	if err != nil {
		return summary, err
	}
	a.logger.Info("seed applied",
		zap.String("file", cfg.File),
		zap.Int("tools", summary.Tools),
		zap.Int("connections", summary.Connections),
		zap.Int("automations", summary.Automations),
	)
	return summary, nil
}

// Resolve resolves a tool instance's inbound connections and injects the
// values into its elements.
func (a *App) Resolve(ctx context.Context, cfg ResolveConfig) (ResolveReport, error) {
	if strings.TrimSpace(cfg.InstanceID) == "" {
		return ResolveReport{}, domain.E(domain.CodeInvalidArgument, "resolve", "instance id is required", domain.ErrInvalidRequest)
	}
	runtimeCfg, err := a.loadConfig(ctx, cfg.ConfigPath)
	if err != nil {
		return ResolveReport{}, err
	}
	st, err := store.Open(runtimeCfg.Storage.Path)
	if err != nil {
		return ResolveReport{}, err
	}
	defer a.closeStore(st)

	service := connections.NewService(st, conncache.New(), connections.Options{
		TTL:         connections.TTLPolicyFromConfig(runtimeCfg.Connections),
		Concurrency: runtimeCfg.Connections.ResolveConcurrency,
		Logger:      a.logger,
	})
	resolved, err := service.ResolveConnections(ctx, cfg.InstanceID, cfg.SpaceID, domain.ResolveOptions{BypassCache: cfg.BypassCache})
	if err != nil {
		return ResolveReport{}, err
	}
	elements, err := st.GetToolElements(ctx, cfg.InstanceID)
	if err != nil {
		return ResolveReport{}, err
	}
	return ResolveReport{
		InstanceID: cfg.InstanceID,
		Resolved:   resolved,
		Elements:   service.InjectIntoElements(elements, resolved),
	}, nil
}

// Preview dry-runs an automation against stored or mocked state.
func (a *App) Preview(ctx context.Context, cfg PreviewConfig) (automation.TestResult, error) {
	runtimeCfg, err := a.loadConfig(ctx, cfg.ConfigPath)
	if err != nil {
		return automation.TestResult{}, err
	}
	loc, err := NewAutomationLocation(runtimeCfg)
	if err != nil {
		return automation.TestResult{}, err
	}
	st, err := store.Open(runtimeCfg.Storage.Path)
	if err != nil {
		return automation.TestResult{}, err
	}
	defer a.closeStore(st)

	dispatcher := dispatch.NewDispatcher(nil, nil, nil, dispatch.Options{
		MaxTriggerDepth: runtimeCfg.Automation.MaxTriggerDepth,
		Logger:          a.logger,
	})
	engine := automation.NewEngine(st, st, dispatcher, access.NewOwnerOrAdmin(runtimeCfg.Access.AdminUsers), automation.Options{
		Limits:   runtimeCfg.Automation.DefaultLimits(),
		Location: loc,
		Logger:   a.logger,
		Clock:    time.Now,
	})
	return engine.TestAutomation(ctx, automation.TestRequest{
		AutomationID: cfg.AutomationID,
		DeploymentID: cfg.DeploymentID,
		UserID:       cfg.UserID,
		MockState:    cfg.MockState,
	})
}

func (a *App) loadConfig(ctx context.Context, path string) (domain.RuntimeConfig, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.DefaultRuntimeConfig(), nil
	}
	return catalog.NewLoader(a.logger).LoadRuntimeConfig(ctx, path)
}

func (a *App) closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		a.logger.Warn("store close failed", zap.Error(err))
	}
}
