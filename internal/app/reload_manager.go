package app

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"hive/internal/app/automation"
	"hive/internal/app/catalog"
	"hive/internal/app/connections"
	"hive/internal/domain"
	"hive/internal/infra/access"
	"hive/internal/infra/dispatch"
	"hive/internal/infra/ratelimit"
	"hive/internal/infra/telemetry"
)

// ReloadManager applies config updates to live services. Listener addresses
// and the storage path are read once at startup.
type ReloadManager struct {
	provider      *catalog.ConfigProvider
	connections   *connections.Service
	engine        *automation.Engine
	dispatcher    *dispatch.Dispatcher
	access        *access.OwnerOrAdmin
	throttle      *ratelimit.EventThrottle
	observability *telemetry.ObservabilityController
	logger        *zap.Logger
	appliedRev    atomic.Uint64
	now           domain.Clock
}

// NewReloadManager constructs a reload manager.
func NewReloadManager(
	provider *catalog.ConfigProvider,
	connectionService *connections.Service,
	engine *automation.Engine,
	dispatcher *dispatch.Dispatcher,
	checker *access.OwnerOrAdmin,
	throttle *ratelimit.EventThrottle,
	logger *zap.Logger,
) *ReloadManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReloadManager{
		provider:    provider,
		connections: connectionService,
		engine:      engine,
		dispatcher:  dispatcher,
		access:      checker,
		throttle:    throttle,
		logger:      logger.Named("reload"),
		now:         time.Now,
	}
}

// SetObservabilityController lets reloads restart the metrics listener.
func (m *ReloadManager) SetObservabilityController(controller *telemetry.ObservabilityController) {
	m.observability = controller
}

// AppliedRevision returns the last applied config revision.
func (m *ReloadManager) AppliedRevision() uint64 {
	return m.appliedRev.Load()
}

// Start applies updates until ctx is done.
func (m *ReloadManager) Start(ctx context.Context) {
	if m.provider == nil {
		return
	}
	m.appliedRev.Store(m.provider.Snapshot().Revision)
	updates := m.provider.Watch(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-updates:
				m.applyUpdate(ctx, update)
			}
		}
	}()
}

func (m *ReloadManager) applyUpdate(ctx context.Context, update catalog.ConfigUpdate) {
	if update.State.Revision <= m.appliedRev.Load() {
		return
	}
	if err := m.Apply(ctx, update.State.Config); err != nil {
		m.logger.Warn("config apply failed", zap.Uint64("revision", update.State.Revision), zap.Error(err))
		return
	}
	m.appliedRev.Store(update.State.Revision)
	m.logger.Info("config applied",
		telemetry.EventField(telemetry.EventConfigReload),
		zap.Uint64("revision", update.State.Revision),
		zap.String("source", string(update.Source)),
	)
}

// Apply pushes the tunable parts of cfg into the running services.
func (m *ReloadManager) Apply(ctx context.Context, cfg domain.RuntimeConfig) error {
	loc, err := NewAutomationLocation(cfg)
	if err != nil {
		return err
	}
	if m.connections != nil {
		m.connections.SetTTLPolicy(connections.TTLPolicyFromConfig(cfg.Connections))
		m.connections.SetConcurrency(cfg.Connections.ResolveConcurrency)
	}
	if m.engine != nil {
		m.engine.SetDefaults(cfg.Automation.DefaultLimits(), loc)
	}
	if m.dispatcher != nil {
		m.dispatcher.SetMaxTriggerDepth(cfg.Automation.MaxTriggerDepth)
	}
	if m.access != nil {
		m.access.SetAdmins(cfg.Access.AdminUsers)
	}
	if m.throttle != nil {
		m.throttle.SetRate(float64(cfg.Automation.EventsPerSecond), cfg.Automation.EventBurst, m.now())
	}
	if m.observability != nil {
		if err := m.observability.Apply(ctx, cfg.Observability); err != nil {
			m.logger.Warn("observability apply failed", zap.Error(err))
		}
	}
	return nil
}
