//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
)

var CoreInfraSet = wire.NewSet(
	NewLogging,
	NewLogger,
	NewLogBroadcaster,
	NewMetricsRegistry,
	NewMetrics,
	NewHealthTracker,
	NewDiagnosticsHub,
	NewDiagnosticsProbe,
)

var ConfigSet = wire.NewSet(
	NewConfigProvider,
	NewRuntimeConfig,
	NewAutomationLocation,
)

var ServiceSet = wire.NewSet(
	NewStore,
	NewConnectionCache,
	NewConnectionService,
	NewEventBus,
	NewToolInvoker,
	NewDispatcher,
	NewAccessChecker,
	NewAutomationEngine,
	NewAutomationWorker,
	NewScheduleRunner,
	NewEventThrottle,
	NewHTTPAPI,
	NewReloadManager,
)

var AppSet = wire.NewSet(
	CoreInfraSet,
	ConfigSet,
	ServiceSet,
	wire.Struct(new(ApplicationOptions), "*"),
	NewApplication,
)
