package domain

const (
	DefaultStoragePath                 = "data/hive.db"
	DefaultHTTPListenAddress           = "127.0.0.1:8080"
	DefaultObservabilityListenAddress  = "0.0.0.0:9090"
	DefaultCountersTTLSeconds          = 300
	DefaultCollectionsTTLSeconds       = 60
	DefaultComputedTTLSeconds          = 30
	DefaultTimelineTTLSeconds          = 10
	DefaultResolveConcurrency          = 8
	DefaultMaxRunsPerDay               = 100
	DefaultCooldownSeconds             = 60
	DefaultMaxTriggerDepth             = 5
	DefaultEventTimeoutSeconds         = 30
	DefaultScheduleIntervalSeconds     = 30
	DefaultEventsPerSecond             = 20
	DefaultEventBurst                  = 40
	DefaultAutomationTimezone          = "UTC"
	DefaultHTTPRequestTimeoutSeconds   = 15
	DefaultHTTPShutdownTimeoutSeconds  = 5
	DefaultObservabilityMetricsEnabled = true
	DefaultObservabilityHealthzEnabled = true
)

// DefaultAutomationLimits apply to automations stored without limits.
var DefaultAutomationLimits = AutomationLimits{
	MaxRunsPerDay:   DefaultMaxRunsPerDay,
	CooldownSeconds: DefaultCooldownSeconds,
}
