package domain

// RuntimeConfig is the normalised service configuration.
type RuntimeConfig struct {
	Storage       StorageConfig       `json:"storage"`
	HTTP          HTTPConfig          `json:"http"`
	Observability ObservabilityConfig `json:"observability"`
	Connections   ConnectionsConfig   `json:"connections"`
	Automation    AutomationConfig    `json:"automation"`
	Access        AccessConfig        `json:"access"`
}

// StorageConfig locates the document store.
type StorageConfig struct {
	Path string `json:"path"`
}

// HTTPConfig configures the JSON API listener.
type HTTPConfig struct {
	ListenAddress         string `json:"listenAddress"`
	RequestTimeoutSeconds int    `json:"requestTimeoutSeconds"`
}

// ObservabilityConfig configures the metrics and health listener.
type ObservabilityConfig struct {
	ListenAddress  string `json:"listenAddress"`
	MetricsEnabled *bool  `json:"metricsEnabled,omitempty"`
	HealthzEnabled *bool  `json:"healthzEnabled,omitempty"`
}

// ConnectionsConfig tunes connection resolution and caching.
type ConnectionsConfig struct {
	CountersTTLSeconds    int `json:"countersTTLSeconds"`
	CollectionsTTLSeconds int `json:"collectionsTTLSeconds"`
	ComputedTTLSeconds    int `json:"computedTTLSeconds"`
	TimelineTTLSeconds    int `json:"timelineTTLSeconds"`
	ResolveConcurrency    int `json:"resolveConcurrency"`
}

// AutomationConfig tunes the automation engine.
type AutomationConfig struct {
	MaxRunsPerDay           int    `json:"maxRunsPerDay"`
	CooldownSeconds         int    `json:"cooldownSeconds"`
	MaxTriggerDepth         int    `json:"maxTriggerDepth"`
	EventTimeoutSeconds     int    `json:"eventTimeoutSeconds"`
	ScheduleIntervalSeconds int    `json:"scheduleIntervalSeconds"`
	EventsPerSecond         int    `json:"eventsPerSecond"`
	EventBurst              int    `json:"eventBurst"`
	Timezone                string `json:"timezone"`
}

// DefaultLimits returns the platform-wide limits for automations without their own.
// A negative CooldownSeconds disables the default cooldown.
func (c AutomationConfig) DefaultLimits() AutomationLimits {
	limits := DefaultAutomationLimits
	if c.MaxRunsPerDay > 0 {
		limits.MaxRunsPerDay = c.MaxRunsPerDay
	}
	switch {
	case c.CooldownSeconds > 0:
		limits.CooldownSeconds = c.CooldownSeconds
	case c.CooldownSeconds < 0:
		limits.CooldownSeconds = 0
	}
	return limits
}

// AccessConfig lists users allowed to manage every tool.
type AccessConfig struct {
	AdminUsers []string `json:"adminUsers"`
}
