// Package catalog loads the runtime configuration and seed fixtures.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"hive/internal/domain"
)

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("catalog")}
}

func newRuntimeViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setRuntimeDefaults(v)
	return v
}

func setRuntimeDefaults(v *viper.Viper) {
	v.SetDefault("storage.path", domain.DefaultStoragePath)
	v.SetDefault("http.listenAddress", domain.DefaultHTTPListenAddress)
	v.SetDefault("http.requestTimeoutSeconds", domain.DefaultHTTPRequestTimeoutSeconds)
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddress)
	v.SetDefault("observability.metricsEnabled", domain.DefaultObservabilityMetricsEnabled)
	v.SetDefault("observability.healthzEnabled", domain.DefaultObservabilityHealthzEnabled)
	v.SetDefault("connections.countersTTLSeconds", domain.DefaultCountersTTLSeconds)
	v.SetDefault("connections.collectionsTTLSeconds", domain.DefaultCollectionsTTLSeconds)
	v.SetDefault("connections.computedTTLSeconds", domain.DefaultComputedTTLSeconds)
	v.SetDefault("connections.timelineTTLSeconds", domain.DefaultTimelineTTLSeconds)
	v.SetDefault("connections.resolveConcurrency", domain.DefaultResolveConcurrency)
	v.SetDefault("automation.maxRunsPerDay", domain.DefaultMaxRunsPerDay)
	v.SetDefault("automation.cooldownSeconds", domain.DefaultCooldownSeconds)
	v.SetDefault("automation.maxTriggerDepth", domain.DefaultMaxTriggerDepth)
	v.SetDefault("automation.eventTimeoutSeconds", domain.DefaultEventTimeoutSeconds)
	v.SetDefault("automation.scheduleIntervalSeconds", domain.DefaultScheduleIntervalSeconds)
	v.SetDefault("automation.eventsPerSecond", domain.DefaultEventsPerSecond)
	v.SetDefault("automation.eventBurst", domain.DefaultEventBurst)
	v.SetDefault("automation.timezone", domain.DefaultAutomationTimezone)
	v.SetDefault("access.adminUsers", []string{})
}

type rawRuntimeConfig struct {
	Storage       rawStorageConfig       `mapstructure:"storage"`
	HTTP          rawHTTPConfig          `mapstructure:"http"`
	Observability rawObservabilityConfig `mapstructure:"observability"`
	Connections   rawConnectionsConfig   `mapstructure:"connections"`
	Automation    rawAutomationConfig    `mapstructure:"automation"`
	Access        rawAccessConfig        `mapstructure:"access"`
}

type rawStorageConfig struct {
	Path string `mapstructure:"path"`
}

type rawHTTPConfig struct {
	ListenAddress         string `mapstructure:"listenAddress"`
	RequestTimeoutSeconds int    `mapstructure:"requestTimeoutSeconds"`
}

type rawObservabilityConfig struct {
	ListenAddress  string `mapstructure:"listenAddress"`
	MetricsEnabled *bool  `mapstructure:"metricsEnabled"`
	HealthzEnabled *bool  `mapstructure:"healthzEnabled"`
}

type rawConnectionsConfig struct {
	CountersTTLSeconds    int `mapstructure:"countersTTLSeconds"`
	CollectionsTTLSeconds int `mapstructure:"collectionsTTLSeconds"`
	ComputedTTLSeconds    int `mapstructure:"computedTTLSeconds"`
	TimelineTTLSeconds    int `mapstructure:"timelineTTLSeconds"`
	ResolveConcurrency    int `mapstructure:"resolveConcurrency"`
}

type rawAutomationConfig struct {
	MaxRunsPerDay           int    `mapstructure:"maxRunsPerDay"`
	CooldownSeconds         int    `mapstructure:"cooldownSeconds"`
	MaxTriggerDepth         int    `mapstructure:"maxTriggerDepth"`
	EventTimeoutSeconds     int    `mapstructure:"eventTimeoutSeconds"`
	ScheduleIntervalSeconds int    `mapstructure:"scheduleIntervalSeconds"`
	EventsPerSecond         int    `mapstructure:"eventsPerSecond"`
	EventBurst              int    `mapstructure:"eventBurst"`
	Timezone                string `mapstructure:"timezone"`
}

type rawAccessConfig struct {
	AdminUsers []string `mapstructure:"adminUsers"`
}

// LoadRuntimeConfig reads, expands and validates the config file at path.
func (l *Loader) LoadRuntimeConfig(ctx context.Context, path string) (domain.RuntimeConfig, error) {
	if path == "" {
		return domain.RuntimeConfig{}, errors.New("config path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RuntimeConfig{}, fmt.Errorf("read config: %w", err)
	}
	return l.ParseRuntimeConfig(ctx, path, data)
}

// ParseRuntimeConfig decodes raw YAML. source only labels log lines.
func (l *Loader) ParseRuntimeConfig(ctx context.Context, source string, data []byte) (domain.RuntimeConfig, error) {
	expanded, missing, err := expandConfigEnv(data)
	if err != nil {
		return domain.RuntimeConfig{}, err
	}
	if len(missing) > 0 {
		l.logger.Warn("missing environment variables in config", zap.String("path", source), zap.Strings("missing", missing))
	}

	rawCfg, err := decodeRuntimeConfig(expanded)
	if err != nil {
		return domain.RuntimeConfig{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.RuntimeConfig{}, err
	}

	runtime, errs := normalizeRuntimeConfig(rawCfg)
	if len(errs) > 0 {
		return domain.RuntimeConfig{}, errors.New(strings.Join(errs, "; "))
	}
	return runtime, nil
}

// DefaultRuntimeConfig returns the configuration used when no file is given.
func DefaultRuntimeConfig() domain.RuntimeConfig {
	rawCfg, err := decodeRuntimeConfig("{}")
	if err != nil {
		panic(fmt.Sprintf("decode default config: %v", err))
	}
	runtime, _ := normalizeRuntimeConfig(rawCfg)
	return runtime
}

func decodeRuntimeConfig(expanded string) (rawRuntimeConfig, error) {
	v := newRuntimeViper()
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return rawRuntimeConfig{}, fmt.Errorf("parse config: %w", err)
	}
	var cfg rawRuntimeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return rawRuntimeConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func normalizeRuntimeConfig(cfg rawRuntimeConfig) (domain.RuntimeConfig, []string) {
	var errs []string

	storagePath := strings.TrimSpace(cfg.Storage.Path)
	if storagePath == "" {
		errs = append(errs, "storage.path is required")
	}

	httpCfg, httpErrs := normalizeHTTPConfig(cfg.HTTP)
	errs = append(errs, httpErrs...)

	observabilityCfg, observabilityErrs := normalizeObservabilityConfig(cfg.Observability)
	errs = append(errs, observabilityErrs...)

	connectionsCfg, connectionsErrs := normalizeConnectionsConfig(cfg.Connections)
	errs = append(errs, connectionsErrs...)

	automationCfg, automationErrs := normalizeAutomationConfig(cfg.Automation)
	errs = append(errs, automationErrs...)

	admins := make([]string, 0, len(cfg.Access.AdminUsers))
	for _, user := range cfg.Access.AdminUsers {
		if user = strings.TrimSpace(user); user != "" {
			admins = append(admins, user)
		}
	}

	return domain.RuntimeConfig{
		Storage:       domain.StorageConfig{Path: storagePath},
		HTTP:          httpCfg,
		Observability: observabilityCfg,
		Connections:   connectionsCfg,
		Automation:    automationCfg,
		Access:        domain.AccessConfig{AdminUsers: admins},
	}, errs
}

func normalizeHTTPConfig(cfg rawHTTPConfig) (domain.HTTPConfig, []string) {
	var errs []string
	addr := strings.TrimSpace(cfg.ListenAddress)
	if addr == "" {
		addr = domain.DefaultHTTPListenAddress
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		errs = append(errs, fmt.Sprintf("http.listenAddress %q is invalid: %v", addr, err))
	}
	timeout := cfg.RequestTimeoutSeconds
	if timeout <= 0 {
		errs = append(errs, "http.requestTimeoutSeconds must be > 0")
	}
	return domain.HTTPConfig{ListenAddress: addr, RequestTimeoutSeconds: timeout}, errs
}

func normalizeObservabilityConfig(cfg rawObservabilityConfig) (domain.ObservabilityConfig, []string) {
	addr := strings.TrimSpace(cfg.ListenAddress)
	if addr == "" {
		addr = domain.DefaultObservabilityListenAddress
	}
	metricsEnabled := domain.DefaultObservabilityMetricsEnabled
	if cfg.MetricsEnabled != nil {
		metricsEnabled = *cfg.MetricsEnabled
	}
	healthzEnabled := domain.DefaultObservabilityHealthzEnabled
	if cfg.HealthzEnabled != nil {
		healthzEnabled = *cfg.HealthzEnabled
	}
	return domain.ObservabilityConfig{
		ListenAddress:  addr,
		MetricsEnabled: &metricsEnabled,
		HealthzEnabled: &healthzEnabled,
	}, nil
}

func normalizeConnectionsConfig(cfg rawConnectionsConfig) (domain.ConnectionsConfig, []string) {
	var errs []string
	for _, field := range []struct {
		name  string
		value int
	}{
		{"connections.countersTTLSeconds", cfg.CountersTTLSeconds},
		{"connections.collectionsTTLSeconds", cfg.CollectionsTTLSeconds},
		{"connections.computedTTLSeconds", cfg.ComputedTTLSeconds},
		{"connections.timelineTTLSeconds", cfg.TimelineTTLSeconds},
	} {
		if field.value < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", field.name))
		}
	}
	concurrency := cfg.ResolveConcurrency
	if concurrency < 0 {
		errs = append(errs, "connections.resolveConcurrency must be >= 0")
	}
	if concurrency <= 0 {
		concurrency = domain.DefaultResolveConcurrency
	}
	return domain.ConnectionsConfig{
		CountersTTLSeconds:    cfg.CountersTTLSeconds,
		CollectionsTTLSeconds: cfg.CollectionsTTLSeconds,
		ComputedTTLSeconds:    cfg.ComputedTTLSeconds,
		TimelineTTLSeconds:    cfg.TimelineTTLSeconds,
		ResolveConcurrency:    concurrency,
	}, errs
}

func normalizeAutomationConfig(cfg rawAutomationConfig) (domain.AutomationConfig, []string) {
	var errs []string
	if cfg.MaxRunsPerDay < 0 {
		errs = append(errs, "automation.maxRunsPerDay must be >= 0")
	}
	if cfg.MaxTriggerDepth <= 0 {
		errs = append(errs, "automation.maxTriggerDepth must be > 0")
	}
	if cfg.EventTimeoutSeconds <= 0 {
		errs = append(errs, "automation.eventTimeoutSeconds must be > 0")
	}
	if cfg.ScheduleIntervalSeconds <= 0 {
		errs = append(errs, "automation.scheduleIntervalSeconds must be > 0")
	}
	if cfg.EventsPerSecond < 0 {
		errs = append(errs, "automation.eventsPerSecond must be >= 0")
	}
	if cfg.EventBurst < 0 {
		errs = append(errs, "automation.eventBurst must be >= 0")
	}
	timezone := strings.TrimSpace(cfg.Timezone)
	if timezone == "" {
		timezone = domain.DefaultAutomationTimezone
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		errs = append(errs, fmt.Sprintf("automation.timezone %q is unknown", timezone))
	}
	return domain.AutomationConfig{
		MaxRunsPerDay:           cfg.MaxRunsPerDay,
		CooldownSeconds:         cfg.CooldownSeconds,
		MaxTriggerDepth:         cfg.MaxTriggerDepth,
		EventTimeoutSeconds:     cfg.EventTimeoutSeconds,
		ScheduleIntervalSeconds: cfg.ScheduleIntervalSeconds,
		EventsPerSecond:         cfg.EventsPerSecond,
		EventBurst:              cfg.EventBurst,
		Timezone:                timezone,
	}, errs
}
