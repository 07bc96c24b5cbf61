package telemetry

import (
	"time"

	"go.uber.org/zap"

	"hive/internal/domain"
)

const (
	FieldEvent        = "event"
	FieldInstanceID   = "instanceID"
	FieldSpaceID      = "spaceID"
	FieldConnectionID = "connectionID"
	FieldCacheKey     = "cacheKey"
	FieldAutomationID = "automationID"
	FieldDeploymentID = "deploymentID"
	FieldActionType   = "actionType"
	FieldTriggerType  = "triggerType"
	FieldDurationMs   = "duration_ms"
	FieldLogSource    = "log_source"
	FieldRequestID    = "request_id"
	FieldTraceID      = "trace_id"
	FieldSpanID       = "span_id"
)

const (
	EventResolveFailure   = "resolve_failure"
	EventCacheInvalidated = "cache_invalidated"
	EventAutomationRun    = "automation_run"
	EventAutomationSkip   = "automation_skip"
	EventStatsFailure     = "stats_failure"
	EventScheduleTick     = "schedule_tick"
	EventWorkerFailure    = "worker_failure"
	EventConfigReload     = "config_reload"
)

const (
	LogSourceCore = "core"
	LogSourceHTTP = "http"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func InstanceIDField(instanceID string) zap.Field {
	return zap.String(FieldInstanceID, instanceID)
}

func SpaceIDField(spaceID string) zap.Field {
	return zap.String(FieldSpaceID, spaceID)
}

func ConnectionIDField(connectionID string) zap.Field {
	return zap.String(FieldConnectionID, connectionID)
}

func CacheKeyField(key domain.CacheKey) zap.Field {
	return zap.String(FieldCacheKey, string(key))
}

func AutomationIDField(automationID string) zap.Field {
	return zap.String(FieldAutomationID, automationID)
}

func DeploymentIDField(deploymentID string) zap.Field {
	return zap.String(FieldDeploymentID, deploymentID)
}

func ActionTypeField(actionType domain.ActionType) zap.Field {
	return zap.String(FieldActionType, string(actionType))
}

func TriggerTypeField(triggerType domain.TriggerType) zap.Field {
	return zap.String(FieldTriggerType, string(triggerType))
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}

func TraceIDField(value string) zap.Field {
	return zap.String(FieldTraceID, value)
}

func SpanIDField(value string) zap.Field {
	return zap.String(FieldSpanID, value)
}
