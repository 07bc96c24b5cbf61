package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"hive/internal/app/automation"
	"hive/internal/domain"
	"hive/internal/infra/hashutil"
	"hive/internal/infra/telemetry"
)

type elementsResponse struct {
	InstanceID string                `json:"instanceId"`
	Elements   []*domain.ToolElement `json:"elements"`
	ResolvedAt time.Time             `json:"resolvedAt"`
	Count      int                   `json:"count"`
	ErrorCount int                   `json:"errorCount"`
}

type cacheResponse struct {
	Cleared int               `json:"cleared"`
	Keys    []domain.CacheKey `json:"keys,omitempty"`
}

type eventAccepted struct {
	EventID string `json:"eventId"`
}

func (a *API) resolveConnections(w http.ResponseWriter, r *http.Request) {
	instanceID := mux.Vars(r)["instanceId"]
	opts, err := resolveOptions(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resolved, err := a.resolver.ResolveConnections(r.Context(), instanceID, r.URL.Query().Get("spaceId"), opts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if a.notModified(w, r, hashutil.ResolvedETag(a.logger, resolved)) {
		return
	}
	a.writeJSON(w, r, http.StatusOK, resolved)
}

func (a *API) resolvedElements(w http.ResponseWriter, r *http.Request) {
	if a.elements == nil {
		a.writeError(w, r, domain.E(domain.CodeUnavailable, "elements", "no element repository configured", nil))
		return
	}
	instanceID := mux.Vars(r)["instanceId"]
	opts, err := resolveOptions(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	elements, err := a.elements.GetToolElements(r.Context(), instanceID)
	if err != nil {
		a.writeError(w, r, domain.Wrap(domain.CodeUnavailable, "load elements", err))
		return
	}
	resolved, err := a.resolver.ResolveConnections(r.Context(), instanceID, r.URL.Query().Get("spaceId"), opts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	injected := a.resolver.InjectIntoElements(elements, resolved)
	if a.notModified(w, r, hashutil.ElementsETag(a.logger, injected)) {
		return
	}
	a.writeJSON(w, r, http.StatusOK, elementsResponse{
		InstanceID: instanceID,
		Elements:   injected,
		ResolvedAt: resolved.ResolvedAt,
		Count:      resolved.Count,
		ErrorCount: resolved.ErrorCount,
	})
}

func (a *API) putState(w http.ResponseWriter, r *http.Request) {
	if a.states == nil {
		a.writeError(w, r, domain.E(domain.CodeUnavailable, "put state", "no state writer configured", nil))
		return
	}
	instanceID := mux.Vars(r)["instanceId"]
	var state domain.SharedState
	if err := decodeBody(r, &state); err != nil {
		a.writeError(w, r, err)
		return
	}
	stored, err := a.states.PutSharedState(r.Context(), instanceID, state)
	if err != nil {
		a.writeError(w, r, domain.Wrap(domain.CodeUnavailable, "put state", err))
		return
	}
	invalidated := a.resolver.InvalidateSourceTool(instanceID)
	telemetry.LoggerWithRequest(r.Context(), a.logger).Debug("shared state replaced",
		telemetry.InstanceIDField(instanceID),
		zap.Int64("version", stored.Version),
		zap.Int("invalidated", len(invalidated)),
	)
	a.writeJSON(w, r, http.StatusOK, stored)
}

func (a *API) connectionValue(w http.ResponseWriter, r *http.Request) {
	opts, err := resolveOptions(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resolved, err := a.resolver.GetConnectionValueByID(r.Context(), mux.Vars(r)["connectionId"], opts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, resolved)
}

func (a *API) clearCache(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query()["key"]
	keys := make([]domain.CacheKey, 0, len(raw))
	for _, key := range raw {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, domain.CacheKey(key))
		}
	}
	cleared := a.resolver.ClearCache(keys...)
	a.writeJSON(w, r, http.StatusOK, cacheResponse{Cleared: cleared, Keys: keys})
}

func (a *API) invalidateSource(w http.ResponseWriter, r *http.Request) {
	keys := a.resolver.InvalidateSourceTool(mux.Vars(r)["sourceInstanceId"])
	a.writeJSON(w, r, http.StatusOK, cacheResponse{Cleared: len(keys), Keys: keys})
}

func (a *API) testAutomation(w http.ResponseWriter, r *http.Request) {
	if a.previewer == nil {
		a.writeError(w, r, domain.E(domain.CodeUnavailable, "test automation", "no automation engine configured", nil))
		return
	}
	var req automation.TestRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	req.AutomationID = mux.Vars(r)["automationId"]
	if user := strings.TrimSpace(r.Header.Get(UserIDHeader)); user != "" {
		req.UserID = user
	}
	result, err := a.previewer.TestAutomation(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, result)
}

func (a *API) publishEvent(w http.ResponseWriter, r *http.Request) {
	if a.publisher == nil {
		a.writeError(w, r, domain.E(domain.CodeUnavailable, "publish event", "no event publisher configured", nil))
		return
	}
	var event domain.AutomationEvent
	if err := decodeBody(r, &event); err != nil {
		a.writeError(w, r, err)
		return
	}
	switch event.Kind {
	case domain.EventKindMessage, domain.EventKindExternal:
	case "":
		a.writeError(w, r, domain.E(domain.CodeInvalidArgument, "publish event", "event kind is required", domain.ErrInvalidRequest))
		return
	default:
		// Schedule events come only from the schedule runner.
		a.writeError(w, r, domain.E(domain.CodeInvalidArgument, "publish event",
			fmt.Sprintf("event kind %q cannot be published", event.Kind), domain.ErrInvalidRequest))
		return
	}
	// Trigger chains are only extended by triggerTool dispatch.
	event.Chain = nil
	scope := event.SpaceID
	if scope == "" {
		scope = event.DeploymentID
	}
	if scope == "" {
		a.writeError(w, r, domain.E(domain.CodeInvalidArgument, "publish event", "spaceId or deploymentId is required", domain.ErrInvalidRequest))
		return
	}
	if !a.throttle.Allow(scope, a.now()) {
		a.metrics.ObserveThrottledEvent(scope)
		telemetry.LoggerWithRequest(r.Context(), a.logger).Debug("event throttled",
			telemetry.SpaceIDField(scope),
			zap.String("kind", string(event.Kind)),
		)
		a.writeError(w, r, domain.E(domain.CodeResourceExhausted, "publish event", "event rate exceeded for "+scope, domain.ErrEventThrottled))
		return
	}
	if event.ID == "" {
		event.ID = telemetry.NewRequestID()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = a.now()
	}
	if err := a.publisher.Publish(r.Context(), event); err != nil {
		a.writeError(w, r, domain.Wrap(domain.CodeUnavailable, "publish event", err))
		return
	}
	a.writeJSON(w, r, http.StatusAccepted, eventAccepted{EventID: event.ID})
}

func (a *API) notModified(w http.ResponseWriter, r *http.Request, etag string) bool {
	if etag == "" {
		return false
	}
	quoted := `"` + etag + `"`
	w.Header().Set("ETag", quoted)
	if match := r.Header.Get("If-None-Match"); match == quoted || match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}
