package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"hive/internal/app/automation"
	"hive/internal/app/connections"
	"hive/internal/domain"
	"hive/internal/infra/ratelimit"
	"hive/internal/infra/store"
	"hive/internal/infra/telemetry"
)

var testNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.AutomationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.AutomationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type stubPreviewer struct {
	last automation.TestRequest
}

func (p *stubPreviewer) TestAutomation(_ context.Context, req automation.TestRequest) (automation.TestResult, error) {
	p.last = req
	switch req.UserID {
	case "":
		return automation.TestResult{}, domain.E(domain.CodePermissionDenied, "test automation", "user is required", domain.ErrPermissionDenied)
	case "stranger":
		return automation.TestResult{}, domain.E(domain.CodeNotFound, "test automation", "automation not found", domain.ErrAutomationNotFound)
	}
	return automation.TestResult{AutomationID: req.AutomationID, CanRun: true, Message: "1 of 1 action(s) would execute"}, nil
}

type throttleMetrics struct {
	telemetry.NoopMetrics
	mu        sync.Mutex
	throttled []string
}

func (m *throttleMetrics) ObserveThrottledEvent(spaceID string) {
	m.mu.Lock()
	m.throttled = append(m.throttled, spaceID)
	m.mu.Unlock()
}

type fixture struct {
	api       *API
	store     *store.Store
	publisher *recordingPublisher
	previewer *stubPreviewer
	metrics   *throttleMetrics
}

func newFixture(t *testing.T, throttle *ratelimit.EventThrottle) *fixture {
	t.Helper()
	clock := func() time.Time { return testNow }
	st, err := store.Open(filepath.Join(t.TempDir(), "hive.db"), store.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})
	ctx := context.Background()
	_, err = st.PutSharedState(ctx, "members-tool", domain.SharedState{Counters: map[string]float64{"members": 5}})
	require.NoError(t, err)
	require.NoError(t, st.PutElement(ctx, domain.ToolElement{
		InstanceID: "dashboard",
		ElementID:  "counter",
		Config:     map[string]any{"label": "Members"},
	}))
	require.NoError(t, st.PutConnection(ctx, domain.ToolConnection{
		ID:      "c1",
		Source:  domain.ConnectionSource{InstanceID: "members-tool", Path: "counters.members"},
		Target:  domain.ConnectionTarget{InstanceID: "dashboard", ElementID: "counter", InputPath: "value"},
		Enabled: true,
	}))

	f := &fixture{
		store:     st,
		publisher: &recordingPublisher{},
		previewer: &stubPreviewer{},
		metrics:   &throttleMetrics{},
	}
	f.api = New(Options{
		Resolver:  connections.NewTestService(st, clock),
		Elements:  st,
		States:    st,
		Previewer: f.previewer,
		Publisher: f.publisher,
		Throttle:  throttle,
		Metrics:   f.metrics,
		Clock:     clock,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	f.api.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestResolveConnectionsRoute(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/v1/instances/dashboard/connections", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(telemetry.RequestIDHeader))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	resolved := decode[domain.ResolvedConnections](t, rec)
	assert.Equal(t, 1, resolved.Count)
	entry := resolved.Values[domain.NewCacheKey("dashboard", "counter", "value")]
	assert.Equal(t, domain.ConnectionStatusConnected, entry.Status)
	assert.Equal(t, 5.0, entry.Value)

	again := f.do(t, http.MethodGet, "/v1/instances/dashboard/connections", nil, map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, again.Code)
}

func TestResolveConnectionsRejectsBadQuery(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/v1/instances/dashboard/connections?ttlSeconds=-4", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, string(domain.CodeInvalidArgument), body.Error.Code)

	rec = f.do(t, http.MethodGet, "/v1/instances/dashboard/connections?bypassCache=maybe", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, ttl := range []string{"9223372037", "99999999999999999999"} {
		rec = f.do(t, http.MethodGet, "/v1/instances/dashboard/connections?ttlSeconds="+ttl, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, ttl)
	}

	rec = f.do(t, http.MethodGet, "/v1/instances/dashboard/connections?ttlSeconds=9223372036", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resolved := decode[domain.ResolvedConnections](t, rec)
	assert.Equal(t, time.Duration(9223372036)*time.Second, resolved.Values[domain.NewCacheKey("dashboard", "counter", "value")].TTL)
}

func TestElementsRouteInjectsValues(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/v1/instances/dashboard/elements", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[elementsResponse](t, rec)
	require.Len(t, body.Elements, 1)
	config := body.Elements[0].Config
	assert.Equal(t, 5.0, config["value"])
	assert.Equal(t, "Members", config["label"])
	assert.Contains(t, config, domain.ConnectedFieldsKey)
}

func TestPutStateInvalidatesCachedValues(t *testing.T) {
	f := newFixture(t, nil)

	first := decode[domain.ResolvedConnections](t, f.do(t, http.MethodGet, "/v1/instances/dashboard/connections", nil, nil))
	assert.Equal(t, 5.0, first.Values[domain.NewCacheKey("dashboard", "counter", "value")].Value)

	rec := f.do(t, http.MethodPut, "/v1/instances/members-tool/state",
		domain.SharedState{Counters: map[string]float64{"members": 9}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[domain.SharedState](t, rec)
	assert.Equal(t, int64(2), stored.Version)

	second := decode[domain.ResolvedConnections](t, f.do(t, http.MethodGet, "/v1/instances/dashboard/connections", nil, nil))
	entry := second.Values[domain.NewCacheKey("dashboard", "counter", "value")]
	assert.Equal(t, 9.0, entry.Value)
	assert.False(t, entry.Cached)
}

func TestConnectionValueRoute(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/v1/connections/c1/value", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5.0, decode[domain.ResolvedConnection](t, rec).Value)

	missing := f.do(t, http.MethodGet, "/v1/connections/nope/value", nil, nil)
	require.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, string(domain.CodeNotFound), decode[errorBody](t, missing).Error.Code)
}

func TestCacheRoutes(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodGet, "/v1/instances/dashboard/connections", nil, nil)

	rec := f.do(t, http.MethodPost, "/v1/cache/invalidate/members-tool", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	invalidated := decode[cacheResponse](t, rec)
	assert.Equal(t, 1, invalidated.Cleared)
	assert.Equal(t, []domain.CacheKey{domain.NewCacheKey("dashboard", "counter", "value")}, invalidated.Keys)

	f.do(t, http.MethodGet, "/v1/instances/dashboard/connections", nil, nil)
	rec = f.do(t, http.MethodDelete, "/v1/cache", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[cacheResponse](t, rec).Cleared)

	rec = f.do(t, http.MethodDelete, "/v1/cache?key=dashboard:none:value", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[cacheResponse](t, rec).Cleared)
}

func TestAutomationTestRoute(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/v1/automations/welcome/test",
		map[string]any{"userId": "body-user", "mockState": map[string]any{"counters": map[string]any{"members": 10}}},
		map[string]string{UserIDHeader: "owner"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "welcome", f.previewer.last.AutomationID)
	assert.Equal(t, "owner", f.previewer.last.UserID, "header wins over body")
	assert.NotNil(t, f.previewer.last.MockState)
	assert.True(t, decode[automation.TestResult](t, rec).CanRun)

	rec = f.do(t, http.MethodPost, "/v1/automations/welcome/test", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/automations/welcome/test", nil, map[string]string{UserIDHeader: "stranger"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishEventRoute(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/v1/events",
		domain.AutomationEvent{Kind: domain.EventKindMessage, SpaceID: "space", Text: "hello"}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	accepted := decode[eventAccepted](t, rec)
	require.NotEmpty(t, accepted.EventID)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, accepted.EventID, f.publisher.events[0].ID)
	assert.Equal(t, testNow, f.publisher.events[0].OccurredAt)

	rec = f.do(t, http.MethodPost, "/v1/events", domain.AutomationEvent{Kind: domain.EventKindMessage}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/events", domain.AutomationEvent{SpaceID: "space"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublishEventRejectsScheduleAndChain(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/v1/events",
		domain.AutomationEvent{Kind: domain.EventKindSchedule, DeploymentID: "dep-1", Name: "a1"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(domain.CodeInvalidArgument), decode[errorBody](t, rec).Error.Code)
	assert.Empty(t, f.publisher.events)

	rec = f.do(t, http.MethodPost, "/v1/events",
		domain.AutomationEvent{Kind: domain.EventKindExternal, DeploymentID: "dep-1", Name: "ping", Chain: []string{"a", "b", "c"}}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.publisher.events, 1)
	assert.Empty(t, f.publisher.events[0].Chain)
}

func TestWriteJSONEncodeFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	api := New(Options{Logger: zap.New(core)})
	req := httptest.NewRequest(http.MethodGet, "/v1/instances/dashboard/connections", nil)
	rec := httptest.NewRecorder()

	api.writeJSON(rec, req, http.StatusOK, map[string]any{"value": math.NaN()})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(domain.CodeInternal), decode[errorBody](t, rec).Error.Code)
	require.Equal(t, 1, logs.FilterMessage("encode response failed").Len())
}

func TestPublishEventThrottled(t *testing.T) {
	f := newFixture(t, ratelimit.NewEventThrottle(1, 1))
	event := domain.AutomationEvent{Kind: domain.EventKindExternal, DeploymentID: "dep-1", Name: "ping"}

	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/v1/events", event, nil).Code)
	rec := f.do(t, http.MethodPost, "/v1/events", event, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, string(domain.CodeResourceExhausted), decode[errorBody](t, rec).Error.Code)
	assert.Equal(t, []string{"dep-1"}, f.metrics.throttled)
	assert.Len(t, f.publisher.events, 1)
}

func TestPublishEventUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.publisher.err = domain.E(domain.CodeUnavailable, "publish", "bus closed", nil)

	rec := f.do(t, http.MethodPost, "/v1/events", domain.AutomationEvent{Kind: domain.EventKindMessage, SpaceID: "space"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.publisher.err = errors.New("boom")
	rec = f.do(t, http.MethodPost, "/v1/events", domain.AutomationEvent{Kind: domain.EventKindMessage, SpaceID: "space"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/nowhere", nil, nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodPost, "/v1/connections/c1/value", nil, nil).Code)
}

func TestStatusMapping(t *testing.T) {
	cases := map[domain.ErrorCode]int{
		domain.CodeInvalidArgument:   http.StatusBadRequest,
		domain.CodeNotFound:          http.StatusNotFound,
		domain.CodePermissionDenied:  http.StatusForbidden,
		domain.CodeFailedPrecond:     http.StatusConflict,
		domain.CodeResourceExhausted: http.StatusTooManyRequests,
		domain.CodeUnavailable:       http.StatusServiceUnavailable,
		domain.CodeDeadlineExceeded:  http.StatusGatewayTimeout,
		domain.CodeInternal:          http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, statusFor(code), string(code))
	}
}
