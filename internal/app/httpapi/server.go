// Package httpapi exposes connection resolution, cache control, automation
// previews and event ingestion as a JSON API.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"hive/internal/app/automation"
	"hive/internal/domain"
	"hive/internal/infra/ratelimit"
	"hive/internal/infra/telemetry"
)

// UserIDHeader carries the acting user for access-checked routes.
const UserIDHeader = telemetry.UserIDHeader

// Resolver is the connection resolution surface used by the API.
type Resolver interface {
	ResolveConnections(ctx context.Context, targetInstanceID, spaceID string, opts domain.ResolveOptions) (domain.ResolvedConnections, error)
	GetConnectionValueByID(ctx context.Context, connectionID string, opts domain.ResolveOptions) (domain.ResolvedConnection, error)
	InjectIntoElements(elements []*domain.ToolElement, resolved domain.ResolvedConnections) []*domain.ToolElement
	ClearCache(keys ...domain.CacheKey) int
	InvalidateSourceTool(sourceInstanceID string) []domain.CacheKey
}

// Previewer dry-runs automations.
type Previewer interface {
	TestAutomation(ctx context.Context, req automation.TestRequest) (automation.TestResult, error)
}

// StateWriter stores a tool's shared state.
type StateWriter interface {
	PutSharedState(ctx context.Context, instanceID string, state domain.SharedState) (domain.SharedState, error)
}

// Options wires the API's collaborators.
type Options struct {
	Resolver       Resolver
	Elements       domain.ElementRepository
	States         StateWriter
	Previewer      Previewer
	Publisher      domain.EventPublisher
	Throttle       *ratelimit.EventThrottle
	Metrics        domain.Metrics
	Logger         *zap.Logger
	Clock          domain.Clock
	RequestTimeout time.Duration
}

// API is the HTTP handler set.
type API struct {
	resolver  Resolver
	elements  domain.ElementRepository
	states    StateWriter
	previewer Previewer
	publisher domain.EventPublisher
	throttle  *ratelimit.EventThrottle
	metrics   domain.Metrics
	logger    *zap.Logger
	now       domain.Clock
	timeout   time.Duration
	router    *mux.Router
}

func New(opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	throttle := opts.Throttle
	if throttle == nil {
		throttle = ratelimit.NewEventThrottle(0, 0)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = time.Duration(domain.DefaultHTTPRequestTimeoutSeconds) * time.Second
	}
	api := &API{
		resolver:  opts.Resolver,
		elements:  opts.Elements,
		states:    opts.States,
		previewer: opts.Previewer,
		publisher: opts.Publisher,
		throttle:  throttle,
		metrics:   metrics,
		logger:    logger.Named("http").With(zap.String(telemetry.FieldLogSource, telemetry.LogSourceHTTP)),
		now:       clock,
		timeout:   timeout,
		router:    mux.NewRouter(),
	}
	api.routes()
	return api
}

func (a *API) routes() {
	a.router.Use(a.requestMiddleware)

	v1 := a.router.PathPrefix("/v1").Subrouter()
	instances := v1.PathPrefix("/instances/{instanceId}").Subrouter()
	instances.HandleFunc("/connections", a.resolveConnections).Methods(http.MethodGet)
	instances.HandleFunc("/elements", a.resolvedElements).Methods(http.MethodGet)
	instances.HandleFunc("/state", a.putState).Methods(http.MethodPut)

	v1.HandleFunc("/connections/{connectionId}/value", a.connectionValue).Methods(http.MethodGet)
	v1.HandleFunc("/cache", a.clearCache).Methods(http.MethodDelete)
	v1.HandleFunc("/cache/invalidate/{sourceInstanceId}", a.invalidateSource).Methods(http.MethodPost)
	v1.HandleFunc("/automations/{automationId}/test", a.testAutomation).Methods(http.MethodPost)
	v1.HandleFunc("/events", a.publishEvent).Methods(http.MethodPost)

	a.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.writeError(w, r, domain.E(domain.CodeNotFound, "route", fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path), nil))
	})
	a.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.writeJSON(w, r, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{
			Code:    "METHOD_NOT_ALLOWED",
			Message: fmt.Sprintf("%s not allowed on %s", r.Method, r.URL.Path),
		}})
	})
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		r, meta := telemetry.EnsureHTTPRequestMeta(r)
		ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
		defer cancel()
		r = r.WithContext(ctx)
		w.Header().Set(telemetry.RequestIDHeader, meta.RequestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		telemetry.LoggerWithRequest(ctx, a.logger).Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			telemetry.DurationField(time.Since(start)),
		)
	})
}

// Serve runs the API on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if addr == "" {
		addr = domain.DefaultHTTPListenAddress
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("api server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("api server failed to start: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), domain.DefaultHTTPShutdownTimeoutSeconds*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("api server shutdown error", zap.Error(err))
			return err
		}
		logger.Info("api server stopped")
		return nil
	}
}
