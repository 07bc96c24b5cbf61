// Package connections resolves tool connections: it reads source values from
// shared state, transforms and caches them, and injects them into the
// consuming tool's element configs.
package connections

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"hive/internal/domain"
	"hive/internal/infra/conncache"
	"hive/internal/infra/hashutil"
	"hive/internal/infra/pathutil"
	"hive/internal/infra/telemetry"
	"hive/internal/infra/telemetry/diagnostics"
	"hive/internal/infra/transform"
)

// Options configures a Service.
type Options struct {
	TTL         TTLPolicy
	Concurrency int
	Metrics     domain.Metrics
	Logger      *zap.Logger
	Probe       diagnostics.Probe
	Clock       domain.Clock
}

// Service resolves connections into values for their targets.
type Service struct {
	repo    domain.ConnectionRepository
	cache   *conncache.Cache
	metrics domain.Metrics
	logger  *zap.Logger
	probe   diagnostics.Probe
	now     domain.Clock

	mu          sync.RWMutex
	ttl         TTLPolicy
	concurrency int
}

// NewService creates a resolver over repo and cache.
func NewService(repo domain.ConnectionRepository, cache *conncache.Cache, opts Options) *Service {
	if cache == nil {
		cache = conncache.New()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	probe := opts.Probe
	if probe == nil {
		probe = diagnostics.NoopProbe{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := opts.TTL
	if ttl == (TTLPolicy{}) {
		ttl = DefaultTTLPolicy()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = domain.DefaultResolveConcurrency
	}
	return &Service{
		repo:        repo,
		cache:       cache,
		metrics:     metrics,
		logger:      logger.Named("connections"),
		probe:       probe,
		now:         clock,
		ttl:         ttl,
		concurrency: concurrency,
	}
}

// NewTestService builds a service with a private cache driven by clock.
func NewTestService(repo domain.ConnectionRepository, clock domain.Clock) *Service {
	return NewService(repo, conncache.New(conncache.WithClock(clock)), Options{Clock: clock})
}

// SetTTLPolicy replaces the TTL policy for subsequent cache writes.
func (s *Service) SetTTLPolicy(policy TTLPolicy) {
	s.mu.Lock()
	s.ttl = policy
	s.mu.Unlock()
}

// SetConcurrency bounds how many connections resolve in parallel.
func (s *Service) SetConcurrency(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.concurrency = n
	s.mu.Unlock()
}

func (s *Service) settings() (TTLPolicy, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ttl, s.concurrency
}

// ResolveConnections resolves every enabled connection targeting the
// instance. A failing connection yields an error entry and never affects
// the others.
func (s *Service) ResolveConnections(ctx context.Context, targetInstanceID, spaceID string, opts domain.ResolveOptions) (domain.ResolvedConnections, error) {
	conns, err := s.repo.GetIncomingConnections(ctx, targetInstanceID, spaceID)
	if err != nil {
		return domain.ResolvedConnections{}, domain.Wrap(domain.CodeUnavailable, "resolve connections", err)
	}
	_, concurrency := s.settings()

	result := domain.ResolvedConnections{
		Values:     make(map[domain.CacheKey]domain.ResolvedConnection),
		ResolvedAt: s.now(),
	}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	for _, conn := range conns {
		if !conn.Enabled {
			continue
		}
		wg.Add(1)
		go func(conn domain.ToolConnection) {
			defer wg.Done()
			var resolved domain.ResolvedConnection
			select {
			case sem <- struct{}{}:
				resolved = s.resolve(ctx, conn, opts)
				<-sem
			case <-ctx.Done():
				resolved = s.failed(conn, ctx.Err(), 0)
			}
			mu.Lock()
			result.Values[conn.CacheKey()] = resolved
			mu.Unlock()
		}(conn)
	}
	wg.Wait()

	for _, resolved := range result.Values {
		if resolved.Status == domain.ConnectionStatusError {
			result.ErrorCount++
		}
	}
	result.Count = len(result.Values)
	s.metrics.SetCacheEntries(s.cache.Len())
	return result, nil
}

// GetConnectionValue resolves one connection, honouring the cache.
func (s *Service) GetConnectionValue(ctx context.Context, conn domain.ToolConnection, opts domain.ResolveOptions) domain.ResolvedConnection {
	resolved := s.resolve(ctx, conn, opts)
	s.metrics.SetCacheEntries(s.cache.Len())
	return resolved
}

// GetConnectionValueByID loads the connection and resolves it.
func (s *Service) GetConnectionValueByID(ctx context.Context, connectionID string, opts domain.ResolveOptions) (domain.ResolvedConnection, error) {
	conn, err := s.repo.GetConnection(ctx, connectionID)
	if err != nil {
		return domain.ResolvedConnection{}, domain.Wrap(domain.CodeNotFound, "get connection value", err)
	}
	if !conn.Enabled {
		return domain.ResolvedConnection{}, domain.E(domain.CodeFailedPrecond, "get connection value",
			fmt.Sprintf("connection %s is disabled", connectionID), nil)
	}
	return s.GetConnectionValue(ctx, conn, opts), nil
}

func (s *Service) resolve(ctx context.Context, conn domain.ToolConnection, opts domain.ResolveOptions) domain.ResolvedConnection {
	key := conn.CacheKey()
	fingerprint := hashutil.ConnectionFingerprint(conn)
	if opts.BypassCache {
		s.metrics.ObserveCacheLookup(domain.CacheOutcomeBypass)
	} else {
		entry, outcome := s.cache.Lookup(key, fingerprint)
		s.metrics.ObserveCacheLookup(outcome)
		if outcome == domain.CacheOutcomeHit {
			return domain.ResolvedConnection{
				ConnectionID: conn.ID,
				Status:       domain.ConnectionStatusConnected,
				Value:        pathutil.Clone(entry.Value),
				ResolvedAt:   entry.ResolvedAt,
				TTL:          entry.TTL(),
				Cached:       true,
			}
		}
	}

	start := time.Now()
	value, err := s.ResolveSourceValue(ctx, conn.Source)
	if err == nil {
		value, err = transform.Apply(conn.Transform, value)
		if err != nil {
			err = domain.E(domain.CodeInvalidArgument, "apply transform", err.Error(), err)
		}
	}
	duration := time.Since(start)
	if err != nil {
		return s.failed(conn, err, duration)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		policy, _ := s.settings()
		ttl = policy.ForPath(conn.Source.Path)
	}
	entry := s.cache.Set(key, conn.Source.InstanceID, fingerprint, pathutil.Clone(value), ttl)
	s.metrics.ObserveResolution(domain.ResolutionMetric{
		SourceSegment: pathutil.Root(conn.Source.Path),
		Status:        domain.ConnectionStatusConnected,
		Duration:      duration,
	})
	s.probe.Record(diagnostics.Event{
		Step:      diagnostics.StepConnection,
		Phase:     diagnostics.PhasePass,
		Timestamp: entry.ResolvedAt,
		Duration:  duration,
		Attributes: map[string]string{
			"connectionId": conn.ID,
			"cacheKey":     string(key),
		},
	})
	return domain.ResolvedConnection{
		ConnectionID: conn.ID,
		Status:       domain.ConnectionStatusConnected,
		Value:        value,
		ResolvedAt:   entry.ResolvedAt,
		TTL:          ttl,
	}
}

func (s *Service) failed(conn domain.ToolConnection, err error, duration time.Duration) domain.ResolvedConnection {
	now := s.now()
	s.metrics.ObserveResolution(domain.ResolutionMetric{
		SourceSegment: pathutil.Root(conn.Source.Path),
		Status:        domain.ConnectionStatusError,
		Duration:      duration,
	})
	s.logger.Warn("connection resolution failed",
		telemetry.EventField(telemetry.EventResolveFailure),
		telemetry.ConnectionIDField(conn.ID),
		telemetry.InstanceIDField(conn.Source.InstanceID),
		zap.String("path", conn.Source.Path),
		zap.Error(err),
	)
	s.probe.Record(diagnostics.Event{
		Step:      diagnostics.StepConnection,
		Phase:     diagnostics.PhaseError,
		Timestamp: now,
		Duration:  duration,
		Error:     err.Error(),
		Attributes: map[string]string{
			"connectionId": conn.ID,
			"cacheKey":     string(conn.CacheKey()),
		},
	})
	return domain.ResolvedConnection{
		ConnectionID: conn.ID,
		Status:       domain.ConnectionStatusError,
		Error:        err.Error(),
		ResolvedAt:   now,
	}
}

// ResolveSourceValue reads the value at source.Path in the source instance's
// shared state. Missing state and missing paths are errors.
func (s *Service) ResolveSourceValue(ctx context.Context, source domain.ConnectionSource) (any, error) {
	state, err := s.repo.GetToolSharedState(ctx, source.InstanceID)
	if err != nil {
		return nil, domain.Wrap(domain.CodeUnavailable, "resolve source value", err)
	}
	if state == nil {
		return nil, domain.E(domain.CodeNotFound, "resolve source value",
			fmt.Sprintf("no shared state for instance %s", source.InstanceID), domain.ErrSourceStateNotFound)
	}
	value, ok := pathutil.Lookup(state.Tree(), source.Path)
	if !ok {
		return nil, domain.E(domain.CodeNotFound, "resolve source value",
			fmt.Sprintf("path %q not found in instance %s", source.Path, source.InstanceID), domain.ErrPathNotFound)
	}
	return value, nil
}

// InjectIntoElements returns elements with every connected value written at
// its input path. Elements without connected values are returned as-is;
// injected elements are copies and the inputs are never mutated.
func (s *Service) InjectIntoElements(elements []*domain.ToolElement, resolved domain.ResolvedConnections) []*domain.ToolElement {
	type injection struct {
		inputPath    string
		connectionID string
		value        any
	}
	byElement := make(map[[2]string][]injection)
	keys := make([]domain.CacheKey, 0, len(resolved.Values))
	for key := range resolved.Values {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		entry := resolved.Values[key]
		if entry.Status != domain.ConnectionStatusConnected {
			continue
		}
		instanceID, elementID, inputPath := key.Parts()
		target := [2]string{instanceID, elementID}
		byElement[target] = append(byElement[target], injection{
			inputPath:    inputPath,
			connectionID: entry.ConnectionID,
			value:        entry.Value,
		})
	}

	out := make([]*domain.ToolElement, len(elements))
	for i, element := range elements {
		if element == nil {
			continue
		}
		injections := byElement[[2]string{element.InstanceID, element.ElementID}]
		if len(injections) == 0 {
			out[i] = element
			continue
		}
		injected := *element
		injected.Config = pathutil.CloneMap(element.Config)
		connected, ok := injected.Config[domain.ConnectedFieldsKey].(map[string]any)
		if !ok {
			connected = make(map[string]any)
		}
		for _, inj := range injections {
			if err := pathutil.Set(injected.Config, inj.inputPath, pathutil.Clone(inj.value)); err != nil {
				s.logger.Warn("skip injection",
					telemetry.ConnectionIDField(inj.connectionID),
					zap.String("inputPath", inj.inputPath),
					zap.Error(err),
				)
				continue
			}
			connected[inj.inputPath] = inj.connectionID
		}
		injected.Config[domain.ConnectedFieldsKey] = connected
		out[i] = &injected
	}
	return out
}

// ClearCache removes the given keys, or everything when none are given.
// It returns how many entries were removed.
func (s *Service) ClearCache(keys ...domain.CacheKey) int {
	var removed int
	if len(keys) == 0 {
		removed = s.cache.Clear()
	} else {
		removed = s.cache.Delete(keys...)
		for _, key := range keys {
			s.logger.Debug("cache key cleared", telemetry.CacheKeyField(key))
		}
	}
	s.metrics.SetCacheEntries(s.cache.Len())
	s.logger.Debug("cache cleared", telemetry.EventField(telemetry.EventCacheInvalidated), zap.Int("removed", removed))
	return removed
}

// InvalidateSourceTool drops every cached value read from the source
// instance and returns the affected target keys.
func (s *Service) InvalidateSourceTool(sourceInstanceID string) []domain.CacheKey {
	keys := s.cache.InvalidateSource(sourceInstanceID)
	slices.Sort(keys)
	s.metrics.SetCacheEntries(s.cache.Len())
	if len(keys) > 0 {
		s.logger.Debug("source invalidated",
			telemetry.EventField(telemetry.EventCacheInvalidated),
			telemetry.InstanceIDField(sourceInstanceID),
			zap.Int("keys", len(keys)),
		)
	}
	return keys
}
