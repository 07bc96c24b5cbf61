// Package catalog serves the runtime configuration and reloads it when the
// config file changes.
package catalog

import (
	"context"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"hive/internal/domain"
	infraCatalog "hive/internal/infra/catalog"
)

const defaultReloadDebounce = 200 * time.Millisecond

// UpdateSource records what triggered a config update.
type UpdateSource string

const (
	UpdateSourceWatch  UpdateSource = "watch"
	UpdateSourceManual UpdateSource = "manual"
)

// ConfigState is one loaded revision of the runtime config.
type ConfigState struct {
	Config   domain.RuntimeConfig
	Revision uint64
	LoadedAt time.Time
}

// ConfigUpdate is broadcast to watchers when the config changes.
type ConfigUpdate struct {
	State  ConfigState
	Source UpdateSource
}

// ConfigProvider loads the config file and watches it for changes.
type ConfigProvider struct {
	logger     *zap.Logger
	loader     *infraCatalog.Loader
	configPath string
	debounce   time.Duration

	state    atomic.Value
	revision atomic.Uint64

	subsMu sync.Mutex
	subs   map[chan ConfigUpdate]struct{}

	reloadMu  sync.Mutex
	watchOnce sync.Once
	watchCtx  context.Context
}

// NewConfigProvider loads configPath. An empty path serves the defaults and
// never reloads.
func NewConfigProvider(ctx context.Context, configPath string, logger *zap.Logger) (*ConfigProvider, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	loader := infraCatalog.NewLoader(logger)
	cfg := infraCatalog.DefaultRuntimeConfig()
	if configPath != "" {
		loaded, err := loader.LoadRuntimeConfig(ctx, configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	provider := &ConfigProvider{
		logger:     logger.Named("config_provider"),
		loader:     loader,
		configPath: configPath,
		debounce:   defaultReloadDebounce,
		subs:       make(map[chan ConfigUpdate]struct{}),
		watchCtx:   ctx,
	}
	provider.state.Store(ConfigState{Config: cfg, Revision: 1, LoadedAt: time.Now()})
	provider.revision.Store(1)
	return provider, nil
}

// Snapshot returns the current config revision.
func (p *ConfigProvider) Snapshot() ConfigState {
	return p.state.Load().(ConfigState)
}

// Watch subscribes to config updates until ctx is done. The file watcher
// starts with the first subscription.
func (p *ConfigProvider) Watch(ctx context.Context) <-chan ConfigUpdate {
	if ctx == nil {
		ctx = context.Background()
	}
	ch := make(chan ConfigUpdate, 1)
	p.subsMu.Lock()
	p.subs[ch] = struct{}{}
	p.subsMu.Unlock()

	if p.configPath != "" {
		p.watchOnce.Do(func() {
			go p.runWatcher(p.watchCtx)
		})
	}

	go func() {
		<-ctx.Done()
		p.subsMu.Lock()
		delete(p.subs, ch)
		p.subsMu.Unlock()
	}()
	return ch
}

// Reload re-reads the config file and broadcasts it when it changed.
// It reports whether a new revision was published.
func (p *ConfigProvider) Reload(ctx context.Context) (bool, error) {
	return p.reload(ctx, UpdateSourceManual)
}

func (p *ConfigProvider) reload(ctx context.Context, source UpdateSource) (bool, error) {
	if p.configPath == "" {
		return false, nil
	}
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	prev := p.Snapshot()
	cfg, err := p.loader.LoadRuntimeConfig(ctx, p.configPath)
	if err != nil {
		return false, err
	}
	if reflect.DeepEqual(prev.Config, cfg) {
		return false, nil
	}

	next := ConfigState{Config: cfg, Revision: p.revision.Add(1), LoadedAt: time.Now()}
	p.state.Store(next)
	p.broadcast(ConfigUpdate{State: next, Source: source})
	p.logger.Info("config reloaded", zap.Uint64("revision", next.Revision), zap.String("source", string(source)))
	return true, nil
}

func (p *ConfigProvider) broadcast(update ConfigUpdate) {
	p.subsMu.Lock()
	subs := make([]chan ConfigUpdate, 0, len(p.subs))
	for ch := range p.subs {
		subs = append(subs, ch)
	}
	p.subsMu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- update:
		default:
			// Drop the stale pending update so the latest one wins.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- update:
			default:
			}
		}
	}
}

func (p *ConfigProvider) runWatcher(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Warn("config watcher failed", zap.Error(err))
		return
	}
	defer watcher.Close()

	// Editors replace files on save, so the directory is watched.
	dir := filepath.Dir(p.configPath)
	if err := watcher.Add(dir); err != nil {
		p.logger.Warn("config watcher add failed", zap.String("path", dir), zap.Error(err))
		return
	}

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("config watcher error", zap.Error(err))
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !shouldReloadForPath(event.Name, p.configPath) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(p.debounce)
				continue
			}
			timer.Reset(p.debounce)
		case <-timerChan(timer):
			timer = nil
			if _, err := p.reload(ctx, UpdateSourceWatch); err != nil {
				p.logger.Warn("config reload failed", zap.Error(err))
			}
		}
	}
}

func shouldReloadForPath(path string, configPath string) bool {
	if path == "" || configPath == "" {
		return false
	}
	return filepath.Clean(path) == filepath.Clean(configPath)
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
