// Package conncache holds resolved connection values keyed by injection point.
package conncache

import (
	"sync"
	"time"

	"hive/internal/domain"
)

// Entry is one cached connection value.
type Entry struct {
	Value            any
	ResolvedAt       time.Time
	ExpiresAt        time.Time
	SourceInstanceID string
	// Fingerprint identifies the connection definition that produced Value.
	Fingerprint string
}

// Expired reports whether the entry is no longer live at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// TTL returns the lifetime the entry was written with.
func (e Entry) TTL() time.Duration {
	return e.ExpiresAt.Sub(e.ResolvedAt)
}

// Cache is a TTL cache of resolved values with a reverse index from source
// instance to the target keys that depend on it. Expiry is checked lazily.
type Cache struct {
	mu       sync.RWMutex
	entries  map[domain.CacheKey]Entry
	bySource map[string]map[domain.CacheKey]struct{}
	now      domain.Clock
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(clock domain.Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.now = clock
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[domain.CacheKey]Entry),
		bySource: make(map[string]map[domain.CacheKey]struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the live entry for key. Expired entries are evicted on read.
func (c *Cache) Get(key domain.CacheKey) (Entry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	if entry.Expired(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if current, still := c.entries[key]; still && current.Expired(c.now()) {
			c.deleteLocked(key)
		}
		c.mu.Unlock()
		return Entry{}, false
	}
	return entry, true
}

// Lookup returns the live entry for key only when it was produced by the
// connection definition with the given fingerprint. The outcome reports
// whether the lookup hit, missed or found an entry for another definition.
func (c *Cache) Lookup(key domain.CacheKey, fingerprint string) (Entry, domain.CacheOutcome) {
	entry, ok := c.Get(key)
	if !ok {
		return Entry{}, domain.CacheOutcomeMiss
	}
	if fingerprint != "" && entry.Fingerprint != fingerprint {
		return Entry{}, domain.CacheOutcomeStale
	}
	return entry, domain.CacheOutcomeHit
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (c *Cache) Set(key domain.CacheKey, sourceInstanceID, fingerprint string, value any, ttl time.Duration) Entry {
	now := c.now()
	entry := Entry{
		Value:            value,
		ResolvedAt:       now,
		ExpiresAt:        now.Add(ttl),
		SourceInstanceID: sourceInstanceID,
		Fingerprint:      fingerprint,
	}
	if ttl <= 0 {
		return entry
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if previous, ok := c.entries[key]; ok && previous.SourceInstanceID != sourceInstanceID {
		c.unindexLocked(previous.SourceInstanceID, key)
	}
	c.entries[key] = entry
	keys, ok := c.bySource[sourceInstanceID]
	if !ok {
		keys = make(map[domain.CacheKey]struct{})
		c.bySource[sourceInstanceID] = keys
	}
	keys[key] = struct{}{}
	return entry
}

// Delete removes the given keys. It returns how many entries were removed.
func (c *Cache) Delete(keys ...domain.CacheKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for _, key := range keys {
		if c.deleteLocked(key) {
			removed++
		}
	}
	return removed
}

// Clear drops every entry and returns how many were removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := len(c.entries)
	c.entries = make(map[domain.CacheKey]Entry)
	c.bySource = make(map[string]map[domain.CacheKey]struct{})
	return removed
}

// InvalidateSource removes every entry resolved from the source instance.
func (c *Cache) InvalidateSource(sourceInstanceID string) []domain.CacheKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.bySource[sourceInstanceID]
	removed := make([]domain.CacheKey, 0, len(keys))
	for key := range keys {
		delete(c.entries, key)
		removed = append(removed, key)
	}
	delete(c.bySource, sourceInstanceID)
	return removed
}

// KeysForSource lists the live cache keys that depend on the source instance.
func (c *Cache) KeysForSource(sourceInstanceID string) []domain.CacheKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	out := make([]domain.CacheKey, 0, len(c.bySource[sourceInstanceID]))
	for key := range c.bySource[sourceInstanceID] {
		if entry, ok := c.entries[key]; ok && !entry.Expired(now) {
			out = append(out, key)
		}
	}
	return out
}

// Sweep evicts expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if entry.Expired(now) {
			c.deleteLocked(key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// deleteLocked removes key and its reverse index entry (must be called with lock held).
func (c *Cache) deleteLocked(key domain.CacheKey) bool {
	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	delete(c.entries, key)
	c.unindexLocked(entry.SourceInstanceID, key)
	return true
}

func (c *Cache) unindexLocked(sourceInstanceID string, key domain.CacheKey) {
	keys, ok := c.bySource[sourceInstanceID]
	if !ok {
		return
	}
	delete(keys, key)
	if len(keys) == 0 {
		delete(c.bySource, sourceInstanceID)
	}
}
