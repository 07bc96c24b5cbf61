// Package store is the bbolt-backed document store holding tool metadata,
// shared state, element configs, connections, automations, the daily run
// ledger and the notification outbox.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"hive/internal/domain"
)

var ErrStoreClosed = errors.New("store is closed")

type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	path   string
	closed bool
	now    domain.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(clock domain.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

func Open(path string, opts ...Option) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}
	base, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	if err := ensureSchema(base); err != nil {
		_ = base.Close()
		return nil, err
	}
	s := &Store{db: base, path: trimmed, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.Update(fn)
}

func getJSON(bucket *bolt.Bucket, key string, out any) (bool, error) {
	if bucket == nil {
		return false, nil
	}
	raw := bucket.Get([]byte(key))
	if raw == nil {
		return false, nil
	}
	return true, decodeJSON([]byte(key), raw, out)
}

func decodeJSON(key, raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func putJSON(bucket *bolt.Bucket, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return bucket.Put([]byte(key), raw)
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.E(domain.CodeInvalidArgument, "store", kind+" id is required", domain.ErrInvalidRequest)
	}
	return nil
}
