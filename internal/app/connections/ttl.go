package connections

import (
	"time"

	"hive/internal/domain"
	"hive/internal/infra/pathutil"
)

// TTLPolicy chooses how long a resolved value stays cached, by the first
// segment of the source path.
type TTLPolicy struct {
	Counters    time.Duration
	Collections time.Duration
	Computed    time.Duration
	Timeline    time.Duration
}

// DefaultTTLPolicy returns counters 5m, collections 60s, computed and other
// paths 30s, timeline 10s.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Counters:    time.Duration(domain.DefaultCountersTTLSeconds) * time.Second,
		Collections: time.Duration(domain.DefaultCollectionsTTLSeconds) * time.Second,
		Computed:    time.Duration(domain.DefaultComputedTTLSeconds) * time.Second,
		Timeline:    time.Duration(domain.DefaultTimelineTTLSeconds) * time.Second,
	}
}

// TTLPolicyFromConfig overlays positive config values onto the defaults.
func TTLPolicyFromConfig(cfg domain.ConnectionsConfig) TTLPolicy {
	return TTLPolicy{
		Counters:    cfg.CountersTTL(),
		Collections: cfg.CollectionsTTL(),
		Computed:    cfg.ComputedTTL(),
		Timeline:    cfg.TimelineTTL(),
	}
}

// ForPath returns the TTL for a source path.
func (p TTLPolicy) ForPath(path string) time.Duration {
	switch pathutil.Root(path) {
	case domain.StateSegmentCounters:
		return p.Counters
	case domain.StateSegmentCollections:
		return p.Collections
	case domain.StateSegmentTimeline:
		return p.Timeline
	default:
		return p.Computed
	}
}
