package domain

import "time"

// State tree root segments.
const (
	StateSegmentCounters     = "counters"
	StateSegmentCollections  = "collections"
	StateSegmentTimeline     = "timeline"
	StateSegmentComputed     = "computed"
	StateSegmentVersion      = "version"
	StateSegmentLastModified = "lastModified"
)

// TimelineEvent is one chronological entry in a tool's shared state.
type TimelineEvent struct {
	ID        string         `json:"id" yaml:"id"`
	Type      string         `json:"type" yaml:"type"`
	UserID    string         `json:"userId,omitempty" yaml:"userId"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Data      map[string]any `json:"data,omitempty" yaml:"data"`
}

// SharedState is the path-addressable data a tool instance exposes.
// The core only reads it.
type SharedState struct {
	Counters     map[string]float64 `json:"counters" yaml:"counters"`
	Collections  map[string][]any   `json:"collections" yaml:"collections"`
	Timeline     []TimelineEvent    `json:"timeline" yaml:"timeline"`
	Computed     map[string]any     `json:"computed" yaml:"computed"`
	Version      int64              `json:"version" yaml:"version"`
	LastModified time.Time          `json:"lastModified" yaml:"lastModified"`
}

// Tree returns a generic map view of the state suitable for path lookups.
func (s *SharedState) Tree() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	counters := make(map[string]any, len(s.Counters))
	for k, v := range s.Counters {
		counters[k] = v
	}
	collections := make(map[string]any, len(s.Collections))
	for k, v := range s.Collections {
		items := make([]any, len(v))
		copy(items, v)
		collections[k] = items
	}
	timeline := make([]any, 0, len(s.Timeline))
	for _, ev := range s.Timeline {
		entry := map[string]any{
			"id":        ev.ID,
			"type":      ev.Type,
			"timestamp": ev.Timestamp,
		}
		if ev.UserID != "" {
			entry["userId"] = ev.UserID
		}
		if ev.Data != nil {
			entry["data"] = ev.Data
		}
		timeline = append(timeline, entry)
	}
	computed := make(map[string]any, len(s.Computed))
	for k, v := range s.Computed {
		computed[k] = v
	}
	return map[string]any{
		StateSegmentCounters:     counters,
		StateSegmentCollections:  collections,
		StateSegmentTimeline:     timeline,
		StateSegmentComputed:     computed,
		StateSegmentVersion:      s.Version,
		StateSegmentLastModified: s.LastModified,
	}
}

// EmptySharedState returns a zero state with initialised maps.
func EmptySharedState() *SharedState {
	return &SharedState{
		Counters:    map[string]float64{},
		Collections: map[string][]any{},
		Computed:    map[string]any{},
	}
}
