package diagnostics

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"hive/internal/domain"
	"hive/internal/infra/telemetry"
)

const (
	DefaultEventCapacity = 1024
	DefaultLogCapacity   = 512
)

// HubOptions sizes the hub backlogs. Zero values use the defaults; intakes
// match their backlog capacity unless set.
type HubOptions struct {
	EventCapacity int
	EventIntake   int
	LogCapacity   int
	LogIntake     int
}

// Hub keeps the most recent automation steps and log entries for the
// diagnostics endpoint.
type Hub struct {
	events *Backlog[Event]
	logs   *Backlog[domain.LogEntry]
}

// NewHub starts draining both backlogs and, when logs is set, follows the log
// stream. Everything stops with ctx.
func NewHub(ctx context.Context, logs *telemetry.LogBroadcaster, opts HubOptions) *Hub {
	if ctx == nil {
		ctx = context.Background()
	}
	eventCap := opts.EventCapacity
	if eventCap <= 0 {
		eventCap = DefaultEventCapacity
	}
	logCap := opts.LogCapacity
	if logCap <= 0 {
		logCap = DefaultLogCapacity
	}
	hub := &Hub{
		events: NewBacklog[Event](eventCap, opts.EventIntake),
		logs:   NewBacklog[domain.LogEntry](logCap, opts.LogIntake),
	}
	hub.events.Run(ctx)
	hub.logs.Run(ctx)
	if logs != nil {
		go func(entries <-chan domain.LogEntry) {
			for entry := range entries {
				hub.logs.Push(entry)
			}
		}(logs.Subscribe(ctx))
	}
	return hub
}

// Record keeps a redacted copy of event.
func (h *Hub) Record(event Event) {
	if h == nil {
		return
	}
	event.Attributes = Redact(event.Attributes)
	h.events.Push(event)
}

// Events returns retained events oldest first.
func (h *Hub) Events() []Event {
	return h.Query(Query{})
}

func (h *Hub) Logs() []domain.LogEntry {
	if h == nil {
		return nil
	}
	return h.logs.Recent(0)
}

// Query narrows the event listing.
type Query struct {
	AutomationID string
	DeploymentID string
	Limit        int
}

func (q Query) matches(event Event) bool {
	if q.AutomationID != "" && event.AutomationID != q.AutomationID {
		return false
	}
	return q.DeploymentID == "" || event.DeploymentID == q.DeploymentID
}

// Query returns the newest matching events, oldest first.
func (h *Hub) Query(q Query) []Event {
	if h == nil {
		return nil
	}
	all := h.events.Recent(0)
	out := make([]Event, 0, len(all))
	for _, event := range all {
		if q.matches(event) {
			out = append(out, event)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out
}

// Snapshot is the diagnostics document.
type Snapshot struct {
	Events        []Event           `json:"events"`
	Logs          []domain.LogEntry `json:"logs"`
	DroppedEvents uint64            `json:"droppedEvents"`
	DroppedLogs   uint64            `json:"droppedLogs"`
}

func (h *Hub) Snapshot() Snapshot {
	return h.snapshot(Query{})
}

func (h *Hub) snapshot(q Query) Snapshot {
	if h == nil {
		return Snapshot{}
	}
	return Snapshot{
		Events:        h.Query(q),
		Logs:          h.Logs(),
		DroppedEvents: h.events.Dropped(),
		DroppedLogs:   h.logs.Dropped(),
	}
}

// Handler serves the snapshot as JSON. The automation, deployment and limit
// query parameters narrow the event list.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		values := r.URL.Query()
		q := Query{
			AutomationID: values.Get("automation"),
			DeploymentID: values.Get("deployment"),
		}
		if raw := values.Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
				return
			}
			q.Limit = limit
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h.snapshot(q))
	})
}

var _ Probe = (*Hub)(nil)
