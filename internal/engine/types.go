package engine

import (
	"time"

	"zont-sync-backend/internal/snapshot"
)

// State is the observable failure state of an engine.
type State string

const (
	StateHealthy  State = "healthy"
	StateDegraded State = "degraded"
	// StateFailed means the retry budget is exhausted; the last snapshot is
	// still served but flagged stale.
	StateFailed State = "failed"
)

// Health is a point-in-time copy of the engine's failure counters.
type Health struct {
	State       State     `json:"state"`
	Failures    int       `json:"consecutive_failures"`
	LastError   string    `json:"last_error,omitempty"`
	LastSuccess time.Time `json:"last_success"`
}

type EventKind string

const (
	EventSnapshotReplaced EventKind = "snapshot_replaced"
	EventUpdateFailed     EventKind = "update_failed"
	EventRecovered        EventKind = "recovered"
)

// Event is published to listeners after a poll.
type Event struct {
	Kind      EventKind
	AccountID string
	Previous  *snapshot.Snapshot
	Current   *snapshot.Snapshot
	Failures  int
	Err       error
}

// Listener receives engine events.
type Listener func(Event)
