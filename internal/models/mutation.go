package models

import (
	"time"

	"github.com/sgheorghe/moviekeeper/pkg/api"
)

// MutationOp тип локальной операции, ожидающей подтверждения сервером
type MutationOp string

const (
	OpCreate MutationOp = "create"
	OpUpdate MutationOp = "update"
	OpDelete MutationOp = "delete"
)

// PendingMutation represents a single not-yet-acknowledged local edit.
// The item payload is a snapshot taken at enqueue time; it is never
// mutated afterwards except by being replaced wholesale when the same
// record is edited again before syncing.
type PendingMutation struct {
	EnqueuedAt time.Time  `json:"_timestamp"`
	Item       api.Item   `json:"item"`
	LocalID    string     `json:"_localId"`
	Op         MutationOp `json:"_op"`
}

// RecordState describes where a record is in its sync lifecycle.
type RecordState string

const (
	// StateLocalOnly: has a localId, no server id, create not yet confirmed.
	StateLocalOnly RecordState = "local_only"
	// StatePendingSync: a mutation for the record sits in the pending log.
	StatePendingSync RecordState = "pending_sync"
	// StateSynced: server-known, no pending mutation.
	StateSynced RecordState = "synced"
	// StateDropped: mutation abandoned after repeated sync failures;
	// the local copy is left as-is and no longer retried.
	StateDropped RecordState = "dropped"
)
