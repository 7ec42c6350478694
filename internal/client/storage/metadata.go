package storage

import "context"

// MetadataStorage keeps small client-side bookkeeping values that must
// survive restarts.
type MetadataStorage interface {
	// SaveLastSyncTimestamp records when the last sync run finished its
	// reconciliation (unix seconds).
	SaveLastSyncTimestamp(ctx context.Context, timestamp int64) error

	// GetLastSyncTimestamp returns the recorded timestamp, or 0 when no
	// sync has completed yet.
	GetLastSyncTimestamp(ctx context.Context) (int64, error)
}
