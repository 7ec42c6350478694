package storage

import (
	"context"

	"github.com/sgheorghe/moviekeeper/internal/models"
)

//go:generate moq -out queue_mock.go . QueueStorage

// QueueStorage defines the interface for the durable pending mutation
// log. The queue is persisted as one serialized blob, so every operation
// is a full read-modify-write; callers must keep a single-writer
// discipline (the items service owns the only writer in-process).
//
// A read that hits a corrupt or unreadable payload is treated as an
// empty queue: recovery is best-effort, never fatal.
type QueueStorage interface {
	// Append adds a mutation to the tail of the queue.
	Append(ctx context.Context, m *models.PendingMutation) error

	// ListAll returns the queue in insertion order, oldest first.
	ListAll(ctx context.Context) ([]models.PendingMutation, error)

	// RemoveByLocalIDs removes every mutation whose localId is in ids
	// and drops their failure-count entries in the same write.
	RemoveByLocalIDs(ctx context.Context, ids []string) error

	// Clear removes all queued mutations and failure counts.
	Clear(ctx context.Context) error

	// PendingCount returns the number of queued mutations.
	PendingCount(ctx context.Context) (int, error)

	// FailureCounts returns the persisted localId -> consecutive
	// failure count table.
	FailureCounts(ctx context.Context) (map[string]int, error)

	// SaveFailureCounts persists the failure-count table wholesale.
	SaveFailureCounts(ctx context.Context, counts map[string]int) error
}
