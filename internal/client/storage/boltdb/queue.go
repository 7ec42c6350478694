package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.etcd.io/bbolt"

	"github.com/sgheorghe/moviekeeper/internal/client/storage"
	"github.com/sgheorghe/moviekeeper/internal/models"
)

const (
	// keyPendingMutations хранит очередь целиком как один JSON массив.
	// Каждая операция над очередью — полный read-modify-write.
	keyPendingMutations = "pending_mutations"
	// keyFailureCounts хранит таблицу localId -> число неудачных попыток
	keyFailureCounts = "fail_counts"
)

// readQueue decodes the serialized queue inside a transaction.
// A missing or corrupt payload yields an empty queue: losing the log is
// recoverable, refusing to start is not.
func readQueue(bucket *bbolt.Bucket) []models.PendingMutation {
	data := bucket.Get([]byte(keyPendingMutations))
	if data == nil {
		return nil
	}

	var queue []models.PendingMutation
	if err := json.Unmarshal(data, &queue); err != nil {
		slog.Warn("pending queue payload unreadable, treating as empty", "error", err)
		return nil
	}
	return queue
}

func writeQueue(bucket *bbolt.Bucket, queue []models.PendingMutation) error {
	data, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}
	if err := bucket.Put([]byte(keyPendingMutations), data); err != nil {
		return fmt.Errorf("failed to save queue: %w", err)
	}
	return nil
}

// Append adds a mutation to the tail of the queue
func (s *Storage) Append(ctx context.Context, m *models.PendingMutation) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketQueue)
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}

		queue := readQueue(bucket)
		queue = append(queue, *m)
		return writeQueue(bucket, queue)
	})
	if err != nil {
		return fmt.Errorf("append transaction failed: %w", err)
	}

	return nil
}

// ListAll returns the queue in insertion order, oldest first
func (s *Storage) ListAll(ctx context.Context) ([]models.PendingMutation, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var queue []models.PendingMutation

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return nil
		}
		queue = readQueue(bucket)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}

	return queue, nil
}

// RemoveByLocalIDs removes every mutation whose localId is in ids,
// together with their failure-count entries, in one write.
func (s *Storage) RemoveByLocalIDs(ctx context.Context, ids []string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if len(ids) == 0 {
		return nil
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketQueue)
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}

		queue := readQueue(bucket)
		kept := queue[:0]
		for _, m := range queue {
			if !drop[m.LocalID] {
				kept = append(kept, m)
			}
		}
		if err := writeQueue(bucket, kept); err != nil {
			return err
		}

		counts := readFailureCounts(bucket)
		for id := range drop {
			delete(counts, id)
		}
		return writeFailureCounts(bucket, counts)
	})
	if err != nil {
		return fmt.Errorf("remove transaction failed: %w", err)
	}

	return nil
}

// Clear removes all queued mutations and failure counts
func (s *Storage) Clear(ctx context.Context) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return nil
		}
		if err := bucket.Delete([]byte(keyPendingMutations)); err != nil {
			return fmt.Errorf("failed to delete queue: %w", err)
		}
		if err := bucket.Delete([]byte(keyFailureCounts)); err != nil {
			return fmt.Errorf("failed to delete failure counts: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear transaction failed: %w", err)
	}

	return nil
}

// PendingCount returns the number of queued mutations
func (s *Storage) PendingCount(ctx context.Context) (int, error) {
	queue, err := s.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(queue), nil
}

func readFailureCounts(bucket *bbolt.Bucket) map[string]int {
	counts := make(map[string]int)
	data := bucket.Get([]byte(keyFailureCounts))
	if data == nil {
		return counts
	}
	if err := json.Unmarshal(data, &counts); err != nil {
		slog.Warn("failure-count table unreadable, treating as empty", "error", err)
		return make(map[string]int)
	}
	return counts
}

func writeFailureCounts(bucket *bbolt.Bucket, counts map[string]int) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("failed to marshal failure counts: %w", err)
	}
	if err := bucket.Put([]byte(keyFailureCounts), data); err != nil {
		return fmt.Errorf("failed to save failure counts: %w", err)
	}
	return nil
}

// FailureCounts returns the persisted localId -> failure count table
func (s *Storage) FailureCounts(ctx context.Context) (map[string]int, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	counts := make(map[string]int)

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return nil
		}
		counts = readFailureCounts(bucket)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get failure counts: %w", err)
	}

	return counts, nil
}

// SaveFailureCounts persists the failure-count table wholesale
func (s *Storage) SaveFailureCounts(ctx context.Context, counts map[string]int) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketQueue)
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return writeFailureCounts(bucket, counts)
	})
	if err != nil {
		return fmt.Errorf("save failure counts transaction failed: %w", err)
	}

	return nil
}
