package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/sgheorghe/moviekeeper/internal/models"
	"github.com/sgheorghe/moviekeeper/pkg/api"
)

func createTestStorage(t *testing.T) *Storage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func createTestMutation(localID string, op models.MutationOp) *models.PendingMutation {
	return &models.PendingMutation{
		LocalID:    localID,
		Op:         op,
		EnqueuedAt: time.Now(),
		Item: api.Item{
			LocalID: localID,
			Name:    "movie-" + localID,
			Price:   12.5,
		},
	}
}

func TestStorage_AppendAndListAll(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	queue, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	require.NoError(t, store.Append(ctx, createTestMutation("local-1", models.OpCreate)))
	require.NoError(t, store.Append(ctx, createTestMutation("local-2", models.OpUpdate)))
	require.NoError(t, store.Append(ctx, createTestMutation("local-3", models.OpDelete)))

	queue, err = store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 3)

	// insertion order, oldest first
	assert.Equal(t, "local-1", queue[0].LocalID)
	assert.Equal(t, "local-2", queue[1].LocalID)
	assert.Equal(t, "local-3", queue[2].LocalID)
	assert.Equal(t, models.OpCreate, queue[0].Op)
	assert.Equal(t, "movie-local-1", queue[0].Item.Name)
}

func TestStorage_RemoveByLocalIDs(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, createTestMutation("local-1", models.OpCreate)))
	require.NoError(t, store.Append(ctx, createTestMutation("local-2", models.OpCreate)))
	require.NoError(t, store.Append(ctx, createTestMutation("local-3", models.OpCreate)))
	require.NoError(t, store.SaveFailureCounts(ctx, map[string]int{"local-1": 2, "local-3": 1}))

	require.NoError(t, store.RemoveByLocalIDs(ctx, []string{"local-1", "local-3"}))

	queue, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "local-2", queue[0].LocalID)

	// failure counts removed in the same batch
	counts, err := store.FailureCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestStorage_RemoveByLocalIDs_Empty(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, createTestMutation("local-1", models.OpCreate)))
	require.NoError(t, store.RemoveByLocalIDs(ctx, nil))

	count, err := store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStorage_Clear(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, createTestMutation("local-1", models.OpCreate)))
	require.NoError(t, store.SaveFailureCounts(ctx, map[string]int{"local-1": 1}))

	require.NoError(t, store.Clear(ctx))

	count, err := store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	counts, err := store.FailureCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestStorage_FailureCounts_RoundTrip(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	counts, err := store.FailureCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)

	want := map[string]int{"local-1": 1, "local-2": 3}
	require.NoError(t, store.SaveFailureCounts(ctx, want))

	counts, err = store.FailureCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, counts)
}

func TestStorage_CorruptQueue_TreatedAsEmpty(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, createTestMutation("local-1", models.OpCreate)))

	// corrupt the serialized queue behind the storage's back
	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketQueue).Put([]byte(keyPendingMutations), []byte("{not json"))
	})
	require.NoError(t, err)

	queue, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	// appending after corruption starts a fresh queue
	require.NoError(t, store.Append(ctx, createTestMutation("local-2", models.OpCreate)))
	queue, err = store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "local-2", queue[0].LocalID)
}

func TestStorage_QueueSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	store, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, createTestMutation("local-1", models.OpCreate)))
	require.NoError(t, store.Close())

	reopened, err := New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { require.NoError(t, reopened.Close()) }()

	queue, err := reopened.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "local-1", queue[0].LocalID)
}
