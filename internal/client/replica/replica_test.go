package replica

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgheorghe/moviekeeper/internal/models"
	"github.com/sgheorghe/moviekeeper/pkg/api"
)

func newTestStore() *Store {
	return New(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func strPtr(s string) *string      { return &s }
func floatPtr(f float64) *float64  { return &f }
func boolPtr(b bool) *bool         { return &b }
func timePtr(t time.Time) *time.Time { return &t }

func serverItem(id, localID, name string, price float64) api.Item {
	return api.Item{ID: id, LocalID: localID, Name: name, Price: price, UserID: "alice"}
}

func pendingCreate(localID, name string) models.PendingMutation {
	return models.PendingMutation{
		LocalID:    localID,
		Op:         models.OpCreate,
		EnqueuedAt: time.Now(),
		Item:       api.Item{LocalID: localID, Name: name},
	}
}

func TestMergeSnapshot_AppendsLocalOnly(t *testing.T) {
	s := newTestStore()

	s.MergeSnapshot(
		[]api.Item{serverItem("1", "", "Alien", 10)},
		[]models.PendingMutation{pendingCreate("local-1", "Dune")},
	)

	snap := s.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "Alien", snap.Items[0].Name)
	assert.False(t, snap.Items[0].Pending)
	assert.Equal(t, models.StateSynced, snap.Items[0].State())

	assert.Equal(t, "Dune", snap.Items[1].Name)
	assert.True(t, snap.Items[1].Pending)
	assert.Empty(t, snap.Items[1].ID)
	assert.Equal(t, models.StateLocalOnly, snap.Items[1].State())
}

func TestMergeSnapshot_PendingDeleteFiltered(t *testing.T) {
	s := newTestStore()

	// the delete target may still be present in a fresh authoritative
	// list; it must be actively filtered
	del := models.PendingMutation{
		LocalID: "local-2",
		Op:      models.OpDelete,
		Item:    api.Item{ID: "2", LocalID: "local-2", Name: "Gone"},
	}
	s.MergeSnapshot(
		[]api.Item{serverItem("1", "", "Alien", 10), serverItem("2", "local-2", "Gone", 5)},
		[]models.PendingMutation{del},
	)

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Alien", snap.Items[0].Name)
}

func TestMergeSnapshot_PendingUpdatePresentOnServer(t *testing.T) {
	s := newTestStore()

	upd := models.PendingMutation{
		LocalID: "local-1",
		Op:      models.OpUpdate,
		Item:    api.Item{ID: "1", LocalID: "local-1", Name: "Edited"},
	}
	s.MergeSnapshot(
		[]api.Item{serverItem("1", "local-1", "Original", 10)},
		[]models.PendingMutation{upd},
	)

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	// authoritative value wins until the queued update syncs, but the
	// record is tagged pending
	assert.Equal(t, "Original", snap.Items[0].Name)
	assert.True(t, snap.Items[0].Pending)
	assert.Equal(t, models.StatePendingSync, snap.Items[0].State())
}

func TestMergeSnapshot_NeverDuplicates(t *testing.T) {
	s := newTestStore()

	s.MergeSnapshot(
		[]api.Item{serverItem("1", "local-1", "Alien", 10)},
		[]models.PendingMutation{
			{LocalID: "local-1", Op: models.OpCreate, Item: api.Item{LocalID: "local-1", Name: "Alien"}},
		},
	)

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "1", snap.Items[0].ID)
}

func TestMergeOne_PartialUpdate(t *testing.T) {
	s := newTestStore()
	s.MergeSnapshot([]api.Item{{ID: "1", Name: "A", Price: 10}}, nil)

	// incoming defines only price; name must survive
	s.MergeOne(api.ItemPatch{ID: "1", Price: floatPtr(12)})

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "A", snap.Items[0].Name)
	assert.Equal(t, float64(12), snap.Items[0].Price)
}

func TestMergeOne_AppendsUnknown(t *testing.T) {
	s := newTestStore()

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.MergeOne(api.ItemPatch{
		ID:      "7",
		Name:    strPtr("Heat"),
		Cinema:  boolPtr(true),
		Date:    timePtr(date),
		Price:   floatPtr(9.5),
	})

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Heat", snap.Items[0].Name)
	assert.True(t, snap.Items[0].Cinema)
	assert.Equal(t, date, snap.Items[0].Date)
	assert.False(t, snap.Items[0].Pending)
}

func TestMergeOne_AcquiresServerID(t *testing.T) {
	s := newTestStore()
	s.MergeSnapshot(nil, []models.PendingMutation{pendingCreate("local-1", "Dune")})

	// sync result: canonical record carries the server id and the
	// original localId
	s.MergeOne(api.ItemPatch{ID: "42", LocalID: "local-1", Name: strPtr("Dune")})

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "42", snap.Items[0].ID)
	assert.Equal(t, "local-1", snap.Items[0].LocalID)
	assert.False(t, snap.Items[0].Pending)
	assert.Equal(t, models.StateSynced, snap.Items[0].State())
}

func TestMergeOne_DedupByID(t *testing.T) {
	s := newTestStore()

	// a pushed create for our own pending record can arrive before the
	// sync result merges; both resolve to the same server id
	s.MergeSnapshot(nil, []models.PendingMutation{pendingCreate("local-1", "Dune")})
	s.MergeOne(api.ItemPatch{ID: "42", Name: strPtr("Dune")})
	s.MergeOne(api.ItemPatch{ID: "42", LocalID: "local-1", Name: strPtr("Dune")})

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "42", snap.Items[0].ID)
	assert.Equal(t, "local-1", snap.Items[0].LocalID)
}

func TestMergeOne_DedupByLocalID(t *testing.T) {
	s := newTestStore()

	// pushed create lands first and carries no localId, so it cannot be
	// matched to the pending local-only record yet
	s.MergeSnapshot(nil, []models.PendingMutation{pendingCreate("local-1", "Dune")})
	s.MergeOne(api.ItemPatch{ID: "42", Name: strPtr("Dune")})

	// the sync result then binds the server id to the localId; the stale
	// local-only record must be absorbed, not left as a duplicate
	s.MergeOne(api.ItemPatch{ID: "42", LocalID: "local-1", Name: strPtr("Dune")})

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)

	byID := make(map[string]int)
	byLocalID := make(map[string]int)
	for _, r := range snap.Items {
		if r.ID != "" {
			byID[r.ID]++
		}
		if r.LocalID != "" {
			byLocalID[r.LocalID]++
		}
	}
	assert.Equal(t, 1, byID["42"], "no two records may share a server id")
	assert.Equal(t, 1, byLocalID["local-1"], "no two records may share a localId")
	assert.Equal(t, models.StateSynced, snap.Items[0].State())
}

func TestMergeOne_PushIdempotent(t *testing.T) {
	s := newTestStore()
	s.MergeSnapshot([]api.Item{serverItem("1", "", "Alien", 10)}, nil)

	patch := api.ItemPatch{ID: "1", Name: strPtr("Aliens"), Price: floatPtr(11)}
	s.MergeOne(patch)
	first := s.Snapshot()

	s.MergeOne(patch)
	second := s.Snapshot()

	assert.Equal(t, first.Items, second.Items)
}

func TestRemove(t *testing.T) {
	s := newTestStore()
	s.MergeSnapshot(
		[]api.Item{serverItem("1", "", "Alien", 10)},
		[]models.PendingMutation{pendingCreate("local-1", "Dune")},
	)

	s.Remove("1", "")
	s.Remove("", "local-1")

	assert.Empty(t, s.Snapshot().Items)
}

func TestBusyFlagsAndErrors(t *testing.T) {
	s := newTestStore()

	s.StartFetch()
	assert.True(t, s.Snapshot().Fetching)

	s.FinishFetch(assert.AnError)
	snap := s.Snapshot()
	assert.False(t, snap.Fetching)
	assert.Equal(t, assert.AnError, snap.FetchErr)

	s.StartSave()
	assert.True(t, s.Snapshot().Saving)
	s.FinishSave(nil)
	snap = s.Snapshot()
	assert.False(t, snap.Saving)
	assert.NoError(t, snap.SaveErr)
}

func TestNoteDropped(t *testing.T) {
	s := newTestStore()
	s.NoteDropped("local-1")
	s.NoteDropped("local-2")
	assert.Equal(t, 2, s.Snapshot().Dropped)
}

func TestWatch_CoalescedNotification(t *testing.T) {
	s := newTestStore()
	ch, cancel := s.Watch()
	defer cancel()

	s.MergeOne(api.ItemPatch{ID: "1", Name: strPtr("A")})
	s.MergeOne(api.ItemPatch{ID: "1", Name: strPtr("B")})

	select {
	case <-ch:
	default:
		t.Fatal("expected a change signal")
	}

	// signals coalesce: at most one queued
	select {
	case <-ch:
		t.Fatal("expected signals to coalesce")
	default:
	}
}
