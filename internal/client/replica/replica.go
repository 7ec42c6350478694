// Package replica owns the single in-memory view of the item collection.
//
// Every source of change — local edits, sync outcomes, pushed events,
// refetches — funnels through the Store's mutex-guarded merge methods,
// so concurrent sources never race on the replica and one merge
// algorithm serves all sources of truth.
package replica

import (
	"log/slog"
	"sync"

	"github.com/sgheorghe/moviekeeper/internal/models"
	"github.com/sgheorghe/moviekeeper/pkg/api"
)

// Record is an item plus its local sync tag. Pending marks records the
// server has not acknowledged yet (local-only creates and unconfirmed
// edits).
type Record struct {
	api.Item
	Pending bool `json:"pending,omitempty"`
}

// State returns the current sync lifecycle state of the record.
func (r *Record) State() models.RecordState {
	switch {
	case r.ID == "":
		return models.StateLocalOnly
	case r.Pending:
		return models.StatePendingSync
	default:
		return models.StateSynced
	}
}

// Snapshot is a point-in-time copy of the replica exposed to callers.
type Snapshot struct {
	FetchErr error
	SaveErr  error
	Items    []Record
	Dropped  int
	Fetching bool
	Saving   bool
}

// Store holds the replica state. All mutation goes through its methods;
// other components never touch the item list directly.
type Store struct {
	logger   *slog.Logger
	fetchErr error
	saveErr  error
	items    []Record
	watchers []chan struct{}
	dropped  int
	mu       sync.RWMutex
	fetching bool
	saving   bool
}

// New creates an empty replica store.
func New(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Record, len(s.items))
	copy(items, s.items)

	return Snapshot{
		Items:    items,
		Fetching: s.fetching,
		Saving:   s.saving,
		FetchErr: s.fetchErr,
		SaveErr:  s.saveErr,
		Dropped:  s.dropped,
	}
}

// MergeSnapshot rebuilds the replica from an authoritative server list
// and the pending mutation log:
//   - the authoritative list is the base, minus any record a pending
//     delete targets;
//   - every pending non-delete mutation whose record the authoritative
//     list does not contain is appended as a local-only record;
//   - records the authoritative list does contain but that still have a
//     queued mutation are tagged pending.
func (s *Store) MergeSnapshot(serverItems []api.Item, pending []models.PendingMutation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pendingIdentity := make(map[string]bool, len(pending)*2)
	deleted := make(map[string]bool)
	for _, m := range pending {
		pendingIdentity[m.LocalID] = true
		if m.Item.ID != "" {
			pendingIdentity[m.Item.ID] = true
		}
		if m.Op == models.OpDelete {
			if m.Item.ID != "" {
				deleted[m.Item.ID] = true
			}
			deleted[m.LocalID] = true
		}
	}

	merged := make([]Record, 0, len(serverItems)+len(pending))
	for _, it := range serverItems {
		if deleted[it.ID] || (it.LocalID != "" && deleted[it.LocalID]) {
			continue
		}
		if findIndex(merged, it.ID, it.LocalID) != -1 {
			// authoritative list should never duplicate, but the
			// replica must not either way
			continue
		}
		hasPending := pendingIdentity[it.ID] || (it.LocalID != "" && pendingIdentity[it.LocalID])
		merged = append(merged, Record{Item: it, Pending: hasPending})
	}

	for _, m := range pending {
		if m.Op == models.OpDelete {
			continue
		}
		if findIndex(merged, m.Item.ID, m.LocalID) != -1 {
			continue
		}
		item := m.Item
		item.LocalID = m.LocalID
		merged = append(merged, Record{Item: item, Pending: true})
	}

	s.items = merged
	s.notifyLocked()
}

// MergeOne applies a single authoritative record (a sync result or a
// pushed event) to the replica. Absent records are appended; present
// records take each defined incoming field and keep the stored value
// for undefined ones. This is the only place a record ever acquires a
// server id.
func (s *Store) MergeOne(p api.ItemPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := findIndex(s.items, p.ID, p.LocalID)
	if idx == -1 {
		s.items = append(s.items, Record{Item: p.ToItem(), Pending: p.ID == ""})
		s.notifyLocked()
		return
	}

	p.Apply(&s.items[idx].Item)
	if p.ID != "" {
		s.items[idx].Pending = false
		s.dedupLocked(idx)
	}
	s.notifyLocked()
}

// Remove drops any record matching the deleted identity.
func (s *Store) Remove(id, localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	for _, r := range s.items {
		if r.Matches(id, localID) {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) != len(s.items) {
		s.items = kept
		s.notifyLocked()
	}
}

// MarkPending tags the record with the given identity as awaiting sync.
func (s *Store) MarkPending(id, localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := findIndex(s.items, id, localID); idx != -1 {
		s.items[idx].Pending = true
		s.notifyLocked()
	}
}

// NoteDropped records that a pending mutation was abandoned after
// repeated failures. The local record stays as-is; the count gives the
// caller a surface for the accepted data loss.
func (s *Store) NoteDropped(localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropped++
	s.logger.Warn("pending mutation abandoned after repeated sync failures",
		"local_id", localID, "dropped_total", s.dropped)
	s.notifyLocked()
}

// StartFetch flags a fetch in progress and clears the previous error.
func (s *Store) StartFetch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching = true
	s.fetchErr = nil
	s.notifyLocked()
}

// FinishFetch clears the busy flag and records the outcome.
func (s *Store) FinishFetch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching = false
	s.fetchErr = err
	s.notifyLocked()
}

// StartSave flags a save in progress and clears the previous error.
func (s *Store) StartSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = true
	s.saveErr = nil
	s.notifyLocked()
}

// FinishSave clears the busy flag and records the outcome.
func (s *Store) FinishSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	s.saveErr = err
	s.notifyLocked()
}

// Watch returns a channel that receives a (coalesced) signal whenever
// the replica changes, plus a cancel function releasing the watcher.
func (s *Store) Watch() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{}, 1)
	s.watchers = append(s.watchers, ch)

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				return
			}
		}
	}
	return ch, cancel
}

// notifyLocked signals all watchers without blocking; a watcher that
// has not consumed the previous signal keeps the single queued one.
func (s *Store) notifyLocked() {
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// dedupLocked removes any record other than items[keep] sharing its
// server id or its localId, preserving the identity invariant after a
// record transitions from local-only to server-known. Both keys matter:
// a pushed create can land first without a localId, and the later sync
// result then binds the id to the localId — at that point the stale
// local-only record must go.
func (s *Store) dedupLocked(keep int) {
	id := s.items[keep].ID
	localID := s.items[keep].LocalID
	if id == "" && localID == "" {
		return
	}
	kept := s.items[:0]
	for i := range s.items {
		if i != keep {
			if id != "" && s.items[i].ID == id {
				continue
			}
			if localID != "" && s.items[i].LocalID == localID {
				continue
			}
		}
		kept = append(kept, s.items[i])
	}
	s.items = kept
}

// findIndex locates a record by server id first, localId as fallback.
func findIndex(items []Record, id, localID string) int {
	if id != "" {
		for i := range items {
			if items[i].ID == id {
				return i
			}
		}
	}
	if localID != "" {
		for i := range items {
			if items[i].LocalID == localID {
				return i
			}
		}
	}
	return -1
}
