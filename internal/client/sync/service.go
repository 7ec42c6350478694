package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	httpClient "github.com/sgheorghe/moviekeeper/internal/client/api"
	"github.com/sgheorghe/moviekeeper/internal/client/replica"
	"github.com/sgheorghe/moviekeeper/internal/client/storage"
	"github.com/sgheorghe/moviekeeper/internal/models"
)

// DropThreshold is the number of consecutive failed sync attempts after
// which a pending mutation is abandoned.
const DropThreshold = 3

// defaultCallTimeout bounds each remote operation so a stuck request
// cannot hold the non-reentrancy guard indefinitely.
const defaultCallTimeout = 15 * time.Second

// TokenSource yields the current bearer token for remote calls.
type TokenSource func(ctx context.Context) (string, error)

// Service определяет интерфейс для sync.Service
type Service interface {
	// Sync drains the pending mutation log against the remote store and
	// reconciles the replica. At most one run is in flight at a time: a
	// call that finds a run already in progress is a no-op and returns
	// a result with Skipped set.
	Sync(ctx context.Context) (*Result, error)

	// PendingCount возвращает количество записей, ожидающих синхронизации
	PendingCount(ctx context.Context) (int, error)
}

type service struct {
	apiClient   httpClient.ClientAPI
	queue       storage.QueueStorage
	metadata    storage.MetadataStorage
	replica     *replica.Store
	token       TokenSource
	logger      *slog.Logger
	callTimeout time.Duration
	running     gosync.Mutex
}

// NewService creates a new sync service
func NewService(
	apiClient httpClient.ClientAPI,
	queue storage.QueueStorage,
	metadata storage.MetadataStorage,
	rep *replica.Store,
	token TokenSource,
	logger *slog.Logger,
) Service {
	return &service{
		apiClient:   apiClient,
		queue:       queue,
		metadata:    metadata,
		replica:     rep,
		token:       token,
		logger:      logger,
		callTimeout: defaultCallTimeout,
	}
}

// Result contains sync run results
type Result struct {
	Dispatched int  // мутации, отправленные на сервер
	Succeeded  int  // подтвержденные сервером
	Failed     int  // неудачные, оставлены в очереди
	Dropped    int  // брошенные после DropThreshold неудач
	Skipped    bool // run skipped: another run was already in flight
}

// Sync performs one drain run:
//  1. read the full pending log, oldest first;
//  2. if empty, silently reconcile against the store's current list;
//  3. dispatch each mutation in order, feeding canonical results into
//     the replica merge;
//  4. remove confirmed and abandoned mutations in one batch at the end
//     (no partial queue persistence mid-run);
//  5. final silent reconciliation to converge the replica.
func (s *service) Sync(ctx context.Context) (*Result, error) {
	if !s.running.TryLock() {
		s.logger.Debug("sync run already in flight, skipping")
		return &Result{Skipped: true}, nil
	}
	defer s.running.Unlock()

	token, err := s.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("no usable token: %w", err)
	}

	pending, err := s.queue.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending log: %w", err)
	}

	result := &Result{}

	if len(pending) == 0 {
		s.logger.Debug("pending log empty, reconciling only")
		if err := s.reconcile(ctx, token, nil); err != nil {
			return nil, err
		}
		return result, nil
	}

	s.logger.Info("starting sync run", "pending", len(pending))

	failCounts, err := s.queue.FailureCounts(ctx)
	if err != nil {
		s.logger.Warn("failed to read failure counts, starting fresh", "error", err)
		failCounts = make(map[string]int)
	}

	var removals []string
	removed := make(map[string]bool)

	for i := range pending {
		m := &pending[i]

		err := s.dispatch(ctx, token, m)
		if err == nil {
			result.Dispatched++
			result.Succeeded++
			removals = append(removals, m.LocalID)
			removed[m.LocalID] = true
			delete(failCounts, m.LocalID)
			continue
		}

		// an invalid token fails every remaining mutation the same
		// way; surface it so the caller can force re-authentication
		if errors.Is(err, httpClient.ErrUnauthorized) {
			return nil, fmt.Errorf("sync aborted: %w", err)
		}

		result.Dispatched++
		failCounts[m.LocalID]++
		s.logger.Warn("sync dispatch failed",
			"local_id", m.LocalID,
			"op", m.Op,
			"failures", failCounts[m.LocalID],
			"error", err)

		if failCounts[m.LocalID] >= DropThreshold {
			// accepted data loss: abandon the mutation, leave the
			// local record as-is
			removals = append(removals, m.LocalID)
			removed[m.LocalID] = true
			delete(failCounts, m.LocalID)
			s.replica.NoteDropped(m.LocalID)
			result.Dropped++
		} else {
			result.Failed++
		}
	}

	// commit queue removals and the failure-count table at the end of
	// the run, never mid-drain
	if err := s.queue.SaveFailureCounts(ctx, failCounts); err != nil {
		s.logger.Warn("failed to persist failure counts", "error", err)
	}
	if err := s.queue.RemoveByLocalIDs(ctx, removals); err != nil {
		return result, fmt.Errorf("failed to remove confirmed mutations: %w", err)
	}

	remaining := make([]models.PendingMutation, 0, len(pending)-len(removals))
	for _, m := range pending {
		if !removed[m.LocalID] {
			remaining = append(remaining, m)
		}
	}

	if err := s.reconcile(ctx, token, remaining); err != nil {
		return result, err
	}

	s.logger.Info("sync run completed",
		"dispatched", result.Dispatched,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"dropped", result.Dropped)

	return result, nil
}

// dispatch sends one mutation to the remote store and merges the
// canonical outcome into the replica.
func (s *service) dispatch(ctx context.Context, token string, m *models.PendingMutation) error {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	switch m.Op {
	case models.OpCreate:
		canonical, err := s.apiClient.Create(callCtx, token, m.Item)
		if err != nil {
			return err
		}
		s.replica.MergeOne(*canonical)
		return nil

	case models.OpUpdate:
		if m.Item.ID == "" {
			// an update that never acquired a server id cannot be
			// replayed; treated like a successful no-op so it leaves
			// the queue
			s.logger.Warn("dropping update mutation without server id", "local_id", m.LocalID)
			return nil
		}
		canonical, err := s.apiClient.Update(callCtx, token, m.Item)
		if err != nil {
			return err
		}
		s.replica.MergeOne(*canonical)
		return nil

	case models.OpDelete:
		if m.Item.ID == "" {
			s.logger.Warn("dropping delete mutation without server id", "local_id", m.LocalID)
			return nil
		}
		if err := s.apiClient.Delete(callCtx, token, m.Item.ID); err != nil {
			return err
		}
		s.replica.Remove(m.Item.ID, m.LocalID)
		return nil

	default:
		s.logger.Warn("unknown mutation op, dropping", "op", m.Op, "local_id", m.LocalID)
		return nil
	}
}

// reconcile fetches the authoritative list and silently merges it with
// whatever is still pending.
func (s *service) reconcile(ctx context.Context, token string, pending []models.PendingMutation) error {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	items, err := s.apiClient.List(callCtx, token)
	if err != nil {
		if errors.Is(err, httpClient.ErrUnauthorized) {
			return fmt.Errorf("reconcile aborted: %w", err)
		}
		// degraded mode: keep the local view, log only
		s.logger.Warn("reconcile fetch failed, keeping local view", "error", err)
		return nil
	}

	if pending == nil {
		queued, err := s.queue.ListAll(ctx)
		if err != nil {
			s.logger.Warn("failed to read pending log for reconcile", "error", err)
		} else {
			pending = queued
		}
	}

	s.replica.MergeSnapshot(items, pending)

	if err := s.metadata.SaveLastSyncTimestamp(ctx, time.Now().Unix()); err != nil {
		s.logger.Warn("failed to save last sync timestamp", "error", err)
	}

	return nil
}

// PendingCount возвращает количество записей, ожидающих синхронизации
func (s *service) PendingCount(ctx context.Context) (int, error) {
	count, err := s.queue.PendingCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending mutations: %w", err)
	}
	return count, nil
}
