// Package items is the client-side facade over the movie collection:
// optimistic local edits, the durable pending log, and the triggers
// that start sync runs.
package items

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	httpClient "github.com/sgheorghe/moviekeeper/internal/client/api"
	"github.com/sgheorghe/moviekeeper/internal/client/netmon"
	"github.com/sgheorghe/moviekeeper/internal/client/replica"
	"github.com/sgheorghe/moviekeeper/internal/client/storage"
	syncer "github.com/sgheorghe/moviekeeper/internal/client/sync"
	"github.com/sgheorghe/moviekeeper/internal/models"
	"github.com/sgheorghe/moviekeeper/internal/validation"
	"github.com/sgheorghe/moviekeeper/pkg/api"
)

// DefaultSyncInterval is the cadence of background sync runs while the
// service is started.
const DefaultSyncInterval = 30 * time.Second

// Service определяет интерфейс для работы с коллекцией фильмов
type Service interface {
	// Snapshot returns the current merged view of the collection.
	Snapshot() replica.Snapshot

	// Watch returns a channel that receives a signal whenever the
	// collection changes, plus a cancel func.
	Watch() (<-chan struct{}, func())

	// Refresh fetches the authoritative list and merges it with the
	// pending log. Safe to call while offline: the local view is kept.
	Refresh(ctx context.Context) error

	// Save stores an item optimistically: the replica reflects the edit
	// immediately, and the edit is either confirmed by the store or
	// enqueued for later sync. Returns the item's localId.
	Save(ctx context.Context, item api.Item) (string, error)

	// Delete removes an item optimistically. Deleting a record whose
	// create was never confirmed cancels the create without any
	// network traffic.
	Delete(ctx context.Context, id, localID string) error

	// SyncNow triggers a sync run. Concurrent calls collapse into one.
	SyncNow(ctx context.Context) (*syncer.Result, error)

	// PendingCount returns the number of queued mutations.
	PendingCount(ctx context.Context) (int, error)

	// HandleConnectivity reacts to monitor transitions: going online
	// triggers a sync run.
	HandleConnectivity(status netmon.Status)

	// HandlePushEvent merges a store-announced change into the replica.
	HandlePushEvent(ev api.Event)

	// Start запускает фоновый цикл периодической синхронизации
	Start(ctx context.Context)

	// Stop останавливает фоновый цикл
	Stop()
}

type service struct {
	apiClient httpClient.ClientAPI
	queue     storage.QueueStorage
	replica   *replica.Store
	syncer    syncer.Service
	token     syncer.TokenSource
	online    func() bool
	logger    *slog.Logger
	interval  time.Duration

	mu      gosync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// Config собирает зависимости сервиса
type Config struct {
	APIClient httpClient.ClientAPI
	Queue     storage.QueueStorage
	Replica   *replica.Store
	Syncer    syncer.Service
	Token     syncer.TokenSource

	// Online reports the current effective connectivity. When nil the
	// service assumes it is online and lets network errors decide.
	Online func() bool

	Logger *slog.Logger

	// SyncInterval overrides DefaultSyncInterval when positive.
	SyncInterval time.Duration
}

// NewService creates a new items service
func NewService(cfg Config) Service {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.Online == nil {
		cfg.Online = func() bool { return true }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &service{
		apiClient: cfg.APIClient,
		queue:     cfg.Queue,
		replica:   cfg.Replica,
		syncer:    cfg.Syncer,
		token:     cfg.Token,
		online:    cfg.Online,
		logger:    cfg.Logger,
		interval:  cfg.SyncInterval,
		done:      make(chan struct{}),
	}
}

func (s *service) Snapshot() replica.Snapshot {
	return s.replica.Snapshot()
}

func (s *service) Watch() (<-chan struct{}, func()) {
	return s.replica.Watch()
}

// Refresh loads the authoritative list. A fetch failure leaves the
// local view untouched and is reported through the snapshot's FetchErr.
func (s *service) Refresh(ctx context.Context) error {
	token, err := s.token(ctx)
	if err != nil {
		return fmt.Errorf("not authenticated: %w", err)
	}

	s.replica.StartFetch()

	items, err := s.apiClient.List(ctx, token)
	if err != nil {
		s.replica.FinishFetch(err)
		s.logger.Warn("fetch failed, keeping local view", "error", err)
		if errors.Is(err, httpClient.ErrUnauthorized) {
			return err
		}
		return nil
	}

	pending, err := s.queue.ListAll(ctx)
	if err != nil {
		s.replica.FinishFetch(err)
		return fmt.Errorf("failed to read pending log: %w", err)
	}

	s.replica.MergeSnapshot(items, pending)
	s.replica.FinishFetch(nil)
	return nil
}

// Save applies the edit locally first, then tries the store directly;
// when the store is unreachable the edit is queued instead. An edit to
// a record that already has a queued mutation replaces that mutation,
// so the queue holds at most one entry per record.
func (s *service) Save(ctx context.Context, item api.Item) (string, error) {
	if err := validation.ValidateItem(&item); err != nil {
		return "", err
	}

	if item.LocalID == "" {
		item.LocalID = uuid.New().String()
	}

	op := models.OpCreate
	if item.ID != "" {
		op = models.OpUpdate
	}

	// optimistic local apply
	s.replica.StartSave()
	patch := item.AsPatch()
	s.replica.MergeOne(patch)

	if s.online() {
		if err := s.saveRemote(ctx, &item, op); err == nil {
			s.replica.FinishSave(nil)
			return item.LocalID, nil
		} else if errors.Is(err, httpClient.ErrUnauthorized) {
			s.replica.FinishSave(err)
			return "", err
		} else {
			s.logger.Warn("direct save failed, queueing", "local_id", item.LocalID, "error", err)
		}
	}

	if err := s.enqueue(ctx, op, item); err != nil {
		s.replica.FinishSave(err)
		return "", err
	}

	s.replica.MarkPending(item.ID, item.LocalID)
	s.replica.FinishSave(nil)
	return item.LocalID, nil
}

func (s *service) saveRemote(ctx context.Context, item *api.Item, op models.MutationOp) error {
	token, err := s.token(ctx)
	if err != nil {
		return fmt.Errorf("not authenticated: %w", err)
	}

	var canonical *api.ItemPatch
	if op == models.OpCreate {
		canonical, err = s.apiClient.Create(ctx, token, *item)
	} else {
		canonical, err = s.apiClient.Update(ctx, token, *item)
	}
	if err != nil {
		return err
	}

	if canonical.ID != "" {
		item.ID = canonical.ID
	}
	s.replica.MergeOne(*canonical)
	return nil
}

// Delete follows the same optimistic path. A record still waiting for
// its create to be confirmed is simply forgotten: both the queued
// create and the local record disappear.
func (s *service) Delete(ctx context.Context, id, localID string) error {
	if id == "" && localID == "" {
		return errors.New("delete requires an id or a localId")
	}

	existing, err := s.findQueued(ctx, id, localID)
	if err != nil {
		return err
	}

	if existing != nil && existing.Op == models.OpCreate {
		if err := s.queue.RemoveByLocalIDs(ctx, []string{existing.LocalID}); err != nil {
			return fmt.Errorf("failed to cancel queued create: %w", err)
		}
		s.replica.Remove(id, existing.LocalID)
		return nil
	}

	// optimistic removal from the local view
	s.replica.Remove(id, localID)

	if s.online() && id != "" {
		token, err := s.token(ctx)
		if err != nil {
			return fmt.Errorf("not authenticated: %w", err)
		}
		err = s.apiClient.Delete(ctx, token, id)
		if err == nil {
			if existing != nil {
				return s.queue.RemoveByLocalIDs(ctx, []string{existing.LocalID})
			}
			return nil
		}
		if errors.Is(err, httpClient.ErrUnauthorized) {
			return err
		}
		s.logger.Warn("direct delete failed, queueing", "id", id, "error", err)
	}

	if localID == "" {
		localID = uuid.New().String()
	}
	return s.enqueue(ctx, models.OpDelete, api.Item{ID: id, LocalID: localID})
}

// enqueue replaces any queued mutation for the same record, then
// appends the new one.
func (s *service) enqueue(ctx context.Context, op models.MutationOp, item api.Item) error {
	existing, err := s.findQueued(ctx, item.ID, item.LocalID)
	if err != nil {
		return err
	}
	if existing != nil {
		// a re-edit of an unconfirmed create stays a create
		if existing.Op == models.OpCreate && op == models.OpUpdate {
			op = models.OpCreate
			item.ID = ""
		}
		if err := s.queue.RemoveByLocalIDs(ctx, []string{existing.LocalID}); err != nil {
			return fmt.Errorf("failed to coalesce queued mutation: %w", err)
		}
		item.LocalID = existing.LocalID
	}

	m := &models.PendingMutation{
		EnqueuedAt: time.Now(),
		Item:       item,
		LocalID:    item.LocalID,
		Op:         op,
	}
	if err := s.queue.Append(ctx, m); err != nil {
		return fmt.Errorf("failed to enqueue mutation: %w", err)
	}
	return nil
}

func (s *service) findQueued(ctx context.Context, id, localID string) (*models.PendingMutation, error) {
	pending, err := s.queue.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending log: %w", err)
	}
	for i := range pending {
		m := &pending[i]
		if (localID != "" && m.LocalID == localID) || (id != "" && m.Item.ID == id) {
			return m, nil
		}
	}
	return nil, nil
}

func (s *service) SyncNow(ctx context.Context) (*syncer.Result, error) {
	return s.syncer.Sync(ctx)
}

func (s *service) PendingCount(ctx context.Context) (int, error) {
	return s.syncer.PendingCount(ctx)
}

// HandleConnectivity запускает синхронизацию при восстановлении сети
func (s *service) HandleConnectivity(status netmon.Status) {
	if status != netmon.StatusOnline {
		return
	}
	s.logger.Info("connectivity restored, triggering sync")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := s.syncer.Sync(ctx); err != nil {
			s.logger.Warn("sync after reconnect failed", "error", err)
		}
	}()
}

// HandlePushEvent merges one store-announced change. Events echo back
// the caller's own confirmed edits too; the merge is idempotent, so
// re-applying them is harmless.
func (s *service) HandlePushEvent(ev api.Event) {
	switch ev.Event {
	case api.EventCreated, api.EventUpdated:
		s.replica.MergeOne(ev.Payload.Item)
	case api.EventDeleted:
		s.replica.Remove(ev.Payload.Item.ID, ev.Payload.Item.LocalID)
	default:
		s.logger.Debug("ignoring unknown push event", "event", ev.Event)
	}
}

// Start launches the periodic sync loop. Subsequent calls are no-ops.
func (s *service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.loop(runCtx)
}

func (s *service) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.online() {
				continue
			}
			if _, err := s.syncer.Sync(ctx); err != nil {
				s.logger.Warn("periodic sync failed", "error", err)
			}
		}
	}
}

// Stop останавливает фоновый цикл. Блокирует до выхода горутины.
func (s *service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	s.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-s.done
}
