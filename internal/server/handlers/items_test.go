package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgheorghe/moviekeeper/internal/server/storage"
	"github.com/sgheorghe/moviekeeper/pkg/api"
)

type itemStorageMock struct {
	CreateItemFunc func(ctx context.Context, item *api.Item) error
	GetItemFunc    func(ctx context.Context, userID, id string) (*api.Item, error)
	UpdateItemFunc func(ctx context.Context, item *api.Item) error
	DeleteItemFunc func(ctx context.Context, userID, id string) error
	ListItemsFunc  func(ctx context.Context, userID string, q storage.ListQuery) ([]api.Item, error)
}

func (m *itemStorageMock) CreateItem(ctx context.Context, item *api.Item) error {
	return m.CreateItemFunc(ctx, item)
}

func (m *itemStorageMock) GetItem(ctx context.Context, userID, id string) (*api.Item, error) {
	return m.GetItemFunc(ctx, userID, id)
}

func (m *itemStorageMock) UpdateItem(ctx context.Context, item *api.Item) error {
	return m.UpdateItemFunc(ctx, item)
}

func (m *itemStorageMock) DeleteItem(ctx context.Context, userID, id string) error {
	return m.DeleteItemFunc(ctx, userID, id)
}

func (m *itemStorageMock) ListItems(ctx context.Context, userID string, q storage.ListQuery) ([]api.Item, error) {
	return m.ListItemsFunc(ctx, userID, q)
}

type broadcasterMock struct {
	events []api.Event
	users  []string
}

func (m *broadcasterMock) Broadcast(userID string, ev api.Event) {
	m.users = append(m.users, userID)
	m.events = append(m.events, ev)
}

// authedRequest builds a request carrying the auth middleware's context values.
func authedRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	ctx := context.WithValue(req.Context(), UserIDKey, "user-1")
	ctx = context.WithValue(ctx, UsernameKey, "alice")
	return req.WithContext(ctx)
}

func TestItemsHandler_List(t *testing.T) {
	var gotQuery storage.ListQuery
	itemStorage := &itemStorageMock{
		ListItemsFunc: func(_ context.Context, userID string, q storage.ListQuery) ([]api.Item, error) {
			assert.Equal(t, "user-1", userID)
			gotQuery = q
			return []api.Item{{ID: "srv-1", Name: "Alien"}}, nil
		},
	}
	h := NewItemsHandler(testLogger(), itemStorage, nil)

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(t, http.MethodGet, "/api/v1/items?q=alien&cinema=true&page=2&size=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alien", gotQuery.Name)
	require.NotNil(t, gotQuery.Cinema)
	assert.True(t, *gotQuery.Cinema)
	assert.Equal(t, 2, gotQuery.Page)
	assert.Equal(t, 10, gotQuery.PageSize)

	var items []api.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "srv-1", items[0].ID)
}

func TestItemsHandler_List_EmptyIsArray(t *testing.T) {
	itemStorage := &itemStorageMock{
		ListItemsFunc: func(_ context.Context, _ string, _ storage.ListQuery) ([]api.Item, error) {
			return nil, nil
		},
	}
	h := NewItemsHandler(testLogger(), itemStorage, nil)

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(t, http.MethodGet, "/api/v1/items", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestItemsHandler_List_Unauthenticated(t *testing.T) {
	h := NewItemsHandler(testLogger(), &itemStorageMock{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestItemsHandler_Create(t *testing.T) {
	var stored *api.Item
	itemStorage := &itemStorageMock{
		CreateItemFunc: func(_ context.Context, item *api.Item) error {
			stored = item
			return nil
		},
	}
	broadcaster := &broadcasterMock{}
	h := NewItemsHandler(testLogger(), itemStorage, broadcaster)

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(t, http.MethodPost, "/api/v1/items", api.Item{
		Name:    "Alien",
		LocalID: "local-1",
		Price:   9.99,
	}))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, "user-1", stored.UserID)

	// клиент сопоставляет подтверждение по _localId
	var resp api.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, stored.ID, resp.ID)
	assert.Equal(t, "local-1", resp.LocalID)

	require.Len(t, broadcaster.events, 1)
	assert.Equal(t, []string{"user-1"}, broadcaster.users)
	assert.Equal(t, api.EventCreated, broadcaster.events[0].Event)
	assert.Equal(t, stored.ID, broadcaster.events[0].Payload.Item.ID)
}

func TestItemsHandler_Create_InvalidItem(t *testing.T) {
	h := NewItemsHandler(testLogger(), &itemStorageMock{}, nil)

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(t, http.MethodPost, "/api/v1/items", api.Item{Name: ""}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestItemsHandler_Update(t *testing.T) {
	var updated *api.Item
	itemStorage := &itemStorageMock{
		UpdateItemFunc: func(_ context.Context, item *api.Item) error {
			updated = item
			return nil
		},
	}
	broadcaster := &broadcasterMock{}
	h := NewItemsHandler(testLogger(), itemStorage, broadcaster)

	req := authedRequest(t, http.MethodPut, "/api/v1/items/srv-1", api.Item{Name: "Aliens"})
	req.SetPathValue("id", "srv-1")
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, updated)
	assert.Equal(t, "srv-1", updated.ID)
	assert.Equal(t, "user-1", updated.UserID)

	require.Len(t, broadcaster.events, 1)
	assert.Equal(t, api.EventUpdated, broadcaster.events[0].Event)
}

func TestItemsHandler_Update_IDMismatch(t *testing.T) {
	h := NewItemsHandler(testLogger(), &itemStorageMock{}, nil)

	req := authedRequest(t, http.MethodPut, "/api/v1/items/srv-1", api.Item{ID: "srv-2", Name: "Aliens"})
	req.SetPathValue("id", "srv-1")
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestItemsHandler_Update_CreatesMissing(t *testing.T) {
	var created *api.Item
	itemStorage := &itemStorageMock{
		UpdateItemFunc: func(_ context.Context, _ *api.Item) error {
			return storage.ErrItemNotFound
		},
		CreateItemFunc: func(_ context.Context, item *api.Item) error {
			created = item
			return nil
		},
	}
	h := NewItemsHandler(testLogger(), itemStorage, nil)

	req := authedRequest(t, http.MethodPut, "/api/v1/items/srv-9", api.Item{Name: "Dune"})
	req.SetPathValue("id", "srv-9")
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, created)
	assert.Equal(t, "srv-9", created.ID)
}

func TestItemsHandler_Delete(t *testing.T) {
	var deletedID string
	itemStorage := &itemStorageMock{
		DeleteItemFunc: func(_ context.Context, userID, id string) error {
			assert.Equal(t, "user-1", userID)
			deletedID = id
			return nil
		},
	}
	broadcaster := &broadcasterMock{}
	h := NewItemsHandler(testLogger(), itemStorage, broadcaster)

	req := authedRequest(t, http.MethodDelete, "/api/v1/items/srv-1", nil)
	req.SetPathValue("id", "srv-1")
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "srv-1", deletedID)

	require.Len(t, broadcaster.events, 1)
	assert.Equal(t, api.EventDeleted, broadcaster.events[0].Event)
	assert.Equal(t, "srv-1", broadcaster.events[0].Payload.Item.ID)
}

func TestItemsHandler_Delete_MissingIsIdempotent(t *testing.T) {
	itemStorage := &itemStorageMock{
		DeleteItemFunc: func(_ context.Context, _, _ string) error {
			return storage.ErrItemNotFound
		},
	}
	broadcaster := &broadcasterMock{}

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	h := NewItemsHandler(logger, itemStorage, broadcaster)

	req := authedRequest(t, http.MethodDelete, "/api/v1/items/ghost", nil)
	req.SetPathValue("id", "ghost")
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	// нет записи — нет ни события, ни лога об удалении
	assert.Empty(t, broadcaster.events)
	assert.NotContains(t, logBuf.String(), "item deleted")
}
