package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/sgheorghe/moviekeeper/internal/server/storage"
	"github.com/sgheorghe/moviekeeper/internal/validation"
	"github.com/sgheorghe/moviekeeper/pkg/api"
)

// Broadcaster delivers change events to the owner's live subscribers.
type Broadcaster interface {
	Broadcast(userID string, ev api.Event)
}

// noopBroadcaster is used when the hub is disabled.
type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(string, api.Event) {}

// ItemsHandler обрабатывает CRUD запросы для записей
type ItemsHandler struct {
	logger      *slog.Logger
	itemStorage storage.ItemStorage
	broadcaster Broadcaster
}

// NewItemsHandler создает новый handler для записей
func NewItemsHandler(logger *slog.Logger, itemStorage storage.ItemStorage, broadcaster Broadcaster) *ItemsHandler {
	if broadcaster == nil {
		broadcaster = noopBroadcaster{}
	}
	return &ItemsHandler{
		logger:      logger,
		itemStorage: itemStorage,
		broadcaster: broadcaster,
	}
}

// List обрабатывает GET /api/v1/items
// Возвращает записи текущего пользователя с фильтрами q, cinema и пагинацией
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	q := storage.ListQuery{
		Name: r.URL.Query().Get("q"),
	}

	if cinemaStr := r.URL.Query().Get("cinema"); cinemaStr != "" {
		cinema, err := strconv.ParseBool(cinemaStr)
		if err != nil {
			sendError(h.logger, w, "invalid cinema parameter", http.StatusBadRequest)
			return
		}
		q.Cinema = &cinema
	}

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			sendError(h.logger, w, "invalid page parameter", http.StatusBadRequest)
			return
		}
		q.Page = page
		q.PageSize = 25
	}
	if sizeStr := r.URL.Query().Get("size"); sizeStr != "" {
		size, err := strconv.Atoi(sizeStr)
		if err != nil || size < 1 {
			sendError(h.logger, w, "invalid size parameter", http.StatusBadRequest)
			return
		}
		q.PageSize = size
	}

	items, err := h.itemStorage.ListItems(ctx, userID, q)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list items", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if items == nil {
		items = []api.Item{}
	}

	sendJSON(h.logger, w, items, http.StatusOK)
}

// Create обрабатывает POST /api/v1/items
// Сервер назначает id и владельца; _localId клиента сохраняется и
// возвращается, чтобы реплика могла сопоставить подтверждение
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var item api.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateItem(&item); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	item.ID = uuid.New().String()
	item.UserID = userID

	if err := h.itemStorage.CreateItem(ctx, &item); err != nil {
		h.logger.ErrorContext(ctx, "failed to create item", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "item created",
		slog.String("item_id", item.ID),
		slog.String("user_id", userID))

	h.broadcaster.Broadcast(userID, api.Event{
		Event:   api.EventCreated,
		Payload: api.EventPayload{Item: item.AsPatch()},
	})

	sendJSON(h.logger, w, item, http.StatusCreated)
}

// Update обрабатывает PUT /api/v1/items/{id}
// Тело с другим id отклоняется; тело без id получает id из пути.
// Неизвестный id создает запись с этим id, поэтому повтор после
// обрыва сети безопасен
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		sendError(h.logger, w, "item id is required", http.StatusBadRequest)
		return
	}

	var item api.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if item.ID != "" && item.ID != id {
		sendError(h.logger, w, "item id does not match request path", http.StatusBadRequest)
		return
	}
	item.ID = id
	item.UserID = userID

	if err := validation.ValidateItem(&item); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	err := h.itemStorage.UpdateItem(ctx, &item)
	if errors.Is(err, storage.ErrItemNotFound) {
		err = h.itemStorage.CreateItem(ctx, &item)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to update item", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "item updated",
		slog.String("item_id", item.ID),
		slog.String("user_id", userID))

	h.broadcaster.Broadcast(userID, api.Event{
		Event:   api.EventUpdated,
		Payload: api.EventPayload{Item: item.AsPatch()},
	})

	sendJSON(h.logger, w, item, http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/items/{id}
// Идемпотентный: повторное удаление тоже отвечает 204
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		sendError(h.logger, w, "item id is required", http.StatusBadRequest)
		return
	}

	err := h.itemStorage.DeleteItem(ctx, userID, id)
	switch {
	case errors.Is(err, storage.ErrItemNotFound):
		// already gone
	case err != nil:
		h.logger.ErrorContext(ctx, "failed to delete item", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	default:
		h.logger.InfoContext(ctx, "item deleted",
			slog.String("item_id", id),
			slog.String("user_id", userID))

		h.broadcaster.Broadcast(userID, api.Event{
			Event:   api.EventDeleted,
			Payload: api.EventPayload{Item: api.ItemPatch{ID: id}},
		})
	}

	w.WriteHeader(http.StatusNoContent)
}
