// Package hub содержит WebSocket-концентратор push-уведомлений.
//
// Каждое изменение записи (create/update/delete) рассылается всем живым
// соединениям владельца записи, чтобы его реплики на других устройствах
// обновились без ожидания периодической синхронизации.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/sgheorghe/moviekeeper/internal/server/handlers"
	"github.com/sgheorghe/moviekeeper/pkg/api"
)

const writeTimeout = 5 * time.Second

// Hub хранит активные WebSocket-соединения, сгруппированные по пользователю
type Hub struct {
	logger    *slog.Logger
	jwtConfig handlers.JWTConfig

	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]struct{}
	closed  bool
}

// New создает пустой hub
func New(logger *slog.Logger, jwtConfig handlers.JWTConfig) *Hub {
	return &Hub{
		logger:    logger,
		jwtConfig: jwtConfig,
		clients:   make(map[string]map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP обрабатывает GET /ws?token=...
// Токен передается в query string, потому что браузерный WebSocket API
// не позволяет выставить Authorization header
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}

	claims, err := handlers.ValidateAccessToken(h.jwtConfig, token)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket auth failed", slog.Any("error", err))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	userID := claims.Subject

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.Any("error", err))
		return
	}

	h.addClient(userID, conn)
	h.logger.InfoContext(r.Context(), "websocket client connected",
		slog.String("user_id", userID),
		slog.Int("connections", h.connCount(userID)))

	// Входящие кадры не несут смысла, но read loop нужен, чтобы
	// обрабатывать ping/pong и заметить разрыв соединения
	h.readLoop(r.Context(), userID, conn)
}

// Broadcast рассылает событие по всем соединениям пользователя.
// Соединения с ошибкой записи удаляются
func (h *Hub) Broadcast(userID string, ev api.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal event", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients[userID]))
	for conn := range h.clients[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := conn.Write(ctx, websocket.MessageText, data)
		cancel()

		if err != nil {
			h.logger.Debug("websocket write failed, dropping connection",
				slog.String("user_id", userID),
				slog.Any("error", err))
			h.removeClient(userID, conn)
			_ = conn.Close(websocket.StatusNormalClosure, "write failed")
		}
	}
}

// Close закрывает все соединения; новые подписки после этого не принимаются
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for userID, conns := range h.clients {
		for conn := range conns {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(h.clients, userID)
	}
}

func (h *Hub) readLoop(ctx context.Context, userID string, conn *websocket.Conn) {
	defer func() {
		h.removeClient(userID, conn)
		_ = conn.CloseNow()
		h.logger.Info("websocket client disconnected", slog.String("user_id", userID))
	}()

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func (h *Hub) addClient(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*websocket.Conn]struct{})
	}
	h.clients[userID][conn] = struct{}{}
}

func (h *Hub) removeClient(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.clients[userID]
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.clients, userID)
	}
}

func (h *Hub) connCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
