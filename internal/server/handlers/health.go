package handlers

import (
	"log/slog"
	"net/http"
)

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger *slog.Logger
}

// NewHealthHandler создает новый health handler
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

// Ping обрабатывает GET /api/v1/ping. The connectivity monitor on the
// client polls this endpoint, so it stays unauthenticated and cheap.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	sendJSON(h.logger, w, map[string]string{"status": "ok"}, http.StatusOK)
}
