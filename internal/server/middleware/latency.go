package middleware

import (
	"net/http"
	"time"
)

// LatencyMiddleware задерживает каждый ответ на заданное время.
// Используется при разработке клиента, чтобы проверить офлайн-поведение
// и отображение pending-состояний на медленной сети
func LatencyMiddleware(delay time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if delay <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
