package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tempizhere/prowly/internal/ratelimit"
	"github.com/tempizhere/prowly/internal/service"
	"go.uber.org/zap"
)

// rateLimitResponse представляет тело ответа при превышении лимита
type rateLimitResponse struct {
	Error string `json:"error"`
	Reset string `json:"reset"`
}

// RateLimitMiddleware ограничивает частоту запросов по IP клиента.
// Применяется только к пишущим эндпоинтам: редирект остаётся без лимита.
func RateLimitMiddleware(limiter ratelimit.Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := service.ClientIP(r.Header)
			ok, reset, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.Warn("Rate limiter error", zap.Error(err))
				ok = true
			}
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", reset.UTC().Format(http.TimeFormat))
				w.WriteHeader(http.StatusTooManyRequests)
				resp := rateLimitResponse{
					Error: "Rate limit exceeded, try again later",
					Reset: reset.UTC().Format(time.RFC3339),
				}
				if err := json.NewEncoder(w).Encode(resp); err != nil {
					logger.Error("Failed to write rate limit response", zap.Error(err))
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
