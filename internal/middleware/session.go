// Package middleware содержит HTTP middleware: разрешение сессии,
// логирование, сжатие ответов, ограничение частоты и доверенные подсети.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/tempizhere/prowly/internal/models"
	"github.com/tempizhere/prowly/internal/service"
	"go.uber.org/zap"
)

// SessionCookieName — имя подписанной куки сессии
const SessionCookieName = "prowly_session"

// sessionKey для хранения состояния сессии в контексте
type sessionKey struct{}

// tokenKey для хранения исходного токена сессии в контексте
type tokenKey struct{}

// sessionContext связывает состояние сессии с запросом
type sessionContext struct {
	data   service.SessionData
	exists bool
}

// SetSessionCookie устанавливает куку сессии с заданным сроком жизни
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Expires:  time.Now().Add(ttl),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie удаляет куку сессии
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
	})
}

// SessionMiddleware разбирает куку сессии и кладёт её состояние в контекст.
// Отсутствие сессии не является ошибкой: читающие эндпоинты работают и без неё.
func SessionMiddleware(sessions *service.Sessions, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := sessionContext{}
			var token string

			cookie, err := r.Cookie(SessionCookieName)
			if err == nil && cookie.Value != "" {
				token = cookie.Value
				data, err := sessions.Parse(r.Context(), token)
				if err != nil {
					logger.Warn("Invalid session cookie", zap.Error(err))
				} else {
					sc = sessionContext{data: data, exists: true}
				}
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, sc)
			ctx = context.WithValue(ctx, tokenKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession гарантирует наличие хотя бы анонимной сессии.
// Применяется к пишущим маршрутам: если куки нет, сессия создаётся
// и кука выставляется в этом же ответе.
func RequireSession(sessions *service.Sessions, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sc, ok := r.Context().Value(sessionKey{}).(sessionContext); ok && sc.exists {
				next.ServeHTTP(w, r)
				return
			}

			data := service.SessionData{AnonymousID: service.NewAnonymousID()}
			token, err := sessions.Issue(data)
			if err != nil {
				logger.Error("Failed to issue session token", zap.Error(err))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			SetSessionCookie(w, token, sessions.TTL())

			ctx := context.WithValue(r.Context(), sessionKey{}, sessionContext{data: data, exists: true})
			ctx = context.WithValue(ctx, tokenKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession извлекает состояние сессии из контекста
func GetSession(r *http.Request) (service.SessionData, bool) {
	sc, ok := r.Context().Value(sessionKey{}).(sessionContext)
	if !ok || !sc.exists {
		return service.SessionData{}, false
	}
	return sc.data, true
}

// GetSessionToken извлекает исходный токен сессии из контекста
func GetSessionToken(r *http.Request) string {
	token, _ := r.Context().Value(tokenKey{}).(string)
	return token
}

// GetPrincipal извлекает владельца запроса из состояния сессии.
// Вошедший пользователь становится владельцем-пользователем,
// иначе анонимная сессия, иначе владельца нет.
func GetPrincipal(r *http.Request) models.Owner {
	data, ok := GetSession(r)
	if !ok {
		return models.Owner{}
	}
	if data.LoggedIn && data.UserID != "" {
		return models.UserOwner(data.UserID)
	}
	if data.AnonymousID != "" {
		return models.SessionOwner(data.AnonymousID)
	}
	return models.Owner{}
}
