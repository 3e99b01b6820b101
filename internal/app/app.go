// Package app содержит HTTP-хендлеры сервиса коротких ссылок.
package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tempizhere/prowly/internal/middleware"
	"github.com/tempizhere/prowly/internal/models"
	"github.com/tempizhere/prowly/internal/repository"
	"github.com/tempizhere/prowly/internal/service"
	"go.uber.org/zap"
)

// App содержит хендлеры и зависимости
type App struct {
	shortener *service.Shortener
	resolver  *service.Resolver
	tracker   *service.Tracker
	analytics *service.Analytics
	sessions  *service.Sessions
	auth      service.AuthProvider
	metadata  *service.MetadataFetcher
	db        repository.Database
	logger    *zap.Logger
}

// NewApp создаёт новое приложение
func NewApp(
	shortener *service.Shortener,
	resolver *service.Resolver,
	tracker *service.Tracker,
	analytics *service.Analytics,
	sessions *service.Sessions,
	auth service.AuthProvider,
	metadata *service.MetadataFetcher,
	db repository.Database,
	logger *zap.Logger,
) *App {
	return &App{
		shortener: shortener,
		resolver:  resolver,
		tracker:   tracker,
		analytics: analytics,
		sessions:  sessions,
		auth:      auth,
		metadata:  metadata,
		db:        db,
		logger:    logger,
	}
}

// errorResponse представляет тело ответа с ошибкой
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSONResponse пишет JSON-ответ с проверкой ошибок
func (a *App) writeJSONResponse(w http.ResponseWriter, status int, v interface{}) {
	// Маршалинг до WriteHeader: после отправки заголовков статус уже не поменять
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to encode JSON", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		a.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeJSONError пишет JSON-ответ с сообщением об ошибке
func (a *App) writeJSONError(w http.ResponseWriter, status int, msg string) {
	a.writeJSONResponse(w, status, errorResponse{Error: msg})
}

// isValidationError определяет ошибки валидации запроса на создание
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrInvalidURL) ||
		errors.Is(err, service.ErrInvalidCustomCode) ||
		errors.Is(err, service.ErrTitleTooLong) ||
		errors.Is(err, service.ErrDescriptionLong) ||
		errors.Is(err, service.ErrInvalidExpiry) ||
		errors.Is(err, service.ErrEmptyUpdate)
}

// HandleRedirect обрабатывает GET-запросы на "/{code}".
// Несуществующая, выключенная и просроченная ссылка отвечают одинаково.
func (a *App) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		http.NotFound(w, r)
		return
	}

	target, ok := a.resolver.Resolve(code, service.RequestMeta(r))
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusTemporaryRedirect)
}

// HandleShorten обрабатывает POST-запросы на "/api/shorten"
func (a *App) HandleShorten(w http.ResponseWriter, r *http.Request) {
	var req models.ShortenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSONError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	owner := middleware.GetPrincipal(r)
	link, err := a.shortener.Shorten(req, owner)
	if err != nil {
		switch {
		case isValidationError(err), errors.Is(err, service.ErrCodeTaken):
			a.writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrNoOwner):
			a.writeJSONError(w, http.StatusUnauthorized, "No session")
		default:
			a.logger.Error("Shorten failed", zap.Error(err))
			a.writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	a.writeJSONResponse(w, http.StatusOK, models.ShortenResponse{
		ShortURL:    a.shortener.BuildShortURL(link.Code()),
		ShortCode:   link.Code(),
		OriginalURL: link.OriginalURL,
	})
}

// updateRequest представляет частичное обновление ссылки в JSON
type updateRequest struct {
	OriginalURL *string `json:"original_url"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ExpiresAt   *string `json:"expires_at"`
}

// HandleUpdate обрабатывает PATCH-запросы на "/api/update/{code}"
func (a *App) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSONError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	upd := models.LinkUpdate{
		OriginalURL: req.OriginalURL,
		Title:       req.Title,
		Description: req.Description,
	}
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			a.writeJSONError(w, http.StatusBadRequest, service.ErrInvalidExpiry.Error())
			return
		}
		upd.ExpiresAt = &t
	}

	link, err := a.shortener.Update(code, middleware.GetPrincipal(r), upd)
	if err != nil {
		switch {
		case isValidationError(err):
			a.writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrForbidden):
			a.writeJSONError(w, http.StatusForbidden, "Not an owner")
		case errors.Is(err, repository.ErrNotFound):
			a.writeJSONError(w, http.StatusNotFound, "URL not found")
		default:
			a.logger.Error("Update failed", zap.Error(err))
			a.writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	a.writeJSONResponse(w, http.StatusOK, struct {
		URL models.Link `json:"url"`
	}{URL: link})
}

// HandleDelete обрабатывает DELETE-запросы на "/api/delete/{code}"
func (a *App) HandleDelete(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	id, err := a.shortener.Delete(code, middleware.GetPrincipal(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			a.writeJSONError(w, http.StatusForbidden, "Not an owner")
		case errors.Is(err, repository.ErrNotFound):
			a.writeJSONError(w, http.StatusNotFound, "URL not found")
		default:
			a.logger.Error("Delete failed", zap.Error(err))
			a.writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	a.writeJSONResponse(w, http.StatusOK, struct {
		Deleted string `json:"deleted"`
	}{Deleted: id})
}

// HandleAnalytics обрабатывает GET-запросы на "/api/analytics/{code}".
// Доступна только вошедшему владельцу ссылки; чужая ссылка отвечает 404.
func (a *App) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	owner := middleware.GetPrincipal(r)
	if owner.Kind != models.OwnerUser {
		a.writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	link, err := a.shortener.GetByCode(code)
	if err != nil || link.UserID != owner.ID {
		a.writeJSONError(w, http.StatusNotFound, "URL not found")
		return
	}

	summary, err := a.analytics.Summarize(link.ID, 0)
	if err != nil {
		a.logger.Error("Analytics failed", zap.String("code", code), zap.Error(err))
		a.writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	a.writeJSONResponse(w, http.StatusOK, models.AnalyticsResponse{
		URL: models.AnalyticsLinkInfo{
			OriginalURL: link.OriginalURL,
			ShortCode:   link.Code(),
			Title:       link.Title,
			CreatedAt:   link.CreatedAt,
		},
		Analytics: summary,
	})
}

// claimRequest представляет тело запроса на перенос сессионных ссылок
type claimRequest struct {
	SessionID string `json:"sessionId"`
}

// HandleClaim обрабатывает POST-запросы на "/api/claim-session-links".
// Идентификатор сессии из тела запроса имеет приоритет над серверным:
// он отражает сессию на момент перед входом.
func (a *App) HandleClaim(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSession(r)
	if !ok || !session.LoggedIn || session.UserID == "" {
		a.writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req claimRequest
	// Тело необязательно
	_ = json.NewDecoder(r.Body).Decode(&req)

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.AnonymousID
	}

	resp, err := a.shortener.ClaimSessionLinks(session.UserID, sessionID)
	if err != nil {
		a.logger.Error("Claim failed", zap.Error(err))
		a.writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Сессия продлевается, только если переносилась она сама:
	// анонимный идентификатор сохраняется для повторных вызовов
	if sessionID == session.AnonymousID {
		token, _, err := a.sessions.Promote(r.Context(), middleware.GetSessionToken(r), session, session.UserID)
		if err != nil {
			a.logger.Warn("Failed to refresh session after claim", zap.Error(err))
		} else {
			middleware.SetSessionCookie(w, token, a.sessions.TTL())
		}
	}

	a.writeJSONResponse(w, http.StatusOK, resp)
}

// HandleSession обрабатывает GET-запросы на "/api/session".
// Читает куку без побочных эффектов: сессия не создаётся.
func (a *App) HandleSession(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.GetSession(r)
	a.writeJSONResponse(w, http.StatusOK, models.SessionResponse{
		AnonymousID: session.AnonymousID,
		IsLoggedIn:  session.LoggedIn,
		UserID:      session.UserID,
	})
}

// authCallbackRequest представляет тело запроса завершения входа
type authCallbackRequest struct {
	Token string `json:"token"`
}

// HandleAuthCallback обрабатывает POST-запросы на "/api/auth/callback".
// Токен внешнего провайдера проверяется, сессия помечается вошедшей.
// Анонимный идентификатор не сбрасывается, чтобы перенос ссылок
// оставался возможным после входа.
func (a *App) HandleAuthCallback(w http.ResponseWriter, r *http.Request) {
	var req authCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		a.writeJSONError(w, http.StatusBadRequest, "token is required")
		return
	}

	userID, err := a.auth.VerifyToken(req.Token)
	if err != nil {
		a.writeJSONError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	session, _ := middleware.GetSession(r)
	token, data, err := a.sessions.Promote(r.Context(), middleware.GetSessionToken(r), session, userID)
	if err != nil {
		a.logger.Error("Failed to promote session", zap.Error(err))
		a.writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	middleware.SetSessionCookie(w, token, a.sessions.TTL())

	a.writeJSONResponse(w, http.StatusOK, models.SessionResponse{
		AnonymousID: data.AnonymousID,
		IsLoggedIn:  data.LoggedIn,
		UserID:      data.UserID,
	})
}

// HandleSignout обрабатывает POST-запросы на "/api/auth/signout"
func (a *App) HandleSignout(w http.ResponseWriter, r *http.Request) {
	a.sessions.Invalidate(r.Context(), middleware.GetSessionToken(r))
	middleware.ClearSessionCookie(w)
	a.writeJSONResponse(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

// trackClickRequest представляет тело запроса клиентского трекинга
type trackClickRequest struct {
	ShortCode string `json:"shortCode"`
	URLID     string `json:"urlId"`
}

// HandleTrackClick обрабатывает POST-запросы на "/api/track-click".
// Используется, когда атрибуция запускается со страницы клиентского
// редиректа. Ответ всегда успешный, атрибуция идёт в фоне.
func (a *App) HandleTrackClick(w http.ResponseWriter, r *http.Request) {
	var req trackClickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ShortCode == "" {
		a.writeJSONError(w, http.StatusBadRequest, "shortCode is required")
		return
	}

	// Код сверяется с хранилищем: клиентскому urlId не доверяем
	if link, err := a.shortener.GetByCode(req.ShortCode); err == nil {
		a.tracker.Track(link.ID, service.RequestMeta(r))
	}

	a.writeJSONResponse(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

// metadataRequest представляет тело запроса на получение метаданных страницы
type metadataRequest struct {
	URL string `json:"url"`
}

// HandleFetchMetadata обрабатывает POST-запросы на "/api/fetch-metadata"
func (a *App) HandleFetchMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSONError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	meta, err := a.metadata.Fetch(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			a.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.writeJSONError(w, http.StatusBadGateway, "Failed to fetch page")
		return
	}

	a.writeJSONResponse(w, http.StatusOK, meta)
}

// HandleUserLinks обрабатывает GET-запросы на "/api/user/urls"
func (a *App) HandleUserLinks(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetPrincipal(r)
	if owner.Kind == models.OwnerNone {
		a.writeJSONError(w, http.StatusUnauthorized, "No session")
		return
	}

	links, err := a.shortener.ListByOwner(owner)
	if err != nil {
		a.logger.Error("Failed to list user links", zap.Error(err))
		a.writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if len(links) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	a.writeJSONResponse(w, http.StatusOK, links)
}

// HandleStats обрабатывает GET-запросы на "/api/internal/stats"
func (a *App) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.shortener.Stats()
	if err != nil {
		a.writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	a.writeJSONResponse(w, http.StatusOK, stats)
}

// HandlePing обрабатывает GET-запросы на "/ping"
func (a *App) HandlePing(w http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		http.Error(w, "Database not configured", http.StatusInternalServerError)
		return
	}
	if err := a.db.Ping(); err != nil {
		http.Error(w, "Database connection failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
