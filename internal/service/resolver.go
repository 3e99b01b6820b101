package service

import (
	"time"

	"github.com/tempizhere/prowly/internal/models"
	"github.com/tempizhere/prowly/internal/repository"
	"go.uber.org/zap"
)

// Resolver реализует горячий путь разрешения кода в целевой URL
type Resolver struct {
	links   repository.LinkRepository
	tracker *Tracker
	logger  *zap.Logger
}

// NewResolver создаёт новый экземпляр Resolver
func NewResolver(links repository.LinkRepository, tracker *Tracker, logger *zap.Logger) *Resolver {
	return &Resolver{
		links:   links,
		tracker: tracker,
		logger:  logger,
	}
}

// Resolve возвращает целевой URL по коду и запускает фоновую атрибуцию.
// Неизвестный код, выключенная или просроченная ссылка и ошибка хранилища
// одинаково схлопываются в "не найдено": внешний наблюдатель не должен
// отличать просроченную ссылку от несуществующей, а сломанный бэкенд
// не должен редиректить на устаревшую цель.
func (r *Resolver) Resolve(code string, meta models.RequestMeta) (string, bool) {
	link, err := r.links.GetByCode(code)
	if err != nil {
		if err != repository.ErrNotFound {
			r.logger.Error("Link lookup failed", zap.String("code", code), zap.Error(err))
		}
		return "", false
	}
	if !link.IsActive {
		return "", false
	}
	if link.ExpiresAt != nil && link.ExpiresAt.Before(time.Now()) {
		return "", false
	}

	// Редирект не ждёт атрибуцию
	r.tracker.Track(link.ID, meta)

	return link.OriginalURL, true
}
