package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mileusna/useragent"
	"github.com/tempizhere/prowly/internal/geoip"
	"github.com/tempizhere/prowly/internal/models"
	"github.com/tempizhere/prowly/internal/repository"
	"go.uber.org/zap"
)

// trackTimeout ограничивает время фоновой атрибуции одного перехода
const trackTimeout = 10 * time.Second

// Tracker записывает события переходов с геолокацией и разбором user-agent.
// Вся работа выполняется в фоне относительно ответа на редирект: ошибки
// атрибуции логируются и никогда не доходят до клиента.
type Tracker struct {
	clicks  repository.ClickRepository
	locator geoip.Locator
	logger  *zap.Logger
}

// NewTracker создаёт новый экземпляр Tracker
func NewTracker(clicks repository.ClickRepository, locator geoip.Locator, logger *zap.Logger) *Tracker {
	return &Tracker{
		clicks:  clicks,
		locator: locator,
		logger:  logger,
	}
}

// ClientIP извлекает IP клиента из цепочки заголовков:
// cf-connecting-ip, затем первый адрес x-forwarded-for, затем x-real-ip
func ClientIP(h http.Header) string {
	if ip := strings.TrimSpace(h.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if forwarded := h.Get("X-Forwarded-For"); forwarded != "" {
		if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(h.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return "127.0.0.1"
}

// RequestMeta собирает метаданные запроса для атрибуции
func RequestMeta(r *http.Request) models.RequestMeta {
	return models.RequestMeta{
		IPAddress: ClientIP(r.Header),
		UserAgent: r.Header.Get("User-Agent"),
		Referer:   r.Header.Get("Referer"),
	}
}

// parseUserAgent разбирает user-agent в тип устройства, браузер и ОС.
// Любой неразобранный фрагмент получает значение по умолчанию.
func parseUserAgent(raw string) (device, browser, os string) {
	device, browser, os = "desktop", geoip.UnknownLocation, geoip.UnknownLocation
	if raw == "" {
		return device, browser, os
	}
	ua := useragent.Parse(raw)
	switch {
	case ua.Mobile:
		device = "mobile"
	case ua.Tablet:
		device = "tablet"
	case ua.Bot:
		device = "bot"
	}
	if ua.Name != "" {
		browser = ua.Name
	}
	if ua.OS != "" {
		os = ua.OS
	}
	return device, browser, os
}

// Record синхронно выполняет атрибуцию и сохраняет одно событие перехода.
// Сбой геолокации или разбора user-agent деградирует до значений по
// умолчанию, но не отменяет запись.
func (t *Tracker) Record(ctx context.Context, linkID string, meta models.RequestMeta) error {
	location, err := t.locator.Locate(ctx, meta.IPAddress)
	if err != nil {
		location = geoip.Location{Country: geoip.UnknownLocation, City: geoip.UnknownLocation}
	}
	device, browser, os := parseUserAgent(meta.UserAgent)

	click := models.Click{
		LinkID:     linkID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Referer:    meta.Referer,
		Country:    location.Country,
		City:       location.City,
		DeviceType: device,
		Browser:    browser,
		OS:         os,
	}
	if err := t.clicks.Create(click); err != nil {
		t.logger.Error("Failed to record click", zap.String("link_id", linkID), zap.Error(err))
		return err
	}
	return nil
}

// Track запускает атрибуцию в отдельной горутине и сразу возвращает управление.
// Вызов не ждёт завершения и не узнаёт о результате: переходы — телеметрия
// с негарантированной доставкой, потеря при остановке процесса допустима.
func (t *Tracker) Track(linkID string, meta models.RequestMeta) {
	go func() {
		defer func() {
			if p := recover(); p != nil {
				t.logger.Error("Panic in click attribution", zap.Any("panic", p))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), trackTimeout)
		defer cancel()
		if err := t.Record(ctx, linkID, meta); err != nil {
			t.logger.Warn("Click attribution failed", zap.String("link_id", linkID), zap.Error(err))
		}
	}()
}
