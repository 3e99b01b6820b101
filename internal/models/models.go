// Package models содержит доменные типы сервиса коротких ссылок.
package models

import "time"

// OwnerKind определяет вид владельца ссылки
type OwnerKind int

const (
	// OwnerNone означает отсутствие владельца (анонимный просмотр без сессии)
	OwnerNone OwnerKind = iota
	// OwnerUser означает владельца-пользователя
	OwnerUser
	// OwnerSession означает владельца-анонимную сессию
	OwnerSession
)

// Owner представляет владельца ссылки: пользователь или анонимная сессия
type Owner struct {
	Kind OwnerKind
	ID   string
}

// UserOwner создаёт владельца-пользователя
func UserOwner(id string) Owner {
	return Owner{Kind: OwnerUser, ID: id}
}

// SessionOwner создаёт владельца-анонимную сессию
func SessionOwner(id string) Owner {
	return Owner{Kind: OwnerSession, ID: id}
}

// Link представляет запись короткой ссылки
type Link struct {
	ID          string     `json:"id"`
	OriginalURL string     `json:"original_url"`
	ShortCode   string     `json:"short_code"`
	CustomCode  string     `json:"custom_code,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsActive    bool       `json:"is_active"`
	UserID      string     `json:"user_id,omitempty"`
	SessionID   string     `json:"session_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Code возвращает каноничный код ссылки: кастомный, если задан
func (l Link) Code() string {
	if l.CustomCode != "" {
		return l.CustomCode
	}
	return l.ShortCode
}

// Owner возвращает владельца ссылки как размеченное объединение
func (l Link) Owner() Owner {
	if l.UserID != "" {
		return UserOwner(l.UserID)
	}
	if l.SessionID != "" {
		return SessionOwner(l.SessionID)
	}
	return Owner{}
}

// Click представляет одно событие перехода по ссылке
type Click struct {
	ID         string    `json:"id"`
	LinkID     string    `json:"link_id"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Referer    string    `json:"referer,omitempty"`
	Country    string    `json:"country"`
	City       string    `json:"city"`
	DeviceType string    `json:"device_type"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	CreatedAt  time.Time `json:"created_at"`
}

// LinkUpdate содержит частичное обновление ссылки, nil-поля не трогаются
type LinkUpdate struct {
	OriginalURL *string    `json:"original_url,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// RequestMeta содержит метаданные запроса для атрибуции перехода
type RequestMeta struct {
	IPAddress string
	UserAgent string
	Referer   string
}

// ShortenRequest представляет запрос на создание короткой ссылки
type ShortenRequest struct {
	URL         string `json:"url"`
	CustomCode  string `json:"customCode,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
}

// ShortenResponse представляет ответ с созданной короткой ссылкой
type ShortenResponse struct {
	ShortURL    string `json:"shortUrl"`
	ShortCode   string `json:"shortCode"`
	OriginalURL string `json:"originalUrl"`
}

// ClaimedLink описывает ссылку, перенесённую в аккаунт пользователя
type ClaimedLink struct {
	ShortCode   string `json:"shortCode"`
	OriginalURL string `json:"originalUrl"`
}

// ClaimResponse представляет результат переноса сессионных ссылок
type ClaimResponse struct {
	Claimed int           `json:"claimed"`
	Links   []ClaimedLink `json:"links"`
}

// SessionResponse представляет текущее состояние сессии
type SessionResponse struct {
	AnonymousID string `json:"anonymousId,omitempty"`
	IsLoggedIn  bool   `json:"isLoggedIn"`
	UserID      string `json:"userId,omitempty"`
}

// CountRow представляет пару значение-количество в аналитике
type CountRow struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// RecentClick представляет безопасную для отображения проекцию перехода
type RecentClick struct {
	CreatedAt  time.Time `json:"createdAt"`
	Country    string    `json:"country"`
	Referer    string    `json:"referer,omitempty"`
	Browser    string    `json:"browser"`
	DeviceType string    `json:"device_type"`
}

// Summary представляет агрегированную статистику переходов по ссылке
type Summary struct {
	TotalClicks  int            `json:"totalClicks"`
	UniqueClicks int            `json:"uniqueClicks"`
	ClicksByDay  map[string]int `json:"clicksByDay"`
	TopReferrers []CountRow     `json:"topReferrers"`
	TopCountries []CountRow     `json:"topCountries"`
	TopDevices   []CountRow     `json:"topDevices"`
	RecentClicks []RecentClick  `json:"recentClicks"`
}

// AnalyticsLinkInfo описывает ссылку в ответе аналитики
type AnalyticsLinkInfo struct {
	OriginalURL string    `json:"originalUrl"`
	ShortCode   string    `json:"shortCode"`
	Title       string    `json:"title,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AnalyticsResponse представляет ответ эндпоинта аналитики
type AnalyticsResponse struct {
	URL       AnalyticsLinkInfo `json:"url"`
	Analytics Summary           `json:"analytics"`
}

// UserLink представляет ссылку в списке дашборда с количеством переходов
type UserLink struct {
	ShortURL    string     `json:"short_url"`
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	Title       string     `json:"title,omitempty"`
	IsActive    bool       `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Clicks      int        `json:"clicks"`
}

// Metadata представляет метаданные страницы для превью ссылки
type Metadata struct {
	PageTitle       string `json:"pageTitle,omitempty"`
	PageDescription string `json:"pageDescription,omitempty"`
	PreviewImageURL string `json:"previewImageUrl,omitempty"`
	FaviconURL      string `json:"faviconUrl,omitempty"`
}

// Stats представляет сводную статистику сервиса
type Stats struct {
	Links  int `json:"links"`
	Clicks int `json:"clicks"`
}
