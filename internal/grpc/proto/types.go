// Package proto содержит определения типов gRPC-сервиса коротких ссылок
package proto

// ShortenRequest представляет запрос на создание короткой ссылки
type ShortenRequest struct {
	URL         string `json:"url"`
	CustomCode  string `json:"custom_code,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

// ShortenResponse представляет ответ с созданной короткой ссылкой
type ShortenResponse struct {
	ShortURL    string `json:"short_url"`
	ShortCode   string `json:"short_code"`
	OriginalURL string `json:"original_url"`
}

// ResolveRequest представляет запрос на разрешение кода
type ResolveRequest struct {
	Code string `json:"code"`
}

// ResolveResponse представляет ответ с целевым URL
type ResolveResponse struct {
	OriginalURL string `json:"original_url"`
	Found       bool   `json:"found"`
}

// ClaimRequest представляет запрос на перенос сессионных ссылок
type ClaimRequest struct {
	SessionID string `json:"session_id"`
}

// ClaimedLink описывает перенесённую ссылку
type ClaimedLink struct {
	ShortCode   string `json:"short_code"`
	OriginalURL string `json:"original_url"`
}

// ClaimResponse представляет результат переноса сессионных ссылок
type ClaimResponse struct {
	Claimed int           `json:"claimed"`
	Links   []ClaimedLink `json:"links"`
}

// GetStatsRequest представляет запрос сводной статистики сервиса
type GetStatsRequest struct{}

// GetStatsResponse представляет сводную статистику сервиса
type GetStatsResponse struct {
	Links  int `json:"links"`
	Clicks int `json:"clicks"`
}

// PingRequest представляет запрос проверки состояния
type PingRequest struct{}

// PingResponse представляет ответ проверки состояния
type PingResponse struct {
	DatabaseAvailable bool `json:"database_available"`
}
