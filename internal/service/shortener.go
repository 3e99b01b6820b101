// Package service реализует логику сервиса коротких ссылок:
// создание и разрешение ссылок, атрибуцию переходов, владение и аналитику.
package service

import (
	"crypto/rand"
	"errors"
	"math/big"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/tempizhere/prowly/internal/models"
	"github.com/tempizhere/prowly/internal/repository"
	"go.uber.org/zap"
)

var (
	ErrInvalidURL         = errors.New("invalid URL")
	ErrInvalidCustomCode  = errors.New("custom code must be 3-20 alphanumeric characters")
	ErrTitleTooLong       = errors.New("title must be at most 100 characters")
	ErrDescriptionLong    = errors.New("description must be at most 500 characters")
	ErrCodeTaken          = errors.New("custom code already taken")
	ErrInvalidExpiry      = errors.New("invalid expiry timestamp")
	ErrCodeSpaceExhausted = errors.New("failed to generate unique code")
	ErrForbidden          = errors.New("not an owner of the link")
	ErrNoOwner            = errors.New("request has no principal")
	ErrEmptyUpdate        = errors.New("at least one field must be updated")
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	codeLength   = 6
	maxAttempts  = 10
)

// Shortener реализует создание, изменение и владение короткими ссылками
type Shortener struct {
	links   repository.LinkRepository
	clicks  repository.ClickRepository
	baseURL string
	logger  *zap.Logger
}

// NewShortener создаёт новый экземпляр Shortener
func NewShortener(links repository.LinkRepository, clicks repository.ClickRepository, baseURL string, logger *zap.Logger) *Shortener {
	return &Shortener{
		links:   links,
		clicks:  clicks,
		baseURL: baseURL,
		logger:  logger,
	}
}

// GenerateCode генерирует случайный код из 62-символьного алфавита
func GenerateCode(length int) (string, error) {
	code := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// isValidURL проверяет, что строка является абсолютным URL
func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// isValidCustomCode проверяет длину и алфавит кастомного кода
func isValidCustomCode(code string) bool {
	if len(code) < 3 || len(code) > 20 {
		return false
	}
	for _, c := range code {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// validate проверяет поля запроса на создание ссылки
func validate(req models.ShortenRequest) error {
	if !isValidURL(req.URL) {
		return ErrInvalidURL
	}
	if req.CustomCode != "" && !isValidCustomCode(req.CustomCode) {
		return ErrInvalidCustomCode
	}
	if utf8.RuneCountInString(req.Title) > 100 {
		return ErrTitleTooLong
	}
	if utf8.RuneCountInString(req.Description) > 500 {
		return ErrDescriptionLong
	}
	return nil
}

// Shorten создаёт короткую ссылку для владельца.
// Кастомный код проверяется один раз, сгенерированный — с повторами до лимита.
// Гонка между конкурентными запросами закрывается уникальным индексом в базе:
// нарушение уникальности трактуется как коллизия, не как фатальная ошибка.
func (s *Shortener) Shorten(req models.ShortenRequest, owner models.Owner) (models.Link, error) {
	if err := validate(req); err != nil {
		return models.Link{}, err
	}
	if owner.Kind == models.OwnerNone {
		return models.Link{}, ErrNoOwner
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return models.Link{}, ErrInvalidExpiry
		}
		expiresAt = &t
	}

	link := models.Link{
		OriginalURL: req.URL,
		CustomCode:  req.CustomCode,
		Title:       req.Title,
		Description: req.Description,
		ExpiresAt:   expiresAt,
	}
	switch owner.Kind {
	case models.OwnerUser:
		link.UserID = owner.ID
	case models.OwnerSession:
		link.SessionID = owner.ID
	}

	if req.CustomCode != "" {
		taken, err := s.links.CodeExists(req.CustomCode)
		if err != nil {
			return models.Link{}, err
		}
		if taken {
			return models.Link{}, ErrCodeTaken
		}
		link.ShortCode = req.CustomCode
		saved, err := s.links.Create(link)
		if errors.Is(err, repository.ErrCodeTaken) {
			return models.Link{}, ErrCodeTaken
		}
		return saved, err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := GenerateCode(codeLength)
		if err != nil {
			return models.Link{}, err
		}
		taken, err := s.links.CodeExists(code)
		if err != nil {
			return models.Link{}, err
		}
		if taken {
			continue
		}
		link.ShortCode = code
		saved, err := s.links.Create(link)
		if errors.Is(err, repository.ErrCodeTaken) {
			continue
		}
		return saved, err
	}

	s.logger.Error("Code generation attempts exhausted")
	return models.Link{}, ErrCodeSpaceExhausted
}

// Authorize проверяет право владельца на изменение ссылки.
// Пользователь владеет ссылкой со своим user_id, анонимная сессия —
// ссылкой без user_id и со своим session_id.
func (s *Shortener) Authorize(owner models.Owner, link models.Link) error {
	switch owner.Kind {
	case models.OwnerUser:
		if link.UserID == owner.ID {
			return nil
		}
	case models.OwnerSession:
		if link.UserID == "" && link.SessionID == owner.ID {
			return nil
		}
	}
	return ErrForbidden
}

// Update применяет частичное обновление ссылки от имени владельца
func (s *Shortener) Update(code string, owner models.Owner, upd models.LinkUpdate) (models.Link, error) {
	if upd.OriginalURL == nil && upd.Title == nil && upd.Description == nil && upd.ExpiresAt == nil {
		return models.Link{}, ErrEmptyUpdate
	}
	if upd.OriginalURL != nil && !isValidURL(*upd.OriginalURL) {
		return models.Link{}, ErrInvalidURL
	}
	if upd.Title != nil && utf8.RuneCountInString(*upd.Title) > 100 {
		return models.Link{}, ErrTitleTooLong
	}
	if upd.Description != nil && utf8.RuneCountInString(*upd.Description) > 500 {
		return models.Link{}, ErrDescriptionLong
	}

	link, err := s.links.GetByCode(code)
	if err != nil {
		return models.Link{}, err
	}
	if err := s.Authorize(owner, link); err != nil {
		return models.Link{}, err
	}
	return s.links.Update(link.ID, upd)
}

// Delete удаляет ссылку владельца вместе с её переходами
func (s *Shortener) Delete(code string, owner models.Owner) (string, error) {
	link, err := s.links.GetByCode(code)
	if err != nil {
		return "", err
	}
	if err := s.Authorize(owner, link); err != nil {
		return "", err
	}
	if err := s.links.Delete(link.ID); err != nil {
		return "", err
	}
	return link.ID, nil
}

// ClaimSessionLinks переносит ссылки анонимной сессии в аккаунт пользователя.
// Операция идемпотентна: повторный вызов находит ноль ссылок.
func (s *Shortener) ClaimSessionLinks(userID, sessionID string) (models.ClaimResponse, error) {
	if sessionID == "" {
		return models.ClaimResponse{Links: []models.ClaimedLink{}}, nil
	}
	claimed, err := s.links.ClaimSession(userID, sessionID)
	if err != nil {
		return models.ClaimResponse{}, err
	}

	resp := models.ClaimResponse{
		Claimed: len(claimed),
		Links:   make([]models.ClaimedLink, 0, len(claimed)),
	}
	for _, link := range claimed {
		resp.Links = append(resp.Links, models.ClaimedLink{
			ShortCode:   link.Code(),
			OriginalURL: link.OriginalURL,
		})
	}
	s.logger.Info("Claimed session links",
		zap.String("user_id", userID),
		zap.Int("claimed", resp.Claimed))
	return resp, nil
}

// GetByCode возвращает ссылку по коду
func (s *Shortener) GetByCode(code string) (models.Link, error) {
	return s.links.GetByCode(code)
}

// ListByOwner возвращает ссылки владельца с количеством переходов
func (s *Shortener) ListByOwner(owner models.Owner) ([]models.UserLink, error) {
	links, err := s.links.GetByOwner(owner)
	if err != nil {
		return nil, err
	}
	result := make([]models.UserLink, 0, len(links))
	for _, link := range links {
		count, err := s.clicks.CountByLink(link.ID)
		if err != nil {
			count = 0
		}
		result = append(result, models.UserLink{
			ShortURL:    s.BuildShortURL(link.Code()),
			ShortCode:   link.Code(),
			OriginalURL: link.OriginalURL,
			Title:       link.Title,
			IsActive:    link.IsActive,
			ExpiresAt:   link.ExpiresAt,
			CreatedAt:   link.CreatedAt,
			Clicks:      count,
		})
	}
	return result, nil
}

// Stats возвращает сводную статистику сервиса
func (s *Shortener) Stats() (models.Stats, error) {
	return s.links.Stats()
}

// BuildShortURL строит полный короткий URL для кода
func (s *Shortener) BuildShortURL(code string) string {
	return s.baseURL + "/" + code
}
