package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tempizhere/prowly/internal/models"
)

// MemoryLinkRepository реализует LinkRepository с использованием map.
// Применяется в тестах и при запуске без DATABASE_DSN.
type MemoryLinkRepository struct {
	mu     sync.RWMutex
	links  map[string]models.Link
	clicks *MemoryClickRepository
}

// NewMemoryLinkRepository создаёт новый экземпляр MemoryLinkRepository.
// clicks может быть nil, тогда удаление ссылки не каскадирует.
func NewMemoryLinkRepository(clicks *MemoryClickRepository) *MemoryLinkRepository {
	return &MemoryLinkRepository{
		links:  make(map[string]models.Link),
		clicks: clicks,
	}
}

// codeTakenLocked проверяет занятость кода, mu должен быть захвачен
func (r *MemoryLinkRepository) codeTakenLocked(code string) bool {
	for _, l := range r.links {
		if l.ShortCode == code || (l.CustomCode != "" && l.CustomCode == code) {
			return true
		}
	}
	return false
}

// Create сохраняет новую ссылку в памяти
func (r *MemoryLinkRepository) Create(link models.Link) (models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.codeTakenLocked(link.ShortCode) {
		return models.Link{}, ErrCodeTaken
	}
	if link.CustomCode != "" && link.CustomCode != link.ShortCode && r.codeTakenLocked(link.CustomCode) {
		return models.Link{}, ErrCodeTaken
	}

	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now
	link.IsActive = true
	r.links[link.ID] = link
	return link, nil
}

// GetByCode возвращает ссылку по короткому или кастомному коду
func (r *MemoryLinkRepository) GetByCode(code string) (models.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.links {
		if l.ShortCode == code || (l.CustomCode != "" && l.CustomCode == code) {
			return l, nil
		}
	}
	return models.Link{}, ErrNotFound
}

// GetByID возвращает ссылку по идентификатору
func (r *MemoryLinkRepository) GetByID(id string) (models.Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.links[id]
	return l, ok
}

// GetByOwner возвращает все ссылки владельца, новые первыми
func (r *MemoryLinkRepository) GetByOwner(owner models.Owner) ([]models.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var links []models.Link
	for _, l := range r.links {
		switch owner.Kind {
		case models.OwnerUser:
			if l.UserID == owner.ID {
				links = append(links, l)
			}
		case models.OwnerSession:
			if l.UserID == "" && l.SessionID == owner.ID {
				links = append(links, l)
			}
		}
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

// Update применяет частичное обновление и возвращает обновлённую ссылку
func (r *MemoryLinkRepository) Update(id string, upd models.LinkUpdate) (models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[id]
	if !ok {
		return models.Link{}, ErrNotFound
	}
	if upd.OriginalURL != nil {
		link.OriginalURL = *upd.OriginalURL
	}
	if upd.Title != nil {
		link.Title = *upd.Title
	}
	if upd.Description != nil {
		link.Description = *upd.Description
	}
	if upd.ExpiresAt != nil {
		t := *upd.ExpiresAt
		link.ExpiresAt = &t
	}
	link.UpdatedAt = time.Now().UTC()
	r.links[id] = link
	return link, nil
}

// Delete удаляет ссылку вместе с её переходами
func (r *MemoryLinkRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[id]; !ok {
		return ErrNotFound
	}
	if r.clicks != nil {
		r.clicks.deleteByLink(id)
	}
	delete(r.links, id)
	return nil
}

// CodeExists проверяет занятость кода
func (r *MemoryLinkRepository) CodeExists(code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.codeTakenLocked(code), nil
}

// ClaimSession переносит все ссылки анонимной сессии на пользователя
func (r *MemoryLinkRepository) ClaimSession(userID, sessionID string) ([]models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var claimed []models.Link
	for id, l := range r.links {
		if l.SessionID == sessionID {
			l.UserID = userID
			l.SessionID = ""
			l.UpdatedAt = time.Now().UTC()
			r.links[id] = l
			claimed = append(claimed, l)
		}
	}
	sort.Slice(claimed, func(i, j int) bool {
		return claimed[i].CreatedAt.Before(claimed[j].CreatedAt)
	})
	return claimed, nil
}

// Stats возвращает количество ссылок и переходов
func (r *MemoryLinkRepository) Stats() (models.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := models.Stats{Links: len(r.links)}
	if r.clicks != nil {
		stats.Clicks = r.clicks.total()
	}
	return stats, nil
}

// MemoryClickRepository реализует ClickRepository с использованием map
type MemoryClickRepository struct {
	mu     sync.RWMutex
	clicks map[string][]models.Click
}

// NewMemoryClickRepository создаёт новый экземпляр MemoryClickRepository
func NewMemoryClickRepository() *MemoryClickRepository {
	return &MemoryClickRepository{
		clicks: make(map[string][]models.Click),
	}
}

// Create сохраняет событие перехода
func (r *MemoryClickRepository) Create(click models.Click) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if click.ID == "" {
		click.ID = uuid.NewString()
	}
	if click.CreatedAt.IsZero() {
		click.CreatedAt = time.Now().UTC()
	}
	r.clicks[click.LinkID] = append(r.clicks[click.LinkID], click)
	return nil
}

// ListByLink возвращает все переходы по ссылке, новые первыми
func (r *MemoryClickRepository) ListByLink(linkID string) ([]models.Click, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clicks := make([]models.Click, len(r.clicks[linkID]))
	copy(clicks, r.clicks[linkID])
	sort.Slice(clicks, func(i, j int) bool {
		return clicks[i].CreatedAt.After(clicks[j].CreatedAt)
	})
	return clicks, nil
}

// CountByLink возвращает количество переходов по ссылке
func (r *MemoryClickRepository) CountByLink(linkID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clicks[linkID]), nil
}

// deleteByLink удаляет все переходы по ссылке
func (r *MemoryClickRepository) deleteByLink(linkID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clicks, linkID)
}

// total возвращает общее количество переходов
func (r *MemoryClickRepository) total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.clicks {
		n += len(c)
	}
	return n
}
