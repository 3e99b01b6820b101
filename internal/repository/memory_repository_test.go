package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tempizhere/prowly/internal/models"
)

func TestMemoryLinkRepository(t *testing.T) {
	clicks := NewMemoryClickRepository()
	repo := NewMemoryLinkRepository(clicks)

	// Тест 1: создание заполняет служебные поля
	link, err := repo.Create(models.Link{OriginalURL: "https://example.com", ShortCode: "abc123", SessionID: "anon_1"})
	assert.NoError(t, err, "Create should not return error")
	assert.NotEmpty(t, link.ID, "ID should be generated")
	assert.True(t, link.IsActive, "New link should be active")
	assert.False(t, link.CreatedAt.IsZero(), "CreatedAt should be set")

	// Тест 2: занятый короткий код
	_, err = repo.Create(models.Link{OriginalURL: "https://other.com", ShortCode: "abc123"})
	assert.ErrorIs(t, err, ErrCodeTaken, "Duplicate short code should be rejected")

	// Тест 3: кастомный код занимает общее пространство кодов
	_, err = repo.Create(models.Link{OriginalURL: "https://promo.com", ShortCode: "xyz789", CustomCode: "promo"})
	require.NoError(t, err)
	_, err = repo.Create(models.Link{OriginalURL: "https://other.com", ShortCode: "promo"})
	assert.ErrorIs(t, err, ErrCodeTaken, "Short code colliding with a custom code should be rejected")

	// Тест 4: поиск по обоим кодам
	found, err := repo.GetByCode("xyz789")
	assert.NoError(t, err)
	assert.Equal(t, "https://promo.com", found.OriginalURL)
	found, err = repo.GetByCode("promo")
	assert.NoError(t, err)
	assert.Equal(t, "https://promo.com", found.OriginalURL)

	// Тест 5: неизвестный код
	_, err = repo.GetByCode("nosuch")
	assert.ErrorIs(t, err, ErrNotFound)

	// Тест 6: занятость кода
	taken, err := repo.CodeExists("promo")
	assert.NoError(t, err)
	assert.True(t, taken)
	taken, err = repo.CodeExists("free")
	assert.NoError(t, err)
	assert.False(t, taken)
}

func TestMemoryLinkUpdate(t *testing.T) {
	repo := NewMemoryLinkRepository(nil)

	link, err := repo.Create(models.Link{OriginalURL: "https://example.com", ShortCode: "abc123"})
	require.NoError(t, err)

	title := "Title"
	expiry := time.Now().Add(time.Hour).UTC()
	updated, err := repo.Update(link.ID, models.LinkUpdate{Title: &title, ExpiresAt: &expiry})
	assert.NoError(t, err, "Update should not return error")
	assert.Equal(t, "Title", updated.Title)
	require.NotNil(t, updated.ExpiresAt)
	assert.Equal(t, expiry, *updated.ExpiresAt)
	assert.Equal(t, "https://example.com", updated.OriginalURL, "Untouched fields survive")

	_, err = repo.Update("nosuch", models.LinkUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryLinkDeleteCascade(t *testing.T) {
	clicks := NewMemoryClickRepository()
	repo := NewMemoryLinkRepository(clicks)

	link, err := repo.Create(models.Link{OriginalURL: "https://example.com", ShortCode: "abc123"})
	require.NoError(t, err)
	require.NoError(t, clicks.Create(models.Click{LinkID: link.ID}))
	require.NoError(t, clicks.Create(models.Click{LinkID: link.ID}))

	assert.NoError(t, repo.Delete(link.ID), "Delete should not return error")

	_, err = repo.GetByCode("abc123")
	assert.ErrorIs(t, err, ErrNotFound, "Deleted link should be gone")
	count, err := clicks.CountByLink(link.ID)
	assert.NoError(t, err)
	assert.Zero(t, count, "Clicks should be deleted with the link")

	assert.ErrorIs(t, repo.Delete(link.ID), ErrNotFound, "Second delete should fail")
}

func TestMemoryLinkGetByOwner(t *testing.T) {
	repo := NewMemoryLinkRepository(nil)

	_, err := repo.Create(models.Link{OriginalURL: "https://a.com", ShortCode: "aaa111", UserID: "user_1"})
	require.NoError(t, err)
	_, err = repo.Create(models.Link{OriginalURL: "https://b.com", ShortCode: "bbb222", SessionID: "anon_1"})
	require.NoError(t, err)

	// Тест 1: выборка по пользователю
	links, err := repo.GetByOwner(models.UserOwner("user_1"))
	assert.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://a.com", links[0].OriginalURL)

	// Тест 2: выборка по сессии
	links, err = repo.GetByOwner(models.SessionOwner("anon_1"))
	assert.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://b.com", links[0].OriginalURL)

	// Тест 3: пустой владелец
	links, err = repo.GetByOwner(models.Owner{})
	assert.NoError(t, err)
	assert.Empty(t, links)
}

func TestMemoryLinkClaimSession(t *testing.T) {
	repo := NewMemoryLinkRepository(nil)

	_, err := repo.Create(models.Link{OriginalURL: "https://a.com", ShortCode: "aaa111", SessionID: "anon_1"})
	require.NoError(t, err)
	_, err = repo.Create(models.Link{OriginalURL: "https://b.com", ShortCode: "bbb222", SessionID: "anon_2"})
	require.NoError(t, err)

	// Тест 1: перенос затрагивает только свою сессию
	claimed, err := repo.ClaimSession("user_1", "anon_1")
	assert.NoError(t, err, "ClaimSession should not return error")
	require.Len(t, claimed, 1)
	assert.Equal(t, "user_1", claimed[0].UserID)
	assert.Empty(t, claimed[0].SessionID)

	// Тест 2: повторный перенос идемпотентен
	claimed, err = repo.ClaimSession("user_1", "anon_1")
	assert.NoError(t, err)
	assert.Empty(t, claimed)

	// Тест 3: чужая сессия не тронута
	other, err := repo.GetByCode("bbb222")
	require.NoError(t, err)
	assert.Equal(t, "anon_2", other.SessionID)
}

func TestMemoryLinkStats(t *testing.T) {
	clicks := NewMemoryClickRepository()
	repo := NewMemoryLinkRepository(clicks)

	link, err := repo.Create(models.Link{OriginalURL: "https://a.com", ShortCode: "aaa111"})
	require.NoError(t, err)
	_, err = repo.Create(models.Link{OriginalURL: "https://b.com", ShortCode: "bbb222"})
	require.NoError(t, err)
	require.NoError(t, clicks.Create(models.Click{LinkID: link.ID}))

	stats, err := repo.Stats()
	assert.NoError(t, err)
	assert.Equal(t, 2, stats.Links)
	assert.Equal(t, 1, stats.Clicks)
}

func TestMemoryClickRepositoryOrder(t *testing.T) {
	repo := NewMemoryClickRepository()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(models.Click{LinkID: "link-1", IPAddress: "1.1.1.1", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.Create(models.Click{LinkID: "link-1", IPAddress: "2.2.2.2", CreatedAt: now}))

	clicks, err := repo.ListByLink("link-1")
	assert.NoError(t, err)
	require.Len(t, clicks, 2)
	assert.Equal(t, "2.2.2.2", clicks[0].IPAddress, "Newest click comes first")

	count, err := repo.CountByLink("link-1")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.CountByLink("nosuch")
	assert.NoError(t, err)
	assert.Zero(t, count)
}
