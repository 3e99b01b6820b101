package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tempizhere/prowly/internal/models"
	"go.uber.org/zap"
)

// linkRows строит набор строк таблицы urls для sqlmock
func linkRows(links ...models.Link) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "original_url", "short_code", "custom_code", "title", "description",
		"expires_at", "is_active", "user_id", "session_id", "created_at", "updated_at",
	})
	for _, l := range links {
		rows.AddRow(
			l.ID, l.OriginalURL, l.ShortCode, nullable(l.CustomCode),
			nullable(l.Title), nullable(l.Description), l.ExpiresAt, l.IsActive,
			nullable(l.UserID), nullable(l.SessionID), l.CreatedAt, l.UpdatedAt,
		)
	}
	return rows
}

func newLinkRepoMock(t *testing.T) (*PostgresLinkRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")
	t.Cleanup(func() { db.Close() })
	return NewPostgresLinkRepository(db, zap.NewNop()), mock
}

func TestPostgresLinkCreate(t *testing.T) {
	repo, mock := newLinkRepoMock(t)
	now := time.Now().UTC()

	// Тест 1: успешная вставка
	mock.ExpectQuery("INSERT INTO urls").
		WithArgs(sqlmock.AnyArg(), "https://example.com", "abc123", nil, nil, nil,
			nil, true, nil, "anon_1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(linkRows(models.Link{
			ID: "id-1", OriginalURL: "https://example.com", ShortCode: "abc123",
			SessionID: "anon_1", IsActive: true, CreatedAt: now, UpdatedAt: now,
		}))

	saved, err := repo.Create(models.Link{
		OriginalURL: "https://example.com",
		ShortCode:   "abc123",
		SessionID:   "anon_1",
	})
	assert.NoError(t, err, "Create should not return error")
	assert.Equal(t, "id-1", saved.ID)
	assert.Equal(t, "anon_1", saved.SessionID)
	assert.True(t, saved.IsActive)

	// Тест 2: нарушение уникальности кода
	mock.ExpectQuery("INSERT INTO urls").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "urls_short_code_key"})

	_, err = repo.Create(models.Link{OriginalURL: "https://example.com", ShortCode: "abc123"})
	assert.ErrorIs(t, err, ErrCodeTaken, "Unique violation should map to ErrCodeTaken")

	// Тест 3: прочие ошибки базы проходят как есть
	mock.ExpectQuery("INSERT INTO urls").
		WillReturnError(errors.New("connection reset"))

	_, err = repo.Create(models.Link{OriginalURL: "https://example.com", ShortCode: "abc124"})
	assert.EqualError(t, err, "connection reset")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLinkGetByCode(t *testing.T) {
	repo, mock := newLinkRepoMock(t)
	now := time.Now().UTC()

	// Тест 1: поиск по короткому или кастомному коду
	mock.ExpectQuery("SELECT (.+) FROM urls WHERE short_code = \\$1 OR custom_code = \\$1").
		WithArgs("promo").
		WillReturnRows(linkRows(models.Link{
			ID: "id-1", OriginalURL: "https://example.com", ShortCode: "abc123",
			CustomCode: "promo", IsActive: true, CreatedAt: now, UpdatedAt: now,
		}))

	link, err := repo.GetByCode("promo")
	assert.NoError(t, err)
	assert.Equal(t, "promo", link.Code(), "Custom code should be the canonical code")

	// Тест 2: не найдено
	mock.ExpectQuery("SELECT (.+) FROM urls WHERE short_code = \\$1 OR custom_code = \\$1").
		WithArgs("nosuch").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByCode("nosuch")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLinkUpdate(t *testing.T) {
	repo, mock := newLinkRepoMock(t)
	now := time.Now().UTC()
	title := "New title"

	// Тест 1: обновляется только переданное поле
	mock.ExpectQuery("UPDATE urls SET title = \\$1, updated_at = \\$2 WHERE id = \\$3").
		WithArgs("New title", sqlmock.AnyArg(), "id-1").
		WillReturnRows(linkRows(models.Link{
			ID: "id-1", OriginalURL: "https://example.com", ShortCode: "abc123",
			Title: "New title", IsActive: true, CreatedAt: now, UpdatedAt: now,
		}))

	link, err := repo.Update("id-1", models.LinkUpdate{Title: &title})
	assert.NoError(t, err, "Update should not return error")
	assert.Equal(t, "New title", link.Title)

	// Тест 2: несуществующий идентификатор
	mock.ExpectQuery("UPDATE urls SET title = \\$1, updated_at = \\$2 WHERE id = \\$3").
		WithArgs("New title", sqlmock.AnyArg(), "nosuch").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.Update("nosuch", models.LinkUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLinkDelete(t *testing.T) {
	repo, mock := newLinkRepoMock(t)

	// Тест 1: переходы и ссылка удаляются одной транзакцией
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM clicks WHERE link_id = \\$1").
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM urls WHERE id = \\$1").
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.Delete("id-1"), "Delete should not return error")

	// Тест 2: ссылки нет, транзакция откатывается
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM clicks WHERE link_id = \\$1").
		WithArgs("nosuch").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM urls WHERE id = \\$1").
		WithArgs("nosuch").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Delete("nosuch"), ErrNotFound)

	// Тест 3: сбой удаления переходов откатывает транзакцию
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM clicks WHERE link_id = \\$1").
		WithArgs("id-1").
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	assert.EqualError(t, repo.Delete("id-1"), "deadlock detected")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLinkCodeExists(t *testing.T) {
	repo, mock := newLinkRepoMock(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.CodeExists("abc123")
	assert.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("free").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err = repo.CodeExists("free")
	assert.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLinkClaimSession(t *testing.T) {
	repo, mock := newLinkRepoMock(t)
	now := time.Now().UTC()

	// Тест 1: перенос возвращает затронутые ссылки
	mock.ExpectQuery("UPDATE urls SET user_id = \\$1, session_id = NULL").
		WithArgs("user_1", sqlmock.AnyArg(), "anon_1").
		WillReturnRows(linkRows(
			models.Link{ID: "id-1", OriginalURL: "https://a.com", ShortCode: "aaa111",
				UserID: "user_1", IsActive: true, CreatedAt: now, UpdatedAt: now},
			models.Link{ID: "id-2", OriginalURL: "https://b.com", ShortCode: "bbb222",
				UserID: "user_1", IsActive: true, CreatedAt: now, UpdatedAt: now},
		))

	claimed, err := repo.ClaimSession("user_1", "anon_1")
	assert.NoError(t, err, "ClaimSession should not return error")
	require.Len(t, claimed, 2)
	assert.Equal(t, "user_1", claimed[0].UserID)
	assert.Empty(t, claimed[0].SessionID, "Session binding should be cleared")

	// Тест 2: повторный перенос не находит строк
	mock.ExpectQuery("UPDATE urls SET user_id = \\$1, session_id = NULL").
		WithArgs("user_1", sqlmock.AnyArg(), "anon_1").
		WillReturnRows(linkRows())

	claimed, err = repo.ClaimSession("user_1", "anon_1")
	assert.NoError(t, err)
	assert.Empty(t, claimed, "Second claim should be a no-op")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClickRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")
	defer db.Close()
	repo := NewPostgresClickRepository(db, zap.NewNop())
	now := time.Now().UTC()

	// Тест 1: вставка перехода с NULL для пустых полей
	mock.ExpectExec("INSERT INTO clicks").
		WithArgs(sqlmock.AnyArg(), "link-1", "1.2.3.4", nil, nil,
			"DE", "Berlin", "desktop", "Chrome", "Windows", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Create(models.Click{
		LinkID: "link-1", IPAddress: "1.2.3.4",
		Country: "DE", City: "Berlin", DeviceType: "desktop", Browser: "Chrome", OS: "Windows",
	})
	assert.NoError(t, err, "Create should not return error")

	// Тест 2: выборка переходов
	mock.ExpectQuery("SELECT (.+) FROM clicks WHERE link_id = \\$1 ORDER BY created_at DESC").
		WithArgs("link-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "link_id", "ip_address", "user_agent", "referer",
			"country", "city", "device_type", "browser", "os", "created_at",
		}).AddRow("click-1", "link-1", "1.2.3.4", nil, nil, "DE", "Berlin", "desktop", "Chrome", "Windows", now))

	clicks, err := repo.ListByLink("link-1")
	assert.NoError(t, err)
	require.Len(t, clicks, 1)
	assert.Equal(t, "1.2.3.4", clicks[0].IPAddress)
	assert.Empty(t, clicks[0].UserAgent, "NULL user_agent scans to empty string")

	// Тест 3: подсчёт переходов
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM clicks WHERE link_id = \\$1").
		WithArgs("link-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	count, err := repo.CountByLink("link-1")
	assert.NoError(t, err)
	assert.Equal(t, 5, count)

	assert.NoError(t, mock.ExpectationsWereMet())
}
