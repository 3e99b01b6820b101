package repository

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tempizhere/prowly/internal/models"
	"go.uber.org/zap"
)

// pgUniqueViolation — код ошибки PostgreSQL для нарушения уникальности
const pgUniqueViolation = "23505"

// linkColumns — список колонок таблицы urls в порядке сканирования
const linkColumns = "id, original_url, short_code, custom_code, title, description, expires_at, is_active, user_id, session_id, created_at, updated_at"

// PostgresLinkRepository реализует LinkRepository поверх PostgreSQL
type PostgresLinkRepository struct {
	db     Database
	logger *zap.Logger
}

// NewPostgresLinkRepository создаёт новый экземпляр PostgresLinkRepository
func NewPostgresLinkRepository(db Database, logger *zap.Logger) *PostgresLinkRepository {
	return &PostgresLinkRepository{
		db:     db,
		logger: logger,
	}
}

// isUniqueViolation определяет нарушение уникального индекса кодов
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// scanLink читает одну строку таблицы urls
func scanLink(row interface{ Scan(...interface{}) error }) (models.Link, error) {
	var link models.Link
	var customCode, title, description, userID, sessionID sql.NullString
	var expiresAt sql.NullTime
	err := row.Scan(
		&link.ID, &link.OriginalURL, &link.ShortCode, &customCode,
		&title, &description, &expiresAt, &link.IsActive,
		&userID, &sessionID, &link.CreatedAt, &link.UpdatedAt,
	)
	if err != nil {
		return models.Link{}, err
	}
	link.CustomCode = customCode.String
	link.Title = title.String
	link.Description = description.String
	link.UserID = userID.String
	link.SessionID = sessionID.String
	if expiresAt.Valid {
		t := expiresAt.Time
		link.ExpiresAt = &t
	}
	return link, nil
}

// nullable переводит пустую строку в NULL
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Create сохраняет новую ссылку в базе данных
func (r *PostgresLinkRepository) Create(link models.Link) (models.Link, error) {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now
	link.IsActive = true

	row := r.db.QueryRow(
		`INSERT INTO urls (id, original_url, short_code, custom_code, title, description, expires_at, is_active, user_id, session_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+linkColumns,
		link.ID, link.OriginalURL, link.ShortCode, nullable(link.CustomCode),
		nullable(link.Title), nullable(link.Description), link.ExpiresAt, link.IsActive,
		nullable(link.UserID), nullable(link.SessionID), link.CreatedAt, link.UpdatedAt,
	)
	saved, err := scanLink(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Link{}, ErrCodeTaken
		}
		r.logger.Error("Failed to insert link", zap.String("short_code", link.ShortCode), zap.Error(err))
		return models.Link{}, err
	}
	return saved, nil
}

// GetByCode возвращает ссылку по короткому или кастомному коду
func (r *PostgresLinkRepository) GetByCode(code string) (models.Link, error) {
	row := r.db.QueryRow(
		"SELECT "+linkColumns+" FROM urls WHERE short_code = $1 OR custom_code = $1",
		code,
	)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Link{}, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get link by code", zap.String("code", code), zap.Error(err))
		return models.Link{}, err
	}
	return link, nil
}

// GetByOwner возвращает все ссылки владельца, новые первыми
func (r *PostgresLinkRepository) GetByOwner(owner models.Owner) ([]models.Link, error) {
	var column string
	switch owner.Kind {
	case models.OwnerUser:
		column = "user_id"
	case models.OwnerSession:
		column = "session_id"
	default:
		return nil, nil
	}

	rows, err := r.db.Query(
		"SELECT "+linkColumns+" FROM urls WHERE "+column+" = $1 ORDER BY created_at DESC",
		owner.ID,
	)
	if err != nil {
		r.logger.Error("Failed to list links by owner", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// Update применяет частичное обновление и возвращает обновлённую ссылку
func (r *PostgresLinkRepository) Update(id string, upd models.LinkUpdate) (models.Link, error) {
	set := []string{}
	args := []interface{}{}
	n := 1

	if upd.OriginalURL != nil {
		set = append(set, "original_url = $"+strconv.Itoa(n))
		args = append(args, *upd.OriginalURL)
		n++
	}
	if upd.Title != nil {
		set = append(set, "title = $"+strconv.Itoa(n))
		args = append(args, nullable(*upd.Title))
		n++
	}
	if upd.Description != nil {
		set = append(set, "description = $"+strconv.Itoa(n))
		args = append(args, nullable(*upd.Description))
		n++
	}
	if upd.ExpiresAt != nil {
		set = append(set, "expires_at = $"+strconv.Itoa(n))
		args = append(args, *upd.ExpiresAt)
		n++
	}
	set = append(set, "updated_at = $"+strconv.Itoa(n))
	args = append(args, time.Now().UTC())
	n++
	args = append(args, id)

	query := "UPDATE urls SET " + strings.Join(set, ", ") +
		" WHERE id = $" + strconv.Itoa(n) + " RETURNING " + linkColumns

	link, err := scanLink(r.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Link{}, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to update link", zap.String("id", id), zap.Error(err))
		return models.Link{}, err
	}
	return link, nil
}

// Delete удаляет ссылку вместе с её переходами в одной транзакции.
// Сначала удаляются переходы, затем сама ссылка.
func (r *PostgresLinkRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		r.logger.Error("Failed to start transaction", zap.Error(err))
		return err
	}
	if _, err := tx.Exec("DELETE FROM clicks WHERE link_id = $1", id); err != nil {
		r.logger.Error("Failed to delete clicks", zap.String("link_id", id), zap.Error(err))
		tx.Rollback()
		return err
	}
	res, err := tx.Exec("DELETE FROM urls WHERE id = $1", id)
	if err != nil {
		r.logger.Error("Failed to delete link", zap.String("id", id), zap.Error(err))
		tx.Rollback()
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}
	if affected == 0 {
		tx.Rollback()
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit transaction", zap.Error(err))
		return err
	}
	return nil
}

// CodeExists проверяет занятость кода в общем пространстве short/custom кодов
func (r *PostgresLinkRepository) CodeExists(code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM urls WHERE short_code = $1 OR custom_code = $1)",
		code,
	).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check code existence", zap.String("code", code), zap.Error(err))
		return false, err
	}
	return exists, nil
}

// ClaimSession переносит все ссылки анонимной сессии на пользователя.
// Повторный вызов с теми же аргументами не находит строк и возвращает пустой список.
func (r *PostgresLinkRepository) ClaimSession(userID, sessionID string) ([]models.Link, error) {
	rows, err := r.db.Query(
		`UPDATE urls SET user_id = $1, session_id = NULL, updated_at = $2
		 WHERE session_id = $3
		 RETURNING `+linkColumns,
		userID, time.Now().UTC(), sessionID,
	)
	if err != nil {
		r.logger.Error("Failed to claim session links", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// Stats возвращает количество ссылок и переходов в сервисе
func (r *PostgresLinkRepository) Stats() (models.Stats, error) {
	var stats models.Stats
	err := r.db.QueryRow("SELECT (SELECT COUNT(*) FROM urls), (SELECT COUNT(*) FROM clicks)").
		Scan(&stats.Links, &stats.Clicks)
	if err != nil {
		r.logger.Error("Failed to get stats", zap.Error(err))
		return models.Stats{}, err
	}
	return stats, nil
}
