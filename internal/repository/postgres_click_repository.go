package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/tempizhere/prowly/internal/models"
	"go.uber.org/zap"
)

// clickColumns — список колонок таблицы clicks в порядке сканирования
const clickColumns = "id, link_id, ip_address, user_agent, referer, country, city, device_type, browser, os, created_at"

// PostgresClickRepository реализует ClickRepository поверх PostgreSQL
type PostgresClickRepository struct {
	db     Database
	logger *zap.Logger
}

// NewPostgresClickRepository создаёт новый экземпляр PostgresClickRepository
func NewPostgresClickRepository(db Database, logger *zap.Logger) *PostgresClickRepository {
	return &PostgresClickRepository{
		db:     db,
		logger: logger,
	}
}

// Create сохраняет событие перехода
func (r *PostgresClickRepository) Create(click models.Click) error {
	if click.ID == "" {
		click.ID = uuid.NewString()
	}
	if click.CreatedAt.IsZero() {
		click.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(
		`INSERT INTO clicks (id, link_id, ip_address, user_agent, referer, country, city, device_type, browser, os, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		click.ID, click.LinkID, nullable(click.IPAddress), nullable(click.UserAgent), nullable(click.Referer),
		click.Country, click.City, click.DeviceType, click.Browser, click.OS, click.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert click", zap.String("link_id", click.LinkID), zap.Error(err))
		return err
	}
	return nil
}

// ListByLink возвращает все переходы по ссылке, новые первыми
func (r *PostgresClickRepository) ListByLink(linkID string) ([]models.Click, error) {
	rows, err := r.db.Query(
		"SELECT "+clickColumns+" FROM clicks WHERE link_id = $1 ORDER BY created_at DESC",
		linkID,
	)
	if err != nil {
		r.logger.Error("Failed to list clicks", zap.String("link_id", linkID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var clicks []models.Click
	for rows.Next() {
		var click models.Click
		var ip, ua, referer sql.NullString
		err := rows.Scan(
			&click.ID, &click.LinkID, &ip, &ua, &referer,
			&click.Country, &click.City, &click.DeviceType, &click.Browser, &click.OS,
			&click.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		click.IPAddress = ip.String
		click.UserAgent = ua.String
		click.Referer = referer.String
		clicks = append(clicks, click)
	}
	return clicks, rows.Err()
}

// CountByLink возвращает количество переходов по ссылке
func (r *PostgresClickRepository) CountByLink(linkID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM clicks WHERE link_id = $1", linkID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count clicks", zap.String("link_id", linkID), zap.Error(err))
		return 0, err
	}
	return count, nil
}
