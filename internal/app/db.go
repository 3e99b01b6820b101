package app

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/tempizhere/prowly/internal/repository"
)

// DB представляет подключение к базе данных
type DB struct {
	conn *sql.DB
}

// schema содержит таблицы ссылок и переходов.
// Уникальные индексы на короткий и кастомный код закрывают гонку
// между конкурентными запросами на один и тот же код.
const schema = `
CREATE TABLE IF NOT EXISTS urls (
    id UUID PRIMARY KEY,
    original_url TEXT NOT NULL,
    short_code VARCHAR(20) NOT NULL,
    custom_code VARCHAR(20),
    title VARCHAR(100),
    description VARCHAR(500),
    expires_at TIMESTAMPTZ,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    user_id VARCHAR(64),
    session_id VARCHAR(64),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT urls_one_owner CHECK (NOT (user_id IS NOT NULL AND session_id IS NOT NULL))
);
CREATE UNIQUE INDEX IF NOT EXISTS urls_short_code_key ON urls (short_code);
CREATE UNIQUE INDEX IF NOT EXISTS urls_custom_code_key ON urls (custom_code);
CREATE INDEX IF NOT EXISTS urls_session_id_idx ON urls (session_id);
CREATE INDEX IF NOT EXISTS urls_user_id_idx ON urls (user_id);

CREATE TABLE IF NOT EXISTS clicks (
    id UUID PRIMARY KEY,
    link_id UUID NOT NULL REFERENCES urls (id),
    ip_address VARCHAR(64),
    user_agent TEXT,
    referer TEXT,
    country VARCHAR(64) NOT NULL DEFAULT 'Unknown',
    city VARCHAR(128) NOT NULL DEFAULT 'Unknown',
    device_type VARCHAR(32) NOT NULL DEFAULT 'desktop',
    browser VARCHAR(64) NOT NULL DEFAULT 'Unknown',
    os VARCHAR(64) NOT NULL DEFAULT 'Unknown',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS clicks_link_id_idx ON clicks (link_id);
CREATE INDEX IF NOT EXISTS clicks_created_at_idx ON clicks (created_at);
`

// NewDB создаёт новое подключение к базе данных и применяет схему
func NewDB(dsn string) (repository.Database, error) {
	if dsn == "" {
		return nil, nil
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// Ping проверяет соединение с базой данных
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close закрывает соединение с базой данных
func (db *DB) Close() error {
	if db == nil || db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Exec выполняет SQL-запрос с аргументами
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query выполняет SQL-запрос и возвращает множество строк
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow выполняет SQL-запрос и возвращает одну строку
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

// Begin начинает транзакцию
func (db *DB) Begin() (*sql.Tx, error) {
	if db == nil || db.conn == nil {
		return nil, sql.ErrConnDone
	}
	return db.conn.Begin()
}
