// Package repository содержит интерфейсы и реализации хранилища ссылок и переходов.
package repository

import (
	"database/sql"
	"errors"

	"github.com/tempizhere/prowly/internal/models"
)

// ErrNotFound возвращается, когда ссылка не найдена в хранилище
var ErrNotFound = errors.New("link not found")

// ErrCodeTaken возвращается при попытке занять уже существующий код
var ErrCodeTaken = errors.New("code already taken")

// LinkRepository определяет интерфейс хранилища коротких ссылок
type LinkRepository interface {
	// Create сохраняет новую ссылку и возвращает её с заполненными полями
	Create(link models.Link) (models.Link, error)
	// GetByCode возвращает ссылку по короткому или кастомному коду
	GetByCode(code string) (models.Link, error)
	// GetByOwner возвращает все ссылки владельца
	GetByOwner(owner models.Owner) ([]models.Link, error)
	// Update применяет частичное обновление и возвращает обновлённую ссылку
	Update(id string, upd models.LinkUpdate) (models.Link, error)
	// Delete удаляет ссылку вместе со всеми её переходами
	Delete(id string) error
	// CodeExists проверяет занятость кода в общем пространстве short/custom кодов
	CodeExists(code string) (bool, error)
	// ClaimSession переносит все ссылки анонимной сессии на пользователя
	ClaimSession(userID, sessionID string) ([]models.Link, error)
	// Stats возвращает количество ссылок и переходов в сервисе
	Stats() (models.Stats, error)
}

// ClickRepository определяет интерфейс хранилища событий переходов
type ClickRepository interface {
	// Create сохраняет событие перехода
	Create(click models.Click) error
	// ListByLink возвращает все переходы по ссылке, новые первыми
	ListByLink(linkID string) ([]models.Click, error)
	// CountByLink возвращает количество переходов по ссылке
	CountByLink(linkID string) (int, error)
}

// Database определяет интерфейс для работы с базой данных
type Database interface {
	// Ping проверяет соединение с базой данных
	Ping() error
	// Close закрывает соединение с базой данных
	Close() error
	// Exec выполняет SQL-команду без возврата результатов
	Exec(query string, args ...interface{}) (sql.Result, error)
	// Query выполняет SQL-запрос и возвращает результаты
	Query(query string, args ...interface{}) (*sql.Rows, error)
	// QueryRow выполняет SQL-запрос и возвращает одну строку результата
	QueryRow(query string, args ...interface{}) *sql.Row
	// Begin начинает новую транзакцию
	Begin() (*sql.Tx, error)
}
