// Package cache содержит кэш с TTL для короткоживущих данных.
// Используется для кэширования результатов чтения сессии с явной
// инвалидацией при входе и выходе пользователя.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache определяет интерфейс кэша с TTL
type Cache interface {
	// Get возвращает значение по ключу и флаг его наличия
	Get(ctx context.Context, key string) (string, bool)
	// Set сохраняет значение с заданным временем жизни
	Set(ctx context.Context, key, value string, ttl time.Duration)
	// Delete удаляет значение по ключу
	Delete(ctx context.Context, key string)
}

// RedisCache реализует Cache поверх Redis
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache создаёт новый экземпляр RedisCache
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get возвращает значение по ключу
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set сохраняет значение с заданным временем жизни
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	c.client.Set(ctx, key, value, ttl)
}

// Delete удаляет значение по ключу
func (c *RedisCache) Delete(ctx context.Context, key string) {
	c.client.Del(ctx, key)
}

// memoryEntry хранит значение и срок его жизни
type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache реализует Cache с использованием map.
// Применяется в тестах и при запуске без Redis.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryCache создаёт новый экземпляр MemoryCache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
	}
}

// Get возвращает значение по ключу, просроченные записи не возвращаются
func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

// Set сохраняет значение с заданным временем жизни
func (c *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete удаляет значение по ключу
func (c *MemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
