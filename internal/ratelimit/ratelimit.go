// Package ratelimit реализует ограничение частоты запросов по ключу.
// Счётчик ведётся в фиксированном окне: лимит запросов на окно на IP.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter определяет интерфейс ограничителя частоты запросов
type Limiter interface {
	// Allow сообщает, разрешён ли запрос для ключа, и время сброса окна
	Allow(ctx context.Context, key string) (bool, time.Time, error)
}

// RedisLimiter реализует Limiter поверх Redis через INCR с EXPIRE
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *zap.Logger
}

// NewRedisLimiter создаёт новый экземпляр RedisLimiter
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Allow инкрементирует счётчик окна и сравнивает с лимитом.
// INCR и EXPIRE идут одной транзакцией: счётчик без TTL не должен появиться.
// При недоступности Redis запрос пропускается: лимитер не должен ронять запись.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Time, error) {
	redisKey := "ratelimit:" + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	ttlCmd := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("Rate limiter unavailable, allowing request", zap.Error(err))
		return true, time.Now().Add(l.window), nil
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = l.window
	}
	reset := time.Now().Add(ttl)

	return incr.Val() <= int64(l.limit), reset, nil
}

// windowCounter хранит счётчик одного окна
type windowCounter struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter реализует Limiter с использованием map.
// Применяется в тестах и при запуске без Redis.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]windowCounter
}

// NewMemoryLimiter создаёт новый экземпляр MemoryLimiter
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]windowCounter),
	}
}

// Allow инкрементирует счётчик окна и сравнивает с лимитом
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		w = windowCounter{count: 0, resetAt: now.Add(l.window)}
	}
	w.count++
	l.windows[key] = w

	return w.count <= l.limit, w.resetAt, nil
}
