package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisLimiter(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewRedisLimiter(client, 2, time.Minute, zap.NewNop())
	ctx := context.Background()

	// Тест 1: счётчик и TTL выставляются одной транзакцией
	mock.ExpectTxPipeline()
	mock.ExpectIncr("ratelimit:1.1.1.1").SetVal(1)
	mock.ExpectExpireNX("ratelimit:1.1.1.1", time.Minute).SetVal(true)
	mock.ExpectTTL("ratelimit:1.1.1.1").SetVal(time.Minute)
	mock.ExpectTxPipelineExec()

	ok, reset, err := limiter.Allow(ctx, "1.1.1.1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), reset, time.Second)

	// Тест 2: превышение лимита, TTL окна уже идёт
	mock.ExpectTxPipeline()
	mock.ExpectIncr("ratelimit:1.1.1.1").SetVal(3)
	mock.ExpectExpireNX("ratelimit:1.1.1.1", time.Minute).SetVal(false)
	mock.ExpectTTL("ratelimit:1.1.1.1").SetVal(30 * time.Second)
	mock.ExpectTxPipelineExec()

	ok, reset, err = limiter.Allow(ctx, "1.1.1.1")
	require.NoError(t, err)
	assert.False(t, ok, "Third request over limit 2 should be rejected")
	assert.WithinDuration(t, time.Now().Add(30*time.Second), reset, time.Second)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	client, mock := redismock.NewClientMock()
	limiter := NewRedisLimiter(client, 1, time.Minute, zap.NewNop())

	mock.ExpectTxPipeline()
	mock.ExpectIncr("ratelimit:1.1.1.1").SetErr(errors.New("connection refused"))

	ok, _, err := limiter.Allow(context.Background(), "1.1.1.1")
	require.NoError(t, err)
	assert.True(t, ok, "Redis failure must not block requests")
}

func TestMemoryLimiter(t *testing.T) {
	limiter := NewMemoryLimiter(3, 50*time.Millisecond)
	ctx := context.Background()

	// Тест 1: лимит в пределах окна
	for i := 0; i < 3; i++ {
		ok, reset, err := limiter.Allow(ctx, "1.1.1.1")
		assert.NoError(t, err)
		assert.True(t, ok, "Request %d should be allowed", i+1)
		assert.True(t, reset.After(time.Now()), "Reset should be in the future")
	}

	// Тест 2: превышение лимита
	ok, _, err := limiter.Allow(ctx, "1.1.1.1")
	assert.NoError(t, err)
	assert.False(t, ok, "Fourth request should be rejected")

	// Тест 3: ключи независимы
	ok, _, err = limiter.Allow(ctx, "2.2.2.2")
	assert.NoError(t, err)
	assert.True(t, ok, "Another key has its own window")

	// Тест 4: окно сбрасывается
	time.Sleep(60 * time.Millisecond)
	ok, _, err = limiter.Allow(ctx, "1.1.1.1")
	assert.NoError(t, err)
	assert.True(t, ok, "New window should allow requests again")
}
