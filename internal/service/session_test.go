package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tempizhere/prowly/internal/cache"
	"go.uber.org/zap"
)

func newTestSessions() *Sessions {
	return NewSessions("test_secret", 7*24*time.Hour, cache.NewMemoryCache(), zap.NewNop())
}

func TestNewAnonymousID(t *testing.T) {
	id := NewAnonymousID()
	assert.True(t, strings.HasPrefix(id, "anon_"), "Anonymous ID should carry the anon_ prefix")
	assert.NotEqual(t, id, NewAnonymousID(), "IDs should be unique")
}

func TestSessionIssueParse(t *testing.T) {
	svc := newTestSessions()
	ctx := context.Background()

	// Тест 1: выпуск и разбор анонимной сессии
	data := SessionData{AnonymousID: "anon_1"}
	token, err := svc.Issue(data)
	require.NoError(t, err, "Issue should not return error")
	assert.NotEmpty(t, token)

	parsed, err := svc.Parse(ctx, token)
	assert.NoError(t, err, "Parse should not return error")
	assert.Equal(t, "anon_1", parsed.AnonymousID)
	assert.False(t, parsed.LoggedIn)

	// Тест 2: мусорный токен
	_, err = svc.Parse(ctx, "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidSession, "Garbage token should be rejected")

	// Тест 3: токен с чужой подписью
	other := NewSessions("other_secret", time.Hour, cache.NewMemoryCache(), zap.NewNop())
	foreign, err := other.Issue(data)
	require.NoError(t, err)
	_, err = svc.Parse(ctx, foreign)
	assert.ErrorIs(t, err, ErrInvalidSession, "Token signed with another secret should be rejected")

	// Тест 4: просроченный токен
	expired := NewSessions("test_secret", -time.Hour, cache.NewMemoryCache(), zap.NewNop())
	old, err := expired.Issue(data)
	require.NoError(t, err)
	_, err = svc.Parse(ctx, old)
	assert.ErrorIs(t, err, ErrInvalidSession, "Expired token should be rejected")

	// Тест 5: токен без HMAC-подписи
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Parse(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidSession, "Token with none algorithm should be rejected")
}

func TestSessionCache(t *testing.T) {
	c := cache.NewMemoryCache()
	svc := NewSessions("test_secret", time.Hour, c, zap.NewNop())
	ctx := context.Background()

	token, err := svc.Issue(SessionData{AnonymousID: "anon_1"})
	require.NoError(t, err)

	// Первый разбор кладёт результат в кэш
	_, err = svc.Parse(ctx, token)
	require.NoError(t, err)
	_, ok := c.Get(ctx, "session:"+token)
	assert.True(t, ok, "Parsed session should be cached")

	// Инвалидация убирает запись
	svc.Invalidate(ctx, token)
	_, ok = c.Get(ctx, "session:"+token)
	assert.False(t, ok, "Invalidate should drop the cached session")
}

func TestSessionPromote(t *testing.T) {
	svc := newTestSessions()
	ctx := context.Background()

	data := SessionData{AnonymousID: "anon_1"}
	oldToken, err := svc.Issue(data)
	require.NoError(t, err)

	newToken, promoted, err := svc.Promote(ctx, oldToken, data, "user_1")
	assert.NoError(t, err, "Promote should not return error")
	assert.NotEqual(t, oldToken, newToken, "Promote should issue a new token")
	assert.True(t, promoted.LoggedIn, "Promoted session should be logged in")
	assert.Equal(t, "user_1", promoted.UserID)
	assert.Equal(t, "anon_1", promoted.AnonymousID, "Anonymous ID survives promotion")

	parsed, err := svc.Parse(ctx, newToken)
	assert.NoError(t, err)
	assert.Equal(t, promoted, parsed, "New token should carry the promoted state")
}
