package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/tempizhere/prowly/internal/cache"
	"go.uber.org/zap"
)

// ErrInvalidSession возвращается для неразборного или просроченного токена сессии
var ErrInvalidSession = errors.New("invalid session token")

// sessionCacheTTL ограничивает срок жизни кэшированного чтения сессии
const sessionCacheTTL = 5 * time.Second

// SessionData представляет состояние сессии браузера
type SessionData struct {
	AnonymousID string `json:"anonymous_id"`
	UserID      string `json:"user_id,omitempty"`
	LoggedIn    bool   `json:"logged_in"`
}

// sessionClaims представляет полезную нагрузку JWT-сессии
type sessionClaims struct {
	jwt.RegisteredClaims
	AnonymousID string `json:"anonymous_id"`
	UserID      string `json:"user_id,omitempty"`
	LoggedIn    bool   `json:"logged_in"`
}

// Sessions выпускает и разбирает подписанные куки сессий.
// Чтения кэшируются на несколько секунд с явной инвалидацией
// при входе и выходе пользователя.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	cache  cache.Cache
	logger *zap.Logger
}

// NewSessions создаёт новый экземпляр Sessions
func NewSessions(secret string, ttl time.Duration, c cache.Cache, logger *zap.Logger) *Sessions {
	return &Sessions{
		secret: []byte(secret),
		ttl:    ttl,
		cache:  c,
		logger: logger,
	}
}

// NewAnonymousID генерирует новый анонимный идентификатор сессии
func NewAnonymousID() string {
	return "anon_" + uuid.NewString()
}

// TTL возвращает срок жизни куки сессии
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Issue выпускает подписанный токен для состояния сессии
func (s *Sessions) Issue(data SessionData) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		AnonymousID: data.AnonymousID,
		UserID:      data.UserID,
		LoggedIn:    data.LoggedIn,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse разбирает токен сессии, используя кэш недавних чтений
func (s *Sessions) Parse(ctx context.Context, token string) (SessionData, error) {
	if cached, ok := s.cache.Get(ctx, "session:"+token); ok {
		var data SessionData
		if err := json.Unmarshal([]byte(cached), &data); err == nil {
			return data, nil
		}
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return SessionData{}, ErrInvalidSession
	}

	data := SessionData{
		AnonymousID: claims.AnonymousID,
		UserID:      claims.UserID,
		LoggedIn:    claims.LoggedIn,
	}
	if encoded, err := json.Marshal(data); err == nil {
		s.cache.Set(ctx, "session:"+token, string(encoded), sessionCacheTTL)
	}
	return data, nil
}

// Promote помечает сессию вошедшей и привязывает её к пользователю.
// Анонимный идентификатор сохраняется: повторный перенос ссылок безопасен.
func (s *Sessions) Promote(ctx context.Context, oldToken string, data SessionData, userID string) (string, SessionData, error) {
	s.Invalidate(ctx, oldToken)
	data.UserID = userID
	data.LoggedIn = true
	token, err := s.Issue(data)
	if err != nil {
		return "", SessionData{}, err
	}
	s.logger.Info("Session promoted", zap.String("user_id", userID))
	return token, data, nil
}

// Invalidate убирает кэшированное чтение токена
func (s *Sessions) Invalidate(ctx context.Context, token string) {
	if token != "" {
		s.cache.Delete(ctx, "session:"+token)
	}
}
