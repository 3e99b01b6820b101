package service

import (
	"errors"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidAuthToken возвращается для неразборного токена провайдера аутентификации
var ErrInvalidAuthToken = errors.New("invalid auth token")

// AuthProvider определяет интерфейс внешнего провайдера аутентификации.
// Сервис не управляет учётными записями, он только проверяет выданный
// провайдером токен и извлекает идентификатор пользователя.
type AuthProvider interface {
	// VerifyToken проверяет токен и возвращает идентификатор пользователя
	VerifyToken(token string) (string, error)
}

// JWTAuthProvider реализует AuthProvider для провайдеров, выдающих
// JWT с общим секретом. Идентификатор пользователя берётся из claim sub.
type JWTAuthProvider struct {
	secret []byte
}

// NewJWTAuthProvider создаёт новый экземпляр JWTAuthProvider
func NewJWTAuthProvider(secret string) *JWTAuthProvider {
	return &JWTAuthProvider{secret: []byte(secret)}
}

// VerifyToken проверяет подпись и срок жизни токена
func (p *JWTAuthProvider) VerifyToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidAuthToken
		}
		return p.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidAuthToken
	}
	return claims.Subject, nil
}
