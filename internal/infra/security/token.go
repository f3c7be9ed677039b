package security

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for missing, malformed, expired or unsigned
// tokens.
var ErrInvalidToken = errors.New("security: invalid token")

// TokenResolver turns an opaque bearer credential into a user id. Token
// issuance belongs to the platform's auth service; this side only verifies.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (userID string, err error)
}

// JWTResolver verifies HS256 tokens whose subject claim is the user id.
type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret string) (*JWTResolver, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("security: jwt secret is required")
	}
	return &JWTResolver{secret: []byte(secret)}, nil
}

func (r *JWTResolver) Resolve(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return r.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}

var _ TokenResolver = (*JWTResolver)(nil)

// StaticResolver maps fixed tokens to user ids, for tests and local runs
// without the auth service.
type StaticResolver map[string]string

func (r StaticResolver) Resolve(ctx context.Context, token string) (string, error) {
	userID, ok := r[token]
	if !ok {
		return "", ErrInvalidToken
	}
	return userID, nil
}
