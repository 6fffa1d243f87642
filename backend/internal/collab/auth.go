// Package collab holds the external collaborators the social engine is
// served alongside: bearer-token identity, the notification log and post
// search.
package collab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "socialgraph/backend/pkg/errors"
)

// ErrUnauthenticated is returned for missing, malformed or expired tokens.
var ErrUnauthenticated = errors.New("collab: unauthenticated")

// Identity is the caller behind a bearer token.
type Identity struct {
	ID       string `json:"id"`
	AuthType string `json:"authType"`
	Username string `json:"username"`
}

// Authenticator resolves a bearer token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// Claims are the JWT claims carried by session tokens. The subject is the
// identity id.
type Claims struct {
	Username string `json:"username"`
	AuthType string `json:"authType"`
	jwt.RegisteredClaims
}

// JWTAuthenticator issues and validates HS256 session tokens.
type JWTAuthenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTAuthenticator creates an authenticator. The secret is required.
func NewJWTAuthenticator(secret string, ttl time.Duration) (*JWTAuthenticator, error) {
	if secret == "" {
		return nil, apperrors.NewConfigMissingRequired("JWT_SECRET")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTAuthenticator{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for the identity.
func (a *JWTAuthenticator) Issue(id Identity) (string, error) {
	now := a.now()
	claims := &Claims{
		Username: id.Username,
		AuthType: id.AuthType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Authenticate validates token, with or without a "Bearer " prefix.
func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, ErrUnauthenticated
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Username == "" {
		return nil, fmt.Errorf("%w: invalid token claims", ErrUnauthenticated)
	}
	return &Identity{ID: claims.Subject, AuthType: claims.AuthType, Username: claims.Username}, nil
}
