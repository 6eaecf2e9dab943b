package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-candidate/internal/config"
)

// Common auth errors.
var (
	ErrTokenMissing = errors.New("authentication token not found")
	ErrTokenExpired = errors.New("authentication token expired")
)

// TokenSource yields the bearer credential for authenticated API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource serves a fixed token, typically from the environment.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token(_ context.Context) (string, error) {
	tok := strings.TrimSpace(string(s))
	if tok == "" {
		return "", ErrTokenMissing
	}
	return tok, Inspect(tok, time.Now())
}

// RedisTokenStore reads the token written by the login screen. The agent
// never writes it.
type RedisTokenStore struct {
	rdb *redis.Client
}

// NewRedisTokenStore creates a new RedisTokenStore.
func NewRedisTokenStore(rdb *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb}
}

// Token implements TokenSource.
func (s *RedisTokenStore) Token(ctx context.Context) (string, error) {
	tok, err := s.rdb.Get(ctx, config.CacheKey.CandidateTokenKey()).Result()
	if errors.Is(err, redis.Nil) || (err == nil && strings.TrimSpace(tok) == "") {
		return "", ErrTokenMissing
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return tok, Inspect(tok, time.Now())
}

// CandidateName returns the display name stored next to the token. A
// missing name is not an error.
func (s *RedisTokenStore) CandidateName(ctx context.Context) (string, error) {
	name, err := s.rdb.Get(ctx, config.CacheKey.CandidateNameKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read candidate name: %w", err)
	}
	return name, nil
}

// Inspect rejects JWTs whose exp claim is already in the past so that no
// request is attempted with a dead credential. Opaque tokens pass; the
// signature is the server's business.
func Inspect(token string, now time.Time) error {
	if strings.Count(token, ".") != 2 {
		return nil
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}

	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return ErrTokenExpired
	}
	return nil
}
