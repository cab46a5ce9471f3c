// Package session issues and verifies front-end session tokens. Tokens are
// HS256 JWTs; an entry in Redis keyed by the token ID makes revocation
// (logout) effective before the JWT itself expires.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"libcirc/internal/util"
	"libcirc/pkg/domain"
)

const keyPrefix = "session:"

// Manager issues, verifies and revokes session tokens.
type Manager struct {
	client *redis.Client
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Config holds session manager settings. Client overrides RedisAddr when
// set, which tests use to point at miniredis.
type Config struct {
	RedisAddr     string
	RedisPassword string
	Secret        string
	TTL           time.Duration
	Client        *redis.Client
}

// New constructs a session manager backed by Redis.
func New(cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("session secret required")
	}
	client := cfg.Client
	if client == nil {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, errors.New("redis addr required")
		}
		client = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Manager{
		client: client,
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue creates a signed token for the user and registers it in Redis.
func (m *Manager) Issue(user domain.User) (string, error) {
	now := m.now().UTC()
	jti := util.NewID()
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"jti":  jti,
		"iat":  now.Unix(),
		"exp":  now.Add(m.ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	ctx, cancel := m.ctx()
	defer cancel()
	if err := m.client.Set(ctx, keyPrefix+jti, user.ID, m.ttl).Err(); err != nil {
		return "", fmt.Errorf("register session: %w", err)
	}
	return token, nil
}

// Verify checks signature, expiry and the Redis registration. It returns
// the user ID the token was issued for.
func (m *Manager) Verify(token string) (string, bool, error) {
	jti, userID, err := m.parse(token)
	if err != nil {
		return "", false, nil
	}
	ctx, cancel := m.ctx()
	defer cancel()
	stored, err := m.client.Get(ctx, keyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup session: %w", err)
	}
	if stored != userID {
		return "", false, nil
	}
	return userID, true, nil
}

// Revoke deletes the session registration so the token stops verifying.
// Revoking an unknown or malformed token is a no-op.
func (m *Manager) Revoke(token string) error {
	jti, _, err := m.parse(token)
	if err != nil {
		return nil
	}
	ctx, cancel := m.ctx()
	defer cancel()
	if err := m.client.Del(ctx, keyPrefix+jti).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (m *Manager) parse(token string) (jti, userID string, err error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now().UTC() }))
	if err != nil || !parsed.Valid {
		return "", "", fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("unexpected claims type")
	}
	jti, _ = claims["jti"].(string)
	userID, _ = claims["sub"].(string)
	if jti == "" || userID == "" {
		return "", "", errors.New("missing session claims")
	}
	return jti, userID, nil
}

func (m *Manager) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 3*time.Second)
}
