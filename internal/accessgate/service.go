// Package accessgate authenticates principals against stored credentials.
// Authorization decisions based on the returned role belong to the caller.
package accessgate

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"libcirc/internal/ratelimit"
	"libcirc/internal/session"
	"libcirc/internal/util"
	"libcirc/pkg/auth"
	"libcirc/pkg/domain"
	"libcirc/pkg/store"
)

// ErrAuthFailed is returned for every failed authentication. An unknown
// username and a wrong password are indistinguishable on purpose, so the
// gate cannot be used to enumerate accounts.
var ErrAuthFailed = errors.New("invalid username or password")

// ErrSessionsDisabled is returned by Login when no session manager is wired.
var ErrSessionsDisabled = errors.New("sessions not configured")

// ErrTooManyAttempts is returned when a username has exhausted its
// authentication budget for the current window.
var ErrTooManyAttempts = errors.New("too many authentication attempts")

// Config holds access gate settings. Sessions and Limiter are optional;
// without Sessions only Authenticate is available, without Limiter attempts
// are not throttled.
type Config struct {
	Store    store.Store
	Sessions *session.Manager
	Limiter  *ratelimit.FixedWindowLimiter
}

// Service is the access gate.
type Service struct {
	store    store.Store
	sessions *session.Manager
	limiter  *ratelimit.FixedWindowLimiter
}

// New constructs the access gate.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	return &Service{store: cfg.Store, sessions: cfg.Sessions, limiter: cfg.Limiter}, nil
}

// Authenticate checks the secret of an active user and returns the user on
// match.
func (s *Service) Authenticate(username, secret string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if s.limiter != nil && !s.limiter.Allow("login:"+username) {
		slog.Warn("authentication throttled", "username", username)
		return domain.User{}, ErrTooManyAttempts
	}
	user, ok, err := s.store.GetUserByUsername(username)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !user.Active {
		slog.Warn("authentication failed", "username", username)
		return domain.User{}, ErrAuthFailed
	}
	if !auth.CheckPassword(secret, user.PasswordHash) {
		slog.Warn("authentication failed", "username", username)
		return domain.User{}, ErrAuthFailed
	}
	return user, nil
}

// Login authenticates and issues a session token.
func (s *Service) Login(username, secret string) (domain.User, string, error) {
	if s.sessions == nil {
		return domain.User{}, "", ErrSessionsDisabled
	}
	user, err := s.Authenticate(username, secret)
	if err != nil {
		return domain.User{}, "", err
	}
	token, err := s.sessions.Issue(user)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Logout revokes a session token.
func (s *Service) Logout(token string) error {
	if s.sessions == nil {
		return ErrSessionsDisabled
	}
	return s.sessions.Revoke(token)
}

// UserFromToken resolves an active user from a session token.
func (s *Service) UserFromToken(token string) (domain.User, bool) {
	if s.sessions == nil {
		return domain.User{}, false
	}
	userID, ok, err := s.sessions.Verify(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := s.store.GetUser(userID)
	if err != nil || !found || !user.Active {
		return domain.User{}, false
	}
	return user, true
}

// EnsureDefaultAdmin seeds the administrator account on first run. It is a
// no-op when the username already exists.
func (s *Service) EnsureDefaultAdmin(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("%w: admin username and password required", domain.ErrValidation)
	}
	return s.store.Atomically(func(tx store.Store) error {
		_, exists, err := tx.GetUserByUsername(username)
		if err != nil {
			return fmt.Errorf("fetch user: %w", err)
		}
		if exists {
			return nil
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		user := domain.User{
			ID:           util.NewID(),
			Username:     username,
			PasswordHash: hash,
			Role:         domain.RoleAdmin,
			FullName:     "Administrator",
			Active:       true,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.CreateUser(user); err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		slog.Info("default admin created", "username", username)
		return nil
	})
}
