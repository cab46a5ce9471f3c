package accessgate

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"libcirc/internal/ratelimit"
	"libcirc/internal/session"
	"libcirc/internal/util"
	"libcirc/pkg/auth"
	"libcirc/pkg/domain"
	"libcirc/pkg/store"
)

func newGate(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	svc, err := New(Config{Store: st})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return svc, st
}

func newGateWithSessions(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions, err := session.New(session.Config{Secret: "test-secret", TTL: 30 * time.Minute, Client: client})
	if err != nil {
		t.Fatalf("session.New() error: %v", err)
	}
	svc, err := New(Config{Store: st, Sessions: sessions})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return svc, st
}

func seedUser(t *testing.T, st store.Store, username, password string, active bool) domain.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	user := domain.User{
		ID: util.NewID(), Username: username, PasswordHash: hash,
		Role: domain.RoleLibrarian, FullName: "Test User", Active: active,
		CreatedAt: time.Now().UTC(),
	}
	if err := st.CreateUser(user); err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	return user
}

func TestAuthenticate(t *testing.T) {
	svc, st := newGate(t)
	seedUser(t, st, "kim", "s3cret", true)

	user, err := svc.Authenticate("kim", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if user.Username != "kim" {
		t.Errorf("Username = %q, want %q", user.Username, "kim")
	}

	// Wrong password and unknown username fail identically.
	if _, err := svc.Authenticate("kim", "wrong"); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("wrong password: err = %v, want ErrAuthFailed", err)
	}
	if _, err := svc.Authenticate("nobody", "s3cret"); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("unknown user: err = %v, want ErrAuthFailed", err)
	}
}

func TestAuthenticateInactiveUser(t *testing.T) {
	svc, st := newGate(t)
	seedUser(t, st, "kim", "s3cret", false)

	if _, err := svc.Authenticate("kim", "s3cret"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("inactive user: err = %v, want ErrAuthFailed", err)
	}
}

func TestLoginLogout(t *testing.T) {
	svc, st := newGateWithSessions(t)
	seeded := seedUser(t, st, "kim", "s3cret", true)

	user, token, err := svc.Login("kim", "s3cret")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if token == "" {
		t.Fatal("Login() returned empty token")
	}
	if user.ID != seeded.ID {
		t.Errorf("user ID = %s, want %s", user.ID, seeded.ID)
	}

	resolved, ok := svc.UserFromToken(token)
	if !ok {
		t.Fatal("UserFromToken() should resolve a fresh token")
	}
	if resolved.ID != seeded.ID {
		t.Errorf("resolved ID = %s, want %s", resolved.ID, seeded.ID)
	}

	if err := svc.Logout(token); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if _, ok := svc.UserFromToken(token); ok {
		t.Error("UserFromToken() should fail after logout")
	}
}

func TestUserFromTokenInactiveUser(t *testing.T) {
	svc, st := newGateWithSessions(t)
	user := seedUser(t, st, "kim", "s3cret", true)

	_, token, err := svc.Login("kim", "s3cret")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	// Deactivating the account invalidates outstanding sessions.
	user.Active = false
	if err := st.UpdateUser(user); err != nil {
		t.Fatalf("UpdateUser() error: %v", err)
	}
	if _, ok := svc.UserFromToken(token); ok {
		t.Error("token for a deactivated user should not resolve")
	}
}

func TestLoginWithoutSessions(t *testing.T) {
	svc, st := newGate(t)
	seedUser(t, st, "kim", "s3cret", true)

	if _, _, err := svc.Login("kim", "s3cret"); !errors.Is(err, ErrSessionsDisabled) {
		t.Fatalf("Login() without sessions: err = %v, want ErrSessionsDisabled", err)
	}
}

func TestAuthenticateThrottled(t *testing.T) {
	st := store.NewMemoryStore()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter, err := ratelimit.New(ratelimit.Config{Client: client, Limit: 2, Window: time.Minute})
	if err != nil {
		t.Fatalf("ratelimit.New() error: %v", err)
	}
	svc, err := New(Config{Store: st, Limiter: limiter})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	seedUser(t, st, "kim", "s3cret", true)

	for i := 0; i < 2; i++ {
		if _, err := svc.Authenticate("kim", "wrong"); !errors.Is(err, ErrAuthFailed) {
			t.Fatalf("attempt %d: err = %v, want ErrAuthFailed", i, err)
		}
	}
	// The third attempt hits the budget, even with the right password.
	if _, err := svc.Authenticate("kim", "s3cret"); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("throttled attempt: err = %v, want ErrTooManyAttempts", err)
	}
}

func TestEnsureDefaultAdmin(t *testing.T) {
	svc, st := newGate(t)

	if err := svc.EnsureDefaultAdmin("admin", "admin"); err != nil {
		t.Fatalf("EnsureDefaultAdmin() error: %v", err)
	}
	user, ok, err := st.GetUserByUsername("admin")
	if err != nil || !ok {
		t.Fatalf("GetUserByUsername() = %v, %v", ok, err)
	}
	if user.Role != domain.RoleAdmin {
		t.Errorf("Role = %s, want %s", user.Role, domain.RoleAdmin)
	}
	if !user.Active {
		t.Error("seeded admin should be active")
	}

	// Seeding again must not replace the account or its password.
	if err := svc.EnsureDefaultAdmin("admin", "different"); err != nil {
		t.Fatalf("second EnsureDefaultAdmin() error: %v", err)
	}
	if _, err := svc.Authenticate("admin", "admin"); err != nil {
		t.Errorf("original password should still work: %v", err)
	}

	if err := svc.EnsureDefaultAdmin("", "x"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank username: err = %v, want ErrValidation", err)
	}
}
