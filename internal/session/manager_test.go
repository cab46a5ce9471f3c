package session

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"libcirc/pkg/domain"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	m, err := New(Config{
		Secret: "test-secret",
		TTL:    30 * time.Minute,
		Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, mr
}

func testUser() domain.User {
	return domain.User{ID: "user-1", Username: "admin", Role: domain.RoleAdmin, Active: true}
}

func TestIssueAndVerify(t *testing.T) {
	m, _ := newTestManager(t)

	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	userID, ok, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok || userID != "user-1" {
		t.Fatalf("verify = (%q, %v), want (user-1, true)", userID, ok)
	}
}

func TestRevokeStopsVerification(t *testing.T) {
	m, _ := newTestManager(t)

	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := m.Revoke(token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, ok, err := m.Verify(token); err != nil || ok {
		t.Fatalf("expected revoked token to fail verification, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	m, _ := newTestManager(t)

	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	if _, ok, err := m.Verify(tampered); err != nil || ok {
		t.Fatalf("expected tampered token to fail verification, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m, _ := newTestManager(t)
	issuedAt := time.Now().UTC()
	m.now = func() time.Time { return issuedAt }

	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	m.now = func() time.Time { return issuedAt.Add(31 * time.Minute) }
	if _, ok, err := m.Verify(token); err != nil || ok {
		t.Fatalf("expected expired token to fail verification, got ok=%v err=%v", ok, err)
	}
}

func TestRevokeUnknownTokenIsNoop(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Revoke("garbage"); err != nil {
		t.Fatalf("revoke garbage: %v", err)
	}
}
