package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

const testSigningKey = "test-secret-key-for-unit-tests-only-000"

func newTestAuth(t *testing.T) (*TokenIssuer, *MemorySessionStore) {
	t.Helper()
	issuer, err := NewTokenIssuer(testSigningKey, time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	store := newMemorySessionStore(time.Now)
	return issuer, store
}

func openSession(t *testing.T, issuer *TokenIssuer, store SessionStore, s Session) string {
	t.Helper()
	if err := store.Create(context.Background(), s, time.Hour); err != nil {
		t.Fatalf("create session: %v", err)
	}
	token, _, err := issuer.Issue(s)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

func runAuth(t *testing.T, mw echo.MiddlewareFunc, header string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/bookings")

	var seen echo.Context
	h := mw(func(c echo.Context) error {
		seen = c
		return c.String(http.StatusOK, "ok")
	})
	return seen, h(c)
}

func assertStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	issuer, store := newTestAuth(t)
	_, err := runAuth(t, Authenticate(issuer, store, nil), "")
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestAuthenticate_InvalidFormat(t *testing.T) {
	issuer, store := newTestAuth(t)
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runAuth(t, Authenticate(issuer, store, nil), tt.header)
			assertStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestAuthenticate_BadSignature(t *testing.T) {
	issuer, store := newTestAuth(t)
	other, _ := NewTokenIssuer("another-signing-key-that-is-long-enough", time.Hour)
	token := openSession(t, other, store, Session{ID: "sid", UserID: "u1", Role: RoleUser})

	_, err := runAuth(t, Authenticate(issuer, store, nil), "Bearer "+token)
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestAuthenticate_ValidSession(t *testing.T) {
	issuer, store := newTestAuth(t)
	token := openSession(t, issuer, store, Session{
		ID: "sid-1", UserID: "u1", Role: RoleDoctor, DoctorCode: "DOC001", Email: "doc@example.com",
	})

	c, err := runAuth(t, Authenticate(issuer, store, nil), "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "u1" {
		t.Errorf("user id = %q", got)
	}
	if got := RoleFromContext(ctx); got != RoleDoctor {
		t.Errorf("role = %q", got)
	}
	if got := SessionIDFromContext(ctx); got != "sid-1" {
		t.Errorf("session id = %q", got)
	}
	if got := DoctorCodeFromContext(ctx); got != "DOC001" {
		t.Errorf("doctor code = %q", got)
	}
	if got := EmailFromContext(ctx); got != "doc@example.com" {
		t.Errorf("email = %q", got)
	}
}

func TestAuthenticate_RevokedSession(t *testing.T) {
	issuer, store := newTestAuth(t)
	token := openSession(t, issuer, store, Session{ID: "sid-2", UserID: "u2", Role: RoleUser})
	store.Delete(context.Background(), "sid-2")

	_, err := runAuth(t, Authenticate(issuer, store, nil), "Bearer "+token)
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestAuthenticate_Skipper(t *testing.T) {
	issuer, store := newTestAuth(t)
	skip := func(c echo.Context) bool { return true }

	if _, err := runAuth(t, Authenticate(issuer, store, skip), ""); err != nil {
		t.Errorf("expected skipped request to pass, got %v", err)
	}
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer, _ := newTestAuth(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return start }

	token, exp, err := issuer.Issue(Session{ID: "sid", UserID: "u"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.Equal(start.Add(time.Hour)) {
		t.Errorf("expiry = %v", exp)
	}
	if _, err := issuer.Parse(token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	issuer.now = func() time.Time { return start.Add(2 * time.Hour) }
	if _, err := issuer.Parse(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestNewSessionID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewSessionID()
		if err != nil {
			t.Fatal(err)
		}
		if len(id) != 32 {
			t.Errorf("expected 32 hex chars, got %d", len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate session id %s", id)
		}
		seen[id] = true
	}
}

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := HashPassword("s3cretpass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPassword(hash, "s3cretpass"); err != nil {
		t.Errorf("expected match, got %v", err)
	}
	if err := CheckPassword(hash, "wrong"); err != ErrPasswordMismatch {
		t.Errorf("expected ErrPasswordMismatch, got %v", err)
	}
}
