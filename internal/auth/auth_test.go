package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"paydeck/internal/log"
	"paydeck/internal/storage"
	"paydeck/internal/storage/memory"
)

func testManager(ttl time.Duration) *Manager {
	logger := log.New(log.Config{Component: log.ComponentAuth})
	return NewManager(memory.New(), []byte("test-secret-0123456789"), ttl, logger)
}

func TestSignUpAndSignIn(t *testing.T) {
	m := testManager(time.Hour)
	ctx := context.Background()

	token, err := m.SignUp(ctx, "Alice@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	userID, err := m.Verify(token)
	if err != nil || userID == "" {
		t.Fatalf("verify sign-up token: %q, %v", userID, err)
	}

	// Email matching is case-insensitive.
	token2, err := m.SignIn(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	userID2, err := m.Verify(token2)
	if err != nil {
		t.Fatalf("verify sign-in token: %v", err)
	}
	if userID2 != userID {
		t.Fatalf("sign-in user %q != sign-up user %q", userID2, userID)
	}
}

func TestSignUpRejectsBadInput(t *testing.T) {
	m := testManager(time.Hour)
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"no at sign", "alice.example.com", "long enough", ErrInvalidEmail},
		{"empty local part", "@example.com", "long enough", ErrInvalidEmail},
		{"trailing at", "alice@", "long enough", ErrInvalidEmail},
		{"short password", "alice@example.com", "short", ErrWeakPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.SignUp(ctx, tc.email, tc.password); !errors.Is(err, tc.want) {
				t.Fatalf("SignUp = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	m := testManager(time.Hour)
	ctx := context.Background()

	if _, err := m.SignUp(ctx, "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("first sign up: %v", err)
	}
	if _, err := m.SignUp(ctx, "alice@example.com", "another pass"); !errors.Is(err, storage.ErrDuplicateEmail) {
		t.Fatalf("duplicate sign up = %v, want ErrDuplicateEmail", err)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	m := testManager(time.Hour)
	ctx := context.Background()

	if _, err := m.SignUp(ctx, "alice@example.com", "correct horse"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := m.SignIn(ctx, "alice@example.com", "wrong horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password = %v, want ErrInvalidCredentials", err)
	}
	if _, err := m.SignIn(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email = %v, want ErrInvalidCredentials", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	m := testManager(-time.Minute)

	token, err := m.SignUp(context.Background(), "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyForeignSecret(t *testing.T) {
	m := testManager(time.Hour)
	other := NewManager(memory.New(), []byte("a-different-secret!!"), time.Hour,
		log.New(log.Config{Component: log.ComponentAuth}))

	token, err := other.SignUp(context.Background(), "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign token = %v, want ErrInvalidToken", err)
	}
}

func TestMiddleware(t *testing.T) {
	m := testManager(time.Hour)
	token, err := m.SignUp(context.Background(), "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	var seenUser string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UserID(r.Context())
	}))

	// No header.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no header: status %d", rec.Code)
	}

	// Garbage token.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", rec.Code)
	}

	// Valid token.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status %d", rec.Code)
	}
	if seenUser == "" {
		t.Fatal("user id not stored in context")
	}
}
