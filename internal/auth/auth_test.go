package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/utilipay/internal/models"
	"github.com/mmynk/utilipay/internal/storage/sqlite"
)

func newTestAuthenticator(t *testing.T) *PasswordAuthenticator {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
}

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t)

	user, err := a.Register(ctx, "  Jane@Example.com ", "Jane Doe", "correct-horse")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "jane@example.com" {
		t.Errorf("Expected normalized email, got %q", user.Email)
	}
	if user.PasswordHash == "correct-horse" {
		t.Error("Password stored in plain text")
	}

	t.Run("authenticate", func(t *testing.T) {
		got, err := a.Authenticate(ctx, "JANE@example.com", "correct-horse")
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("Expected user %s, got %s", user.ID, got.ID)
		}
	})

	t.Run("rejections", func(t *testing.T) {
		tests := []struct {
			name string
			run  func() error
			want error
		}{
			{"wrong password", func() error { _, err := a.Authenticate(ctx, "jane@example.com", "wrong-horse"); return err }, ErrInvalidCredentials},
			{"unknown email", func() error { _, err := a.Authenticate(ctx, "nobody@example.com", "correct-horse"); return err }, ErrInvalidCredentials},
			{"duplicate email", func() error { _, err := a.Register(ctx, "jane@example.com", "Jane", "another-pass"); return err }, ErrEmailExists},
			{"weak password", func() error { _, err := a.Register(ctx, "bob@example.com", "Bob", "short"); return err }, ErrWeakPassword},
			{"bad email", func() error { _, err := a.Register(ctx, "not-an-email", "Bob", "long-enough"); return err }, ErrInvalidEmail},
			{"missing name", func() error { _, err := a.Register(ctx, "bob@example.com", " ", "long-enough"); return err }, ErrNameRequired},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.run(); !errors.Is(err, tt.want) {
					t.Errorf("Expected %v, got %v", tt.want, err)
				}
			})
		}
	})
}

func TestJWTManager(t *testing.T) {
	user := &models.User{ID: "user-1", Email: "jane@example.com"}

	t.Run("round trip", func(t *testing.T) {
		m := NewJWTManager("test-secret-0123456789", time.Hour)
		token, err := m.Issue(user)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		claims, err := m.Validate(token)
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if claims.UserID() != user.ID || claims.Email != user.Email {
			t.Errorf("Unexpected claims: %+v", claims)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _ := NewJWTManager("secret-a-0123456789", time.Hour).Issue(user)
		if _, err := NewJWTManager("secret-b-0123456789", time.Hour).Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		m := NewJWTManager("test-secret-0123456789", -time.Minute)
		token, _ := m.Issue(user)
		if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}
