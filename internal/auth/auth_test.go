package auth

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T, password string) *Service {
	t.Helper()
	hasher := NewService(Config{BCryptCost: bcrypt.MinCost})
	hash, err := hasher.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	return NewService(Config{
		JWTSecret:    "test-secret",
		PasswordHash: hash,
		BCryptCost:   bcrypt.MinCost,
	})
}

func TestLogin(t *testing.T) {
	svc := newTestService(t, "rudolph")

	if _, err := svc.Login("blitzen"); err != ErrInvalidCredentials {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}

	token, err := svc.Login("rudolph")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Role != RoleOperator {
		t.Errorf("Expected operator role, got %s", claims.Role)
	}
	if claims.Issuer != "santa-scope" {
		t.Errorf("Expected default issuer, got %s", claims.Issuer)
	}
}

func TestLoginDisabled(t *testing.T) {
	svc := NewService(Config{JWTSecret: "secret"})
	if svc.Enabled() {
		t.Error("Expected login to be disabled without a password hash")
	}
	if _, err := svc.Login("anything"); err != ErrDisabled {
		t.Errorf("Expected ErrDisabled, got %v", err)
	}
}

func TestValidateToken(t *testing.T) {
	svc := newTestService(t, "rudolph")

	t.Run("wrong secret", func(t *testing.T) {
		other := NewService(Config{JWTSecret: "other-secret"})
		token, err := other.GenerateToken(RoleOperator)
		if err != nil {
			t.Fatalf("GenerateToken failed: %v", err)
		}
		if _, err := svc.ValidateToken(token); err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		expired := newTestService(t, "rudolph")
		expired.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
		token, err := expired.GenerateToken(RoleOperator)
		if err != nil {
			t.Fatalf("GenerateToken failed: %v", err)
		}
		if _, err := svc.ValidateToken(token); err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := svc.ValidateToken("not.a.token"); err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		user, required string
		want           bool
	}{
		{RoleOperator, RoleOperator, true},
		{"viewer", RoleOperator, false},
		{"admin", RoleOperator, false},
		{"", RoleOperator, false},
		{RoleOperator, "admin", false},
	}
	for _, tt := range tests {
		if got := HasRole(tt.user, tt.required); got != tt.want {
			t.Errorf("HasRole(%q, %q) = %v, want %v", tt.user, tt.required, got, tt.want)
		}
	}
}
