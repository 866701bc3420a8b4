package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewJWTManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTManager("short", "", time.Hour); !errors.Is(err, ErrShortSecret) {
		t.Errorf("expected ErrShortSecret, got %v", err)
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	m, err := NewJWTManager(testSecret, "pidrelations", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager failed: %v", err)
	}

	token, err := m.GenerateToken("alice", RoleCurator)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := m.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("expected subject alice, got %s", claims.Subject)
	}
	if claims.Role != RoleCurator {
		t.Errorf("expected role curator, got %s", claims.Role)
	}
	if !claims.ExpiresAt.After(time.Now()) {
		t.Error("expected future expiration")
	}
}

func TestGenerateTokenValidation(t *testing.T) {
	m, _ := NewJWTManager(testSecret, "", time.Hour)

	tests := []struct {
		name     string
		subject  string
		role     string
		expected error
	}{
		{"empty subject", "", RoleReader, ErrEmptySubject},
		{"empty role", "alice", "", ErrEmptyRole},
		{"unknown role", "alice", "superuser", ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.GenerateToken(tt.subject, tt.role); !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	ctx := context.Background()
	m, _ := NewJWTManager(testSecret, "", time.Hour)

	token, _ := m.GenerateToken("alice", RoleReader)

	if _, err := m.ValidateToken(ctx, token+"x"); err == nil {
		t.Error("expected tampered token rejection")
	}
	if _, err := m.ValidateToken(ctx, ""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}

	// Token signed with a different key
	other, _ := NewJWTManager(strings.Repeat("y", 32), "", time.Hour)
	foreign, _ := other.GenerateToken("mallory", RoleAdmin)
	if _, err := m.ValidateToken(ctx, foreign); err == nil {
		t.Error("expected foreign-key token rejection")
	}
}

func TestValidateTokenExpiry(t *testing.T) {
	m, _ := NewJWTManager(testSecret, "", -time.Minute)
	token, err := m.GenerateToken("alice", RoleReader)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := m.ValidateToken(context.Background(), token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateTokenIssuer(t *testing.T) {
	issuing, _ := NewJWTManager(testSecret, "other-service", time.Hour)
	verifying, _ := NewJWTManager(testSecret, "pidrelations", time.Hour)

	token, _ := issuing.GenerateToken("alice", RoleReader)
	if _, err := verifying.ValidateToken(context.Background(), token); !errors.Is(err, ErrInvalidClaims) {
		t.Errorf("expected issuer mismatch rejection, got %v", err)
	}
}

func TestCanMutate(t *testing.T) {
	if !CanMutate(RoleAdmin) || !CanMutate(RoleCurator) {
		t.Error("expected admin and curator to mutate")
	}
	if CanMutate(RoleReader) {
		t.Error("expected reader to be read-only")
	}
}
