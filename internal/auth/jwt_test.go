package auth

import (
	"testing"
	"time"
)

func TestJWTServiceGenerateValidate(t *testing.T) {
	service := NewJWTService("secret", time.Hour)
	token, err := service.Generate("sp_abc123", []string{"read", "write"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	key, perms, err := service.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if key != "sp_abc123" {
		t.Fatalf("expected key, got %q", key)
	}
	if len(perms) != 2 || perms[0] != "read" || perms[1] != "write" {
		t.Fatalf("expected permissions preserved, got %v", perms)
	}
}

func TestJWTServiceRejectsBadSecret(t *testing.T) {
	a := NewJWTService("secret-a", time.Hour)
	b := NewJWTService("secret-b", time.Hour)
	token, err := a.Generate("sp_abc123", nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, _, err := b.Validate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
