package keystore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/haasonsaas/spider/pkg/models"
)

func TestSetAndResolveProviderKey(t *testing.T) {
	s := New(nil)
	s.SetProviderKey("anthropic", "sk-ant-abcdef")

	raw, ok := s.ResolveProviderKey("anthropic")
	if !ok {
		t.Fatal("expected provider key to resolve")
	}
	if raw != "sk-ant-abcdef" {
		t.Fatalf("expected round-tripped raw key, got %q", raw)
	}
}

func TestResolveProviderKeyPrefersOAuthVariant(t *testing.T) {
	s := New(nil)
	s.SetProviderKey("anthropic", "sk-ant-api-key")
	s.SetProviderKey("anthropic-oauth", "sk-ant-oat01-session")

	raw, ok := s.ResolveProviderKey("anthropic")
	if !ok || raw != "sk-ant-oat01-session" {
		t.Fatalf("expected oauth variant preferred, got %q ok=%v", raw, ok)
	}
}

func TestListProviderKeysPreviewLeaksPrefix(t *testing.T) {
	s := New(nil)
	s.SetProviderKey("anthropic", "sk-ant-REDACTED")
	infos := s.ListProviderKeys()
	if len(infos) != 1 {
		t.Fatalf("expected 1 key, got %d", len(infos))
	}
	if infos[0].KeyPreview[:len(encryptedPrefix)] != encryptedPrefix {
		t.Fatalf("expected preview to retain envelope prefix, got %q", infos[0].KeyPreview)
	}
}

func TestEnsureAdminGUIKeyIdempotent(t *testing.T) {
	s := New(nil)
	first := s.EnsureAdminGUIKey()
	second := s.EnsureAdminGUIKey()
	if first.Key != second.Key {
		t.Fatalf("expected admin GUI key suffix to be stable, got %q then %q", first.Key, second.Key)
	}
	if !first.HasPermission(models.PermissionAdmin) {
		t.Fatal("expected admin GUI key to hold admin permission")
	}
	const prefix = "sp_admin_gui_key_"
	suffix := strings.TrimPrefix(first.Key, prefix)
	if suffix == first.Key || len(suffix) != 24 {
		t.Fatalf("expected a 96-bit (24 hex char) random suffix after %q, got %q", prefix, first.Key)
	}
}

func TestValidatePermissionOAuthToken(t *testing.T) {
	s := New(nil)
	if !s.ValidatePermission("sk-ant-oat01-session", models.PermissionWrite) {
		t.Fatal("expected oauth token to have write")
	}
	if s.ValidatePermission("sk-ant-oat01-session", models.PermissionAdmin) {
		t.Fatal("expected oauth token denied admin")
	}
}

func TestValidatePermissionSpiderKey(t *testing.T) {
	s := New(nil)
	key := s.CreateSpiderKey("test", []string{models.PermissionRead})
	if !s.ValidatePermission(key.Key, models.PermissionRead) {
		t.Fatal("expected read permission granted")
	}
	if s.ValidatePermission(key.Key, models.PermissionWrite) {
		t.Fatal("expected write permission denied")
	}
}

func TestRevokeSpiderKey(t *testing.T) {
	s := New(nil)
	key := s.CreateSpiderKey("test", []string{models.PermissionRead})
	if !s.RevokeSpiderKey(key.Key) {
		t.Fatal("expected revoke to succeed")
	}
	if s.ValidateKeyPresence(key.Key) {
		t.Fatal("expected revoked key to no longer validate")
	}
}

type failingDispenser struct{}

func (failingDispenser) Dispense(ctx context.Context) (string, error) {
	return "", errors.New("dispenser unavailable")
}

func TestEnsureTrialKeyCalledOnce(t *testing.T) {
	s := New(nil)
	calls := 0
	dispenser := dispenserFunc(func(ctx context.Context) (string, error) {
		calls++
		return "sk-ant-trial", nil
	})
	if err := s.EnsureTrialKey(context.Background(), dispenser); err != nil {
		t.Fatalf("EnsureTrialKey() error = %v", err)
	}
	if err := s.EnsureTrialKey(context.Background(), dispenser); err != nil {
		t.Fatalf("EnsureTrialKey() second call error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected dispenser called exactly once, got %d", calls)
	}
	if !s.TrialKeyNotice() {
		t.Fatal("expected trial key notice set after dispense")
	}
	if s.TrialKeyNotice() {
		t.Fatal("expected trial key notice to clear after read")
	}
}

type dispenserFunc func(ctx context.Context) (string, error)

func (f dispenserFunc) Dispense(ctx context.Context) (string, error) { return f(ctx) }
