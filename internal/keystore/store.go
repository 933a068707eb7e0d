// Package keystore holds Spider's provider API keys and Spider-issued
// bearer keys: creation, lookup, permission checks, and the one-shot admin
// GUI key and trial key invariants.
package keystore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/spider/pkg/models"
)

var (
	ErrNotFound          = errors.New("keystore: not found")
	ErrPermissionDenied  = errors.New("keystore: permission denied")
	ErrProviderKeyExists = errors.New("keystore: provider key already set")
)

const adminGUIKeyName = "Admin GUI Key"

// TrialKeyDispenser issues a single free-trial provider key. Implementations
// call out to an external dispensing service; EnsureTrialKey treats it as an
// idempotent RPC invoked at most once per process lifetime.
type TrialKeyDispenser interface {
	Dispense(ctx context.Context) (rawKey string, err error)
}

// Persister is called after every mutation so the caller can snapshot the
// store. Store does not own durability itself.
type Persister func(Snapshot) error

// Snapshot is the persistable view of the store's state.
type Snapshot struct {
	ProviderKeys []models.ApiKey      `json:"providerKeys"`
	SpiderKeys   []models.SpiderApiKey `json:"spiderKeys"`
}

// Store holds provider credentials and Spider-issued bearer keys behind a
// single lock, matching the single-writer semantics the reference
// implementation relies on.
type Store struct {
	mu              sync.RWMutex
	providerKeys    map[string]models.ApiKey // keyed by provider
	spiderKeys      []models.SpiderApiKey
	trialDispensed  bool
	trialKeyNotice  bool
	persist         Persister
	now             func() time.Time
}

// New constructs an empty Store. persist may be nil, in which case
// mutations are held only in memory.
func New(persist Persister) *Store {
	return &Store{
		providerKeys: map[string]models.ApiKey{},
		persist:      persist,
		now:          time.Now,
	}
}

// Restore seeds the store from a previously persisted snapshot.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providerKeys = map[string]models.ApiKey{}
	for _, k := range snap.ProviderKeys {
		s.providerKeys[k.Provider] = k
	}
	s.spiderKeys = append([]models.SpiderApiKey(nil), snap.SpiderKeys...)
}

func (s *Store) snapshotLocked() Snapshot {
	providerKeys := make([]models.ApiKey, 0, len(s.providerKeys))
	for _, k := range s.providerKeys {
		providerKeys = append(providerKeys, k)
	}
	return Snapshot{
		ProviderKeys: providerKeys,
		SpiderKeys:   append([]models.SpiderApiKey(nil), s.spiderKeys...),
	}
}

func (s *Store) persistLocked() {
	if s.persist == nil {
		return
	}
	_ = s.persist(s.snapshotLocked())
}

// SetProviderKey stores (or replaces) the credential for provider.
func (s *Store) SetProviderKey(provider, rawKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.providerKeys[provider]
	createdAt := s.now().UnixMilli()
	if ok {
		createdAt = existing.CreatedAt
	}
	s.providerKeys[provider] = models.ApiKey{
		Provider:  provider,
		Key:       encryptKey(rawKey),
		CreatedAt: createdAt,
	}
	s.persistLocked()
}

// ListProviderKeys returns redacted views of every stored provider key.
func (s *Store) ListProviderKeys() []models.ApiKeyInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ApiKeyInfo, 0, len(s.providerKeys))
	for _, k := range s.providerKeys {
		out = append(out, models.ApiKeyInfo{
			Provider:   k.Provider,
			CreatedAt:  k.CreatedAt,
			LastUsed:   k.LastUsed,
			KeyPreview: previewKey(k.Key),
		})
	}
	return out
}

// RemoveProviderKey deletes the stored credential for provider, if any.
func (s *Store) RemoveProviderKey(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.providerKeys, provider)
	s.persistLocked()
}

// ResolveProviderKey returns the decrypted raw key for provider and marks it
// used. Prefers an "-oauth" suffixed variant when present, matching the
// reference implementation's OAuth-preferred credential resolution.
func (s *Store) ResolveProviderKey(provider string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if oauthKey, ok := s.providerKeys[provider+"-oauth"]; ok {
		return s.touchLocked(provider+"-oauth", oauthKey)
	}
	key, ok := s.providerKeys[provider]
	if !ok {
		return "", false
	}
	return s.touchLocked(provider, key)
}

func (s *Store) touchLocked(provider string, key models.ApiKey) (string, bool) {
	now := s.now().UnixMilli()
	key.LastUsed = &now
	s.providerKeys[provider] = key
	s.persistLocked()
	return decryptKey(key.Key), true
}

// CreateSpiderKey mints a new Spider bearer key with the given permissions.
func (s *Store) CreateSpiderKey(name string, permissions []string) models.SpiderApiKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.SpiderApiKey{
		Key:         "sp_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Name:        name,
		Permissions: permissions,
		CreatedAt:   s.now().UnixMilli(),
	}
	s.spiderKeys = append(s.spiderKeys, key)
	s.persistLocked()
	return key
}

// ListSpiderKeys returns every Spider key, including the admin GUI key.
func (s *Store) ListSpiderKeys() []models.SpiderApiKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.SpiderApiKey(nil), s.spiderKeys...)
}

// RevokeSpiderKey removes the Spider key with the given key string.
func (s *Store) RevokeSpiderKey(keyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, k := range s.spiderKeys {
		if k.Key == keyID {
			s.spiderKeys = append(s.spiderKeys[:i], s.spiderKeys[i+1:]...)
			s.persistLocked()
			return true
		}
	}
	return false
}

// EnsureAdminGUIKey guarantees exactly one Spider key named "Admin GUI Key"
// with admin permission exists. The key's random suffix is minted once on
// first call and never regenerated on subsequent calls (e.g. after a
// restore from snapshot, where the key already exists).
func (s *Store) EnsureAdminGUIKey() models.SpiderApiKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.spiderKeys {
		if k.Name == adminGUIKeyName && k.HasPermission(models.PermissionAdmin) {
			return k
		}
	}
	key := models.SpiderApiKey{
		Key:  fmt.Sprintf("sp_admin_gui_key_%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:24]),
		Name: adminGUIKeyName,
		Permissions: []string{
			models.PermissionRead,
			models.PermissionWrite,
			models.PermissionAdmin,
		},
		CreatedAt: s.now().UnixMilli(),
	}
	s.spiderKeys = append(s.spiderKeys, key)
	s.persistLocked()
	return key
}

// AdminGUIKey returns the admin GUI key if it has been created.
func (s *Store) AdminGUIKey() (models.SpiderApiKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.spiderKeys {
		if k.Name == adminGUIKeyName && k.HasPermission(models.PermissionAdmin) {
			return k, true
		}
	}
	return models.SpiderApiKey{}, false
}

// EnsureTrialKey dispenses a free-trial provider key exactly once, only
// when no provider keys are present yet. Safe to call on every startup.
func (s *Store) EnsureTrialKey(ctx context.Context, dispenser TrialKeyDispenser) error {
	s.mu.Lock()
	if s.trialDispensed || len(s.providerKeys) > 0 || dispenser == nil {
		s.mu.Unlock()
		return nil
	}
	s.trialDispensed = true
	s.mu.Unlock()

	rawKey, err := dispenser.Dispense(ctx)
	if err != nil {
		return fmt.Errorf("dispense trial key: %w", err)
	}

	s.mu.Lock()
	s.providerKeys["anthropic"] = models.ApiKey{
		Provider:  "anthropic",
		Key:       encryptKey(rawKey),
		CreatedAt: s.now().UnixMilli(),
	}
	s.trialKeyNotice = true
	s.persistLocked()
	s.mu.Unlock()
	return nil
}

// TrialKeyNotice reports and clears the one-shot flag surfaced to callers
// after a trial key is successfully installed.
func (s *Store) TrialKeyNotice() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	notice := s.trialKeyNotice
	s.trialKeyNotice = false
	return notice
}

// ValidateAdminKey reports whether key is a Spider key with admin
// permission.
func (s *Store) ValidateAdminKey(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.spiderKeys {
		if k.Key == key && k.HasPermission(models.PermissionAdmin) {
			return true
		}
	}
	return false
}

// ValidatePermission reports whether key grants permission. OAuth session
// tokens (recognized by shape, never stored as Spider keys) grant every
// permission except admin.
func (s *Store) ValidatePermission(key, permission string) bool {
	if isOAuthToken(key) {
		return permission != models.PermissionAdmin
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.spiderKeys {
		if k.Key == key && k.HasPermission(permission) {
			return true
		}
	}
	return false
}

// IsOAuthToken exposes the session-token shape recognizer for callers that
// need to branch on it directly (e.g. the LLM provider credential resolver).
func IsOAuthToken(key string) bool { return isOAuthToken(key) }

// ValidateKeyPresence reports whether key is recognized at all, either as a
// Spider key or as an OAuth-shaped session token.
func (s *Store) ValidateKeyPresence(key string) bool {
	if isOAuthToken(key) {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.spiderKeys {
		if k.Key == key {
			return true
		}
	}
	return false
}
