// Package convstore holds conversation transcripts: an in-memory index for
// fast reads plus a best-effort pretty-printed JSON snapshot per
// conversation, matching the reference implementation's VFS save/load path.
package convstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/spider/pkg/models"
)

var ErrNotFound = errors.New("convstore: conversation not found")

// Store is an append-only in-memory index of conversations backed by a
// directory of per-conversation JSON snapshots. Snapshot writes are
// best-effort: a failure is logged and the conversation stays available
// from the in-memory index.
type Store struct {
	mu     sync.Mutex
	index  []*models.Conversation
	byID   map[string]*models.Conversation
	dir    string
	logger *slog.Logger
}

// New constructs a Store that snapshots conversations under dir. dir is
// created lazily on first write.
func New(dir string, logger *slog.Logger) *Store {
	return &Store{
		byID:   map[string]*models.Conversation{},
		dir:    dir,
		logger: logger,
	}
}

// Append records conv in the in-memory index and attempts to snapshot it to
// disk as "<YYYYMMDD-HHMMSS>-<uuid>.json".
func (s *Store) Append(ctx context.Context, conv *models.Conversation) error {
	if conv == nil || conv.ID == "" {
		return fmt.Errorf("convstore: conversation id is required")
	}

	s.mu.Lock()
	s.index = append(s.index, conv)
	s.byID[conv.ID] = conv
	s.mu.Unlock()

	s.snapshot(conv)
	return nil
}

func (s *Store) snapshot(conv *models.Conversation) {
	if s.dir == "" {
		return
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logFailure("create conversations directory", err)
		return
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		s.logFailure("marshal conversation", err)
		return
	}

	filename := fmt.Sprintf("%s-%s.json", time.Now().UTC().Format("20060102-150405"), conv.ID)
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logFailure("write conversation snapshot", err)
		return
	}
}

func (s *Store) logFailure(action string, err error) {
	if s.logger != nil {
		s.logger.Warn("conversation snapshot failed", "action", action, "error", err)
	}
}

// List returns conversations in insertion order, optionally filtered by
// metadata.client, paginated by limit/offset.
func (s *Store) List(ctx context.Context, client string, limit, offset int) []*models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]*models.Conversation, 0, len(s.index))
	for _, c := range s.index {
		if client != "" && c.Metadata.Client != client {
			continue
		}
		filtered = append(filtered, c)
	}
	if offset < 0 {
		offset = 0
	}
	if offset > len(filtered) {
		offset = len(filtered)
	}
	end := len(filtered)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return filtered[offset:end]
}

// Get returns the conversation with the given id, checking the in-memory
// index first and falling back to a best-effort scan of the snapshot
// directory for a filename containing id. The fallback intentionally does
// not guarantee a hit: a snapshot write that failed or hasn't landed yet
// will not be found this way.
func (s *Store) Get(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	conv, ok := s.byID[id]
	s.mu.Unlock()
	if ok {
		return conv, nil
	}

	if s.dir == "" {
		return nil, ErrNotFound
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, ErrNotFound
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), id) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var loaded models.Conversation
		if err := json.Unmarshal(data, &loaded); err != nil {
			continue
		}
		return &loaded, nil
	}
	return nil, ErrNotFound
}

// NewConversationID mints a fresh conversation id.
func NewConversationID() string {
	return uuid.NewString()
}
