package convstore

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/haasonsaas/spider/pkg/models"
)

func newConversation(client string) *models.Conversation {
	return &models.Conversation{
		ID: uuid.NewString(),
		Messages: []models.Message{
			{Role: "user", Content: "hello", Timestamp: 1},
		},
		Metadata:    models.ConversationMetadata{Client: client},
		LLMProvider: "anthropic",
	}
}

func TestAppendAndGetFromMemory(t *testing.T) {
	store := New(t.TempDir(), nil)
	conv := newConversation("cli")

	if err := store.Append(context.Background(), conv); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := store.Get(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != conv.ID {
		t.Fatalf("expected id %q, got %q", conv.ID, got.ID)
	}
}

func TestGetFallsBackToSnapshotScan(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)
	conv := newConversation("cli")
	if err := store.Append(context.Background(), conv); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// A fresh store has no in-memory index, only the snapshot on disk.
	fresh := New(dir, nil)
	got, err := fresh.Get(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != conv.ID {
		t.Fatalf("expected id %q, got %q", conv.ID, got.ID)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := New(t.TempDir(), nil)
	if _, err := store.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFiltersByClientAndPaginates(t *testing.T) {
	store := New(t.TempDir(), nil)
	for i := 0; i < 3; i++ {
		_ = store.Append(context.Background(), newConversation("cli-a"))
	}
	_ = store.Append(context.Background(), newConversation("cli-b"))

	all := store.List(context.Background(), "", 0, 0)
	if len(all) != 4 {
		t.Fatalf("expected 4 conversations, got %d", len(all))
	}

	filtered := store.List(context.Background(), "cli-a", 0, 0)
	if len(filtered) != 3 {
		t.Fatalf("expected 3 filtered conversations, got %d", len(filtered))
	}

	page := store.List(context.Background(), "cli-a", 2, 1)
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
}
