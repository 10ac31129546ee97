package history

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := newTestStore(t)

	pairs := []struct{ role, content string }{
		{"user", "hello"},
		{"assistant", "hi, how can I help?"},
		{"user", "what's the weather"},
	}
	for _, p := range pairs {
		if err := store.Append("alice", p.role, p.content); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	records, err := store.Recent("alice", 10)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	// Chronological order, oldest first.
	if records[0].Content != "hello" || records[2].Content != "what's the weather" {
		t.Errorf("records out of order: %+v", records)
	}
	if records[1].Role != "assistant" {
		t.Errorf("expected assistant role, got %q", records[1].Role)
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 10; i++ {
		if err := store.Append("alice", "user", string(rune('a'+i))); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	records, err := store.Recent("alice", 3)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	// The window keeps the newest messages.
	if records[2].Content != "j" || records[0].Content != "h" {
		t.Errorf("expected the 3 newest records oldest-first, got %+v", records)
	}
}

func TestRecentIsScopedPerUser(t *testing.T) {
	store := newTestStore(t)

	store.Append("alice", "user", "from alice")
	store.Append("bob", "user", "from bob")

	records, err := store.Recent("alice", 10)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(records) != 1 || records[0].Content != "from alice" {
		t.Errorf("expected only alice's history, got %+v", records)
	}
}

func TestClearUser(t *testing.T) {
	store := newTestStore(t)

	store.Append("alice", "user", "hello")
	if err := store.ClearUser("alice"); err != nil {
		t.Fatalf("ClearUser() error: %v", err)
	}
	records, _ := store.Recent("alice", 10)
	if len(records) != 0 {
		t.Errorf("expected empty history after clear, got %+v", records)
	}
}

func TestMarkProcessedDeduplicates(t *testing.T) {
	store := newTestStore(t)

	fresh, err := store.MarkProcessed("msg-1")
	if err != nil {
		t.Fatalf("MarkProcessed() error: %v", err)
	}
	if !fresh {
		t.Error("first delivery must be fresh")
	}

	fresh, err = store.MarkProcessed("msg-1")
	if err != nil {
		t.Fatalf("MarkProcessed() error: %v", err)
	}
	if fresh {
		t.Error("redelivery must be flagged as a duplicate")
	}

	fresh, _ = store.MarkProcessed("msg-2")
	if !fresh {
		t.Error("a different message id must be fresh")
	}
}

func TestPruneProcessed(t *testing.T) {
	store := newTestStore(t)

	store.MarkProcessed("old-msg")
	if err := store.PruneProcessed(0); err != nil {
		t.Fatalf("PruneProcessed() error: %v", err)
	}

	// Pruned ids are accepted again.
	fresh, err := store.MarkProcessed("old-msg")
	if err != nil {
		t.Fatalf("MarkProcessed() error: %v", err)
	}
	if !fresh {
		t.Error("expected pruned id to be fresh again")
	}
}
