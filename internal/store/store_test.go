package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_AppendAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	in := Transcript{ConversationID: "c1", Question: "What is the refund window?", Answer: "30 days.", Contexts: 2}
	if err := s.Append(ctx, in); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 transcript, got %d", len(got))
	}
	g := got[0]
	if g.ConversationID != "c1" || g.Question != in.Question || g.Answer != in.Answer || g.Contexts != 2 {
		t.Errorf("unexpected transcript: %+v", g)
	}
	if g.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func Test_Store_RecentNewestFirstAndLimited(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		if err := s.Append(ctx, Transcript{ConversationID: fmt.Sprintf("c%d", i), Question: "q", Answer: "a"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3, got %d", len(got))
	}
	// Same-second inserts fall back to id ordering.
	if got[0].ConversationID != "c4" || got[2].ConversationID != "c2" {
		t.Errorf("want c4..c2, got %s..%s", got[0].ConversationID, got[2].ConversationID)
	}
}

func Test_Store_EmptyRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	got, err := s.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want empty, got %d", len(got))
	}
}

func Test_Store_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s1.Append(ctx, Transcript{ConversationID: "persist", Question: "q", Answer: "a"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s2.Close() })
	got, err := s2.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 || got[0].ConversationID != "persist" {
		t.Errorf("want persisted transcript, got %+v", got)
	}
}
