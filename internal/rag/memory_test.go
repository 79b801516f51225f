package rag

import (
	"context"
	"testing"

	"github.com/54b3r/docchat-go/internal/chunker"
)

func chunkOf(text string) chunker.Chunk {
	return chunker.Chunk{Source: "t.md", Text: text}
}

func Test_MemoryIndex_SearchOrdersByScore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := NewMemoryIndex()

	_ = idx.Add(ctx, []float32{1, 0}, chunkOf("exact"))
	_ = idx.Add(ctx, []float32{0, 1}, chunkOf("orthogonal"))
	_ = idx.Add(ctx, []float32{1, 1}, chunkOf("diagonal"))

	got, err := idx.Search(ctx, []float32{1, 0}, 3, -1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"exact", "diagonal", "orthogonal"}
	if len(got) != len(want) {
		t.Fatalf("want %d matches, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Chunk.Text != w {
			t.Errorf("match %d = %q, want %q", i, got[i].Chunk.Text, w)
		}
	}
}

func Test_MemoryIndex_MinScoreAndLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := NewMemoryIndex()

	_ = idx.Add(ctx, []float32{1, 0}, chunkOf("a"))
	_ = idx.Add(ctx, []float32{1, 0.1}, chunkOf("b"))
	_ = idx.Add(ctx, []float32{0, 1}, chunkOf("c"))

	got, _ := idx.Search(ctx, []float32{1, 0}, 10, 0.9)
	if len(got) != 2 {
		t.Fatalf("want 2 matches above 0.9, got %d", len(got))
	}
	for _, m := range got {
		if m.Score < 0.9 {
			t.Errorf("match %q score %f below threshold", m.Chunk.Text, m.Score)
		}
	}

	got, _ = idx.Search(ctx, []float32{1, 0}, 1, 0)
	if len(got) != 1 || got[0].Chunk.Text != "a" {
		t.Errorf("want only best match, got %+v", got)
	}
}

func Test_MemoryIndex_ClearThenSearch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := NewMemoryIndex()
	_ = idx.Add(ctx, []float32{1, 0}, chunkOf("a"))

	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("second Clear: %v", err)
	}

	got, _ := idx.Search(ctx, []float32{1, 0}, 5, -1)
	if len(got) != 0 {
		t.Errorf("want empty after clear, got %d", len(got))
	}
}

func Test_MemoryIndex_DuplicatesAreKept(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := NewMemoryIndex()
	for range 2 {
		_ = idx.Add(ctx, []float32{1, 0}, chunkOf("same"))
	}
	got, _ := idx.Search(ctx, []float32{1, 0}, 5, 0)
	if len(got) != 2 {
		t.Errorf("want 2 duplicate matches, got %d", len(got))
	}
}

func Test_MemoryIndex_RejectsEmptyEmbedding(t *testing.T) {
	t.Parallel()
	if err := NewMemoryIndex().Add(context.Background(), nil, chunkOf("x")); err == nil {
		t.Error("want error for empty embedding")
	}
}

func Test_CosineSimilarity(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"dimension mismatch", []float32{1}, []float32{1, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tc := range cases {
		got := cosineSimilarity(tc.a, tc.b)
		if diff := got - tc.want; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("%s: got %f, want %f", tc.name, got, tc.want)
		}
	}
}
