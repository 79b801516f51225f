package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/54b3r/docchat-go/internal/chunker"
)

// memoryEntry is one stored embedding with its chunk.
type memoryEntry struct {
	embedding []float32
	chunk     chunker.Chunk
}

// MemoryIndex is an in-process VectorIndex. Entries are lost when the
// process exits. It is the default backend for local runs and tests.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries []memoryEntry
}

// NewMemoryIndex returns an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Add appends an entry. The embedding slice is copied.
func (m *MemoryIndex) Add(_ context.Context, embedding []float32, chunk chunker.Chunk) error {
	if len(embedding) == 0 {
		return fmt.Errorf("rag: memory: empty embedding for %s#%d", chunk.Source, chunk.Index)
	}
	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, memoryEntry{embedding: vec, chunk: chunk})
	return nil
}

// Search scores every entry by cosine similarity and returns the best k
// with score >= minScore.
func (m *MemoryIndex) Search(_ context.Context, query []float32, k int, minScore float32) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	matches := make([]Match, 0, len(m.entries))
	for _, e := range m.entries {
		score := cosineSimilarity(query, e.embedding)
		if score < minScore {
			continue
		}
		matches = append(matches, Match{Chunk: e.chunk, Score: score})
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Clear drops every entry.
func (m *MemoryIndex) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return nil
}

// Len reports the number of stored entries.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op.
func (m *MemoryIndex) Close() error { return nil }

// cosineSimilarity returns 0 for mismatched dimensions or zero vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
