// Package rag defines the retrieval side of docchat: the vector index
// contract, the embedding contract, and the Retriever that combines them.
// Concrete indexes (in-memory, Qdrant, pgvector, Milvus) satisfy VectorIndex
// so the chat and ingestion layers never depend on a specific backend.
package rag

import (
	"context"

	"github.com/54b3r/docchat-go/internal/chunker"
)

// Match is one search hit: the stored chunk and its cosine similarity to the
// query embedding.
type Match struct {
	// Chunk is the stored document chunk.
	Chunk chunker.Chunk

	// Score is the cosine similarity between the query and the stored
	// embedding. Higher is more similar.
	Score float32
}

// VectorIndex stores chunk embeddings and answers similarity queries.
// Implementations must be safe to call from multiple goroutines.
type VectorIndex interface {
	// Add appends one entry. Adding the same chunk twice stores two entries.
	Add(ctx context.Context, embedding []float32, chunk chunker.Chunk) error

	// Search returns at most k entries whose score is >= minScore, ordered
	// by descending score.
	Search(ctx context.Context, query []float32, k int, minScore float32) ([]Match, error)

	// Clear removes every entry. Clearing an empty index is not an error.
	Clear(ctx context.Context) error

	// Close releases any resources held by the index.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
