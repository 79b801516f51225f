package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/docchat-go/internal/logging"
)

const (
	// DefaultTopK is the number of contexts retrieved per question.
	DefaultTopK = 3

	// DefaultFloorScore is the built-in relevance floor applied to every search.
	DefaultFloorScore float32 = 0.7
)

// Thresholds holds the two relevance cut-offs applied to a search.
type Thresholds struct {
	// MinScore is the operator-configured minimum (RETRIEVAL_MIN_SCORE).
	MinScore float32

	// FloorScore is the built-in floor (RETRIEVAL_FLOOR_SCORE, default 0.7).
	FloorScore float32
}

// Effective returns the cut-off passed to the index: the stricter of the two
// thresholds. Lowering one threshold never admits a match the other rejects.
func (t Thresholds) Effective() float32 {
	return max(t.MinScore, t.FloorScore)
}

// FailureHook is invoked whenever a search degrades to an empty result.
// stage is "embed" or "search".
type FailureHook func(stage string, err error)

// Retriever turns a question into ranked context strings. It embeds the query,
// searches the index, and maps matches to their chunk text. Failures are
// logged and yield an empty result; Search never returns an error.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// index performs the vector similarity search.
	index VectorIndex

	// thresholds are the relevance cut-offs.
	thresholds Thresholds

	// onFailure is called for each degraded search. May be nil.
	onFailure FailureHook
}

// NewRetriever constructs a Retriever from the given Embedder and VectorIndex.
func NewRetriever(embedder Embedder, index VectorIndex, thresholds Thresholds, onFailure FailureHook) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}
	return &Retriever{
		embedder:   embedder,
		index:      index,
		thresholds: thresholds,
		onFailure:  onFailure,
	}, nil
}

// Thresholds returns the configured cut-offs.
func (r *Retriever) Thresholds() Thresholds {
	return r.thresholds
}

// Search returns at most k chunk texts, most relevant first. k <= 0 uses
// DefaultTopK.
func (r *Retriever) Search(ctx context.Context, query string, k int) []string {
	if k <= 0 {
		k = DefaultTopK
	}
	log := logging.FromContext(ctx)

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err == nil && len(embeddings) == 0 {
		err = fmt.Errorf("embedder returned no vectors")
	}
	if err != nil {
		r.degrade(log, "embed", err)
		return []string{}
	}

	matches, err := r.index.Search(ctx, embeddings[0], k, r.thresholds.Effective())
	if err != nil {
		r.degrade(log, "search", err)
		return []string{}
	}

	contexts := make([]string, 0, len(matches))
	for _, m := range matches {
		contexts = append(contexts, m.Chunk.Text)
	}

	log.Debug("rag: retrieved contexts",
		slog.Int("requested", k),
		slog.Int("returned", len(contexts)),
		slog.Float64("min_score", float64(r.thresholds.Effective())),
	)
	return contexts
}

// degrade logs a retrieval failure and notifies the hook.
func (r *Retriever) degrade(log *slog.Logger, stage string, err error) {
	log.Warn("rag: retrieval failed, continuing without context",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
	if r.onFailure != nil {
		r.onFailure(stage, err)
	}
}
