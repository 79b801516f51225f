// Package ingestion populates the vector index: it enumerates documents from
// a Source, splits each into overlapping chunks, embeds the chunks, and adds
// them to the index. A run aborts on the first failure; chunks added before
// the failure stay in the index.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/54b3r/docchat-go/internal/chunker"
	"github.com/54b3r/docchat-go/internal/logging"
	"github.com/54b3r/docchat-go/internal/rag"
)

// ErrIngestion wraps every failure of an ingestion run.
var ErrIngestion = errors.New("ingestion failed")

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the window length in runes. Defaults to chunker.DefaultSize.
	ChunkSize int

	// ChunkOverlap is the overlap between windows in runes. Defaults to
	// chunker.DefaultOverlap.
	ChunkOverlap int
}

// Result summarises a successful run.
type Result struct {
	// Documents is the number of documents processed.
	Documents int
	// Chunks is the number of index entries added.
	Chunks int
}

// Pipeline orchestrates the read → chunk → embed → add flow.
type Pipeline struct {
	// embedder converts chunk text into vectors.
	embedder rag.Embedder

	// index stores the embedded chunks.
	index rag.VectorIndex

	// cfg holds the resolved pipeline configuration.
	cfg Config

	// onChunks is called after each document with the number of chunks added.
	onChunks func(n int)
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, index rag.VectorIndex, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = chunker.DefaultSize
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = chunker.DefaultOverlap
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return nil, fmt.Errorf("ingestion: chunk overlap %d must be smaller than chunk size %d", c.ChunkOverlap, c.ChunkSize)
	}
	return &Pipeline{embedder: embedder, index: index, cfg: c}, nil
}

// OnChunks registers a callback invoked with the chunk count of every
// ingested document. Used for metrics.
func (p *Pipeline) OnChunks(fn func(n int)) {
	p.onChunks = fn
}

// Ingest processes every document of src. A source with no eligible
// documents is a success with zero chunks. Any failure returns an error
// wrapping ErrIngestion. Progress is reported via the optional callback.
func (p *Pipeline) Ingest(ctx context.Context, src Source, progress func(msg string)) (Result, error) {
	if progress == nil {
		progress = func(string) {}
	}
	log := logging.FromContext(ctx)

	ids, err := src.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrIngestion, err)
	}
	if len(ids) == 0 {
		log.Info("ingestion: no documents found")
		progress("no documents found")
		return Result{}, nil
	}

	progress(fmt.Sprintf("processing %d documents", len(ids)))

	var res Result
	for _, id := range ids {
		n, err := p.ingestOne(ctx, src, id)
		if err != nil {
			// Entries already written stay in the index.
			res.Chunks += n
			return res, err
		}
		res.Documents++
		res.Chunks += n
		log.Info("ingestion: processed document",
			slog.String("source", id),
			slog.Int("chunks", n),
		)
		progress(fmt.Sprintf("processed %s (%d chunks)", id, n))
	}

	return res, nil
}

// IngestFile ingests a single file from disk and returns the number of
// chunks added.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	n, err := p.ingestOne(ctx, &DirSource{}, path)
	if err != nil {
		return n, err
	}
	logging.FromContext(ctx).Info("ingestion: processed document",
		slog.String("source", path),
		slog.Int("chunks", n),
	)
	return n, nil
}

// Reset removes every entry from the index.
func (p *Pipeline) Reset(ctx context.Context) error {
	if err := p.index.Clear(ctx); err != nil {
		return fmt.Errorf("ingestion: reset index: %w", err)
	}
	logging.FromContext(ctx).Info("ingestion: index reset")
	return nil
}

// ingestOne reads, splits, embeds and stores one document.
func (p *Pipeline) ingestOne(ctx context.Context, src Source, id string) (int, error) {
	text, err := src.Read(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIngestion, err)
	}

	chunks, err := chunker.Split(text, id, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if err != nil {
		return 0, fmt.Errorf("%w: split %s: %w", ErrIngestion, id, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("%w: embedding %s: %w", ErrIngestion, id, err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("%w: embedding %s: got %d vectors for %d chunks", ErrIngestion, id, len(embeddings), len(chunks))
	}

	for i, c := range chunks {
		if err := p.index.Add(ctx, embeddings[i], c); err != nil {
			return i, fmt.Errorf("%w: index %s#%d: %w", ErrIngestion, id, c.Index, err)
		}
	}

	if p.onChunks != nil {
		p.onChunks(len(chunks))
	}
	return len(chunks), nil
}
