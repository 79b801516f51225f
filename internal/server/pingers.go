package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/docchat-go/internal/rag"
)

// IndexPinger probes the embedding backend and the vector index together by
// embedding a short probe string and running a top-1 search with it. It
// satisfies the Pinger interface and is used by GET /api/ready.
type IndexPinger struct {
	// embedder converts the probe string into a vector.
	embedder rag.Embedder
	// index is searched with the probe vector.
	index rag.VectorIndex
}

// NewIndexPinger constructs an IndexPinger.
func NewIndexPinger(embedder rag.Embedder, index rag.VectorIndex) *IndexPinger {
	return &IndexPinger{embedder: embedder, index: index}
}

// Name returns the dependency label used in readiness responses.
func (p *IndexPinger) Name() string { return "index" }

// Ping embeds "test" and searches for its nearest neighbour. An empty result
// is healthy; only errors fail the probe.
func (p *IndexPinger) Ping(ctx context.Context) error {
	vecs, err := p.embedder.Embed(ctx, []string{"test"})
	if err != nil {
		return fmt.Errorf("embed probe failed: %w", err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("embed probe returned %d vectors", len(vecs))
	}
	if _, err := p.index.Search(ctx, vecs[0], 1, 0); err != nil {
		return fmt.Errorf("search probe failed: %w", err)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// PostgresPinger probes the pgvector database connection.
type PostgresPinger struct {
	db *sql.DB
}

// NewPostgresPinger constructs a PostgresPinger for db.
func NewPostgresPinger(db *sql.DB) *PostgresPinger {
	return &PostgresPinger{db: db}
}

// Name returns the dependency label used in readiness responses.
func (p *PostgresPinger) Name() string { return "postgres" }

// Ping round-trips to the database.
func (p *PostgresPinger) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
