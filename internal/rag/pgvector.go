package rag

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pgvector/pgvector-go"

	"github.com/54b3r/docchat-go/internal/chunker"
)

// tableNamePattern restricts table names to plain SQL identifiers; the name
// is interpolated into statements because it cannot be a bind parameter.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// PgVectorConfig holds connection parameters for a PostgreSQL + pgvector index.
type PgVectorConfig struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// Table is the table holding the embeddings (default: embeddings).
	Table string

	// Dimensions is the embedding size, used only when CreateTable is set.
	Dimensions int

	// CreateTable creates the extension and table on startup. The schema is
	// normally owned by the database administrators, so this defaults to off.
	CreateTable bool
}

// PgVectorIndex implements VectorIndex on a PostgreSQL table with a pgvector
// column. Columns: id uuid, embedding vector(n), text, source, chunk_index.
type PgVectorIndex struct {
	db  *sql.DB
	cfg *PgVectorConfig
}

// NewPgVectorIndex opens the database and optionally creates the schema.
func NewPgVectorIndex(ctx context.Context, cfg *PgVectorConfig) (*PgVectorIndex, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector: DSN must be set")
	}
	if cfg.Table == "" {
		cfg.Table = "embeddings"
	}
	if !tableNamePattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("pgvector: invalid table name %q", cfg.Table)
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgvector: ping: %w", err)
	}

	idx := &PgVectorIndex{db: db, cfg: cfg}
	if cfg.CreateTable {
		if err := idx.migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return idx, nil
}

// DB exposes the connection pool for health probes.
func (p *PgVectorIndex) DB() *sql.DB {
	return p.db
}

// migrate creates the vector extension and the embeddings table.
func (p *PgVectorIndex) migrate(ctx context.Context) error {
	if p.cfg.Dimensions <= 0 {
		return fmt.Errorf("pgvector: dimensions must be set to create table %s", p.cfg.Table)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          UUID PRIMARY KEY,
			embedding   vector(%d) NOT NULL,
			text        TEXT NOT NULL,
			source      TEXT NOT NULL,
			chunk_index INTEGER NOT NULL
		)`, p.cfg.Table, p.cfg.Dimensions),
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("pgvector: migrate: %w", err)
		}
	}
	return nil
}

// Add inserts one row under a fresh UUID.
func (p *PgVectorIndex) Add(ctx context.Context, embedding []float32, chunk chunker.Chunk) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, embedding, text, source, chunk_index) VALUES ($1, $2, $3, $4, $5)`, p.cfg.Table)
	_, err := p.db.ExecContext(ctx, q,
		uuid.NewString(), pgvector.NewVector(embedding), chunk.Text, chunk.Source, chunk.Index)
	if err != nil {
		return fmt.Errorf("pgvector: insert: %w", err)
	}
	return nil
}

// Search orders rows by cosine distance and reports 1 - distance as the score.
func (p *PgVectorIndex) Search(ctx context.Context, query []float32, k int, minScore float32) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	q := fmt.Sprintf(`SELECT text, source, chunk_index, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`, p.cfg.Table)

	rows, err := p.db.QueryContext(ctx, q, pgvector.NewVector(query), minScore, k)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var score float64
		if err := rows.Scan(&m.Chunk.Text, &m.Chunk.Source, &m.Chunk.Index, &score); err != nil {
			return nil, fmt.Errorf("pgvector: scan: %w", err)
		}
		m.Score = float32(score)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: rows: %w", err)
	}
	return matches, nil
}

// Clear deletes every row.
func (p *PgVectorIndex) Clear(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, p.cfg.Table)); err != nil {
		return fmt.Errorf("pgvector: clear: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (p *PgVectorIndex) Close() error {
	return p.db.Close()
}
