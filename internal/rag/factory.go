package rag

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Supported INDEX_BACKEND values.
const (
	BackendMemory   = "memory"
	BackendQdrant   = "qdrant"
	BackendPgVector = "pgvector"
	BackendMilvus   = "milvus"
)

// ThresholdsFromEnv reads RETRIEVAL_MIN_SCORE and RETRIEVAL_FLOOR_SCORE.
func ThresholdsFromEnv() Thresholds {
	return Thresholds{
		MinScore:   getEnvFloat32("RETRIEVAL_MIN_SCORE", 0),
		FloorScore: getEnvFloat32("RETRIEVAL_FLOOR_SCORE", DefaultFloorScore),
	}
}

// TopKFromEnv reads RETRIEVAL_TOP_K, defaulting to DefaultTopK.
func TopKFromEnv() int {
	if k := getEnvInt("RETRIEVAL_TOP_K", DefaultTopK); k > 0 {
		return k
	}
	return DefaultTopK
}

// BackendFromEnv resolves INDEX_BACKEND. When unset, qdrant is selected if
// QDRANT_HOST is set, pgvector if PGVECTOR_DSN is set, otherwise memory.
func BackendFromEnv() string {
	if b := os.Getenv("INDEX_BACKEND"); b != "" {
		return b
	}
	switch {
	case os.Getenv("QDRANT_HOST") != "":
		return BackendQdrant
	case os.Getenv("PGVECTOR_DSN") != "":
		return BackendPgVector
	case os.Getenv("MILVUS_ADDRESS") != "":
		return BackendMilvus
	default:
		return BackendMemory
	}
}

// NewIndexFromEnv constructs the VectorIndex selected by BackendFromEnv.
// dims is the embedding size reported by the embedder configuration.
func NewIndexFromEnv(ctx context.Context, dims int) (VectorIndex, error) {
	switch backend := BackendFromEnv(); backend {
	case BackendMemory:
		return NewMemoryIndex(), nil

	case BackendQdrant:
		idx, err := NewQdrantIndex(ctx, &QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "docchat"),
			VectorSize: uint64(dims),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, err
		}
		return idx, nil

	case BackendPgVector:
		idx, err := NewPgVectorIndex(ctx, &PgVectorConfig{
			DSN:         os.Getenv("PGVECTOR_DSN"),
			Table:       getEnvOrDefault("PGVECTOR_TABLE", "embeddings"),
			Dimensions:  dims,
			CreateTable: os.Getenv("PGVECTOR_CREATE_TABLE") == "true",
		})
		if err != nil {
			return nil, err
		}
		return idx, nil

	case BackendMilvus:
		idx, err := NewMilvusIndex(ctx, &MilvusConfig{
			Address:    getEnvOrDefault("MILVUS_ADDRESS", "localhost:19530"),
			Collection: getEnvOrDefault("MILVUS_COLLECTION", "docchat"),
			Dimension:  dims,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil

	default:
		return nil, fmt.Errorf("rag: unknown index backend %q, valid values: memory, qdrant, pgvector, milvus", backend)
	}
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 is the float32 counterpart of getEnvInt.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
