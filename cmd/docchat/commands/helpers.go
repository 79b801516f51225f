package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/docchat-go/internal/chat"
	"github.com/54b3r/docchat-go/internal/conversation"
	"github.com/54b3r/docchat-go/internal/docstore"
	"github.com/54b3r/docchat-go/internal/embedder"
	"github.com/54b3r/docchat-go/internal/generation"
	"github.com/54b3r/docchat-go/internal/ingestion"
	"github.com/54b3r/docchat-go/internal/provider"
	"github.com/54b3r/docchat-go/internal/rag"
	"github.com/54b3r/docchat-go/internal/store"
)

// indexDeps is the retrieval half of the application: the embedder, the
// vector index, and the ingestion pipeline that feeds it.
type indexDeps struct {
	backend  string
	embedder rag.Embedder
	index    rag.VectorIndex
	pipeline *ingestion.Pipeline
}

// buildIndex constructs the embedder, the vector index selected by
// INDEX_BACKEND, and an ingestion pipeline over both. The returned close
// function releases the index and is always non-nil.
func buildIndex(ctx context.Context, log *slog.Logger) (*indexDeps, func(), error) {
	noop := func() {}

	if err := embedder.Validate(log); err != nil {
		return nil, noop, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, noop, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	embBackend := embedder.Backend()
	dims := embedder.DefaultDimensions(embBackend)
	log.Info("embedder initialised", slog.String("provider", embBackend), slog.Int("dimensions", dims))

	backend := rag.BackendFromEnv()
	idx, err := rag.NewIndexFromEnv(ctx, dims)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to initialise %s index: %w", backend, err)
	}
	closeIndex := func() {
		if cerr := idx.Close(); cerr != nil {
			log.Warn("index close failed", slog.Any("error", cerr))
		}
	}
	log.Info("vector index ready", slog.String("backend", backend))

	pipeline, err := ingestion.NewPipeline(emb, idx, &ingestion.Config{
		ChunkSize:    getEnvInt("CHUNK_SIZE", 0),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 0),
	})
	if err != nil {
		closeIndex()
		return nil, noop, fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}

	return &indexDeps{
		backend:  backend,
		embedder: emb,
		index:    idx,
		pipeline: pipeline,
	}, closeIndex, nil
}

// buildService wires the retriever, the model streamer and the generation
// orchestrator into a chat.Service. onFailure and recorder may be nil.
func buildService(ctx context.Context, log *slog.Logger, deps *indexDeps, onFailure rag.FailureHook, recorder chat.Recorder, handlers ...callbacks.Handler) (*chat.Service, error) {
	retriever, err := rag.NewRetriever(deps.embedder, deps.index, rag.ThresholdsFromEnv(), onFailure)
	if err != nil {
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}
	th := retriever.Thresholds()
	log.Info("retriever ready",
		slog.Int("top_k", rag.TopKFromEnv()),
		slog.Float64("min_score", float64(th.Effective())),
	)

	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

	orch, err := generation.NewOrchestrator(provider.NewStreamer(chatModel, handlers...), &generation.Config{
		MaxContextTokens: getEnvInt("MODEL_MAX_CONTEXT_TOKENS", 0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	svc, err := chat.NewService(conversation.NewRegistry(), retriever, orch, &chat.Options{
		TopK:     rag.TopKFromEnv(),
		Recorder: recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat service: %w", err)
	}
	return svc, nil
}

// openHistory opens the transcript store. DOCCHAT_HISTORY_DB overrides the
// default path (~/.docchat/history.db); the value "disabled" turns history
// off. Failures are logged and yield a nil store.
func openHistory(log *slog.Logger) *store.SQLiteStore {
	dbPath := os.Getenv("DOCCHAT_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via DOCCHAT_HISTORY_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs
}

// docStore returns the raw document folder configured by
// DOCCHAT_RAW_DATA_DIR and DOCCHAT_ALLOWED_EXTENSIONS.
func docStore() *docstore.Store {
	return docstore.New(
		os.Getenv("DOCCHAT_RAW_DATA_DIR"),
		docstore.ExtensionsFromEnv(os.Getenv("DOCCHAT_ALLOWED_EXTENSIONS")),
	)
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
