package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/docchat-go/internal/chat"
	"github.com/54b3r/docchat-go/internal/logging"
	"github.com/54b3r/docchat-go/internal/rag"
	"github.com/54b3r/docchat-go/internal/server"
	"github.com/54b3r/docchat-go/internal/tracing"
	"github.com/54b3r/docchat-go/internal/watcher"
)

// NewServeCmd constructs the `docchat serve` command, which starts the HTTP
// server exposing the chat, streaming and document APIs.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docchat HTTP server",
		Long: `Start the docchat HTTP server.

Questions are submitted with POST /api/chat and answered over Server-Sent
Events at GET /api/stream?conversationId=<id>. Documents are managed with
/api/upload, /api/files and /api/deleteFile, and indexed with
POST /api/createIndex.

With --watch, files created in the raw data directory are ingested
automatically.

Examples:
  docchat serve
  docchat serve --port 9090 --watch
  INDEX_BACKEND=qdrant QDRANT_HOST=localhost docchat serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Flags win; otherwise the config layers (YAML, .env, env) apply.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("DOCCHAT_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("DOCCHAT_PORT", port)
			}

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing is opt-in and a no-op if keys are absent.
			var handlers []callbacks.Handler
			handler, flush, ok := tracing.Setup()
			if ok {
				handlers = append(handlers, handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			metrics := server.NewMetrics(prometheus.DefaultRegisterer)

			deps, closeIndex, err := buildIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeIndex()
			deps.pipeline.OnChunks(metrics.ChunksIngested)

			var recorder chat.Recorder
			if hs := openHistory(log); hs != nil {
				recorder = hs
				defer func() { _ = hs.Close() }()
			}

			svc, err := buildService(ctx, log, deps, metrics.RetrievalFailed, recorder, handlers...)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			docs := docStore()
			log.Info("document store ready",
				slog.String("dir", docs.Root()),
				slog.Any("extensions", docs.Extensions()),
			)

			if watch {
				w, err := watcher.New(docs.Root(), docs.Allowed, func(ctx context.Context, path string) (int, error) {
					n, err := deps.pipeline.IngestFile(ctx, path)
					metrics.IngestRun(err)
					return n, err
				})
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				go func() {
					if err := w.Run(ctx); err != nil {
						log.Error("watcher stopped", slog.Any("error", err))
					}
				}()
			}

			srv, err := server.New(svc, deps.pipeline, docs, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: buildPingers(deps),
				APIKey:  os.Getenv("DOCCHAT_API_KEY"),
				Metrics: metrics,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: DOCCHAT_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env: DOCCHAT_PORT)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Ingest files created in the raw data directory")

	return cmd
}

// buildPingers returns the readiness probes for the configured index. The
// round-trip probe always runs; backend-specific probes are added when the
// index exposes a client.
func buildPingers(deps *indexDeps) []server.Pinger {
	pingers := []server.Pinger{server.NewIndexPinger(deps.embedder, deps.index)}
	switch idx := deps.index.(type) {
	case *rag.QdrantIndex:
		pingers = append(pingers, server.NewQdrantPinger(idx.Client()))
	case *rag.PgVectorIndex:
		pingers = append(pingers, server.NewPostgresPinger(idx.DB()))
	}
	return pingers
}
