package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/docchat-go/internal/ingestion"
	"github.com/54b3r/docchat-go/internal/logging"
)

// NewIngestCmd constructs the `docchat ingest` command, which runs the
// ingestion pipeline over a directory and/or a list of URLs.
func NewIngestCmd() *cobra.Command {
	var dir string
	var urls []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest documents into the vector index",
		Long: `Split, embed and index documents so they can be retrieved at question time.

By default every eligible file under the raw data directory
(DOCCHAT_RAW_DATA_DIR, default ./raw_data) is ingested. Use --dir to ingest a
different directory and --url (repeatable) to ingest web pages.

The index is append-only: ingesting the same document twice stores its
chunks twice. Run 'docchat reset' first to rebuild from scratch.

Relevant environment variables:
  INDEX_BACKEND        memory, qdrant, pgvector or milvus
  CHUNK_SIZE           Chunk length in characters (default: 500)
  CHUNK_OVERLAP        Characters shared by adjacent chunks (default: 100)
  EMBEDDING_*          Embedding provider overrides

Examples:
  docchat ingest
  docchat ingest --dir ./handbook
  docchat ingest --url https://example.com/faq --url https://example.com/terms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			deps, closeIndex, err := buildIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closeIndex()

			var sources []ingestion.Source
			if dir != "" || len(urls) == 0 {
				docs := docStore()
				root := dir
				if root == "" {
					root = docs.Root()
				}
				sources = append(sources, &ingestion.DirSource{Root: root, Allow: docs.Allowed})
			}
			if len(urls) > 0 {
				sources = append(sources, &ingestion.URLSource{URLs: urls})
			}

			var total ingestion.Result
			for _, src := range sources {
				res, err := deps.pipeline.Ingest(ctx, src, func(msg string) {
					log.Info(msg)
				})
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				total.Documents += res.Documents
				total.Chunks += res.Chunks
			}

			log.Info("ingestion complete",
				slog.String("backend", deps.backend),
				slog.Int("documents", total.Documents),
				slog.Int("chunks", total.Chunks),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d documents (%d chunks)\n", total.Documents, total.Chunks)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to ingest (default: the raw data directory)")
	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Web page URL to ingest (repeatable)")

	return cmd
}
