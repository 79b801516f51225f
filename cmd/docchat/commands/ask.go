package commands

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/docchat-go/internal/chat"
	"github.com/54b3r/docchat-go/internal/logging"
	"github.com/54b3r/docchat-go/internal/tracing"
)

// NewAskCmd constructs the `docchat ask` command, which answers a single
// question against the index and streams the answer to stdout.
func NewAskCmd() *cobra.Command {
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the indexed documents",
		Long: `Answer a question using the documents in the vector index.

The question goes through the same retrieval and generation path as the HTTP
server. The answer is streamed to stdout as it is generated.

The in-memory index starts empty on every run; use a persistent backend
(qdrant, pgvector, milvus) to ask against documents ingested earlier.

Examples:
  docchat ask "what is the refund policy?"
  INDEX_BACKEND=qdrant docchat ask "how do I rotate my API key?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			deps, closeIndex, err := buildIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closeIndex()

			var recorder chat.Recorder
			if !noHistory {
				if hs := openHistory(log); hs != nil {
					recorder = hs
					defer func() { _ = hs.Close() }()
				}
			}

			var handlers []callbacks.Handler
			if h, flush, ok := tracing.Setup(); ok {
				handlers = append(handlers, h)
				defer flush()
			}

			svc, err := buildService(ctx, log, deps, nil, recorder, handlers...)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			if _, err := svc.Ask(ctx, strings.Join(args, " "), func(partial string) {
				fmt.Fprint(out, partial)
			}); err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record the answer in the history store")

	return cmd
}
