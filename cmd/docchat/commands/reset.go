package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/docchat-go/internal/logging"
)

// NewResetCmd constructs the `docchat reset` command, which removes every
// entry from the configured vector index.
func NewResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove every entry from the vector index",
		Long: `Remove every entry from the configured vector index.

Documents in the raw data directory are left untouched; run 'docchat ingest'
to rebuild the index from them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			deps, closeIndex, err := buildIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			defer closeIndex()

			if err := deps.pipeline.Reset(ctx); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s index cleared\n", deps.backend)
			return nil
		},
	}
}
