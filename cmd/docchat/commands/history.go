package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/docchat-go/internal/logging"
)

// NewHistoryCmd constructs the `docchat history` command, which prints the
// most recently answered questions from the transcript store.
func NewHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently answered questions",
		Long: `Print the most recent transcripts recorded by 'docchat serve' and
'docchat ask', newest first.

The store lives at ~/.docchat/history.db unless DOCCHAT_HISTORY_DB is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			hs := openHistory(log)
			if hs == nil {
				return fmt.Errorf("history: transcript store is not available")
			}
			defer func() { _ = hs.Close() }()

			transcripts, err := hs.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if len(transcripts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no transcripts recorded")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tCONTEXTS\tQUESTION\tANSWER")
			for _, t := range transcripts {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
					t.CreatedAt.Local().Format(time.DateTime),
					t.Contexts,
					truncate(t.Question, 60),
					truncate(t.Answer, 80),
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of transcripts to show")

	return cmd
}

// truncate flattens s onto one line and cuts it to at most n runes.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
