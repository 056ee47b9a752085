package commands

import (
	"bufio"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragdesk/internal/embedder"
	"github.com/54b3r/ragdesk/internal/logging"
)

// NewClearCmd constructs the `ragdesk clear` command, which empties the index
// or removes a single source from it.
func NewClearCmd() *cobra.Command {
	var yes bool
	var source string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every indexed chunk, or one source with --source",
		Long: `Delete indexed chunks and their ledger records.

Without --source the whole index is emptied. Query history in the ledger is
kept. The command asks for confirmation unless --yes is given.

Examples:
  ragdesk clear --yes
  ragdesk clear --source handbook.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			target := "every indexed chunk"
			if source != "" {
				target = fmt.Sprintf("all chunks of %q", source)
			}
			if !yes && !confirm(cmd, "Delete "+target+"?") {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}

			st, err := openStorage(ctx, log, embedder.ConfigFromEnv().Dimensions)
			if err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			defer st.Close()

			if source != "" {
				if err := st.vectors.DeleteSource(ctx, source); err != nil {
					return fmt.Errorf("clear: %w", err)
				}
				if st.ledger != nil {
					found, err := st.ledger.DeleteSource(ctx, source)
					if err != nil {
						log.Warn("ledger: failed to delete source", slog.String("source", source), slog.Any("error", err))
					} else if !found {
						return fmt.Errorf("clear: source %q not found", source)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted source %s\n", source)
				return nil
			}

			if err := st.vectors.DeleteAll(ctx); err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			if st.ledger != nil {
				if err := st.ledger.ResetSources(ctx); err != nil {
					log.Warn("ledger: failed to reset sources", slog.Any("error", err))
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database cleared")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().StringVar(&source, "source", "", "Delete only chunks from this source name")

	return cmd
}

// confirm asks a yes/no question on the command's streams.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
