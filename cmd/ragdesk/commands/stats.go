package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragdesk/internal/embedder"
	"github.com/54b3r/ragdesk/internal/logging"
	"github.com/54b3r/ragdesk/internal/rag"
	"github.com/54b3r/ragdesk/internal/store"
)

// statsReport is the --json output of `ragdesk stats`.
type statsReport struct {
	Index   rag.Stats           `json:"index"`
	Totals  *store.Totals       `json:"totals,omitempty"`
	Sources []store.Source      `json:"sources,omitempty"`
	Queries []store.QueryRecord `json:"recent_queries,omitempty"`
}

// NewStatsCmd constructs the `ragdesk stats` command.
func NewStatsCmd() *cobra.Command {
	var asJSON bool
	var recent int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index size, ingested sources and recent queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			st, err := openStorage(ctx, log, embedder.ConfigFromEnv().Dimensions)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer st.Close()

			rep := statsReport{}
			if rep.Index, err = st.vectors.Stats(ctx); err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			if st.ledger != nil {
				totals, err := st.ledger.Totals(ctx)
				if err != nil {
					return fmt.Errorf("stats: %w", err)
				}
				rep.Totals = &totals
				if rep.Sources, err = st.ledger.Sources(ctx); err != nil {
					return fmt.Errorf("stats: %w", err)
				}
				if rep.Queries, err = st.ledger.RecentQueries(ctx, recent); err != nil {
					return fmt.Errorf("stats: %w", err)
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return printStats(cmd, &rep)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().IntVar(&recent, "recent", 5, "Number of recent queries to show")

	return cmd
}

// printStats renders rep as aligned text.
func printStats(cmd *cobra.Command, rep *statsReport) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "collection: %s (%s)\nvectors:    %d\ndimension:  %d\n",
		rep.Index.Collection, rep.Index.Status, rep.Index.Points, rep.Index.VectorSize)

	if rep.Totals == nil {
		fmt.Fprintln(out, "\nledger disabled")
		return nil
	}
	fmt.Fprintf(out, "queries:    %d ($%.6f total)\n", rep.Totals.Queries, rep.Totals.TotalCost)

	if len(rep.Sources) > 0 {
		fmt.Fprintln(out)
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SOURCE\tTYPE\tCHUNKS\tUPLOADS\tINGESTED")
		for _, s := range rep.Sources {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", s.Name, s.FileType, s.Chunks, s.Uploads, s.IngestedAt.Local().Format("2006-01-02 15:04"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(rep.Queries) > 0 {
		fmt.Fprintln(out, "\nRecent queries:")
		for _, q := range rep.Queries {
			fmt.Fprintf(out, "  %s  %.2fs  $%.6f  %s\n", q.CreatedAt.Local().Format("2006-01-02 15:04"), q.Duration.Seconds(), q.Cost, q.Question)
		}
	}
	return nil
}
