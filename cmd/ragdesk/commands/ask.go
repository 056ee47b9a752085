package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragdesk/internal/logging"
	"github.com/54b3r/ragdesk/internal/query"
	"github.com/54b3r/ragdesk/internal/server"
	"github.com/54b3r/ragdesk/internal/tracing"
	"github.com/54b3r/ragdesk/internal/version"
)

// NewAskCmd constructs the `ragdesk ask` command, which answers one question
// from the index and prints the answer with its sources.
func NewAskCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the ingested documents",
		Long: `Retrieve the most relevant chunks, rerank them, and generate an answer
that cites its sources as [1], [2], ...

Examples:
  ragdesk ask "what is the refund policy?"
  ragdesk ask --json "who approves travel expenses?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			if flush, ok := tracing.Enable(cmd.Name(), version.Version); ok {
				defer flush()
			}

			emb, embCfg, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			st, err := openStorage(ctx, log, embCfg.Dimensions)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer st.Close()

			svc, _, _, err := buildQueryService(ctx, log, emb, st)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			res, err := svc.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(server.NewQueryResponse(res))
			}
			printAnswer(cmd, res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result in the /api/query JSON shape")

	return cmd
}

// printAnswer renders res for a terminal.
func printAnswer(cmd *cobra.Command, res *query.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Answer)
	if len(res.Sources) == 0 {
		return
	}
	fmt.Fprintln(out, "\nSources:")
	for i, d := range res.Sources {
		fmt.Fprintf(out, "  [%d] %s (chunk %d/%d, score %.3f)\n", i+1, d.Source, d.ChunkIndex+1, d.TotalChunks, d.RerankScore)
	}
	if res.Generated {
		fmt.Fprintf(out, "\n%.2fs total (retrieval %.2fs, rerank %.2fs, llm %.2fs), %d tokens, $%.6f\n",
			res.Timings.Total.Seconds(), res.Timings.Retrieval.Seconds(), res.Timings.Rerank.Seconds(),
			res.Timings.Generation.Seconds(), res.Usage.TotalTokens, res.Cost.TotalCost)
	}
}
