package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragdesk/internal/chunker"
	"github.com/54b3r/ragdesk/internal/ingestion"
	"github.com/54b3r/ragdesk/internal/logging"
)

// policyFlags holds the chunking overrides shared by ingest and chunk.
type policyFlags struct {
	unit    string
	size    int
	overlap int
}

// register adds the --unit, --size and --overlap flags to cmd.
func (f *policyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.unit, "unit", "", "Chunking unit: characters or tokens (env: CHUNK_UNIT)")
	cmd.Flags().IntVar(&f.size, "size", 0, "Chunk size in unit (env: CHUNK_SIZE)")
	cmd.Flags().IntVar(&f.overlap, "overlap", -1, "Overlap between chunks in unit (env: CHUNK_OVERLAP)")
}

// resolve returns the env policy with any flag overrides applied. Changing
// the unit resets size and overlap to that unit's defaults unless they are
// also given.
func (f *policyFlags) resolve() (chunker.Policy, error) {
	policy, err := chunkPolicyFromEnv()
	if err != nil {
		return chunker.Policy{}, err
	}
	if f.unit != "" {
		unit, err := chunker.ParseUnit(f.unit)
		if err != nil {
			return chunker.Policy{}, err
		}
		if unit != policy.Unit {
			policy = chunker.DefaultPolicy(unit)
		}
	}
	if f.size > 0 {
		policy.ChunkSize = f.size
	}
	if f.overlap >= 0 {
		policy.Overlap = f.overlap
	}
	if err := policy.Validate(); err != nil {
		return chunker.Policy{}, err
	}
	return policy, nil
}

// NewIngestCmd constructs the `ragdesk ingest` command, which indexes local
// files, URLs and raw text.
func NewIngestCmd() *cobra.Command {
	var text string
	var flags policyFlags

	cmd := &cobra.Command{
		Use:   "ingest [path|url ...]",
		Short: "Ingest files, URLs or text into the vector index",
		Long: `Extract, chunk, embed and store documents.

Each argument is a local file (txt, pdf, docx; extensionless files are
sniffed) or an http(s) URL. --text ingests a literal string under the
source name "user_input". Arguments are processed in order and the command
stops at the first failure.

Examples:
  ragdesk ingest handbook.pdf notes.txt
  ragdesk ingest https://example.com/faq.txt
  ragdesk ingest --unit tokens --size 500 --overlap 50 report.docx
  ragdesk ingest --text "The office closes at 6pm on Fridays."`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			if len(args) == 0 && text == "" {
				return fmt.Errorf("ingest: at least one path, URL, or --text is required")
			}
			policy, err := flags.resolve()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, embCfg, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			st, err := openStorage(ctx, log, embCfg.Dimensions)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer st.Close()

			pipeline, err := buildPipeline(emb, st)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("starting ingestion",
				slog.Int("sources", len(args)),
				slog.String("unit", string(policy.Unit)),
				slog.Int("chunk_size", policy.ChunkSize),
				slog.Int("overlap", policy.Overlap),
			)

			results, err := pipeline.IngestPaths(ctx, args, &policy, func(msg string) { log.Info(msg) })
			printResults(cmd, results)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			if text != "" {
				res, err := pipeline.IngestText(ctx, text, &policy)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				printResults(cmd, []ingestion.Result{*res})
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Literal text to ingest as source \"user_input\"")
	flags.register(cmd)

	return cmd
}

// printResults writes one line per ingested source.
func printResults(cmd *cobra.Command, results []ingestion.Result) {
	out := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(out, "%s\t%s\t%d chunks\t%d bytes\n", r.Source, r.FileType, r.Chunks, r.Bytes)
	}
}
