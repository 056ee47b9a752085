package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragdesk/internal/extract"
	"github.com/54b3r/ragdesk/internal/ingestion"
)

// NewChunkCmd constructs the `ragdesk chunk` command, which previews how a
// document would be chunked without embedding or storing anything.
func NewChunkCmd() *cobra.Command {
	var flags policyFlags

	cmd := &cobra.Command{
		Use:   "chunk [file|-]",
		Short: "Preview chunking of a document without indexing it",
		Long: `Extract and chunk a document and print one JSON record per chunk.

No embedder, model or vector store is contacted. With no argument, or
"-", the text is read from stdin.

Examples:
  ragdesk chunk handbook.pdf
  ragdesk chunk --unit tokens --size 200 --overlap 20 notes.txt
  cat notes.txt | ragdesk chunk`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := flags.resolve()
			if err != nil {
				return fmt.Errorf("chunk: %w", err)
			}
			proc, err := ingestion.NewProcessor(policy)
			if err != nil {
				return fmt.Errorf("chunk: %w", err)
			}

			var chunks []ingestion.Chunk
			if len(args) == 0 || args[0] == "-" {
				payload, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("chunk: read stdin: %w", err)
				}
				chunks, err = proc.ProcessText(string(payload), ingestion.TextSourceName, nil)
				if err != nil {
					return fmt.Errorf("chunk: %w", err)
				}
			} else {
				path := args[0]
				payload, err := os.ReadFile(path) //nolint:gosec // path is an explicit CLI argument
				if err != nil {
					return fmt.Errorf("chunk: %w", err)
				}
				ft, err := extract.Detect(path, payload)
				if err != nil {
					return fmt.Errorf("chunk: %w", err)
				}
				chunks, err = proc.ProcessDocument(payload, filepath.Base(path), ft, nil)
				if err != nil {
					return fmt.Errorf("chunk: %w", err)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, c := range chunks {
				if err := enc.Encode(c); err != nil {
					return fmt.Errorf("chunk: %w", err)
				}
			}
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}
