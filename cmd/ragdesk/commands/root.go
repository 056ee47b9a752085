// Package commands defines all Cobra CLI commands for the ragdesk binary.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragdesk/internal/audit"
	"github.com/54b3r/ragdesk/internal/config"
	"github.com/54b3r/ragdesk/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFile holds the --env-file flag value.
var envFile string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragdesk",
		Short: "ragdesk: answer questions from your own documents",
		Long: `ragdesk ingests text, PDF and Word documents into a vector index and
answers questions about them with numbered citations.

Backends are selected with environment variables, a .env file, or a YAML
config file (~/.ragdesk/config.yaml). MODEL_PROVIDER picks the chat model,
EMBEDDING_PROVIDER the embedder, VECTOR_STORE the index (qdrant or memory).
See 'ragdesk --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// .env first so it outranks the YAML file; real env vars beat both.
			if err := config.LoadDotEnv(envFile, log); err != nil {
				return err
			}
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// Rebuild after config so LOG_LEVEL/LOG_FORMAT from files apply.
			log = logging.New()
			slog.SetDefault(log)
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			audit.LogCommandStart(log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragdesk/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file; missing files are ignored")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewChunkCmd(),
		NewStatsCmd(),
		NewClearCmd(),
		NewVersionCmd(),
	)

	return root
}
