package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragdesk/internal/logging"
	"github.com/54b3r/ragdesk/internal/server"
	"github.com/54b3r/ragdesk/internal/tracing"
	"github.com/54b3r/ragdesk/internal/version"
)

// NewServeCmd constructs the `ragdesk serve` command, which starts the HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragdesk HTTP API",
		Long: `Start the ragdesk HTTP API.

Endpoints:
  POST   /api/upload    multipart "file" (txt, pdf, docx) and/or "text"
  POST   /api/query     {"query": "..."} -> cited answer with timings and cost
  GET    /api/stats     index size and ledger totals
  POST   /api/clear     remove every chunk
  GET    /api/sources   ingested sources
  DELETE /api/sources   ?name=<source> removes one source
  GET    /api/health    liveness
  GET    /api/ready     dependency readiness
  GET    /metrics       Prometheus metrics

Examples:
  ragdesk serve
  ragdesk serve --port 9090
  VECTOR_STORE=memory MODEL_PROVIDER=ollama ragdesk serve

Per-client rate limits default to 2 req/s (burst 5) for queries and 1 req/s
(burst 10) for uploads; override with RAGDESK_QUERY_RPS/BURST and
RAGDESK_UPLOAD_RPS/BURST.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)
			log.Info("serve starting", slog.String("version", version.Version))

			if flush, ok := tracing.Enable(cmd.Name(), version.Version); ok {
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			emb, embCfg, err := buildEmbedder(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			st, err := openStorage(ctx, log, embCfg.Dimensions)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer st.Close()

			pipeline, err := buildPipeline(emb, st)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			svc, chatModel, providerCfg, err := buildQueryService(ctx, log, emb, st)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("RAGDESK_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("RAGDESK_PORT", port)
			}

			srv, err := server.New(&server.Deps{
				Asker:    svc,
				Ingester: pipeline,
				Vectors:  st.vectors,
				Ledger:   st.ledger,
			}, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: buildPingers(chatModel, providerCfg, emb, embCfg, st),
				APIKey:  os.Getenv("RAGDESK_API_KEY"),
				QueryRate: server.RateBudget{
					RPS:   getEnvFloat("RAGDESK_QUERY_RPS", 0),
					Burst: getEnvInt("RAGDESK_QUERY_BURST", 0),
				},
				UploadRate: server.RateBudget{
					RPS:   getEnvFloat("RAGDESK_UPLOAD_RPS", 0),
					Burst: getEnvInt("RAGDESK_UPLOAD_BURST", 0),
				},
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: RAGDESK_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env: RAGDESK_PORT)")

	return cmd
}
