package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kingdombarber/insight/internal/observability"
	"github.com/kingdombarber/insight/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long: `Serve the question answering and insight features over HTTP.

Routes:
  GET  /healthz
  GET  /metrics
  GET  /v1/dataset
  POST /v1/ask
  POST /v1/reports
  POST /v1/campaigns
  POST /v1/opportunities
  POST /v1/style`,
		Example: `  insight serve --addr :9090`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (default :8080)")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	metrics := cc.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cc.Renderer.Success("Listening on " + cc.Cfg.Server.Addr)
	cc.Renderer.Muted("Press Ctrl+C to stop")
	return server.New(cc.Service, cc.Cfg.Server, metrics, cc.Logger).Serve(ctx)
}
