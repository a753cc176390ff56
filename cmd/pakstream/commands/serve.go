package commands

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/meigma/pakstream/metrics"
	"github.com/meigma/pakstream/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr        string
		root        string
		withMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a content directory as a pakstream file host",
		Long: `Serve a content directory over HTTP for remote streaming.

Defaults come from the Server section of the configuration. The host stops
gracefully on SIGINT or SIGTERM.

Examples:
  pakstream serve --root ./Content --addr 0.0.0.0:8081 --metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Server.Addr
			}
			if !cmd.Flags().Changed("root") {
				root = a.cfg.Server.Root
			}
			if !cmd.Flags().Changed("metrics") {
				withMetrics = a.cfg.Metrics.Enabled
			}

			opts := []server.Option{server.WithLogger(a.logger)}
			if withMetrics {
				opts = append(opts, server.WithMetrics(newMetrics(), prometheus.DefaultGatherer))
			}
			srv, err := server.New(cmd.Context(), root, opts...)
			if err != nil {
				return err
			}
			defer srv.Close()
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: Server.Addr)")
	cmd.Flags().StringVar(&root, "root", "", "content directory (default: Server.Root)")
	cmd.Flags().BoolVar(&withMetrics, "metrics", false, "expose /metrics (default: Metrics.Enabled)")
	return cmd
}

// newMetrics registers the collectors with the default registry.
func newMetrics() *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}
