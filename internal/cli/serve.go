package cli

import (
	"os/signal"
	"syscall"

	"github.com/ocrd-go/resmgr/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddr    string
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the resource manager over HTTP",
	Long: `Serve list_available, list_installed and download as HTTP endpoints, with
Prometheus metrics at /metrics. The user list is reloaded whenever another
process edits it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}
		addr := serveAddr
		if addr == "" {
			addr = settings.ListenAddress
		}
		srv := server.New(mgr, server.WithAddr(addr), server.WithLogger(logger))

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(ctx) })
		if !serveNoWatch {
			g.Go(func() error { return srv.Watch(ctx) })
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from settings, "+server.DefaultAddr+")")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not reload the user list when it changes on disk")
	rootCmd.AddCommand(serveCmd)
}
