package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Digital-Shane/show-score/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web interface",
		Long: `Serve the search form, the scored episode table with its chart, and the
JSON API. The ratings file is downloaded on first start and refreshed in the
background once it goes stale.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.loadRatings(ctx); err != nil {
				return err
			}
			pipeline, err := a.pipeline()
			if err != nil {
				return err
			}

			if addr == "" {
				addr = a.cfg.ServerAddr
			}
			srv, err := server.New(server.Config{
				Addr:            addr,
				Searcher:        a.registry,
				Scorer:          pipeline,
				Catalog:         a.catalog,
				RefreshInterval: a.cfg.RatingsRefreshInterval(),
				DefaultStddev:   a.cfg.DefaultStddev,
				Logger:          a.logger,
			})
			if err != nil {
				return err
			}

			a.logger.Info("serving", slog.String("addr", addr), slog.Any("providers", a.registry.Enabled()))
			if err := srv.Run(ctx); err != nil && !isCanceled(err) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

// commandContext returns cmd's context or a background one when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
