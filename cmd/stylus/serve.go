package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/stylus/internal/api"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the message contract over HTTP for a browser extension",
		Long: `Run the background context as a local HTTP service. A browser extension
posts DOM snapshots to /api/v1/page/messages and store requests to
/api/v1/messages; the debug log lives here for the logs commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			bus, _, err := a.background(ctx)
			if err != nil {
				return err
			}
			defer bus.Wait()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewServer(bus, a.engine(), a.logger).Router(a.cfg.Server.Mode),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("HTTP server listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil {
				return err
			}
			a.logger.Info("HTTP server drained gracefully")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}
