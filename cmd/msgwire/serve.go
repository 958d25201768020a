package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/msgwire/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP encode service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.ListenAddr = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			enc, release, err := a.encoder(ctx, reg)
			if err != nil {
				return err
			}
			defer release()

			srv := server.New(enc,
				server.WithLogger(a.logger.Named("http")),
				server.WithRegistry(reg),
				server.WithBodyLimit(a.cfg.BodyLimit),
				server.WithRateLimit(a.cfg.RateLimit),
			)

			errc := make(chan error, 1)
			go func() { errc <- srv.Start(a.cfg.ListenAddr) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("shutdown", zap.Error(err))
				return err
			}
			return <-errc
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", ":8080", "listen address")
	return cmd
}
