package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/statekit/internal/cli"
	httpAdapter "github.com/aretw0/statekit/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a document store over HTTP",
	Long: `Starts a document store exposing its state, actions and a server-sent event
stream of deltas over HTTP. Prometheus metrics are served on /metrics when enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("listen") {
			cfg.Listen, _ = cmd.Flags().GetString("listen")
		}
		if cmd.Flags().Changed("metrics") {
			cfg.Metrics, _ = cmd.Flags().GetBool("metrics")
		}
		restore, _ := cmd.Flags().GetBool("restore")

		// Create a context that cancels on interrupt signal
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := cli.Build(ctx, cfg, logger, cli.BuildOptions{Restore: restore})
		if err != nil {
			return fmt.Errorf("error initializing store: %w", err)
		}
		defer rt.Close()

		server := httpAdapter.NewServer(rt.Store,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetricsHandler(rt.MetricsHandler()),
		)
		defer server.Close()

		srv := &http.Server{
			Addr:    cfg.Listen,
			Handler: server.Handler(),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting statekit server", "address", srv.Addr, "actions", rt.Store.Actions())
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("Start shutdown")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "error", err)
				if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			logger.Info("statekit server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", ":8080", "Address to listen on")
	serveCmd.Flags().Bool("metrics", false, "Serve prometheus metrics on /metrics")
	serveCmd.Flags().Bool("restore", false, "Restore state from the configured journal")
}
