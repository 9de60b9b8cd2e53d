package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/screenpass/adapter/api"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the outbox processor and reconcile worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := RequireApp()
		if err != nil {
			return err
		}
		c := a.Container
		ctx := cmd.Context()

		if err := c.StartOutboxProcessor(ctx); err != nil {
			return fmt.Errorf("failed to start outbox processor: %w", err)
		}
		if err := c.StartHistoryConsumer(ctx); err != nil {
			return err
		}
		c.StartReconcileWorker(ctx)

		serverCfg := api.DefaultServerConfig()
		serverCfg.Addr = c.Config.APIAddr
		if serveAddr != "" {
			serverCfg.Addr = serveAddr
		}
		server := api.NewServer(serverCfg, api.NewHandlerFromContainer(c), c.Health, c.Logger)

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default API_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
