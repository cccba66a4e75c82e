package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/keyval/internal/server"
	"github.com/SmitUplenchwar2687/keyval/internal/storage"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the key/value HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if cmd.Flags().Changed("addr") {
				e.cfg.Server.Addr = addr
			}

			srv := server.New(e.cfg.Server.Addr, e.store, e.clock, e.log)
			e.log.WithField("backend", storage.BackendName(e.store)).Info("serving keyval API")

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				e.log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	return cmd
}
