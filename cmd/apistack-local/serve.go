package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/theory-cloud/apistack/pkg/funcenv"
	"github.com/theory-cloud/apistack/pkg/localgw"
	"github.com/theory-cloud/apistack/pkg/logger"
)

const defaultAddr = "127.0.0.1:3000"

func newServeCommand(flags *stackFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the gateway locally in front of an echo function",
		Long: `Serve the composed gateway on a local address.

OPTIONS requests get the gateway's CORS preflight response. Every other request
under /<env>/ is handed to an echo function as an API Gateway proxy event and the
function's response is returned as is. The echo function reads its settings from
the function environment the stack deploys.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := flags.compose(cmd.Context())
			if err != nil {
				return err
			}
			log := logger.Logger()
			defer func() { _ = log.Flush(context.Background()) }()

			settings := funcenv.FromMap(g.Function.Environment, nil)
			gw, err := localgw.New(g, echoFunction(settings))
			if err != nil {
				return err
			}
			srv := gw.Server(addr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			log.Info("local gateway listening", map[string]any{
				"addr":     addr,
				"base_url": "http://" + addr + gw.StagePath() + "/",
				"function": g.Function.Name,
			})

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), g.Function.Timeout)
				defer cancel()
				log.Info("local gateway shutting down", nil)
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	return cmd
}
