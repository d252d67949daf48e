package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sadopc/habitlab/internal/server"
)

func newServeCmd(env func() *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP endpoints and send reminders every hour",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := env()
			if addr == "" {
				addr = e.cfg.Server.Addr
			}
			d := e.dispatcher()
			srv := server.New(d, e.registry, e.log.Logger)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return srv.ListenAndServe(ctx, addr)
			})
			g.Go(func() error {
				return d.Run(ctx)
			})

			err := g.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
