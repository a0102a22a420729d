package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dm/memwatch/internal/stream"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Stream events over websocket and serve the analysis API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sampler, err := c.newSampler()
			if err != nil {
				return err
			}
			srv := stream.NewServer(sampler, c.cfg.Server, c.logger.Named("stream"))
			// Subscribe before the first tick so no event is missed.
			srv.Attach()
			sampler.Start(ctx, 0)
			defer sampler.Stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default from config, :9090)")
	_ = c.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
