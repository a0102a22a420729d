package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dm/memwatch/internal/tui"
)

func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live terminal dashboard",
		Args:  cobra.NoArgs,
		// Logs would tear the alternate screen; keep them off stderr.
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.logFile == "" {
				c.logger = zap.NewNop()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.watch(ctx)
		},
	}
}

func (c *cli) watch(ctx context.Context) error {
	sampler, err := c.newSampler()
	if err != nil {
		return err
	}
	sampler.Start(ctx, 0)
	defer sampler.Stop()

	p := tea.NewProgram(tui.NewApp(sampler, 0), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if err != nil && ctx.Err() != nil {
		// Interrupted by a signal.
		return nil
	}
	return err
}
