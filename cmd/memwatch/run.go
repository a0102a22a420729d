package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dm/memwatch/internal/engine"
	"github.com/dm/memwatch/internal/export"
	"github.com/dm/memwatch/internal/format"
)

// finalSnapshotLabel marks the snapshot taken when a headless run ends.
const finalSnapshotLabel = "final"

func newRunCmd(c *cli) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sample for a fixed duration, then write reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if duration <= 0 {
				return fmt.Errorf("--duration must be positive")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.run(ctx, duration, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.DurationVar(&duration, "duration", time.Minute, "how long to sample")
	f.StringSlice("format", nil, "export formats: json, csv, html (default from config)")
	f.String("out", "", "export directory (default from config)")
	_ = c.v.BindPFlag("export.formats", f.Lookup("format"))
	_ = c.v.BindPFlag("export.dir", f.Lookup("out"))
	return cmd
}

// run samples until d elapses or ctx ends, then writes one export per
// configured format concurrently.
func (c *cli) run(ctx context.Context, d time.Duration, out io.Writer) error {
	sampler, err := c.newSampler()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	sampler.Start(runCtx, 0)
	<-runCtx.Done()
	sampler.Stop()

	// Reports need at least one snapshot, and the end state belongs in them.
	if sampler.TakeSnapshot(context.Background(), finalSnapshotLabel) == nil {
		c.logger.Warn("final snapshot failed; exporting what was collected")
	}

	printSummary(out, sampler)

	paths, err := c.writeExports(ctx, sampler.Analyzer())
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(out, "wrote %s\n", p)
	}
	return nil
}

// writeExports renders and writes every configured format in parallel.
func (c *cli) writeExports(ctx context.Context, a *engine.Analyzer) ([]string, error) {
	formats := c.cfg.Export.Formats
	paths := make([]string, len(formats))

	g, _ := errgroup.WithContext(ctx)
	for i, f := range formats {
		g.Go(func() error {
			e, err := a.ExportData(f, "")
			if err != nil {
				return err
			}
			p, err := export.WriteFile(c.cfg.Export.Dir, e)
			if err != nil {
				return err
			}
			c.logger.Info("export written", zap.String("format", string(e.Format)), zap.String("path", p))
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return paths, nil
}

// printSummary writes a short human-readable verdict for the run.
func printSummary(out io.Writer, s *engine.Sampler) {
	a := s.Analyzer()
	if latest, ok := s.Latest(); ok {
		fmt.Fprintf(out, "samples: %s  snapshots: %d  heap: %s / %s  rss: %s\n",
			format.FormatNumber(int64(len(s.History()))), a.Len(),
			format.FormatSize(latest.HeapUsed), format.FormatSize(latest.HeapTotal), format.FormatSize(latest.RSS))
	}

	trend := a.AnalyzeTrends(s.Config().TrendWindow())
	if trend.Sufficient() {
		fmt.Fprintf(out, "trend: %s (%+.1f%%, confidence %.0f%%)\n", trend.Trend, trend.ChangePercent, trend.Confidence*100)
	} else {
		fmt.Fprintf(out, "trend: %s\n", trend.Message)
	}

	leak, err := s.AnalyzeLeaks()
	switch {
	case err != nil:
		fmt.Fprintf(out, "leaks: %v\n", err)
	case !leak.Sufficient():
		fmt.Fprintf(out, "leaks: %s\n", leak.Message)
	case leak.LeakDetected:
		fmt.Fprintf(out, "leaks: %s severity, confidence %.0f%%, %d pattern(s)\n", leak.Severity, leak.Confidence*100, len(leak.Patterns))
	default:
		fmt.Fprintln(out, "leaks: none detected")
	}
}
