package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dm/memwatch/internal/config"
	"github.com/dm/memwatch/internal/engine"
	"github.com/dm/memwatch/internal/format"
	"github.com/dm/memwatch/internal/telemetry"
)

const version = "0.1.0"

// cli carries state shared by every subcommand.
type cli struct {
	v        *viper.Viper
	cfgFile  string
	verbose  bool
	logFile  string
	limits   [4]string
	pid      int
	url      string
	insecure bool

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "memwatch",
		Short: "Memory telemetry and leak detection",
		Long: `memwatch samples the memory of a Go process (itself) or any Linux process,
keeps a bounded buffer of heap snapshots, analyses trends and flags leak
patterns.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate(fmt.Sprintf("memwatch version %s\n", version))

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (yaml)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "development logging at debug level")
	pf.StringVar(&c.logFile, "log-file", "", "write logs to this file instead of stderr")
	pf.IntVar(&c.pid, "pid", 0, "observe /proc/<pid> instead of this process")
	pf.StringVar(&c.url, "url", "", "poll a remote JSON stats endpoint, e.g. http://host:9090/api/stats")
	pf.BoolVar(&c.insecure, "insecure", false, "skip TLS certificate verification for --url")
	pf.Int64("sample-interval-ms", 0, "sampling interval in milliseconds")
	pf.Int("snapshot-every-ticks", 0, "take an automatic snapshot every N ticks")
	for i, lf := range limitFlags {
		pf.StringVar(&c.limits[i], lf.flag, "", lf.usage)
	}
	_ = c.v.BindPFlag("sample_interval_ms", pf.Lookup("sample-interval-ms"))
	_ = c.v.BindPFlag("snapshot_every_ticks", pf.Lookup("snapshot-every-ticks"))

	root.AddCommand(
		newWatchCmd(c),
		newRunCmd(c),
		newServeCmd(c),
		newConfigCmd(c),
	)
	return root
}

// init loads configuration and builds the logger. Unset bound flags fall
// through to the file, env and defaults.
func (c *cli) init() error {
	if err := c.applyLimits(); err != nil {
		return err
	}
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	c.cfg = cfg

	logger, err := newLogger(c.verbose, c.logFile)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	c.logger = logger
	return nil
}

// limitFlags are threshold overrides given as human sizes ("512mb", "1.5gb").
var limitFlags = [4]struct{ flag, key, usage string }{
	{"heap-warning", "thresholds.warning_heap_mb", "heap warning threshold, e.g. 128mb"},
	{"heap-critical", "thresholds.critical_heap_mb", "heap critical threshold, e.g. 256mb"},
	{"rss-warning", "thresholds.warning_rss_mb", "RSS warning threshold, e.g. 512mb"},
	{"rss-critical", "thresholds.critical_rss_mb", "RSS critical threshold, e.g. 1gb"},
}

// applyLimits converts set threshold flags to whole megabytes on the viper
// instance, where they override file and env values.
func (c *cli) applyLimits() error {
	for i, lf := range limitFlags {
		raw := c.limits[i]
		if raw == "" {
			continue
		}
		n := format.ParseHumanBytes(raw)
		if n < 1<<20 {
			return fmt.Errorf("--%s: %q is not a size of at least 1mb", lf.flag, raw)
		}
		c.v.Set(lf.key, uint64(n)>>20)
	}
	return nil
}

// newLogger builds a production logger, or a development one when verbose.
// An empty path logs to stderr.
func newLogger(verbose bool, path string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose {
		zc = zap.NewDevelopmentConfig()
	}
	if path != "" {
		zc.OutputPaths = []string{path}
		zc.ErrorOutputPaths = []string{path}
	}
	return zc.Build()
}

// newSource picks the source: a remote endpoint for --url, /proc for --pid,
// and this process's runtime otherwise.
func newSource(pid int, rawURL string, insecure bool) (telemetry.Source, error) {
	switch {
	case rawURL != "" && pid != 0:
		return nil, fmt.Errorf("--url and --pid are mutually exclusive")
	case rawURL != "":
		src, err := telemetry.NewHTTPSource(telemetry.HTTPConfig{URL: rawURL, InsecureSkipVerify: insecure})
		if err != nil {
			return nil, fmt.Errorf("--url: %w", err)
		}
		return src, nil
	case pid != 0:
		src, err := telemetry.NewProcSource(pid)
		if err != nil {
			return nil, fmt.Errorf("--pid: %w", err)
		}
		return src, nil
	default:
		return telemetry.NewRuntimeSource(), nil
	}
}

// newSampler wires a source, analyzer and sampler from the loaded config.
func (c *cli) newSampler() (*engine.Sampler, error) {
	src, err := newSource(c.pid, c.url, c.insecure)
	if err != nil {
		return nil, err
	}
	analyzer := engine.NewAnalyzer(src, c.cfg, c.logger.Named("analyzer"))
	return engine.NewSampler(src, analyzer, c.cfg, c.logger.Named("sampler")), nil
}
