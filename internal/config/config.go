// Package config holds the tunables of the memory engine and its callers.
//
// Values are read from an optional YAML file and MEMWATCH_* environment
// variables through viper. Every key has a default, so an empty environment
// yields Default().
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// MEMWATCH_THRESHOLDS_WARNING_HEAP_MB.
const EnvPrefix = "MEMWATCH"

// Thresholds are the two-tier alert limits in megabytes.
type Thresholds struct {
	WarningHeapMB  uint64 `mapstructure:"warning_heap_mb" yaml:"warning_heap_mb"`
	CriticalHeapMB uint64 `mapstructure:"critical_heap_mb" yaml:"critical_heap_mb"`
	WarningRssMB   uint64 `mapstructure:"warning_rss_mb" yaml:"warning_rss_mb"`
	CriticalRssMB  uint64 `mapstructure:"critical_rss_mb" yaml:"critical_rss_mb"`
}

// LeakConfig holds the heuristic constants of the leak-pattern detectors.
// Byte values are in megabytes.
type LeakConfig struct {
	MinSamples int `mapstructure:"min_samples" yaml:"min_samples"`

	GrowthWindow    int     `mapstructure:"growth_window" yaml:"growth_window"`
	GrowthMaxDropMB float64 `mapstructure:"growth_max_drop_mb" yaml:"growth_max_drop_mb"`
	GrowthMinAvgMB  float64 `mapstructure:"growth_min_avg_mb" yaml:"growth_min_avg_mb"`
	GrowthWeight    float64 `mapstructure:"growth_weight" yaml:"growth_weight"`

	StabilizationMinSamples int     `mapstructure:"stabilization_min_samples" yaml:"stabilization_min_samples"`
	StabilizationRatio      float64 `mapstructure:"stabilization_ratio" yaml:"stabilization_ratio"`
	StabilizationWeight     float64 `mapstructure:"stabilization_weight" yaml:"stabilization_weight"`

	ExponentialMinSamples int     `mapstructure:"exponential_min_samples" yaml:"exponential_min_samples"`
	ExponentialFactor     float64 `mapstructure:"exponential_factor" yaml:"exponential_factor"`
	ExponentialWeight     float64 `mapstructure:"exponential_weight" yaml:"exponential_weight"`

	AccumulationMB     float64 `mapstructure:"accumulation_mb" yaml:"accumulation_mb"`
	AccumulationWeight float64 `mapstructure:"accumulation_weight" yaml:"accumulation_weight"`
}

// MeasureConfig controls Sampler.Measure.
type MeasureConfig struct {
	ForceGC       bool  `mapstructure:"force_gc" yaml:"force_gc"`
	SettleMs      int64 `mapstructure:"settle_ms" yaml:"settle_ms"`
	SettleAfterMs int64 `mapstructure:"settle_after_ms" yaml:"settle_after_ms"`
}

// ServerConfig configures the websocket/HTTP stream.
type ServerConfig struct {
	Addr         string `mapstructure:"addr" yaml:"addr"`
	ClientBuf    int    `mapstructure:"client_buffer" yaml:"client_buffer"`
	BroadcastBuf int    `mapstructure:"broadcast_buffer" yaml:"broadcast_buffer"`
}

// ExportConfig configures headless runs.
type ExportConfig struct {
	Dir     string   `mapstructure:"dir" yaml:"dir"`
	Formats []string `mapstructure:"formats" yaml:"formats"`
}

// Config is the full effective configuration.
type Config struct {
	Thresholds         Thresholds    `mapstructure:"thresholds" yaml:"thresholds"`
	SampleIntervalMs   int64         `mapstructure:"sample_interval_ms" yaml:"sample_interval_ms"`
	SnapshotIntervalMs int64         `mapstructure:"snapshot_interval_ms" yaml:"snapshot_interval_ms"`
	SnapshotEveryTicks int           `mapstructure:"snapshot_every_ticks" yaml:"snapshot_every_ticks"`
	SnapshotCapacity   int           `mapstructure:"snapshot_capacity" yaml:"snapshot_capacity"`
	HistoryCapacity    int           `mapstructure:"history_capacity" yaml:"history_capacity"`
	LeakWindowMs       int64         `mapstructure:"leak_window_ms" yaml:"leak_window_ms"`
	TrendWindowMs      int64         `mapstructure:"trend_window_ms" yaml:"trend_window_ms"`
	Leak               LeakConfig    `mapstructure:"leak" yaml:"leak"`
	Measure            MeasureConfig `mapstructure:"measure" yaml:"measure"`
	Server             ServerConfig  `mapstructure:"server" yaml:"server"`
	Export             ExportConfig  `mapstructure:"export" yaml:"export"`
}

// DefaultLeakConfig returns the stock detector constants.
func DefaultLeakConfig() LeakConfig {
	return LeakConfig{
		MinSamples:              5,
		GrowthWindow:            10,
		GrowthMaxDropMB:         1,
		GrowthMinAvgMB:          1,
		GrowthWeight:            0.3,
		StabilizationMinSamples: 10,
		StabilizationRatio:      1.2,
		StabilizationWeight:     0.4,
		ExponentialMinSamples:   6,
		ExponentialFactor:       2,
		ExponentialWeight:       0.5,
		AccumulationMB:          10,
		AccumulationWeight:      0.3,
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Thresholds: Thresholds{
			WarningHeapMB:  100,
			CriticalHeapMB: 200,
			WarningRssMB:   300,
			CriticalRssMB:  500,
		},
		SampleIntervalMs:   5000,
		SnapshotIntervalMs: 30000,
		SnapshotEveryTicks: 0,
		SnapshotCapacity:   100,
		HistoryCapacity:    1000,
		LeakWindowMs:       60000,
		TrendWindowMs:      300000,
		Leak:               DefaultLeakConfig(),
		Measure: MeasureConfig{
			ForceGC:       true,
			SettleMs:      100,
			SettleAfterMs: 200,
		},
		Server: ServerConfig{
			Addr:         ":9090",
			ClientBuf:    256,
			BroadcastBuf: 1024,
		},
		Export: ExportConfig{
			Dir:     ".",
			Formats: []string{"json"},
		},
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []error
	t := c.Thresholds
	if t.WarningHeapMB == 0 || t.CriticalHeapMB == 0 || t.WarningRssMB == 0 || t.CriticalRssMB == 0 {
		errs = append(errs, errors.New("thresholds must be positive"))
	}
	if t.CriticalHeapMB < t.WarningHeapMB {
		errs = append(errs, fmt.Errorf("critical_heap_mb (%d) below warning_heap_mb (%d)", t.CriticalHeapMB, t.WarningHeapMB))
	}
	if t.CriticalRssMB < t.WarningRssMB {
		errs = append(errs, fmt.Errorf("critical_rss_mb (%d) below warning_rss_mb (%d)", t.CriticalRssMB, t.WarningRssMB))
	}
	if c.SampleIntervalMs <= 0 {
		errs = append(errs, errors.New("sample_interval_ms must be positive"))
	}
	if c.SnapshotIntervalMs < 0 {
		errs = append(errs, errors.New("snapshot_interval_ms cannot be negative"))
	}
	if c.SnapshotEveryTicks < 0 {
		errs = append(errs, errors.New("snapshot_every_ticks cannot be negative"))
	}
	if c.SnapshotCapacity <= 0 || c.HistoryCapacity <= 0 {
		errs = append(errs, errors.New("buffer capacities must be positive"))
	}
	if c.LeakWindowMs <= 0 || c.TrendWindowMs <= 0 {
		errs = append(errs, errors.New("analysis windows must be positive"))
	}
	if err := c.Leak.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Measure.SettleMs < 0 {
		errs = append(errs, errors.New("measure.settle_ms cannot be negative"))
	}
	if c.Measure.SettleAfterMs < 0 {
		errs = append(errs, errors.New("measure.settle_after_ms cannot be negative"))
	}
	return errors.Join(errs...)
}

// Validate checks the detector constants.
func (l LeakConfig) Validate() error {
	if l.MinSamples < 2 {
		return fmt.Errorf("leak.min_samples must be at least 2, got %d", l.MinSamples)
	}
	if l.GrowthWindow < 2 || l.ExponentialMinSamples < 3 {
		return errors.New("leak detector windows too small")
	}
	if l.StabilizationMinSamples < 2 || l.StabilizationMinSamples%2 != 0 {
		return fmt.Errorf("leak.stabilization_min_samples must be even and >= 2, got %d", l.StabilizationMinSamples)
	}
	for _, w := range []float64{l.GrowthWeight, l.StabilizationWeight, l.ExponentialWeight, l.AccumulationWeight} {
		if w < 0 || w > 1 {
			return fmt.Errorf("leak detector weight %.2f outside [0,1]", w)
		}
	}
	return nil
}

// SampleInterval returns the sampling period.
func (c Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalMs) * time.Millisecond
}

// SnapshotInterval returns the minimum spacing of automatic snapshots.
func (c Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalMs) * time.Millisecond
}

// LeakWindow returns the trailing history window used for leak detection.
func (c Config) LeakWindow() time.Duration {
	return time.Duration(c.LeakWindowMs) * time.Millisecond
}

// TrendWindow returns the default trend analysis window.
func (c Config) TrendWindow() time.Duration {
	return time.Duration(c.TrendWindowMs) * time.Millisecond
}

// SettleDelay returns the pause between GC and the opening snapshot of a
// measurement.
func (m MeasureConfig) SettleDelay() time.Duration {
	return time.Duration(m.SettleMs) * time.Millisecond
}

// SettleAfterDelay returns the pause between the measured call and the
// closing snapshot.
func (m MeasureConfig) SettleAfterDelay() time.Duration {
	return time.Duration(m.SettleAfterMs) * time.Millisecond
}

// NewViper returns a viper instance primed with defaults and env bindings.
// Callers bind CLI flags onto it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (when non-empty) into v and returns the validated result.
// A nil v is replaced by NewViper().
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("thresholds.warning_heap_mb", d.Thresholds.WarningHeapMB)
	v.SetDefault("thresholds.critical_heap_mb", d.Thresholds.CriticalHeapMB)
	v.SetDefault("thresholds.warning_rss_mb", d.Thresholds.WarningRssMB)
	v.SetDefault("thresholds.critical_rss_mb", d.Thresholds.CriticalRssMB)

	v.SetDefault("sample_interval_ms", d.SampleIntervalMs)
	v.SetDefault("snapshot_interval_ms", d.SnapshotIntervalMs)
	v.SetDefault("snapshot_every_ticks", d.SnapshotEveryTicks)
	v.SetDefault("snapshot_capacity", d.SnapshotCapacity)
	v.SetDefault("history_capacity", d.HistoryCapacity)
	v.SetDefault("leak_window_ms", d.LeakWindowMs)
	v.SetDefault("trend_window_ms", d.TrendWindowMs)

	l := d.Leak
	v.SetDefault("leak.min_samples", l.MinSamples)
	v.SetDefault("leak.growth_window", l.GrowthWindow)
	v.SetDefault("leak.growth_max_drop_mb", l.GrowthMaxDropMB)
	v.SetDefault("leak.growth_min_avg_mb", l.GrowthMinAvgMB)
	v.SetDefault("leak.growth_weight", l.GrowthWeight)
	v.SetDefault("leak.stabilization_min_samples", l.StabilizationMinSamples)
	v.SetDefault("leak.stabilization_ratio", l.StabilizationRatio)
	v.SetDefault("leak.stabilization_weight", l.StabilizationWeight)
	v.SetDefault("leak.exponential_min_samples", l.ExponentialMinSamples)
	v.SetDefault("leak.exponential_factor", l.ExponentialFactor)
	v.SetDefault("leak.exponential_weight", l.ExponentialWeight)
	v.SetDefault("leak.accumulation_mb", l.AccumulationMB)
	v.SetDefault("leak.accumulation_weight", l.AccumulationWeight)

	v.SetDefault("measure.force_gc", d.Measure.ForceGC)
	v.SetDefault("measure.settle_ms", d.Measure.SettleMs)
	v.SetDefault("measure.settle_after_ms", d.Measure.SettleAfterMs)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.client_buffer", d.Server.ClientBuf)
	v.SetDefault("server.broadcast_buffer", d.Server.BroadcastBuf)

	v.SetDefault("export.dir", d.Export.Dir)
	v.SetDefault("export.formats", d.Export.Formats)
}
