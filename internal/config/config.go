// Package config loads engine configuration from YAML and MOTION_* environment
// variables.
package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/rafters-studio/motion-coordinator/internal/arbiter"
	"github.com/rafters-studio/motion-coordinator/internal/coordinator"
	"github.com/rafters-studio/motion-coordinator/internal/motion"
	"github.com/rafters-studio/motion-coordinator/internal/policy"
	"github.com/rafters-studio/motion-coordinator/internal/validation"
)

// EnvPrefix prefixes every environment override, e.g. MOTION_BUDGET_MAX_TOTAL_COGNITIVE_LOAD.
const EnvPrefix = "MOTION"

// #region types
// Config holds all engine configuration.
type Config struct {
	Arbiter     ArbiterConfig     `mapstructure:"arbiter" yaml:"arbiter"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator" yaml:"coordinator"`
	Budget      motion.Budget     `mapstructure:"budget" yaml:"budget"`
	Policy      PolicyConfig      `mapstructure:"policy" yaml:"policy"`
	Journal     JournalConfig     `mapstructure:"journal" yaml:"journal"`
	Control     ControlConfig     `mapstructure:"control" yaml:"control"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// ArbiterConfig configures the attention arbiter.
type ArbiterConfig struct {
	BudgetLimit int `mapstructure:"budget_limit" yaml:"budget_limit"`
}

// CoordinatorConfig configures the global priority coordinator.
type CoordinatorConfig struct {
	LoadCap int `mapstructure:"load_cap" yaml:"load_cap"`
}

// PolicyConfig configures the cost model and the controller heuristics.
type PolicyConfig struct {
	DurationsMs       map[string]int     `mapstructure:"durations_ms" yaml:"durations_ms"`
	Multipliers       map[string]float64 `mapstructure:"multipliers" yaml:"multipliers"`
	BaseLoad          float64            `mapstructure:"base_load" yaml:"base_load"`
	LongThresholdMs   int                `mapstructure:"long_threshold_ms" yaml:"long_threshold_ms"`
	MediumThresholdMs int                `mapstructure:"medium_threshold_ms" yaml:"medium_threshold_ms"`
	SlackFactor       float64            `mapstructure:"slack_factor" yaml:"slack_factor"`
	HeadroomRatio     float64            `mapstructure:"headroom_ratio" yaml:"headroom_ratio"`
}

// JournalConfig configures the decision journal. An empty DSN keeps it in memory.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

// ControlConfig configures the gRPC control service.
type ControlConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // zerolog level name
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

// #endregion types

// #region defaults
// DefaultConfig returns a complete, valid configuration.
func DefaultConfig() *Config {
	pol := policy.DefaultConfig()
	durations := make(map[string]int, len(pol.DurationsMs))
	for k, v := range pol.DurationsMs {
		durations[string(k)] = v
	}
	multipliers := make(map[string]float64, len(pol.Multipliers))
	for k, v := range pol.Multipliers {
		multipliers[string(k)] = v
	}
	ctrl := motion.DefaultConfig()

	return &Config{
		Arbiter:     ArbiterConfig{BudgetLimit: arbiter.DefaultConfig().BudgetLimit},
		Coordinator: CoordinatorConfig{LoadCap: coordinator.DefaultLoadCap},
		Budget:      motion.DefaultBudget(),
		Policy: PolicyConfig{
			DurationsMs:       durations,
			Multipliers:       multipliers,
			BaseLoad:          pol.BaseLoad,
			LongThresholdMs:   pol.LongThresholdMs,
			MediumThresholdMs: pol.MediumThresholdMs,
			SlackFactor:       ctrl.SlackFactor,
			HeadroomRatio:     ctrl.HeadroomRatio,
		},
		Journal: JournalConfig{Enabled: true, DSN: ":memory:"},
		Control: ControlConfig{Address: "127.0.0.1:7420"},
		Metrics: MetricsConfig{Enabled: true, Address: "127.0.0.1:9420"},
		Log:     LogConfig{Level: "info", Format: "console"},
	}
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("arbiter.budget_limit", c.Arbiter.BudgetLimit)
	v.SetDefault("coordinator.load_cap", c.Coordinator.LoadCap)
	v.SetDefault("budget.max_concurrent_animations", c.Budget.MaxConcurrentAnimations)
	v.SetDefault("budget.max_total_cognitive_load", c.Budget.MaxTotalCognitiveLoad)
	v.SetDefault("budget.frame_time_budget_ms", c.Budget.FrameTimeBudgetMs)
	v.SetDefault("budget.gpu_acceleration_enabled", c.Budget.GPUAccelerationEnabled)
	v.SetDefault("budget.respect_reduced_motion_preference", c.Budget.RespectReducedMotionPreference)
	v.SetDefault("policy.base_load", c.Policy.BaseLoad)
	v.SetDefault("policy.long_threshold_ms", c.Policy.LongThresholdMs)
	v.SetDefault("policy.medium_threshold_ms", c.Policy.MediumThresholdMs)
	v.SetDefault("policy.slack_factor", c.Policy.SlackFactor)
	v.SetDefault("policy.headroom_ratio", c.Policy.HeadroomRatio)
	v.SetDefault("journal.enabled", c.Journal.Enabled)
	v.SetDefault("journal.dsn", c.Journal.DSN)
	v.SetDefault("control.address", c.Control.Address)
	v.SetDefault("metrics.enabled", c.Metrics.Enabled)
	v.SetDefault("metrics.address", c.Metrics.Address)
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.format", c.Log.Format)
}

// #endregion defaults

// #region load
// Load reads path (if non-empty) on top of the defaults, applies MOTION_*
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// #endregion load

// #region validate
// Validate checks every section. Errors match validation.ErrInvalid.
func (c *Config) Validate() error {
	if err := validation.First(
		validation.IntRange("arbiter.budget_limit", c.Arbiter.BudgetLimit, 1, 1000),
		validation.IntRange("coordinator.load_cap", c.Coordinator.LoadCap, 1, 1000),
		c.Budget.Validate(),
		validation.FloatRange("policy.base_load", c.Policy.BaseLoad, 0, 10),
		validation.FloatRange("policy.slack_factor", c.Policy.SlackFactor, 0, 1),
		validation.FloatRange("policy.headroom_ratio", c.Policy.HeadroomRatio, 0.01, 1),
	); err != nil {
		return err
	}
	if c.Policy.MediumThresholdMs > c.Policy.LongThresholdMs {
		return &validation.Error{Field: "policy.medium_threshold_ms", Value: c.Policy.MediumThresholdMs, Reason: "must not exceed long_threshold_ms"}
	}
	for k, ms := range c.Policy.DurationsMs {
		if !policy.ValidDurationClass(policy.DurationClass(k)) || policy.DurationClass(k) == policy.Custom {
			return &validation.Error{Field: "policy.durations_ms", Value: k, Reason: "unknown duration class"}
		}
		if err := validation.IntRange("policy.durations_ms."+k, ms, 0, policy.MaxCustomDurationMs); err != nil {
			return err
		}
	}
	for k, m := range c.Policy.Multipliers {
		if err := validation.FloatRange("policy.multipliers."+k, m, 0.1, 10); err != nil {
			return err
		}
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return &validation.Error{Field: "log.level", Value: c.Log.Level, Reason: "unknown level"}
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return &validation.Error{Field: "log.format", Value: c.Log.Format, Reason: "must be console or json"}
	}
	return nil
}

// #endregion validate

// #region conversions
// PolicySettings returns the cost model, keeping reference values for anything
// the file does not set.
func (c *Config) PolicySettings() policy.Config {
	pol := policy.DefaultConfig()
	for k, v := range c.Policy.DurationsMs {
		pol.DurationsMs[policy.DurationClass(k)] = v
	}
	for k, v := range c.Policy.Multipliers {
		pol.Multipliers[policy.EffectType(k)] = v
	}
	pol.BaseLoad = c.Policy.BaseLoad
	pol.LongThresholdMs = c.Policy.LongThresholdMs
	pol.MediumThresholdMs = c.Policy.MediumThresholdMs
	return pol
}

// MotionSettings returns the admission controller configuration.
func (c *Config) MotionSettings() motion.Config {
	return motion.Config{
		Budget:        c.Budget,
		SlackFactor:   c.Policy.SlackFactor,
		HeadroomRatio: c.Policy.HeadroomRatio,
	}
}

// ArbiterSettings returns the attention arbiter configuration.
func (c *Config) ArbiterSettings() arbiter.Config {
	return arbiter.Config{BudgetLimit: c.Arbiter.BudgetLimit}
}

// CoordinatorSettings returns the coordinator configuration.
func (c *Config) CoordinatorSettings() coordinator.Config {
	return coordinator.Config{LoadCap: c.Coordinator.LoadCap}
}

// #endregion conversions
