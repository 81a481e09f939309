package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rafters-studio/motion-coordinator/internal/config"
	"github.com/rafters-studio/motion-coordinator/internal/motion"
	"github.com/rafters-studio/motion-coordinator/internal/policy"
	"github.com/rafters-studio/motion-coordinator/internal/priority"
)

// #region fixture-types

// Fixture is the top-level structure of a replay scenario.
type Fixture struct {
	Description string        `json:"description" yaml:"description"`
	Config      FixtureConfig `json:"config" yaml:"config"`
	Steps       []Step        `json:"steps" yaml:"steps"`
}

// FixtureConfig overrides engine defaults for one scenario. Zero values keep
// the default.
type FixtureConfig struct {
	ArbiterLimit int                 `json:"arbiter_limit,omitempty" yaml:"arbiter_limit,omitempty"`
	LoadCap      int                 `json:"load_cap,omitempty" yaml:"load_cap,omitempty"`
	Budget       *motion.BudgetPatch `json:"budget,omitempty" yaml:"budget,omitempty"`
	SlackFactor  *float64            `json:"slack_factor,omitempty" yaml:"slack_factor,omitempty"`
}

// Op names a step operation.
type Op string

const (
	OpRegister         Op = "register"
	OpUnregister       Op = "unregister"
	OpRequestAttention Op = "request_attention"
	OpReleaseAttention Op = "release_attention"
	OpPushFocus        Op = "push_focus"
	OpPopFocus         Op = "pop_focus"
	OpAnimate          Op = "animate"
	OpCancel           Op = "cancel"
	OpCancelSurface    Op = "cancel_surface"
	OpAdvance          Op = "advance"
	OpPause            Op = "pause"
	OpResume           Op = "resume"
	OpUpdateBudget     Op = "update_budget"
)

// Step is one operation. Which fields apply depends on Op: register uses
// ID/Type/Load, animate uses ID (the animation id)/Surface/Effect/Duration and
// friends, advance uses Ms, update_budget uses Budget.
type Step struct {
	Op        Op                   `json:"op" yaml:"op"`
	ID        string               `json:"id,omitempty" yaml:"id,omitempty"`
	Type      priority.SurfaceType `json:"type,omitempty" yaml:"type,omitempty"`
	Load      int                  `json:"load,omitempty" yaml:"load,omitempty"`
	Surface   string               `json:"surface,omitempty" yaml:"surface,omitempty"`
	Effect    policy.EffectType    `json:"effect,omitempty" yaml:"effect,omitempty"`
	Duration  policy.DurationClass `json:"duration,omitempty" yaml:"duration,omitempty"`
	CustomMs  *int                 `json:"custom_ms,omitempty" yaml:"custom_ms,omitempty"`
	Priority  int                  `json:"priority,omitempty" yaml:"priority,omitempty"`
	Reducible bool                 `json:"reducible,omitempty" yaml:"reducible,omitempty"`
	Ms        int                  `json:"ms,omitempty" yaml:"ms,omitempty"`
	Budget    *motion.BudgetPatch  `json:"budget,omitempty" yaml:"budget,omitempty"`

	// Expect is the expected outcome string; empty means "don't care".
	Expect string `json:"expect,omitempty" yaml:"expect,omitempty"`
	// Then holds optional assertions on state after the step.
	Then *Expectation `json:"then,omitempty" yaml:"then,omitempty"`
}

// Expectation asserts on engine state after a step. Nil fields are skipped.
type Expectation struct {
	Active         []string `json:"active,omitempty" yaml:"active,omitempty"`
	Queued         []string `json:"queued,omitempty" yaml:"queued,omitempty"`
	ControllerLoad *int     `json:"controller_load,omitempty" yaml:"controller_load,omitempty"`
	ArbiterLoad    *int     `json:"arbiter_load,omitempty" yaml:"arbiter_load,omitempty"`
	Owner          *string  `json:"owner,omitempty" yaml:"owner,omitempty"`
	Level          string   `json:"level,omitempty" yaml:"level,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads a fixture file. .yaml and .yml files are parsed as YAML,
// anything else as JSON.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	f, err := ParseFixture(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

// ParseFixture decodes data as "json" or "yaml".
func ParseFixture(data []byte, format string) (*Fixture, error) {
	var f Fixture
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, err
		}
	case "json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown fixture format %q", format)
	}
	for i, s := range f.Steps {
		if !knownOp(s.Op) {
			return nil, fmt.Errorf("step %d: unknown op %q", i, s.Op)
		}
	}
	return &f, nil
}

func knownOp(op Op) bool {
	switch op {
	case OpRegister, OpUnregister, OpRequestAttention, OpReleaseAttention,
		OpPushFocus, OpPopFocus, OpAnimate, OpCancel, OpCancelSurface,
		OpAdvance, OpPause, OpResume, OpUpdateBudget:
		return true
	}
	return false
}

// ToConfig applies the fixture overrides on top of the engine defaults.
func (fc *FixtureConfig) ToConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Journal.Enabled = false
	cfg.Metrics.Enabled = false
	if fc.ArbiterLimit > 0 {
		cfg.Arbiter.BudgetLimit = fc.ArbiterLimit
	}
	if fc.LoadCap > 0 {
		cfg.Coordinator.LoadCap = fc.LoadCap
	}
	if fc.Budget != nil {
		cfg.Budget = cfg.Budget.Merge(*fc.Budget)
	}
	if fc.SlackFactor != nil {
		cfg.Policy.SlackFactor = *fc.SlackFactor
	}
	return cfg
}

// ToRequest converts an animate step to a controller request.
func (s *Step) ToRequest() motion.Request {
	return motion.Request{
		ID:               s.ID,
		SurfaceID:        s.Surface,
		Effect:           s.Effect,
		Duration:         s.Duration,
		CustomDurationMs: s.CustomMs,
		Priority:         s.Priority,
		CognitiveLoad:    s.Load,
		Reducible:        s.Reducible,
	}
}

// #endregion fixture-loader
