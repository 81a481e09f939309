package motion

import (
	"time"

	"github.com/rafters-studio/motion-coordinator/internal/policy"
	"github.com/rafters-studio/motion-coordinator/internal/validation"
)

// #region trust
// TrustLevel records how far the requesting surface is trusted to animate.
type TrustLevel string

const (
	TrustLow    TrustLevel = "low"
	TrustMedium TrustLevel = "medium"
	TrustHigh   TrustLevel = "high"
)

// #endregion trust

// #region request
// Request asks for one animation. CognitiveLoad of 0 means "estimate it";
// once normalized the request carries its effective load and is never
// modified again.
type Request struct {
	ID               string // generated when empty
	SurfaceID        string
	Effect           policy.EffectType
	Duration         policy.DurationClass
	CustomDurationMs *int
	Priority         int
	CognitiveLoad    int
	Trust            TrustLevel
	Reducible        bool

	OnStart    func(id string)
	OnComplete func(id string)
	Cleanup    func(id string) // runs when an active animation is cancelled

	RequestedAt time.Time
}

// Active is an admitted animation.
type Active struct {
	Request        Request
	DurationMs     int
	StartedAt      time.Time
	EstimatedEndAt time.Time
}

// #endregion request

// #region budget
// Budget bounds concurrent motion. It can be changed at runtime via UpdateBudget.
type Budget struct {
	MaxConcurrentAnimations        int     `json:"max_concurrent_animations" yaml:"max_concurrent_animations" mapstructure:"max_concurrent_animations"`
	MaxTotalCognitiveLoad          int     `json:"max_total_cognitive_load" yaml:"max_total_cognitive_load" mapstructure:"max_total_cognitive_load"`
	FrameTimeBudgetMs              float64 `json:"frame_time_budget_ms" yaml:"frame_time_budget_ms" mapstructure:"frame_time_budget_ms"`
	GPUAccelerationEnabled         bool    `json:"gpu_acceleration_enabled" yaml:"gpu_acceleration_enabled" mapstructure:"gpu_acceleration_enabled"`
	RespectReducedMotionPreference bool    `json:"respect_reduced_motion_preference" yaml:"respect_reduced_motion_preference" mapstructure:"respect_reduced_motion_preference"`
}

// DefaultBudget returns a 60fps budget allowing three concurrent animations.
func DefaultBudget() Budget {
	return Budget{
		MaxConcurrentAnimations:        3,
		MaxTotalCognitiveLoad:          15,
		FrameTimeBudgetMs:              16.67,
		GPUAccelerationEnabled:         true,
		RespectReducedMotionPreference: true,
	}
}

// Validate checks every field against its allowed range.
func (b Budget) Validate() error {
	return validation.First(
		validation.IntRange("max_concurrent_animations", b.MaxConcurrentAnimations, 1, 5),
		validation.IntRange("max_total_cognitive_load", b.MaxTotalCognitiveLoad, 5, 20),
		validation.FloatRange("frame_time_budget_ms", b.FrameTimeBudgetMs, 8.33, 33.33),
	)
}

// BudgetPatch is a partial budget; nil fields keep their previous value.
type BudgetPatch struct {
	MaxConcurrentAnimations        *int     `json:"max_concurrent_animations,omitempty" yaml:"max_concurrent_animations,omitempty"`
	MaxTotalCognitiveLoad          *int     `json:"max_total_cognitive_load,omitempty" yaml:"max_total_cognitive_load,omitempty"`
	FrameTimeBudgetMs              *float64 `json:"frame_time_budget_ms,omitempty" yaml:"frame_time_budget_ms,omitempty"`
	GPUAccelerationEnabled         *bool    `json:"gpu_acceleration_enabled,omitempty" yaml:"gpu_acceleration_enabled,omitempty"`
	RespectReducedMotionPreference *bool    `json:"respect_reduced_motion_preference,omitempty" yaml:"respect_reduced_motion_preference,omitempty"`
}

// Merge returns b with every non-nil field of p applied.
func (b Budget) Merge(p BudgetPatch) Budget {
	if p.MaxConcurrentAnimations != nil {
		b.MaxConcurrentAnimations = *p.MaxConcurrentAnimations
	}
	if p.MaxTotalCognitiveLoad != nil {
		b.MaxTotalCognitiveLoad = *p.MaxTotalCognitiveLoad
	}
	if p.FrameTimeBudgetMs != nil {
		b.FrameTimeBudgetMs = *p.FrameTimeBudgetMs
	}
	if p.GPUAccelerationEnabled != nil {
		b.GPUAccelerationEnabled = *p.GPUAccelerationEnabled
	}
	if p.RespectReducedMotionPreference != nil {
		b.RespectReducedMotionPreference = *p.RespectReducedMotionPreference
	}
	return b
}

// #endregion budget

// #region config
// Config configures a Controller.
type Config struct {
	Budget Budget
	// SlackFactor is the share of each reducible lower-priority animation's
	// load counted as reclaimable when the budget is tight. 0 disables it.
	SlackFactor float64
	// HeadroomRatio is the load share at which MotionLevel reports reduced.
	HeadroomRatio float64
}

// DefaultConfig returns the reference controller configuration.
func DefaultConfig() Config {
	return Config{
		Budget:        DefaultBudget(),
		SlackFactor:   0.5,
		HeadroomRatio: 0.8,
	}
}

// #endregion config

// #region outcome
// Status is where a request ended up after RequestAnimation.
type Status string

const (
	StatusActive   Status = "active"
	StatusQueued   Status = "queued"
	StatusRejected Status = "rejected"
	StatusPaused   Status = "paused"
)

// Admission is the result of RequestAnimation. ID is empty unless the
// request was admitted or queued.
type Admission struct {
	ID            string
	Status        Status
	Reason        string
	Err           error
	CognitiveLoad int
	DurationMs    int
}

// Accepted reports whether the request holds an id (active or queued).
func (a Admission) Accepted() bool {
	return a.Status == StatusActive || a.Status == StatusQueued
}

// #endregion outcome

// #region level
// Level classifies how much motion the system currently permits.
type Level string

const (
	LevelFull    Level = "full"
	LevelReduced Level = "reduced"
	LevelNone    Level = "none"
)

// Environment carries runtime and user signals that feed MotionLevel.
type Environment struct {
	LowPerformance       bool
	PrefersReducedMotion bool
	MotionDisabled       bool // user asked for no motion at all
}

// #endregion level

// #region state
// State is a copy of the controller state.
type State struct {
	Active              map[string]Active
	Queue               []Request
	Budget              Budget
	CurrentLoad         int
	MotionPriorityOwner string
	Paused              bool
	// OverCap is how many active animations were grandfathered past a
	// lowered MaxConcurrentAnimations.
	OverCap int
}

// #endregion state
