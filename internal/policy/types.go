package policy

// #region duration-class
// DurationClass is the coarse speed bucket an animation asks for.
type DurationClass string

const (
	Instant  DurationClass = "instant"
	Fast     DurationClass = "fast"
	Standard DurationClass = "standard"
	Slow     DurationClass = "slow"
	Custom   DurationClass = "custom"
)

// MaxCustomDurationMs bounds custom durations.
const MaxCustomDurationMs = 2000

// ValidDurationClass reports whether c is one of the known classes.
func ValidDurationClass(c DurationClass) bool {
	switch c {
	case Instant, Fast, Standard, Slow, Custom:
		return true
	}
	return false
}

// #endregion duration-class

// #region effect-type
// EffectType names the visual effect an animation performs.
type EffectType string

const (
	Fade   EffectType = "fade"
	Slide  EffectType = "slide"
	Move   EffectType = "move"
	Scale  EffectType = "scale"
	Bounce EffectType = "bounce"
	Enter  EffectType = "enter"
	Exit   EffectType = "exit"
)

// #endregion effect-type

// #region policy-config
// Config holds the tunable constants of the cost model. The values are
// empirically chosen heuristics; keep them configurable.
type Config struct {
	DurationsMs       map[DurationClass]int // instant/fast/standard/slow lookup
	Multipliers       map[EffectType]float64
	DefaultMultiplier float64 // effects missing from Multipliers
	BaseLoad          float64
	LongThresholdMs   int // durations above this add LongPenalty
	LongPenalty       float64
	MediumThresholdMs int // durations above this (but not long) add MediumPenalty
	MediumPenalty     float64
	PriorityPivot     int     // priorities below the pivot add headroom
	PriorityWeight    float64 // headroom per priority step below the pivot
	MaxLoad           float64
}

// DefaultConfig returns the reference cost model.
func DefaultConfig() Config {
	return Config{
		DurationsMs: map[DurationClass]int{
			Instant:  0,
			Fast:     150,
			Standard: 300,
			Slow:     500,
		},
		Multipliers: map[EffectType]float64{
			Fade:   1,
			Slide:  1.5,
			Move:   1.5,
			Scale:  2,
			Bounce: 3,
			Enter:  1.2,
			Exit:   1,
		},
		DefaultMultiplier: 1,
		BaseLoad:          2,
		LongThresholdMs:   400,
		LongPenalty:       2,
		MediumThresholdMs: 200,
		MediumPenalty:     1,
		PriorityPivot:     5,
		PriorityWeight:    0.5,
		MaxLoad:           10,
	}
}

// #endregion policy-config
