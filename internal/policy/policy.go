package policy

import "math"

// #region policy
// Policy estimates how long an effect runs and how much cognitive budget it costs.
// It is pure: the same inputs always produce the same outputs.
type Policy struct {
	config Config
}

// New creates a policy with the given cost model.
func New(config Config) *Policy {
	return &Policy{config: config}
}

// Default creates a policy with DefaultConfig.
func Default() *Policy {
	return New(DefaultConfig())
}

// Config returns a copy of the active cost model.
func (p *Policy) Config() Config {
	return p.config
}

// #endregion policy

// #region estimate-duration
// EstimateDuration maps a duration class to milliseconds. Custom classes use
// customMs and fall back to the standard duration when customMs is nil.
func (p *Policy) EstimateDuration(class DurationClass, customMs *int) int {
	if class == Custom {
		if customMs != nil {
			return *customMs
		}
		return p.config.DurationsMs[Standard]
	}
	if d, ok := p.config.DurationsMs[class]; ok {
		return d
	}
	return p.config.DurationsMs[Standard]
}

// #endregion estimate-duration

// #region estimate-load
// EstimateCognitiveLoad scores an effect on the [0, MaxLoad] scale:
// base * multiplier, plus a duration penalty, plus priority headroom.
func (p *Policy) EstimateCognitiveLoad(effect EffectType, durationMs int, prio int) int {
	mult, ok := p.config.Multipliers[effect]
	if !ok {
		mult = p.config.DefaultMultiplier
	}
	load := p.config.BaseLoad * mult

	switch {
	case durationMs > p.config.LongThresholdMs:
		load += p.config.LongPenalty
	case durationMs > p.config.MediumThresholdMs:
		load += p.config.MediumPenalty
	}

	// Lower priority numbers absorb more headroom on purpose.
	if steps := p.config.PriorityPivot - prio; steps > 0 {
		load += float64(steps) * p.config.PriorityWeight
	}

	return int(clamp(math.Round(load), 0, p.config.MaxLoad))
}

// #endregion estimate-load

// #region helpers
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion helpers
