package motion

import (
	"github.com/rafters-studio/motion-coordinator/internal/policy"
	"github.com/rafters-studio/motion-coordinator/internal/priority"
	"github.com/rafters-studio/motion-coordinator/internal/validation"
)

// ValidateRequest checks a request's field constraints. A zero CognitiveLoad
// is allowed and means the load will be estimated.
func ValidateRequest(r Request) error {
	if err := validation.Required("surface_id", r.SurfaceID); err != nil {
		return err
	}
	if err := validation.Required("effect", string(r.Effect)); err != nil {
		return err
	}
	if !policy.ValidDurationClass(r.Duration) {
		return &validation.Error{Field: "duration", Value: r.Duration, Reason: "unknown duration class"}
	}
	if r.Duration == policy.Custom && r.CustomDurationMs != nil {
		if err := validation.IntRange("custom_duration_ms", *r.CustomDurationMs, 0, policy.MaxCustomDurationMs); err != nil {
			return err
		}
	}
	if err := validation.IntRange("priority", r.Priority, priority.Highest, priority.Lowest); err != nil {
		return err
	}
	if r.CognitiveLoad != 0 {
		if err := validation.IntRange("cognitive_load", r.CognitiveLoad, 1, 10); err != nil {
			return err
		}
	}
	switch r.Trust {
	case "", TrustLow, TrustMedium, TrustHigh:
	default:
		return &validation.Error{Field: "trust", Value: r.Trust, Reason: "unknown trust level"}
	}
	return nil
}
