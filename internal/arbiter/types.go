package arbiter

import "github.com/rafters-studio/motion-coordinator/internal/priority"

// #region registration
// Registration is a mounted surface's claim on the attention budget.
// Priority is derived from Type by Register; callers leave it zero.
type Registration struct {
	ID            string
	Type          priority.SurfaceType
	Priority      int
	CognitiveLoad int
}

const (
	MinLoad = 1
	MaxLoad = 10
)

// #endregion registration

// #region config
// Config holds arbiter limits.
type Config struct {
	BudgetLimit int // ceiling on the sum of registered loads
}

// DefaultConfig returns the reference limits.
func DefaultConfig() Config {
	return Config{BudgetLimit: 15}
}

// #endregion config

// #region reason
// Reason explains a refused operation.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonInvalid        Reason = "invalid"
	ReasonDuplicate      Reason = "duplicate_id"
	ReasonBudgetExceeded Reason = "budget_exceeded"
	ReasonUnknownID      Reason = "unknown_id"
	ReasonOutranked      Reason = "outranked"
	ReasonNotOwner       Reason = "not_owner"
)

// #endregion reason

// #region state
// State is a copy of the arbiter's internal state.
type State struct {
	ActiveSurfaces map[string]Registration
	FocusStack     []string
	AttentionOwner string // empty when nobody owns attention
	BudgetLimit    int
	CurrentLoad    int
}

// Result is returned by every mutating operation. State reflects the arbiter
// after the operation; on refusal it is unchanged from before.
type Result struct {
	OK     bool
	Reason Reason
	Err    error // set for ReasonInvalid
	State  State
}

// #endregion state
