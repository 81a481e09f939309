package audit

// #region audit-config
// Config controls which checks can fail an audit.
type Config struct {
	// StrictLoadCeiling makes controller load above MaxTotalCognitiveLoad a
	// failure. Slack admission can legitimately exceed it, so by default the
	// check is recorded but informational.
	StrictLoadCeiling bool
}

// DefaultConfig returns the audit configuration used by replay.
func DefaultConfig() Config {
	return Config{}
}

// #endregion audit-config

// #region check
// Check is a single invariant result.
type Check struct {
	Name     string `json:"name"`
	Value    int    `json:"value"`
	Expected int    `json:"expected"`
	Pass     bool   `json:"pass"`
	Blocking bool   `json:"blocking"`
}

// #endregion check

// #region result
// Result is the outcome of one audit.
type Result struct {
	Passed bool    `json:"passed"`
	Checks []Check `json:"checks"`
	Reason string  `json:"reason"`
}

// Failed returns the blocking checks that did not pass.
func (r Result) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if c.Blocking && !c.Pass {
			out = append(out, c)
		}
	}
	return out
}

// #endregion result
