// Package audit checks arbiter and controller snapshots against the
// invariants the engine must hold after every operation.
package audit

import (
	"fmt"

	"github.com/rafters-studio/motion-coordinator/internal/arbiter"
	"github.com/rafters-studio/motion-coordinator/internal/motion"
)

// #region auditor
// Auditor runs invariant checks on state snapshots.
type Auditor struct {
	config Config
}

// New creates an auditor with the given configuration.
func New(config Config) *Auditor {
	return &Auditor{config: config}
}

// Run checks a and m. ledgerLoad is the coordinator's total load, which must
// match what the controller holds.
func (au *Auditor) Run(a arbiter.State, m motion.State, ledgerLoad int) Result {
	var checks []Check
	add := func(name string, value, expected int, pass, blocking bool) {
		checks = append(checks, Check{Name: name, Value: value, Expected: expected, Pass: pass, Blocking: blocking})
	}

	// 1. Arbiter load is the sum of registered loads and within its limit
	arbiterSum := 0
	for _, r := range a.ActiveSurfaces {
		arbiterSum += r.CognitiveLoad
	}
	add("arbiter_load_conservation", a.CurrentLoad, arbiterSum, a.CurrentLoad == arbiterSum, true)
	add("arbiter_budget_ceiling", a.CurrentLoad, a.BudgetLimit, a.CurrentLoad <= a.BudgetLimit, true)

	// 2. Attention owner and focus stack only name registered surfaces
	ownerOK := 1
	if a.AttentionOwner != "" {
		if _, ok := a.ActiveSurfaces[a.AttentionOwner]; !ok {
			ownerOK = 0
		}
	}
	add("attention_owner_registered", ownerOK, 1, ownerOK == 1, true)

	strayFocus := 0
	for _, id := range a.FocusStack {
		if _, ok := a.ActiveSurfaces[id]; !ok {
			strayFocus++
		}
	}
	add("focus_stack_registered", strayFocus, 0, strayFocus == 0, true)

	// 3. Controller load is the sum of active loads and matches the ledger
	controllerSum := 0
	for _, act := range m.Active {
		controllerSum += act.Request.CognitiveLoad
	}
	add("controller_load_conservation", m.CurrentLoad, controllerSum, m.CurrentLoad == controllerSum, true)
	add("coordinator_ledger_match", ledgerLoad, m.CurrentLoad, ledgerLoad == m.CurrentLoad, true)
	add("controller_load_ceiling", m.CurrentLoad, m.Budget.MaxTotalCognitiveLoad,
		m.CurrentLoad <= m.Budget.MaxTotalCognitiveLoad, au.config.StrictLoadCeiling)

	// 4. Concurrency cap and queue purity. Animations still running from
	// before a cap was lowered are allowed until they finish.
	capLimit := m.Budget.MaxConcurrentAnimations + m.OverCap
	add("concurrency_cap", len(m.Active), capLimit, len(m.Active) <= capLimit, true)

	overlap := 0
	seen := make(map[string]bool, len(m.Queue))
	for _, q := range m.Queue {
		if _, ok := m.Active[q.ID]; ok || seen[q.ID] {
			overlap++
		}
		seen[q.ID] = true
	}
	add("queue_purity", overlap, 0, overlap == 0, true)

	passed := true
	var failReasons []string
	for _, c := range checks {
		if c.Blocking && !c.Pass {
			passed = false
			failReasons = append(failReasons, fmt.Sprintf("%s: got %d, want %d", c.Name, c.Value, c.Expected))
		}
	}

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("audit failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("audit failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return Result{
		Passed: passed,
		Checks: checks,
		Reason: reason,
	}
}

// #endregion auditor
