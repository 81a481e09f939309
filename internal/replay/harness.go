// Package replay runs scripted scenarios against a fresh engine on virtual
// time, auditing invariants after every step.
package replay

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rafters-studio/motion-coordinator/internal/arbiter"
	"github.com/rafters-studio/motion-coordinator/internal/audit"
	"github.com/rafters-studio/motion-coordinator/internal/clock"
	"github.com/rafters-studio/motion-coordinator/internal/engine"
)

// Epoch is the virtual start time of every replay.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Outcome strings shared by several ops.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
)

// #region types
// Options controls side outputs of a replay.
type Options struct {
	Logger zerolog.Logger
	// JournalDSN, when set, records every decision of the run there.
	JournalDSN string
	Registerer prometheus.Registerer
}

// StepResult captures the outcome of one step.
type StepResult struct {
	Index      int
	Op         Op
	Outcome    string
	Expected   string
	Match      bool
	Mismatches []string
	Audit      audit.Result
	At         time.Duration // virtual time since Epoch after the step
}

// Report is the full output of Replay.
type Report struct {
	Description string
	Results     []StepResult
	Final       engine.Snapshot
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalSteps    int
	Mismatches    int
	AuditFailures int
	Outcomes      map[string]int // keyed by "op:outcome"
	Passed        bool
}

// #endregion types

// #region replay
// Replay runs every step of f against a new engine. Each step's outcome is
// compared against its Expect and Then fields and the engine is audited after
// the step. Mismatches do not stop the run.
func Replay(f *Fixture, opts Options) (*Report, error) {
	cfg := f.Config.ToConfig()
	if opts.JournalDSN != "" {
		cfg.Journal.Enabled = true
		cfg.Journal.DSN = opts.JournalDSN
	}
	if opts.Registerer != nil {
		cfg.Metrics.Enabled = true
	}

	clk := clock.NewManual(Epoch)
	eng, err := engine.New(cfg, engine.Options{
		Clock:      clk,
		Registerer: opts.Registerer,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("replay engine: %w", err)
	}
	defer eng.Close()

	results := make([]StepResult, 0, len(f.Steps))
	for i, step := range f.Steps {
		outcome := apply(eng, clk, step)

		r := StepResult{
			Index:    i,
			Op:       step.Op,
			Outcome:  outcome,
			Expected: step.Expect,
			Match:    true,
			Audit:    eng.Audit(),
			At:       clk.Now().Sub(Epoch),
		}
		if step.Expect != "" && step.Expect != outcome {
			r.Mismatches = append(r.Mismatches, fmt.Sprintf("outcome %q, want %q", outcome, step.Expect))
		}
		if step.Then != nil {
			r.Mismatches = append(r.Mismatches, checkExpectation(eng.Snapshot(), *step.Then)...)
		}
		r.Match = len(r.Mismatches) == 0
		results = append(results, r)
	}

	return &Report{
		Description: f.Description,
		Results:     results,
		Final:       eng.Snapshot(),
	}, nil
}

// apply runs one step and returns its outcome string.
func apply(eng *engine.Engine, clk *clock.Manual, s Step) string {
	switch s.Op {
	case OpRegister:
		return resultOutcome(eng.Arbiter.Register(arbiter.Registration{ID: s.ID, Type: s.Type, CognitiveLoad: s.Load}))
	case OpUnregister:
		return resultOutcome(eng.Arbiter.Unregister(s.ID))
	case OpRequestAttention:
		return resultOutcome(eng.Arbiter.RequestAttention(s.ID))
	case OpReleaseAttention:
		return resultOutcome(eng.Arbiter.ReleaseAttention(s.ID))
	case OpPushFocus:
		return resultOutcome(eng.Arbiter.PushFocus(s.ID))
	case OpPopFocus:
		if id, ok := eng.Arbiter.PopFocus(); ok {
			return id
		}
		return OutcomeEmpty
	case OpAnimate:
		return string(eng.Controller.RequestAnimation(s.ToRequest()).Status)
	case OpCancel:
		return strconv.FormatBool(eng.Controller.CancelAnimation(s.ID))
	case OpCancelSurface:
		surface := s.Surface
		if surface == "" {
			surface = s.ID
		}
		return strconv.Itoa(eng.Controller.CancelAnimationsForMenu(surface))
	case OpAdvance:
		clk.Advance(time.Duration(s.Ms) * time.Millisecond)
		return OutcomeOK
	case OpPause:
		eng.Controller.PauseMotion()
		return OutcomeOK
	case OpResume:
		eng.Controller.ResumeMotion()
		return OutcomeOK
	case OpUpdateBudget:
		if s.Budget == nil {
			return "invalid"
		}
		if err := eng.Controller.UpdateBudget(*s.Budget); err != nil {
			return "invalid"
		}
		return OutcomeOK
	}
	return "unknown_op"
}

func resultOutcome(r arbiter.Result) string {
	if r.OK {
		return OutcomeOK
	}
	return string(r.Reason)
}

func checkExpectation(s engine.Snapshot, want Expectation) []string {
	var out []string
	if want.Active != nil {
		got := make([]string, 0, len(s.Controller.Active))
		for id := range s.Controller.Active {
			got = append(got, id)
		}
		sort.Strings(got)
		exp := append([]string(nil), want.Active...)
		sort.Strings(exp)
		if !slices.Equal(got, exp) {
			out = append(out, fmt.Sprintf("active %v, want %v", got, exp))
		}
	}
	if want.Queued != nil {
		got := make([]string, len(s.Controller.Queue))
		for i, q := range s.Controller.Queue {
			got[i] = q.ID
		}
		if !slices.Equal(got, want.Queued) {
			out = append(out, fmt.Sprintf("queued %v, want %v", got, want.Queued))
		}
	}
	if want.ControllerLoad != nil && *want.ControllerLoad != s.Controller.CurrentLoad {
		out = append(out, fmt.Sprintf("controller load %d, want %d", s.Controller.CurrentLoad, *want.ControllerLoad))
	}
	if want.ArbiterLoad != nil && *want.ArbiterLoad != s.Arbiter.CurrentLoad {
		out = append(out, fmt.Sprintf("arbiter load %d, want %d", s.Arbiter.CurrentLoad, *want.ArbiterLoad))
	}
	if want.Owner != nil && *want.Owner != s.Arbiter.AttentionOwner {
		out = append(out, fmt.Sprintf("owner %q, want %q", s.Arbiter.AttentionOwner, *want.Owner))
	}
	if want.Level != "" && want.Level != string(s.Level) {
		out = append(out, fmt.Sprintf("level %q, want %q", s.Level, want.Level))
	}
	return out
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []StepResult) Summary {
	s := Summary{
		TotalSteps: len(results),
		Outcomes:   make(map[string]int),
	}
	for _, r := range results {
		s.Outcomes[string(r.Op)+":"+r.Outcome]++
		if !r.Match {
			s.Mismatches++
		}
		if !r.Audit.Passed {
			s.AuditFailures++
		}
	}
	s.Passed = s.Mismatches == 0 && s.AuditFailures == 0
	return s
}

// #endregion replay
