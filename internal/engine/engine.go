// Package engine assembles the coordinator, arbiter, policy and admission
// controller from configuration and wires the journal and metrics observers.
package engine

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rafters-studio/motion-coordinator/internal/arbiter"
	"github.com/rafters-studio/motion-coordinator/internal/audit"
	"github.com/rafters-studio/motion-coordinator/internal/clock"
	"github.com/rafters-studio/motion-coordinator/internal/config"
	"github.com/rafters-studio/motion-coordinator/internal/coordinator"
	"github.com/rafters-studio/motion-coordinator/internal/journal"
	"github.com/rafters-studio/motion-coordinator/internal/metrics"
	"github.com/rafters-studio/motion-coordinator/internal/motion"
	"github.com/rafters-studio/motion-coordinator/internal/policy"
	"github.com/rafters-studio/motion-coordinator/internal/surface"
)

// #region options
// Options carries runtime dependencies that do not belong in config.
type Options struct {
	Clock      clock.Clock           // nil means wall-clock time
	Registerer prometheus.Registerer // nil disables metrics
	Logger     zerolog.Logger
	// JournalDSN overrides config.Journal.DSN when non-empty.
	JournalDSN string
}

// #endregion options

// #region engine
// Engine is one session's worth of coordination state.
type Engine struct {
	Policy      *policy.Policy
	Coordinator *coordinator.Coordinator
	Arbiter     *arbiter.Arbiter
	Controller  *motion.Controller
	Journal     *journal.Store   // nil when disabled
	Metrics     *metrics.Metrics // nil when disabled

	clock   clock.Clock
	auditor *audit.Auditor
	logger  zerolog.Logger
}

// New validates cfg and builds an engine.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewReal()
	}
	logger := opts.Logger

	e := &Engine{
		Policy:      policy.New(cfg.PolicySettings()),
		Coordinator: coordinator.New(cfg.CoordinatorSettings(), logger),
		Arbiter:     arbiter.New(cfg.ArbiterSettings(), logger),
		clock:       clk,
		auditor:     audit.New(audit.DefaultConfig()),
		logger:      logger.With().Str("component", "engine").Logger(),
	}
	e.Arbiter.SetTimeSource(clk.Now)

	ctrl, err := motion.New(cfg.MotionSettings(), e.Policy, e.Coordinator, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("engine controller: %w", err)
	}
	e.Controller = ctrl

	if cfg.Journal.Enabled {
		dsn := cfg.Journal.DSN
		if opts.JournalDSN != "" {
			dsn = opts.JournalDSN
		}
		store, err := journal.Open(dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("engine journal: %w", err)
		}
		e.Journal = store
		e.Arbiter.Subscribe(store)
		e.Controller.Subscribe(store)
	}

	if cfg.Metrics.Enabled && opts.Registerer != nil {
		e.Metrics = metrics.New(opts.Registerer, e.sample)
		e.Arbiter.Subscribe(e.Metrics)
		e.Controller.Subscribe(e.Metrics)
		e.Metrics.Refresh()
	}

	e.logger.Debug().
		Int("arbiter_limit", cfg.Arbiter.BudgetLimit).
		Int("load_cap", cfg.Coordinator.LoadCap).
		Int("max_concurrent", cfg.Budget.MaxConcurrentAnimations).
		Int("max_load", cfg.Budget.MaxTotalCognitiveLoad).
		Bool("journal", e.Journal != nil).
		Bool("metrics", e.Metrics != nil).
		Msg("engine ready")
	return e, nil
}

// Clock returns the engine's time source.
func (e *Engine) Clock() clock.Clock {
	return e.clock
}

// Close releases the journal.
func (e *Engine) Close() error {
	var errs []error
	if e.Journal != nil {
		if err := e.Journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}
	return errors.Join(errs...)
}

// #endregion engine

// #region surfaces
// Mount registers a surface with this engine's arbiter and controller.
func (e *Engine) Mount(spec surface.Spec) (*surface.Surface, arbiter.Result) {
	return surface.Mount(surface.Deps{
		Arbiter:     e.Arbiter,
		Controller:  e.Controller,
		Coordinator: e.Coordinator,
		Logger:      e.logger,
	}, spec)
}

// #endregion surfaces

// #region controls
// Pause stops new admissions until Resume.
func (e *Engine) Pause() {
	e.Controller.PauseMotion()
}

// Resume re-enables admissions and drains the queue.
func (e *Engine) Resume() {
	e.Controller.ResumeMotion()
}

// UpdateBudget applies a partial budget to the controller.
func (e *Engine) UpdateBudget(patch motion.BudgetPatch) error {
	return e.Controller.UpdateBudget(patch)
}

// #endregion controls

// #region snapshot
// Snapshot is a consistent-enough view of every component for reporting.
// Each component is copied under its own lock.
type Snapshot struct {
	Arbiter    arbiter.State
	Controller motion.State
	Ledger     []coordinator.Entry
	LedgerLoad int
	Level      motion.Level
}

// Snapshot copies the state of every component.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Arbiter:    e.Arbiter.State(),
		Controller: e.Controller.State(),
		Ledger:     e.Coordinator.Entries(),
		LedgerLoad: e.Coordinator.TotalLoad(),
		Level:      e.Controller.MotionLevel(),
	}
}

// Audit checks the current snapshot against the engine invariants.
func (e *Engine) Audit() audit.Result {
	s := e.Snapshot()
	return e.auditor.Run(s.Arbiter, s.Controller, s.LedgerLoad)
}

func (e *Engine) sample() metrics.Sample {
	a := e.Arbiter.State()
	c := e.Controller.State()
	return metrics.Sample{
		ArbiterLoad:    a.CurrentLoad,
		ControllerLoad: c.CurrentLoad,
		Active:         len(c.Active),
		Queued:         len(c.Queue),
		Paused:         c.Paused,
	}
}

// #endregion snapshot
