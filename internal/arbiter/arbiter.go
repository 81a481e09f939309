// Package arbiter decides which mounted surface owns the user's attention and
// enforces the shared cognitive-load budget across registered surfaces.
package arbiter

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rafters-studio/motion-coordinator/internal/events"
	"github.com/rafters-studio/motion-coordinator/internal/priority"
	"github.com/rafters-studio/motion-coordinator/internal/validation"
)

// #region arbiter
// Arbiter owns the set of registered surfaces, the focus stack and the single
// attention owner. All methods are safe for concurrent use and never panic on
// bad input.
type Arbiter struct {
	mu       sync.Mutex
	config   Config
	surfaces map[string]Registration
	focus    []string
	owner    string
	load     int

	onBudgetExceeded func(load, limit int)
	fanout           events.Fanout
	now              func() time.Time
	logger           zerolog.Logger
}

// New creates an empty arbiter.
func New(config Config, logger zerolog.Logger) *Arbiter {
	if config.BudgetLimit <= 0 {
		config.BudgetLimit = DefaultConfig().BudgetLimit
	}
	return &Arbiter{
		config:   config,
		surfaces: make(map[string]Registration),
		now:      time.Now,
		logger:   logger.With().Str("component", "arbiter").Logger(),
	}
}

// OnBudgetExceeded sets the callback fired when a registration is refused for
// budget. It receives the load the registration would have produced.
func (a *Arbiter) OnBudgetExceeded(fn func(load, limit int)) {
	a.mu.Lock()
	a.onBudgetExceeded = fn
	a.mu.Unlock()
}

// Subscribe adds an observer for arbiter events.
func (a *Arbiter) Subscribe(o events.Observer) {
	a.fanout.Subscribe(o)
}

// SetTimeSource overrides the timestamp source used for events.
func (a *Arbiter) SetTimeSource(now func() time.Time) {
	a.mu.Lock()
	a.now = now
	a.mu.Unlock()
}

// #endregion arbiter

// #region register
// Register validates reg, derives its priority and reserves its load.
// A registration that would push the load past the budget is refused whole.
func (a *Arbiter) Register(reg Registration) Result {
	a.mu.Lock()

	if err := validateRegistration(reg); err != nil {
		res := a.refuseLocked(ReasonInvalid, err)
		a.mu.Unlock()
		a.logger.Warn().Err(err).Str("surface", reg.ID).Msg("registration failed validation")
		return res
	}
	reg.Priority, _ = priority.For(reg.Type)

	if _, exists := a.surfaces[reg.ID]; exists {
		res := a.refuseLocked(ReasonDuplicate, nil)
		a.mu.Unlock()
		a.logger.Warn().Str("surface", reg.ID).Msg("surface already registered")
		return res
	}

	newLoad := a.load + reg.CognitiveLoad
	if newLoad > a.config.BudgetLimit {
		res := a.refuseLocked(ReasonBudgetExceeded, nil)
		limit := a.config.BudgetLimit
		cb := a.onBudgetExceeded
		evt := a.eventLocked(events.SurfaceRefused, reg.ID)
		evt.Load, evt.Limit, evt.Reason = newLoad, limit, string(ReasonBudgetExceeded)
		a.mu.Unlock()

		a.logger.Info().
			Str("surface", reg.ID).
			Int("load", newLoad).
			Int("limit", limit).
			Msg("registration refused: budget exceeded")
		if cb != nil {
			cb(newLoad, limit)
		}
		a.fanout.Emit(evt)
		return res
	}

	a.surfaces[reg.ID] = reg
	a.load = newLoad
	evt := a.eventLocked(events.SurfaceRegistered, reg.ID)
	res := Result{OK: true, State: a.stateLocked()}
	a.mu.Unlock()

	a.logger.Debug().Str("surface", reg.ID).Int("priority", reg.Priority).Int("load", newLoad).Msg("surface registered")
	a.fanout.Emit(evt)
	return res
}

// Unregister releases id's load, clears attention if id held it and drops id
// from the focus stack. Unknown ids are a no-op.
func (a *Arbiter) Unregister(id string) Result {
	a.mu.Lock()

	reg, ok := a.surfaces[id]
	if !ok {
		res := a.refuseLocked(ReasonUnknownID, nil)
		a.mu.Unlock()
		return res
	}

	delete(a.surfaces, id)
	a.load -= reg.CognitiveLoad
	var evts []events.Event
	if a.owner == id {
		a.owner = ""
		evts = append(evts, a.eventLocked(events.AttentionReleased, id))
	}
	a.focus = removeAll(a.focus, id)
	evts = append(evts, a.eventLocked(events.SurfaceUnregistered, id))
	res := Result{OK: true, State: a.stateLocked()}
	a.mu.Unlock()

	a.fanout.Emit(evts...)
	return res
}

// #endregion register

// #region attention
// RequestAttention grants attention when nobody holds it, or preempts the
// holder when id has a strictly lower priority number.
func (a *Arbiter) RequestAttention(id string) Result {
	a.mu.Lock()

	reg, ok := a.surfaces[id]
	if !ok {
		res := a.refuseLocked(ReasonUnknownID, nil)
		a.mu.Unlock()
		return res
	}

	if a.owner == "" || a.owner == id {
		a.owner = id
		evt := a.eventLocked(events.AttentionGranted, id)
		res := Result{OK: true, State: a.stateLocked()}
		a.mu.Unlock()
		a.fanout.Emit(evt)
		return res
	}

	holder := a.surfaces[a.owner]
	if !priority.Outranks(reg.Priority, holder.Priority) {
		evt := a.eventLocked(events.AttentionRefused, id)
		evt.Reason = string(ReasonOutranked)
		res := a.refuseLocked(ReasonOutranked, nil)
		a.mu.Unlock()

		a.logger.Debug().
			Str("surface", id).
			Str("owner", holder.ID).
			Int("priority", reg.Priority).
			Int("owner_priority", holder.Priority).
			Msg("attention refused")
		a.fanout.Emit(evt)
		return res
	}

	preempted := a.eventLocked(events.AttentionPreempted, holder.ID)
	preempted.Reason = "preempted by " + id
	a.owner = id
	granted := a.eventLocked(events.AttentionGranted, id)
	res := Result{OK: true, State: a.stateLocked()}
	a.mu.Unlock()

	a.logger.Debug().Str("surface", id).Str("preempted", holder.ID).Msg("attention preempted")
	a.fanout.Emit(preempted, granted)
	return res
}

// ReleaseAttention clears the owner only if it is id, so a stale release
// cannot clobber a newer owner.
func (a *Arbiter) ReleaseAttention(id string) Result {
	a.mu.Lock()

	if a.owner == "" || a.owner != id {
		res := a.refuseLocked(ReasonNotOwner, nil)
		a.mu.Unlock()
		return res
	}

	a.owner = ""
	evt := a.eventLocked(events.AttentionReleased, id)
	res := Result{OK: true, State: a.stateLocked()}
	a.mu.Unlock()

	a.fanout.Emit(evt)
	return res
}

// Owner returns the current attention owner.
func (a *Arbiter) Owner() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner, a.owner != ""
}

// #endregion attention

// #region focus
// PushFocus records id on the focus stack for modal-style focus return.
func (a *Arbiter) PushFocus(id string) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.surfaces[id]; !ok {
		return a.refuseLocked(ReasonUnknownID, nil)
	}
	a.focus = append(a.focus, id)
	return Result{OK: true, State: a.stateLocked()}
}

// PopFocus removes and returns the top of the focus stack.
func (a *Arbiter) PopFocus() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.focus) == 0 {
		return "", false
	}
	top := a.focus[len(a.focus)-1]
	a.focus = a.focus[:len(a.focus)-1]
	return top, true
}

// RemoveFocus drops the most recent entry for id wherever it sits in the
// stack. It reports whether an entry was removed.
func (a *Arbiter) RemoveFocus(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := len(a.focus) - 1; i >= 0; i-- {
		if a.focus[i] == id {
			a.focus = append(a.focus[:i], a.focus[i+1:]...)
			return true
		}
	}
	return false
}

// #endregion focus

// #region snapshot
// State returns a copy of the arbiter state.
func (a *Arbiter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

// Lookup returns the registration for id.
func (a *Arbiter) Lookup(id string) (Registration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	reg, ok := a.surfaces[id]
	return reg, ok
}

func (a *Arbiter) stateLocked() State {
	surfaces := make(map[string]Registration, len(a.surfaces))
	for id, reg := range a.surfaces {
		surfaces[id] = reg
	}
	focus := make([]string, len(a.focus))
	copy(focus, a.focus)
	return State{
		ActiveSurfaces: surfaces,
		FocusStack:     focus,
		AttentionOwner: a.owner,
		BudgetLimit:    a.config.BudgetLimit,
		CurrentLoad:    a.load,
	}
}

// #endregion snapshot

// #region helpers
func (a *Arbiter) refuseLocked(reason Reason, err error) Result {
	return Result{OK: false, Reason: reason, Err: err, State: a.stateLocked()}
}

func (a *Arbiter) eventLocked(kind events.Kind, id string) events.Event {
	return events.Event{
		Kind:      kind,
		Source:    events.SourceArbiter,
		SurfaceID: id,
		Load:      a.load,
		Limit:     a.config.BudgetLimit,
		At:        a.now(),
	}
}

func validateRegistration(reg Registration) error {
	if err := validation.Required("id", reg.ID); err != nil {
		return err
	}
	if !priority.Known(reg.Type) {
		return &validation.Error{Field: "type", Value: reg.Type, Reason: "unknown surface type"}
	}
	return validation.IntRange("cognitive_load", reg.CognitiveLoad, MinLoad, MaxLoad)
}

func removeAll(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// #endregion helpers
