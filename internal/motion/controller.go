// Package motion is the admission controller for animations. It grants,
// queues or refuses requests against a shared budget of concurrent slots and
// cognitive load, schedules their completion and releases every reservation
// on completion or cancellation.
package motion

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rafters-studio/motion-coordinator/internal/clock"
	"github.com/rafters-studio/motion-coordinator/internal/coordinator"
	"github.com/rafters-studio/motion-coordinator/internal/events"
	"github.com/rafters-studio/motion-coordinator/internal/policy"
)

// #region controller
type activeEntry struct {
	Active
	seq   uint64
	timer clock.Timer
}

type queued struct {
	req        Request
	durationMs int
}

// Controller owns the active set, the FIFO queue and the budget. Every
// mutation happens under one mutex; callbacks and observers run after it is
// released, so they may call back into the controller.
type Controller struct {
	mu     sync.Mutex
	config Config
	budget Budget
	policy *policy.Policy
	coord  *coordinator.Coordinator
	clock  clock.Clock

	active map[string]*activeEntry
	queue  []queued
	load   int
	owner  string
	paused bool
	env    Environment
	seq    uint64
	// overCap counts active animations admitted under a larger concurrency
	// cap than the one now in force. It only shrinks as they finish.
	overCap int

	onBudgetExceeded func(load, limit int)
	fanout           events.Fanout
	newID            func() string
	logger           zerolog.Logger
}

// New builds a controller. The budget in config must be valid.
func New(config Config, pol *policy.Policy, coord *coordinator.Coordinator, clk clock.Clock, logger zerolog.Logger) (*Controller, error) {
	if err := config.Budget.Validate(); err != nil {
		return nil, fmt.Errorf("motion budget: %w", err)
	}
	if pol == nil {
		pol = policy.Default()
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	if config.HeadroomRatio <= 0 {
		config.HeadroomRatio = DefaultConfig().HeadroomRatio
	}
	return &Controller{
		config: config,
		budget: config.Budget,
		policy: pol,
		coord:  coord,
		clock:  clk,
		active: make(map[string]*activeEntry),
		newID:  func() string { return uuid.New().String() },
		logger: logger.With().Str("component", "motion").Logger(),
	}, nil
}

// OnBudgetExceeded sets the callback fired when a request is queued for lack
// of budget. It receives the projected load and the budget ceiling.
func (c *Controller) OnBudgetExceeded(fn func(load, limit int)) {
	c.mu.Lock()
	c.onBudgetExceeded = fn
	c.mu.Unlock()
}

// Subscribe adds an observer for controller events.
func (c *Controller) Subscribe(o events.Observer) {
	c.fanout.Subscribe(o)
}

// SetIDGenerator overrides how request ids are minted.
func (c *Controller) SetIDGenerator(fn func() string) {
	c.mu.Lock()
	c.newID = fn
	c.mu.Unlock()
}

// SetEnvironment updates the runtime signals used by MotionLevel.
func (c *Controller) SetEnvironment(env Environment) {
	c.mu.Lock()
	c.env = env
	c.mu.Unlock()
}

// #endregion controller

// #region pending
// pending collects side effects produced under the lock so they can run once
// the lock is released.
type pending struct {
	fns []func()
}

func (p *pending) call(fn func()) {
	p.fns = append(p.fns, fn)
}

func (p *pending) run() {
	for _, fn := range p.fns {
		fn()
	}
}

func (c *Controller) emit(p *pending, evt events.Event) {
	p.call(func() { c.fanout.Emit(evt) })
}

// #endregion pending

// #region request
// RequestAnimation admits, queues or refuses r. It never blocks waiting for
// budget: queued requests are admitted later when a slot frees up.
func (c *Controller) RequestAnimation(r Request) Admission {
	var p pending
	c.mu.Lock()
	adm := c.requestLocked(r, &p)
	c.mu.Unlock()
	p.run()
	return adm
}

func (c *Controller) requestLocked(r Request, p *pending) Admission {
	if c.paused {
		return Admission{Status: StatusPaused, Reason: "motion paused"}
	}

	if err := ValidateRequest(r); err != nil {
		c.logger.Warn().Err(err).Str("surface", r.SurfaceID).Msg("animation request failed validation")
		evt := c.eventLocked(events.AnimationRejected, r)
		evt.Reason = err.Error()
		c.emit(p, evt)
		return Admission{Status: StatusRejected, Reason: "invalid request", Err: err}
	}

	q := c.normalizeLocked(r)
	if c.knownLocked(q.req.ID) {
		evt := c.eventLocked(events.AnimationRejected, q.req)
		evt.Reason = "duplicate id"
		c.emit(p, evt)
		return Admission{Status: StatusRejected, Reason: "duplicate id"}
	}

	status := c.admitOrQueueLocked(q, p, false)
	return Admission{
		ID:            q.req.ID,
		Status:        status,
		CognitiveLoad: q.req.CognitiveLoad,
		DurationMs:    q.durationMs,
	}
}

// normalizeLocked fills the id, timestamp, trust and effective load.
func (c *Controller) normalizeLocked(r Request) queued {
	if r.ID == "" {
		r.ID = c.newID()
	}
	if r.RequestedAt.IsZero() {
		r.RequestedAt = c.clock.Now()
	}
	if r.Trust == "" {
		r.Trust = TrustMedium
	}
	if r.Duration != policy.Custom {
		r.CustomDurationMs = nil
	}
	duration := c.policy.EstimateDuration(r.Duration, r.CustomDurationMs)
	if r.CognitiveLoad == 0 {
		r.CognitiveLoad = c.policy.EstimateCognitiveLoad(r.Effect, duration, r.Priority)
	}
	return queued{req: r, durationMs: duration}
}

func (c *Controller) knownLocked(id string) bool {
	if _, ok := c.active[id]; ok {
		return true
	}
	for _, q := range c.queue {
		if q.req.ID == id {
			return true
		}
	}
	return false
}

// #endregion request

// #region admission
// admitOrQueueLocked runs the budget checks and either admits q or queues it.
// Requeued requests come from the queue head and go back to the head.
func (c *Controller) admitOrQueueLocked(q queued, p *pending, requeue bool) Status {
	load := q.req.CognitiveLoad
	limit := c.budget.MaxTotalCognitiveLoad
	wouldExceedLoad := c.load+load > limit
	wouldExceedCount := len(c.active) >= c.budget.MaxConcurrentAnimations

	if wouldExceedLoad || wouldExceedCount {
		// Slack from reducible lower-priority animations only informs this
		// decision; nothing is actually shortened or cancelled.
		slack := c.slackLocked(q.req.Priority)
		if wouldExceedCount || float64(c.load)-slack+float64(load) > float64(limit) {
			c.enqueueLocked(q, p, requeue, "budget exceeded")
			if !requeue {
				projected := c.load + load
				if cb := c.onBudgetExceeded; cb != nil {
					p.call(func() { cb(projected, limit) })
				}
				evt := c.eventLocked(events.BudgetExceeded, q.req)
				evt.Load = projected
				c.emit(p, evt)
				c.logger.Info().
					Str("request", q.req.ID).
					Str("surface", q.req.SurfaceID).
					Int("load", projected).
					Int("limit", limit).
					Int("active", len(c.active)).
					Msg("animation queued: budget exceeded")
			}
			return StatusQueued
		}
	}

	if c.coord != nil && !c.coord.RegisterMenu(q.req.SurfaceID, load, q.req.Priority) {
		c.enqueueLocked(q, p, requeue, "coordinator at capacity")
		if !requeue {
			c.logger.Info().Str("request", q.req.ID).Msg("animation queued: coordinator at capacity")
		}
		return StatusQueued
	}

	c.admitLocked(q, p)
	return StatusActive
}

func (c *Controller) slackLocked(prio int) float64 {
	if c.config.SlackFactor <= 0 {
		return 0
	}
	var slack float64
	for _, a := range c.active {
		if a.Request.Reducible && a.Request.Priority > prio {
			slack += float64(a.Request.CognitiveLoad) * c.config.SlackFactor
		}
	}
	return slack
}

func (c *Controller) enqueueLocked(q queued, p *pending, front bool, reason string) {
	if front {
		c.queue = append([]queued{q}, c.queue...)
		return
	}
	c.queue = append(c.queue, q)
	evt := c.eventLocked(events.AnimationQueued, q.req)
	evt.Reason = reason
	c.emit(p, evt)
}

func (c *Controller) admitLocked(q queued, p *pending) {
	now := c.clock.Now()
	d := time.Duration(q.durationMs) * time.Millisecond
	c.seq++
	entry := &activeEntry{
		Active: Active{
			Request:        q.req,
			DurationMs:     q.durationMs,
			StartedAt:      now,
			EstimatedEndAt: now.Add(d),
		},
		seq: c.seq,
	}
	id := q.req.ID
	c.active[id] = entry
	c.load += q.req.CognitiveLoad
	c.refreshOwnerLocked()

	c.logger.Debug().
		Str("request", id).
		Str("surface", q.req.SurfaceID).
		Int("load", c.load).
		Int("duration_ms", q.durationMs).
		Msg("animation admitted")

	if fn := q.req.OnStart; fn != nil {
		p.call(func() { fn(id) })
	}
	c.emit(p, c.eventLocked(events.AnimationAdmitted, q.req))
	// The completion timer is armed only after OnStart and the admitted event
	// have run, so completion can never be observed before the start.
	p.call(func() { c.arm(id, entry, d) })
}

// arm schedules completion for entry unless it was cancelled in the meantime.
func (c *Controller) arm(id string, entry *activeEntry, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.active[id]; !ok || cur != entry {
		return
	}
	entry.timer = c.clock.AfterFunc(d, func() { c.complete(id, entry) })
}

// #endregion admission

// #region completion
// complete is the timer callback. It is a no-op if the animation was
// cancelled or already completed.
func (c *Controller) complete(id string, entry *activeEntry) {
	var p pending
	c.mu.Lock()
	if cur, ok := c.active[id]; !ok || cur != entry {
		c.mu.Unlock()
		return
	}
	c.releaseLocked(entry)

	c.logger.Debug().Str("request", id).Int("load", c.load).Msg("animation completed")
	if fn := entry.Request.OnComplete; fn != nil {
		p.call(func() { fn(id) })
	}
	c.emit(&p, c.eventLocked(events.AnimationCompleted, entry.Request))
	c.drainLocked(&p)
	c.mu.Unlock()
	p.run()
}

// releaseLocked returns exactly what admission reserved: slot, load and
// coordinator registration.
func (c *Controller) releaseLocked(entry *activeEntry) {
	delete(c.active, entry.Request.ID)
	c.load -= entry.Request.CognitiveLoad
	if c.coord != nil {
		c.coord.ReleaseMenu(entry.Request.SurfaceID, entry.Request.CognitiveLoad, entry.Request.Priority)
	}
	if over := len(c.active) - c.budget.MaxConcurrentAnimations; over < c.overCap {
		c.overCap = max(over, 0)
	}
	c.refreshOwnerLocked()
}

// drainLocked admits queued requests head first while slots are free. A head
// that still does not fit goes back to the front and draining stops.
func (c *Controller) drainLocked(p *pending) {
	if c.paused {
		return
	}
	for len(c.queue) > 0 && len(c.active) < c.budget.MaxConcurrentAnimations {
		head := c.queue[0]
		c.queue = c.queue[1:]
		if c.admitOrQueueLocked(head, p, true) != StatusActive {
			return
		}
	}
}

// #endregion completion

// #region cancel
// CancelAnimation stops an active animation and releases its reservations.
// It returns false when id is not active, including when it is only queued.
func (c *Controller) CancelAnimation(id string) bool {
	var p pending
	c.mu.Lock()
	ok := c.cancelLocked(id, &p)
	if ok {
		c.drainLocked(&p)
	}
	c.mu.Unlock()
	p.run()
	return ok
}

// CancelAnimationsForMenu cancels every active animation of surfaceID and
// drops its queued requests. It returns the number of active cancellations.
// Surfaces must call it on unmount.
func (c *Controller) CancelAnimationsForMenu(surfaceID string) int {
	var p pending
	c.mu.Lock()

	kept := c.queue[:0]
	for _, q := range c.queue {
		if q.req.SurfaceID == surfaceID {
			c.emit(&p, c.eventLocked(events.AnimationPurged, q.req))
			continue
		}
		kept = append(kept, q)
	}
	for i := len(kept); i < len(c.queue); i++ {
		c.queue[i] = queued{}
	}
	c.queue = kept

	var ids []*activeEntry
	for _, a := range c.active {
		if a.Request.SurfaceID == surfaceID {
			ids = append(ids, a)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].seq < ids[j].seq })

	n := 0
	for _, a := range ids {
		if c.cancelLocked(a.Request.ID, &p) {
			n++
		}
	}
	c.drainLocked(&p)
	c.mu.Unlock()
	p.run()
	return n
}

func (c *Controller) cancelLocked(id string, p *pending) bool {
	entry, ok := c.active[id]
	if !ok {
		return false
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	c.releaseLocked(entry)

	c.logger.Debug().Str("request", id).Int("load", c.load).Msg("animation cancelled")
	if fn := entry.Request.Cleanup; fn != nil {
		p.call(func() { fn(id) })
	}
	c.emit(p, c.eventLocked(events.AnimationCancelled, entry.Request))
	return true
}

// #endregion cancel

// #region controls
// PauseMotion blocks new admissions. In-flight animations keep running.
func (c *Controller) PauseMotion() {
	var p pending
	c.mu.Lock()
	if !c.paused {
		c.paused = true
		c.emit(&p, c.eventLocked(events.MotionPaused, Request{}))
	}
	c.mu.Unlock()
	p.run()
}

// ResumeMotion re-enables admissions and admits whatever the queue can fit.
func (c *Controller) ResumeMotion() {
	var p pending
	c.mu.Lock()
	if c.paused {
		c.paused = false
		c.emit(&p, c.eventLocked(events.MotionResumed, Request{}))
		c.drainLocked(&p)
	}
	c.mu.Unlock()
	p.run()
}

// Paused reports whether admissions are blocked.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// UpdateBudget merges patch into the budget. An invalid result is rejected
// whole and the previous budget stays in force. Lowering the concurrency cap
// never cancels running animations; the ones above the new cap are reported in
// State.OverCap until they finish.
func (c *Controller) UpdateBudget(patch BudgetPatch) error {
	var p pending
	c.mu.Lock()
	merged := c.budget.Merge(patch)
	if err := merged.Validate(); err != nil {
		c.mu.Unlock()
		c.logger.Warn().Err(err).Msg("budget update rejected")
		return err
	}
	c.budget = merged
	c.overCap = max(len(c.active)-c.budget.MaxConcurrentAnimations, 0)
	if c.overCap > 0 {
		c.logger.Info().Int("over_cap", c.overCap).Msg("concurrency cap lowered below active count")
	}
	evt := c.eventLocked(events.BudgetUpdated, Request{})
	c.emit(&p, evt)
	c.drainLocked(&p)
	c.mu.Unlock()
	p.run()
	return nil
}

// Budget returns the budget in force.
func (c *Controller) Budget() Budget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.budget
}

// #endregion controls

// #region advisory
// ShouldAnimate is advisory. At or over budget only the motion priority
// owner should animate.
func (c *Controller) ShouldAnimate(surfaceID string, _ policy.EffectType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return false
	}
	saturated := c.load >= c.budget.MaxTotalCognitiveLoad ||
		len(c.active) >= c.budget.MaxConcurrentAnimations
	if saturated {
		return c.owner != "" && surfaceID == c.owner
	}
	return true
}

// MotionLevel classifies the motion currently permitted.
func (c *Controller) MotionLevel() Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.env.MotionDisabled:
		return LevelNone
	case float64(c.load) >= c.config.HeadroomRatio*float64(c.budget.MaxTotalCognitiveLoad),
		c.env.LowPerformance,
		c.env.PrefersReducedMotion && c.budget.RespectReducedMotionPreference:
		return LevelReduced
	default:
		return LevelFull
	}
}

func (c *Controller) refreshOwnerLocked() {
	c.owner = ""
	if c.coord == nil {
		return
	}
	if leader, ok := c.coord.Leader(); ok {
		c.owner = leader
	}
}

// #endregion advisory

// #region snapshot
// State returns a copy of the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	active := make(map[string]Active, len(c.active))
	for id, a := range c.active {
		active[id] = a.Active
	}
	queue := make([]Request, len(c.queue))
	for i, q := range c.queue {
		queue[i] = q.req
	}
	return State{
		Active:              active,
		Queue:               queue,
		Budget:              c.budget,
		CurrentLoad:         c.load,
		MotionPriorityOwner: c.owner,
		Paused:              c.paused,
		OverCap:             c.overCap,
	}
}

// IsActive reports whether id is currently animating.
func (c *Controller) IsActive(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[id]
	return ok
}

// IsQueued reports whether id is waiting in the queue.
func (c *Controller) IsQueued(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range c.queue {
		if q.req.ID == id {
			return true
		}
	}
	return false
}

func (c *Controller) eventLocked(kind events.Kind, r Request) events.Event {
	return events.Event{
		Kind:      kind,
		Source:    events.SourceController,
		SurfaceID: r.SurfaceID,
		RequestID: r.ID,
		Load:      c.load,
		Limit:     c.budget.MaxTotalCognitiveLoad,
		At:        c.clock.Now(),
	}
}

// #endregion snapshot
