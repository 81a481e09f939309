// Package coordinator keeps the process-wide ledger of surfaces that are
// currently animating and decides which one owns motion priority.
package coordinator

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// #region config
// DefaultLoadCap is the coordinator's own ceiling, independent of any MotionBudget.
const DefaultLoadCap = 20

// ReducedSuffix marks a dampened motion class.
const ReducedSuffix = "-reduced"

// Config holds coordinator limits.
type Config struct {
	LoadCap int
}

// DefaultConfig returns the reference limits.
func DefaultConfig() Config {
	return Config{LoadCap: DefaultLoadCap}
}

// #endregion config

// #region ledger
// entry accumulates every live registration for one id. Several animations
// from the same surface share an entry so each release subtracts exactly what
// its registration added. priority is the lowest number among regs.
type entry struct {
	load     int
	priority int
	regs     []registration
	seq      uint64 // first registration order, used to break ties
}

type registration struct {
	load     int
	priority int
}

// find returns the most recent registration matching load, and priority when
// exact is set. It falls back to the most recent registration.
func (e *entry) find(load, priority int, exact bool) int {
	for i := len(e.regs) - 1; i >= 0; i-- {
		r := e.regs[i]
		if r.load == load && (!exact || r.priority == priority) {
			return i
		}
	}
	return len(e.regs) - 1
}

func (e *entry) refreshPriority() {
	e.priority = e.regs[0].priority
	for _, r := range e.regs[1:] {
		if r.priority < e.priority {
			e.priority = r.priority
		}
	}
}

// Entry is a read-only view of a ledger row.
type Entry struct {
	ID       string
	Load     int
	Priority int
	Refs     int
}

// Coordinator is safe for concurrent use. Construct one per session and
// inject it; there is no package-level instance.
type Coordinator struct {
	mu     sync.Mutex
	config Config
	ledger map[string]*entry
	total  int
	seq    uint64
	logger zerolog.Logger
}

// New creates an empty coordinator.
func New(config Config, logger zerolog.Logger) *Coordinator {
	if config.LoadCap <= 0 {
		config.LoadCap = DefaultLoadCap
	}
	return &Coordinator{
		config: config,
		ledger: make(map[string]*entry),
		logger: logger.With().Str("component", "coordinator").Logger(),
	}
}

// #endregion ledger

// #region register
// RegisterMenu adds load for id. It returns false, leaving the ledger
// untouched, when the running total would exceed the load cap; the caller is
// expected to queue instead.
func (c *Coordinator) RegisterMenu(id string, cognitiveLoad int, priority int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.total+cognitiveLoad > c.config.LoadCap {
		c.logger.Debug().
			Str("surface", id).
			Int("load", cognitiveLoad).
			Int("total", c.total).
			Int("cap", c.config.LoadCap).
			Msg("coordinator refused registration")
		return false
	}

	e, ok := c.ledger[id]
	if !ok {
		c.seq++
		e = &entry{priority: priority, seq: c.seq}
		c.ledger[id] = e
	}
	e.load += cognitiveLoad
	e.regs = append(e.regs, registration{load: cognitiveLoad, priority: priority})
	if priority < e.priority {
		e.priority = priority
	}
	c.total += cognitiveLoad
	return true
}

// UnregisterMenu releases load previously registered for id. The most recent
// registration with that load is dropped. Unknown ids are ignored.
func (c *Coordinator) UnregisterMenu(id string, cognitiveLoad int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked(id, cognitiveLoad, 0, false)
}

// ReleaseMenu drops the registration for id that carried exactly this load
// and priority, so the entry's priority reverts to what is still registered.
func (c *Coordinator) ReleaseMenu(id string, cognitiveLoad, priority int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked(id, cognitiveLoad, priority, true)
}

func (c *Coordinator) releaseLocked(id string, cognitiveLoad, priority int, exact bool) {
	e, ok := c.ledger[id]
	if !ok {
		return
	}
	i := e.find(cognitiveLoad, priority, exact)
	e.regs = append(e.regs[:i], e.regs[i+1:]...)
	if cognitiveLoad > e.load {
		cognitiveLoad = e.load
	}
	e.load -= cognitiveLoad
	c.total -= cognitiveLoad
	if len(e.regs) == 0 {
		c.total -= e.load
		delete(c.ledger, id)
		return
	}
	e.refreshPriority()
}

// #endregion register

// #region priority
// HasMotionPriority reports whether id is the registered surface with the
// lowest priority number (earliest registration wins ties).
func (c *Coordinator) HasMotionPriority(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	leader, ok := c.leaderLocked()
	return ok && leader == id
}

// Leader returns the id currently holding motion priority.
func (c *Coordinator) Leader() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leaderLocked()
}

// MotionClassForMenu returns baseEffect when id holds motion priority and the
// reduced variant otherwise. The result is advisory.
func (c *Coordinator) MotionClassForMenu(id string, baseEffect string) string {
	if c.HasMotionPriority(id) {
		return baseEffect
	}
	return Reduced(baseEffect)
}

// Reduced returns the dampened form of a motion class.
func Reduced(effect string) string {
	if effect == "" || strings.HasSuffix(effect, ReducedSuffix) {
		return effect
	}
	return effect + ReducedSuffix
}

func (c *Coordinator) leaderLocked() (string, bool) {
	var (
		bestID string
		best   *entry
	)
	for id, e := range c.ledger {
		if best == nil || e.priority < best.priority ||
			(e.priority == best.priority && e.seq < best.seq) {
			bestID, best = id, e
		}
	}
	return bestID, best != nil
}

// #endregion priority

// #region snapshot
// TotalLoad returns the ledger's running total.
func (c *Coordinator) TotalLoad() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// LoadCap returns the configured ceiling.
func (c *Coordinator) LoadCap() int {
	return c.config.LoadCap
}

// Entries returns the ledger rows ordered by priority, then id.
func (c *Coordinator) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.ledger))
	for id, e := range c.ledger {
		out = append(out, Entry{ID: id, Load: e.load, Priority: e.priority, Refs: len(e.regs)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// #endregion snapshot
