// Package events carries change notifications out of the arbiter and the
// motion controller to observers such as the journal and metrics.
package events

import (
	"sync"
	"time"
)

// #region kind
// Kind names what happened.
type Kind string

const (
	SurfaceRegistered   Kind = "surface_registered"
	SurfaceRefused      Kind = "surface_refused"
	SurfaceUnregistered Kind = "surface_unregistered"

	AttentionGranted   Kind = "attention_granted"
	AttentionPreempted Kind = "attention_preempted"
	AttentionRefused   Kind = "attention_refused"
	AttentionReleased  Kind = "attention_released"

	AnimationAdmitted  Kind = "animation_admitted"
	AnimationQueued    Kind = "animation_queued"
	AnimationRejected  Kind = "animation_rejected"
	AnimationCompleted Kind = "animation_completed"
	AnimationCancelled Kind = "animation_cancelled"
	AnimationPurged    Kind = "animation_purged"

	BudgetExceeded Kind = "budget_exceeded"
	BudgetUpdated  Kind = "budget_updated"
	MotionPaused   Kind = "motion_paused"
	MotionResumed  Kind = "motion_resumed"
)

// Source identifies the emitting component.
type Source string

const (
	SourceArbiter    Source = "arbiter"
	SourceController Source = "controller"
)

// #endregion kind

// #region event
// Event is a single notification. Unused fields are left zero.
type Event struct {
	Kind      Kind
	Source    Source
	SurfaceID string
	RequestID string
	Load      int // resulting or attempted load, depending on Kind
	Limit     int
	Reason    string
	At        time.Time
}

// #endregion event

// #region observer
// Observer receives events. Observe is called outside component locks and
// must not block for long.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Fanout delivers each event to every subscribed observer in subscription order.
type Fanout struct {
	mu        sync.RWMutex
	observers []Observer
}

// Subscribe adds an observer.
func (f *Fanout) Subscribe(o Observer) {
	if o == nil {
		return
	}
	f.mu.Lock()
	f.observers = append(f.observers, o)
	f.mu.Unlock()
}

// Emit delivers events in order.
func (f *Fanout) Emit(evts ...Event) {
	if len(evts) == 0 {
		return
	}
	f.mu.RLock()
	observers := make([]Observer, len(f.observers))
	copy(observers, f.observers)
	f.mu.RUnlock()

	for _, e := range evts {
		for _, o := range observers {
			o.Observe(e)
		}
	}
}

// Recorder is an Observer that keeps every event it sees.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Observe(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

// Count returns how many events of kind k were recorded.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// #endregion observer
