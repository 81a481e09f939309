// Package surface is the adapter a mounted UI element uses to talk to the
// arbiter and the admission controller. It ties registration to mount,
// attention and focus to open/close, and releases everything on unmount.
package surface

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/rafters-studio/motion-coordinator/internal/arbiter"
	"github.com/rafters-studio/motion-coordinator/internal/coordinator"
	"github.com/rafters-studio/motion-coordinator/internal/motion"
	"github.com/rafters-studio/motion-coordinator/internal/policy"
	"github.com/rafters-studio/motion-coordinator/internal/priority"
)

// ReasonUnmounted is reported by Animate after Unmount.
const ReasonUnmounted = "surface unmounted"

// #region spec
// Spec describes a surface at mount time.
type Spec struct {
	ID            string
	Type          priority.SurfaceType
	CognitiveLoad int
	// Reducible marks the surface's animations as shortenable, which lets
	// higher-priority requests count them as slack.
	Reducible bool
}

// Deps are the engine components a surface talks to. Coordinator is optional.
type Deps struct {
	Arbiter     *arbiter.Arbiter
	Controller  *motion.Controller
	Coordinator *coordinator.Coordinator
	Logger      zerolog.Logger
}

// #endregion spec

// #region surface
// Surface is one mounted UI element.
type Surface struct {
	mu       sync.Mutex
	spec     Spec
	priority int
	deps     Deps
	mounted  bool
	open     bool
	logger   zerolog.Logger
}

// Mount registers spec with the arbiter. On refusal it returns nil and the
// arbiter's result; the caller should render without motion or focus.
func Mount(deps Deps, spec Spec) (*Surface, arbiter.Result) {
	res := deps.Arbiter.Register(arbiter.Registration{
		ID:            spec.ID,
		Type:          spec.Type,
		CognitiveLoad: spec.CognitiveLoad,
	})
	if !res.OK {
		return nil, res
	}
	reg, _ := deps.Arbiter.Lookup(spec.ID)
	return &Surface{
		spec:     spec,
		priority: reg.Priority,
		deps:     deps,
		mounted:  true,
		logger:   deps.Logger.With().Str("component", "surface").Str("surface", spec.ID).Logger(),
	}, res
}

// ID returns the surface id.
func (s *Surface) ID() string { return s.spec.ID }

// Priority returns the priority derived from the surface type.
func (s *Surface) Priority() int { return s.priority }

// Mounted reports whether Unmount has not yet run.
func (s *Surface) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// IsOpen reports whether the surface currently holds attention via Open.
func (s *Surface) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// #endregion surface

// #region open-close
// Open requests attention and, when granted, pushes the surface onto the
// focus stack. It returns false when outranked or unmounted.
func (s *Surface) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return false
	}
	res := s.deps.Arbiter.RequestAttention(s.spec.ID)
	if !res.OK {
		s.logger.Debug().Str("reason", string(res.Reason)).Str("owner", res.State.AttentionOwner).Msg("attention refused")
		return false
	}
	if !s.open {
		s.deps.Arbiter.PushFocus(s.spec.ID)
		s.open = true
	}
	return true
}

// Close releases attention if the surface still holds it and removes its
// focus entry even when a later surface was pushed above it. It returns false
// if the surface was not open.
func (s *Surface) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return false
	}
	s.open = false
	s.deps.Arbiter.ReleaseAttention(s.spec.ID)
	s.deps.Arbiter.RemoveFocus(s.spec.ID)
	return true
}

// HasAttention reports whether the surface currently owns attention. An open
// surface loses it when a higher-priority surface opens on top.
func (s *Surface) HasAttention() bool {
	owner, ok := s.deps.Arbiter.Owner()
	return ok && owner == s.spec.ID
}

// #endregion open-close

// #region animate
// Animate submits r on behalf of the surface. SurfaceID is always the
// surface's id; a zero Priority becomes the surface priority and the
// surface's Reducible flag is applied.
func (s *Surface) Animate(r motion.Request) motion.Admission {
	s.mu.Lock()
	mounted := s.mounted
	s.mu.Unlock()
	if !mounted {
		return motion.Admission{Status: motion.StatusRejected, Reason: ReasonUnmounted}
	}

	r.SurfaceID = s.spec.ID
	if r.Priority == 0 {
		r.Priority = s.priority
	}
	if s.spec.Reducible {
		r.Reducible = true
	}
	return s.deps.Controller.RequestAnimation(r)
}

// ShouldAnimate asks the controller whether this surface should animate now.
func (s *Surface) ShouldAnimate(effect policy.EffectType) bool {
	if !s.Mounted() {
		return false
	}
	return s.deps.Controller.ShouldAnimate(s.spec.ID, effect)
}

// MotionClass returns base, or its reduced variant when another surface holds
// motion priority.
func (s *Surface) MotionClass(base string) string {
	if s.deps.Coordinator == nil {
		return base
	}
	return s.deps.Coordinator.MotionClassForMenu(s.spec.ID, base)
}

// #endregion animate

// #region unmount
// Unmount cancels the surface's animations and queued requests, releases
// attention and unregisters. It returns the number of active animations
// cancelled. Calling it again is a no-op.
func (s *Surface) Unmount() int {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return 0
	}
	s.mounted = false
	s.open = false
	s.mu.Unlock()

	n := s.deps.Controller.CancelAnimationsForMenu(s.spec.ID)
	s.deps.Arbiter.ReleaseAttention(s.spec.ID)
	s.deps.Arbiter.Unregister(s.spec.ID)
	s.logger.Debug().Int("cancelled", n).Msg("surface unmounted")
	return n
}

// #endregion unmount
