package arbiter

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafters-studio/motion-coordinator/internal/events"
	"github.com/rafters-studio/motion-coordinator/internal/priority"
	"github.com/rafters-studio/motion-coordinator/internal/validation"
)

// #region helpers
func newTestArbiter(limit int) *Arbiter {
	return New(Config{BudgetLimit: limit}, zerolog.Nop())
}

func reg(id string, typ priority.SurfaceType, load int) Registration {
	return Registration{ID: id, Type: typ, CognitiveLoad: load}
}

func sumLoads(s State) int {
	total := 0
	for _, r := range s.ActiveSurfaces {
		total += r.CognitiveLoad
	}
	return total
}

// #endregion helpers

// #region register-tests
func TestRegisterDerivesPriority(t *testing.T) {
	a := newTestArbiter(15)
	res := a.Register(reg("menu", priority.Dropdown, 3))
	require.True(t, res.OK)

	got, ok := a.Lookup("menu")
	require.True(t, ok)
	assert.Equal(t, 3, got.Priority)
	assert.Equal(t, 3, res.State.CurrentLoad)
}

func TestRegisterRefusedOverBudget(t *testing.T) {
	a := newTestArbiter(15)
	require.True(t, a.Register(reg("a", priority.Dropdown, 6)).OK)
	require.True(t, a.Register(reg("b", priority.Tree, 6)).OK)
	require.Equal(t, 12, a.State().CurrentLoad)

	var gotLoad, gotLimit int
	a.OnBudgetExceeded(func(load, limit int) { gotLoad, gotLimit = load, limit })

	res := a.Register(reg("c", priority.Sidebar, 5))
	assert.False(t, res.OK)
	assert.Equal(t, ReasonBudgetExceeded, res.Reason)
	assert.Equal(t, 12, res.State.CurrentLoad)
	assert.Equal(t, 12, a.State().CurrentLoad)
	assert.Equal(t, 17, gotLoad)
	assert.Equal(t, 15, gotLimit)
	_, ok := a.Lookup("c")
	assert.False(t, ok)
}

func TestRegisterExactlyAtBudgetAllowed(t *testing.T) {
	a := newTestArbiter(15)
	require.True(t, a.Register(reg("a", priority.Dropdown, 10)).OK)
	require.True(t, a.Register(reg("b", priority.Tree, 5)).OK)
	assert.Equal(t, 15, a.State().CurrentLoad)
}

func TestRegisterValidation(t *testing.T) {
	a := newTestArbiter(15)
	cases := []Registration{
		reg("", priority.Dropdown, 3),
		reg("x", "carousel", 3),
		reg("x", priority.Dropdown, 0),
		reg("x", priority.Dropdown, 11),
	}
	for i, r := range cases {
		t.Run(fmt.Sprintf("case-%d", i), func(t *testing.T) {
			res := a.Register(r)
			assert.False(t, res.OK)
			assert.Equal(t, ReasonInvalid, res.Reason)
			assert.True(t, errors.Is(res.Err, validation.ErrInvalid))
		})
	}
	assert.Empty(t, a.State().ActiveSurfaces)
	assert.Zero(t, a.State().CurrentLoad)
}

func TestRegisterDuplicateRefused(t *testing.T) {
	a := newTestArbiter(15)
	require.True(t, a.Register(reg("a", priority.Dropdown, 3)).OK)
	res := a.Register(reg("a", priority.Context, 2))
	assert.False(t, res.OK)
	assert.Equal(t, ReasonDuplicate, res.Reason)
	assert.Equal(t, 3, a.State().CurrentLoad)
}

func TestUnregisterReleasesEverything(t *testing.T) {
	a := newTestArbiter(15)
	require.True(t, a.Register(reg("a", priority.Dropdown, 4)).OK)
	require.True(t, a.Register(reg("b", priority.Tree, 2)).OK)
	require.True(t, a.RequestAttention("a").OK)
	require.True(t, a.PushFocus("a").OK)
	require.True(t, a.PushFocus("b").OK)
	require.True(t, a.PushFocus("a").OK)

	res := a.Unregister("a")
	require.True(t, res.OK)
	assert.Equal(t, 2, res.State.CurrentLoad)
	assert.Empty(t, res.State.AttentionOwner)
	assert.Equal(t, []string{"b"}, res.State.FocusStack)
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	a := newTestArbiter(15)
	require.True(t, a.Register(reg("a", priority.Dropdown, 4)).OK)
	res := a.Unregister("ghost")
	assert.False(t, res.OK)
	assert.Equal(t, ReasonUnknownID, res.Reason)
	assert.Equal(t, 4, a.State().CurrentLoad)
}

// #endregion register-tests

// #region attention-tests
func TestAttentionScenarioContextBeatsDropdown(t *testing.T) {
	a := newTestArbiter(15)
	require.True(t, a.Register(reg("dropdown", priority.Dropdown, 3)).OK)
	require.True(t, a.Register(reg("context", priority.Context, 3)).OK)

	require.True(t, a.RequestAttention("context").OK)
	res := a.RequestAttention("dropdown")
	assert.False(t, res.OK)
	assert.Equal(t, ReasonOutranked, res.Reason)
	assert.Equal(t, "context", res.State.AttentionOwner)
}

func TestAttentionPreemptionRequiresStrictlyLower(t *testing.T) {
	a := newTestArbiter(15)
	require.True(t, a.Register(reg("d1", priority.Dropdown, 2)).OK)
	require.True(t, a.Register(reg("d2", priority.Dropdown, 2)).OK)
	require.True(t, a.Register(reg("nav", priority.Navigation, 2)).OK)

	require.True(t, a.RequestAttention("d1").OK)
	assert.False(t, a.RequestAttention("d2").OK, "equal priority must not preempt")

	res := a.RequestAttention("nav")
	require.True(t, res.OK)
	assert.Equal(t, "nav", res.State.AttentionOwner)
}

func TestAttentionReRequestByOwnerSucceeds(t *testing.T) {
	a := newTestArbiter(15)
	require.True(t, a.Register(reg("d1", priority.Dropdown, 2)).OK)
	require.True(t, a.RequestAttention("d1").OK)
	assert.True(t, a.RequestAttention("d1").OK)
}

func TestAttentionUnknownRefused(t *testing.T) {
	a := newTestArbiter(15)
	res := a.RequestAttention("ghost")
	assert.False(t, res.OK)
	assert.Equal(t, ReasonUnknownID, res.Reason)
}

func TestReleaseAttentionIgnoresStaleRelease(t *testing.T) {
	a := newTestArbiter(15)
	require.True(t, a.Register(reg("tree", priority.Tree, 2)).OK)
	require.True(t, a.Register(reg("ctx", priority.Context, 2)).OK)
	require.True(t, a.RequestAttention("tree").OK)
	require.True(t, a.RequestAttention("ctx").OK)

	res := a.ReleaseAttention("tree")
	assert.False(t, res.OK)
	assert.Equal(t, ReasonNotOwner, res.Reason)
	owner, ok := a.Owner()
	require.True(t, ok)
	assert.Equal(t, "ctx", owner)

	require.True(t, a.ReleaseAttention("ctx").OK)
	_, ok = a.Owner()
	assert.False(t, ok)
}

func TestAttentionEvents(t *testing.T) {
	a := newTestArbiter(15)
	var rec events.Recorder
	a.Subscribe(&rec)

	a.Register(reg("tree", priority.Tree, 2))
	a.Register(reg("ctx", priority.Context, 2))
	a.RequestAttention("tree")
	a.RequestAttention("ctx")
	a.RequestAttention("tree")
	a.ReleaseAttention("ctx")

	assert.Equal(t, []events.Kind{
		events.SurfaceRegistered,
		events.SurfaceRegistered,
		events.AttentionGranted,
		events.AttentionPreempted,
		events.AttentionGranted,
		events.AttentionRefused,
		events.AttentionReleased,
	}, rec.Kinds())
}

// #endregion attention-tests

// #region focus-tests
func TestFocusStack(t *testing.T) {
	a := newTestArbiter(15)
	_, ok := a.PopFocus()
	assert.False(t, ok)

	require.True(t, a.Register(reg("a", priority.Dropdown, 1)).OK)
	require.True(t, a.Register(reg("b", priority.Dropdown, 1)).OK)
	require.True(t, a.PushFocus("a").OK)
	require.True(t, a.PushFocus("b").OK)
	assert.False(t, a.PushFocus("ghost").OK)

	top, ok := a.PopFocus()
	require.True(t, ok)
	assert.Equal(t, "b", top)
	top, ok = a.PopFocus()
	require.True(t, ok)
	assert.Equal(t, "a", top)
	_, ok = a.PopFocus()
	assert.False(t, ok)
}

func TestRemoveFocusFromMiddleOfStack(t *testing.T) {
	a := newTestArbiter(15)
	require.True(t, a.Register(reg("a", priority.Dropdown, 1)).OK)
	require.True(t, a.Register(reg("b", priority.Context, 1)).OK)
	require.True(t, a.PushFocus("a").OK)
	require.True(t, a.PushFocus("b").OK)
	require.True(t, a.PushFocus("a").OK)

	assert.True(t, a.RemoveFocus("a"))
	assert.Equal(t, []string{"a", "b"}, a.State().FocusStack)
	assert.True(t, a.RemoveFocus("a"))
	assert.Equal(t, []string{"b"}, a.State().FocusStack)
	assert.False(t, a.RemoveFocus("a"))
	assert.False(t, a.RemoveFocus("ghost"))
}

// #endregion focus-tests

// #region property-tests
func TestBudgetAndOwnerInvariantsUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := newTestArbiter(15)
	types := priority.Types()

	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("s%d", rng.Intn(12))
		switch rng.Intn(4) {
		case 0:
			a.Register(reg(id, types[rng.Intn(len(types))], 1+rng.Intn(10)))
		case 1:
			a.Unregister(id)
		case 2:
			a.RequestAttention(id)
		case 3:
			a.ReleaseAttention(id)
		}

		s := a.State()
		require.Equal(t, sumLoads(s), s.CurrentLoad, "step %d", i)
		require.LessOrEqual(t, s.CurrentLoad, s.BudgetLimit, "step %d", i)
		if s.AttentionOwner != "" {
			_, ok := s.ActiveSurfaces[s.AttentionOwner]
			require.True(t, ok, "owner must be registered at step %d", i)
		}
	}
}

func TestPreemptionOnlyWhenStrictlyLower(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := newTestArbiter(100)
	types := priority.Types()
	for i := 0; i < 10; i++ {
		require.True(t, a.Register(reg(fmt.Sprintf("s%d", i), types[rng.Intn(len(types))], 1)).OK)
	}

	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("s%d", rng.Intn(10))
		before := a.State()
		res := a.RequestAttention(id)
		if before.AttentionOwner != "" && before.AttentionOwner != id && res.OK {
			challenger := before.ActiveSurfaces[id].Priority
			holder := before.ActiveSurfaces[before.AttentionOwner].Priority
			require.Less(t, challenger, holder)
		}
		if rng.Intn(5) == 0 {
			if owner, ok := a.Owner(); ok {
				a.ReleaseAttention(owner)
			}
		}
	}
}

// #endregion property-tests
