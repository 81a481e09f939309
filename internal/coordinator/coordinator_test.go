package coordinator

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(cap int) *Coordinator {
	return New(Config{LoadCap: cap}, zerolog.Nop())
}

func TestRegisterWithinCap(t *testing.T) {
	c := newTestCoordinator(20)
	require.True(t, c.RegisterMenu("dropdown-1", 8, 3))
	require.True(t, c.RegisterMenu("context-1", 12, 1))
	assert.Equal(t, 20, c.TotalLoad())
}

func TestRegisterOverCapRefusedWithoutChange(t *testing.T) {
	c := newTestCoordinator(20)
	require.True(t, c.RegisterMenu("a", 15, 3))
	assert.False(t, c.RegisterMenu("b", 6, 1))
	assert.Equal(t, 15, c.TotalLoad())
	assert.Len(t, c.Entries(), 1)
	assert.True(t, c.HasMotionPriority("a"))
}

func TestUnregisterReleasesExactly(t *testing.T) {
	c := newTestCoordinator(20)
	c.RegisterMenu("a", 4, 3)
	c.RegisterMenu("a", 6, 3)
	assert.Equal(t, 10, c.TotalLoad())

	c.UnregisterMenu("a", 4)
	assert.Equal(t, 6, c.TotalLoad())
	require.Len(t, c.Entries(), 1)
	assert.Equal(t, 1, c.Entries()[0].Refs)

	c.UnregisterMenu("a", 6)
	assert.Equal(t, 0, c.TotalLoad())
	assert.Empty(t, c.Entries())
}

func TestUnregisterUnknownIgnored(t *testing.T) {
	c := newTestCoordinator(20)
	c.RegisterMenu("a", 5, 3)
	c.UnregisterMenu("ghost", 5)
	assert.Equal(t, 5, c.TotalLoad())
}

func TestPriorityRevertsWhenUrgentRegistrationReleased(t *testing.T) {
	c := newTestCoordinator(20)
	c.RegisterMenu("a", 2, 3)
	c.RegisterMenu("a", 4, 1)
	c.RegisterMenu("b", 2, 2)
	require.True(t, c.HasMotionPriority("a"))

	c.UnregisterMenu("a", 4)
	assert.True(t, c.HasMotionPriority("b"))
	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{ID: "b", Load: 2, Priority: 2, Refs: 1}, entries[0])
	assert.Equal(t, Entry{ID: "a", Load: 2, Priority: 3, Refs: 1}, entries[1])
}

func TestReleaseMenuMatchesLoadAndPriority(t *testing.T) {
	c := newTestCoordinator(20)
	c.RegisterMenu("a", 3, 1)
	c.RegisterMenu("a", 3, 4)
	c.RegisterMenu("b", 2, 2)

	c.ReleaseMenu("a", 3, 1)
	assert.Equal(t, 5, c.TotalLoad())
	assert.True(t, c.HasMotionPriority("b"))
	assert.Equal(t, Entry{ID: "a", Load: 3, Priority: 4, Refs: 1}, c.Entries()[1])

	c.ReleaseMenu("a", 3, 4)
	assert.Len(t, c.Entries(), 1)
	assert.Equal(t, 2, c.TotalLoad())
}

func TestHasMotionPriorityLowestNumberWins(t *testing.T) {
	c := newTestCoordinator(30)
	c.RegisterMenu("sidebar", 2, 5)
	c.RegisterMenu("context", 2, 1)
	c.RegisterMenu("dropdown", 2, 3)

	assert.True(t, c.HasMotionPriority("context"))
	assert.False(t, c.HasMotionPriority("sidebar"))

	c.UnregisterMenu("context", 2)
	assert.True(t, c.HasMotionPriority("dropdown"))
}

func TestHasMotionPriorityTieBrokenByRegistrationOrder(t *testing.T) {
	c := newTestCoordinator(30)
	c.RegisterMenu("first", 2, 3)
	c.RegisterMenu("second", 2, 3)
	assert.True(t, c.HasMotionPriority("first"))

	leader, ok := c.Leader()
	require.True(t, ok)
	assert.Equal(t, "first", leader)
}

func TestHasMotionPriorityEmptyLedger(t *testing.T) {
	c := newTestCoordinator(30)
	assert.False(t, c.HasMotionPriority("anything"))
	_, ok := c.Leader()
	assert.False(t, ok)
}

func TestMotionClassForMenu(t *testing.T) {
	c := newTestCoordinator(30)
	c.RegisterMenu("context", 2, 1)
	c.RegisterMenu("tree", 2, 4)

	assert.Equal(t, "slide-in", c.MotionClassForMenu("context", "slide-in"))
	assert.Equal(t, "slide-in-reduced", c.MotionClassForMenu("tree", "slide-in"))
	assert.Equal(t, "slide-in-reduced", c.MotionClassForMenu("unknown", "slide-in-reduced"))
}

func TestDefaultCapAppliedForZeroConfig(t *testing.T) {
	c := New(Config{}, zerolog.Nop())
	assert.Equal(t, DefaultLoadCap, c.LoadCap())
}
