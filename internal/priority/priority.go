package priority

// #region surface-type
// SurfaceType identifies the kind of interactive surface competing for attention.
type SurfaceType string

const (
	Context    SurfaceType = "context"
	Navigation SurfaceType = "navigation"
	Dropdown   SurfaceType = "dropdown"
	Tree       SurfaceType = "tree"
	Sidebar    SurfaceType = "sidebar"
	Breadcrumb SurfaceType = "breadcrumb"
)

// #endregion surface-type

// #region bounds
const (
	Highest = 1  // most important
	Lowest  = 10 // least important
)

// #endregion bounds

// #region table
// Lower number wins.
var table = map[SurfaceType]int{
	Context:    1,
	Navigation: 2,
	Dropdown:   3,
	Tree:       4,
	Sidebar:    5,
	Breadcrumb: 10,
}

// For returns the priority of a surface type. ok is false for unknown types.
func For(t SurfaceType) (int, bool) {
	p, ok := table[t]
	return p, ok
}

// Known reports whether t appears in the table.
func Known(t SurfaceType) bool {
	_, ok := table[t]
	return ok
}

// Types returns every known surface type ordered from highest to lowest priority.
func Types() []SurfaceType {
	return []SurfaceType{Context, Navigation, Dropdown, Tree, Sidebar, Breadcrumb}
}

// Valid reports whether p lies in [Highest, Lowest].
func Valid(p int) bool {
	return p >= Highest && p <= Lowest
}

// Outranks reports whether challenger strictly beats holder.
func Outranks(challenger, holder int) bool {
	return challenger < holder
}

// #endregion table
