// ABOUTME: Display checkboxes per edge concept and per label concept, created lazily and defaulting to off.
// ABOUTME: The renderer reads them through the Flags interface; Checkboxes is the plain-data implementation.
package render

import (
	"maps"
	"slices"
)

// Edge checkbox names, in flag-index order.
const (
	BoxAllToAll    = "all_to_all"
	BoxEdgeUnknown = "edge_unknown"
	BoxNoneToNone  = "none_to_none"
	BoxTransitive  = "transitive"
)

// Label checkbox names, in flag-index order.
const (
	BoxNecessarily    = "node_necessarily"
	BoxMaybe          = "node_maybe"
	BoxNecessarilyNot = "node_necessarily_not"
)

// EdgeBoxes lists the edge checkboxes by flag index.
var EdgeBoxes = []string{BoxAllToAll, BoxEdgeUnknown, BoxNoneToNone, BoxTransitive}

// LabelBoxes lists the label checkboxes by flag index.
var LabelBoxes = []string{BoxNecessarily, BoxMaybe, BoxNecessarilyNot}

// Flags answers checkbox queries for the renderer.
type Flags interface {
	Edge(edge, box string) bool
	Label(label, box string) bool
}

// Checkboxes stores display flags keyed by concept name then checkbox name.
// A missing entry reads as false.
type Checkboxes struct {
	Edges  map[string]map[string]bool
	Labels map[string]map[string]bool
}

// NewCheckboxes returns empty checkboxes.
func NewCheckboxes() *Checkboxes {
	return &Checkboxes{
		Edges:  make(map[string]map[string]bool),
		Labels: make(map[string]map[string]bool),
	}
}

func (c *Checkboxes) Edge(edge, box string) bool   { return c.Edges[edge][box] }
func (c *Checkboxes) Label(label, box string) bool { return c.Labels[label][box] }

// SetIndex sets flag idx for name. Both the edge and the label tables are
// written when idx is in range for them, so the caller need not know the
// concept's kind. It reports whether idx was in range for either table.
func (c *Checkboxes) SetIndex(name string, idx int, val bool) bool {
	ok := false
	if idx >= 0 && idx < len(EdgeBoxes) {
		set(c.Edges, name, EdgeBoxes[idx], val)
		ok = true
	}
	if idx >= 0 && idx < len(LabelBoxes) {
		set(c.Labels, name, LabelBoxes[idx], val)
		ok = true
	}
	return ok
}

// SetEdge sets one edge checkbox.
func (c *Checkboxes) SetEdge(edge, box string, val bool) { set(c.Edges, edge, box, val) }

// SetLabel sets one label checkbox.
func (c *Checkboxes) SetLabel(label, box string, val bool) { set(c.Labels, label, box, val) }

// AnyEdge reports whether any class checkbox of the edge is on. The
// transitive box does not count.
func (c *Checkboxes) AnyEdge(edge string) bool {
	for box, on := range c.Edges[edge] {
		if on && box != BoxTransitive {
			return true
		}
	}
	return false
}

// AnyLabel reports whether any checkbox of the label is on.
func (c *Checkboxes) AnyLabel(label string) bool {
	return slices.Contains(slices.Collect(maps.Values(c.Labels[label])), true)
}

// Clone returns an independent copy.
func (c *Checkboxes) Clone() *Checkboxes {
	return &Checkboxes{Edges: cloneTable(c.Edges), Labels: cloneTable(c.Labels)}
}

func set(t map[string]map[string]bool, name, box string, val bool) {
	if t[name] == nil {
		t[name] = make(map[string]bool)
	}
	t[name][box] = val
}

func cloneTable(t map[string]map[string]bool) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(t))
	for k, v := range t {
		out[k] = maps.Clone(v)
	}
	return out
}
