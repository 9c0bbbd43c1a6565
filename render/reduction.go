// ABOUTME: Display-only edge reduction: self loops and one level of transitively implied all_to_all edges.
// ABOUTME: Applies only to edges whose transitive checkbox is on; never touches the abstract value.
package render

import (
	"github.com/2389-research/conceptgraph/concept"
)

// Triple names one edge instance: the edge concept and its endpoints.
type Triple struct {
	Edge, Source, Target string
}

func (t Triple) parts() concept.Parts {
	return concept.Parts{A: t.Edge, B: t.Source, C: t.Target}
}

// Reduction is the set of edges to suppress from display.
type Reduction struct {
	// Transitive holds (e, x, z) for candidates (e, x, y) and (e, y, z) with x != z.
	Transitive map[Triple]bool
	// Reflexive holds candidate self loops.
	Reflexive map[Triple]bool
}

// Hidden reports whether t is suppressed by either set.
func (r Reduction) Hidden(t Triple) bool {
	return r.Transitive[t] || r.Reflexive[t]
}

// Reduce computes the reduction over the candidate edges: those that hold
// all_to_all and have the transitive checkbox on. Propagation is a single
// pass keyed by (edge, source); chains longer than two are not closed.
func Reduce(v concept.AbstractValue, edges []Triple, flags Flags) Reduction {
	r := Reduction{Transitive: make(map[Triple]bool), Reflexive: make(map[Triple]bool)}

	var candidates []Triple
	for _, t := range edges {
		if !flags.Edge(t.Edge, BoxTransitive) || !v.Holds(concept.EdgeKey(concept.AllToAll, t.Edge, t.Source, t.Target)) {
			continue
		}
		if t.Source == t.Target {
			r.Reflexive[t] = true
			continue
		}
		candidates = append(candidates, t)
	}

	type from struct{ edge, source string }
	bySource := make(map[from][]string)
	for _, t := range candidates {
		k := from{t.Edge, t.Source}
		bySource[k] = append(bySource[k], t.Target)
	}
	for _, t := range candidates {
		for _, z := range bySource[from{t.Edge, t.Target}] {
			if z == t.Source {
				continue
			}
			r.Transitive[Triple{t.Edge, t.Source, z}] = true
		}
	}
	return r
}
