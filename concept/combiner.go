// ABOUTME: Combiners turn one to three concepts into a closed formula; combinations bind combiners to domain buckets.
// ABOUTME: Instances enumerates every well-sorted, projected combination of a domain as an oracle query.
package concept

import (
	"github.com/2389-research/conceptgraph/logic"
)

// Combiner names.
const (
	None               = "none"
	AtLeastOne         = "at_least_one"
	AtMostOne          = "at_most_one"
	NodeNecessarily    = "node_necessarily"
	NodeNecessarilyNot = "node_necessarily_not"
	MutuallyExclusive  = "mutually_exclusive"
	AllToAll           = "all_to_all"
	NoneToNone         = "none_to_none"
	Total              = "total"
	Functional         = "functional"
	Surjective         = "surjective"
	Injective          = "injective"
)

// Combination tags.
const (
	TagNodeInfo          = "node_info"
	TagNodeLabel         = "node_label"
	TagEdgeInfo          = "edge_info"
	TagMutuallyExclusive = "mutually_exclusive"
	TagEnum              = "enum"
)

type shape int

const (
	unary shape = iota // U
	pair               // U1, U2 over one sort
	edge               // B, U1, U2
)

// Combiner builds a closed formula from concepts.
type Combiner struct {
	Name  string
	shape shape
	build func(cs []*Concept) logic.Formula
}

// Arity is the number of concepts the combiner takes.
func (c Combiner) Arity() int {
	switch c.shape {
	case unary:
		return 1
	case pair:
		return 2
	default:
		return 3
	}
}

// Formula applies the combiner. The second result is false when the concepts
// are not well sorted for this combiner.
func (c Combiner) Formula(cs ...*Concept) (logic.Formula, bool) {
	if len(cs) != c.Arity() {
		return nil, false
	}
	switch c.shape {
	case unary:
		if cs[0].Arity() != 1 {
			return nil, false
		}
	case pair:
		if cs[0].Arity() != 1 || cs[1].Arity() != 1 || !logic.SameSort(cs[0].Sort(), cs[1].Sort()) {
			return nil, false
		}
	case edge:
		if cs[0].Arity() != 2 || cs[1].Arity() != 1 || cs[2].Arity() != 1 {
			return nil, false
		}
		if !logic.SameSort(cs[0].Vars[0].Type, cs[1].Sort()) || !logic.SameSort(cs[0].Vars[1].Type, cs[2].Sort()) {
			return nil, false
		}
	}
	return c.build(cs), true
}

func vars(s *logic.Sort, names ...string) []logic.Var {
	out := make([]logic.Var, len(names))
	for i, n := range names {
		out[i] = logic.Var{Name: n, Type: s}
	}
	return out
}

// edgeVars returns the source and target sorts of the edge concept.
func edgeVars(cs []*Concept) (src, tgt *logic.Sort) {
	return cs[0].Vars[0].Type, cs[0].Vars[1].Type
}

var standardCombiners = map[string]Combiner{
	None: {Name: None, shape: unary, build: func(cs []*Concept) logic.Formula {
		x := vars(cs[0].Sort(), "X")
		return logic.Neg(logic.Exist(x, cs[0].Apply(x[0])))
	}},
	AtLeastOne: {Name: AtLeastOne, shape: unary, build: func(cs []*Concept) logic.Formula {
		x := vars(cs[0].Sort(), "X")
		return logic.Exist(x, cs[0].Apply(x[0]))
	}},
	AtMostOne: {Name: AtMostOne, shape: unary, build: func(cs []*Concept) logic.Formula {
		v := vars(cs[0].Sort(), "X", "Y")
		return logic.ForAll(v, logic.Imp(
			logic.Conj(cs[0].Apply(v[0]), cs[0].Apply(v[1])),
			logic.Equals(v[0], v[1])))
	}},
	NodeNecessarily: {Name: NodeNecessarily, shape: pair, build: func(cs []*Concept) logic.Formula {
		x := vars(cs[0].Sort(), "X")
		return logic.ForAll(x, logic.Imp(cs[0].Apply(x[0]), cs[1].Apply(x[0])))
	}},
	NodeNecessarilyNot: {Name: NodeNecessarilyNot, shape: pair, build: func(cs []*Concept) logic.Formula {
		x := vars(cs[0].Sort(), "X")
		return logic.ForAll(x, logic.Imp(cs[0].Apply(x[0]), logic.Neg(cs[1].Apply(x[0]))))
	}},
	MutuallyExclusive: {Name: MutuallyExclusive, shape: pair, build: func(cs []*Concept) logic.Formula {
		v := vars(cs[0].Sort(), "X", "Y")
		return logic.ForAll(v, logic.Neg(logic.Conj(cs[0].Apply(v[0]), cs[1].Apply(v[1]))))
	}},
	AllToAll: {Name: AllToAll, shape: edge, build: func(cs []*Concept) logic.Formula {
		s, t := edgeVars(cs)
		x, y := logic.Var{Name: "X", Type: s}, logic.Var{Name: "Y", Type: t}
		return logic.ForAll([]logic.Var{x, y}, logic.Imp(
			logic.Conj(cs[1].Apply(x), cs[2].Apply(y)),
			cs[0].Apply(x, y)))
	}},
	NoneToNone: {Name: NoneToNone, shape: edge, build: func(cs []*Concept) logic.Formula {
		s, t := edgeVars(cs)
		x, y := logic.Var{Name: "X", Type: s}, logic.Var{Name: "Y", Type: t}
		return logic.ForAll([]logic.Var{x, y}, logic.Imp(
			logic.Conj(cs[1].Apply(x), cs[2].Apply(y)),
			logic.Neg(cs[0].Apply(x, y))))
	}},
	Total: {Name: Total, shape: edge, build: func(cs []*Concept) logic.Formula {
		s, t := edgeVars(cs)
		x, y := logic.Var{Name: "X", Type: s}, logic.Var{Name: "Y", Type: t}
		return logic.ForAll([]logic.Var{x}, logic.Imp(
			cs[1].Apply(x),
			logic.Exist([]logic.Var{y}, logic.Conj(cs[2].Apply(y), cs[0].Apply(x, y)))))
	}},
	Functional: {Name: Functional, shape: edge, build: func(cs []*Concept) logic.Formula {
		s, t := edgeVars(cs)
		x := logic.Var{Name: "X", Type: s}
		y, z := logic.Var{Name: "Y", Type: t}, logic.Var{Name: "Z", Type: t}
		return logic.ForAll([]logic.Var{x, y, z}, logic.Imp(
			logic.Conj(cs[1].Apply(x), cs[2].Apply(y), cs[2].Apply(z), cs[0].Apply(x, y), cs[0].Apply(x, z)),
			logic.Equals(y, z)))
	}},
	Surjective: {Name: Surjective, shape: edge, build: func(cs []*Concept) logic.Formula {
		s, t := edgeVars(cs)
		x, y := logic.Var{Name: "X", Type: s}, logic.Var{Name: "Y", Type: t}
		return logic.ForAll([]logic.Var{y}, logic.Imp(
			cs[2].Apply(y),
			logic.Exist([]logic.Var{x}, logic.Conj(cs[1].Apply(x), cs[0].Apply(x, y)))))
	}},
	Injective: {Name: Injective, shape: edge, build: func(cs []*Concept) logic.Formula {
		s, t := edgeVars(cs)
		x, y := logic.Var{Name: "X", Type: s}, logic.Var{Name: "Y", Type: s}
		z := logic.Var{Name: "Z", Type: t}
		return logic.ForAll([]logic.Var{x, y, z}, logic.Imp(
			logic.Conj(cs[1].Apply(x), cs[1].Apply(y), cs[2].Apply(z), cs[0].Apply(x, z), cs[0].Apply(y, z)),
			logic.Equals(x, y)))
	}},
}

// StandardCombiner returns the named standard combiner.
func StandardCombiner(name string) (Combiner, bool) {
	c, ok := standardCombiners[name]
	return c, ok
}

// Combination binds a combiner to the buckets its arguments are drawn from.
type Combination struct {
	Tag      string
	Combiner string
	Kinds    []Kind
}

// StandardCombinations lists the combinations evaluated on every recompute.
func StandardCombinations() []Combination {
	var out []Combination
	for _, c := range []string{None, AtLeastOne, AtMostOne} {
		out = append(out, Combination{TagNodeInfo, c, []Kind{Nodes}})
	}
	out = append(out, Combination{TagMutuallyExclusive, MutuallyExclusive, []Kind{Nodes, Nodes}})
	for _, c := range []string{NodeNecessarily, NodeNecessarilyNot} {
		out = append(out, Combination{TagNodeLabel, c, []Kind{Nodes, NodeLabels}})
	}
	for _, c := range []string{AllToAll, NoneToNone, Total, Functional, Surjective, Injective} {
		out = append(out, Combination{TagEdgeInfo, c, []Kind{Edges, Nodes, Nodes}})
	}
	out = append(out, Combination{TagEnum, NodeNecessarily, []Kind{Nodes, Enum}})
	return out
}

// Projection reports whether combinations involving the named concept of the
// given kind should be evaluated.
type Projection func(name string, kind Kind) bool

// All is the projection that evaluates everything.
func All(string, Kind) bool { return true }

// Instance is one evaluable combination: its key and closed formula.
type Instance struct {
	Key     Key
	Formula logic.Formula
}

// Instances enumerates the well-sorted combinations of d that the projection
// admits. Concept sets drawn from the enum bucket expand to their members.
// Order follows the combination list, then bucket order.
func (d *Domain) Instances(proj Projection) []Instance {
	if proj == nil {
		proj = All
	}
	var out []Instance
	for _, comb := range StandardCombinations() {
		cb := standardCombiners[comb.Combiner]
		for _, names := range d.tuples(comb, proj) {
			cs := make([]*Concept, len(names))
			ok := true
			for i, n := range names {
				if cs[i], ok = d.Concept(n); !ok {
					break
				}
			}
			if !ok {
				continue
			}
			f, ok := cb.Formula(cs...)
			if !ok {
				continue
			}
			out = append(out, Instance{Key: newKey(comb.Tag, comb.Combiner, names), Formula: f})
		}
	}
	return out
}

func (d *Domain) tuples(comb Combination, proj Projection) [][]string {
	slots := make([][]string, len(comb.Kinds))
	for i, k := range comb.Kinds {
		for _, n := range d.buckets[k] {
			if !proj(n, k) {
				continue
			}
			if k == Enum {
				if s, ok := d.Set(n); ok {
					slots[i] = append(slots[i], s.Members...)
				}
				continue
			}
			slots[i] = append(slots[i], n)
		}
	}
	if comb.Combiner == MutuallyExclusive {
		var out [][]string
		for i, a := range slots[0] {
			for _, b := range slots[1][i+1:] {
				out = append(out, []string{a, b})
			}
		}
		return out
	}
	out := [][]string{nil}
	for _, slot := range slots {
		var next [][]string
		for _, prefix := range out {
			for _, n := range slot {
				next = append(next, append(append([]string(nil), prefix...), n))
			}
		}
		out = next
	}
	return out
}
