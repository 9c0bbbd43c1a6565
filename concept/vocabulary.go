// ABOUTME: Derives the display vocabulary of a domain from signature symbols.
// ABOUTME: Builds the initial one-node-per-sort domain and rebuilds vocabularies while keeping nodes.
package concept

import (
	"slices"
	"strings"

	"github.com/2389-research/conceptgraph/logic"
)

// InitialDomain returns a domain with one trivial node, X = X, per sort.
func InitialDomain(sorts []*logic.Sort) *Domain {
	d := NewDomain()
	for _, s := range sorts {
		x := logic.Var{Name: "X", Type: s}
		// a fresh domain never conflicts
		_ = d.Add(FromFormula(logic.Equals(x, x)), Nodes)
	}
	return d
}

var argNames = []string{"X", "Y"}

// AddSignatureConcepts adds the label, edge, and enum concepts derived from
// symbols, visited in name order:
//   - enumerated range, arity 1 or 2: a set plus one case f(vs) = c per constructor
//   - boolean range, arity 1 or 2: the relation as a label or edge
//   - first-order constant c: the label X = c
//   - unary first-order function f: the edge f(X) = Y
//
// Enumerated and boolean constants are skipped.
func AddSignatureConcepts(d *Domain, symbols []*logic.Symbol) error {
	syms := slices.Clone(symbols)
	slices.SortFunc(syms, func(a, b *logic.Symbol) int { return strings.Compare(a.Name, b.Name) })
	for _, c := range syms {
		if c.IsConstructor() {
			continue
		}
		n := c.Arity()
		switch {
		case c.Rng.Kind == logic.Enumerated:
			if n < 1 || n > 2 {
				continue
			}
			vs := symbolVars(c)
			t := logic.Apply(c, varTerms(vs)...)
			set := NewSet(vs, t)
			if err := d.AddSet(set); err != nil {
				return err
			}
			for _, cons := range c.Rng.Constructors {
				if err := d.AddMember(set.Name, FromFormula(logic.Equals(t, logic.Ctor(c.Rng, cons)))); err != nil {
					return err
				}
			}
		case c.IsRelation():
			if n < 1 || n > 2 {
				continue
			}
			vs := symbolVars(c)
			if err := d.Add(FromFormula(logic.Rel(c, varTerms(vs)...)), ""); err != nil {
				return err
			}
		case n == 0:
			x := logic.Var{Name: "X", Type: c.Rng}
			if err := d.Add(FromFormula(logic.Equals(x, logic.Apply(c))), ""); err != nil {
				return err
			}
		case n == 1:
			x := logic.Var{Name: "X", Type: c.Dom[0]}
			y := logic.Var{Name: "Y", Type: c.Rng}
			if err := d.Add(FromFormula(logic.Equals(logic.Apply(c, x), y)), ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func symbolVars(c *logic.Symbol) []logic.Var {
	vs := make([]logic.Var, c.Arity())
	for i, s := range c.Dom {
		vs[i] = logic.Var{Name: argNames[i], Type: s}
	}
	return vs
}

func varTerms(vs []logic.Var) []logic.Term {
	out := make([]logic.Term, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

// ReplaceVocabulary returns a new domain that keeps the nodes of d, in order,
// and takes its labels, edges, and enums from symbols.
func ReplaceVocabulary(d *Domain, symbols []*logic.Symbol) (*Domain, error) {
	out := NewDomain()
	for _, n := range d.buckets[Nodes] {
		c, _ := d.Concept(n)
		if err := out.Add(c, Nodes); err != nil {
			return nil, err
		}
	}
	if err := AddSignatureConcepts(out, symbols); err != nil {
		return nil, err
	}
	return out, nil
}
