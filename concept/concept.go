// ABOUTME: Concepts are named formulas with free variables; ConceptSets group mutually exclusive case concepts.
// ABOUTME: Concept names are canonical: derived from the sorted free variables and the formula text.
package concept

import (
	"errors"
	"fmt"
	"strings"

	"github.com/2389-research/conceptgraph/logic"
)

var (
	// ErrArity is returned when a concept has the wrong number of free variables for an operation.
	ErrArity = errors.New("wrong concept arity")
	// ErrSortMismatch is returned when a concept's variable sorts do not fit the operation.
	ErrSortMismatch = errors.New("sort mismatch")
)

// Concept is a parametrized predicate: a formula over the ordered variables.
type Concept struct {
	Name    string
	Vars    []logic.Var
	Formula logic.Formula
}

// FromFormula builds the concept whose variables are the free variables of f
// in name order. Structurally equal formulas yield equal names.
func FromFormula(f logic.Formula) *Concept {
	vars := logic.FreeVars(f)
	return &Concept{Name: canonicalName(vars, f), Vars: vars, Formula: f}
}

func canonicalName(vars []logic.Var, f logic.Formula) string {
	decls := make([]string, len(vars))
	for i, v := range vars {
		decls[i] = v.Decl()
	}
	return strings.Join(decls, ",") + "." + f.String()
}

// Arity is the number of free variables.
func (c *Concept) Arity() int { return len(c.Vars) }

// Sort returns the sort of the first variable, or nil for a closed concept.
func (c *Concept) Sort() *logic.Sort {
	if len(c.Vars) == 0 {
		return nil
	}
	return c.Vars[0].Type
}

// Sorts returns the variable sorts in order.
func (c *Concept) Sorts() []*logic.Sort {
	out := make([]*logic.Sort, len(c.Vars))
	for i, v := range c.Vars {
		out[i] = v.Type
	}
	return out
}

// Apply substitutes args for the concept's variables, in order.
func (c *Concept) Apply(args ...logic.Term) logic.Formula {
	if len(args) != len(c.Vars) {
		panic(fmt.Sprintf("concept %s: applied to %d args, arity %d", c.Name, len(args), len(c.Vars)))
	}
	sub := make(map[string]logic.Term, len(args))
	for i, v := range c.Vars {
		sub[v.Name] = args[i]
	}
	return logic.Substitute(c.Formula, sub)
}

func (c *Concept) String() string { return c.Formula.String() }

// Refine returns the arity-1 concepts c & p and c & ~p, with p's variable
// renamed to c's. Both concepts must be unary over the same sort.
func Refine(c, p *Concept) (pos, neg *Concept, err error) {
	pf, err := alignUnary(c, p)
	if err != nil {
		return nil, nil, err
	}
	pos = FromFormula(logic.Conj(c.Formula, pf))
	neg = FromFormula(logic.Conj(c.Formula, logic.Neg(pf)))
	return pos, neg, nil
}

// Restrict returns the arity-1 concept c & p.
func Restrict(c, p *Concept) (*Concept, error) {
	pf, err := alignUnary(c, p)
	if err != nil {
		return nil, err
	}
	return FromFormula(logic.Conj(c.Formula, pf)), nil
}

func alignUnary(c, p *Concept) (logic.Formula, error) {
	if c.Arity() != 1 {
		return nil, fmt.Errorf("%s: %w", c.Name, ErrArity)
	}
	if p.Arity() != 1 {
		return nil, fmt.Errorf("%s: %w", p.Name, ErrArity)
	}
	if !logic.SameSort(c.Sort(), p.Sort()) {
		return nil, fmt.Errorf("%s is over %s, %s is over %s: %w",
			p.Name, p.Sort(), c.Name, c.Sort(), ErrSortMismatch)
	}
	return p.Apply(c.Vars[0]), nil
}

// Witness returns the concept X = w for a constant symbol w.
func Witness(w *logic.Symbol) *Concept {
	x := logic.Var{Name: "X", Type: w.Rng}
	return FromFormula(logic.Equals(x, logic.Apply(w)))
}

// Set is a named, ordered group of mutually exclusive case concepts that
// split the values of a parent term. Members share the parent's variables.
type Set struct {
	Name    string
	Vars    []logic.Var
	Term    logic.Term
	Members []string
}

// NewSet returns an empty set for the enumerated-valued term t over vars.
func NewSet(vars []logic.Var, t logic.Term) *Set {
	decls := make([]string, len(vars))
	for i, v := range vars {
		decls[i] = v.Decl()
	}
	return &Set{Name: strings.Join(decls, ",") + "." + t.String(), Vars: vars, Term: t}
}

// Arity is the number of variables shared by the set's members.
func (s *Set) Arity() int { return len(s.Vars) }

// Entry is the tagged variant stored under a domain name: exactly one of
// Concept or Set is non-nil.
type Entry struct {
	Concept *Concept
	Set     *Set
}

// IsSet reports whether the entry holds a concept set.
func (e Entry) IsSet() bool { return e.Set != nil }

// Name returns the name of whichever variant the entry holds.
func (e Entry) Name() string {
	if e.Set != nil {
		return e.Set.Name
	}
	if e.Concept != nil {
		return e.Concept.Name
	}
	return ""
}
