// ABOUTME: Small-model sizes for queries in the stratified many-sorted EPR fragment.
// ABOUTME: A verdict is definite only when every uninterpreted sort's ground term count fits the bound.
package oracle

import (
	"errors"
	"fmt"

	"github.com/2389-research/conceptgraph/logic"
)

var (
	// errCyclic marks a query whose Skolem or function symbols generate infinitely many ground terms.
	errCyclic = errors.New("function symbols form a cycle between sorts")
	// errTooLarge marks a query whose small-model size exceeds the bound.
	errTooLarge = errors.New("small model exceeds bound")
)

type generator struct {
	dom []*logic.Sort
	rng *logic.Sort
}

// smallModel counts the ground terms a query can denote per uninterpreted
// sort after Skolemization: constants, Skolem constants, and applications of
// functions (declared or Skolem) into the sort. If the query has a model it
// has one whose uninterpreted sorts are no larger than those counts.
type smallModel struct {
	consts map[string]map[string]bool
	skolem map[string]int
	gens   map[string][]generator
	named  map[string]bool
	sorts  map[string]*logic.Sort
}

func newSmallModel() *smallModel {
	return &smallModel{
		consts: make(map[string]map[string]bool),
		skolem: make(map[string]int),
		gens:   make(map[string][]generator),
		named:  make(map[string]bool),
		sorts:  make(map[string]*logic.Sort),
	}
}

// analyze collects the query constraints & formula, or constraints & ~formula
// when negated. Constraints are closed universally as the grounder closes them.
func analyze(q Query, negated bool) *smallModel {
	m := newSmallModel()
	for _, f := range q.Constraints {
		m.formula(logic.ForAll(logic.FreeVars(f), f), true, nil)
	}
	m.formula(q.Formula, !negated, nil)
	return m
}

func (m *smallModel) sort(s *logic.Sort) {
	if s.Kind == logic.Uninterpreted {
		m.sorts[s.Name] = s
	}
}

// formula walks f in negation normal form: pos is the polarity of f, univ the
// sorts of the universal variables in scope.
func (m *smallModel) formula(f logic.Formula, pos bool, univ []*logic.Sort) {
	switch h := f.(type) {
	case *logic.Atom:
		m.terms(h.Args)
	case *logic.Eq:
		m.term(h.L)
		m.term(h.R)
	case *logic.Not:
		m.formula(h.F, !pos, univ)
	case *logic.And:
		for _, g := range h.Fs {
			m.formula(g, pos, univ)
		}
	case *logic.Or:
		for _, g := range h.Fs {
			m.formula(g, pos, univ)
		}
	case *logic.Implies:
		m.formula(h.L, !pos, univ)
		m.formula(h.R, pos, univ)
	case *logic.Forall:
		m.quantifier(h.Vars, h.Body, pos, pos, univ)
	case *logic.Exists:
		m.quantifier(h.Vars, h.Body, pos, !pos, univ)
	}
}

func (m *smallModel) quantifier(vars []logic.Var, body logic.Formula, pos, universal bool, univ []*logic.Sort) {
	scope := univ
	for _, v := range vars {
		m.sort(v.Type)
		switch {
		case universal:
			scope = append(scope[:len(scope):len(scope)], v.Type)
		case v.Type.Kind != logic.Uninterpreted:
		case len(univ) == 0:
			m.skolem[v.Type.Name]++
		default:
			m.gens[v.Type.Name] = append(m.gens[v.Type.Name], generator{dom: univ, rng: v.Type})
		}
	}
	m.formula(body, pos, scope)
}

func (m *smallModel) terms(ts []logic.Term) {
	for _, t := range ts {
		m.term(t)
	}
}

func (m *smallModel) term(t logic.Term) {
	switch s := t.(type) {
	case logic.Var:
		m.sort(s.Type)
	case *logic.App:
		m.terms(s.Args)
		if s.Sym.IsConstructor() || s.Sym.Rng.Kind != logic.Uninterpreted {
			return
		}
		m.sort(s.Sym.Rng)
		rng := s.Sym.Rng.Name
		if len(s.Sym.Dom) == 0 {
			if m.consts[rng] == nil {
				m.consts[rng] = make(map[string]bool)
			}
			m.consts[rng][s.Sym.Name] = true
			return
		}
		if !m.named[s.Sym.Name] {
			m.named[s.Sym.Name] = true
			m.gens[rng] = append(m.gens[rng], generator{dom: s.Sym.Dom, rng: s.Sym.Rng})
		}
	}
}

// sizes returns the small-model size of every uninterpreted sort the query
// mentions. It fails when generators are cyclic or a size exceeds limit.
func (m *smallModel) sizes(limit int) (map[string]int, error) {
	out := make(map[string]int, len(m.sorts))
	visiting := make(map[string]bool)
	var size func(s *logic.Sort) (int, error)
	size = func(s *logic.Sort) (int, error) {
		switch s.Kind {
		case logic.Enumerated:
			return len(s.Constructors), nil
		case logic.Boolean:
			return 2, nil
		}
		if n, ok := out[s.Name]; ok {
			return n, nil
		}
		if visiting[s.Name] {
			return 0, fmt.Errorf("sort %s: %w", s.Name, errCyclic)
		}
		visiting[s.Name] = true
		defer delete(visiting, s.Name)

		n := len(m.consts[s.Name]) + m.skolem[s.Name]
		for _, g := range m.gens[s.Name] {
			p := 1
			for _, d := range g.dom {
				k, err := size(d)
				if err != nil {
					return 0, err
				}
				p = min(p*k, limit+1)
			}
			n = min(n+p, limit+1)
		}
		if n > limit {
			return 0, fmt.Errorf("sort %s needs more than %d elements: %w", s.Name, limit, errTooLarge)
		}
		out[s.Name] = n
		return n, nil
	}
	for _, s := range m.sorts {
		if _, err := size(s); err != nil {
			return nil, err
		}
	}
	return out, nil
}
