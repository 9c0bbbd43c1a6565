// ABOUTME: Grounds first-order formulas over bounded universes into a gini and-inverter circuit.
// ABOUTME: Terms become one-hot literal vectors; symbols get lazily created interpretation literals.
package oracle

import (
	"fmt"
	"strconv"
	"strings"

	circuit "github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/2389-research/conceptgraph/logic"
)

// universe is the candidate elements of one sort. Element i is in the model
// when exists[i] holds; existing elements always form a prefix.
type universe struct {
	exists []z.Lit
}

type grounder struct {
	c     *circuit.C
	bound int
	sizes map[string]int
	univ  map[string]*universe
	rels  map[string]z.Lit
	funcs map[string][]z.Lit
	side  []z.Lit
}

// newGrounder builds universes of sizes[sort] candidates, or bound for
// sorts without an entry.
func newGrounder(bound int, sizes map[string]int) *grounder {
	return &grounder{
		c:     circuit.NewC(),
		bound: bound,
		sizes: sizes,
		univ:  make(map[string]*universe),
		rels:  make(map[string]z.Lit),
		funcs: make(map[string][]z.Lit),
	}
}

func (g *grounder) universe(s *logic.Sort) (*universe, error) {
	if u, ok := g.univ[s.Name]; ok {
		return u, nil
	}
	u := &universe{}
	switch s.Kind {
	case logic.Enumerated:
		for range s.Constructors {
			u.exists = append(u.exists, g.c.T)
		}
	case logic.Uninterpreted:
		n, ok := g.sizes[s.Name]
		if !ok {
			n = g.bound
		}
		for i := 0; i < n; i++ {
			e := g.c.Lit()
			if i > 0 {
				g.side = append(g.side, g.c.Implies(e, u.exists[i-1]))
			}
			u.exists = append(u.exists, e)
		}
	default:
		return nil, fmt.Errorf("sort %s: %w", s.Name, ErrUnsupported)
	}
	g.univ[s.Name] = u
	return u, nil
}

// env binds variable names to element indices.
type env map[string]int

func (e env) with(name string, i int) env {
	next := make(env, len(e)+1)
	for k, v := range e {
		next[k] = v
	}
	next[name] = i
	return next
}

func (g *grounder) formula(f logic.Formula, e env) (z.Lit, error) {
	switch h := f.(type) {
	case *logic.Atom:
		vecs, err := g.terms(h.Args, e)
		if err != nil {
			return z.LitNull, err
		}
		return g.overTuples(vecs, func(idx []int) (z.Lit, error) {
			return g.relation(h.Rel, idx), nil
		})
	case *logic.Eq:
		l, err := g.term(h.L, e)
		if err != nil {
			return z.LitNull, err
		}
		r, err := g.term(h.R, e)
		if err != nil {
			return z.LitNull, err
		}
		if len(l) != len(r) {
			return z.LitNull, fmt.Errorf("%s: sort mismatch: %w", h, ErrUnsupported)
		}
		ms := make([]z.Lit, len(l))
		for i := range l {
			ms[i] = g.c.And(l[i], r[i])
		}
		return g.c.Ors(ms...), nil
	case *logic.Not:
		m, err := g.formula(h.F, e)
		return m.Not(), err
	case *logic.And:
		ms, err := g.formulas(h.Fs, e)
		if err != nil {
			return z.LitNull, err
		}
		return g.c.Ands(ms...), nil
	case *logic.Or:
		ms, err := g.formulas(h.Fs, e)
		if err != nil {
			return z.LitNull, err
		}
		return g.c.Ors(ms...), nil
	case *logic.Implies:
		l, err := g.formula(h.L, e)
		if err != nil {
			return z.LitNull, err
		}
		r, err := g.formula(h.R, e)
		if err != nil {
			return z.LitNull, err
		}
		return g.c.Implies(l, r), nil
	case *logic.Forall:
		return g.quantifier(h.Vars, h.Body, e, true)
	case *logic.Exists:
		return g.quantifier(h.Vars, h.Body, e, false)
	default:
		return z.LitNull, fmt.Errorf("formula %T: %w", f, ErrUnsupported)
	}
}

func (g *grounder) formulas(fs []logic.Formula, e env) ([]z.Lit, error) {
	out := make([]z.Lit, len(fs))
	for i, f := range fs {
		m, err := g.formula(f, e)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// quantifier expands one variable at a time. Universal instances are guarded
// by the element's existence literal, existential ones conjoined with it.
func (g *grounder) quantifier(vars []logic.Var, body logic.Formula, e env, forall bool) (z.Lit, error) {
	if len(vars) == 0 {
		return g.formula(body, e)
	}
	v := vars[0]
	u, err := g.universe(v.Type)
	if err != nil {
		return z.LitNull, err
	}
	ms := make([]z.Lit, len(u.exists))
	for i, ex := range u.exists {
		m, err := g.quantifier(vars[1:], body, e.with(v.Name, i), forall)
		if err != nil {
			return z.LitNull, err
		}
		if forall {
			ms[i] = g.c.Implies(ex, m)
		} else {
			ms[i] = g.c.And(ex, m)
		}
	}
	if forall {
		return g.c.Ands(ms...), nil
	}
	return g.c.Ors(ms...), nil
}

// term returns the one-hot vector of literals "t denotes element i".
func (g *grounder) term(t logic.Term, e env) ([]z.Lit, error) {
	u, err := g.universe(t.Sort())
	if err != nil {
		return nil, err
	}
	switch s := t.(type) {
	case logic.Var:
		i, ok := e[s.Name]
		if !ok {
			return nil, fmt.Errorf("free variable %s: %w", s.Name, ErrUnsupported)
		}
		return g.unit(len(u.exists), i), nil
	case *logic.App:
		if s.Sym.IsConstructor() {
			for i, c := range s.Sym.Rng.Constructors {
				if c == s.Sym.Name {
					return g.unit(len(u.exists), i), nil
				}
			}
		}
		vecs, err := g.terms(s.Args, e)
		if err != nil {
			return nil, err
		}
		out := make([]z.Lit, len(u.exists))
		for j := range out {
			out[j] = g.c.F
		}
		err = g.eachTuple(vecs, func(idx []int, guard z.Lit) error {
			val, err := g.function(s.Sym, idx)
			if err != nil {
				return err
			}
			for j := range out {
				out[j] = g.c.Or(out[j], g.c.And(guard, val[j]))
			}
			return nil
		})
		return out, err
	default:
		return nil, fmt.Errorf("term %T: %w", t, ErrUnsupported)
	}
}

func (g *grounder) terms(ts []logic.Term, e env) ([][]z.Lit, error) {
	out := make([][]z.Lit, len(ts))
	for i, t := range ts {
		v, err := g.term(t, e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (g *grounder) unit(n, i int) []z.Lit {
	out := make([]z.Lit, n)
	for j := range out {
		out[j] = g.c.F
	}
	out[i] = g.c.T
	return out
}

// eachTuple visits every tuple of element indices with the literal stating
// that the argument vectors take exactly that tuple.
func (g *grounder) eachTuple(vecs [][]z.Lit, fn func(idx []int, guard z.Lit) error) error {
	idx := make([]int, len(vecs))
	var rec func(k int, guard z.Lit) error
	rec = func(k int, guard z.Lit) error {
		if guard == g.c.F {
			return nil
		}
		if k == len(vecs) {
			return fn(append([]int(nil), idx...), guard)
		}
		for i, m := range vecs[k] {
			idx[k] = i
			if err := rec(k+1, g.c.And(guard, m)); err != nil {
				return err
			}
		}
		return nil
	}
	return rec(0, g.c.T)
}

func (g *grounder) overTuples(vecs [][]z.Lit, fn func(idx []int) (z.Lit, error)) (z.Lit, error) {
	var ms []z.Lit
	err := g.eachTuple(vecs, func(idx []int, guard z.Lit) error {
		m, err := fn(idx)
		if err != nil {
			return err
		}
		ms = append(ms, g.c.And(guard, m))
		return nil
	})
	if err != nil {
		return z.LitNull, err
	}
	return g.c.Ors(ms...), nil
}

func tupleKey(name string, idx []int) string {
	var b strings.Builder
	b.WriteString(name)
	for _, i := range idx {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

func (g *grounder) relation(sym *logic.Symbol, idx []int) z.Lit {
	k := tupleKey(sym.Name, idx)
	if m, ok := g.rels[k]; ok {
		return m
	}
	m := g.c.Lit()
	g.rels[k] = m
	return m
}

// function returns the value vector of sym at the argument tuple. When the
// arguments exist the value is exactly one existing element.
func (g *grounder) function(sym *logic.Symbol, idx []int) ([]z.Lit, error) {
	k := tupleKey(sym.Name, idx)
	if v, ok := g.funcs[k]; ok {
		return v, nil
	}
	rng, err := g.universe(sym.Rng)
	if err != nil {
		return nil, err
	}
	argsExist := g.c.T
	for i, d := range sym.Dom {
		u, err := g.universe(d)
		if err != nil {
			return nil, err
		}
		argsExist = g.c.And(argsExist, u.exists[idx[i]])
	}
	v := make([]z.Lit, len(rng.exists))
	for j := range v {
		v[j] = g.c.Lit()
		g.side = append(g.side, g.c.Implies(v[j], rng.exists[j]))
	}
	g.side = append(g.side, g.c.Implies(argsExist, g.c.Ors(v...)))
	for i := range v {
		for j := i + 1; j < len(v); j++ {
			g.side = append(g.side, g.c.And(v[i], v[j]).Not())
		}
	}
	g.funcs[k] = v
	return v, nil
}
