// ABOUTME: Structured YAML formula trees and their resolution into typed logic formulas.
// ABOUTME: Terms may be written as bare names; a name in scope is a variable, otherwise a constant.
package problem

import (
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"

	"github.com/2389-research/conceptgraph/logic"
)

// Formula is one node of a formula tree. Exactly one form must be set.
type Formula struct {
	Rel     string    `yaml:"rel,omitempty"`
	Args    []Term    `yaml:"args,omitempty"`
	Eq      []Term    `yaml:"eq,omitempty"`
	Neq     []Term    `yaml:"neq,omitempty"`
	Not     *Formula  `yaml:"not,omitempty"`
	And     []Formula `yaml:"and,omitempty"`
	Or      []Formula `yaml:"or,omitempty"`
	Implies []Formula `yaml:"implies,omitempty"`
	Forall  *Quant    `yaml:"forall,omitempty"`
	Exists  *Quant    `yaml:"exists,omitempty"`
}

// Quant is a quantified body over declared variables.
type Quant struct {
	Vars []string `yaml:"vars"`
	Body Formula  `yaml:"body"`
}

// Term is a variable, a constant, or a function application. In YAML a bare
// scalar is shorthand for a name with no arguments.
type Term struct {
	Name string `yaml:"fn"`
	Args []Term `yaml:"args,omitempty"`
}

// UnmarshalYAML accepts either "name" or {fn: name, args: [...]}.
func (t *Term) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		t.Name = n.Value
		return nil
	}
	type plain Term
	return n.Decode((*plain)(t))
}

func (f *Formula) forms() int {
	n := 0
	for _, set := range []bool{
		f.Rel != "", f.Eq != nil, f.Neq != nil, f.Not != nil, f.And != nil,
		f.Or != nil, f.Implies != nil, f.Forall != nil, f.Exists != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

type resolver struct {
	sig *logic.Signature
}

func (r *resolver) closed(section string, fs []Formula) ([]logic.Formula, error) {
	out := make([]logic.Formula, 0, len(fs))
	for i := range fs {
		f, err := r.formula(&fs[i], nil)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", section, i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// declare returns scope extended with the given variable declarations.
func (r *resolver) declare(scope map[string]logic.Var, decls []string) (map[string]logic.Var, error) {
	out := maps.Clone(scope)
	if out == nil {
		out = make(map[string]logic.Var, len(decls))
	}
	for _, d := range decls {
		v, err := ParseVar(r.sig, d)
		if err != nil {
			return nil, err
		}
		out[v.Name] = v
	}
	return out, nil
}

func (r *resolver) formula(f *Formula, scope map[string]logic.Var) (logic.Formula, error) {
	if n := f.forms(); n != 1 {
		return nil, fmt.Errorf("formula has %d forms, want exactly one: %w", n, ErrMalformed)
	}
	switch {
	case f.Rel != "":
		sym, ok := r.sig.Symbol(f.Rel)
		if !ok {
			return nil, fmt.Errorf("relation %q: %w", f.Rel, ErrUnknownName)
		}
		if !sym.IsRelation() {
			return nil, fmt.Errorf("%s is not a relation: %w", f.Rel, ErrIllSorted)
		}
		args, err := r.args(sym, f.Args, scope)
		if err != nil {
			return nil, err
		}
		return logic.Rel(sym, args...), nil

	case f.Eq != nil, f.Neq != nil:
		sides := f.Eq
		if f.Neq != nil {
			sides = f.Neq
		}
		if len(sides) != 2 {
			return nil, fmt.Errorf("equality takes 2 terms, got %d: %w", len(sides), ErrMalformed)
		}
		l, err := r.term(&sides[0], scope)
		if err != nil {
			return nil, err
		}
		rt, err := r.term(&sides[1], scope)
		if err != nil {
			return nil, err
		}
		if !logic.SameSort(l.Sort(), rt.Sort()) {
			return nil, fmt.Errorf("%s = %s compares %s with %s: %w", l, rt, l.Sort(), rt.Sort(), ErrIllSorted)
		}
		if f.Neq != nil {
			return logic.Neg(logic.Equals(l, rt)), nil
		}
		return logic.Equals(l, rt), nil

	case f.Not != nil:
		inner, err := r.formula(f.Not, scope)
		if err != nil {
			return nil, err
		}
		return logic.Neg(inner), nil

	case f.And != nil, f.Or != nil:
		parts := f.And
		if f.Or != nil {
			parts = f.Or
		}
		fs := make([]logic.Formula, len(parts))
		for i := range parts {
			sub, err := r.formula(&parts[i], scope)
			if err != nil {
				return nil, err
			}
			fs[i] = sub
		}
		if f.Or != nil {
			return logic.Disj(fs...), nil
		}
		return logic.Conj(fs...), nil

	case f.Implies != nil:
		if len(f.Implies) != 2 {
			return nil, fmt.Errorf("implies takes 2 formulas, got %d: %w", len(f.Implies), ErrMalformed)
		}
		l, err := r.formula(&f.Implies[0], scope)
		if err != nil {
			return nil, err
		}
		rf, err := r.formula(&f.Implies[1], scope)
		if err != nil {
			return nil, err
		}
		return logic.Imp(l, rf), nil

	default:
		q, forall := f.Exists, false
		if f.Forall != nil {
			q, forall = f.Forall, true
		}
		if len(q.Vars) == 0 {
			return nil, fmt.Errorf("quantifier without variables: %w", ErrMalformed)
		}
		inner, err := r.declare(scope, q.Vars)
		if err != nil {
			return nil, err
		}
		body, err := r.formula(&q.Body, inner)
		if err != nil {
			return nil, err
		}
		vars := make([]logic.Var, len(q.Vars))
		for i, d := range q.Vars {
			v, _ := ParseVar(r.sig, d)
			vars[i] = v
		}
		if forall {
			return logic.ForAll(vars, body), nil
		}
		return logic.Exist(vars, body), nil
	}
}

func (r *resolver) term(t *Term, scope map[string]logic.Var) (logic.Term, error) {
	if t.Name == "" {
		return nil, fmt.Errorf("term without a name: %w", ErrMalformed)
	}
	if v, ok := scope[t.Name]; ok && len(t.Args) == 0 {
		return v, nil
	}
	sym, ok := r.sig.Symbol(t.Name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", t.Name, ErrUnknownName)
	}
	if sym.IsRelation() {
		return nil, fmt.Errorf("relation %s used as a term: %w", t.Name, ErrIllSorted)
	}
	args, err := r.args(sym, t.Args, scope)
	if err != nil {
		return nil, err
	}
	return logic.Apply(sym, args...), nil
}

func (r *resolver) args(sym *logic.Symbol, ts []Term, scope map[string]logic.Var) ([]logic.Term, error) {
	if len(ts) != sym.Arity() {
		return nil, fmt.Errorf("%s takes %d arguments, got %d: %w", sym.Name, sym.Arity(), len(ts), ErrIllSorted)
	}
	out := make([]logic.Term, len(ts))
	for i := range ts {
		a, err := r.term(&ts[i], scope)
		if err != nil {
			return nil, err
		}
		if !logic.SameSort(a.Sort(), sym.Dom[i]) {
			return nil, fmt.Errorf("%s argument %d is %s, want %s: %w", sym.Name, i+1, a.Sort(), sym.Dom[i], ErrIllSorted)
		}
		out[i] = a
	}
	return out, nil
}
