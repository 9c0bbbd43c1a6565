// ABOUTME: YAML problem files: sorts, symbols, base state, constraints, and extra relation concepts.
// ABOUTME: Compiles a file into a signature and typed formulas, and builds a concept graph from it.
package problem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/2389-research/conceptgraph/concept"
	"github.com/2389-research/conceptgraph/graph"
	"github.com/2389-research/conceptgraph/logic"
	"github.com/2389-research/conceptgraph/oracle"
)

var (
	// ErrMalformed is returned for structurally invalid problem entries.
	ErrMalformed = errors.New("malformed problem")
	// ErrUnknownName is returned when a formula names an undeclared sort, symbol, or variable.
	ErrUnknownName = errors.New("unknown name")
	// ErrIllSorted is returned when argument sorts do not match a symbol's declaration.
	ErrIllSorted = errors.New("ill-sorted")
)

// Problem is the file form of a problem.
type Problem struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Sorts       []SortDecl    `yaml:"sorts"`
	Symbols     []SymbolDecl  `yaml:"symbols,omitempty"`
	State       []Formula     `yaml:"state,omitempty"`
	Constraints []Formula     `yaml:"constraints,omitempty"`
	Relations   []ConceptDecl `yaml:"relations,omitempty"`
}

// SortDecl declares a sort. A sort with constructors is enumerated.
type SortDecl struct {
	Name         string   `yaml:"name"`
	Constructors []string `yaml:"constructors,omitempty"`
}

// SymbolDecl declares a symbol. Range defaults to bool, making it a relation.
type SymbolDecl struct {
	Name  string   `yaml:"name"`
	Args  []string `yaml:"args,omitempty"`
	Range string   `yaml:"range,omitempty"`
}

// ConceptDecl declares a user relation: a formula over declared variables.
type ConceptDecl struct {
	Vars    []string `yaml:"vars"`
	Formula Formula  `yaml:"formula"`
}

// Compiled is a problem resolved against its own signature.
type Compiled struct {
	Name        string
	Signature   *logic.Signature
	State       []logic.Formula
	Constraints []logic.Formula
	Relations   []*concept.Concept
}

// Load reads and compiles a problem file.
func Load(path string) (*Compiled, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problem %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p.Compile()
}

// Parse decodes a problem document. Unknown keys are rejected.
func Parse(data []byte) (*Problem, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Problem
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode problem: %w", err)
	}
	return &p, nil
}

// Compile builds the signature and resolves every formula against it.
func (p *Problem) Compile() (*Compiled, error) {
	sig, err := p.signature()
	if err != nil {
		return nil, err
	}
	r := &resolver{sig: sig}
	out := &Compiled{Name: p.Name, Signature: sig}

	if out.State, err = r.closed("state", p.State); err != nil {
		return nil, err
	}
	if out.Constraints, err = r.closed("constraints", p.Constraints); err != nil {
		return nil, err
	}
	for i := range p.Relations {
		c, err := ResolveConcept(sig, p.Relations[i].Vars, &p.Relations[i].Formula)
		if err != nil {
			return nil, fmt.Errorf("relations[%d]: %w", i, err)
		}
		if n := c.Arity(); n < 1 || n > 2 {
			return nil, fmt.Errorf("relations[%d] %s has arity %d: %w", i, c.Name, n, ErrMalformed)
		}
		out.Relations = append(out.Relations, c)
	}
	return out, nil
}

// ResolveFormula resolves a closed formula against sig.
func ResolveFormula(sig *logic.Signature, f *Formula) (logic.Formula, error) {
	return (&resolver{sig: sig}).formula(f, nil)
}

// ResolveConcept resolves f with the declared variables in scope. The
// concept's variables are those of vars that f actually uses.
func ResolveConcept(sig *logic.Signature, vars []string, f *Formula) (*concept.Concept, error) {
	r := &resolver{sig: sig}
	scope, err := r.declare(nil, vars)
	if err != nil {
		return nil, err
	}
	resolved, err := r.formula(f, scope)
	if err != nil {
		return nil, err
	}
	return concept.FromFormula(resolved), nil
}

// ResolveTerm resolves t with the given variables in scope.
func ResolveTerm(sig *logic.Signature, scope []logic.Var, t *Term) (logic.Term, error) {
	m := make(map[string]logic.Var, len(scope))
	for _, v := range scope {
		m[v.Name] = v
	}
	return (&resolver{sig: sig}).term(t, m)
}

func (p *Problem) signature() (*logic.Signature, error) {
	sorts := make(map[string]*logic.Sort, len(p.Sorts)+1)
	sorts[logic.BoolSort.Name] = logic.BoolSort
	var decl []*logic.Sort
	for i, s := range p.Sorts {
		if s.Name == "" {
			return nil, fmt.Errorf("sorts[%d]: missing name: %w", i, ErrMalformed)
		}
		srt := logic.NewSort(s.Name)
		if len(s.Constructors) > 0 {
			srt = logic.NewEnumSort(s.Name, s.Constructors...)
		}
		sorts[s.Name] = srt
		decl = append(decl, srt)
	}

	lookup := func(name string) (*logic.Sort, error) {
		if s, ok := sorts[name]; ok {
			return s, nil
		}
		return nil, fmt.Errorf("sort %q: %w", name, ErrUnknownName)
	}
	var syms []*logic.Symbol
	for i, s := range p.Symbols {
		if s.Name == "" {
			return nil, fmt.Errorf("symbols[%d]: missing name: %w", i, ErrMalformed)
		}
		rng := logic.BoolSort
		if s.Range != "" {
			var err error
			if rng, err = lookup(s.Range); err != nil {
				return nil, fmt.Errorf("symbol %s: %w", s.Name, err)
			}
		}
		dom := make([]*logic.Sort, len(s.Args))
		for j, a := range s.Args {
			d, err := lookup(a)
			if err != nil {
				return nil, fmt.Errorf("symbol %s: %w", s.Name, err)
			}
			dom[j] = d
		}
		syms = append(syms, logic.NewFunction(s.Name, rng, dom...))
	}
	return logic.NewSignature(decl, syms)
}

// NewGraph builds a graph over the compiled signature with the problem's
// state, constraints, and relations applied.
func (c *Compiled) NewGraph(ctx context.Context, o oracle.Oracle, opts ...graph.Option) (*graph.Graph, error) {
	opts = append(opts, graph.WithState(c.State...))
	g, err := graph.New(c.Signature, o, opts...)
	if err != nil {
		return nil, err
	}
	if len(c.Constraints) > 0 {
		if err := g.AddConstraints(ctx, c.Constraints...); err != nil {
			return nil, err
		}
	}
	for _, r := range c.Relations {
		if err := g.NewRelation(ctx, r); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// ParseVar parses a variable declaration of the form "X:sort".
func ParseVar(sig *logic.Signature, decl string) (logic.Var, error) {
	name, sortName, ok := strings.Cut(decl, ":")
	name, sortName = strings.TrimSpace(name), strings.TrimSpace(sortName)
	if !ok || name == "" || sortName == "" {
		return logic.Var{}, fmt.Errorf("variable %q: want NAME:sort: %w", decl, ErrMalformed)
	}
	s, found := sig.Sort(sortName)
	if !found {
		return logic.Var{}, fmt.Errorf("variable %s: sort %q: %w", name, sortName, ErrUnknownName)
	}
	if !s.IsFirstOrder() {
		return logic.Var{}, fmt.Errorf("variable %s over %s: %w", name, sortName, ErrIllSorted)
	}
	return logic.Var{Name: name, Type: s}, nil
}
