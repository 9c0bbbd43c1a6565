// ABOUTME: Term and formula AST for the typed first-order language concepts are written in.
// ABOUTME: Provides constructors and a canonical textual form used to derive concept names.
package logic

import (
	"strings"
)

// Term is a variable or a function application (constants are nullary applications).
type Term interface {
	Sort() *Sort
	String() string
	isTerm()
}

// Var is a sorted variable.
type Var struct {
	Name string
	Type *Sort
}

func (v Var) Sort() *Sort    { return v.Type }
func (v Var) String() string { return v.Name }
func (Var) isTerm()          {}

// Decl renders the variable with its sort, e.g. "X:node".
func (v Var) Decl() string { return v.Name + ":" + v.Type.Name }

// App applies a non-relation symbol to argument terms.
type App struct {
	Sym  *Symbol
	Args []Term
}

func (a *App) Sort() *Sort { return a.Sym.Rng }
func (a *App) String() string {
	return applyString(a.Sym.Name, a.Args)
}
func (*App) isTerm() {}

// Formula is a node of the formula AST.
type Formula interface {
	String() string
	isFormula()
}

// Atom applies a relation symbol to argument terms.
type Atom struct {
	Rel  *Symbol
	Args []Term
}

// Eq is equality between two terms of the same sort.
type Eq struct {
	L, R Term
}

// Not negates a formula.
type Not struct {
	F Formula
}

// And is a conjunction; the empty conjunction is true.
type And struct {
	Fs []Formula
}

// Or is a disjunction; the empty disjunction is false.
type Or struct {
	Fs []Formula
}

// Implies is material implication.
type Implies struct {
	L, R Formula
}

// Forall universally quantifies Body over Vars.
type Forall struct {
	Vars []Var
	Body Formula
}

// Exists existentially quantifies Body over Vars.
type Exists struct {
	Vars []Var
	Body Formula
}

func (*Atom) isFormula()    {}
func (*Eq) isFormula()      {}
func (*Not) isFormula()     {}
func (*And) isFormula()     {}
func (*Or) isFormula()      {}
func (*Implies) isFormula() {}
func (*Forall) isFormula()  {}
func (*Exists) isFormula()  {}

func (f *Atom) String() string { return applyString(f.Rel.Name, f.Args) }
func (f *Eq) String() string   { return f.L.String() + " = " + f.R.String() }

func (f *Not) String() string {
	switch g := f.F.(type) {
	case *Eq:
		return g.L.String() + " ~= " + g.R.String()
	case *Atom, *And, *Or, *Implies, *Forall, *Exists:
		return "~" + g.String()
	default:
		return "~(" + g.String() + ")"
	}
}

func (f *And) String() string { return junction(f.Fs, " & ", "true") }
func (f *Or) String() string  { return junction(f.Fs, " | ", "false") }

func (f *Implies) String() string {
	return "(" + f.L.String() + " -> " + f.R.String() + ")"
}

func (f *Forall) String() string { return quantString("forall", f.Vars, f.Body) }
func (f *Exists) String() string { return quantString("exists", f.Vars, f.Body) }

// True returns the empty conjunction.
func True() Formula { return &And{} }

// False returns the empty disjunction.
func False() Formula { return &Or{} }

// Rel applies a relation symbol.
func Rel(sym *Symbol, args ...Term) *Atom { return &Atom{Rel: sym, Args: args} }

// Apply applies a function or constant symbol.
func Apply(sym *Symbol, args ...Term) *App { return &App{Sym: sym, Args: args} }

// Equals builds l = r.
func Equals(l, r Term) *Eq { return &Eq{L: l, R: r} }

// Neg negates f, collapsing double negation.
func Neg(f Formula) Formula {
	if n, ok := f.(*Not); ok {
		return n.F
	}
	return &Not{F: f}
}

// Conj builds the conjunction of fs. A single conjunct is returned unchanged.
func Conj(fs ...Formula) Formula {
	if len(fs) == 1 {
		return fs[0]
	}
	return &And{Fs: fs}
}

// Disj builds the disjunction of fs. A single disjunct is returned unchanged.
func Disj(fs ...Formula) Formula {
	if len(fs) == 1 {
		return fs[0]
	}
	return &Or{Fs: fs}
}

// Imp builds l -> r.
func Imp(l, r Formula) *Implies { return &Implies{L: l, R: r} }

// ForAll quantifies body universally. With no variables body is returned unchanged.
func ForAll(vars []Var, body Formula) Formula {
	if len(vars) == 0 {
		return body
	}
	return &Forall{Vars: vars, Body: body}
}

// Exist quantifies body existentially. With no variables body is returned unchanged.
func Exist(vars []Var, body Formula) Formula {
	if len(vars) == 0 {
		return body
	}
	return &Exists{Vars: vars, Body: body}
}

func applyString(name string, args []Term) string {
	if len(args) == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}

func junction(fs []Formula, sep, empty string) string {
	switch len(fs) {
	case 0:
		return empty
	case 1:
		return fs[0].String()
	}
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func quantString(q string, vars []Var, body Formula) string {
	decls := make([]string, len(vars))
	for i, v := range vars {
		decls[i] = v.Decl()
	}
	return "(" + q + " " + strings.Join(decls, ",") + ". " + body.String() + ")"
}
