// ABOUTME: Structural operations on formulas: free variables, capture-avoiding substitution, symbol collection.
// ABOUTME: Results are returned in name order so callers can build deterministic names and keys from them.
package logic

import (
	"fmt"
	"sort"
)

// FreeVars returns the free variables of f sorted by name.
func FreeVars(f Formula) []Var {
	seen := make(map[string]Var)
	freeVars(f, map[string]bool{}, seen)
	out := make([]Var, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsClosed reports whether f has no free variables.
func IsClosed(f Formula) bool {
	return len(FreeVars(f)) == 0
}

// IsGround reports whether t contains no variables.
func IsGround(t Term) bool {
	seen := make(map[string]Var)
	termVars(t, map[string]bool{}, seen)
	return len(seen) == 0
}

func freeVars(f Formula, bound map[string]bool, out map[string]Var) {
	switch g := f.(type) {
	case *Atom:
		for _, a := range g.Args {
			termVars(a, bound, out)
		}
	case *Eq:
		termVars(g.L, bound, out)
		termVars(g.R, bound, out)
	case *Not:
		freeVars(g.F, bound, out)
	case *And:
		for _, h := range g.Fs {
			freeVars(h, bound, out)
		}
	case *Or:
		for _, h := range g.Fs {
			freeVars(h, bound, out)
		}
	case *Implies:
		freeVars(g.L, bound, out)
		freeVars(g.R, bound, out)
	case *Forall:
		freeVars(g.Body, extendBound(bound, g.Vars), out)
	case *Exists:
		freeVars(g.Body, extendBound(bound, g.Vars), out)
	}
}

func termVars(t Term, bound map[string]bool, out map[string]Var) {
	switch u := t.(type) {
	case Var:
		if !bound[u.Name] {
			out[u.Name] = u
		}
	case *App:
		for _, a := range u.Args {
			termVars(a, bound, out)
		}
	}
}

func extendBound(bound map[string]bool, vars []Var) map[string]bool {
	next := make(map[string]bool, len(bound)+len(vars))
	for k := range bound {
		next[k] = true
	}
	for _, v := range vars {
		next[v.Name] = true
	}
	return next
}

// Substitute replaces free occurrences of variables (by name) with terms.
// Bound variables that would capture a free variable of a replacement are renamed.
func Substitute(f Formula, sub map[string]Term) Formula {
	if len(sub) == 0 {
		return f
	}
	switch g := f.(type) {
	case *Atom:
		return &Atom{Rel: g.Rel, Args: substTerms(g.Args, sub)}
	case *Eq:
		return &Eq{L: SubstituteTerm(g.L, sub), R: SubstituteTerm(g.R, sub)}
	case *Not:
		return &Not{F: Substitute(g.F, sub)}
	case *And:
		return &And{Fs: substFormulas(g.Fs, sub)}
	case *Or:
		return &Or{Fs: substFormulas(g.Fs, sub)}
	case *Implies:
		return &Implies{L: Substitute(g.L, sub), R: Substitute(g.R, sub)}
	case *Forall:
		vars, body := substQuant(g.Vars, g.Body, sub)
		return &Forall{Vars: vars, Body: body}
	case *Exists:
		vars, body := substQuant(g.Vars, g.Body, sub)
		return &Exists{Vars: vars, Body: body}
	default:
		panic(fmt.Sprintf("logic: unknown formula type %T", f))
	}
}

// SubstituteTerm replaces variables (by name) in t.
func SubstituteTerm(t Term, sub map[string]Term) Term {
	switch u := t.(type) {
	case Var:
		if r, ok := sub[u.Name]; ok {
			return r
		}
		return u
	case *App:
		if len(u.Args) == 0 {
			return u
		}
		return &App{Sym: u.Sym, Args: substTerms(u.Args, sub)}
	default:
		panic(fmt.Sprintf("logic: unknown term type %T", t))
	}
}

func substTerms(ts []Term, sub map[string]Term) []Term {
	out := make([]Term, len(ts))
	for i, t := range ts {
		out[i] = SubstituteTerm(t, sub)
	}
	return out
}

func substFormulas(fs []Formula, sub map[string]Term) []Formula {
	out := make([]Formula, len(fs))
	for i, f := range fs {
		out[i] = Substitute(f, sub)
	}
	return out
}

func substQuant(vars []Var, body Formula, sub map[string]Term) ([]Var, Formula) {
	inner := make(map[string]Term, len(sub))
	for k, v := range sub {
		inner[k] = v
	}
	for _, v := range vars {
		delete(inner, v.Name)
	}
	if len(inner) == 0 {
		return vars, body
	}

	// a bound variable is renamed when a replacement would be captured by it
	captured := make(map[string]Var)
	for _, t := range inner {
		termVars(t, map[string]bool{}, captured)
	}
	taken := make(map[string]bool)
	for name := range captured {
		taken[name] = true
	}
	for _, v := range FreeVars(body) {
		taken[v.Name] = true
	}
	for _, v := range vars {
		taken[v.Name] = true
	}

	out := make([]Var, len(vars))
	for i, v := range vars {
		out[i] = v
		if _, clash := captured[v.Name]; !clash {
			continue
		}
		fresh := freshName(v.Name, taken)
		taken[fresh] = true
		out[i] = Var{Name: fresh, Type: v.Type}
		inner[v.Name] = out[i]
	}
	return out, Substitute(body, inner)
}

func freshName(base string, taken map[string]bool) string {
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s%d", base, n)
		if !taken[name] {
			return name
		}
	}
}

// Symbols returns every symbol used in fs, including enumerated constructors,
// deduplicated by name and sorted by name.
func Symbols(fs ...Formula) []*Symbol {
	seen := make(map[string]*Symbol)
	for _, f := range fs {
		formulaSymbols(f, seen)
	}
	return sortedSymbols(seen)
}

// Constants returns the first-order, non-constructor constant symbols used in fs.
func Constants(fs ...Formula) []*Symbol {
	var out []*Symbol
	for _, s := range Symbols(fs...) {
		if s.Arity() == 0 && s.Rng.IsFirstOrder() && !s.IsConstructor() {
			out = append(out, s)
		}
	}
	return out
}

func formulaSymbols(f Formula, out map[string]*Symbol) {
	switch g := f.(type) {
	case *Atom:
		out[g.Rel.Name] = g.Rel
		for _, a := range g.Args {
			termSymbols(a, out)
		}
	case *Eq:
		termSymbols(g.L, out)
		termSymbols(g.R, out)
	case *Not:
		formulaSymbols(g.F, out)
	case *And:
		for _, h := range g.Fs {
			formulaSymbols(h, out)
		}
	case *Or:
		for _, h := range g.Fs {
			formulaSymbols(h, out)
		}
	case *Implies:
		formulaSymbols(g.L, out)
		formulaSymbols(g.R, out)
	case *Forall:
		formulaSymbols(g.Body, out)
	case *Exists:
		formulaSymbols(g.Body, out)
	}
}

func termSymbols(t Term, out map[string]*Symbol) {
	if a, ok := t.(*App); ok {
		out[a.Sym.Name] = a.Sym
		for _, x := range a.Args {
			termSymbols(x, out)
		}
	}
}

func sortedSymbols(m map[string]*Symbol) []*Symbol {
	out := make([]*Symbol, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
