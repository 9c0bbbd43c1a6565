// ABOUTME: Sorts and symbols of a typed first-order signature: uninterpreted, enumerated, and boolean sorts.
// ABOUTME: Symbols carry a domain and range; enumerated constructors are recognized as constant symbols.
package logic

import (
	"slices"
	"strings"
)

// SortKind distinguishes the three kinds of sorts a signature may declare.
type SortKind int

const (
	Uninterpreted SortKind = iota
	Enumerated
	Boolean
)

// String returns the lowercase name of the kind.
func (k SortKind) String() string {
	switch k {
	case Uninterpreted:
		return "uninterpreted"
	case Enumerated:
		return "enumerated"
	case Boolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Sort is a type in the signature. Sorts are immutable once created and are
// compared by name.
type Sort struct {
	Name         string
	Kind         SortKind
	Constructors []string // ordered, enumerated sorts only
}

// BoolSort is the single boolean sort shared by every signature.
var BoolSort = &Sort{Name: "bool", Kind: Boolean}

// NewSort returns an uninterpreted sort.
func NewSort(name string) *Sort {
	return &Sort{Name: name, Kind: Uninterpreted}
}

// NewEnumSort returns an enumerated sort with the given ordered constructors.
func NewEnumSort(name string, constructors ...string) *Sort {
	return &Sort{Name: name, Kind: Enumerated, Constructors: slices.Clone(constructors)}
}

func (s *Sort) String() string { return s.Name }

// IsFirstOrder reports whether values of the sort are individuals rather than truth values.
func (s *Sort) IsFirstOrder() bool { return s.Kind != Boolean }

// SameSort compares two sorts by name. A nil sort only equals another nil sort.
func SameSort(a, b *Sort) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name
}

// Symbol is a constant, function, or relation symbol. A relation is a symbol
// whose range is BoolSort; a constant has an empty domain.
type Symbol struct {
	Name string
	Dom  []*Sort
	Rng  *Sort
}

// NewConst returns a constant symbol of the given sort.
func NewConst(name string, rng *Sort) *Symbol {
	return &Symbol{Name: name, Rng: rng}
}

// NewRelation returns a relation symbol over the given domain sorts.
func NewRelation(name string, dom ...*Sort) *Symbol {
	return &Symbol{Name: name, Dom: dom, Rng: BoolSort}
}

// NewFunction returns a function symbol with the given range and domain.
func NewFunction(name string, rng *Sort, dom ...*Sort) *Symbol {
	return &Symbol{Name: name, Dom: dom, Rng: rng}
}

// Arity returns the number of arguments the symbol takes.
func (s *Symbol) Arity() int { return len(s.Dom) }

// IsRelation reports whether the symbol ranges over truth values.
func (s *Symbol) IsRelation() bool { return s.Rng != nil && s.Rng.Kind == Boolean }

// IsConstructor reports whether the symbol is one of the constructors of its
// enumerated range sort.
func (s *Symbol) IsConstructor() bool {
	if len(s.Dom) != 0 || s.Rng == nil || s.Rng.Kind != Enumerated {
		return false
	}
	return slices.Contains(s.Rng.Constructors, s.Name)
}

// String renders the symbol's declaration, e.g. "f(node,node):bool".
func (s *Symbol) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	if len(s.Dom) > 0 {
		b.WriteByte('(')
		for i, d := range s.Dom {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(d.Name)
		}
		b.WriteByte(')')
	}
	b.WriteByte(':')
	b.WriteString(s.Rng.Name)
	return b.String()
}

// Ctor returns the constructor term for name in the enumerated sort s.
func Ctor(s *Sort, name string) *App {
	return &App{Sym: &Symbol{Name: name, Rng: s}}
}
