// ABOUTME: Immutable signature value: the declared sorts and symbols a graph is built over.
// ABOUTME: Validates declarations on construction and is passed explicitly to every consumer.
package logic

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrDuplicate is returned when a sort or symbol name is declared twice.
	ErrDuplicate = errors.New("duplicate declaration")
	// ErrUndeclaredSort is returned when a symbol refers to a sort that is not declared.
	ErrUndeclaredSort = errors.New("undeclared sort")
)

// Signature holds the declared sorts and symbols in declaration order.
// A Signature never changes after NewSignature returns.
type Signature struct {
	sorts   []*Sort
	byName  map[string]*Sort
	symbols []*Symbol
	symName map[string]*Symbol
}

// NewSignature validates and returns a signature. The boolean sort is implicit.
func NewSignature(sorts []*Sort, symbols []*Symbol) (*Signature, error) {
	sig := &Signature{
		byName:  map[string]*Sort{BoolSort.Name: BoolSort},
		symName: make(map[string]*Symbol),
	}
	for _, s := range sorts {
		if _, dup := sig.byName[s.Name]; dup {
			return nil, fmt.Errorf("sort %q: %w", s.Name, ErrDuplicate)
		}
		sig.byName[s.Name] = s
		sig.sorts = append(sig.sorts, s)
		for _, c := range s.Constructors {
			if _, dup := sig.symName[c]; dup {
				return nil, fmt.Errorf("constructor %q: %w", c, ErrDuplicate)
			}
			sig.symName[c] = &Symbol{Name: c, Rng: s}
		}
	}
	for _, sym := range symbols {
		if _, dup := sig.symName[sym.Name]; dup {
			return nil, fmt.Errorf("symbol %q: %w", sym.Name, ErrDuplicate)
		}
		for _, d := range append(slices.Clone(sym.Dom), sym.Rng) {
			if d == nil {
				return nil, fmt.Errorf("symbol %q: nil sort: %w", sym.Name, ErrUndeclaredSort)
			}
			if got, ok := sig.byName[d.Name]; !ok || got != d {
				return nil, fmt.Errorf("symbol %q: sort %q: %w", sym.Name, d.Name, ErrUndeclaredSort)
			}
		}
		sig.symName[sym.Name] = sym
		sig.symbols = append(sig.symbols, sym)
	}
	return sig, nil
}

// Sorts returns the declared sorts in declaration order.
func (s *Signature) Sorts() []*Sort {
	return slices.Clone(s.sorts)
}

// FirstOrderSorts returns the declared sorts whose values are individuals.
func (s *Signature) FirstOrderSorts() []*Sort {
	var out []*Sort
	for _, srt := range s.sorts {
		if srt.IsFirstOrder() {
			out = append(out, srt)
		}
	}
	return out
}

// Symbols returns the declared symbols in declaration order. Enumerated
// constructors are not included.
func (s *Signature) Symbols() []*Symbol {
	return slices.Clone(s.symbols)
}

// Sort looks up a sort by name.
func (s *Signature) Sort(name string) (*Sort, bool) {
	srt, ok := s.byName[name]
	return srt, ok
}

// Symbol looks up a declared symbol or enumerated constructor by name.
func (s *Signature) Symbol(name string) (*Symbol, bool) {
	sym, ok := s.symName[name]
	return sym, ok
}

// SortNames returns the names of all declared sorts, sorted.
func (s *Signature) SortNames() []string {
	names := make([]string, 0, len(s.sorts))
	for _, srt := range s.sorts {
		names = append(names, srt.Name)
	}
	slices.Sort(names)
	return names
}
