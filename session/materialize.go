// ABOUTME: Witness materialization and emptiness suppositions for nodes and edges.
// ABOUTME: Witnesses are fresh or reused constants; each operation suppose-constrains and splits through the session.
package session

import (
	"context"
	"fmt"
	"slices"

	"github.com/2389-research/conceptgraph/concept"
	"github.com/2389-research/conceptgraph/logic"
)

func (s *Session) nodeConcept(name string) (*concept.Concept, error) {
	c, ok := s.domain.Concept(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, concept.ErrUnknown)
	}
	if k, _ := s.domain.KindOf(name); k != concept.Nodes {
		return nil, fmt.Errorf("%s: %w", name, concept.ErrNotANode)
	}
	return c, nil
}

func combinerFormula(name string, cs ...*concept.Concept) logic.Formula {
	cb, _ := concept.StandardCombiner(name)
	f, ok := cb.Formula(cs...)
	if !ok {
		panic(fmt.Sprintf("session: %s is not well sorted for %d concepts", name, len(cs)))
	}
	return f
}

// definitelyEmpty consults the abstract value, then the oracle.
func (s *Session) definitelyEmpty(ctx context.Context, node *concept.Concept) bool {
	if t, ok := s.value.Get(concept.NodeKey(concept.None, node.Name)); ok && t != concept.Unknown {
		return t == concept.True
	}
	t, err := s.decide(ctx, s.Constraints(), combinerFormula(concept.None, node))
	return err == nil && t == concept.True
}

// witnessFor returns a constant of the node's sort that is provably in the
// node, or nil.
func (s *Session) witnessFor(ctx context.Context, node *concept.Concept) *logic.Symbol {
	constraints := s.Constraints()
	for _, c := range logic.Constants(constraints...) {
		if !logic.SameSort(c.Rng, node.Sort()) {
			continue
		}
		t, err := s.decide(ctx, constraints, node.Apply(logic.Apply(c)))
		if err == nil && t == concept.True {
			return c
		}
	}
	return nil
}

func (s *Session) freshWitness(srt *logic.Sort, avoid []*logic.Symbol) *logic.Symbol {
	taken := make(map[string]bool)
	for _, c := range logic.Symbols(s.Constraints()...) {
		taken[c.Name] = true
	}
	for _, w := range append(slices.Clone(s.witnesses), avoid...) {
		taken[w.Name] = true
	}
	for n := 0; ; n++ {
		name := fmt.Sprintf("w_%s_%d", srt.Name, n)
		if taken[name] || s.declared(name) {
			continue
		}
		return logic.NewConst(name, srt)
	}
}

func (s *Session) declared(name string) bool {
	if s.sig == nil {
		return false
	}
	_, ok := s.sig.Symbol(name)
	return ok
}

// materialize picks or creates a witness for node, returning the witness
// and the constraint that places it in the node (nil when reused). Fresh
// names avoid the given symbols.
func (s *Session) materialize(ctx context.Context, node *concept.Concept, avoid ...*logic.Symbol) (*logic.Symbol, logic.Formula, error) {
	if s.definitelyEmpty(ctx, node) {
		return nil, nil, fmt.Errorf("%s: %w", node.Name, ErrEmptyNode)
	}
	if w := s.witnessFor(ctx, node); w != nil {
		return w, nil, nil
	}
	w := s.freshWitness(node.Sort(), avoid)
	return w, node.Apply(logic.Apply(w)), nil
}

// MaterializeNode introduces a witness element of the node and splits the
// node by it. It returns the witness concept X = w.
func (s *Session) MaterializeNode(ctx context.Context, node string) (*concept.Concept, error) {
	c, err := s.nodeConcept(node)
	if err != nil {
		return nil, err
	}
	w, member, err := s.materialize(ctx, c)
	if err != nil {
		return nil, err
	}
	wc := concept.Witness(w)
	err = s.mutate("materialize", func() error {
		if _, _, err := s.domain.Split(node, wc); err != nil {
			return err
		}
		if member != nil {
			s.suppose = append(s.suppose, member)
			s.witnesses = append(s.witnesses, w)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wc, nil
}

// MaterializeEdge introduces witnesses for source and target, supposes that
// the edge holds between them (or not), and splits both nodes. A self edge
// uses one witness.
func (s *Session) MaterializeEdge(ctx context.Context, edge, src, tgt string, truth bool) (ws, wt *concept.Concept, err error) {
	e, ok := s.domain.Concept(edge)
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", edge, concept.ErrUnknown)
	}
	if e.Arity() != 2 {
		return nil, nil, fmt.Errorf("%s: %w", edge, concept.ErrArity)
	}
	sc, err := s.nodeConcept(src)
	if err != nil {
		return nil, nil, err
	}
	tc, err := s.nodeConcept(tgt)
	if err != nil {
		return nil, nil, err
	}
	if !logic.SameSort(e.Vars[0].Type, sc.Sort()) || !logic.SameSort(e.Vars[1].Type, tc.Sort()) {
		return nil, nil, fmt.Errorf("edge %s between %s and %s: %w", edge, src, tgt, concept.ErrSortMismatch)
	}
	blocked := concept.EdgeKey(concept.NoneToNone, edge, src, tgt)
	if !truth {
		blocked = concept.EdgeKey(concept.AllToAll, edge, src, tgt)
	}
	if s.value.Holds(blocked) {
		return nil, nil, fmt.Errorf("edge %s(%s, %s) = %t: %w", edge, src, tgt, truth, ErrContradiction)
	}

	w1, m1, err := s.materialize(ctx, sc)
	if err != nil {
		return nil, nil, err
	}
	w2, m2 := w1, m1
	if src != tgt {
		if w2, m2, err = s.materialize(ctx, tc, w1); err != nil {
			return nil, nil, err
		}
	}
	var rel logic.Formula = e.Apply(logic.Apply(w1), logic.Apply(w2))
	if !truth {
		rel = logic.Neg(rel)
	}
	ws, wt = concept.Witness(w1), concept.Witness(w2)

	err = s.mutate("materialize_edge", func() error {
		if _, _, err := s.domain.Split(src, ws); err != nil {
			return err
		}
		if src != tgt {
			if _, _, err := s.domain.Split(tgt, wt); err != nil {
				return err
			}
		}
		for _, m := range []struct {
			w *logic.Symbol
			f logic.Formula
		}{{w1, m1}, {w2, m2}} {
			if m.f != nil && !containsWitness(s.witnesses, m.w) {
				s.suppose = append(s.suppose, m.f)
				s.witnesses = append(s.witnesses, m.w)
			}
		}
		s.suppose = append(s.suppose, rel)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return ws, wt, nil
}

func containsWitness(ws []*logic.Symbol, w *logic.Symbol) bool {
	for _, x := range ws {
		if x.Name == w.Name {
			return true
		}
	}
	return false
}

// SupposeEmpty supposes the node has no elements.
func (s *Session) SupposeEmpty(node string) error {
	c, err := s.nodeConcept(node)
	if err != nil {
		return err
	}
	if t, _ := s.value.Get(concept.NodeKey(concept.None, node)); t == concept.False {
		return fmt.Errorf("%s is not empty: %w", node, ErrContradiction)
	}
	f := combinerFormula(concept.None, c)
	return s.mutate("suppose_empty", func() error {
		s.suppose = append(s.suppose, f)
		return nil
	})
}

// SupposeEmptyEdge supposes the edge holds between no source and target elements.
func (s *Session) SupposeEmptyEdge(edge, src, tgt string) error {
	e, ok := s.domain.Concept(edge)
	if !ok {
		return fmt.Errorf("%s: %w", edge, concept.ErrUnknown)
	}
	sc, err := s.nodeConcept(src)
	if err != nil {
		return err
	}
	tc, err := s.nodeConcept(tgt)
	if err != nil {
		return err
	}
	cb, _ := concept.StandardCombiner(concept.NoneToNone)
	f, ok := cb.Formula(e, sc, tc)
	if !ok {
		return fmt.Errorf("edge %s between %s and %s: %w", edge, src, tgt, concept.ErrSortMismatch)
	}
	if t, _ := s.value.Get(concept.EdgeKey(concept.NoneToNone, edge, src, tgt)); t == concept.False {
		return fmt.Errorf("edge %s(%s, %s) is not empty: %w", edge, src, tgt, ErrContradiction)
	}
	return s.mutate("suppose_empty_edge", func() error {
		s.suppose = append(s.suppose, f)
		return nil
	})
}
