// ABOUTME: Refinement operations on a Graph: constraints, state, relations, splits, materialization, emptiness.
// ABOUTME: Each operation delegates to the session and then refreshes the vocabulary through changed.
package graph

import (
	"context"
	"fmt"

	"github.com/2389-research/conceptgraph/concept"
	"github.com/2389-research/conceptgraph/logic"
)

// AddConstraints appends suppose constraints.
func (g *Graph) AddConstraints(ctx context.Context, fs ...logic.Formula) error {
	if err := g.session.Suppose(fs...); err != nil {
		return err
	}
	return g.changed(ctx, "add_constraints")
}

// SetState replaces the base state.
func (g *Graph) SetState(ctx context.Context, fs []logic.Formula) error {
	if err := g.session.SetState(fs); err != nil {
		return err
	}
	return g.changed(ctx, "set_state")
}

// NewRelation registers a unary or binary concept as a label or edge. The
// concept survives later vocabulary rebuilds.
func (g *Graph) NewRelation(ctx context.Context, c *concept.Concept) error {
	if n := c.Arity(); n < 1 || n > 2 {
		return fmt.Errorf("relation %s has arity %d: %w", c.Name, n, concept.ErrArity)
	}
	if err := g.session.AddConcept(c, ""); err != nil {
		return err
	}
	g.relations = append(g.relations, c)
	return g.changed(ctx, "new_relation")
}

// Split partitions a node by a unary concept into node & by and node & ~by.
func (g *Graph) Split(ctx context.Context, node string, by *concept.Concept) (pos, neg *concept.Concept, err error) {
	if pos, neg, err = g.session.Split(node, by); err != nil {
		return nil, nil, err
	}
	return pos, neg, g.changed(ctx, "split")
}

// SplitNWay partitions a node into one successor per part.
func (g *Graph) SplitNWay(ctx context.Context, node string, parts []*concept.Concept) ([]*concept.Concept, error) {
	succ, err := g.session.SplitNWay(node, parts)
	if err != nil {
		return nil, err
	}
	return succ, g.changed(ctx, "split_n_way")
}

// SplitByValues partitions a node into one successor per candidate value of
// t, where t is a term over the node's variable X.
func (g *Graph) SplitByValues(ctx context.Context, node string, t logic.Term, values []logic.Term) ([]*concept.Concept, error) {
	parts := make([]*concept.Concept, len(values))
	for i, v := range values {
		parts[i] = concept.FromFormula(logic.Equals(t, v))
	}
	return g.SplitNWay(ctx, node, parts)
}

// Splatter splits a node into X = c for every constant c of its sort used in
// the constraints.
func (g *Graph) Splatter(ctx context.Context, node string) ([]*concept.Concept, error) {
	c, err := g.concept(node)
	if err != nil {
		return nil, err
	}
	var values []logic.Term
	for _, k := range logic.Constants(g.session.Constraints()...) {
		if logic.SameSort(k.Rng, c.Sort()) {
			values = append(values, logic.Apply(k))
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("splatter %s: %w", node, ErrNoConstants)
	}
	return g.SplitByValues(ctx, node, c.Vars[0], values)
}

// Materialize introduces a witness element of the node and returns the
// witness concept X = w.
func (g *Graph) Materialize(ctx context.Context, node string) (*concept.Concept, error) {
	w, err := g.session.MaterializeNode(ctx, node)
	if err != nil {
		return nil, err
	}
	return w, g.changed(ctx, "materialize")
}

// MaterializeEdge introduces witnesses for the edge's endpoints and supposes
// the edge holds between them, or does not when truth is false.
func (g *Graph) MaterializeEdge(ctx context.Context, edge, src, tgt string, truth bool) (ws, wt *concept.Concept, err error) {
	if ws, wt, err = g.session.MaterializeEdge(ctx, edge, src, tgt, truth); err != nil {
		return nil, nil, err
	}
	return ws, wt, g.changed(ctx, "materialize_edge")
}

// Empty supposes the node has no elements.
func (g *Graph) Empty(ctx context.Context, node string) error {
	if err := g.session.SupposeEmpty(node); err != nil {
		return err
	}
	return g.changed(ctx, "empty")
}

// EmptyEdge supposes the edge relates no source element to any target element.
func (g *Graph) EmptyEdge(ctx context.Context, edge, src, tgt string) error {
	if err := g.session.SupposeEmptyEdge(edge, src, tgt); err != nil {
		return err
	}
	return g.changed(ctx, "empty_edge")
}
