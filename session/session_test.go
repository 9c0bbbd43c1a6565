// ABOUTME: Tests for the concept session: caching, projection, mutation invalidation, cloning, and materialization.
// ABOUTME: Runs against the bounded oracle wrapped in a query counter.
package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/conceptgraph/concept"
	"github.com/2389-research/conceptgraph/logic"
	"github.com/2389-research/conceptgraph/oracle"
)

type counting struct {
	inner oracle.Oracle
	calls atomic.Int64
}

func (c *counting) Decide(ctx context.Context, q oracle.Query) (oracle.Verdict, error) {
	c.calls.Add(1)
	return c.inner.Decide(ctx, q)
}

type world struct {
	node   *logic.Sort
	leader *logic.Symbol
	link   *logic.Symbol
	root   *logic.Symbol
	sig    *logic.Signature
	x, y   logic.Var
}

func newWorld(t *testing.T) world {
	t.Helper()
	node := logic.NewSort("node")
	w := world{
		node:   node,
		leader: logic.NewRelation("leader", node),
		link:   logic.NewRelation("link", node, node),
		root:   logic.NewConst("root", node),
		x:      logic.Var{Name: "X", Type: node},
		y:      logic.Var{Name: "Y", Type: node},
	}
	sig, err := logic.NewSignature([]*logic.Sort{node}, []*logic.Symbol{w.leader, w.link, w.root})
	require.NoError(t, err)
	w.sig = sig
	return w
}

const nodeX = "X:node.X = X"

func (w world) session(t *testing.T, o oracle.Oracle) *Session {
	t.Helper()
	d := concept.InitialDomain([]*logic.Sort{w.node})
	require.NoError(t, concept.AddSignatureConcepts(d, []*logic.Symbol{w.leader, w.link}))
	return New(w.sig, o, d)
}

func TestRecomputeCachesResults(t *testing.T) {
	w := newWorld(t)
	o := &counting{inner: oracle.NewBounded()}
	s := w.session(t, o)

	require.NoError(t, s.Recompute(context.Background(), concept.All))
	first := o.calls.Load()
	require.Positive(t, first)

	require.NoError(t, s.Recompute(context.Background(), concept.All))
	assert.Equal(t, first, o.calls.Load(), "second recompute must be served from cache")
	assert.Len(t, s.Cache(), int(first))
}

func TestMutationClearsCacheAndValue(t *testing.T) {
	w := newWorld(t)
	s := w.session(t, oracle.NewBounded())
	s.Override(concept.NodeKey(concept.None, nodeX), concept.False)
	require.NoError(t, s.Recompute(context.Background(), concept.All))
	require.NotEmpty(t, s.Cache())
	fp := s.Fingerprint()

	require.NoError(t, s.Suppose(logic.Rel(w.leader, logic.Apply(w.root))))
	assert.Empty(t, s.Cache())
	assert.NotEqual(t, fp, s.Fingerprint())
	assert.Equal(t, concept.AbstractValue{concept.NodeKey(concept.None, nodeX).Custom(): concept.False}, s.Value(),
		"only overrides survive a mutation")
}

func TestProjectionSkipsHiddenConcepts(t *testing.T) {
	w := newWorld(t)
	s := w.session(t, oracle.NewBounded())
	noEdges := func(name string, kind concept.Kind) bool { return kind != concept.Edges }
	require.NoError(t, s.Recompute(context.Background(), noEdges))

	for k := range s.Value() {
		assert.NotEqual(t, concept.TagEdgeInfo, k.Tag)
	}
	assert.True(t, s.Value().Has(concept.LabelKey(concept.NodeNecessarily, nodeX, "X:node.leader(X)")))
}

func TestOracleErrorsFoldToUnknown(t *testing.T) {
	w := newWorld(t)
	failing := oracle.Func(func(context.Context, oracle.Query) (oracle.Verdict, error) {
		return oracle.Valid, errors.New("solver crashed")
	})
	s := w.session(t, failing)
	require.NoError(t, s.Recompute(context.Background(), concept.All))

	v := s.Value()
	require.NotEmpty(t, v)
	for k, truth := range v {
		assert.Equal(t, concept.Unknown, truth, k.String())
	}
	assert.Empty(t, s.Cache(), "failed queries are not cached")
}

func TestRecomputeStopsOnCancel(t *testing.T) {
	w := newWorld(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := w.session(t, oracle.Func(func(ctx context.Context, q oracle.Query) (oracle.Verdict, error) {
		return oracle.Unknown, ctx.Err()
	}))
	assert.ErrorIs(t, s.Recompute(ctx, concept.All), context.Canceled)
}

func TestCloneIsIndependent(t *testing.T) {
	w := newWorld(t)
	s := w.session(t, oracle.NewBounded())
	require.NoError(t, s.Recompute(context.Background(), concept.All))

	c := s.Clone()
	assert.Empty(t, cmp.Diff(s.Value(), c.Value()))
	assert.Empty(t, cmp.Diff(s.Cache(), c.Cache()))

	require.NoError(t, c.Suppose(logic.Rel(w.leader, logic.Apply(w.root))))
	_, _, err := c.Split(nodeX, concept.FromFormula(logic.Rel(w.leader, w.x)))
	require.NoError(t, err)

	assert.NotEmpty(t, s.Cache())
	assert.Empty(t, s.Supposed())
	assert.Equal(t, []string{nodeX}, s.Domain().Bucket(concept.Nodes))
}

func TestMonotoneUnderConsistentSuppositions(t *testing.T) {
	w := newWorld(t)
	s := w.session(t, oracle.NewBounded())
	ctx := context.Background()
	require.NoError(t, s.Suppose(logic.Exist([]logic.Var{w.x}, logic.Rel(w.leader, w.x))))
	require.NoError(t, s.Recompute(ctx, concept.All))
	before := s.Value()

	require.NoError(t, s.Suppose(logic.ForAll([]logic.Var{w.x, w.y}, logic.Equals(w.x, w.y))))
	require.NoError(t, s.Recompute(ctx, concept.All))
	after := s.Value()

	for k, t0 := range before {
		if t0 == concept.Unknown {
			continue
		}
		assert.Equal(t, t0, after[k], "definite result flipped for %s", k)
	}
	assert.True(t, after.Holds(concept.NodeKey(concept.AtMostOne, nodeX)))
	assert.True(t, after.Holds(concept.NodeKey(concept.AtLeastOne, nodeX)))
}

func TestMaterializeNode(t *testing.T) {
	w := newWorld(t)
	s := w.session(t, oracle.NewBounded())
	ctx := context.Background()

	wc, err := s.MaterializeNode(ctx, nodeX)
	require.NoError(t, err)
	assert.Equal(t, "X:node.X = w_node_0", wc.Name)
	require.Len(t, s.Witnesses(), 1)
	assert.Equal(t, "w_node_0", s.Witnesses()[0].Name)
	assert.Equal(t, []string{
		"X:node.(X = X & X = w_node_0)",
		"X:node.(X = X & X ~= w_node_0)",
	}, s.Domain().Bucket(concept.Nodes))

	require.NoError(t, s.Recompute(ctx, concept.All))
	v := s.Value()
	pos := "X:node.(X = X & X = w_node_0)"
	assert.True(t, v.Holds(concept.NodeKey(concept.AtLeastOne, pos)))
	assert.True(t, v.Holds(concept.NodeKey(concept.AtMostOne, pos)))
}

func TestMaterializeReusesProvenWitness(t *testing.T) {
	w := newWorld(t)
	s := w.session(t, oracle.NewBounded())
	require.NoError(t, s.Suppose(logic.Rel(w.leader, logic.Apply(w.root))))
	_, _, err := s.Split(nodeX, concept.FromFormula(logic.Rel(w.leader, w.x)))
	require.NoError(t, err)

	wc, err := s.MaterializeNode(context.Background(), "X:node.(X = X & leader(X))")
	require.NoError(t, err)
	assert.Equal(t, "X:node.X = root", wc.Name)
	assert.Empty(t, s.Witnesses())
	assert.Len(t, s.Supposed(), 1)
}

func TestMaterializeEmptyNodeFails(t *testing.T) {
	w := newWorld(t)
	s := w.session(t, oracle.NewBounded())
	require.NoError(t, s.SupposeEmpty(nodeX))

	_, err := s.MaterializeNode(context.Background(), nodeX)
	assert.ErrorIs(t, err, ErrEmptyNode)
	assert.Equal(t, []string{nodeX}, s.Domain().Bucket(concept.Nodes), "domain untouched on failure")
}

func TestMaterializeEdge(t *testing.T) {
	w := newWorld(t)
	s := w.session(t, oracle.NewBounded())
	ctx := context.Background()
	link := "X:node,Y:node.link(X,Y)"

	ws, wt, err := s.MaterializeEdge(ctx, link, nodeX, nodeX, true)
	require.NoError(t, err)
	assert.Equal(t, ws.Name, wt.Name, "self edge uses one witness")
	assert.Equal(t, "link(w_node_0,w_node_0)", s.Supposed()[len(s.Supposed())-1].String())

	require.NoError(t, s.Recompute(ctx, concept.All))
	pos := "X:node.(X = X & X = w_node_0)"
	assert.True(t, s.Value().Holds(concept.EdgeKey(concept.AllToAll, link, pos, pos)))
}

func TestSupposeEmptyRejectsContradiction(t *testing.T) {
	w := newWorld(t)
	s := w.session(t, oracle.NewBounded())
	ctx := context.Background()
	require.NoError(t, s.Suppose(logic.Rel(w.leader, logic.Apply(w.root))))
	require.NoError(t, s.Recompute(ctx, concept.All))

	assert.ErrorIs(t, s.SupposeEmpty(nodeX), ErrContradiction)

	link := "X:node,Y:node.link(X,Y)"
	require.NoError(t, s.SupposeEmptyEdge(link, nodeX, nodeX))
	require.NoError(t, s.Recompute(ctx, concept.All))
	assert.True(t, s.Value().Holds(concept.EdgeKey(concept.NoneToNone, link, nodeX, nodeX)))

	_, _, err := s.MaterializeEdge(ctx, link, nodeX, nodeX, true)
	assert.ErrorIs(t, err, ErrContradiction)
}
