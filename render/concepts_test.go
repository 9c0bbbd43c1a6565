// ABOUTME: Tests for the concept renderer and edge reduction over hand-built abstract values.
// ABOUTME: Covers node classification, label lines, edge filtering, overrides, reduction, and determinism.
package render

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/conceptgraph/concept"
	"github.com/2389-research/conceptgraph/dot"
	"github.com/2389-research/conceptgraph/logic"
)

const (
	nodeA  = "X:node.a(X)"
	nodeB  = "X:node.b(X)"
	nodeC  = "X:node.c(X)"
	link   = "X:node,Y:node.link(X,Y)"
	leader = "X:node.leader(X)"
)

func testDomain(t *testing.T) *concept.Domain {
	t.Helper()
	node := logic.NewSort("node")
	x := logic.Var{Name: "X", Type: node}
	y := logic.Var{Name: "Y", Type: node}
	d := concept.NewDomain()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, d.Add(concept.FromFormula(logic.Rel(logic.NewRelation(name, node), x)), concept.Nodes))
	}
	require.NoError(t, d.Add(concept.FromFormula(logic.Rel(logic.NewRelation("leader", node), x)), concept.NodeLabels))
	require.NoError(t, d.Add(concept.FromFormula(logic.Rel(logic.NewRelation("link", node, node), x, y)), concept.Edges))
	return d
}

// existing marks nodes exactly_one.
func existing(v concept.AbstractValue, nodes ...string) {
	for _, n := range nodes {
		v[concept.NodeKey(concept.None, n)] = concept.False
		v[concept.NodeKey(concept.AtLeastOne, n)] = concept.True
		v[concept.NodeKey(concept.AtMostOne, n)] = concept.True
	}
}

func allToAll(v concept.AbstractValue, src, tgt string) {
	v[concept.EdgeKey(concept.AllToAll, link, src, tgt)] = concept.True
	v[concept.EdgeKey(concept.NoneToNone, link, src, tgt)] = concept.False
}

func allBoxes(c *Checkboxes, name string, boxes []string) {
	for _, b := range boxes {
		if c.Edges[name] == nil {
			c.Edges[name] = map[string]bool{}
		}
		c.Edges[name][b] = true
	}
}

func edgePairs(g *dot.Graph) [][2]string {
	var out [][2]string
	for _, e := range g.Edges {
		out = append(out, [2]string{e.From, e.To})
	}
	return out
}

func TestNodeClassification(t *testing.T) {
	tests := []struct {
		name              string
		none, least, most concept.Truth
		want              string
	}{
		{"empty", concept.True, concept.False, concept.True, ClassNonExisting},
		{"exactly one", concept.False, concept.True, concept.True, ClassExactlyOne},
		{"at least one", concept.False, concept.True, concept.Unknown, ClassAtLeastOne},
		{"at most one", concept.Unknown, concept.Unknown, concept.True, ClassAtMostOne},
		{"unknown", concept.Unknown, concept.Unknown, concept.Unknown, ClassNodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := concept.AbstractValue{
				concept.NodeKey(concept.None, nodeA):       tt.none,
				concept.NodeKey(concept.AtLeastOne, nodeA): tt.least,
				concept.NodeKey(concept.AtMostOne, nodeA):  tt.most,
			}
			assert.Equal(t, tt.want, NodeClass(v, nodeA))

			g := ConceptGraph(v, testDomain(t), NewCheckboxes())
			n := g.FindNode(nodeA)
			require.NotNil(t, n)
			assert.Equal(t, []string{tt.want}, n.Classes)
			assert.Equal(t, NodeShape, n.Shape)
			assert.Equal(t, "node", n.Label)
		})
	}
}

func TestLabelLines(t *testing.T) {
	d := testDomain(t)
	v := concept.AbstractValue{}
	existing(v, nodeA, nodeB, nodeC)
	v[concept.LabelKey(concept.NodeNecessarily, nodeA, leader)] = concept.True
	v[concept.LabelKey(concept.NodeNecessarilyNot, nodeA, leader)] = concept.False
	v[concept.LabelKey(concept.NodeNecessarily, nodeB, leader)] = concept.False
	v[concept.LabelKey(concept.NodeNecessarilyNot, nodeB, leader)] = concept.True
	v[concept.LabelKey(concept.NodeNecessarily, nodeC, leader)] = concept.Unknown
	v[concept.LabelKey(concept.NodeNecessarilyNot, nodeC, leader)] = concept.Unknown

	boxes := NewCheckboxes()
	g := ConceptGraph(v, d, boxes)
	assert.Equal(t, "node", g.FindNode(nodeA).Label, "labels hidden while checkboxes are off")

	for _, b := range LabelBoxes {
		boxes.SetLabel(leader, b, true)
	}
	g = ConceptGraph(v, d, boxes)
	assert.Equal(t, "node\nleader", g.FindNode(nodeA).Label)
	assert.Equal(t, "node\n~leader", g.FindNode(nodeB).Label)
	assert.Equal(t, "node\nleader?", g.FindNode(nodeC).Label)
	assert.Equal(t, "X:node.c(X)\nc(X)\nexactly one\nleader?", g.FindNode(nodeC).ShortInfo)
}

func TestCustomLabelShownWithoutCheckbox(t *testing.T) {
	v := concept.AbstractValue{}
	existing(v, nodeA)
	v[concept.LabelKey(concept.NodeNecessarily, nodeA, leader)] = concept.Unknown
	v[concept.LabelKey(concept.NodeNecessarily, nodeA, leader).Custom()] = concept.True

	g := ConceptGraph(v, testDomain(t), NewCheckboxes())
	assert.Equal(t, "node\nleader", g.FindNode(nodeA).Label)
}

func TestEdgeClassesAndInfo(t *testing.T) {
	d := testDomain(t)
	v := concept.AbstractValue{}
	existing(v, nodeA, nodeB)
	allToAll(v, nodeA, nodeB)
	v[concept.EdgeKey(concept.Total, link, nodeA, nodeB)] = concept.True
	v[concept.EdgeKey(concept.Injective, link, nodeA, nodeB)] = concept.True
	v[concept.EdgeKey(concept.Functional, link, nodeA, nodeB)] = concept.Unknown

	boxes := NewCheckboxes()
	boxes.SetEdge(link, BoxAllToAll, true)
	g := ConceptGraph(v, d, boxes)

	require.Len(t, g.Edges, 1)
	e := g.Edges[0]
	assert.Equal(t, []string{concept.AllToAll, concept.Total, concept.Injective}, e.Classes)
	assert.Equal(t, "link(X,Y)", e.Label)
	assert.Equal(t, "X:node,Y:node.link(X,Y)(X:node.a(X), X:node.b(X)):\nall to all\ntotal\ninjective", e.ShortInfo)
	assert.Equal(t, []string{"link(X,Y)", "all to all", "total", "injective"}, e.LongInfo)
	assert.Equal(t, "link(X,Y):X:node.a(X)->X:node.b(X)", e.ID)
}

func TestNoneToNoneDropsAttributes(t *testing.T) {
	v := concept.AbstractValue{}
	existing(v, nodeA)
	v[concept.EdgeKey(concept.NoneToNone, link, nodeA, nodeA)] = concept.True
	v[concept.EdgeKey(concept.Injective, link, nodeA, nodeA)] = concept.True
	boxes := NewCheckboxes()
	boxes.SetEdge(link, BoxNoneToNone, true)

	g := ConceptGraph(v, testDomain(t), boxes)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, []string{concept.NoneToNone}, g.Edges[0].Classes)
}

func TestEdgeHiddenWhenPrimaryCheckboxOff(t *testing.T) {
	d := testDomain(t)
	v := concept.AbstractValue{}
	existing(v, nodeA, nodeB)
	allToAll(v, nodeA, nodeB)
	boxes := NewCheckboxes()
	boxes.SetEdge(link, BoxEdgeUnknown, true)

	assert.Empty(t, ConceptGraph(v, d, boxes).Edges, "definite edge with its class box off is not drawn")

	v[concept.EdgeKey(concept.AllToAll, link, nodeA, nodeB).Custom()] = concept.True
	assert.Len(t, ConceptGraph(v, d, boxes).Edges, 1, "override forces display")
}

func TestEdgesToNonExistingNodesSuppressed(t *testing.T) {
	v := concept.AbstractValue{}
	existing(v, nodeA)
	v[concept.NodeKey(concept.None, nodeB)] = concept.True
	allToAll(v, nodeA, nodeB)
	v[concept.EdgeKey(concept.AllToAll, link, nodeA, nodeB).Custom()] = concept.True
	boxes := NewCheckboxes()
	allBoxes(boxes, link, EdgeBoxes)

	g := ConceptGraph(v, testDomain(t), boxes)
	assert.Equal(t, []string{ClassNonExisting}, g.FindNode(nodeB).Classes)
	assert.Empty(t, g.Edges)
}

func TestTransitiveReductionHidesImpliedEdge(t *testing.T) {
	d := testDomain(t)
	v := concept.AbstractValue{}
	existing(v, nodeA, nodeB, nodeC)
	allToAll(v, nodeA, nodeB)
	allToAll(v, nodeB, nodeC)
	v[concept.EdgeKey(concept.AllToAll, link, nodeA, nodeC)] = concept.Unknown
	boxes := NewCheckboxes()
	allBoxes(boxes, link, EdgeBoxes)

	g := ConceptGraph(v, d, boxes)
	assert.Equal(t, [][2]string{{nodeA, nodeB}, {nodeB, nodeC}}, edgePairs(g))

	boxes.SetEdge(link, BoxTransitive, false)
	g = ConceptGraph(v, d, boxes)
	assert.Len(t, g.Edges, 3)
}

func TestReduceSelfLoopsAreReflexiveOnly(t *testing.T) {
	v := concept.AbstractValue{}
	allToAll(v, nodeA, nodeA)
	allToAll(v, nodeA, nodeB)
	allToAll(v, nodeB, nodeA)
	boxes := NewCheckboxes()
	boxes.SetEdge(link, BoxTransitive, true)
	edges := []Triple{{link, nodeA, nodeA}, {link, nodeA, nodeB}, {link, nodeB, nodeA}}

	r := Reduce(v, edges, boxes)
	assert.Equal(t, map[Triple]bool{{link, nodeA, nodeA}: true}, r.Reflexive)
	for tr := range r.Transitive {
		assert.NotEqual(t, tr.Source, tr.Target, "self loop in transitive set: %v", tr)
	}
	assert.True(t, r.Hidden(Triple{link, nodeA, nodeA}))
}

func TestReduceIsOneLevel(t *testing.T) {
	nodeD := "X:node.d(X)"
	v := concept.AbstractValue{}
	allToAll(v, nodeA, nodeB)
	allToAll(v, nodeB, nodeC)
	allToAll(v, nodeC, nodeD)
	boxes := NewCheckboxes()
	boxes.SetEdge(link, BoxTransitive, true)
	edges := []Triple{{link, nodeA, nodeB}, {link, nodeB, nodeC}, {link, nodeC, nodeD}}

	r := Reduce(v, edges, boxes)
	assert.Equal(t, map[Triple]bool{
		{link, nodeA, nodeC}: true,
		{link, nodeB, nodeD}: true,
	}, r.Transitive, "a->d is not hidden: propagation does not close longer chains")
}

func TestReduceIgnoresEdgesWithoutTransitiveBox(t *testing.T) {
	v := concept.AbstractValue{}
	allToAll(v, nodeA, nodeB)
	allToAll(v, nodeB, nodeC)
	r := Reduce(v, []Triple{{link, nodeA, nodeB}, {link, nodeB, nodeC}}, NewCheckboxes())
	assert.Empty(t, r.Transitive)
	assert.Empty(t, r.Reflexive)
}

func TestStaleNamesAreNotRendered(t *testing.T) {
	v := concept.AbstractValue{}
	existing(v, nodeA, "X:node.gone(X)")
	g := ConceptGraph(v, testDomain(t), NewCheckboxes())
	assert.Equal(t, []string{nodeA}, g.NodeIDs())
}

func TestClusterBySortPrefix(t *testing.T) {
	node := logic.NewSort("node")
	x := logic.Var{Name: "X", Type: node}
	d := concept.NewDomain()
	elem := logic.NewConst("Node!0", node)
	c := concept.FromFormula(logic.Equals(x, logic.Apply(elem)))
	require.NoError(t, d.Add(c, concept.Nodes))
	v := concept.AbstractValue{}
	existing(v, c.Name)

	g := ConceptGraph(v, d, NewCheckboxes())
	assert.Equal(t, "node", g.FindNode(c.Name).Cluster)
}

func TestRenderDeterministic(t *testing.T) {
	d := testDomain(t)
	v := concept.AbstractValue{}
	existing(v, nodeA, nodeB, nodeC)
	allToAll(v, nodeA, nodeB)
	allToAll(v, nodeC, nodeA)
	v[concept.EdgeKey(concept.AllToAll, link, nodeB, nodeB)] = concept.Unknown
	boxes := NewCheckboxes()
	allBoxes(boxes, link, EdgeBoxes[:3])

	first := ConceptGraph(v, d, boxes)
	second := ConceptGraph(v.Clone(), d, boxes.Clone())
	assert.Empty(t, cmp.Diff(first, second))
	assert.Equal(t, dot.Serialize(first), dot.Serialize(second))
	assert.Equal(t, [][2]string{{nodeA, nodeB}, {nodeB, nodeB}, {nodeC, nodeA}}, edgePairs(first))
}

func TestCheckboxesSetIndex(t *testing.T) {
	c := NewCheckboxes()
	assert.True(t, c.SetIndex(leader, 1, true))
	assert.True(t, c.Label(leader, BoxMaybe))
	assert.True(t, c.Edge(leader, BoxEdgeUnknown))

	assert.True(t, c.SetIndex(link, 3, true))
	assert.True(t, c.Edge(link, BoxTransitive))
	assert.False(t, c.AnyEdge(link), "transitive alone does not count")
	assert.False(t, c.SetIndex(link, 4, true))

	cl := c.Clone()
	cl.SetEdge(link, BoxAllToAll, true)
	assert.False(t, c.Edge(link, BoxAllToAll))
	assert.True(t, cl.AnyEdge(link))
	assert.True(t, c.AnyLabel(leader))
}
