// ABOUTME: Tests for the display graph types: lookups, traversal, stable edge IDs, and deep copies.
// ABOUTME: Clone independence is checked structurally with go-cmp.
package dot

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() *Graph {
	g := &Graph{Name: "concepts"}
	g.AddNode(&Node{ID: "X:node.X = X", Label: "node", Classes: []string{"exactly_one"}})
	g.AddNode(&Node{ID: "X:client.X = X", Label: "client", Classes: []string{"node_unknown"}})
	g.AddEdge(&Edge{From: "X:client.X = X", To: "X:node.X = X", Label: "owner", Classes: []string{"all_to_all", "total"}, LongInfo: []string{"owner"}})
	g.AddEdge(&Edge{From: "X:node.X = X", To: "X:node.X = X", Label: "link", Classes: []string{"edge_unknown"}})
	return g
}

func TestAddAndFindNode(t *testing.T) {
	var g Graph
	assert.Nil(t, g.FindNode("a"))
	g.AddNode(&Node{ID: "a"})
	require.NotNil(t, g.FindNode("a"))
	assert.Equal(t, "a", g.FindNode("a").ID)
}

func TestNodeIDsSorted(t *testing.T) {
	assert.Equal(t, []string{"X:client.X = X", "X:node.X = X"}, sampleGraph().NodeIDs())
}

func TestIncomingOutgoing(t *testing.T) {
	g := sampleGraph()
	assert.Len(t, g.OutgoingEdges("X:node.X = X"), 1)
	assert.Len(t, g.IncomingEdges("X:node.X = X"), 2)
	assert.Empty(t, g.OutgoingEdges("missing"))
}

func TestAssignEdgeIDsDisambiguates(t *testing.T) {
	g := &Graph{}
	g.AddEdge(&Edge{From: "a", To: "b", Label: "r"})
	g.AddEdge(&Edge{From: "a", To: "b", Label: "r"})
	g.AddEdge(&Edge{ID: "kept", From: "a", To: "b", Label: "r"})
	g.AssignEdgeIDs()

	assert.Equal(t, "r:a->b", g.Edges[0].ID)
	assert.Equal(t, "r:a->b#2", g.Edges[1].ID)
	assert.Equal(t, "kept", g.Edges[2].ID)
	assert.Same(t, g.Edges[1], g.FindEdge("r:a->b#2"))
}

func TestHasClass(t *testing.T) {
	g := sampleGraph()
	assert.True(t, g.FindNode("X:node.X = X").HasClass("exactly_one"))
	assert.False(t, g.FindNode("X:node.X = X").HasClass("node_unknown"))
	assert.True(t, g.Edges[0].HasClass("total"))
}

func TestCloneIsDeep(t *testing.T) {
	g := sampleGraph()
	g.Attrs = map[string]string{"rankdir": "LR"}
	c := g.Clone()
	assert.Empty(t, cmp.Diff(g, c))

	c.Nodes["X:node.X = X"].Classes[0] = "non_existing"
	c.Edges[0].LongInfo[0] = "changed"
	c.Attrs["rankdir"] = "TB"

	assert.Equal(t, "exactly_one", g.Nodes["X:node.X = X"].Classes[0])
	assert.Equal(t, "owner", g.Edges[0].LongInfo[0])
	assert.Equal(t, "LR", g.Attrs["rankdir"])
	assert.Nil(t, (*Graph)(nil).Clone())
}
