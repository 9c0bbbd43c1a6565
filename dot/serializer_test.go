// ABOUTME: Tests for DOT serialization and JSON elements of display graphs.
// ABOUTME: Covers quoting, determinism, cluster subgraphs, class styling, and element layout.
package dot

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", `""`},
		{"box", "box"},
		{"1.5", "1.5"},
		{"-3", "-3"},
		{"X:node.X = X", `"X:node.X = X"`},
		{"node\n~leader", `"node\n~leader"`},
		{`say "hi"`, `"say \"hi\""`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, quoteValue(tt.in))
		})
	}
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, isNumeric("42"))
	assert.True(t, isNumeric("0.5"))
	assert.False(t, isNumeric("-"))
	assert.False(t, isNumeric("1.2.3"))
	assert.False(t, isNumeric("a1"))
}

func TestSerializeDeterministic(t *testing.T) {
	a := Serialize(sampleGraph())
	b := Serialize(sampleGraph())
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "digraph concepts {\n"))
	assert.True(t, strings.HasSuffix(a, "}\n"))

	client := strings.Index(a, `"X:client.X = X" [`)
	node := strings.Index(a, `"X:node.X = X" [`)
	require.True(t, client >= 0 && node >= 0)
	assert.Less(t, client, node, "nodes are emitted in ID order")
}

func TestSerializeStylesByClass(t *testing.T) {
	out := Serialize(sampleGraph())
	assert.Contains(t, out, `fillcolor="#90EE90"`)
	assert.Contains(t, out, `class="all_to_all total"`)
	assert.Contains(t, out, "style=dashed")
	assert.Contains(t, out, `"X:client.X = X" -> "X:node.X = X"`)
}

func TestSerializeClusters(t *testing.T) {
	g := &Graph{Name: "model"}
	g.AddNode(&Node{ID: "node!0", Label: "0", Cluster: "node", Shape: "octagon"})
	g.AddNode(&Node{ID: "node!1", Label: "1", Cluster: "node", Shape: "octagon"})
	g.AddNode(&Node{ID: "free", Label: "free"})
	out := Serialize(g)

	assert.Contains(t, out, "  subgraph cluster_node {\n    label=node\n")
	assert.Contains(t, out, `    "node!0" [class="", label=0, shape=octagon]`)
	assert.Contains(t, out, "  free [class=\"\", label=free]\n")
}

func TestElementsLayout(t *testing.T) {
	g := sampleGraph()
	g.AddNode(&Node{ID: "node!0", Label: "0", Cluster: "node", LongInfo: "node!0"})
	g.AssignEdgeIDs()
	els := Elements(g)

	require.Len(t, els, 6)
	assert.Equal(t, Element{Group: "nodes", Data: ElementData{ID: "cluster_node", Label: "node"}, Classes: "cluster"}, els[0])
	assert.Equal(t, "X:client.X = X", els[1].Data.ID)
	assert.Equal(t, "cluster_node", els[3].Data.Parent)
	assert.Equal(t, []string{"node!0"}, els[3].Data.LongInfo)
	assert.Equal(t, "edges", els[4].Group)
	assert.Equal(t, "all_to_all total", els[4].Classes)
	assert.Equal(t, "X:client.X = X", els[4].Data.Source)
}

func TestMarshalElements(t *testing.T) {
	g := sampleGraph()
	g.AssignEdgeIDs()
	raw, err := MarshalElements(g)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 4)
	data := decoded[2]["data"].(map[string]any)
	assert.Equal(t, "owner:X:client.X = X->X:node.X = X", data["id"])
	assert.Equal(t, "X:node.X = X", data["target"])
}
