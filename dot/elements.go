// ABOUTME: Cytoscape-style JSON elements for web front ends: one element per node and edge.
// ABOUTME: Element order follows the graph's deterministic order so equal graphs marshal to equal bytes.
package dot

import (
	"encoding/json"
	"strings"
)

// Element is one entry in a Cytoscape elements array.
type Element struct {
	Group   string      `json:"group"`
	Data    ElementData `json:"data"`
	Classes string      `json:"classes,omitempty"`
}

// ElementData carries the display fields of a node or an edge.
type ElementData struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Source    string   `json:"source,omitempty"`
	Target    string   `json:"target,omitempty"`
	Parent    string   `json:"parent,omitempty"`
	Shape     string   `json:"shape,omitempty"`
	ShortInfo string   `json:"short_info,omitempty"`
	LongInfo  []string `json:"long_info,omitempty"`
}

// Elements lists the cluster parents, then nodes sorted by ID, then edges in
// graph order.
func Elements(g *Graph) []Element {
	ids := g.NodeIDs()
	clusters := make(map[string]bool)
	for _, id := range ids {
		if c := g.Nodes[id].Cluster; c != "" {
			clusters[c] = true
		}
	}

	out := make([]Element, 0, len(clusters)+len(ids)+len(g.Edges))
	for _, c := range sortedKeys(clusters) {
		out = append(out, Element{
			Group:   "nodes",
			Data:    ElementData{ID: clusterID(c), Label: c},
			Classes: "cluster",
		})
	}
	for _, id := range ids {
		n := g.Nodes[id]
		d := ElementData{
			ID:        n.ID,
			Label:     n.Label,
			Shape:     n.Shape,
			ShortInfo: n.ShortInfo,
		}
		if n.LongInfo != "" {
			d.LongInfo = []string{n.LongInfo}
		}
		if n.Cluster != "" {
			d.Parent = clusterID(n.Cluster)
		}
		out = append(out, Element{Group: "nodes", Data: d, Classes: strings.Join(n.Classes, " ")})
	}
	for _, e := range g.Edges {
		out = append(out, Element{
			Group: "edges",
			Data: ElementData{
				ID:        e.ID,
				Label:     e.Label,
				Source:    e.From,
				Target:    e.To,
				ShortInfo: e.ShortInfo,
				LongInfo:  e.LongInfo,
			},
			Classes: strings.Join(e.Classes, " "),
		})
	}
	return out
}

// MarshalElements encodes the graph's elements as JSON.
func MarshalElements(g *Graph) ([]byte, error) {
	return json.Marshal(Elements(g))
}

func clusterID(name string) string { return "cluster_" + name }
