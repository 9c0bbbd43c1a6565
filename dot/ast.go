// ABOUTME: Display graph handed to layout and front ends: nodes and edges with classes, labels, and info text.
// ABOUTME: Provides lookup and traversal helpers, stable edge IDs, and deep copies for checkpointing.
package dot

import (
	"fmt"
	"slices"
	"sort"
)

// Graph is a rendered concept graph.
type Graph struct {
	Name         string
	Nodes        map[string]*Node
	Edges        []*Edge
	Attrs        map[string]string // graph-level attributes
	NodeDefaults map[string]string // node [...] defaults
	EdgeDefaults map[string]string // edge [...] defaults
}

// Node is one node concept as displayed.
type Node struct {
	ID        string
	Label     string   // multi-line: sort name, then label lines
	Classes   []string // status class first
	ShortInfo string
	LongInfo  string
	Cluster   string // optional grouping key
	Shape     string
}

// Edge is one (edge concept, source, target) triple as displayed.
type Edge struct {
	ID        string
	From      string
	To        string
	Label     string
	Classes   []string // primary class first, then attribute classes
	ShortInfo string
	LongInfo  []string
}

// AddNode adds a node to the graph, initializing the Nodes map if needed.
func (g *Graph) AddNode(n *Node) {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	g.Nodes[n.ID] = n
}

// AddEdge appends an edge to the graph.
func (g *Graph) AddEdge(e *Edge) {
	g.Edges = append(g.Edges, e)
}

// FindNode returns the node with the given ID, or nil if not found.
func (g *Graph) FindNode(id string) *Node {
	if g.Nodes == nil {
		return nil
	}
	return g.Nodes[id]
}

// FindEdge returns the edge with the given ID, or nil if not found.
func (g *Graph) FindEdge(id string) *Edge {
	for _, e := range g.Edges {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// OutgoingEdges returns all edges originating from the given node ID.
func (g *Graph) OutgoingEdges(nodeID string) []*Edge {
	var result []*Edge
	for _, e := range g.Edges {
		if e.From == nodeID {
			result = append(result, e)
		}
	}
	return result
}

// IncomingEdges returns all edges terminating at the given node ID.
func (g *Graph) IncomingEdges(nodeID string) []*Edge {
	var result []*Edge
	for _, e := range g.Edges {
		if e.To == nodeID {
			result = append(result, e)
		}
	}
	return result
}

// NodeIDs returns all node IDs in sorted order for deterministic output.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasClass reports whether the node carries class c.
func (n *Node) HasClass(c string) bool { return slices.Contains(n.Classes, c) }

// HasClass reports whether the edge carries class c.
func (e *Edge) HasClass(c string) bool { return slices.Contains(e.Classes, c) }

// StableID returns a deterministic identifier built from the edge label and endpoints.
func (e *Edge) StableID() string {
	return e.Label + ":" + e.From + "->" + e.To
}

// AssignEdgeIDs assigns a unique ID to each edge that does not already have one.
// Edges sharing a stable ID get a numeric suffix.
func (g *Graph) AssignEdgeIDs() {
	counts := make(map[string]int)
	for _, e := range g.Edges {
		if e.ID != "" {
			continue
		}
		key := e.StableID()
		counts[key]++
		if counts[key] == 1 {
			e.ID = key
		} else {
			e.ID = fmt.Sprintf("%s#%d", key, counts[key])
		}
	}
}

// Clone returns a deep copy of g. A nil graph clones to nil.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	c := &Graph{
		Name:         g.Name,
		Attrs:        cloneMap(g.Attrs),
		NodeDefaults: cloneMap(g.NodeDefaults),
		EdgeDefaults: cloneMap(g.EdgeDefaults),
	}
	for _, id := range g.NodeIDs() {
		n := *g.Nodes[id]
		n.Classes = slices.Clone(n.Classes)
		c.AddNode(&n)
	}
	for _, e := range g.Edges {
		ec := *e
		ec.Classes = slices.Clone(e.Classes)
		ec.LongInfo = slices.Clone(e.LongInfo)
		c.AddEdge(&ec)
	}
	return c
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
