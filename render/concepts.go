// ABOUTME: Pure renderer from an abstract value, its domain, and display flags to a display graph.
// ABOUTME: Classifies node status, builds label lines, filters edges by reduction, existence and checkboxes.
package render

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/2389-research/conceptgraph/concept"
	"github.com/2389-research/conceptgraph/dot"
)

// Node status classes.
const (
	ClassNonExisting = "non_existing"
	ClassExactlyOne  = "exactly_one"
	ClassAtLeastOne  = "at_least_one"
	ClassAtMostOne   = "at_most_one"
	ClassNodeUnknown = "node_unknown"
)

// NodeShape is the shape given to every node.
const NodeShape = "octagon"

// GraphName names every rendered concept graph.
const GraphName = "concepts"

var classDisplay = map[string]string{
	ClassNonExisting: "non existing",
	ClassExactlyOne:  "exactly one",
	ClassAtLeastOne:  "at least one",
	ClassAtMostOne:   "at most one",
	ClassNodeUnknown: "maybe non existing, maybe more than one",
}

var edgeAttributes = []string{concept.Total, concept.Functional, concept.Surjective, concept.Injective}

var edgeInfoOrder = []string{
	concept.NoneToNone, concept.AllToAll,
	concept.Total, concept.Functional, concept.Surjective, concept.Injective,
}

// NodeClass classifies a node from its node_info results.
func NodeClass(v concept.AbstractValue, node string) string {
	switch least, most := v.Holds(concept.NodeKey(concept.AtLeastOne, node)), v.Holds(concept.NodeKey(concept.AtMostOne, node)); {
	case v.Holds(concept.NodeKey(concept.None, node)):
		return ClassNonExisting
	case least && most:
		return ClassExactlyOne
	case least:
		return ClassAtLeastOne
	case most:
		return ClassAtMostOne
	default:
		return ClassNodeUnknown
	}
}

// EdgeClass returns the primary class of an edge instance.
func EdgeClass(v concept.AbstractValue, t Triple) string {
	switch {
	case v.Holds(concept.EdgeKey(concept.NoneToNone, t.Edge, t.Source, t.Target)):
		return concept.NoneToNone
	case v.Holds(concept.EdgeKey(concept.AllToAll, t.Edge, t.Source, t.Target)):
		return concept.AllToAll
	default:
		return BoxEdgeUnknown
	}
}

// contents lists what the abstract value mentions, restricted to names that
// still resolve in the domain.
type contents struct {
	nodes  []string
	labels []string
	cases  []string
	edges  []Triple
}

func collect(v concept.AbstractValue, d *concept.Domain) contents {
	nodes := make(map[string]bool)
	labels := make(map[string]bool)
	cases := make(map[string]bool)
	edges := make(map[Triple]bool)
	for k := range v {
		switch k.Tag {
		case concept.TagNodeInfo:
			nodes[k.A] = true
		case concept.TagNodeLabel:
			nodes[k.A] = true
			labels[k.B] = true
		case concept.TagEnum:
			nodes[k.A] = true
			cases[k.B] = true
		case concept.TagEdgeInfo:
			nodes[k.B] = true
			nodes[k.C] = true
			edges[Triple{k.A, k.B, k.C}] = true
		}
	}
	resolves := func(n string) bool { _, ok := d.Concept(n); return ok }
	var c contents
	live := make(map[string]bool)
	for n := range nodes {
		if k, _ := d.KindOf(n); k == concept.Nodes && resolves(n) {
			c.nodes = append(c.nodes, n)
			live[n] = true
		}
	}
	for n := range labels {
		if resolves(n) {
			c.labels = append(c.labels, n)
		}
	}
	for n := range cases {
		if resolves(n) {
			c.cases = append(c.cases, n)
		}
	}
	for t := range edges {
		if resolves(t.Edge) && live[t.Source] && live[t.Target] {
			c.edges = append(c.edges, t)
		}
	}
	slices.Sort(c.nodes)
	slices.Sort(c.labels)
	slices.Sort(c.cases)
	slices.SortFunc(c.edges, func(a, b Triple) int {
		return strings.Compare(a.Edge+"\x00"+a.Source+"\x00"+a.Target, b.Edge+"\x00"+b.Source+"\x00"+b.Target)
	})
	return c
}

// ConceptGraph renders the abstract value. Custom overrides are folded in
// first and force display of their combination. Output order is
// lexicographic so equal inputs render to equal graphs.
func ConceptGraph(value concept.AbstractValue, d *concept.Domain, flags Flags) *dot.Graph {
	v, custom := value.Resolve()
	c := collect(v, d)
	g := &dot.Graph{Name: GraphName}

	nonExisting := make(map[string]bool)
	for _, node := range c.nodes {
		class := NodeClass(v, node)
		if class == ClassNonExisting {
			nonExisting[node] = true
		}
		nc, _ := d.Concept(node)
		lines := labelLines(v, d, flags, custom, node, c)

		label := strings.Join(append([]string{concept.NodeLabel(nc)}, lines...), "\n")
		info := strings.Join(append([]string{node, nc.String(), classDisplay[class]}, lines...), "\n")
		g.AddNode(&dot.Node{
			ID:        node,
			Label:     label,
			Classes:   []string{class},
			ShortInfo: info,
			LongInfo:  info,
			Cluster:   clusterOf(node),
			Shape:     NodeShape,
		})
	}

	hidden := Reduce(v, c.edges, flags)
	for _, t := range c.edges {
		overridden := custom[t.parts()]
		if hidden.Hidden(t) && !overridden {
			continue
		}
		if nonExisting[t.Source] || nonExisting[t.Target] {
			continue
		}
		primary := EdgeClass(v, t)
		if !flags.Edge(t.Edge, primary) && !overridden {
			continue
		}
		classes := []string{primary}
		if primary != concept.NoneToNone {
			for _, a := range edgeAttributes {
				if v.Holds(concept.EdgeKey(a, t.Edge, t.Source, t.Target)) {
					classes = append(classes, a)
				}
			}
		}
		lines := []string{fmt.Sprintf("%s(%s, %s):", t.Edge, t.Source, t.Target)}
		for _, a := range edgeInfoOrder {
			if v.Holds(concept.EdgeKey(a, t.Edge, t.Source, t.Target)) {
				lines = append(lines, strings.ReplaceAll(a, "_", " "))
			}
		}
		ec, _ := d.Concept(t.Edge)
		g.AddEdge(&dot.Edge{
			From:      t.Source,
			To:        t.Target,
			Label:     concept.Label(ec),
			Classes:   classes,
			ShortInfo: strings.Join(lines, "\n"),
			LongInfo:  append([]string{ec.String()}, lines[1:]...),
		})
	}
	g.AssignEdgeIDs()
	return g
}

// clusterOf groups concrete-model elements named sort!index by their sort.
func clusterOf(node string) string {
	i := strings.Index(node, "!")
	if i < 0 {
		return ""
	}
	j := strings.LastIndexFunc(node[:i], func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	return strings.ToLower(node[j+1 : i])
}

func labelLines(v concept.AbstractValue, d *concept.Domain, flags Flags, custom map[concept.Parts]bool, node string, c contents) []string {
	var lines []string
	for _, label := range c.labels {
		if !v.Has(concept.LabelKey(concept.NodeNecessarily, node, label)) {
			continue
		}
		box := BoxMaybe
		switch {
		case v.Holds(concept.LabelKey(concept.NodeNecessarily, node, label)):
			box = BoxNecessarily
		case v.Holds(concept.LabelKey(concept.NodeNecessarilyNot, node, label)):
			box = BoxNecessarilyNot
		}
		if !flags.Label(label, box) && !custom[concept.Parts{A: node, B: label}] {
			continue
		}
		lc, _ := d.Concept(label)
		lab := concept.Label(lc)
		switch box {
		case BoxMaybe:
			lab += "?"
		case BoxNecessarilyNot:
			lab = "~" + lab
		}
		lines = append(lines, lab)
	}
	for _, ec := range c.cases {
		if !v.Holds(concept.EnumKey(node, ec)) {
			continue
		}
		if !flags.Label(ec, BoxNecessarily) && !custom[concept.Parts{A: node, B: ec}] {
			continue
		}
		cc, _ := d.Concept(ec)
		lines = append(lines, concept.Label(cc))
	}
	return lines
}
