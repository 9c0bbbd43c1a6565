// ABOUTME: Serializer that converts a display Graph to DOT source for graphviz layout.
// ABOUTME: Groups clustered nodes into cluster subgraphs and maps display classes to colors and line styles.
package dot

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Serialize converts a Graph to a DOT-formatted string with deterministic output.
// Nodes are sorted by ID, clusters by name, and attributes by key.
func Serialize(g *Graph) string {
	var b strings.Builder

	// digraph header
	name := g.Name
	if needsQuoting(name) {
		name = quoteValue(name)
	}
	fmt.Fprintf(&b, "digraph %s {\n", name)

	if len(g.Attrs) > 0 {
		fmt.Fprintf(&b, "  graph [%s]\n", formatAttrs(g.Attrs))
	}
	if len(g.NodeDefaults) > 0 {
		fmt.Fprintf(&b, "  node [%s]\n", formatAttrs(g.NodeDefaults))
	}
	if len(g.EdgeDefaults) > 0 {
		fmt.Fprintf(&b, "  edge [%s]\n", formatAttrs(g.EdgeDefaults))
	}
	if len(g.Attrs) > 0 || len(g.NodeDefaults) > 0 || len(g.EdgeDefaults) > 0 {
		b.WriteString("\n")
	}

	nodeIDs := g.NodeIDs()
	clusters := make(map[string][]string)
	for _, id := range nodeIDs {
		n := g.Nodes[id]
		if n.Cluster != "" {
			clusters[n.Cluster] = append(clusters[n.Cluster], id)
			continue
		}
		fmt.Fprintf(&b, "  %s [%s]\n", quoteID(id), formatAttrs(nodeAttrs(n)))
	}

	for _, cl := range sortedKeys(clusters) {
		if len(nodeIDs) > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  subgraph %s {\n", quoteID("cluster_"+cl))
		fmt.Fprintf(&b, "    label=%s\n", quoteValue(cl))
		for _, id := range clusters[cl] {
			fmt.Fprintf(&b, "    %s [%s]\n", quoteID(id), formatAttrs(nodeAttrs(g.Nodes[id])))
		}
		b.WriteString("  }\n")
	}

	if len(nodeIDs) > 0 && len(g.Edges) > 0 {
		b.WriteString("\n")
	}

	for _, e := range g.Edges {
		fmt.Fprintf(&b, "  %s -> %s [%s]\n", quoteID(e.From), quoteID(e.To), formatAttrs(edgeAttrs(e)))
	}

	b.WriteString("}\n")
	return b.String()
}

// nodeColors maps a node status class to a fill color.
var nodeColors = map[string]string{
	"exactly_one":  "#90EE90",
	"at_least_one": "#ADD8E6",
	"at_most_one":  "#FFFFE0",
	"node_unknown": "#DDDDDD",
	"non_existing": "#FFB6C1",
}

// edgeStyles maps an edge primary class to a line style.
var edgeStyles = map[string]string{
	"all_to_all":   "solid",
	"edge_unknown": "dashed",
	"none_to_none": "dotted",
}

func nodeAttrs(n *Node) map[string]string {
	attrs := map[string]string{
		"label": n.Label,
		"class": strings.Join(n.Classes, " "),
	}
	if n.Shape != "" {
		attrs["shape"] = n.Shape
	}
	if n.ShortInfo != "" {
		attrs["tooltip"] = n.ShortInfo
	}
	if len(n.Classes) > 0 {
		if color, ok := nodeColors[n.Classes[0]]; ok {
			attrs["fillcolor"] = color
			attrs["style"] = "filled"
		}
	}
	return attrs
}

func edgeAttrs(e *Edge) map[string]string {
	attrs := map[string]string{
		"label": e.Label,
		"class": strings.Join(e.Classes, " "),
	}
	if e.ShortInfo != "" {
		attrs["tooltip"] = e.ShortInfo
	}
	if len(e.Classes) > 0 {
		if style, ok := edgeStyles[e.Classes[0]]; ok {
			attrs["style"] = style
		}
	}
	return attrs
}

// formatAttrs renders a map of key=value pairs as a comma-separated string with sorted keys.
func formatAttrs(attrs map[string]string) string {
	keys := sortedKeys(attrs)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, quoteValue(attrs[k])))
	}
	return strings.Join(parts, ", ")
}

func quoteID(id string) string {
	if needsQuoting(id) {
		return quoteValue(id)
	}
	return id
}

// quoteValue returns a DOT-safe representation of a value.
// Simple identifiers (lowercase letters, digits, underscores, dots for numbers) are returned bare.
// Everything else is double-quoted with proper escaping.
func quoteValue(val string) string {
	if val == "" {
		return `""`
	}

	if isBareIdentifier(val) {
		return val
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, ch := range val {
		switch ch {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(ch)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// isBareIdentifier returns true if val can be represented without quotes in DOT.
func isBareIdentifier(val string) bool {
	if val == "" {
		return false
	}
	if isNumeric(val) {
		return true
	}
	for _, ch := range val {
		if ch != '_' && !unicode.IsLower(ch) && !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// isNumeric returns true if val looks like a number (integer or float, possibly negative).
func isNumeric(val string) bool {
	if val == "" {
		return false
	}
	start := 0
	if val[0] == '-' {
		if len(val) == 1 {
			return false
		}
		start = 1
	}
	hasDot := false
	hasDigit := false
	for i := start; i < len(val); i++ {
		ch := val[i]
		if ch == '.' {
			if hasDot {
				return false
			}
			hasDot = true
		} else if ch >= '0' && ch <= '9' {
			hasDigit = true
		} else {
			return false
		}
	}
	return hasDigit
}

// needsQuoting returns true if a DOT identifier needs quoting.
func needsQuoting(val string) bool {
	return !isBareIdentifier(val)
}

// sortedKeys returns the keys of a map in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return []string{}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
