// ABOUTME: Text summary of a rendered concept graph for terminals, styled with lipgloss.
// ABOUTME: Lists nodes with their status class and label lines, then the displayed edges.
package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/conceptgraph/dot"
	"github.com/2389-research/conceptgraph/render"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	edgeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	classStyles = map[string]lipgloss.Style{
		render.ClassNonExisting: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		render.ClassExactlyOne:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		render.ClassAtLeastOne:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		render.ClassAtMostOne:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		render.ClassNodeUnknown: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true),
	}
)

// summarize renders g as an indented plain-text outline.
func summarize(name string, g *dot.Graph) string {
	var b strings.Builder
	if name == "" {
		name = "concept graph"
	}
	b.WriteString(titleStyle.Render(name))
	b.WriteString("\n\n")

	ids := g.NodeIDs()
	b.WriteString(headingStyle.Render(fmt.Sprintf("Nodes (%d)", len(ids))))
	b.WriteString("\n")
	for _, id := range ids {
		n := g.Nodes[id]
		lines := strings.Split(n.Label, "\n")
		fmt.Fprintf(&b, "  %s %s %s\n", lines[0], styleClass(n.Classes), idStyle.Render(id))
		for _, l := range lines[1:] {
			fmt.Fprintf(&b, "      %s\n", l)
		}
	}

	if len(g.Edges) > 0 {
		b.WriteString("\n")
		b.WriteString(headingStyle.Render(fmt.Sprintf("Edges (%d)", len(g.Edges))))
		b.WriteString("\n")
		for _, e := range g.Edges {
			line := fmt.Sprintf("  %s -[%s]-> %s", e.From, e.Label, e.To)
			if len(e.Classes) > 0 {
				line += " (" + strings.Join(e.Classes, ", ") + ")"
			}
			b.WriteString(edgeStyle.Render(line))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func styleClass(classes []string) string {
	if len(classes) == 0 {
		return ""
	}
	c := classes[0]
	if s, ok := classStyles[c]; ok {
		return s.Render("[" + c + "]")
	}
	return "[" + c + "]"
}
