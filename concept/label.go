// ABOUTME: Human-readable labels for concepts as shown on graph nodes and checkbox lists.
// ABOUTME: Abbreviates equalities and relation applications over the first variable.
package concept

import (
	"strings"

	"github.com/2389-research/conceptgraph/logic"
)

// Label abbreviates a one-variable concept by dropping its variable when the
// formula is p(X), X = e, or f(X) = e with e ground. Other concepts are
// labelled by their formula.
func Label(c *Concept) string {
	if c.Arity() != 1 || !abbreviable(c.Vars[0], c.Formula) {
		return c.Formula.String()
	}
	v := c.Vars[0]
	f := logic.Substitute(c.Formula, map[string]logic.Term{v.Name: logic.Var{Name: "", Type: v.Type}})
	s := strings.ReplaceAll(f.String(), " ", "")
	return strings.ReplaceAll(s, "()", "")
}

func abbreviable(v logic.Var, f logic.Formula) bool {
	switch g := f.(type) {
	case *logic.Atom:
		return len(g.Args) == 1 && isVar(g.Args[0], v)
	case *logic.Eq:
		if !logic.IsGround(g.R) {
			return false
		}
		if isVar(g.L, v) {
			return true
		}
		app, ok := g.L.(*logic.App)
		return ok && len(app.Args) == 1 && isVar(app.Args[0], v)
	}
	return false
}

func isVar(t logic.Term, v logic.Var) bool {
	u, ok := t.(logic.Var)
	return ok && u.Name == v.Name
}

// NodeLabel is the top line of a node: the name of its sort.
func NodeLabel(c *Concept) string {
	if s := c.Sort(); s != nil {
		return s.Name
	}
	return ""
}
