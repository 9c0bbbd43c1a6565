// ABOUTME: Graph façade over one concept session: display checkboxes, projection, status, and rendering.
// ABOUTME: Every refinement refreshes the vocabulary from the symbols in scope and leaves the graph stale.
package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/2389-research/conceptgraph/concept"
	"github.com/2389-research/conceptgraph/dot"
	"github.com/2389-research/conceptgraph/logic"
	"github.com/2389-research/conceptgraph/oracle"
	"github.com/2389-research/conceptgraph/render"
	"github.com/2389-research/conceptgraph/session"
)

// Status is the abstraction state of a Graph.
type Status int

const (
	// Fresh graphs have never been recomputed.
	Fresh Status = iota
	// Abstracted graphs hold an abstract value for the current constraints and domain.
	Abstracted
	// Stale graphs were mutated since the last recompute.
	Stale
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Abstracted:
		return "abstracted"
	case Stale:
		return "stale"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

var (
	// ErrStale is returned when rendering a graph that has not been recomputed since its last change.
	ErrStale = errors.New("graph must be recomputed before rendering")
	// ErrCheckbox is returned for a checkbox index that names no checkbox.
	ErrCheckbox = errors.New("no such checkbox")
	// ErrUnknownConcept is returned when a name does not resolve in the domain.
	ErrUnknownConcept = errors.New("unknown concept")
	// ErrNoConstants is returned when splattering a node whose sort has no constants in the constraints.
	ErrNoConstants = errors.New("no constants of the node's sort")
)

// Graph owns a concept session, its display checkboxes, and the last render.
type Graph struct {
	sig       *logic.Signature
	session   *session.Session
	boxes     *render.Checkboxes
	relations []*concept.Concept
	status    Status
	rendered  *dot.Graph
	recompute bool
	rev       uint64
	log       logrus.FieldLogger
}

// revisions numbers display states across every graph in the process.
var revisions atomic.Uint64

type options struct {
	log       logrus.FieldLogger
	recompute bool
	state     []logic.Formula
}

// Option configures a Graph.
type Option func(*options)

// WithLogger sets the logger shared by the graph and its session.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithRecompute makes every refinement recompute immediately. By default
// refinements only mark the graph stale so several can be batched.
func WithRecompute(on bool) Option {
	return func(o *options) { o.recompute = on }
}

// WithState sets the initial base state.
func WithState(fs ...logic.Formula) Option {
	return func(o *options) { o.state = fs }
}

// New builds a graph with one trivial node per first-order sort of sig and
// the vocabulary derived from its symbols.
func New(sig *logic.Signature, o oracle.Oracle, opts ...Option) (*Graph, error) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	cfg := options{log: log}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := concept.InitialDomain(sig.FirstOrderSorts())
	g := &Graph{
		sig:       sig,
		session:   session.New(sig, o, d, session.WithLogger(cfg.log), session.WithState(cfg.state...)),
		boxes:     render.NewCheckboxes(),
		recompute: cfg.recompute,
		log:       cfg.log.WithField("component", "graph"),
	}
	if err := g.refreshVocabulary(); err != nil {
		return nil, err
	}
	g.status = Fresh
	g.touch()
	return g, nil
}

// Revision identifies what Render would draw. It changes on every refinement,
// recompute, checkbox or override change, and is shared only between a graph
// and its unmodified clones.
func (g *Graph) Revision() uint64 { return g.rev }

func (g *Graph) touch() { g.rev = revisions.Add(1) }

// Status returns the abstraction state.
func (g *Graph) Status() Status { return g.status }

// Signature returns the signature.
func (g *Graph) Signature() *logic.Signature { return g.sig }

// Session returns the underlying session. Mutating it directly bypasses the
// graph's vocabulary refresh and status tracking.
func (g *Graph) Session() *session.Session { return g.session }

// Domain returns the current domain.
func (g *Graph) Domain() *concept.Domain { return g.session.Domain() }

// Value returns a copy of the abstract value.
func (g *Graph) Value() concept.AbstractValue { return g.session.Value() }

// Checkboxes returns a copy of the display checkboxes.
func (g *Graph) Checkboxes() *render.Checkboxes { return g.boxes.Clone() }

// Constraints returns the suppose constraints.
func (g *Graph) Constraints() []logic.Formula { return g.session.Supposed() }

// State returns the base state.
func (g *Graph) State() []logic.Formula { return g.session.State() }

// Projection admits a label or edge concept only when one of its display
// checkboxes is on; the transitive box does not count. Other kinds are
// always admitted.
func (g *Graph) Projection(name string, kind concept.Kind) bool {
	switch kind {
	case concept.Edges:
		return g.boxes.AnyEdge(name)
	case concept.NodeLabels:
		return g.boxes.AnyLabel(name)
	default:
		return true
	}
}

// Recompute evaluates the abstract value under the current projection and
// renders it.
func (g *Graph) Recompute(ctx context.Context) error {
	if err := g.session.Recompute(ctx, g.Projection); err != nil {
		return err
	}
	g.status = Abstracted
	g.touch()
	g.rendered = render.ConceptGraph(g.session.Value(), g.session.Domain(), g.boxes)
	g.log.WithFields(logrus.Fields{"action": "recompute", "nodes": len(g.rendered.Nodes), "edges": len(g.rendered.Edges)}).Debug("graph abstracted")
	return nil
}

// Render returns the display graph for the current abstract value and
// checkboxes. Checkbox changes take effect without a recompute; combinations
// that were projected away at the last recompute stay hidden until the next.
func (g *Graph) Render() (*dot.Graph, error) {
	if g.status != Abstracted {
		return nil, fmt.Errorf("graph is %s: %w", g.status, ErrStale)
	}
	g.rendered = render.ConceptGraph(g.session.Value(), g.session.Domain(), g.boxes)
	return g.rendered.Clone(), nil
}

// SetCheckbox sets checkbox idx of a label or edge concept. For a concept
// set the value propagates to every member. Nothing is recomputed.
func (g *Graph) SetCheckbox(name string, idx int, val bool) error {
	e, ok := g.Domain().Lookup(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownConcept)
	}
	if idx < 0 || idx >= max(len(render.EdgeBoxes), len(render.LabelBoxes)) {
		return fmt.Errorf("index %d: %w", idx, ErrCheckbox)
	}
	if e.IsSet() {
		for _, m := range e.Set.Members {
			if err := g.SetCheckbox(m, idx, val); err != nil {
				return err
			}
		}
		return nil
	}
	g.boxes.SetIndex(name, idx, val)
	g.touch()
	return nil
}

// Override records a user override for k. Overridden combinations are always
// displayed.
func (g *Graph) Override(k concept.Key, t concept.Truth) {
	g.session.Override(k, t)
	g.touch()
}

// ClearOverride removes the user override for k.
func (g *Graph) ClearOverride(k concept.Key) {
	g.session.ClearOverride(k)
	g.touch()
}

// RelationIDs lists the concepts that carry checkboxes: edges, then labels,
// then enum sets.
func (g *Graph) RelationIDs() []string {
	d := g.Domain()
	return slices.Concat(d.Bucket(concept.Edges), d.Bucket(concept.NodeLabels), d.Bucket(concept.Enum))
}

// NodeIDs lists the node concepts in domain order.
func (g *Graph) NodeIDs() []string { return g.Domain().Bucket(concept.Nodes) }

// ConceptLabel returns the abbreviated label of a concept.
func (g *Graph) ConceptLabel(name string) (string, error) {
	c, err := g.concept(name)
	if err != nil {
		return "", err
	}
	return concept.Label(c), nil
}

// NodeLabel returns the top line of a node: its sort name.
func (g *Graph) NodeLabel(name string) (string, error) {
	c, err := g.concept(name)
	if err != nil {
		return "", err
	}
	return concept.NodeLabel(c), nil
}

// FindRelationWithLabel returns the first relation concept whose label is label.
func (g *Graph) FindRelationWithLabel(label string) (string, bool) {
	for _, id := range g.RelationIDs() {
		if c, ok := g.Domain().Concept(id); ok && concept.Label(c) == label {
			return id, true
		}
	}
	return "", false
}

// FindNodeWithLabels returns the first node of the last render whose label
// lines include every given label.
func (g *Graph) FindNodeWithLabels(labels ...string) (string, bool) {
	if g.rendered == nil {
		return "", false
	}
	for _, id := range g.rendered.NodeIDs() {
		lines := strings.Split(g.rendered.Nodes[id].Label, "\n")
		if !slices.ContainsFunc(labels, func(l string) bool { return !slices.Contains(lines, l) }) {
			return id, true
		}
	}
	return "", false
}

// Clone returns a graph sharing no mutable state with g. The clone keeps the
// abstract value and cache, so it renders without recomputing.
func (g *Graph) Clone() *Graph {
	return &Graph{
		sig:       g.sig,
		session:   g.session.Clone(),
		boxes:     g.boxes.Clone(),
		relations: slices.Clone(g.relations),
		status:    g.status,
		rendered:  g.rendered.Clone(),
		recompute: g.recompute,
		rev:       g.rev,
		log:       g.log,
	}
}

func (g *Graph) concept(name string) (*concept.Concept, error) {
	c, ok := g.Domain().Concept(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownConcept)
	}
	return c, nil
}

// vocabulary collects the symbols in scope: the signature's, those used by
// the constraints, and those used by node formulas.
func (g *Graph) vocabulary() []*logic.Symbol {
	seen := make(map[string]bool)
	var out []*logic.Symbol
	add := func(syms []*logic.Symbol) {
		for _, s := range syms {
			if !seen[s.Name] {
				seen[s.Name] = true
				out = append(out, s)
			}
		}
	}
	add(g.sig.Symbols())
	add(logic.Symbols(g.session.Constraints()...))
	add(logic.Symbols(g.Domain().Formulas(concept.Nodes)...))
	return out
}

func (g *Graph) refreshVocabulary() error {
	d, err := concept.ReplaceVocabulary(g.Domain(), g.vocabulary())
	if err != nil {
		return err
	}
	for _, c := range g.relations {
		if err := d.Add(c, ""); err != nil {
			return err
		}
	}
	return g.session.SetDomain(d)
}

// changed refreshes the vocabulary after a refinement and marks the graph
// stale, recomputing when configured to.
func (g *Graph) changed(ctx context.Context, action string) error {
	g.touch()
	if err := g.refreshVocabulary(); err != nil {
		return err
	}
	g.status = Stale
	g.log.WithField("action", action).Debug("graph changed")
	if g.recompute {
		return g.Recompute(ctx)
	}
	return nil
}
