// ABOUTME: Concept domain: the vocabulary of one abstraction pass, kept as name-keyed entries plus ordered kind buckets.
// ABOUTME: Supports registration by kind, concept-set bookkeeping, node splitting, and deep cloning.
package concept

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/2389-research/conceptgraph/logic"
)

// Kind names a bucket of the domain.
type Kind string

const (
	Nodes      Kind = "nodes"
	NodeLabels Kind = "node_labels"
	Edges      Kind = "edges"
	Enum       Kind = "enum"
	EnumCase   Kind = "enum_case"
)

// Kinds lists every bucket in a fixed order.
var Kinds = []Kind{Nodes, NodeLabels, Edges, Enum, EnumCase}

var (
	// ErrNotANode is returned when an operation expects a name in the nodes bucket.
	ErrNotANode = errors.New("not a node concept")
	// ErrUnknown is returned when a name does not resolve in the domain.
	ErrUnknown = errors.New("unknown concept")
	// ErrConflict is returned when a name is already registered as a different entry.
	ErrConflict = errors.New("conflicting concept registration")
)

// Domain maps names to entries and keeps the ordered kind buckets.
type Domain struct {
	entries map[string]Entry
	buckets map[Kind][]string
}

// NewDomain returns an empty domain with all buckets present.
func NewDomain() *Domain {
	d := &Domain{
		entries: make(map[string]Entry),
		buckets: make(map[Kind][]string, len(Kinds)),
	}
	for _, k := range Kinds {
		d.buckets[k] = nil
	}
	return d
}

// Add registers c under kind. An empty kind is chosen from the arity:
// node_labels for unary concepts and edges for binary ones. Concepts of
// other arities are ignored. Re-adding the same concept is a no-op.
func (d *Domain) Add(c *Concept, kind Kind) error {
	if c.Arity() < 1 || c.Arity() > 2 {
		return nil
	}
	if kind == "" {
		kind = NodeLabels
		if c.Arity() == 2 {
			kind = Edges
		}
	}
	if prev, ok := d.entries[c.Name]; ok {
		if prev.IsSet() {
			return fmt.Errorf("%s: %w", c.Name, ErrConflict)
		}
		if d.kindOf(c.Name) == kind {
			return nil
		}
		return fmt.Errorf("%s already in %s, not %s: %w", c.Name, d.kindOf(c.Name), kind, ErrConflict)
	}
	d.entries[c.Name] = Entry{Concept: c}
	d.buckets[kind] = append(d.buckets[kind], c.Name)
	return nil
}

// AddSet registers an empty concept set in the enum bucket.
func (d *Domain) AddSet(s *Set) error {
	if prev, ok := d.entries[s.Name]; ok {
		if prev.IsSet() {
			return nil
		}
		return fmt.Errorf("%s: %w", s.Name, ErrConflict)
	}
	d.entries[s.Name] = Entry{Set: s}
	d.buckets[Enum] = append(d.buckets[Enum], s.Name)
	return nil
}

// AddMember registers c as an enum_case concept and appends it to the named set.
func (d *Domain) AddMember(set string, c *Concept) error {
	e, ok := d.entries[set]
	if !ok || !e.IsSet() {
		return fmt.Errorf("set %s: %w", set, ErrUnknown)
	}
	if err := d.Add(c, EnumCase); err != nil {
		return err
	}
	if !slices.Contains(e.Set.Members, c.Name) {
		e.Set.Members = append(e.Set.Members, c.Name)
	}
	return nil
}

// Lookup resolves a name to its entry.
func (d *Domain) Lookup(name string) (Entry, bool) {
	e, ok := d.entries[name]
	return e, ok
}

// Concept resolves a name to a concept. Sets do not resolve.
func (d *Domain) Concept(name string) (*Concept, bool) {
	e, ok := d.entries[name]
	if !ok || e.Concept == nil {
		return nil, false
	}
	return e.Concept, true
}

// Set resolves a name to a concept set.
func (d *Domain) Set(name string) (*Set, bool) {
	e, ok := d.entries[name]
	if !ok || e.Set == nil {
		return nil, false
	}
	return e.Set, true
}

// Bucket returns a copy of the names registered under kind, in order.
func (d *Domain) Bucket(kind Kind) []string {
	return slices.Clone(d.buckets[kind])
}

// KindOf returns the bucket holding name.
func (d *Domain) KindOf(name string) (Kind, bool) {
	k := d.kindOf(name)
	return k, k != ""
}

func (d *Domain) kindOf(name string) Kind {
	for _, k := range Kinds {
		if slices.Contains(d.buckets[k], name) {
			return k
		}
	}
	return ""
}

// Names returns every registered name, sorted.
func (d *Domain) Names() []string {
	return slices.Sorted(maps.Keys(d.entries))
}

// Formulas returns the formulas of the concepts in kind, in bucket order.
func (d *Domain) Formulas(kind Kind) []logic.Formula {
	var out []logic.Formula
	for _, n := range d.buckets[kind] {
		if c, ok := d.Concept(n); ok {
			out = append(out, c.Formula)
		}
	}
	return out
}

// Clone returns a domain sharing no mutable state with d. Concepts are
// immutable and shared; sets and buckets are copied.
func (d *Domain) Clone() *Domain {
	c := &Domain{
		entries: make(map[string]Entry, len(d.entries)),
		buckets: make(map[Kind][]string, len(d.buckets)),
	}
	for name, e := range d.entries {
		if e.Set != nil {
			s := *e.Set
			s.Members = slices.Clone(e.Set.Members)
			e = Entry{Set: &s}
		}
		c.entries[name] = e
	}
	for k, names := range d.buckets {
		c.buckets[k] = slices.Clone(names)
	}
	return c
}

func (d *Domain) node(name string) (*Concept, int, error) {
	c, ok := d.Concept(name)
	if !ok {
		return nil, 0, fmt.Errorf("%s: %w", name, ErrUnknown)
	}
	i := slices.Index(d.buckets[Nodes], name)
	if i < 0 {
		return nil, 0, fmt.Errorf("%s: %w", name, ErrNotANode)
	}
	return c, i, nil
}

// Split replaces the node with two successors, node & by and node & ~by,
// in the node's position. by may be any unary concept of the node's sort,
// registered or not.
func (d *Domain) Split(node string, by *Concept) (pos, neg *Concept, err error) {
	c, _, err := d.node(node)
	if err != nil {
		return nil, nil, err
	}
	pos, neg, err = Refine(c, by)
	if err != nil {
		return nil, nil, err
	}
	if err := d.replaceNode(node, pos, neg); err != nil {
		return nil, nil, err
	}
	return pos, neg, nil
}

// SplitNWay replaces the node with one successor node & p for each part.
// The parts are assumed to cover the node; no remainder is added.
func (d *Domain) SplitNWay(node string, parts []*Concept) ([]*Concept, error) {
	c, _, err := d.node(node)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("split %s: no parts: %w", node, ErrArity)
	}
	out := make([]*Concept, 0, len(parts))
	for _, p := range parts {
		r, err := Restrict(c, p)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := d.replaceNode(node, out...); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Domain) replaceNode(node string, succ ...*Concept) error {
	for _, s := range succ {
		if e, ok := d.entries[s.Name]; ok && s.Name != node {
			if e.IsSet() || d.kindOf(s.Name) != Nodes {
				return fmt.Errorf("%s: %w", s.Name, ErrConflict)
			}
		}
	}
	delete(d.entries, node)
	var names []string
	for _, s := range succ {
		if slices.Contains(names, s.Name) {
			continue
		}
		d.entries[s.Name] = Entry{Concept: s}
		names = append(names, s.Name)
	}
	var bucket []string
	pos := 0
	for _, n := range d.buckets[Nodes] {
		switch {
		case n == node:
			pos = len(bucket)
		case slices.Contains(names, n):
		default:
			bucket = append(bucket, n)
		}
	}
	d.buckets[Nodes] = slices.Insert(bucket, pos, names...)
	return nil
}
