// ABOUTME: Abstract value: tri-valued truths keyed by combination tag, combiner, and concept names.
// ABOUTME: Custom overrides live under custom_-prefixed tags and force display of the matching combination.
package concept

import (
	"maps"
	"slices"
	"strings"
)

// Truth is a three-valued truth.
type Truth int8

const (
	Unknown Truth = iota
	True
	False
)

func (t Truth) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// CustomPrefix marks a tag recorded by a user override.
const CustomPrefix = "custom_"

// Parts are the concept names of a key: a node; a node and label; or an
// edge, source, and target.
type Parts struct {
	A, B, C string
}

// Key identifies one combination result.
type Key struct {
	Tag      string
	Combiner string
	Parts
}

func newKey(tag, combiner string, names []string) Key {
	k := Key{Tag: tag, Combiner: combiner}
	ps := []*string{&k.A, &k.B, &k.C}
	for i, n := range names {
		*ps[i] = n
	}
	return k
}

// NodeKey builds a node_info key.
func NodeKey(combiner, node string) Key {
	return Key{Tag: TagNodeInfo, Combiner: combiner, Parts: Parts{A: node}}
}

// LabelKey builds a node_label key.
func LabelKey(combiner, node, label string) Key {
	return Key{Tag: TagNodeLabel, Combiner: combiner, Parts: Parts{A: node, B: label}}
}

// EdgeKey builds an edge_info key.
func EdgeKey(combiner, edge, src, tgt string) Key {
	return Key{Tag: TagEdgeInfo, Combiner: combiner, Parts: Parts{A: edge, B: src, C: tgt}}
}

// EnumKey builds an enum key for a node and an enum case.
func EnumKey(node, enumCase string) Key {
	return Key{Tag: TagEnum, Combiner: NodeNecessarily, Parts: Parts{A: node, B: enumCase}}
}

// IsCustom reports whether the key records a user override.
func (k Key) IsCustom() bool { return strings.HasPrefix(k.Tag, CustomPrefix) }

// Custom returns the override key for k.
func (k Key) Custom() Key {
	if k.IsCustom() {
		return k
	}
	k.Tag = CustomPrefix + k.Tag
	return k
}

// Base strips the override prefix.
func (k Key) Base() Key {
	k.Tag = strings.TrimPrefix(k.Tag, CustomPrefix)
	return k
}

func (k Key) String() string {
	parts := []string{k.Tag, k.Combiner, k.A}
	for _, p := range []string{k.B, k.C} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func compareKeys(a, b Key) int {
	for _, c := range [][2]string{{a.Tag, b.Tag}, {a.Combiner, b.Combiner}, {a.A, b.A}, {a.B, b.B}, {a.C, b.C}} {
		if n := strings.Compare(c[0], c[1]); n != 0 {
			return n
		}
	}
	return 0
}

// AbstractValue maps combination keys to truths. Missing keys were not
// evaluated (ill sorted or projected away).
type AbstractValue map[Key]Truth

// Get returns the truth stored for k.
func (a AbstractValue) Get(k Key) (Truth, bool) {
	t, ok := a[k]
	return t, ok
}

// Holds reports whether k is definitely true.
func (a AbstractValue) Holds(k Key) bool { return a[k] == True }

// Has reports whether k was evaluated.
func (a AbstractValue) Has(k Key) bool {
	_, ok := a[k]
	return ok
}

// Clone returns an independent copy.
func (a AbstractValue) Clone() AbstractValue {
	if a == nil {
		return nil
	}
	return maps.Clone(a)
}

// SortedKeys returns the keys in lexicographic order.
func (a AbstractValue) SortedKeys() []Key {
	keys := slices.Collect(maps.Keys(a))
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Resolve folds custom overrides into their base keys and returns the
// resulting value together with the set of overridden parts.
func (a AbstractValue) Resolve() (AbstractValue, map[Parts]bool) {
	out := make(AbstractValue, len(a))
	custom := make(map[Parts]bool)
	for k, t := range a {
		if k.IsCustom() {
			custom[k.Parts] = true
			continue
		}
		out[k] = t
	}
	for k, t := range a {
		if k.IsCustom() {
			out[k.Base()] = t
		}
	}
	return out, custom
}
