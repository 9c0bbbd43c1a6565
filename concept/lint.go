// ABOUTME: Structural checks over a concept domain, returning diagnostics for broken bucket invariants.
// ABOUTME: Any diagnostic indicates a programming error in the code that built the domain.
package concept

import (
	"fmt"
	"slices"
)

// Diagnostic is a single lint finding.
type Diagnostic struct {
	Rule    string
	Name    string
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Rule, d.Name, d.Message)
}

// Lint runs all rules on the domain.
func Lint(d *Domain) []Diagnostic {
	var diags []Diagnostic
	diags = append(diags, checkResolves(d)...)
	diags = append(diags, checkUnaryPlacement(d)...)
	diags = append(diags, checkBinaryPlacement(d)...)
	diags = append(diags, checkSetMembers(d)...)
	return diags
}

// checkResolves flags bucket names without an entry, and entries in no bucket.
func checkResolves(d *Domain) []Diagnostic {
	var diags []Diagnostic
	listed := make(map[string]bool)
	for _, k := range Kinds {
		for _, n := range d.buckets[k] {
			listed[n] = true
			if _, ok := d.entries[n]; !ok {
				diags = append(diags, Diagnostic{Rule: "unresolved", Name: n,
					Message: fmt.Sprintf("listed in %s but not registered", k)})
			}
		}
	}
	for _, n := range d.Names() {
		if !listed[n] {
			diags = append(diags, Diagnostic{Rule: "orphan", Name: n, Message: "registered but in no bucket"})
		}
	}
	return diags
}

// checkUnaryPlacement flags unary concepts outside nodes, node_labels, and enum_case,
// or listed in more than one of them.
func checkUnaryPlacement(d *Domain) []Diagnostic {
	var diags []Diagnostic
	for _, n := range d.Names() {
		c, ok := d.Concept(n)
		if !ok || c.Arity() != 1 {
			continue
		}
		var in []Kind
		for _, k := range []Kind{Nodes, NodeLabels, EnumCase} {
			if slices.Contains(d.buckets[k], n) {
				in = append(in, k)
			}
		}
		if len(in) != 1 {
			diags = append(diags, Diagnostic{Rule: "unary_placement", Name: n,
				Message: fmt.Sprintf("unary concept in %v", in)})
		}
	}
	return diags
}

// checkBinaryPlacement flags binary non-case concepts outside edges.
func checkBinaryPlacement(d *Domain) []Diagnostic {
	var diags []Diagnostic
	for _, n := range d.Names() {
		c, ok := d.Concept(n)
		if !ok || c.Arity() != 2 || slices.Contains(d.buckets[EnumCase], n) {
			continue
		}
		if !slices.Contains(d.buckets[Edges], n) {
			diags = append(diags, Diagnostic{Rule: "binary_placement", Name: n, Message: "binary concept not in edges"})
		}
	}
	return diags
}

// checkSetMembers flags set members that are missing or do not share the set's variables.
func checkSetMembers(d *Domain) []Diagnostic {
	var diags []Diagnostic
	for _, n := range d.buckets[Enum] {
		s, ok := d.Set(n)
		if !ok {
			continue
		}
		for _, m := range s.Members {
			c, ok := d.Concept(m)
			if !ok {
				diags = append(diags, Diagnostic{Rule: "set_member", Name: n,
					Message: fmt.Sprintf("member %s not registered", m)})
				continue
			}
			if !slices.Equal(c.Vars, s.Vars) {
				diags = append(diags, Diagnostic{Rule: "set_member", Name: n,
					Message: fmt.Sprintf("member %s has variables %v", m, c.Vars)})
			}
		}
	}
	return diags
}
