// ABOUTME: Tests for free variables, capture-avoiding substitution, and symbol collection.
// ABOUTME: Reuses the small node/state vocabulary from the formula tests.
package logic

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func varNames(vs []Var) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Name
	}
	return out
}

func symbolNames(ss []*Symbol) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.Name
	}
	return out
}

func TestFreeVars(t *testing.T) {
	v := newVocab()
	z := Var{Name: "Z", Type: v.node}
	f := Conj(
		Rel(v.link, v.y, v.x),
		ForAll([]Var{v.y}, Rel(v.link, v.y, z)),
	)
	assert.Equal(t, []string{"X", "Y", "Z"}, varNames(FreeVars(f)))
	assert.False(t, IsClosed(f))

	closed := ForAll([]Var{v.x}, Exist([]Var{v.y}, Rel(v.link, v.x, v.y)))
	assert.Empty(t, FreeVars(closed))
	assert.True(t, IsClosed(closed))
}

func TestIsGround(t *testing.T) {
	v := newVocab()
	assert.True(t, IsGround(Apply(v.root)))
	assert.True(t, IsGround(Apply(v.status, Apply(v.root))))
	assert.False(t, IsGround(Apply(v.status, v.x)))
	assert.False(t, IsGround(v.x))
}

func TestSubstitute(t *testing.T) {
	v := newVocab()
	root := Apply(v.root)
	f := Conj(Rel(v.leader, v.x), Neg(Equals(v.x, v.y)))
	got := Substitute(f, map[string]Term{"X": root})
	assert.Equal(t, "(leader(root) & root ~= Y)", got.String())
	assert.Equal(t, "(leader(X) & X ~= Y)", f.String(), "input is not modified")
	assert.Same(t, f, Substitute(f, nil))
}

func TestSubstituteSkipsBoundVariables(t *testing.T) {
	v := newVocab()
	f := Conj(Rel(v.leader, v.x), ForAll([]Var{v.x}, Rel(v.link, v.x, v.y)))
	got := Substitute(f, map[string]Term{"X": Apply(v.root)})
	assert.Equal(t, "(leader(root) & (forall X:node. link(X,Y)))", got.String())
}

func TestSubstituteAvoidsCapture(t *testing.T) {
	v := newVocab()
	f := ForAll([]Var{v.y}, Rel(v.link, v.x, v.y))
	got := Substitute(f, map[string]Term{"X": v.y})
	assert.Equal(t, "(forall Y1:node. link(Y,Y1))", got.String())
	assert.Equal(t, []string{"Y"}, varNames(FreeVars(got)))
}

func TestSymbolsAndConstants(t *testing.T) {
	v := newVocab()
	other := NewConst("other", v.node)
	flag := NewConst("flag", BoolSort)
	fs := []Formula{
		Rel(v.link, Apply(v.root), Apply(other)),
		Equals(Apply(v.status, Apply(v.root)), Ctor(v.state, "busy")),
		Rel(flag),
	}
	assert.Empty(t, cmp.Diff([]string{"busy", "flag", "link", "other", "root", "status"}, symbolNames(Symbols(fs...))))
	assert.Equal(t, []string{"other", "root"}, symbolNames(Constants(fs...)),
		"constructors and boolean constants are not constants of a sort")
}
