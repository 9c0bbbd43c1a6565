// ABOUTME: Tests for the SQLite checkpoint history.
// ABOUTME: Covers saving, ordering, lookup, session listing, deletion, and reopening an existing database.
package store_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/conceptgraph/dot"
	"github.com/2389-research/conceptgraph/store"
)

func openStore(t *testing.T) (*store.SqliteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	s, err := store.OpenSqlite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func rendered(nodes ...string) *dot.Graph {
	g := &dot.Graph{Name: "concepts"}
	for _, n := range nodes {
		g.AddNode(&dot.Node{ID: n, Label: "node", Classes: []string{"node_unknown"}})
	}
	return g
}

func TestSaveAndGetCheckpoint(t *testing.T) {
	s, _ := openStore(t)
	g := rendered("X:node.X = X")

	id, err := s.SaveCheckpoint("sess-1", "recompute", []string{"leader(root)", "~leader(other)"}, g)
	require.NoError(t, err)

	cp, err := s.GetCheckpoint(id)
	require.NoError(t, err)
	assert.Equal(t, id, cp.ID)
	assert.Equal(t, "sess-1", cp.SessionID)
	assert.Equal(t, "recompute", cp.Action)
	assert.Equal(t, []string{"leader(root)", "~leader(other)"}, cp.Constraints)
	assert.Equal(t, dot.Serialize(g), cp.DOT)
	assert.True(t, strings.HasPrefix(cp.Elements, "["))
	assert.Contains(t, cp.Elements, `"X:node.X = X"`)
	assert.False(t, cp.CreatedAt.IsZero())
}

func TestGetCheckpointMissing(t *testing.T) {
	s, _ := openStore(t)
	_, err := s.GetCheckpoint(ulid.Make())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCheckpointsAreOrdered(t *testing.T) {
	s, _ := openStore(t)
	var ids []ulid.ULID
	for i, action := range []string{"a", "b", "c", "d"} {
		id, err := s.SaveCheckpoint("sess", action, nil, rendered(strings.Repeat("n", i+1)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	cps, err := s.ListCheckpoints("sess")
	require.NoError(t, err)
	require.Len(t, cps, 4)
	for i, cp := range cps {
		assert.Equal(t, ids[i], cp.ID)
		assert.Empty(t, cp.Constraints)
	}
	assert.Equal(t, "d", cps[3].Action)

	latest, err := s.Latest("sess")
	require.NoError(t, err)
	assert.Equal(t, ids[3], latest.ID)
}

func TestLatestMissingSession(t *testing.T) {
	s, _ := openStore(t)
	_, err := s.Latest("nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListSessions(t *testing.T) {
	s, _ := openStore(t)
	require.NoError(t, s.UpsertSession("empty", "Empty session"))
	_, err := s.SaveCheckpoint("busy", "split", nil, rendered("a"))
	require.NoError(t, err)
	_, err = s.SaveCheckpoint("busy", "empty", nil, rendered("a", "b"))
	require.NoError(t, err)

	rows, err := s.ListSessions()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	counts := map[string]int{}
	for _, r := range rows {
		counts[r.SessionID] = r.Checkpoints
	}
	assert.Equal(t, map[string]int{"empty": 0, "busy": 2}, counts)
}

func TestUpsertSessionRenames(t *testing.T) {
	s, _ := openStore(t)
	require.NoError(t, s.UpsertSession("s", "first"))
	require.NoError(t, s.UpsertSession("s", "second"))
	rows, err := s.ListSessions()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "second", rows[0].Title)
}

func TestDeleteSession(t *testing.T) {
	s, _ := openStore(t)
	id, err := s.SaveCheckpoint("gone", "recompute", nil, rendered("a"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession("gone"))
	_, err = s.GetCheckpoint(id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteSession("gone"), store.ErrNotFound)
}

func TestReopenKeepsHistory(t *testing.T) {
	s, path := openStore(t)
	id, err := s.SaveCheckpoint("sess", "recompute", []string{"leader(root)"}, rendered("a"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := store.OpenSqlite(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	cp, err := reopened.GetCheckpoint(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"leader(root)"}, cp.Constraints)
}
