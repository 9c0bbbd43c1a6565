// ABOUTME: Tests for the conceptgraph CLI: version output, render formats and checkboxes, and flag parsing.
// ABOUTME: Runs the cobra tree in-process against the leader-election problem fixture.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leaderProblem = "../../problem/testdata/leader.yaml"

// execute runs the CLI with a config path that does not exist so only
// defaults and the environment apply.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONCEPTGRAPH_LOG_LEVEL", "error")
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "conceptgraph dev\n", out)
}

func TestRenderText(t *testing.T) {
	out, err := execute(t, "render", "--bound", "2", leaderProblem)
	require.NoError(t, err)
	assert.Contains(t, out, "leader-election")
	assert.Contains(t, out, "Nodes (2)")
	assert.Contains(t, out, "X:node.X = X")
	assert.Contains(t, out, "X:state.X = X")
}

func TestRenderDOTToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.dot")
	out, err := execute(t, "render", "--bound", "2", "--format", "dot", "--output", path, leaderProblem)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "digraph"))
}

func TestRenderJSON(t *testing.T) {
	out, err := execute(t, "render", "--bound", "2", "-f", "json", leaderProblem)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "["))
	assert.Contains(t, out, `"group":"nodes"`)
}

func TestRenderWithCheckbox(t *testing.T) {
	_, err := execute(t, "render", "--bound", "2", "--check", "X:node.leader(X)=0", leaderProblem)
	require.NoError(t, err)

	_, err = execute(t, "render", "--bound", "2", "--check", "X:node.leader(X)=9", leaderProblem)
	assert.ErrorContains(t, err, "no such checkbox")

	_, err = execute(t, "render", "--check", "X:node.nope(X)=0", leaderProblem)
	assert.ErrorContains(t, err, "unknown concept")
}

func TestRenderErrors(t *testing.T) {
	_, err := execute(t, "render", "--bound", "2", "--format", "gif", leaderProblem)
	assert.ErrorContains(t, err, "unsupported format")

	_, err = execute(t, "render", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = execute(t, "render")
	assert.Error(t, err, "a problem file is required")
}

func TestParseCheck(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		idx     int
		wantErr bool
	}{
		{in: "X:node.leader(X)=1", name: "X:node.leader(X)", idx: 1},
		{in: "X:node.X = root = 2", name: "X:node.X = root", idx: 2},
		{in: "nothing", wantErr: true},
		{in: "=1", wantErr: true},
		{in: "X:node.leader(X)=one", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, idx, err := parseCheck(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.idx, idx)
		})
	}
}

func TestServeRejectsRemoteBind(t *testing.T) {
	t.Setenv("CONCEPTGRAPH_ALLOW_REMOTE", "")
	_, err := execute(t, "serve", "--addr", "0.0.0.0:7780")
	assert.ErrorContains(t, err, "not loopback")
}

func TestCleanupInterval(t *testing.T) {
	assert.Equal(t, time.Second, cleanupInterval(time.Second))
	assert.Equal(t, 15*time.Second, cleanupInterval(time.Minute))
	assert.Equal(t, time.Minute, cleanupInterval(time.Hour))
}

func TestOpenHistoryDisabled(t *testing.T) {
	s, err := openHistory("", nil)
	require.NoError(t, err)
	assert.Nil(t, s)
}
