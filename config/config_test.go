// ABOUTME: Tests for configuration loading: defaults, YAML files, environment overrides, and bind validation.
// ABOUTME: Also covers .env loading and XDG directory resolution.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONCEPTGRAPH_ORACLE_BOUND", "CONCEPTGRAPH_ORACLE_TIMEOUT", "CONCEPTGRAPH_UNDO_DEPTH",
		"CONCEPTGRAPH_ADDR", "CONCEPTGRAPH_ALLOW_REMOTE", "CONCEPTGRAPH_MAX_SESSIONS",
		"CONCEPTGRAPH_SESSION_TTL", "CONCEPTGRAPH_STORE", "CONCEPTGRAPH_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 6, cfg.Oracle.Bound)
	assert.Equal(t, "127.0.0.1:7780", cfg.Server.Addr)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
oracle:
  bound: 5
  timeout: 30s
graph:
  undo_depth: 7
server:
  addr: localhost:9000
  session_ttl: 15m
store:
  path: /tmp/cg.db
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Oracle.Bound)
	assert.Equal(t, 30*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 7, cfg.Graph.UndoDepth)
	assert.Equal(t, "localhost:9000", cfg.Server.Addr)
	assert.Equal(t, 15*time.Minute, cfg.Server.SessionTTL)
	assert.Equal(t, 100, cfg.Server.MaxSessions, "unset keys keep defaults")
	assert.Equal(t, "/tmp/cg.db", cfg.Store.Path)
	assert.Equal(t, logrus.DebugLevel, cfg.Log.Logger().GetLevel())
}

func TestLoadMalformedYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("oracle: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("oracle:\n  bound: 5\n"), 0o644))
	t.Setenv("CONCEPTGRAPH_ORACLE_BOUND", "2")
	t.Setenv("CONCEPTGRAPH_SESSION_TTL", "90s")
	t.Setenv("CONCEPTGRAPH_STORE", "/var/cg.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Oracle.Bound)
	assert.Equal(t, 90*time.Second, cfg.Server.SessionTTL)
	assert.Equal(t, "/var/cg.db", cfg.Store.Path)
}

func TestEnvRejectsGarbage(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONCEPTGRAPH_UNDO_DEPTH", "many")
	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalid)

	clearEnv(t)
	t.Setenv("CONCEPTGRAPH_ORACLE_TIMEOUT", "soon")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidateRanges(t *testing.T) {
	cfg := Default()
	cfg.Oracle.Bound = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg = Default()
	cfg.Graph.UndoDepth = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg = Default()
	cfg.Log.Level = "chatty"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestValidateBindPolicy(t *testing.T) {
	tests := []struct {
		addr   string
		remote bool
		ok     bool
	}{
		{"127.0.0.1:7780", false, true},
		{"[::1]:7780", false, true},
		{"localhost:7780", false, true},
		{"0.0.0.0:7780", false, false},
		{"10.1.2.3:7780", false, false},
		{"example.com:7780", false, false},
		{"0.0.0.0:7780", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			cfg := Default()
			cfg.Server.Addr = tt.addr
			cfg.Server.AllowRemote = tt.remote
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrNonLoopbackBind)
			}
		})
	}
}

func TestAllowRemoteFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONCEPTGRAPH_ADDR", "0.0.0.0:7780")
	_, err := Load("")
	require.ErrorIs(t, err, ErrNonLoopbackBind)

	t.Setenv("CONCEPTGRAPH_ALLOW_REMOTE", "true")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Server.AllowRemote)
}

func TestLoadDotEnvDoesNotClobber(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(`# comment
export CG_TEST_A="quoted value"
CG_TEST_B='single'
CG_TEST_C=has=equals
CG_TEST_SET=fromfile
not a pair
`), 0o644))
	t.Setenv("CG_TEST_SET", "fromenv")
	for _, k := range []string{"CG_TEST_A", "CG_TEST_B", "CG_TEST_C"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	LoadDotEnv(path)
	assert.Equal(t, "quoted value", os.Getenv("CG_TEST_A"))
	assert.Equal(t, "single", os.Getenv("CG_TEST_B"))
	assert.Equal(t, "has=equals", os.Getenv("CG_TEST_C"))
	assert.Equal(t, "fromenv", os.Getenv("CG_TEST_SET"))
}

func TestXDGDirs(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	dir, err := DataDir()
	require.NoError(t, err)
	assert.Equal(t, "/xdg/data/conceptgraph", dir)
	dir, err = ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/xdg/config/conceptgraph", dir)
	assert.Equal(t, "/xdg/config/conceptgraph/config.yaml", DefaultPath())
}

func TestXDGFallsBackToHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/someone")
	dir, err := DataDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/someone/.local/share/conceptgraph", dir)
}
