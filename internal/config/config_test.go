package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)

	require.Equal(t, BackendOutlook, cfg.Backend)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 30, cfg.CallTimeoutSec)
	require.NotEmpty(t, cfg.Sim.Path)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "olbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: sim
account: Work Mailbox
log_level: debug
call_timeout_sec: 5
sim:
  path: /tmp/test-sim.db
  user_email: me@example.com
  user_name: Me
  seed_demo: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, BackendSim, cfg.Backend)
	require.Equal(t, "Work Mailbox", cfg.Account)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 5, cfg.CallTimeoutSec)
	require.Equal(t, "/tmp/test-sim.db", cfg.Sim.Path)
	require.Equal(t, "me@example.com", cfg.Sim.UserEmail)
	require.True(t, cfg.Sim.SeedDemo)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "olbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: sim\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendSim, cfg.Backend)
	require.Equal(t, 30, cfg.CallTimeoutSec)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "olbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: imap\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "olbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
