package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("nope.yaml")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: pgx
  dsn: postgres://gloop@localhost/gloop
period:
  cutover: 2h
boost:
  daily_cap: 5
poll:
  users: 3s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "pgx", cfg.Store.Driver)
	require.Equal(t, 2*time.Hour, cfg.Period.Cutover)
	require.Equal(t, 5, cfg.Boost.DailyCap)
	require.Equal(t, 3*time.Second, cfg.Poll.Users)
	require.Equal(t, 4*time.Second, cfg.Poll.Chat)
	require.Equal(t, "America/New_York", cfg.Period.Timezone)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GLOOP_LOCAL_PATH=/tmp/from-dotenv.db\n"), 0o644))
	// godotenv.Load sets process env; clear it for the other tests.
	t.Cleanup(func() { _ = os.Unsetenv("GLOOP_LOCAL_PATH") })
	t.Setenv("GLOOP_STORE_DSN", "/tmp/from-env.db")
	t.Setenv("GLOOP_BOOST_DAILY_CAP", "7")

	cfg, err := Load("missing.yaml")
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-env.db", cfg.Store.DSN)
	require.Equal(t, 7, cfg.Boost.DailyCap)
	require.Equal(t, "/tmp/from-dotenv.db", cfg.Local.Path)
}

func TestBadEnvValue(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GLOOP_PERIOD_CUTOVER", "soon")

	_, err := Load("missing.yaml")
	require.Error(t, err)
}

func TestBadYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [unterminated"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
