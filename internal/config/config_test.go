package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, RelayMemory, cfg.Relay)
	assert.Equal(t, "controls/latest", cfg.RelayPath)
	assert.Equal(t, 100, cfg.HistoryDepth)
	assert.Equal(t, "assets", cfg.AssetsDir)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BOSSFIGHT_ADDR", ":9999")
	t.Setenv("BOSSFIGHT_RELAY", "remote")
	t.Setenv("BOSSFIGHT_RELAY_URL", "ws://screen.local:8080/relay")
	t.Setenv("BOSSFIGHT_HISTORY_DEPTH", "12")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, RelayRemote, cfg.Relay)
	assert.Equal(t, 12, cfg.HistoryDepth)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("BOSSFIGHT_ASSETS_DIR=/srv/boss-assets\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("BOSSFIGHT_ASSETS_DIR") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/boss-assets", cfg.AssetsDir)
}

func TestValidate(t *testing.T) {
	base := Config{Relay: RelayMemory, HistoryDepth: 100, RelayPath: "controls/latest"}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "none", mutate: func(c *Config) { c.Relay = RelayNone }},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Relay = RelayPostgres }, wantErr: true},
		{name: "postgres", mutate: func(c *Config) { c.Relay = RelayPostgres; c.PostgresDSN = "postgres://x" }},
		{name: "remote without url", mutate: func(c *Config) { c.Relay = RelayRemote }, wantErr: true},
		{name: "unknown relay", mutate: func(c *Config) { c.Relay = "carrier-pigeon" }, wantErr: true},
		{name: "zero history", mutate: func(c *Config) { c.HistoryDepth = 0 }, wantErr: true},
		{name: "empty path", mutate: func(c *Config) { c.RelayPath = "" }, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
