package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "clockd.toml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	p := writeFile(t, `
listen = "0.0.0.0:9000"
gateway_url = "http://127.0.0.1:8080"
block_cache_size = 128
fetch_timeout = "3s"
strict_advance = true

[datastore]
type = "leveldb"
path = "/tmp/w3clock"

[propagation]
max_depth = 2
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.Listen)
	require.Equal(t, "http://127.0.0.1:8080", cfg.GatewayURL)
	require.Equal(t, 128, cfg.BlockCacheSize)
	require.Equal(t, Duration(3*time.Second), cfg.FetchTimeout)
	require.True(t, cfg.StrictAdvance)
	require.Equal(t, Datastore{Type: "leveldb", Path: "/tmp/w3clock"}, cfg.Datastore)
	require.Equal(t, 2, cfg.Propagation.MaxDepth)
	// Untouched keys keep their defaults.
	require.Equal(t, Default().FetchRetries, cfg.FetchRetries)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	p := writeFile(t, `
gateway_url = "http://127.0.0.1:8080"
block_cache_size = 128
`)
	t.Setenv("W3CLOCK_GATEWAY_URL", "https://gateway.example")
	t.Setenv("W3CLOCK_BLOCK_CACHE_SIZE", "7")
	t.Setenv("W3CLOCK_FETCH_TIMEOUT", "250ms")
	t.Setenv("W3CLOCK_DATASTORE_TYPE", "badger")
	t.Setenv("W3CLOCK_DATASTORE_PATH", "/tmp/badger")

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "https://gateway.example", cfg.GatewayURL)
	require.Equal(t, 7, cfg.BlockCacheSize)
	require.Equal(t, Duration(250*time.Millisecond), cfg.FetchTimeout)
	require.Equal(t, Datastore{Type: "badger", Path: "/tmp/badger"}, cfg.Datastore)
}

func TestLoad_UnknownKey(t *testing.T) {
	p := writeFile(t, `gateway = "http://127.0.0.1"`)
	_, err := Load(p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown key")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"listen", func(c *Config) { c.Listen = "" }, "listen"},
		{"gateway scheme", func(c *Config) { c.GatewayURL = "ftp://example" }, "gateway_url"},
		{"cache size", func(c *Config) { c.BlockCacheSize = 0 }, "block_cache_size"},
		{"timeout", func(c *Config) { c.FetchTimeout = 0 }, "fetch_timeout"},
		{"depth", func(c *Config) { c.Propagation.MaxDepth = 0 }, "max_depth"},
		{"datastore type", func(c *Config) { c.Datastore.Type = "etcd" }, "unknown datastore"},
		{"datastore path", func(c *Config) { c.Datastore.Type = "leveldb" }, "requires a path"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"seed", func(c *Config) { c.ServiceSeed = "zz" }, "service_seed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tc.want), "got %v", err)
		})
	}
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	require.Equal(t, Duration(90*time.Second), d)
	b, err := d.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1m30s", string(b))
	require.Error(t, d.UnmarshalText([]byte("soon")))
}
