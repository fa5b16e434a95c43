// Package config loads clockd settings from a TOML file with environment
// overrides.
//
// Values are applied in order: Default, then the file, then variables
// prefixed W3CLOCK_ (for example W3CLOCK_GATEWAY_URL, W3CLOCK_DATASTORE_TYPE).
//
// Example:
//
//	listen = "127.0.0.1:7370"
//	gateway_url = "https://ipfs.io"
//	block_cache_size = 50
//
//	[datastore]
//	type = "leveldb"
//	path = "/var/lib/w3clock/ds"
//
//	[propagation]
//	max_depth = 8
package config

import (
	"encoding"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/BurntSushi/toml"
	logging "github.com/ipfs/go-log/v2"
	"github.com/kelseyhightower/envconfig"

	"github.com/storacha/w3clock/clock"
	"github.com/storacha/w3clock/durable/dsregistry"
	"github.com/storacha/w3clock/principal"
	"github.com/storacha/w3clock/storage"
	"github.com/storacha/w3clock/storage/gateway"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "W3CLOCK"

type Config struct {
	// Listen is the gRPC listen address.
	Listen string `toml:"listen" envconfig:"listen"`
	// MetricsListen serves /metrics when non-empty.
	MetricsListen string `toml:"metrics_listen" envconfig:"metrics_listen"`

	GatewayURL     string   `toml:"gateway_url" envconfig:"gateway_url"`
	BlockCacheSize int      `toml:"block_cache_size" envconfig:"block_cache_size"`
	FetchTimeout   Duration `toml:"fetch_timeout" envconfig:"fetch_timeout"`
	// FetchRetries is the number of retries after the first attempt.
	// Negative disables retrying.
	FetchRetries int `toml:"fetch_retries" envconfig:"fetch_retries"`
	// BlockDir keeps fetched blocks on disk between restarts when set.
	BlockDir string `toml:"block_dir" envconfig:"block_dir"`

	Datastore   Datastore   `toml:"datastore" envconfig:"datastore"`
	Propagation Propagation `toml:"propagation" envconfig:"propagation"`

	StrictAdvance bool   `toml:"strict_advance" envconfig:"strict_advance"`
	LogLevel      string `toml:"log_level" envconfig:"log_level"`
	// ServiceSeed is the hex Ed25519 seed of the service identity. A random
	// identity is generated when empty.
	ServiceSeed string `toml:"service_seed" envconfig:"service_seed"`
}

type Datastore struct {
	// Type names a dsregistry backend: memory, leveldb, badger.
	Type string `toml:"type" envconfig:"type"`
	Path string `toml:"path" envconfig:"path"`
}

type Propagation struct {
	MaxDepth int `toml:"max_depth" envconfig:"max_depth"`
}

func Default() Config {
	return Config{
		Listen:         "127.0.0.1:7370",
		GatewayURL:     gateway.DefaultURL,
		BlockCacheSize: storage.DefaultCacheSize,
		FetchTimeout:   Duration(gateway.DefaultTimeout),
		FetchRetries:   gateway.DefaultRetries,
		Datastore:      Datastore{Type: "memory"},
		Propagation:    Propagation{MaxDepth: clock.DefaultMaxDepth},
		LogLevel:       "info",
	}
}

// Load returns Default overlaid with the TOML file at path (skipped when
// path is empty) and then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("config: %s: unknown key %q", path, undecoded[0].String())
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("config: environment: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Listen == "" {
		return errors.New("config: listen is required")
	}
	u, err := url.Parse(c.GatewayURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: invalid gateway_url %q", c.GatewayURL)
	}
	if c.BlockCacheSize <= 0 {
		return fmt.Errorf("config: block_cache_size must be positive, got %d", c.BlockCacheSize)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("config: fetch_timeout must be positive, got %s", time.Duration(c.FetchTimeout))
	}
	if c.Propagation.MaxDepth <= 0 {
		return fmt.Errorf("config: propagation.max_depth must be positive, got %d", c.Propagation.MaxDepth)
	}

	backend, ok := lookupBackend(c.Datastore.Type)
	if !ok {
		return fmt.Errorf("config: unknown datastore type %q (known: %v)", c.Datastore.Type, dsregistry.Names())
	}
	if backend.Persistent && c.Datastore.Path == "" {
		return fmt.Errorf("config: datastore %q requires a path", c.Datastore.Type)
	}

	if _, err := logging.LevelFromString(c.LogLevel); err != nil {
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	if c.ServiceSeed != "" {
		if _, err := principal.ParseSeedHex(c.ServiceSeed); err != nil {
			return fmt.Errorf("config: service_seed: %w", err)
		}
	}
	return nil
}

func lookupBackend(name string) (dsregistry.Backend, bool) {
	for _, b := range dsregistry.List() {
		if b.Name == name {
			return b, true
		}
	}
	return dsregistry.Backend{}, false
}

var _ encoding.TextMarshaler = Duration(0)
var _ encoding.TextUnmarshaler = (*Duration)(nil)

// Duration is a time.Duration written as text ("10s") in TOML and the
// environment.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
