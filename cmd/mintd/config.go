package main

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/mintfs/mint/internal/cmdutil"
	homedir "github.com/mitchellh/go-homedir"
)

// Config controls the mintd daemon. Fields map one to one onto the TOML
// config file; flags override whatever the file sets.
type Config struct {
	// ListenAddr is the TCP address the mint service accepts connections on.
	ListenAddr string `toml:"listen_addr"`

	// HTTPListenAddr serves metrics and pprof.
	HTTPListenAddr string `toml:"http_listen_addr"`

	LogLevel cmdutil.LogLevel `toml:"log_level"`

	// SnapshotPath is where file contents are loaded from at startup and
	// written back on shutdown. Empty disables persistence.
	SnapshotPath string `toml:"snapshot_path"`

	// RateLimit throttles request handling per connection, in requests per
	// second. Zero means unlimited.
	RateLimit float64 `toml:"rate_limit"`

	// RateBurst is the burst size used with RateLimit.
	RateBurst int `toml:"rate_burst"`
}

// DefaultConfig returns the config used when no file or flags override it.
func DefaultConfig() Config {
	cfg := Config{
		ListenAddr:     "127.0.0.1:4750",
		HTTPListenAddr: "127.0.0.1:8080",
		RateBurst:      64,
	}
	if home, err := homedir.Dir(); err == nil {
		cfg.SnapshotPath = filepath.Join(home, ".mintd", "store.snapshot")
	}
	return cfg
}

// LoadConfig reads a TOML config file over the defaults. An empty path
// means no file was requested and the defaults are returned; a named file
// that can't be read is an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("loading config file %s: %w", path, err)
	}
	return cfg, nil
}
