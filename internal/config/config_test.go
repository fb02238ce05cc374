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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conceptgraph/conceptgraph/internal/storage"
)

func TestDefaultIsValidAndSizesCacheFromSystemMemory(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Greater(t, uint64(cfg.CacheSize), uint64(0))
	require.Equal(t, storage.BackendBolt, cfg.StorageBackend())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, Default().Backend, cfg.Backend)
}

func TestLoadOverlaysFileOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conceptgraph.toml")
	const body = `
datadir = "/var/lib/conceptgraph"
backend = "memory"

[http]
addr = "0.0.0.0:9000"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/conceptgraph", cfg.DataDir)
	require.Equal(t, storage.BackendMemory, cfg.StorageBackend())
	require.Equal(t, "0.0.0.0:9000", cfg.HTTP.Addr)
	require.Greater(t, uint64(cfg.CacheSize), uint64(0), "unset fields keep Default()'s cache sizing")
}

func TestValidateRejectsUnknownBackendAndEmptyDataDir(t *testing.T) {
	cfg := Default()
	cfg.Backend = "postgres"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.DataDir = ""
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.WALRotateBytes = 0
	require.Error(t, cfg.Validate())
}
