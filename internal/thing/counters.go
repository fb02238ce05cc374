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

// counters.go implements the per-type atomic instance-id counter
// (§4.4: "allocates a new instance-id from a per-type atomic counter,
// seeded on open by scanning the max id under that type prefix").
package thing

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/conceptgraph/conceptgraph/internal/keyspace"
	"github.com/conceptgraph/conceptgraph/internal/storage"
)

// IDAllocator hands out fresh instance ids per TypeID, backed by
// EngineIDCounters for durability across restarts. Seeding (scanning
// DataObjects/DataAttributes for the current max) happens lazily, the
// first time a given type is allocated from after open — mirroring
// how the rest of this stack avoids an eager full-keyspace scan at
// startup.
type IDAllocator struct {
	mu       sync.Mutex
	counters map[TypeID]*uint64
	seeded   map[TypeID]bool
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{
		counters: make(map[TypeID]*uint64),
		seeded:   make(map[TypeID]bool),
	}
}

// Next returns the next unused instance id for t, seeding the
// in-memory counter from snap and the EngineIDCounters keyspace on
// first use.
func (a *IDAllocator) Next(snap *storage.ReadSnapshot, dataKS keyspace.ID, t TypeID) (uint64, error) {
	a.mu.Lock()
	if !a.seeded[t] {
		seed, err := a.seedLocked(snap, dataKS, t)
		if err != nil {
			a.mu.Unlock()
			return 0, err
		}
		counter := seed
		a.counters[t] = &counter
		a.seeded[t] = true
	}
	ctr := a.counters[t]
	a.mu.Unlock()
	return atomic.AddUint64(ctr, 1), nil
}

// seedLocked finds the current maximum instance id stored for t by
// reading the persisted EngineIDCounters row, falling back to a
// prefix scan of dataKS if no counter row was ever persisted (e.g.
// first open after a restore where the counter keyspace is stale).
func (a *IDAllocator) seedLocked(snap *storage.ReadSnapshot, dataKS keyspace.ID, t TypeID) (uint64, error) {
	counterKey := objectTypePrefix(t)
	if raw, ok, err := snap.Get(keyspace.EngineIDCounters, counterKey); err != nil {
		return 0, err
	} else if ok && len(raw) == 8 {
		return binary.BigEndian.Uint64(raw), nil
	}

	it, err := snap.IterateRange(dataKS, keyspace.PrefixRange(objectTypePrefix(t)))
	if err != nil {
		return 0, err
	}
	defer it.Close()
	var max uint64
	for it.Next() {
		if obj, ok := parseObjectKey(it.Key()); ok && obj.Inst > max {
			max = obj.Inst
		}
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	return max, nil
}

// Persist writes the current in-memory counters into batch so a
// restart (which replays the WAL rather than re-scanning every data
// keyspace) sees the right next id.
func (a *IDAllocator) Persist(batch *storage.WriteBatch) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for t, ctr := range a.counters {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, atomic.LoadUint64(ctr))
		batch.Put(keyspace.EngineIDCounters, objectTypePrefix(t), buf)
	}
}
