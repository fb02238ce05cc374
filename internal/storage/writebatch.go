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

package storage

import (
	"sync"

	tidwall "github.com/tidwall/btree"

	"github.com/conceptgraph/conceptgraph/internal/durability"
	"github.com/conceptgraph/conceptgraph/internal/keyspace"
)

// bufferedWrite is one pending logical write recorded against a
// keyspace before prepare, keyed by its logical key so a later write
// to the same key within the same batch overwrites the earlier one
// (last-writer-wins within a batch, §4.1.4 step 1).
type bufferedWrite struct {
	key   string
	entry keyspace.Entry
}

func (a bufferedWrite) Less(b bufferedWrite) bool { return a.key < b.key }

// WriteBatch accumulates the operations of one write transaction
// before it is prepared and validated (§3.1, §4.1.4). One keyspace's
// pending writes are kept in a tidwall/btree ordered map so Prepare
// can hand the isolation manager and the WAL a stably-ordered batch
// without a separate sort pass.
type WriteBatch struct {
	mu      sync.Mutex
	byKS    map[keyspace.ID]*tidwall.BTreeG[bufferedWrite]
	openSeq uint64
}

// NewWriteBatch begins a write batch opened against the snapshot
// taken at openSeq (§3.1 "open_seq").
func NewWriteBatch(openSeq uint64) *WriteBatch {
	return &WriteBatch{
		byKS:    make(map[keyspace.ID]*tidwall.BTreeG[bufferedWrite]),
		openSeq: openSeq,
	}
}

func (b *WriteBatch) treeFor(ks keyspace.ID) *tidwall.BTreeG[bufferedWrite] {
	t, ok := b.byKS[ks]
	if !ok {
		t = tidwall.NewBTreeG(bufferedWrite.Less)
		b.byKS[ks] = t
	}
	return t
}

func (b *WriteBatch) record(ks keyspace.ID, op keyspace.Op, key, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.treeFor(ks).Set(bufferedWrite{key: string(key), entry: keyspace.Entry{Key: key, Op: op, Value: value}})
}

func (b *WriteBatch) Insert(ks keyspace.ID, key, value []byte) { b.record(ks, keyspace.OpInsert, key, value) }
func (b *WriteBatch) Put(ks keyspace.ID, key, value []byte)    { b.record(ks, keyspace.OpPut, key, value) }
func (b *WriteBatch) Delete(ks keyspace.ID, key []byte)        { b.record(ks, keyspace.OpDelete, key, nil) }
func (b *WriteBatch) RequireExists(ks keyspace.ID, key []byte) {
	b.record(ks, keyspace.OpRequireExists, key, nil)
}

// OpenSeq returns the snapshot sequence number this batch was opened
// against.
func (b *WriteBatch) OpenSeq() uint64 { return b.openSeq }

// Batches flattens the accumulated per-keyspace trees into the
// ordered []durability.KeyspaceBatch shape consumed by the commit
// record and the isolation manager, in ascending keyspace id order.
func (b *WriteBatch) Batches() []durability.KeyspaceBatch {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]keyspace.ID, 0, len(b.byKS))
	for id := range b.byKS {
		ids = append(ids, id)
	}
	sortIDs(ids)

	out := make([]durability.KeyspaceBatch, 0, len(ids))
	for _, id := range ids {
		t := b.byKS[id]
		entries := make([]keyspace.Entry, 0, t.Len())
		t.Scan(func(w bufferedWrite) bool {
			entries = append(entries, w.entry)
			return true
		})
		out = append(out, durability.KeyspaceBatch{Keyspace: id, Entries: entries})
	}
	return out
}

func sortIDs(ids []keyspace.ID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
