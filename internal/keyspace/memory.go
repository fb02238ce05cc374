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

package keyspace

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
)

// kvItem is a single btree.Item: keys compare byte-lexicographically.
type kvItem struct {
	key, value []byte
}

func (a *kvItem) Less(than btree.Item) bool {
	return bytes.Compare(a.key, than.(*kvItem).key) < 0
}

// degree chosen the way erigon-lib sizes its in-memory indices: small
// enough to keep node rebalancing cheap for the ephemeral/test-sized
// databases this backend targets.
const memoryBTreeDegree = 32

// MemoryKeyspace is an in-memory ordered Keyspace backed by
// google/btree, used for ephemeral databases (§4.1.6 note: snapshots
// may run entirely without a durable backing store in tests) and for
// unit tests that don't want bbolt file overhead.
type MemoryKeyspace struct {
	id    ID
	name  string
	mu    sync.RWMutex
	tree  *btree.BTree
	bloom *negativeCache
}

func NewMemory(id ID, name string) *MemoryKeyspace {
	return &MemoryKeyspace{
		id:    id,
		name:  name,
		tree:  btree.New(memoryBTreeDegree),
		bloom: newNegativeCache(1024),
	}
}

func (k *MemoryKeyspace) ID() ID       { return k.id }
func (k *MemoryKeyspace) Name() string { return k.name }

func (k *MemoryKeyspace) Get(key []byte) ([]byte, bool, error) {
	if !k.bloom.maybeContains(key) {
		return nil, false, nil
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	item := k.tree.Get(&kvItem{key: key})
	if item == nil {
		return nil, false, nil
	}
	v := item.(*kvItem).value
	return append([]byte(nil), v...), true, nil
}

func (k *MemoryKeyspace) GetPrev(key []byte) ([]byte, []byte, bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	var rk, rv []byte
	var found bool
	k.tree.DescendLessOrEqual(&kvItem{key: key}, func(i btree.Item) bool {
		it := i.(*kvItem)
		rk = append([]byte(nil), it.key...)
		rv = append([]byte(nil), it.value...)
		found = true
		return false
	})
	return rk, rv, found, nil
}

func (k *MemoryKeyspace) Put(key, value []byte) error {
	k.mu.Lock()
	k.tree.ReplaceOrInsert(&kvItem{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	k.mu.Unlock()
	k.bloom.add(key)
	return nil
}

func (k *MemoryKeyspace) Write(entries []Entry) error {
	k.mu.Lock()
	for _, e := range entries {
		switch e.Op {
		case OpInsert, OpPut:
			k.tree.ReplaceOrInsert(&kvItem{key: append([]byte(nil), e.Key...), value: append([]byte(nil), e.Value...)})
		case OpDelete:
			k.tree.Delete(&kvItem{key: e.Key})
		case OpRequireExists:
			if k.tree.Get(&kvItem{key: e.Key}) == nil {
				k.mu.Unlock()
				return cgerrors.New(cgerrors.KindKeyspaceWrite, "require_exists failed").WithContext("key", string(e.Key))
			}
		}
	}
	k.mu.Unlock()
	for _, e := range entries {
		if e.Op == OpInsert || e.Op == OpPut {
			k.bloom.add(e.Key)
		}
	}
	return nil
}

// sliceIterator walks an eagerly-materialised snapshot, giving the
// point-in-time consistency §4.1.1 requires without holding the lock
// across the caller's iteration.
type sliceIterator struct {
	kvs []KV
	pos int
}

func (it *sliceIterator) Next() bool {
	if it.pos >= len(it.kvs) {
		return false
	}
	it.pos++
	return true
}
func (it *sliceIterator) Key() []byte   { return it.kvs[it.pos-1].Key }
func (it *sliceIterator) Value() []byte { return it.kvs[it.pos-1].Value }
func (it *sliceIterator) Err() error    { return nil }
func (it *sliceIterator) Close() error  { return nil }

func (k *MemoryKeyspace) IterateRange(r Range) (Iterator, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	var out []KV
	visit := func(i btree.Item) bool {
		it := i.(*kvItem)
		if r.End != nil && bytes.Compare(it.key, r.End) >= 0 {
			return false
		}
		out = append(out, KV{Key: append([]byte(nil), it.key...), Value: append([]byte(nil), it.value...)})
		return true
	}
	if r.Start != nil {
		k.tree.AscendGreaterOrEqual(&kvItem{key: r.Start}, visit)
	} else {
		k.tree.Ascend(visit)
	}
	return &sliceIterator{kvs: out}, nil
}

func (k *MemoryKeyspace) EstimateSize() (int64, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	var size int64
	k.tree.Ascend(func(i btree.Item) bool {
		it := i.(*kvItem)
		size += int64(len(it.key) + len(it.value))
		return true
	})
	return size, nil
}

func (k *MemoryKeyspace) EstimateKeyCount() (int64, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return int64(k.tree.Len()), nil
}

// Checkpoint is a no-op for the in-memory backend: there is nothing on
// disk to copy. Databases that need real checkpoints use BoltKeyspace.
func (k *MemoryKeyspace) Checkpoint(dir string) error { return nil }

func (k *MemoryKeyspace) Reset() error {
	k.mu.Lock()
	k.tree = btree.New(memoryBTreeDegree)
	k.mu.Unlock()
	k.bloom.reset(0)
	return nil
}

func (k *MemoryKeyspace) Delete() error { return k.Reset() }
func (k *MemoryKeyspace) Close() error  { return nil }
