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
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/holiman/bloomfilter/v2"
)

// negativeCache is a per-keyspace probabilistic filter of keys known
// to have been written at least once. A miss here means "definitely
// absent", letting Get skip a B+tree descent entirely; a hit still
// requires the real lookup. Rebuilt whenever the backing file is
// reopened or restored from a checkpoint, and updated incrementally on
// every write thereafter.
type negativeCache struct {
	mu     sync.RWMutex
	filter *bloomfilter.Filter
}

// newNegativeCache sizes the filter for an expected element count with
// a 1% false-positive rate, matching the sizing erigon takes for its
// trie bloom filters.
func newNegativeCache(expectedElements uint64) *negativeCache {
	if expectedElements == 0 {
		expectedElements = 1024
	}
	f, err := bloomfilter.NewOptimal(expectedElements, 0.01)
	if err != nil {
		// A filter is a pure optimization; fall back to a small, coarse
		// filter (1024 elements, 50% false positives) rather than fail
		// keyspace open.
		f, _ = bloomfilter.NewOptimal(1024, 0.5)
	}
	return &negativeCache{filter: f}
}

func keyHash(key []byte) uint64 {
	return xxhash.Sum64(key)
}

func (c *negativeCache) add(key []byte) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.Add(keyHash(key))
}

// maybeContains reports false only when the key is definitely absent.
func (c *negativeCache) maybeContains(key []byte) bool {
	if c == nil {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter.Contains(keyHash(key))
}

func (c *negativeCache) reset(expectedElements uint64) {
	if c == nil {
		return
	}
	fresh := newNegativeCache(expectedElements)
	c.mu.Lock()
	c.filter = fresh.filter
	c.mu.Unlock()
}
