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

// Package storage layers §4.1.2's MVCC semantics, §4.1.6's snapshot
// variants, and §4.1.4/§4.1.5's commit/checkpoint/recovery protocol on
// top of internal/keyspace and internal/durability, the way
// core/state/history_reader_v3.go layers GetAsOf reads on top of
// erigon's temporal kv.Tx.
package storage

import (
	"encoding/binary"

	"github.com/conceptgraph/conceptgraph/internal/keyspace"
)

const seqSuffixLen = 8

// EncodeVersionedKey appends the commit sequence number as an 8-byte
// big-endian suffix, so that for a fixed logical key, ascending
// byte-order equals ascending seq order (§4.1.2).
func EncodeVersionedKey(logicalKey []byte, seq uint64) []byte {
	out := make([]byte, len(logicalKey)+seqSuffixLen)
	copy(out, logicalKey)
	binary.BigEndian.PutUint64(out[len(logicalKey):], seq)
	return out
}

// SplitVersionedKey separates a composite key back into its logical
// key and sequence number.
func SplitVersionedKey(composite []byte) (logicalKey []byte, seq uint64, ok bool) {
	if len(composite) < seqSuffixLen {
		return nil, 0, false
	}
	split := len(composite) - seqSuffixLen
	return composite[:split], binary.BigEndian.Uint64(composite[split:]), true
}

const (
	tombstoneMarker byte = 0
	valueMarker     byte = 1
)

func encodeVersionedValue(tombstone bool, value []byte) []byte {
	if tombstone {
		return []byte{tombstoneMarker}
	}
	out := make([]byte, 1+len(value))
	out[0] = valueMarker
	copy(out[1:], value)
	return out
}

func decodeVersionedValue(stored []byte) (tombstone bool, value []byte) {
	if len(stored) == 0 || stored[0] == tombstoneMarker {
		return true, nil
	}
	return false, stored[1:]
}

// MVCC wraps a single keyspace.Keyspace with version-suffixed keys.
type MVCC struct {
	ks keyspace.Keyspace
}

func NewMVCC(ks keyspace.Keyspace) *MVCC { return &MVCC{ks: ks} }

// boundSeqKey is the greatest composite key for logicalKey that could
// possibly be visible at asOf: logicalKey ++ asOf. Since composite
// keys sort by (logicalKey, seq) and seq <= asOf, GetPrev from this
// bound lands on the newest version visible at asOf, or on an
// unrelated (lexicographically smaller) logical key if none exists.
func boundSeqKey(logicalKey []byte, asOf uint64) []byte {
	return EncodeVersionedKey(logicalKey, asOf)
}

func hasExactPrefix(composite, logicalKey []byte) bool {
	if len(composite) != len(logicalKey)+seqSuffixLen {
		return false
	}
	for i := range logicalKey {
		if composite[i] != logicalKey[i] {
			return false
		}
	}
	return true
}

// Get returns the newest version of logicalKey with seq <= asOf that
// is not a tombstone (§4.1.2).
func (m *MVCC) Get(logicalKey []byte, asOf uint64) ([]byte, bool, error) {
	k, v, found, err := m.ks.GetPrev(boundSeqKey(logicalKey, asOf))
	if err != nil || !found {
		return nil, false, err
	}
	if !hasExactPrefix(k, logicalKey) {
		return nil, false, nil
	}
	tombstone, value := decodeVersionedValue(v)
	if tombstone {
		return nil, false, nil
	}
	return value, true, nil
}

// versionedIterator groups consecutive composite-key versions of the
// same logical key (guaranteed adjacent since seq is the inner sort
// key) and yields only the newest one visible at asOf, skipping
// tombstones, per §4.1.2.
type versionedIterator struct {
	inner keyspace.Iterator
	asOf  uint64

	// pending holds the already-read-ahead first version of the next
	// logical-key group, found while scanning past the previous group.
	pendingKey, pendingRaw []byte
	pendingSeq             uint64
	hasPending             bool
	exhausted              bool

	curKey, curValue []byte
	done             bool
	err              error
}

func newVersionedIterator(inner keyspace.Iterator, asOf uint64) *versionedIterator {
	return &versionedIterator{inner: inner, asOf: asOf}
}

// advance reads the next raw (logicalKey, seq, rawValue) triple from
// either the pending lookahead slot or the inner iterator.
func (it *versionedIterator) advance() (logicalKey []byte, seq uint64, raw []byte, ok bool) {
	if it.hasPending {
		it.hasPending = false
		return it.pendingKey, it.pendingSeq, it.pendingRaw, true
	}
	if it.exhausted {
		return nil, 0, nil, false
	}
	for it.inner.Next() {
		logical, seq, ok := SplitVersionedKey(it.inner.Key())
		if !ok {
			continue
		}
		return append([]byte(nil), logical...), seq, append([]byte(nil), it.inner.Value()...), true
	}
	it.exhausted = true
	return nil, 0, nil, false
}

func (it *versionedIterator) Next() bool {
	if it.err != nil || it.done {
		return false
	}
	for {
		logicalKey, seq, raw, ok := it.advance()
		if !ok {
			it.done = true
			return false
		}

		best := raw
		bestSeq := seq
		bestOK := seq <= it.asOf

		for {
			l2, seq2, raw2, ok2 := it.advance()
			if !ok2 {
				break
			}
			if !sameBytes(l2, logicalKey) {
				it.pendingKey, it.pendingSeq, it.pendingRaw, it.hasPending = l2, seq2, raw2, true
				break
			}
			if seq2 <= it.asOf && (!bestOK || seq2 > bestSeq) {
				best, bestSeq, bestOK = raw2, seq2, true
			}
		}

		if !bestOK {
			continue
		}
		tombstone, value := decodeVersionedValue(best)
		if tombstone {
			continue
		}
		it.curKey, it.curValue = logicalKey, value
		return true
	}
}

func (it *versionedIterator) Key() []byte   { return it.curKey }
func (it *versionedIterator) Value() []byte { return it.curValue }
func (it *versionedIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.inner.Err()
}
func (it *versionedIterator) Close() error { return it.inner.Close() }

func sameBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IterateRange yields the latest-visible version per logical key in r
// (§4.1.2).
func (m *MVCC) IterateRange(r keyspace.Range, asOf uint64) (keyspace.Iterator, error) {
	inner, err := m.ks.IterateRange(r)
	if err != nil {
		return nil, err
	}
	return newVersionedIterator(inner, asOf), nil
}
