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

// Package keyspace implements §4.1.1: multiple ordered key->value
// stores, each a sorted byte map supporting point get, prefix range
// scan, and batched write.
package keyspace

import (
	"bytes"
)

// Op is the operation carried by a single entry of a WriteBatch
// (§3.1). The zero value is never valid on the wire; callers always
// set one of the named constants.
type Op uint8

const (
	OpInsert Op = iota + 1
	OpPut
	OpDelete
	OpRequireExists
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "Insert"
	case OpPut:
		return "Put"
	case OpDelete:
		return "Delete"
	case OpRequireExists:
		return "RequireExists"
	default:
		return "Unknown"
	}
}

// Entry is a single (key, op, value) triple within a batched write.
type Entry struct {
	Key   []byte
	Op    Op
	Value []byte
}

// Range describes a half-open byte-string range [Start, End). An
// empty End means "to the end of the keyspace". Range scans used for
// prefix iteration set End to the lexicographic successor of the
// prefix (see PrefixRange).
type Range struct {
	Start []byte
	End   []byte
}

// PrefixRange returns the Range matching every key with the given
// prefix.
func PrefixRange(prefix []byte) Range {
	if len(prefix) == 0 {
		return Range{}
	}
	end := make([]byte, len(prefix))
	copy(end, prefix)
	// Increment the last byte that isn't already 0xff, truncating
	// trailing 0xff bytes; an all-0xff prefix has no successor, so the
	// range is open-ended.
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xff {
			end[i]++
			return Range{Start: prefix, End: end[:i+1]}
		}
	}
	return Range{Start: prefix}
}

// Contains reports whether key falls within the range.
func (r Range) Contains(key []byte) bool {
	if r.Start != nil && bytes.Compare(key, r.Start) < 0 {
		return false
	}
	if r.End != nil && bytes.Compare(key, r.End) >= 0 {
		return false
	}
	return true
}

// KV is a single observed (key, value) pair from an iteration.
type KV struct {
	Key   []byte
	Value []byte
}

// Iterator yields ascending (key, value) pairs over a point-in-time
// consistent view, tolerating concurrent writes.
type Iterator interface {
	// Next advances the iterator, returning false once exhausted or on
	// error (check Err after Next returns false).
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// Keyspace is one of the fixed set of ordered key->value stores
// declared at open (§4.1.1, §6).
type Keyspace interface {
	ID() ID
	Name() string

	// Get returns the raw stored value for key, or (nil, false, nil) if
	// absent. Callers needing MVCC semantics use storage.MVCC, which
	// layers a sequence-number suffix on top of this raw interface.
	Get(key []byte) (value []byte, found bool, err error)

	// GetPrev returns the greatest stored (key, value) pair with key <=
	// the argument, or found=false if none exists.
	GetPrev(key []byte) (k, value []byte, found bool, err error)

	Put(key, value []byte) error

	// Write applies a batch of entries atomically with respect to
	// concurrent readers of this keyspace (not cross-keyspace atomic —
	// that's MVCC's job via the WAL).
	Write(entries []Entry) error

	IterateRange(r Range) (Iterator, error)

	EstimateSize() (int64, error)
	EstimateKeyCount() (int64, error)

	// Checkpoint copies this keyspace's on-disk state into dir.
	Checkpoint(dir string) error

	// Reset clears all data but keeps the keyspace open.
	Reset() error

	// Delete removes the keyspace's on-disk state and closes it.
	Delete() error

	Close() error
}
