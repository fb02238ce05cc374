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

// Package durability implements §4.1.3: an append-only sequence of
// typed records with monotonic sequence numbers, supporting replay
// from any sequence number.
package durability

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/keyspace"
)

// RecordType is the small stable byte identifying a durability
// record's shape on the wire.
type RecordType uint8

const (
	RecordTypeCommit RecordType = 1
	RecordTypeStatus RecordType = 2
)

var (
	registryMu sync.Mutex
	registry   = map[RecordType]string{}
)

// RegisterRecordType associates a record type byte with a stable
// human-readable name. Registering the same id with a different name
// than previously registered is a fatal programming error (§3.1) —
// it panics rather than returning an error, since it can only be
// triggered by a coding mistake, never by data.
func RegisterRecordType(t RecordType, name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if existing, ok := registry[t]; ok && existing != name {
		panic(fmt.Sprintf("durability: record type %d already registered as %q, cannot reregister as %q", t, existing, name))
	}
	registry[t] = name
}

func RecordTypeName(t RecordType) string {
	registryMu.Lock()
	defer registryMu.Unlock()
	if name, ok := registry[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", t)
}

func init() {
	RegisterRecordType(RecordTypeCommit, "commit")
	RegisterRecordType(RecordTypeStatus, "status")
}

// Status is the outcome recorded for a commit (§3.1, §4.1.4).
type Status uint8

const (
	StatusCommitted Status = 1
	StatusAborted   Status = 2
)

func (s Status) String() string {
	if s == StatusCommitted {
		return "committed"
	}
	return "aborted"
}

// KeyspaceBatch is the per-keyspace slice of a prepared write set.
type KeyspaceBatch struct {
	Keyspace keyspace.ID
	Entries  []keyspace.Entry
}

// CommitRecord carries the prepared write set plus the open-snapshot
// number it was computed against (§3.1, §4.1.4 step 2).
type CommitRecord struct {
	OpenSeq uint64
	Batches []KeyspaceBatch
}

// StatusRecord pairs a commit sequence number with its outcome
// (§3.1, §4.1.4 step 4).
type StatusRecord struct {
	CommitSeq uint64
	Status    Status
}

// Record is the decoded form of one frame: the sequence number it was
// appended under, its type, and the raw (already-decompressed) bytes
// of a CommitRecord or StatusRecord encoding.
type Record struct {
	Seq  uint64
	Type RecordType
	Body []byte
}

// EncodeCommit serialises a CommitRecord with a small manual binary
// format: length-prefixed fields, all big-endian, byte-for-byte
// round-trippable (§8 "Round-trip / idempotence laws").
func EncodeCommit(r *CommitRecord) []byte {
	buf := make([]byte, 0, 128)
	buf = appendU64(buf, r.OpenSeq)
	buf = appendU32(buf, uint32(len(r.Batches)))
	for _, b := range r.Batches {
		buf = append(buf, byte(b.Keyspace))
		buf = appendU32(buf, uint32(len(b.Entries)))
		for _, e := range b.Entries {
			buf = append(buf, byte(e.Op))
			buf = appendBytes(buf, e.Key)
			buf = appendBytes(buf, e.Value)
		}
	}
	return buf
}

func DecodeCommit(data []byte) (*CommitRecord, error) {
	r := &CommitRecord{}
	var ok bool
	r.OpenSeq, data, ok = readU64(data)
	if !ok {
		return nil, cgerrors.New(cgerrors.KindDeserialize, "commit record truncated: open_seq")
	}
	var nBatches uint32
	nBatches, data, ok = readU32(data)
	if !ok {
		return nil, cgerrors.New(cgerrors.KindDeserialize, "commit record truncated: batch count")
	}
	r.Batches = make([]KeyspaceBatch, 0, nBatches)
	for i := uint32(0); i < nBatches; i++ {
		if len(data) < 1 {
			return nil, cgerrors.New(cgerrors.KindDeserialize, "commit record truncated: keyspace id")
		}
		ks := keyspace.ID(data[0])
		data = data[1:]
		var nEntries uint32
		nEntries, data, ok = readU32(data)
		if !ok {
			return nil, cgerrors.New(cgerrors.KindDeserialize, "commit record truncated: entry count")
		}
		entries := make([]keyspace.Entry, 0, nEntries)
		for j := uint32(0); j < nEntries; j++ {
			if len(data) < 1 {
				return nil, cgerrors.New(cgerrors.KindDeserialize, "commit record truncated: op")
			}
			op := keyspace.Op(data[0])
			data = data[1:]
			var key, value []byte
			key, data, ok = readBytes(data)
			if !ok {
				return nil, cgerrors.New(cgerrors.KindDeserialize, "commit record truncated: key")
			}
			value, data, ok = readBytes(data)
			if !ok {
				return nil, cgerrors.New(cgerrors.KindDeserialize, "commit record truncated: value")
			}
			entries = append(entries, keyspace.Entry{Key: key, Op: op, Value: value})
		}
		r.Batches = append(r.Batches, KeyspaceBatch{Keyspace: ks, Entries: entries})
	}
	return r, nil
}

func EncodeStatus(r *StatusRecord) []byte {
	buf := make([]byte, 0, 9)
	buf = appendU64(buf, r.CommitSeq)
	buf = append(buf, byte(r.Status))
	return buf
}

func DecodeStatus(data []byte) (*StatusRecord, error) {
	r := &StatusRecord{}
	var ok bool
	r.CommitSeq, data, ok = readU64(data)
	if !ok || len(data) < 1 {
		return nil, cgerrors.New(cgerrors.KindDeserialize, "status record truncated")
	}
	r.Status = Status(data[0])
	return r, nil
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBytes(buf, v []byte) []byte {
	buf = appendU32(buf, uint32(len(v)))
	return append(buf, v...)
}

func readU64(data []byte) (uint64, []byte, bool) {
	if len(data) < 8 {
		return 0, data, false
	}
	return binary.BigEndian.Uint64(data[:8]), data[8:], true
}

func readU32(data []byte) (uint32, []byte, bool) {
	if len(data) < 4 {
		return 0, data, false
	}
	return binary.BigEndian.Uint32(data[:4]), data[4:], true
}

func readBytes(data []byte) ([]byte, []byte, bool) {
	n, rest, ok := readU32(data)
	if !ok || uint32(len(rest)) < n {
		return nil, data, false
	}
	return rest[:n], rest[n:], true
}
