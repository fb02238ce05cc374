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

// Package storage wires internal/keyspace, internal/durability, and
// internal/isolation into the Database: the single entry point for
// opening snapshots and committing write batches (§4.1.2, §4.1.4,
// §4.1.6).
package storage

import (
	"context"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/durability"
	"github.com/conceptgraph/conceptgraph/internal/isolation"
	"github.com/conceptgraph/conceptgraph/internal/keyspace"
	"github.com/conceptgraph/conceptgraph/internal/xlog"
)

// Backend selects the keyspace storage engine.
type Backend int

const (
	BackendBolt Backend = iota
	BackendMemory
)

// Options configures a Database at open.
type Options struct {
	Dir             string
	Backend         Backend
	BoltNoSync      bool
	WALRotateBytes  int64
	Descriptors     []keyspace.Descriptor
	Log             *xlog.Logger
}

// Database owns the fixed keyspace set, the WAL, the sequencer, and
// the isolation manager, and coordinates write-transaction commit
// (§4.1.4) plus schema write exclusivity (§4.1.6, §5).
type Database struct {
	opts Options
	log  *xlog.Logger

	mu         sync.RWMutex // guards keyspaces map replacement (Reset/recovery)
	keyspaces  map[keyspace.ID]keyspace.Keyspace
	mvccCache  map[keyspace.ID]*MVCC

	seq       durability.Sequencer
	wal       *durability.WAL
	isolation *isolation.Manager

	// schemaExclusivity is a binary semaphore held by the one open
	// SchemaSnapshot; OpenSchemaSnapshot is its only acquirer.
	schemaExclusivity *semaphore.Weighted

	commitMu sync.Mutex // serializes Prepare->Validate->Append->status (§4.1.4, single-writer WAL)
}

// Open validates the descriptor set, opens every keyspace, opens the
// WAL (replaying nothing — recovery is a separate explicit step, see
// checkpoint.go's Recover), and constructs the isolation manager.
func Open(opts Options) (*Database, error) {
	descs := opts.Descriptors
	if descs == nil {
		descs = keyspace.DefaultDescriptors
	}
	if err := keyspace.ValidateDescriptors(descs); err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = xlog.Noop()
	}

	db := &Database{
		opts:              opts,
		log:               log,
		keyspaces:         make(map[keyspace.ID]keyspace.Keyspace, len(descs)),
		mvccCache:         make(map[keyspace.ID]*MVCC, len(descs)),
		isolation:         isolation.NewManager(),
		schemaExclusivity: semaphore.NewWeighted(1),
	}

	for _, d := range descs {
		ks, err := openOneKeyspace(opts, d)
		if err != nil {
			db.closeOpened()
			return nil, err
		}
		db.keyspaces[d.ID] = ks
		db.mvccCache[d.ID] = NewMVCC(ks)
	}

	walDir := filepath.Join(opts.Dir, "wal")
	wal, err := durability.Open(walDir, opts.WALRotateBytes, log.With("component", "wal"))
	if err != nil {
		db.closeOpened()
		return nil, err
	}
	db.wal = wal
	return db, nil
}

func (db *Database) closeOpened() {
	for _, ks := range db.keyspaces {
		_ = ks.Close()
	}
}

func openOneKeyspace(opts Options, d keyspace.Descriptor) (keyspace.Keyspace, error) {
	switch opts.Backend {
	case BackendMemory:
		return keyspace.NewMemory(d.ID, d.Name), nil
	default:
		dir := filepath.Join(opts.Dir, d.Name)
		return keyspace.OpenBolt(dir, d.ID, d.Name, keyspace.BoltOptions{NoSync: opts.BoltNoSync})
	}
}

func (db *Database) mvccFor(id keyspace.ID) (*MVCC, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	mv, ok := db.mvccCache[id]
	if !ok {
		return nil, cgerrors.New(cgerrors.KindKeyspaceGet, "unknown keyspace id").WithContext("keyspace", id)
	}
	return mv, nil
}

// CurrentSeq returns the sequencer's current value without advancing
// it — the watermark a freshly opened ReadSnapshot should pin to.
func (db *Database) CurrentSeq() uint64 { return db.seq.Current() }

// OpenReadSnapshot opens a ReadSnapshot pinned at the sequencer's
// current value, registering it with the isolation manager so its
// open_seq is never garbage collected out from under a concurrent
// commit's validation (§4.1.6, §4.2).
func (db *Database) OpenReadSnapshot() *ReadSnapshot {
	seq := db.seq.Current()
	db.isolation.OpenedForRead(seq)
	return &ReadSnapshot{db: db, asOf: seq}
}

// OpenSchemaSnapshot opens a ReadSnapshot that holds the schema
// exclusivity semaphore until Close, waiting without a timeout while
// another SchemaSnapshot holds it. Data commits are not blocked.
func (db *Database) OpenSchemaSnapshot() (*SchemaSnapshot, error) {
	if err := db.schemaExclusivity.Acquire(context.Background(), 1); err != nil {
		return nil, cgerrors.Wrap(err, cgerrors.KindWriteExclusivityWait, "acquire schema exclusivity")
	}
	rs := db.OpenReadSnapshot()
	return &SchemaSnapshot{ReadSnapshot: *rs, release: func() { db.schemaExclusivity.Release(1) }}, nil
}

// BeginWrite opens a new WriteBatch against the sequencer's current
// value (§3.1 "open_seq").
func (db *Database) BeginWrite() *WriteBatch {
	return NewWriteBatch(db.seq.Current())
}

// Commit validates batch against the isolation manager's overlap
// window, and on success appends a commit record plus a committed
// status record to the WAL, applies the batch to the MVCC keyspaces,
// and returns the freshly minted commit sequence number (§4.1.4).
//
// On a validation conflict, Commit appends an aborted status record
// (so recovery never has to guess an unresolved commit's fate) and
// returns the conflict error; no keyspace is mutated.
func (db *Database) Commit(batch *WriteBatch) (uint64, error) {
	db.commitMu.Lock()
	defer db.commitMu.Unlock()

	rec := &durability.CommitRecord{OpenSeq: batch.OpenSeq(), Batches: batch.Batches()}
	commitSeq := db.seq.Increment()

	if err := db.wal.Append(commitSeq, durability.RecordTypeCommit, durability.EncodeCommit(rec)); err != nil {
		return 0, err
	}

	if err := db.isolation.Validate(commitSeq, rec); err != nil {
		_ = db.wal.Append(commitSeq, durability.RecordTypeStatus,
			durability.EncodeStatus(&durability.StatusRecord{CommitSeq: commitSeq, Status: durability.StatusAborted}))
		return 0, err
	}

	if err := db.applyLocked(rec, commitSeq); err != nil {
		_ = db.wal.Append(commitSeq, durability.RecordTypeStatus,
			durability.EncodeStatus(&durability.StatusRecord{CommitSeq: commitSeq, Status: durability.StatusAborted}))
		return 0, err
	}

	if err := db.wal.Append(commitSeq, durability.RecordTypeStatus,
		durability.EncodeStatus(&durability.StatusRecord{CommitSeq: commitSeq, Status: durability.StatusCommitted})); err != nil {
		return 0, err
	}
	return commitSeq, nil
}

// applyLocked materializes a validated commit's batches into the
// versioned keyspaces at commitSeq. The caller (Commit) holds
// commitMu, so this never races another writer.
func (db *Database) applyLocked(rec *durability.CommitRecord, commitSeq uint64) error {
	for _, b := range rec.Batches {
		ks, ok := db.keyspaces[b.Keyspace]
		if !ok {
			return cgerrors.New(cgerrors.KindKeyspaceWrite, "unknown keyspace id in commit batch").WithContext("keyspace", b.Keyspace)
		}
		entries := make([]keyspace.Entry, 0, len(b.Entries))
		for _, e := range b.Entries {
			if e.Op == keyspace.OpRequireExists {
				continue // read-validated assertion, never materialized (§4.1.2)
			}
			composite := EncodeVersionedKey(e.Key, commitSeq)
			switch e.Op {
			case keyspace.OpDelete:
				entries = append(entries, keyspace.Entry{Key: composite, Op: keyspace.OpPut, Value: encodeVersionedValue(true, nil)})
			default:
				entries = append(entries, keyspace.Entry{Key: composite, Op: keyspace.OpPut, Value: encodeVersionedValue(false, e.Value)})
			}
		}
		if err := ks.Write(entries); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the WAL and every keyspace.
func (db *Database) Close() error {
	var firstErr error
	if err := db.wal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, ks := range db.keyspaces {
		if err := ks.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
