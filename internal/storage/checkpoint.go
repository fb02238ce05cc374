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
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/durability"
	"github.com/conceptgraph/conceptgraph/internal/keyspace"
)

const watermarkFile = "watermark"

// Checkpoint copies every keyspace's on-disk state plus the sequence
// number it was taken at into dir, the way
// turbo/snapshotsync/snapshotsync.go stages a consistent snapshot
// directory (§4.1.5 step 1).
func (db *Database) Checkpoint(dir string) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cgerrors.Wrap(err, cgerrors.KindKeyspaceCheckpoint, "create checkpoint dir")
	}
	seq := db.seq.Current()
	for _, ks := range db.keyspaces {
		if err := ks.Checkpoint(dir); err != nil {
			return err
		}
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	if err := os.WriteFile(filepath.Join(dir, watermarkFile), buf[:], 0o600); err != nil {
		return cgerrors.Wrap(err, cgerrors.KindKeyspaceCheckpoint, "write watermark")
	}
	return nil
}

func readWatermark(dir string) (uint64, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, watermarkFile))
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, cgerrors.Wrap(err, cgerrors.KindDurabilityRead, "read watermark")
	}
	if len(data) != 8 {
		return 0, false, cgerrors.New(cgerrors.KindDurabilityRead, "watermark file malformed")
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// Recover rebuilds a Database from dir: it restores every keyspace
// from checkpointDir (if one was taken; a fresh database has none)
// and replays every WAL record with seq greater than the checkpoint's
// watermark, skipping commits whose paired status record is
// StatusAborted and re-deriving the committed ones' keyspace effects
// (§4.1.5 steps 2-4).
//
// Recovery is a two-pass scan over the WAL: the first pass collects
// every commit's outcome (a commit record's status may be written in
// a later WAL file than the commit record itself, so the outcome
// can't be known until the whole log is seen), and the second applies
// every record whose outcome resolved to committed.
func Recover(opts Options, checkpointDir string) (*Database, error) {
	watermark, hasCheckpoint, err := uint64(0), false, error(nil)
	if checkpointDir != "" {
		watermark, hasCheckpoint, err = readWatermark(checkpointDir)
		if err != nil {
			return nil, err
		}
	}

	if hasCheckpoint && opts.Backend == BackendBolt {
		descs := opts.Descriptors
		if descs == nil {
			descs = keyspace.DefaultDescriptors
		}
		for _, d := range descs {
			restored, err := keyspace.RestoreFromCheckpoint(
				filepath.Join(opts.Dir, d.Name), checkpointDir, d.ID, d.Name,
				keyspace.BoltOptions{NoSync: opts.BoltNoSync})
			if err != nil {
				return nil, err
			}
			_ = restored.Close()
		}
	}

	db, err := Open(opts)
	if err != nil {
		return nil, err
	}
	db.seq.SetIfHigher(watermark)

	if err := db.replayFrom(watermark + 1); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (db *Database) replayFrom(from uint64) error {
	it, err := db.wal.IterFrom(from)
	if err != nil {
		return err
	}
	defer it.Close()

	commits := make(map[uint64]*durability.CommitRecord)
	statuses := make(map[uint64]durability.Status)
	var maxSeq uint64

	for it.Next() {
		rec := it.Record()
		if rec.Seq > maxSeq {
			maxSeq = rec.Seq
		}
		switch rec.Type {
		case durability.RecordTypeCommit:
			cr, err := durability.DecodeCommit(rec.Body)
			if err != nil {
				return err
			}
			commits[rec.Seq] = cr
		case durability.RecordTypeStatus:
			sr, err := durability.DecodeStatus(rec.Body)
			if err != nil {
				return err
			}
			statuses[sr.CommitSeq] = sr.Status
		}
	}
	if err := it.Err(); err != nil {
		return err
	}

	for seq := from; seq <= maxSeq; seq++ {
		cr, ok := commits[seq]
		if !ok {
			continue
		}
		if statuses[seq] != durability.StatusCommitted {
			continue // aborted, or a commit record with no paired status: never finalized
		}
		if err := db.applyLocked(cr, seq); err != nil {
			return err
		}
		// Recovered writes are already validated (they were checked once
		// before the crash); re-run Validate purely to repopulate
		// recent_commits so post-recovery transactions see the same
		// overlap window they would have, per §4.2.
		_ = db.isolation.Validate(seq, cr)
	}
	db.seq.SetIfHigher(maxSeq)
	return nil
}
