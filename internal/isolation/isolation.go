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

// Package isolation implements §4.2: validating a prepared commit
// against concurrent commits in the overlap window, and tracking
// open-snapshot watermarks so recent commit history can be garbage
// collected.
package isolation

import (
	"sync"

	"github.com/google/btree"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/durability"
	"github.com/conceptgraph/conceptgraph/internal/keyspace"
)

const commitIndexDegree = 32

// commitItem is the btree.Item wrapping a retained commit, ordered by
// CommitSeq.
type commitItem struct {
	seq    uint64
	record *durability.CommitRecord
}

func (a *commitItem) Less(than btree.Item) bool { return a.seq < than.(*commitItem).seq }

// Manager is the isolation manager: opened_snapshots (a multiset of
// watermarks) and recent_commits (an ordered map retained until no
// open snapshot still needs it), per §4.2.
type Manager struct {
	mu sync.Mutex

	openedSnapshots map[uint64]int
	recentCommits   *btree.BTree
}

func NewManager() *Manager {
	return &Manager{
		openedSnapshots: make(map[uint64]int),
		recentCommits:   btree.New(commitIndexDegree),
	}
}

// OpenedForRead registers a newly opened snapshot's watermark.
func (m *Manager) OpenedForRead(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openedSnapshots[seq]++
}

// Closed deregisters a previously opened snapshot and, if the
// watermark floor advanced, drops commits no open snapshot can still
// need for validation (their open_seq is in the past of every
// remaining open snapshot).
func (m *Manager) Closed(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.openedSnapshots[seq]; ok {
		if n <= 1 {
			delete(m.openedSnapshots, seq)
		} else {
			m.openedSnapshots[seq] = n - 1
		}
	}
	m.gcLocked()
}

func (m *Manager) gcLocked() {
	if len(m.openedSnapshots) == 0 {
		// Nothing open: any commit older than the newest retained one
		// could still be needed by a snapshot that opens next, at the
		// current sequencer value, so conservatively keep everything;
		// the next OpenedForRead establishes a real floor.
		return
	}
	floor := ^uint64(0)
	for w := range m.openedSnapshots {
		if w < floor {
			floor = w
		}
	}
	var drop []btree.Item
	m.recentCommits.Ascend(func(i btree.Item) bool {
		ci := i.(*commitItem)
		if ci.seq < floor {
			drop = append(drop, i)
			return true
		}
		return false
	})
	for _, i := range drop {
		m.recentCommits.Delete(i)
	}
}

// conflict describes which rule tripped, for logging/diagnostics.
type conflict struct {
	reason string
	key    []byte
}

// Validate checks a prepared commit's write set against every
// retained commit with open_seq < other.seq < commit_seq (§4.1.4 step
// 3), then — if it passed — retains the commit for future validations
// and returns nil. On conflict it returns a *cgerrors.Error of kind
// KindSnapshotCommitConflict and does NOT retain the commit (an
// aborted commit never becomes a dependency of later validations).
func (m *Manager) Validate(commitSeq uint64, rec *durability.CommitRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	type keyOp struct {
		ks  keyspace.ID
		key string
		op  keyspace.Op
	}
	overlapping := make([]keyOp, 0, 16)
	m.recentCommits.AscendRange(
		&commitItem{seq: rec.OpenSeq + 1},
		&commitItem{seq: commitSeq},
		func(i btree.Item) bool {
			ci := i.(*commitItem)
			for _, b := range ci.record.Batches {
				for _, e := range b.Entries {
					overlapping = append(overlapping, keyOp{ks: b.Keyspace, key: string(e.Key), op: e.Op})
				}
			}
			return true
		},
	)

	hasOverlap := func(ks keyspace.ID, key []byte, ops ...keyspace.Op) bool {
		for _, o := range overlapping {
			if o.ks != ks || o.key != string(key) {
				continue
			}
			for _, want := range ops {
				if o.op == want {
					return true
				}
			}
		}
		return false
	}

	for _, b := range rec.Batches {
		for _, e := range b.Entries {
			switch e.Op {
			case keyspace.OpPut, keyspace.OpInsert:
				if hasOverlap(b.Keyspace, e.Key, keyspace.OpDelete) {
					return m.conflictErr(commitSeq, conflict{"put/insert vs concurrent delete", e.Key})
				}
			case keyspace.OpRequireExists:
				if hasOverlap(b.Keyspace, e.Key, keyspace.OpDelete, keyspace.OpPut, keyspace.OpInsert) {
					return m.conflictErr(commitSeq, conflict{"require_exists vs concurrent delete/replace", e.Key})
				}
			case keyspace.OpDelete:
				if hasOverlap(b.Keyspace, e.Key, keyspace.OpRequireExists) {
					return m.conflictErr(commitSeq, conflict{"delete vs concurrent require_exists", e.Key})
				}
			}
		}
	}

	m.recentCommits.ReplaceOrInsert(&commitItem{seq: commitSeq, record: rec})
	return nil
}

func (m *Manager) conflictErr(commitSeq uint64, c conflict) error {
	return cgerrors.New(cgerrors.KindSnapshotCommitConflict, c.reason).
		WithContext("commit_seq", commitSeq, "key", string(c.key))
}
