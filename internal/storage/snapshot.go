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
	"github.com/conceptgraph/conceptgraph/internal/keyspace"
)

// ReadSnapshot is a point-in-time, read-only view across every
// keyspace, fixed at the sequence number open at the moment it was
// taken (§4.1.6). All reads through a ReadSnapshot are stable even as
// later commits land.
type ReadSnapshot struct {
	db   *Database
	asOf uint64
}

// Seq returns the sequence number this snapshot is pinned to.
func (s *ReadSnapshot) Seq() uint64 { return s.asOf }

// Get performs an MVCC point lookup in ks as of this snapshot.
func (s *ReadSnapshot) Get(ks keyspace.ID, logicalKey []byte) ([]byte, bool, error) {
	mv, err := s.db.mvccFor(ks)
	if err != nil {
		return nil, false, err
	}
	return mv.Get(logicalKey, s.asOf)
}

// IterateRange performs an MVCC range scan in ks as of this snapshot.
func (s *ReadSnapshot) IterateRange(ks keyspace.ID, r keyspace.Range) (keyspace.Iterator, error) {
	mv, err := s.db.mvccFor(ks)
	if err != nil {
		return nil, err
	}
	return mv.IterateRange(r, s.asOf)
}

// Close releases this snapshot's hold on the isolation manager's
// recent-commit retention (§4.2).
func (s *ReadSnapshot) Close() {
	s.db.isolation.Closed(s.asOf)
}

// SchemaSnapshot is a ReadSnapshot that holds the database's schema
// exclusivity semaphore until Close: opening one waits, with no
// timeout, until any other open SchemaSnapshot closes. Plain
// ReadSnapshots and WriteBatch commits do not take the semaphore and
// are not blocked by it.
type SchemaSnapshot struct {
	ReadSnapshot
	release func()
}

// Close releases both the underlying ReadSnapshot and the schema
// exclusivity hold.
func (s *SchemaSnapshot) Close() {
	s.ReadSnapshot.Close()
	if s.release != nil {
		s.release()
	}
}
