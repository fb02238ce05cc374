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

// stats.go exposes the full-scan counts internal/stats needs (§4.6:
// "per-type instance counts, per-(owner_type, attr_type) has-edge
// counts, per-(relation_type, role_type, player_type) link counts").
// Key layouts stay private to this package; callers only see type-id
// triples and counts.
package thing

import (
	"encoding/binary"

	"github.com/conceptgraph/conceptgraph/internal/keyspace"
	"github.com/conceptgraph/conceptgraph/internal/storage"
)

// HasEdgeTypePair groups Has-edge counts by the owner and attribute
// types involved.
type HasEdgeTypePair struct {
	Owner     TypeID
	Attribute TypeID
}

// RolePlayerTypeTriple groups RolePlayer-edge counts by the relation,
// role, and player types involved.
type RolePlayerTypeTriple struct {
	Relation TypeID
	Role     TypeID
	Player   TypeID
}

// ObjectTypeCounts returns the number of live entity/relation
// instances per type, via a full DataObjects scan.
func (m *Manager) ObjectTypeCounts(snap *storage.ReadSnapshot) (map[TypeID]int64, error) {
	it, err := snap.IterateRange(keyspace.DataObjects, keyspace.Range{})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	out := make(map[TypeID]int64)
	for it.Next() {
		if obj, ok := parseObjectKey(it.Key()); ok {
			out[obj.Type]++
		}
	}
	return out, it.Err()
}

// HasEdgeCounts returns, for every (owner-type, attribute-type) pair,
// the number of Has edges currently recorded — an Unordered presence
// edge counts 1, an Ordered owns list row counts its length.
func (m *Manager) HasEdgeCounts(snap *storage.ReadSnapshot) (map[HasEdgeTypePair]int64, error) {
	it, err := snap.IterateRange(keyspace.DataHasEdges, keyspace.Range{})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	out := make(map[HasEdgeTypePair]int64)
	for it.Next() {
		key := it.Key()
		if len(key) < 16 {
			continue
		}
		owner, ok := parseObjectKey(key[:16])
		if !ok {
			continue
		}
		switch len(key) {
		case 16 + 20:
			if attr, ok := parseAttributeKey(key[16:36]); ok {
				out[HasEdgeTypePair{Owner: owner.Type, Attribute: attr.Type}]++
			}
		case 16 + 8:
			if _, attrType, ok := parseOrderedHasListKey(key); ok {
				out[HasEdgeTypePair{Owner: owner.Type, Attribute: attrType}] += int64(len(decodeAttributeList(it.Value())))
			}
		}
	}
	return out, it.Err()
}

// RolePlayerCounts returns, for every (relation-type, role-type,
// player-type) triple, the sum of RolePlayer edge counts — scanning
// only the forward-marker rows so the reverse index isn't
// double-counted.
func (m *Manager) RolePlayerCounts(snap *storage.ReadSnapshot) (map[RolePlayerTypeTriple]int64, error) {
	it, err := snap.IterateRange(keyspace.DataRolePlayers, keyspace.Range{})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	out := make(map[RolePlayerTypeTriple]int64)
	for it.Next() {
		key := it.Key()
		if len(key) != 1+16+8+16 || key[0] != rolePlayerForward {
			continue
		}
		relation, ok := parseObjectKey(key[1:17])
		if !ok {
			continue
		}
		role := TypeID(binary.BigEndian.Uint64(key[17:25]))
		player, ok := parseObjectKey(key[25:41])
		if !ok {
			continue
		}
		out[RolePlayerTypeTriple{Relation: relation.Type, Role: role, Player: player.Type}] += int64(parseCount(it.Value()))
	}
	return out, it.Err()
}
