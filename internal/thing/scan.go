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

// scan.go holds the row-returning full/prefix scans internal/executor
// builds its base iterators from — the counting twins of these live in
// stats.go. Key-layout knowledge stays here so callers only ever deal
// in ObjectID/AttributeID/Value.
package thing

import (
	"encoding/binary"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/keyspace"
	"github.com/conceptgraph/conceptgraph/internal/storage"
)

// HasEdge is one (owner, attribute) pair from an unordered Has scan.
type HasEdge struct {
	Owner ObjectID
	Attr  AttributeID
}

// RolePlayerEdge is one (relation, role, player) triple.
type RolePlayerEdge struct {
	Relation ObjectID
	Role     TypeID
	Player   ObjectID
}

// AttributeValue reads and decodes attr's stored value.
func (m *Manager) AttributeValue(snap *storage.ReadSnapshot, attr AttributeID) (Value, error) {
	raw, ok, err := snap.Get(keyspace.DataAttributes, attributeKey(attr))
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return Value{}, cgerrors.New(cgerrors.KindConceptRead, "attribute not found").
			WithContext("attributeType", uint64(attr.Type))
	}
	return DecodeValue(m.cache.Catalog().AttributeValueType(attr.Type), raw)
}

// ObjectsOfType enumerates every entity/relation instance of exactly
// t — the base iterator a Thing-category variable with no Has/Links
// constraint of its own still needs (§8 testable property 7: every
// variable is emitted by exactly one instruction).
func (m *Manager) ObjectsOfType(snap *storage.ReadSnapshot, t TypeID) ([]ObjectID, error) {
	it, err := snap.IterateRange(keyspace.DataObjects, keyspace.PrefixRange(objectTypePrefix(t)))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []ObjectID
	for it.Next() {
		if obj, ok := parseObjectKey(it.Key()); ok {
			out = append(out, obj)
		}
	}
	return out, it.Err()
}

// AttributesOfType enumerates every attribute instance of exactly t.
func (m *Manager) AttributesOfType(snap *storage.ReadSnapshot, t TypeID) ([]AttributeID, error) {
	it, err := snap.IterateRange(keyspace.DataAttributes, keyspace.PrefixRange(objectTypePrefix(t)))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []AttributeID
	for it.Next() {
		if attr, ok := parseAttributeKey(it.Key()); ok {
			out = append(out, attr)
		}
	}
	return out, it.Err()
}

// HasEdgesForOwnerType enumerates every unordered Has edge whose owner
// is of type ownerType — the base iterator a fully (or
// attribute-side-only) unbound Has instruction runs (§4.6: no reverse
// attribute->owner index exists, so an attribute-bound scan also
// starts here and filters).
func (m *Manager) HasEdgesForOwnerType(snap *storage.ReadSnapshot, ownerType TypeID) ([]HasEdge, error) {
	it, err := snap.IterateRange(keyspace.DataHasEdges, keyspace.PrefixRange(objectTypePrefix(ownerType)))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []HasEdge
	for it.Next() {
		key := it.Key()
		if len(key) != 16+20 {
			continue // an ordered-owns list row (16+8) under the same owner-type prefix
		}
		owner, ok := parseObjectKey(key[:16])
		if !ok {
			continue
		}
		attr, ok := parseAttributeKey(key[16:36])
		if !ok {
			continue
		}
		out = append(out, HasEdge{Owner: owner, Attr: attr})
	}
	return out, it.Err()
}

// RolePlayersForRelationType enumerates every RolePlayer edge whose
// relation is of type relationType — the base iterator a fully (or
// player-side-only) unbound Links instruction runs.
func (m *Manager) RolePlayersForRelationType(snap *storage.ReadSnapshot, relationType TypeID) ([]RolePlayerEdge, error) {
	it, err := snap.IterateRange(keyspace.DataRolePlayers, keyspace.PrefixRange(rolePlayerTypePrefix(relationType)))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []RolePlayerEdge
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
		out = append(out, RolePlayerEdge{Relation: relation, Role: role, Player: player})
	}
	return out, it.Err()
}

// RolePlayersOfRelation enumerates every (role, player) edge a single
// relation instance currently has — the BoundFrom-mode counterpart to
// RolePlayersForRelationType, used once the relation side of a Links
// instruction is already bound by an upstream row. Wraps the unexported
// RolePlayers scan in edges.go so internal/executor never needs to
// import the package-private rolePlayerEdge type.
func (m *Manager) RolePlayersOfRelation(snap *storage.ReadSnapshot, relation ObjectID) ([]RolePlayerEdge, error) {
	edges, err := m.RolePlayers(snap, relation)
	if err != nil {
		return nil, err
	}
	out := make([]RolePlayerEdge, len(edges))
	for i, e := range edges {
		out[i] = RolePlayerEdge{Relation: relation, Role: e.Role, Player: e.Player}
	}
	return out, nil
}
