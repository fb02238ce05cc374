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

// edges.go implements the Has and RolePlayer edge operations of §4.4:
// set_has/unset_has, add_player/remove_player_single/remove_player_many.
package thing

import (
	"encoding/binary"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/keyspace"
	"github.com/conceptgraph/conceptgraph/internal/storage"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// SetHas records that owner owns attr for an Unordered owns capability
// (§3.3 invariant 2); it's a presence edge, count fixed at 1. Ordered
// owns capabilities reject it — callers use SetOrderedOwns, which
// replaces the whole list (§4.4 Open Question decision (b): the two
// semantics are never mixed).
func (m *Manager) SetHas(snap *storage.ReadSnapshot, batch *storage.WriteBatch, owner ObjectID, attr AttributeID) error {
	ownerKind := m.cache.Catalog().Kind(owner.Type)
	if ownerKind != typesystem.KindEntity && ownerKind != typesystem.KindRelation {
		return cgerrors.New(cgerrors.KindLabelNotResolved, "has owner must be an entity or relation").WithContext("owner_type", owner.Type)
	}
	owns, ok := m.cache.Owns(owner.Type)[attr.Type]
	if !ok {
		return cgerrors.New(cgerrors.KindLabelNotResolved, "owner type has no matching owns capability").
			WithContext("owner_type", owner.Type, "attribute_type", attr.Type)
	}
	if owns.Ordering == typesystem.Ordered {
		return cgerrors.New(cgerrors.KindCapabilityNotNarrowed, "ordered owns capability requires SetOrderedOwns").
			WithContext("owner_type", owner.Type, "attribute_type", attr.Type)
	}

	batch.RequireExists(keyspace.DataObjects, objectKey(owner))
	batch.RequireExists(keyspace.DataAttributes, attributeKey(attr))
	batch.Put(keyspace.DataHasEdges, hasEdgeKey(owner, attr), countBytes(1))
	return nil
}

// UnsetHas removes an Unordered Has edge.
func (m *Manager) UnsetHas(snap *storage.ReadSnapshot, batch *storage.WriteBatch, owner ObjectID, attr AttributeID) error {
	batch.Delete(keyspace.DataHasEdges, hasEdgeKey(owner, attr))
	return nil
}

// SetOrderedOwns replaces the whole ordered list of attr instances
// owner has of attrType, for an Ordered owns capability — the only
// mutation ordered owns exposes (§4.4 Open Question decision (b)). An
// empty attrs deletes the list row entirely.
func (m *Manager) SetOrderedOwns(snap *storage.ReadSnapshot, batch *storage.WriteBatch, owner ObjectID, attrType TypeID, attrs []AttributeID) error {
	ownerKind := m.cache.Catalog().Kind(owner.Type)
	if ownerKind != typesystem.KindEntity && ownerKind != typesystem.KindRelation {
		return cgerrors.New(cgerrors.KindLabelNotResolved, "has owner must be an entity or relation").WithContext("owner_type", owner.Type)
	}
	owns, ok := m.cache.Owns(owner.Type)[attrType]
	if !ok || owns.Ordering != typesystem.Ordered {
		return cgerrors.New(cgerrors.KindCapabilityNotNarrowed, "owner type has no matching ordered owns capability").
			WithContext("owner_type", owner.Type, "attribute_type", attrType)
	}
	for _, a := range attrs {
		if a.Type != attrType {
			return cgerrors.New(cgerrors.KindValueTypeIncompatible, "ordered owns list contains an attribute of the wrong type").
				WithContext("owner_type", owner.Type, "attribute_type", attrType, "got", a.Type)
		}
		batch.RequireExists(keyspace.DataAttributes, attributeKey(a))
	}

	batch.RequireExists(keyspace.DataObjects, objectKey(owner))
	key := orderedHasListKey(owner, attrType)
	if len(attrs) == 0 {
		batch.Delete(keyspace.DataHasEdges, key)
		return nil
	}
	batch.Put(keyspace.DataHasEdges, key, encodeAttributeList(attrs))
	return nil
}

// OrderedAttributes returns owner's current ordered list of attrType
// instances, in list order.
func (m *Manager) OrderedAttributes(snap *storage.ReadSnapshot, owner ObjectID, attrType TypeID) ([]AttributeID, error) {
	raw, found, err := snap.Get(keyspace.DataHasEdges, orderedHasListKey(owner, attrType))
	if err != nil || !found {
		return nil, err
	}
	return decodeAttributeList(raw), nil
}

// HasAttributes returns every attribute owner currently has — both
// Unordered presence edges and the flattened contents of every
// Ordered owns list — scanning the owner's DataHasEdges prefix.
func (m *Manager) HasAttributes(snap *storage.ReadSnapshot, owner ObjectID) ([]AttributeID, error) {
	it, err := snap.IterateRange(keyspace.DataHasEdges, keyspace.PrefixRange(hasEdgeOwnerPrefix(owner)))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []AttributeID
	for it.Next() {
		key := it.Key()
		switch len(key) {
		case 16 + 20:
			if attr, ok := parseAttributeKey(key[16:36]); ok {
				out = append(out, attr)
			}
		case 16 + 8:
			out = append(out, decodeAttributeList(it.Value())...)
		}
	}
	return out, it.Err()
}

// AddPlayer records relation.role is filled by player, validating
// player's type plays role and relation's type relates it (§3.3
// invariant 3).
func (m *Manager) AddPlayer(snap *storage.ReadSnapshot, batch *storage.WriteBatch, relation ObjectID, role TypeID, player ObjectID) error {
	if _, ok := m.cache.Relates(relation.Type)[role]; !ok {
		return cgerrors.New(cgerrors.KindLabelNotResolved, "relation type does not relate this role").
			WithContext("relation_type", relation.Type, "role", role)
	}
	if _, ok := m.cache.Plays(player.Type)[role]; !ok {
		return cgerrors.New(cgerrors.KindLabelNotResolved, "player type does not play this role").
			WithContext("player_type", player.Type, "role", role)
	}

	fwd := rolePlayerForwardKey(relation, role, player)
	rev := rolePlayerReverseKey(relation, role, player)
	batch.RequireExists(keyspace.DataObjects, objectKey(relation))
	batch.RequireExists(keyspace.DataObjects, objectKey(player))

	existing, found, err := snap.Get(keyspace.DataRolePlayers, fwd)
	if err != nil {
		return err
	}
	count := uint64(0)
	if found {
		count = parseCount(existing)
	}
	batch.Put(keyspace.DataRolePlayers, fwd, countBytes(count+1))
	batch.Put(keyspace.DataRolePlayers, rev, countBytes(count+1))
	return nil
}

// RemovePlayerSingle removes exactly one instance of the (relation,
// role, player) edge, decrementing its count.
func (m *Manager) RemovePlayerSingle(snap *storage.ReadSnapshot, batch *storage.WriteBatch, relation ObjectID, role TypeID, player ObjectID) error {
	return m.removePlayer(snap, batch, relation, role, player, 1)
}

// RemovePlayerMany removes every instance of the (relation, role,
// player) edge in one call.
func (m *Manager) RemovePlayerMany(snap *storage.ReadSnapshot, batch *storage.WriteBatch, relation ObjectID, role TypeID, player ObjectID) error {
	return m.removePlayer(snap, batch, relation, role, player, 0)
}

func (m *Manager) removePlayer(snap *storage.ReadSnapshot, batch *storage.WriteBatch, relation ObjectID, role TypeID, player ObjectID, decrementBy uint64) error {
	fwd := rolePlayerForwardKey(relation, role, player)
	rev := rolePlayerReverseKey(relation, role, player)
	existing, found, err := snap.Get(keyspace.DataRolePlayers, fwd)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	count := parseCount(existing)
	if decrementBy != 0 && count > decrementBy {
		remaining := countBytes(count - decrementBy)
		batch.Put(keyspace.DataRolePlayers, fwd, remaining)
		batch.Put(keyspace.DataRolePlayers, rev, remaining)
		return nil
	}
	batch.Delete(keyspace.DataRolePlayers, fwd)
	batch.Delete(keyspace.DataRolePlayers, rev)
	return nil
}

// rolePlayerEdge is one resolved (role, player) pair a relation fills.
type rolePlayerEdge struct {
	Role   TypeID
	Player ObjectID
	Count  uint64
}

// RolePlayers returns every (role, player, count) edge relation
// currently has, scanning its forward-index prefix.
func (m *Manager) RolePlayers(snap *storage.ReadSnapshot, relation ObjectID) ([]rolePlayerEdge, error) {
	it, err := snap.IterateRange(keyspace.DataRolePlayers, keyspace.PrefixRange(rolePlayerForwardPrefix(relation)))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []rolePlayerEdge
	for it.Next() {
		key := it.Key()
		if len(key) != 1+16+8+16 {
			continue
		}
		role := TypeID(binary.BigEndian.Uint64(key[17:25]))
		player, ok := parseObjectKey(key[25:41])
		if !ok {
			continue
		}
		out = append(out, rolePlayerEdge{Role: role, Player: player, Count: parseCount(it.Value())})
	}
	return out, it.Err()
}

// RelationsPlayedIn returns every relation instance player currently
// fills a role in, via the reverse index.
func (m *Manager) RelationsPlayedIn(snap *storage.ReadSnapshot, player ObjectID) ([]ObjectID, error) {
	it, err := snap.IterateRange(keyspace.DataRolePlayers, keyspace.PrefixRange(rolePlayerReversePrefix(player)))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []ObjectID
	for it.Next() {
		key := it.Key()
		if len(key) != 1+16+8+16 {
			continue
		}
		if rel, ok := parseObjectKey(key[25:41]); ok {
			out = append(out, rel)
		}
	}
	return out, it.Err()
}
