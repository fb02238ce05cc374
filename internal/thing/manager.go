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

package thing

import (
	"encoding/binary"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/keyspace"
	"github.com/conceptgraph/conceptgraph/internal/storage"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// Manager is the instance layer's mutation surface (§4.4), operating
// against a TypeCache pinned to the schema visible at the write
// transaction's open sequence number. Every operation threads through
// the caller's snapshot (for reads) and write batch (for the
// operation's edits plus the RequireExists schema locks that detect a
// concurrent schema change invalidating this transaction's type
// assumptions).
type Manager struct {
	cache *typesystem.TypeCache
	alloc *IDAllocator
}

func NewManager(cache *typesystem.TypeCache, alloc *IDAllocator) *Manager {
	return &Manager{cache: cache, alloc: alloc}
}

// CreateEntity allocates a new instance id for t and writes its
// vertex row.
func (m *Manager) CreateEntity(snap *storage.ReadSnapshot, batch *storage.WriteBatch, t TypeID) (ObjectID, error) {
	if m.cache.Catalog().Kind(t) != typesystem.KindEntity {
		return ObjectID{}, cgerrors.New(cgerrors.KindLabelNotResolved, "not an entity type").WithContext("type", t)
	}
	return m.createObject(snap, batch, t)
}

// CreateRelation allocates a new instance id for t and writes its
// vertex row.
func (m *Manager) CreateRelation(snap *storage.ReadSnapshot, batch *storage.WriteBatch, t TypeID) (ObjectID, error) {
	if m.cache.Catalog().Kind(t) != typesystem.KindRelation {
		return ObjectID{}, cgerrors.New(cgerrors.KindLabelNotResolved, "not a relation type").WithContext("type", t)
	}
	return m.createObject(snap, batch, t)
}

func (m *Manager) createObject(snap *storage.ReadSnapshot, batch *storage.WriteBatch, t TypeID) (ObjectID, error) {
	inst, err := m.alloc.Next(snap, keyspace.DataObjects, t)
	if err != nil {
		return ObjectID{}, err
	}
	obj := ObjectID{Type: t, Inst: inst}
	batch.RequireExists(keyspace.SchemaTypes, objectTypePrefix(t))
	batch.Insert(keyspace.DataObjects, objectKey(obj), []byte{1})
	return obj, nil
}

// maxDisambiguatorScan bounds how many disambiguator slots
// CreateAttribute will probe before giving up (§4.1.4 describes
// scanning "existing attributes under the prefix"; a real hash
// collision chain is expected to be at most a handful of entries
// long, so an unbounded scan would only mask a corrupt prefix range).
const maxDisambiguatorScan = 1 << 16

// CreateAttribute resolves value to its AttributeID, allocating a new
// one (and writing its vertex row) the first time this type/value
// pair is seen, or returning the existing id when snap already holds
// a committed row for it. A matched row gets a RequireExists in batch;
// a new row is written with Insert, so a concurrent inserter of the
// same value conflicts at commit time instead of silently duplicating
// (§4.1.4).
func (m *Manager) CreateAttribute(snap *storage.ReadSnapshot, batch *storage.WriteBatch, t TypeID, value Value) (AttributeID, error) {
	if m.cache.Catalog().Kind(t) != typesystem.KindAttribute {
		return AttributeID{}, cgerrors.New(cgerrors.KindLabelNotResolved, "not an attribute type").WithContext("type", t)
	}
	declaredVT := m.cache.Catalog().AttributeValueType(t)
	if !value.CompatibleWith(declaredVT) {
		return AttributeID{}, cgerrors.New(cgerrors.KindValueTypeIncompatible, "value does not match attribute type's value type").
			WithContext("type", t, "declared", int(declaredVT), "got", int(value.Type))
	}

	canonical, err := value.Canonical()
	if err != nil {
		return AttributeID{}, err
	}
	prefix := storage.AttributeKeyPrefix(uint64(t), canonical)
	batch.RequireExists(keyspace.SchemaTypes, objectTypePrefix(t))

	it, err := snap.IterateRange(keyspace.DataAttributes, keyspace.PrefixRange(prefix))
	if err != nil {
		return AttributeID{}, err
	}
	defer it.Close()

	var nextDisambiguator uint32
	for n := 0; it.Next(); n++ {
		if n >= maxDisambiguatorScan {
			break
		}
		attr, ok := parseAttributeKey(it.Key())
		if !ok {
			continue
		}
		if string(it.Value()) == string(canonical) {
			batch.RequireExists(keyspace.DataAttributes, it.Key())
			return attr, nil
		}
		if attr.Disambiguator >= nextDisambiguator {
			nextDisambiguator = attr.Disambiguator + 1
		}
	}
	if err := it.Err(); err != nil {
		return AttributeID{}, err
	}

	key := storage.AttributeKey(uint64(t), canonical, nextDisambiguator)
	batch.Insert(keyspace.DataAttributes, key, canonical)
	attr, _ := parseAttributeKey(key)
	return attr, nil
}

// Delete removes the object obj and cascades to every Has/RolePlayer
// edge naming it, forward or reverse (§3.3 invariant 4).
func (m *Manager) Delete(snap *storage.ReadSnapshot, batch *storage.WriteBatch, obj ObjectID) error {
	it, err := snap.IterateRange(keyspace.DataHasEdges, keyspace.PrefixRange(hasEdgeOwnerPrefix(obj)))
	if err != nil {
		return err
	}
	for it.Next() {
		batch.Delete(keyspace.DataHasEdges, append([]byte(nil), it.Key()...))
	}
	if err := it.Err(); err != nil {
		it.Close()
		return err
	}
	it.Close()

	relations, err := m.RelationsPlayedIn(snap, obj)
	if err != nil {
		return err
	}
	for _, rel := range relations {
		if err := deleteRolePlayerEdgesInvolving(snap, batch, rel, obj); err != nil {
			return err
		}
	}

	if m.cache.Catalog().Kind(obj.Type) == typesystem.KindRelation {
		edges, err := m.RolePlayers(snap, obj)
		if err != nil {
			return err
		}
		for _, e := range edges {
			batch.Delete(keyspace.DataRolePlayers, rolePlayerForwardKey(obj, e.Role, e.Player))
			batch.Delete(keyspace.DataRolePlayers, rolePlayerReverseKey(obj, e.Role, e.Player))
		}
	}

	batch.Delete(keyspace.DataObjects, objectKey(obj))
	return nil
}

// DeleteAttribute removes attr and purges it from every Has edge
// naming it — Unordered presence edges and Ordered owns lists alike —
// found via a full DataHasEdges scan filtered by suffix (no secondary
// reverse index; attribute deletes are rare relative to reads).
func (m *Manager) DeleteAttribute(snap *storage.ReadSnapshot, batch *storage.WriteBatch, attr AttributeID) error {
	it, err := snap.IterateRange(keyspace.DataHasEdges, keyspace.Range{})
	if err != nil {
		return err
	}
	defer it.Close()
	suffix := attributeKey(attr)
	for it.Next() {
		key := it.Key()
		switch len(key) {
		case 16 + 20:
			if string(key[16:36]) == string(suffix) {
				batch.Delete(keyspace.DataHasEdges, append([]byte(nil), key...))
			}
		case 16 + 8:
			list := decodeAttributeList(it.Value())
			filtered := list[:0:0]
			changed := false
			for _, a := range list {
				if a == attr {
					changed = true
					continue
				}
				filtered = append(filtered, a)
			}
			if !changed {
				continue
			}
			keyCopy := append([]byte(nil), key...)
			if len(filtered) == 0 {
				batch.Delete(keyspace.DataHasEdges, keyCopy)
			} else {
				batch.Put(keyspace.DataHasEdges, keyCopy, encodeAttributeList(filtered))
			}
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	batch.Delete(keyspace.DataAttributes, attributeKey(attr))
	return nil
}

func deleteRolePlayerEdgesInvolving(snap *storage.ReadSnapshot, batch *storage.WriteBatch, relation, player ObjectID) error {
	it, err := snap.IterateRange(keyspace.DataRolePlayers, keyspace.PrefixRange(rolePlayerForwardPrefix(relation)))
	if err != nil {
		return err
	}
	defer it.Close()
	playerKey := objectKey(player)
	for it.Next() {
		key := it.Key()
		if len(key) != 1+16+8+16 {
			continue
		}
		if string(key[25:41]) != string(playerKey) {
			continue
		}
		role := TypeID(binary.BigEndian.Uint64(key[17:25]))
		batch.Delete(keyspace.DataRolePlayers, rolePlayerForwardKey(relation, role, player))
		batch.Delete(keyspace.DataRolePlayers, rolePlayerReverseKey(relation, role, player))
	}
	return it.Err()
}
