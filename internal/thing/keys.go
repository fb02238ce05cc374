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

// Package thing implements §4.4: the instance layer over storage and
// the type manager — entities, relations, attributes, Has edges, and
// RolePlayer edges — plus the finalisation pass a commit runs before
// it's allowed to land.
package thing

import (
	"encoding/binary"

	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// ObjectID identifies an entity or relation instance (§3.3: "objects
// ... identified by (type-id, instance-id)").
type ObjectID struct {
	Type TypeID
	Inst uint64
}

// TypeID is typesystem.TypeID, re-exported so call sites that only
// import internal/thing don't also need internal/typesystem for the
// common case of naming a type.
type TypeID = typesystem.TypeID

// AttributeID identifies a value-addressed attribute instance: two
// attributes of the same type with equal canonical value share an
// AttributeID (§3.3 invariant 1). HashPrefix/Disambiguator mirror
// storage.AttributeKey's composite key exactly, so an AttributeID can
// rebuild its DataAttributes row key without re-hashing the value.
type AttributeID struct {
	Type          TypeID
	HashPrefix    [8]byte
	Disambiguator uint32
}

// objectKey is the DataObjects logical key for an object: type-id (8B)
// || instance-id (8B).
func objectKey(o ObjectID) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[0:8], uint64(o.Type))
	binary.BigEndian.PutUint64(key[8:16], o.Inst)
	return key
}

func objectTypePrefix(t TypeID) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(t))
	return key
}

func parseObjectKey(key []byte) (ObjectID, bool) {
	if len(key) != 16 {
		return ObjectID{}, false
	}
	return ObjectID{
		Type: TypeID(binary.BigEndian.Uint64(key[0:8])),
		Inst: binary.BigEndian.Uint64(key[8:16]),
	}, true
}

// attributeKey rebuilds the 20-byte DataAttributes row key for an
// already-resolved AttributeID (type-id || hash-prefix ||
// disambiguator), without re-hashing the value — used by Has edges
// and deletes.
func attributeKey(a AttributeID) []byte {
	key := make([]byte, 20)
	binary.BigEndian.PutUint64(key[0:8], uint64(a.Type))
	copy(key[8:16], a.HashPrefix[:])
	binary.BigEndian.PutUint32(key[16:20], a.Disambiguator)
	return key
}

func parseAttributeKey(key []byte) (AttributeID, bool) {
	if len(key) != 20 {
		return AttributeID{}, false
	}
	var a AttributeID
	a.Type = TypeID(binary.BigEndian.Uint64(key[0:8]))
	copy(a.HashPrefix[:], key[8:16])
	a.Disambiguator = binary.BigEndian.Uint32(key[16:20])
	return a, true
}

func hasEdgeKey(owner ObjectID, attr AttributeID) []byte {
	key := make([]byte, 16+20)
	copy(key[0:16], objectKey(owner))
	copy(key[16:36], attributeKey(attr))
	return key
}

func hasEdgeOwnerPrefix(owner ObjectID) []byte {
	return objectKey(owner)
}

// orderedHasListKey is the DataHasEdges row for an Ordered owns
// capability: one row per (owner, attribute-type) holding the whole
// ordered list (§4.4 Open Question decision (b): ordered owns is
// replace-whole-list, never mixed with the per-instance presence edge
// unordered owns uses). Its 24-byte width (16+8) distinguishes it from
// the 36-byte (16+20) unordered Has edge key under the same owner
// prefix.
func orderedHasListKey(owner ObjectID, attrType TypeID) []byte {
	key := make([]byte, 16+8)
	copy(key[0:16], objectKey(owner))
	binary.BigEndian.PutUint64(key[16:24], uint64(attrType))
	return key
}

func parseOrderedHasListKey(key []byte) (owner ObjectID, attrType TypeID, ok bool) {
	if len(key) != 16+8 {
		return ObjectID{}, 0, false
	}
	owner, ok = parseObjectKey(key[0:16])
	if !ok {
		return ObjectID{}, 0, false
	}
	return owner, TypeID(binary.BigEndian.Uint64(key[16:24])), true
}

// encodeAttributeList/decodeAttributeList serialize an ordered
// []AttributeID as a flat concatenation of 20-byte attributeKey rows
// — position in the slice is the list order.
func encodeAttributeList(attrs []AttributeID) []byte {
	out := make([]byte, 0, len(attrs)*20)
	for _, a := range attrs {
		out = append(out, attributeKey(a)...)
	}
	return out
}

func decodeAttributeList(data []byte) []AttributeID {
	if len(data)%20 != 0 {
		return nil
	}
	out := make([]AttributeID, 0, len(data)/20)
	for i := 0; i < len(data); i += 20 {
		if a, ok := parseAttributeKey(data[i : i+20]); ok {
			out = append(out, a)
		}
	}
	return out
}

// rolePlayerForwardKey/rolePlayerReverseKey build the reverse-index row stored alongside
// the forward RolePlayer row, so "every relation a player fills a role
// in" is a prefix scan rather than a full keyspace scan. Encoded as
// player(16B) || role(8B) || relation(16B) under the same
// DataRolePlayers keyspace, distinguished by a leading marker byte.
const (
	rolePlayerForward byte = 0
	rolePlayerReverse byte = 1
)

func rolePlayerForwardKey(relation ObjectID, role TypeID, player ObjectID) []byte {
	key := make([]byte, 1+16+8+16)
	key[0] = rolePlayerForward
	copy(key[1:17], objectKey(relation))
	binary.BigEndian.PutUint64(key[17:25], uint64(role))
	copy(key[25:41], objectKey(player))
	return key
}

func rolePlayerReverseKey(relation ObjectID, role TypeID, player ObjectID) []byte {
	key := make([]byte, 1+16+8+16)
	key[0] = rolePlayerReverse
	copy(key[1:17], objectKey(player))
	binary.BigEndian.PutUint64(key[17:25], uint64(role))
	copy(key[25:41], objectKey(relation))
	return key
}

func rolePlayerForwardPrefix(relation ObjectID) []byte {
	key := make([]byte, 1+16)
	key[0] = rolePlayerForward
	copy(key[1:], objectKey(relation))
	return key
}

// rolePlayerTypePrefix matches every forward RolePlayer row whose
// relation is of type t, regardless of instance or role — the base
// scan a fully (or player-side-only) unbound Links instruction runs.
func rolePlayerTypePrefix(t TypeID) []byte {
	key := make([]byte, 1+8)
	key[0] = rolePlayerForward
	binary.BigEndian.PutUint64(key[1:], uint64(t))
	return key
}

func rolePlayerReversePrefix(player ObjectID) []byte {
	key := make([]byte, 1+16)
	key[0] = rolePlayerReverse
	copy(key[1:], objectKey(player))
	return key
}

func countBytes(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

func parseCount(v []byte) uint64 {
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}
