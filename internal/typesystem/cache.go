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

package typesystem

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// typeInfo is the materialised-per-type row a TypeCache hands back:
// label, supertype, transitive supertypes/subtypes, and the
// owns/plays/relates capability closures. get does not fill
// Annotations; it stays empty.
type typeInfo struct {
	Label          string
	Supertype      TypeID
	Supertypes     []TypeID
	Subtypes       []TypeID
	Annotations    []Annotation
	Owns           map[TypeID]*Owns
	Plays          map[TypeID]*Plays
	Relates        map[TypeID]*Relates
}

// TypeCache is an immutable-per-sequence-number materialised view
// over a Catalog (§5: "Type cache: immutable once built for a given
// sequence number; a schema commit constructs a new cache atomically
// and swaps it in"). Entries are computed lazily and memoised in an
// LRU, since most transactions only touch a handful of types.
type TypeCache struct {
	seq     uint64
	catalog *Catalog
	entries *lru.Cache[TypeID, *typeInfo]
}

// NewTypeCache builds a cache view pinned to catalog as it existed
// after the schema commit at seq.
func NewTypeCache(seq uint64, catalog *Catalog, size int) *TypeCache {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[TypeID, *typeInfo](size)
	return &TypeCache{seq: seq, catalog: catalog, entries: c}
}

func (tc *TypeCache) Seq() uint64 { return tc.seq }

// Catalog exposes the underlying catalog for callers that need
// operations TypeCache doesn't memoize (Kind, Label, acyclicity
// checks) — the instance layer's Manager uses this to validate an
// operation's type argument before touching storage.
func (tc *TypeCache) Catalog() *Catalog { return tc.catalog }

func (tc *TypeCache) get(id TypeID) *typeInfo {
	if v, ok := tc.entries.Get(id); ok {
		return v
	}
	label, _ := tc.catalog.Label(id)
	sup, _ := tc.catalog.supertypeOf(id)
	info := &typeInfo{
		Label:      label,
		Supertype:  sup,
		Supertypes: tc.catalog.Supertypes(id),
		Subtypes:   tc.catalog.Subtypes(id),
		Owns:       tc.catalog.OwnsClosure(id),
		Plays:      tc.catalog.PlaysClosure(id),
		Relates:    tc.catalog.RelatesClosure(id),
	}
	tc.entries.Add(id, info)
	return info
}

func (tc *TypeCache) Label(id TypeID) string        { return tc.get(id).Label }
func (tc *TypeCache) Supertypes(id TypeID) []TypeID { return tc.get(id).Supertypes }
func (tc *TypeCache) Subtypes(id TypeID) []TypeID   { return tc.get(id).Subtypes }
func (tc *TypeCache) Owns(id TypeID) map[TypeID]*Owns       { return tc.get(id).Owns }
func (tc *TypeCache) Plays(id TypeID) map[TypeID]*Plays     { return tc.get(id).Plays }
func (tc *TypeCache) Relates(id TypeID) map[TypeID]*Relates { return tc.get(id).Relates }

// OwnerTypesOf returns every type that owns attr, directly or via
// inheritance — the reverse index the type-inference graph needs when
// propagating a Has constraint from the attribute side (§4.5).
func (tc *TypeCache) OwnerTypesOf(attr TypeID) []TypeID {
	var out []TypeID
	for _, k := range []Kind{KindEntity, KindRelation} {
		for owner := range tc.catalog.allIDsOfKind(k) {
			if _, ok := tc.catalog.OwnsClosure(owner)[attr]; ok {
				out = append(out, owner)
			}
		}
	}
	return out
}

// PlayerTypesOf returns every type that plays role, directly or via
// inheritance — the reverse index a Links constraint needs to
// propagate from the role side to the player side (§4.5).
func (tc *TypeCache) PlayerTypesOf(role TypeID) []TypeID {
	var out []TypeID
	for _, k := range []Kind{KindEntity, KindRelation} {
		for player := range tc.catalog.allIDsOfKind(k) {
			if _, ok := tc.catalog.PlaysClosure(player)[role]; ok {
				out = append(out, player)
			}
		}
	}
	return out
}

// RelationTypesOf returns every relation type that relates role,
// directly or via inheritance — the reverse index a Links constraint
// needs to propagate from the role side to the relation side (§4.5).
func (tc *TypeCache) RelationTypesOf(role TypeID) []TypeID {
	var out []TypeID
	for relation := range tc.catalog.allIDsOfKind(KindRelation) {
		if _, ok := tc.catalog.RelatesClosure(relation)[role]; ok {
			out = append(out, relation)
		}
	}
	return out
}
