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

// Package inference implements §4.5: converting an annotated pattern
// block into a type-inference graph and running the fixpoint
// algorithm that narrows each variable's candidate schema types.
package inference

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// TypeID aliases typesystem.TypeID so callers only importing
// internal/inference don't also need internal/typesystem by name.
type TypeID = typesystem.TypeID

// TypeSet is a variable's current candidate schema-type set, backed by
// a roaring bitmap so the fixpoint algorithm's repeated
// intersect/union over potentially large per-category type sets stays
// cheap. TypeID values are allocated sequentially from a shared
// per-catalog counter (internal/typesystem's Catalog.nextID), so
// truncating to uint32 is safe for any schema this engine could hold
// in memory.
type TypeSet struct {
	bits *roaring.Bitmap
}

// NewTypeSet builds a TypeSet containing ids.
func NewTypeSet(ids ...TypeID) *TypeSet {
	ts := &TypeSet{bits: roaring.New()}
	for _, id := range ids {
		ts.bits.Add(uint32(id))
	}
	return ts
}

// EmptyTypeSet returns a new, empty TypeSet.
func EmptyTypeSet() *TypeSet { return &TypeSet{bits: roaring.New()} }

func (s *TypeSet) Add(id TypeID) { s.bits.Add(uint32(id)) }

func (s *TypeSet) Contains(id TypeID) bool { return s.bits.Contains(uint32(id)) }

func (s *TypeSet) IsEmpty() bool { return s.bits.IsEmpty() }

func (s *TypeSet) Len() int { return int(s.bits.GetCardinality()) }

// Clone returns an independent copy of s.
func (s *TypeSet) Clone() *TypeSet { return &TypeSet{bits: s.bits.Clone()} }

// IntersectInPlace narrows s to s ∩ other, reporting whether s changed.
func (s *TypeSet) IntersectInPlace(other *TypeSet) bool {
	before := s.bits.GetCardinality()
	s.bits.And(other.bits)
	return s.bits.GetCardinality() != before
}

// Union returns a new TypeSet containing s ∪ other.
func (s *TypeSet) Union(other *TypeSet) *TypeSet {
	out := s.bits.Clone()
	out.Or(other.bits)
	return &TypeSet{bits: out}
}

// Slice returns s's members in ascending order.
func (s *TypeSet) Slice() []TypeID {
	vals := s.bits.ToArray()
	out := make([]TypeID, len(vals))
	for i, v := range vals {
		out[i] = TypeID(v)
	}
	return out
}
