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

// Package stats implements the statistics §4.6 feeds to the planner:
// per-type instance counts, per-(owner_type, attr_type) has-edge
// counts, and per-(relation_type, role_type, player_type) link
// counts.
package stats

import (
	"github.com/conceptgraph/conceptgraph/internal/storage"
	"github.com/conceptgraph/conceptgraph/internal/thing"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// TypeID aliases typesystem.TypeID for callers that only import
// internal/stats.
type TypeID = typesystem.TypeID

// Statistics is an immutable snapshot of instance-level cardinalities,
// computed once (by Compute) and reused across planning calls until
// the next refresh — mirroring TypeCache's "immutable once built for
// a given sequence number" contract (§5).
type Statistics struct {
	Seq uint64

	instanceCounts map[TypeID]int64
	hasCounts      map[thing.HasEdgeTypePair]int64
	linkCounts     map[thing.RolePlayerTypeTriple]int64
}

// Compute runs a full scan over snap via mgr's stats accessors and
// materialises a Statistics snapshot. A full scan is the simplest
// correct approach for this specification's scope (no incremental
// statistics maintenance is described in §4.6); callers refresh
// periodically or after bulk loads rather than per-transaction.
func Compute(snap *storage.ReadSnapshot, mgr *thing.Manager) (*Statistics, error) {
	instanceCounts, err := mgr.ObjectTypeCounts(snap)
	if err != nil {
		return nil, err
	}
	hasCounts, err := mgr.HasEdgeCounts(snap)
	if err != nil {
		return nil, err
	}
	linkCounts, err := mgr.RolePlayerCounts(snap)
	if err != nil {
		return nil, err
	}
	return &Statistics{
		Seq:            snap.Seq(),
		instanceCounts: instanceCounts,
		hasCounts:      hasCounts,
		linkCounts:     linkCounts,
	}, nil
}

// InstanceCount returns the number of live instances of t.
func (s *Statistics) InstanceCount(t TypeID) int64 {
	return s.instanceCounts[t]
}

// HasCount returns the number of Has edges recorded between ownerType
// and attrType.
func (s *Statistics) HasCount(ownerType, attrType TypeID) int64 {
	return s.hasCounts[thing.HasEdgeTypePair{Owner: ownerType, Attribute: attrType}]
}

// LinkCount returns the number of RolePlayer edges recorded for the
// given (relation, role, player) type triple.
func (s *Statistics) LinkCount(relationType, roleType, playerType TypeID) int64 {
	return s.linkCounts[thing.RolePlayerTypeTriple{Relation: relationType, Role: roleType, Player: playerType}]
}

// TotalLinksForRole sums LinkCount over every observed player type for
// (relationType, roleType) — the planner's estimate for "iterate this
// role globally" when the player type isn't yet narrowed.
func (s *Statistics) TotalLinksForRole(relationType, roleType TypeID) int64 {
	var total int64
	for k, v := range s.linkCounts {
		if k.Relation == relationType && k.Role == roleType {
			total += v
		}
	}
	return total
}

// TotalHasForOwner sums HasCount over every observed attribute type
// for ownerType.
func (s *Statistics) TotalHasForOwner(ownerType TypeID) int64 {
	var total int64
	for k, v := range s.hasCounts {
		if k.Owner == ownerType {
			total += v
		}
	}
	return total
}
