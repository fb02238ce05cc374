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

package keyspace

import (
	"fmt"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
)

// ID is the small stable integer identifying a keyspace (§6: 0..=9,
// id 10 reserved/forbidden, at most 10 keyspaces total).
type ID uint8

// MaxKeyspaces is the compile-time cap on the number of declared
// keyspaces (§6).
const MaxKeyspaces = 10

// ReservedID is forbidden from ever being assigned to a user keyspace.
const ReservedID ID = 10

// The fixed keyspace set. Schema keyspaces hold type-system rows
// (§4.3); data keyspaces hold instance rows (§4.4, §3.3); engine
// keyspaces hold storage-internal bookkeeping. This is the Go-side
// analog of erigon-lib/kv/tables.go's constant catalog: every
// keyspace is declared once, by name, with a comment on its key/value
// shape.
const (
	// SchemaTypes: type-id (varint) -> encoded type row (label, kind,
	// supertype, value-type, annotations).
	SchemaTypes ID = iota
	// SchemaCapabilities: capability-id -> encoded Owns/Plays/Relates row.
	SchemaCapabilities
	// SchemaLabelIndex: label string -> type-id, for label uniqueness
	// lookups and resolution.
	SchemaLabelIndex
	// DataObjects: (type-id, instance-id) -> object vertex row
	// (entities and relations).
	DataObjects
	// DataAttributes: (type-id, value-hash-prefix, disambiguator) ->
	// attribute vertex row. See storage's attribute identity allocator.
	DataAttributes
	// DataHasEdges: (owner key, attribute key) -> count, for Has(owner,
	// attribute) edges (§3.3).
	DataHasEdges
	// DataRolePlayers: (relation key, role-type-id, player key) ->
	// count, for RolePlayer edges (§3.3).
	DataRolePlayers
	// EngineIDCounters: type-id -> next unused instance-id, seeded on
	// open by scanning DataObjects/DataAttributes under the type's
	// prefix (§4.4, §5).
	EngineIDCounters
)

// Descriptor names and validates a single keyspace.
type Descriptor struct {
	ID   ID
	Name string
}

// DefaultDescriptors is the complete, order-stable set of keyspaces
// this engine declares.
var DefaultDescriptors = []Descriptor{
	{SchemaTypes, "schema_types"},
	{SchemaCapabilities, "schema_capabilities"},
	{SchemaLabelIndex, "schema_label_index"},
	{DataObjects, "data_objects"},
	{DataAttributes, "data_attributes"},
	{DataHasEdges, "data_has_edges"},
	{DataRolePlayers, "data_role_players"},
	{EngineIDCounters, "engine_id_counters"},
}

// ValidateDescriptors enforces §6's invariants: at most MaxKeyspaces,
// no reserved id, no duplicate id or name.
func ValidateDescriptors(descs []Descriptor) error {
	if len(descs) > MaxKeyspaces {
		return cgerrors.New(cgerrors.KindKeyspaceOpen,
			fmt.Sprintf("too many keyspaces: %d > max %d", len(descs), MaxKeyspaces))
	}
	seenID := make(map[ID]string, len(descs))
	seenName := make(map[string]ID, len(descs))
	for _, d := range descs {
		if d.ID == ReservedID {
			return cgerrors.New(cgerrors.KindKeyspaceOpen,
				fmt.Sprintf("keyspace %q uses reserved id %d", d.Name, ReservedID))
		}
		if other, ok := seenID[d.ID]; ok {
			return cgerrors.New(cgerrors.KindKeyspaceOpen,
				fmt.Sprintf("duplicate keyspace id %d used by %q and %q", d.ID, other, d.Name))
		}
		if other, ok := seenName[d.Name]; ok {
			return cgerrors.New(cgerrors.KindKeyspaceOpen,
				fmt.Sprintf("duplicate keyspace name %q used by ids %d and %d", d.Name, other, d.ID))
		}
		seenID[d.ID] = d.Name
		seenName[d.Name] = d.ID
	}
	return nil
}
