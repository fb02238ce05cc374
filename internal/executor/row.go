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

// Package executor implements §4.7: the plan-step iterator tree, write
// stages, and reducers a compiled Plan runs against a snapshot.
package executor

import (
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/thing"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// Kind tags which field of VariableValue is populated.
type Kind uint8

const (
	Empty Kind = iota
	TypeKind
	ThingKind
	AttributeKind
	ValueKind
	ThingListKind
	ValueListKind
)

// VariableValue is one slot of a Row (§4.7: "VariableValue ∈ {Empty,
// Type, Thing, Attribute, Value, ThingList, ValueList}"). Exactly one
// payload field is meaningful, selected by Kind.
type VariableValue struct {
	Kind Kind

	Type      typesystem.TypeID
	Thing     thing.ObjectID
	Attribute thing.AttributeID
	Value     thing.Value
	ThingList []thing.ObjectID
	ValueList []thing.Value
}

func TypeValue(t typesystem.TypeID) VariableValue { return VariableValue{Kind: TypeKind, Type: t} }
func ThingValue(o thing.ObjectID) VariableValue   { return VariableValue{Kind: ThingKind, Thing: o} }
func AttributeValueOf(a thing.AttributeID) VariableValue {
	return VariableValue{Kind: AttributeKind, Attribute: a}
}
func ValueOf(v thing.Value) VariableValue { return VariableValue{Kind: ValueKind, Value: v} }

// sortKey is a comparable projection of a VariableValue, used as a map
// key when an IntersectionStep groups bindings by their shared sort
// variable's value (thing.ObjectID and thing.AttributeID are both
// plain comparable structs, so no hashing is needed).
type sortKey struct {
	kind Kind
	t    typesystem.TypeID
	obj  thing.ObjectID
	attr thing.AttributeID
}

func keyOf(v VariableValue) sortKey {
	return sortKey{kind: v.Kind, t: v.Type, obj: v.Thing, attr: v.Attribute}
}

// Row is a fixed-width tuple of VariableValue indexed by pattern
// variable ordinal, plus the multiplicity counter §4.7 describes:
// "when the selected projection drops a variable that still had a
// cartesian fan-out, the dropped fan-out is folded into multiplicity
// so downstream counts remain correct."
type Row struct {
	Values       []VariableValue
	Multiplicity uint64
}

// NewRow allocates a Row wide enough to address every variable ordinal
// up to width-1.
func NewRow(width int) Row {
	return Row{Values: make([]VariableValue, width), Multiplicity: 1}
}

func (r Row) Get(v pattern.Variable) VariableValue {
	if int(v) >= len(r.Values) {
		return VariableValue{}
	}
	return r.Values[v]
}

// Clone returns a deep-enough copy for a downstream iterator to extend
// without mutating the row its upstream still holds a reference to.
func (r Row) Clone() Row {
	values := make([]VariableValue, len(r.Values))
	copy(values, r.Values)
	return Row{Values: values, Multiplicity: r.Multiplicity}
}

// With returns a clone of r with v set to val.
func (r Row) With(v pattern.Variable, val VariableValue) Row {
	out := r.Clone()
	if int(v) >= len(out.Values) {
		grown := make([]VariableValue, v+1)
		copy(grown, out.Values)
		out.Values = grown
	}
	out.Values[v] = val
	return out
}
