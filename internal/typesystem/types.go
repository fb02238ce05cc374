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

// Package typesystem implements §4.3: the schema catalog (entity,
// relation, attribute, role types, their owns/plays/relates
// capabilities, annotations and derived constraints) and the
// validation passes a schema commit runs before taking effect.
//
// The type hierarchy and capability-narrowing semantics follow
// original_source/concept/type_/entity_type.rs,
// attribute_type.rs, and object_type.rs, adapted from trait-per-kind
// Rust objects into a single catalog keyed by TypeID.
package typesystem

import "fmt"

// TypeID is the stable integer identifying one type, role, or
// capability row, unique across every kind (§3.2).
type TypeID uint64

// NoType is the zero value, meaning "no supertype" / "no type".
const NoType TypeID = 0

// Kind distinguishes the four type categories a TypeID can name.
type Kind uint8

const (
	KindEntity Kind = iota + 1
	KindRelation
	KindAttribute
	KindRole
)

func (k Kind) String() string {
	switch k {
	case KindEntity:
		return "entity"
	case KindRelation:
		return "relation"
	case KindAttribute:
		return "attribute"
	case KindRole:
		return "role"
	default:
		return "unknown"
	}
}

// ValueType is an AttributeType's storage representation (§3.2).
type ValueType uint8

const (
	ValueTypeNone ValueType = iota
	ValueTypeBoolean
	ValueTypeLong
	ValueTypeDouble
	ValueTypeDecimal
	ValueTypeDate
	ValueTypeDateTime
	ValueTypeDateTimeTZ
	ValueTypeDuration
	ValueTypeString
	ValueTypeStruct
)

// Ordering is Owns' multiplicity discipline (§3.2).
type Ordering uint8

const (
	Unordered Ordering = iota
	Ordered
)

// AnnotationKind enumerates the supported annotation variants (§3.2).
type AnnotationKind uint8

const (
	AnnotationAbstract AnnotationKind = iota + 1
	AnnotationIndependent
	AnnotationUnique
	AnnotationKey
	AnnotationDistinct
	AnnotationCardinality
	AnnotationRegex
	AnnotationRange
	AnnotationValues
	AnnotationCascade
)

func (a AnnotationKind) String() string {
	names := [...]string{"", "abstract", "independent", "unique", "key", "distinct", "cardinality", "regex", "range", "values", "cascade"}
	if int(a) < len(names) {
		return names[a]
	}
	return fmt.Sprintf("annotation(%d)", a)
}

// Annotation is a single declared annotation on a type or capability.
// Only the fields relevant to Kind are populated; the rest are left
// at their zero value.
type Annotation struct {
	Kind AnnotationKind

	// Cardinality
	Min uint64
	Max uint64 // upper bound; applies only when HasMax is set
	HasMax bool

	// Regex
	Pattern string

	// Range
	RangeMin, RangeMax []byte // canonical-encoded value bounds; nil = unbounded

	// Values
	AllowedValues [][]byte // canonical-encoded allowed values
}

// EntityType is a node in the entity subtype tree.
type EntityType struct {
	ID         TypeID
	Label      string
	Supertype  TypeID // NoType for a root type
	Annotations []Annotation
}

// RelationType is a node in the relation subtype tree; it owns the
// RoleTypes declared via Relates.
type RelationType struct {
	ID          TypeID
	Label       string
	Supertype   TypeID
	Annotations []Annotation
}

// AttributeType is a node in the attribute subtype tree, optionally
// carrying a ValueType (§3.2 invariant 3: required for non-abstract
// instantiable types, inherited, compatible across sub/super).
type AttributeType struct {
	ID          TypeID
	Label       string
	Supertype   TypeID
	ValueType   ValueType
	Annotations []Annotation
}

// RoleType belongs to exactly one RelationType; its fully-qualified
// label is "<relation>:<role>" (§3.2).
type RoleType struct {
	ID          TypeID
	Label       string // unqualified
	Relation    TypeID
	Supertype   TypeID
	Annotations []Annotation
}

func (r RoleType) QualifiedLabel(relationLabel string) string {
	return relationLabel + ":" + r.Label
}

// Relates declares that a RelationType relates a RoleType (§3.2).
type Relates struct {
	Relation    TypeID
	Role        TypeID
	Annotations []Annotation
}

// Owns declares that an owner type (entity or relation) may own
// attributes of a given type (§3.2).
type Owns struct {
	Owner       TypeID
	Attribute   TypeID
	Ordering    Ordering
	Annotations []Annotation
}

// Plays declares that a player type may play a role (§3.2).
type Plays struct {
	Player      TypeID
	Role        TypeID
	Annotations []Annotation
}
