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
	"sync"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
)

// Manager is the public schema-mutation surface of §4.3, operating
// against a single in-transaction Catalog. A schema write transaction
// constructs one Manager over a copy of the committed catalog,
// applies a sequence of mutations, then calls Validate before the
// pipeline persists it (see internal/storage's schema exclusivity and
// encoding.go for the persistence path).
type Manager struct {
	mu      sync.Mutex
	catalog *Catalog
}

func NewManager(catalog *Catalog) *Manager {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Manager{catalog: catalog}
}

// Catalog exposes the underlying catalog for read-only queries (type
// inference, planner statistics).
func (m *Manager) Catalog() *Catalog { return m.catalog }

func (m *Manager) labelConflict(kind Kind, label string) error {
	if m.catalog.labelTaken(kind, label) {
		return cgerrors.New(cgerrors.KindLabelShouldBeUnique, "label already in use").
			WithContext("label", label, "kind", kind.String())
	}
	return nil
}

// CreateEntityType creates a new root EntityType labelled label.
func (m *Manager) CreateEntityType(label string) (*EntityType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.labelConflict(KindEntity, label); err != nil {
		return nil, err
	}
	et := &EntityType{ID: m.catalog.allocID(), Label: label}
	m.catalog.entities[et.ID] = et
	m.catalog.addLabel(KindEntity, label, et.ID)
	return et, nil
}

// CreateRelationType creates a new root RelationType labelled label.
func (m *Manager) CreateRelationType(label string) (*RelationType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.labelConflict(KindRelation, label); err != nil {
		return nil, err
	}
	rt := &RelationType{ID: m.catalog.allocID(), Label: label}
	m.catalog.relations[rt.ID] = rt
	m.catalog.addLabel(KindRelation, label, rt.ID)
	return rt, nil
}

// CreateAttributeType creates a new root AttributeType labelled
// label, with no value type yet (§3.2: required only once
// non-abstract instances exist).
func (m *Manager) CreateAttributeType(label string) (*AttributeType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.labelConflict(KindAttribute, label); err != nil {
		return nil, err
	}
	at := &AttributeType{ID: m.catalog.allocID(), Label: label}
	m.catalog.attributes[at.ID] = at
	m.catalog.addLabel(KindAttribute, label, at.ID)
	return at, nil
}

// CreateRelates declares a new RoleType owned by relation, labelled
// role (§3.2: "roles are owned by relation types").
func (m *Manager) CreateRelates(relation TypeID, role string) (*RoleType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.catalog.relations[relation]
	if !ok {
		return nil, cgerrors.New(cgerrors.KindLabelNotResolved, "unknown relation type").WithContext("relation", relation)
	}
	qualified := rt.Label + ":" + role
	if err := m.labelConflict(KindRole, qualified); err != nil {
		return nil, err
	}
	roleType := &RoleType{ID: m.catalog.allocID(), Label: role, Relation: relation}
	m.catalog.roles[roleType.ID] = roleType
	m.catalog.addLabel(KindRole, qualified, roleType.ID)
	if m.catalog.relates[relation] == nil {
		m.catalog.relates[relation] = make(map[TypeID]*Relates)
	}
	m.catalog.relates[relation][roleType.ID] = &Relates{Relation: relation, Role: roleType.ID}
	return roleType, nil
}

// SetSupertype sets sub's supertype to sup, validating acyclicity
// (§3.2 invariant 2) and, for attribute types, value-type
// compatibility (§3.2 invariant 3). Capability-narrowing is checked
// by Validate at commit time, since it depends on the full capability
// set which may still be in flux within the same transaction.
func (m *Manager) SetSupertype(sub, sup TypeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	subKind, supKind := m.catalog.Kind(sub), m.catalog.Kind(sup)
	if subKind == 0 || subKind != supKind {
		return cgerrors.New(cgerrors.KindLabelNotResolved, "supertype must be the same kind as subtype").
			WithContext("sub", sub, "sup", sup)
	}
	if m.catalog.IsSubtypeOrSelf(sup, sub) {
		return cgerrors.New(cgerrors.KindCycleInTypeHierarchy, "setting supertype would introduce a cycle").
			WithContext("sub", sub, "sup", sup)
	}
	if subKind == KindAttribute {
		subAT, supAT := m.catalog.attributes[sub], m.catalog.attributes[sup]
		if subAT.ValueType != ValueTypeNone && supAT.ValueType != ValueTypeNone && subAT.ValueType != supAT.ValueType {
			return cgerrors.New(cgerrors.KindValueTypeIncompatible, "subtype value type incompatible with supertype").
				WithContext("sub", sub, "sup", sup)
		}
	}
	switch subKind {
	case KindEntity:
		m.catalog.entities[sub].Supertype = sup
	case KindRelation:
		m.catalog.relations[sub].Supertype = sup
	case KindAttribute:
		m.catalog.attributes[sub].Supertype = sup
	case KindRole:
		m.catalog.roles[sub].Supertype = sup
	}
	return nil
}

// SetValueType sets an AttributeType's value type, rejecting a change
// that would be inconsistent with an already-assigned, different
// value type on a sub- or super-type (§3.2 invariant 3, §4.3).
func (m *Manager) SetValueType(attr TypeID, vt ValueType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.catalog.attributes[attr]
	if !ok {
		return cgerrors.New(cgerrors.KindLabelNotResolved, "unknown attribute type").WithContext("attribute", attr)
	}
	if sup, ok := m.catalog.supertypeOf(attr); ok && sup != NoType {
		if supAT := m.catalog.attributes[sup]; supAT.ValueType != ValueTypeNone && supAT.ValueType != vt {
			return cgerrors.New(cgerrors.KindValueTypeIncompatible, "value type incompatible with supertype").
				WithContext("attribute", attr)
		}
	}
	for _, sub := range m.catalog.Subtypes(attr) {
		if subAT := m.catalog.attributes[sub]; subAT.ValueType != ValueTypeNone && subAT.ValueType != vt {
			return cgerrors.New(cgerrors.KindValueTypeIncompatible, "value type incompatible with subtype").
				WithContext("attribute", attr, "subtype", sub)
		}
	}
	at.ValueType = vt
	return nil
}

// SetOwns declares (or replaces) an Owns capability. Narrowing
// against any inherited Owns on the same attribute (or one of its
// supertypes) is checked at Validate time.
func (m *Manager) SetOwns(owner, attr TypeID, ordering Ordering) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.catalog.Kind(owner) != KindEntity && m.catalog.Kind(owner) != KindRelation {
		return cgerrors.New(cgerrors.KindLabelNotResolved, "owner must be an entity or relation type").WithContext("owner", owner)
	}
	if _, ok := m.catalog.attributes[attr]; !ok {
		return cgerrors.New(cgerrors.KindLabelNotResolved, "unknown attribute type").WithContext("attribute", attr)
	}
	if m.catalog.owns[owner] == nil {
		m.catalog.owns[owner] = make(map[TypeID]*Owns)
	}
	m.catalog.owns[owner][attr] = &Owns{Owner: owner, Attribute: attr, Ordering: ordering}
	return nil
}

// SetPlays declares (or replaces) a Plays capability.
func (m *Manager) SetPlays(player, role TypeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.catalog.Kind(player) != KindEntity && m.catalog.Kind(player) != KindRelation {
		return cgerrors.New(cgerrors.KindLabelNotResolved, "player must be an entity or relation type").WithContext("player", player)
	}
	if _, ok := m.catalog.roles[role]; !ok {
		return cgerrors.New(cgerrors.KindLabelNotResolved, "unknown role type").WithContext("role", role)
	}
	if m.catalog.plays[player] == nil {
		m.catalog.plays[player] = make(map[TypeID]*Plays)
	}
	m.catalog.plays[player][role] = &Plays{Player: player, Role: role}
	return nil
}

var annotationAllowedOn = map[AnnotationKind]map[Kind]bool{
	AnnotationAbstract:     {KindEntity: true, KindRelation: true, KindAttribute: true, KindRole: true},
	AnnotationIndependent:  {KindAttribute: true},
	AnnotationUnique:       {KindAttribute: true},
	AnnotationKey:          {KindAttribute: true},
	AnnotationDistinct:     {KindRole: true},
	AnnotationCardinality:  {KindRole: true, KindAttribute: true},
	AnnotationRegex:        {KindAttribute: true},
	AnnotationRange:        {KindAttribute: true},
	AnnotationValues:       {KindAttribute: true},
	AnnotationCascade:      {KindRelation: true},
}

// SetAnnotation attaches annotation to a type, rejecting combinations
// §4.6's table disallows (§4.3: "set_annotation ... rejects
// unsupported annotation/kind combinations").
func (m *Manager) SetAnnotation(target TypeID, ann Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kind := m.catalog.Kind(target)
	if kind == 0 {
		return cgerrors.New(cgerrors.KindLabelNotResolved, "unknown type").WithContext("target", target)
	}
	allowed := annotationAllowedOn[ann.Kind]
	if allowed == nil || !allowed[kind] {
		return cgerrors.New(cgerrors.KindAnnotationNotSupported, "annotation not supported for this kind").
			WithContext("annotation", ann.Kind.String(), "kind", kind.String())
	}
	setAnnotations(m.catalog, target, kind, appendAnnotation(getAnnotations(m.catalog, target, kind), ann))
	return nil
}

// UnsetAnnotation removes every annotation of kind ann from target.
func (m *Manager) UnsetAnnotation(target TypeID, ann AnnotationKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kind := m.catalog.Kind(target)
	if kind == 0 {
		return cgerrors.New(cgerrors.KindLabelNotResolved, "unknown type").WithContext("target", target)
	}
	current := getAnnotations(m.catalog, target, kind)
	kept := current[:0:0]
	for _, a := range current {
		if a.Kind != ann {
			kept = append(kept, a)
		}
	}
	setAnnotations(m.catalog, target, kind, kept)
	return nil
}

func appendAnnotation(existing []Annotation, ann Annotation) []Annotation {
	for i, a := range existing {
		if a.Kind == ann.Kind {
			existing[i] = ann
			return existing
		}
	}
	return append(existing, ann)
}

func getAnnotations(c *Catalog, id TypeID, kind Kind) []Annotation {
	switch kind {
	case KindEntity:
		return c.entities[id].Annotations
	case KindRelation:
		return c.relations[id].Annotations
	case KindAttribute:
		return c.attributes[id].Annotations
	case KindRole:
		return c.roles[id].Annotations
	}
	return nil
}

func setAnnotations(c *Catalog, id TypeID, kind Kind, anns []Annotation) {
	switch kind {
	case KindEntity:
		c.entities[id].Annotations = anns
	case KindRelation:
		c.relations[id].Annotations = anns
	case KindAttribute:
		c.attributes[id].Annotations = anns
	case KindRole:
		c.roles[id].Annotations = anns
	}
}
