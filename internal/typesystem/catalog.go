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

import "sort"

// Catalog is the in-memory schema: every declared type, role, and
// capability, plus the label index invariant 1 of §3.2 requires
// ("labels are globally unique within their kind namespace; role
// labels are unique within a relation-type subtree").
type Catalog struct {
	entities   map[TypeID]*EntityType
	relations  map[TypeID]*RelationType
	attributes map[TypeID]*AttributeType
	roles      map[TypeID]*RoleType

	relates map[TypeID]map[TypeID]*Relates // relation -> role -> Relates
	owns    map[TypeID]map[TypeID]*Owns    // owner -> attribute -> Owns
	plays   map[TypeID]map[TypeID]*Plays   // player -> role -> Plays

	labelIndex map[labelKey]TypeID // (kind, label) -> id, roles keyed by (KindRole, "relationLabel:roleLabel")
	nextID     TypeID
}

type labelKey struct {
	kind  Kind
	label string
}

// NewCatalog returns an empty catalog; id 0 (NoType) is never issued.
func NewCatalog() *Catalog {
	return &Catalog{
		entities:   make(map[TypeID]*EntityType),
		relations:  make(map[TypeID]*RelationType),
		attributes: make(map[TypeID]*AttributeType),
		roles:      make(map[TypeID]*RoleType),
		relates:    make(map[TypeID]map[TypeID]*Relates),
		owns:       make(map[TypeID]map[TypeID]*Owns),
		plays:      make(map[TypeID]map[TypeID]*Plays),
		labelIndex: make(map[labelKey]TypeID),
		nextID:     1,
	}
}

func (c *Catalog) allocID() TypeID {
	id := c.nextID
	c.nextID++
	return id
}

// labelTaken reports whether label is already used within kind's
// namespace (role labels are namespaced by the owning relation, so
// callers pass the qualified label for roles).
func (c *Catalog) labelTaken(kind Kind, label string) bool {
	_, ok := c.labelIndex[labelKey{kind, label}]
	return ok
}

func (c *Catalog) addLabel(kind Kind, label string, id TypeID) {
	c.labelIndex[labelKey{kind, label}] = id
}

func (c *Catalog) removeLabel(kind Kind, label string) {
	delete(c.labelIndex, labelKey{kind, label})
}

// Kind reports which kind a TypeID belongs to, or 0 if unknown.
func (c *Catalog) Kind(id TypeID) Kind {
	switch {
	case c.entities[id] != nil:
		return KindEntity
	case c.relations[id] != nil:
		return KindRelation
	case c.attributes[id] != nil:
		return KindAttribute
	case c.roles[id] != nil:
		return KindRole
	default:
		return 0
	}
}

func (c *Catalog) supertypeOf(id TypeID) (TypeID, bool) {
	switch c.Kind(id) {
	case KindEntity:
		return c.entities[id].Supertype, true
	case KindRelation:
		return c.relations[id].Supertype, true
	case KindAttribute:
		return c.attributes[id].Supertype, true
	case KindRole:
		return c.roles[id].Supertype, true
	default:
		return NoType, false
	}
}

// Supertypes returns id's strict ancestor chain, root-most last.
func (c *Catalog) Supertypes(id TypeID) []TypeID {
	var out []TypeID
	cur := id
	seen := map[TypeID]bool{}
	for {
		sup, ok := c.supertypeOf(cur)
		if !ok || sup == NoType || seen[sup] {
			return out
		}
		out = append(out, sup)
		seen[sup] = true
		cur = sup
	}
}

// IsSubtypeOrSelf reports whether sub == sup or sup appears in sub's
// ancestor chain.
func (c *Catalog) IsSubtypeOrSelf(sub, sup TypeID) bool {
	if sub == sup {
		return true
	}
	for _, a := range c.Supertypes(sub) {
		if a == sup {
			return true
		}
	}
	return false
}

// Subtypes returns every type whose ancestor chain includes id
// (excluding id itself), across whichever kind id belongs to.
func (c *Catalog) Subtypes(id TypeID) []TypeID {
	var out []TypeID
	for candidate := range c.allIDsOfKind(c.Kind(id)) {
		if candidate == id {
			continue
		}
		for _, a := range c.Supertypes(candidate) {
			if a == id {
				out = append(out, candidate)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Catalog) allIDsOfKind(k Kind) map[TypeID]bool {
	out := make(map[TypeID]bool)
	switch k {
	case KindEntity:
		for id := range c.entities {
			out[id] = true
		}
	case KindRelation:
		for id := range c.relations {
			out[id] = true
		}
	case KindAttribute:
		for id := range c.attributes {
			out[id] = true
		}
	case KindRole:
		for id := range c.roles {
			out[id] = true
		}
	}
	return out
}

// OwnsClosure returns every Owns capability visible to owner,
// declared directly or inherited from a supertype (§3.2 invariant 5:
// a subtype's capability narrows, never replaces, the supertype's).
// When the owned attribute type itself carries @key, the returned Owns
// is a copy whose Annotations include Key as well.
func (c *Catalog) OwnsClosure(owner TypeID) map[TypeID]*Owns {
	out := make(map[TypeID]*Owns)
	chain := append([]TypeID{owner}, c.Supertypes(owner)...)
	for i := len(chain) - 1; i >= 0; i-- {
		for attr, o := range c.owns[chain[i]] {
			out[attr] = o
		}
	}
	for attr, o := range out {
		at, ok := c.attributes[attr]
		if !ok || !hasAnnotation(at.Annotations, AnnotationKey) || hasAnnotation(o.Annotations, AnnotationKey) {
			continue
		}
		withKey := *o
		withKey.Annotations = append(append([]Annotation(nil), o.Annotations...), Annotation{Kind: AnnotationKey})
		out[attr] = &withKey
	}
	return out
}

// PlaysClosure mirrors OwnsClosure for Plays.
func (c *Catalog) PlaysClosure(player TypeID) map[TypeID]*Plays {
	out := make(map[TypeID]*Plays)
	chain := append([]TypeID{player}, c.Supertypes(player)...)
	for i := len(chain) - 1; i >= 0; i-- {
		for role, p := range c.plays[chain[i]] {
			out[role] = p
		}
	}
	return out
}

// RelatesClosure mirrors OwnsClosure for Relates.
func (c *Catalog) RelatesClosure(relation TypeID) map[TypeID]*Relates {
	out := make(map[TypeID]*Relates)
	chain := append([]TypeID{relation}, c.Supertypes(relation)...)
	for i := len(chain) - 1; i >= 0; i-- {
		for role, r := range c.relates[chain[i]] {
			out[role] = r
		}
	}
	return out
}

// AttributeValueType returns id's effective ValueType, resolved by
// walking the ancestor chain for the nearest declared (non-None)
// value type — the same inheritance rule SetValueType enforces.
func (c *Catalog) AttributeValueType(id TypeID) ValueType {
	chain := append([]TypeID{id}, c.Supertypes(id)...)
	for _, cur := range chain {
		if at, ok := c.attributes[cur]; ok && at.ValueType != ValueTypeNone {
			return at.ValueType
		}
	}
	return ValueTypeNone
}

// AttributeAnnotations returns the annotations declared directly on
// attribute type id (not inherited) — callers that need the full
// inherited set walk Supertypes themselves and combine per-level
// results, mirroring OwnsClosure's narrowing order.
func (c *Catalog) AttributeAnnotations(id TypeID) []Annotation {
	if at, ok := c.attributes[id]; ok {
		return at.Annotations
	}
	return nil
}

// ResolveLabel looks up the type-id declared for label within kind's
// namespace — the reverse of Label, used by pattern compilation to
// turn a literal type name into a TypeID.
func (c *Catalog) ResolveLabel(kind Kind, label string) (TypeID, bool) {
	id, ok := c.labelIndex[labelKey{kind, label}]
	return id, ok
}

// AllIDsOfKind returns every declared type-id of kind k — used by type
// inference to seed a variable's initial candidate set to "every type
// of its category" (§4.5).
func (c *Catalog) AllIDsOfKind(k Kind) []TypeID {
	ids := c.allIDsOfKind(k)
	out := make([]TypeID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Label returns id's label (unqualified for roles).
func (c *Catalog) Label(id TypeID) (string, bool) {
	switch c.Kind(id) {
	case KindEntity:
		return c.entities[id].Label, true
	case KindRelation:
		return c.relations[id].Label, true
	case KindAttribute:
		return c.attributes[id].Label, true
	case KindRole:
		return c.roles[id].Label, true
	default:
		return "", false
	}
}
