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
	"sort"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
)

// Validate runs the schema-commit validation passes (type hierarchy
// acyclicity, relatable relations, capability narrowing, @key
// inheritance) and collects every violation, rather than stopping at
// the first, so the caller can surface the first plus a count (§7
// CommitFailure). Label uniqueness is enforced when a type is created,
// not here; cardinality coherence between a type and its supertypes is
// not checked.
func (m *Manager) Validate() *cgerrors.CommitFailure {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []*cgerrors.Error
	errs = append(errs, m.checkAcyclicity()...)
	errs = append(errs, m.checkRelatableRelations()...)
	errs = append(errs, m.checkCapabilityNarrowing()...)
	errs = append(errs, m.checkAnnotationInheritance()...)
	return cgerrors.NewCommitFailure(errs)
}

func (m *Manager) allTypeIDsSorted() []TypeID {
	var ids []TypeID
	for id := range m.catalog.entities {
		ids = append(ids, id)
	}
	for id := range m.catalog.relations {
		ids = append(ids, id)
	}
	for id := range m.catalog.attributes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// checkAcyclicity re-validates every type's ancestor chain terminates
// (§3.2 invariant 2). SetSupertype already rejects cycle-introducing
// edges, so this is a defense-in-depth sweep over the final state.
func (m *Manager) checkAcyclicity() []*cgerrors.Error {
	var errs []*cgerrors.Error
	for _, id := range m.allTypeIDsSorted() {
		seen := map[TypeID]bool{id: true}
		cur := id
		for {
			sup, ok := m.catalog.supertypeOf(cur)
			if !ok || sup == NoType {
				break
			}
			if seen[sup] {
				errs = append(errs, cgerrors.New(cgerrors.KindCycleInTypeHierarchy, "cycle in type hierarchy").WithContext("type", id))
				break
			}
			seen[sup] = true
			cur = sup
		}
	}
	return errs
}

// checkRelatableRelations enforces §3.2 invariant 6: a relation type
// must relate at least one role to be instantiable, unless it (or its
// whole subtree) is abstract.
func (m *Manager) checkRelatableRelations() []*cgerrors.Error {
	var errs []*cgerrors.Error
	for id, rt := range m.catalog.relations {
		if hasAnnotation(rt.Annotations, AnnotationAbstract) {
			continue
		}
		if len(m.catalog.RelatesClosure(id)) == 0 {
			errs = append(errs, cgerrors.New(cgerrors.KindCapabilityNotNarrowed, "non-abstract relation type relates no role").
				WithContext("relation", id, "label", rt.Label))
		}
	}
	return errs
}

// checkCapabilityNarrowing enforces §3.2 invariant 5: a capability on
// a subtype must narrow (not merely redeclare identically with a
// weaker ordering, nor contradict) the corresponding capability on
// any supertype. The narrowing rule checked here: Owns ordering may
// not relax from Ordered to Unordered on a subtype.
func (m *Manager) checkCapabilityNarrowing() []*cgerrors.Error {
	var errs []*cgerrors.Error
	for owner, byAttr := range m.catalog.owns {
		for _, sup := range m.catalog.Supertypes(owner) {
			supOwns, ok := m.catalog.owns[sup]
			if !ok {
				continue
			}
			for attr, o := range byAttr {
				if po, ok := supOwns[attr]; ok {
					if po.Ordering == Ordered && o.Ordering == Unordered {
						errs = append(errs, cgerrors.New(cgerrors.KindCapabilityNotNarrowed,
							"owns ordering cannot relax from ordered to unordered on a subtype").
							WithContext("owner", owner, "attribute", attr))
					}
				}
			}
		}
	}
	return errs
}

// checkAnnotationInheritance enforces §3.2 invariant 4: a non-abstract
// subtype must satisfy every inherited annotation — concretely, it
// may not unset an inherited Key/Unique/Abstract by being weaker than
// its supertype requires. We check the narrow, decidable version: if
// a supertype declares Key on an owns capability, the subtype's
// redeclared capability must carry Key too. Unique and Abstract are
// not checked here.
func (m *Manager) checkAnnotationInheritance() []*cgerrors.Error {
	var errs []*cgerrors.Error
	for owner, byAttr := range m.catalog.owns {
		for _, sup := range m.catalog.Supertypes(owner) {
			supOwns, ok := m.catalog.owns[sup]
			if !ok {
				continue
			}
			for attr, supO := range supOwns {
				if !hasAnnotation(supO.Annotations, AnnotationKey) {
					continue
				}
				subO, ok := byAttr[attr]
				if !ok {
					continue // pure inheritance, nothing redeclared: fine
				}
				if !hasAnnotation(subO.Annotations, AnnotationKey) {
					errs = append(errs, cgerrors.New(cgerrors.KindAnnotationNotSupported,
						"subtype redeclaration drops inherited @key").
						WithContext("owner", owner, "attribute", attr))
				}
			}
		}
	}
	return errs
}

func hasAnnotation(anns []Annotation, kind AnnotationKind) bool {
	for _, a := range anns {
		if a.Kind == kind {
			return true
		}
	}
	return false
}
