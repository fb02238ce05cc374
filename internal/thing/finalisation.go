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

// finalisation.go implements §4.4's commit-time finalisation pass:
// "for every mutated or touched object, evaluate cardinality /
// distinct / key / regex / range / values constraints and surface
// violations." Distinct (no duplicate role-player pair) is enforced
// structurally by the RolePlayer edge shape (a count keyed by the
// exact triple, never a duplicate row) rather than re-checked here.
package thing

import (
	"bytes"
	"regexp"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/keyspace"
	"github.com/conceptgraph/conceptgraph/internal/storage"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// Finalise re-reads each touched object's current Has edges (as of
// snap, taken after the write batch has been applied — callers run
// this against the post-commit snapshot) and checks every applicable
// Owns/attribute constraint, aggregating every violation rather than
// stopping at the first (§7 CommitFailure).
func (m *Manager) Finalise(snap *storage.ReadSnapshot, touched []ObjectID) *cgerrors.CommitFailure {
	var errs []*cgerrors.Error
	for _, obj := range touched {
		kind := m.cache.Catalog().Kind(obj.Type)
		if kind != typesystem.KindEntity && kind != typesystem.KindRelation {
			continue
		}
		objErrs, err := m.finaliseObject(snap, obj)
		if err != nil {
			errs = append(errs, cgerrors.Wrap(err, cgerrors.KindConceptRead, "finalisation read failed").WithContext("object_type", obj.Type))
			continue
		}
		errs = append(errs, objErrs...)
	}
	return cgerrors.NewCommitFailure(errs)
}

func (m *Manager) finaliseObject(snap *storage.ReadSnapshot, obj ObjectID) ([]*cgerrors.Error, error) {
	hasAttrs, err := m.HasAttributes(snap, obj)
	if err != nil {
		return nil, err
	}

	byType := make(map[TypeID][]AttributeID)
	for _, a := range hasAttrs {
		byType[a.Type] = append(byType[a.Type], a)
	}

	var errs []*cgerrors.Error
	for attrType, owns := range m.cache.Owns(obj.Type) {
		count := uint64(len(byType[attrType]))
		if violated := checkCardinality(owns.Annotations)(count); violated != nil {
			errs = append(errs, violated.WithContext("owner", obj, "attribute_type", attrType))
		}
		for _, a := range byType[attrType] {
			raw, found, err := snap.Get(keyspace.DataAttributes, attributeKey(a))
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			if violated := checkValueConstraints(m.cache.Catalog(), attrType, raw); violated != nil {
				errs = append(errs, violated.WithContext("owner", obj, "attribute_type", attrType))
			}
		}
	}
	return errs, nil
}

// checkCardinality returns a closure that, given the observed count,
// reports a cardinality violation or nil — built once per Owns
// capability so the Min/Max resolution (explicit @cardinality, or the
// implicit 1..1 @key shorthand) happens a single time regardless of
// how many attribute instances are being checked against it.
func checkCardinality(anns []typesystem.Annotation) func(count uint64) *cgerrors.Error {
	min, max, hasMax, hasAny := uint64(0), uint64(0), false, false
	for _, a := range anns {
		switch a.Kind {
		case typesystem.AnnotationCardinality:
			min, max, hasMax, hasAny = a.Min, a.Max, a.HasMax, true
		case typesystem.AnnotationKey:
			min, max, hasMax, hasAny = 1, 1, true, true
		}
	}
	return func(count uint64) *cgerrors.Error {
		if !hasAny {
			return nil
		}
		if count < min {
			return cgerrors.New(cgerrors.KindCapabilityNotNarrowed, "cardinality lower bound violated")
		}
		if hasMax && count > max {
			return cgerrors.New(cgerrors.KindCapabilityNotNarrowed, "cardinality upper bound violated")
		}
		return nil
	}
}

// checkValueConstraints applies regex/range/values against a single
// attribute instance's canonical value, collecting the annotations
// declared anywhere in attrType's ancestor chain (root-most first, so
// a subtype's own redeclaration is checked instead of being shadowed).
func checkValueConstraints(c *typesystem.Catalog, attrType TypeID, canonical []byte) *cgerrors.Error {
	chain := append([]TypeID{attrType}, c.Supertypes(attrType)...)
	var anns []typesystem.Annotation
	for i := len(chain) - 1; i >= 0; i-- {
		anns = append(anns, c.AttributeAnnotations(chain[i])...)
	}

	for _, a := range anns {
		switch a.Kind {
		case typesystem.AnnotationRegex:
			re, err := regexp.Compile(a.Pattern)
			if err != nil {
				continue
			}
			if !re.Match(canonical) {
				return cgerrors.New(cgerrors.KindUnsatisfiablePattern, "value does not match @regex pattern")
			}
		case typesystem.AnnotationRange:
			if a.RangeMin != nil && bytes.Compare(canonical, a.RangeMin) < 0 {
				return cgerrors.New(cgerrors.KindUnsatisfiablePattern, "value below @range lower bound")
			}
			if a.RangeMax != nil && bytes.Compare(canonical, a.RangeMax) > 0 {
				return cgerrors.New(cgerrors.KindUnsatisfiablePattern, "value above @range upper bound")
			}
		case typesystem.AnnotationValues:
			ok := false
			for _, allowed := range a.AllowedValues {
				if bytes.Equal(allowed, canonical) {
					ok = true
					break
				}
			}
			if !ok {
				return cgerrors.New(cgerrors.KindUnsatisfiablePattern, "value not among @values allowed set")
			}
		}
	}
	return nil
}
