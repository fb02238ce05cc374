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

package inference

import (
	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// Edge is one precomputed bidirectional mapping between two variables'
// candidate type sets, derived once from the schema at graph-build
// time (§4.5: "each edge carries a precomputed bidirectional mapping
// left_type -> {right_types} and right_type -> {left_types}").
type Edge struct {
	Left, Right Variable
	Constraint  pattern.Constraint
	LeftToRight map[TypeID]*TypeSet
	RightToLeft map[TypeID]*TypeSet
}

// Variable aliases pattern.Variable.
type Variable = pattern.Variable

// propagate intersects each endpoint's current set with the union of
// types reachable across e from the other endpoint's current set,
// reporting whether either side changed.
func (e *Edge) propagate(vertices map[Variable]*TypeSet) bool {
	left, right := vertices[e.Left], vertices[e.Right]
	changed := false

	reachable := EmptyTypeSet()
	for _, id := range right.Slice() {
		if s, ok := e.RightToLeft[id]; ok {
			reachable = reachable.Union(s)
		}
	}
	if left.IntersectInPlace(reachable) {
		changed = true
	}

	reachable = EmptyTypeSet()
	for _, id := range left.Slice() {
		if s, ok := e.LeftToRight[id]; ok {
			reachable = reachable.Union(s)
		}
	}
	if right.IntersectInPlace(reachable) {
		changed = true
	}
	return changed
}

// Graph is a type-inference graph for one conjunction: one vertex per
// variable plus the edges for every constraint that co-constrains two
// variables' schema types, and the nested sub-patterns' own graphs.
type Graph struct {
	Conjunction pattern.Conjunction
	Categories  map[Variable]pattern.Category
	Vertices    map[Variable]*TypeSet
	Edges       []*Edge

	NestedDisjunctions []*DisjunctionGraph
	NestedNegations    []*Graph
	NestedOptionals    []*Graph
}

// DisjunctionGraph holds one Graph per branch of a nested disjunction,
// plus the variables shared with the enclosing conjunction (§4.5 step
// 3: "shared variables inheriting the outer current sets; the outer
// vertex's new set is the union of branch results").
type DisjunctionGraph struct {
	Branches        []*Graph
	SharedVariables []Variable
}

// Build converts conj into a type-inference graph, seeding every
// variable with every type of its category (§4.5 step 1) and adding
// one edge per schema-type-co-constraining constraint. categories must
// have an entry for every variable conj.Variables() returns.
func Build(catalog *typesystem.Catalog, categories map[Variable]pattern.Category, conj pattern.Conjunction) (*Graph, error) {
	return buildWithOuter(catalog, categories, conj, nil)
}

// BuildSeeded is Build, but every variable already present in outer
// starts from outer's type set (cloned) instead of the full seed set
// for its category — the mechanism a pipeline's later Match stages use
// to carry a tightened running `var -> type set` map forward (§4.8
// step 1) instead of re-deriving each variable from scratch.
func BuildSeeded(catalog *typesystem.Catalog, categories map[Variable]pattern.Category, conj pattern.Conjunction, outer map[Variable]*TypeSet) (*Graph, error) {
	return buildWithOuter(catalog, categories, conj, outer)
}

func buildWithOuter(catalog *typesystem.Catalog, categories map[Variable]pattern.Category, conj pattern.Conjunction, outer map[Variable]*TypeSet) (*Graph, error) {
	g := &Graph{Conjunction: conj, Categories: categories, Vertices: make(map[Variable]*TypeSet)}
	for _, v := range conj.Variables() {
		if outer != nil {
			if s, ok := outer[v]; ok {
				g.Vertices[v] = s.Clone()
				continue
			}
		}
		g.Vertices[v] = seedVertex(catalog, categories[v])
	}

	for _, c := range conj.Constraints {
		switch t := c.(type) {
		case pattern.Label:
			id, ok := catalog.ResolveLabel(t.Kind, t.Literal)
			if !ok {
				return nil, cgerrors.New(cgerrors.KindLabelNotResolved, "label not resolved").WithContext("label", t.Literal)
			}
			g.Vertices[t.Var].IntersectInPlace(NewTypeSet(id))
		case pattern.Isa:
			g.Edges = append(g.Edges, buildIsaEdge(catalog, t))
		case pattern.Sub:
			g.Edges = append(g.Edges, buildSubEdge(catalog, t))
		case pattern.Has:
			g.Edges = append(g.Edges, buildOwnsEdge(catalog, t.Owner, t.Attribute, t))
		case pattern.Owns:
			g.Edges = append(g.Edges, buildOwnsEdge(catalog, t.Owner, t.Attr, t))
		case pattern.Relates:
			g.Edges = append(g.Edges, buildRelatesEdge(catalog, t.Relation, t.Role, t))
		case pattern.Plays:
			g.Edges = append(g.Edges, buildPlaysEdge(catalog, t.Player, t.Role, t))
		case pattern.Links:
			g.Edges = append(g.Edges, buildRelatesEdge(catalog, t.Relation, t.Role, t))
			g.Edges = append(g.Edges, buildPlaysEdge(catalog, t.Player, t.Role, t))
		case pattern.Comparison, pattern.Is, pattern.ExpressionBinding, pattern.FunctionCall:
			// Function calls, comparators, and value assignments don't
			// co-constrain schema types (§4.5): no edge.
		}
	}

	for i := range conj.Disjunctions {
		dg, err := buildDisjunction(catalog, categories, conj.Disjunctions[i], g.Vertices)
		if err != nil {
			return nil, err
		}
		g.NestedDisjunctions = append(g.NestedDisjunctions, dg)
	}
	for i := range conj.Negations {
		ng, err := buildWithOuter(catalog, categories, conj.Negations[i].Inner, g.Vertices)
		if err != nil {
			return nil, err
		}
		g.NestedNegations = append(g.NestedNegations, ng)
	}
	for i := range conj.Optionals {
		og, err := buildWithOuter(catalog, categories, conj.Optionals[i].Inner, g.Vertices)
		if err != nil {
			return nil, err
		}
		g.NestedOptionals = append(g.NestedOptionals, og)
	}
	return g, nil
}

func buildDisjunction(catalog *typesystem.Catalog, categories map[Variable]pattern.Category, d pattern.Disjunction, outer map[Variable]*TypeSet) (*DisjunctionGraph, error) {
	outerSet := make(map[Variable]bool, len(outer))
	for v := range outer {
		outerSet[v] = true
	}
	dg := &DisjunctionGraph{}
	for _, branch := range d.Branches {
		dg.SharedVariables = branch.SharedVariables(outerSet)
		bg, err := buildWithOuter(catalog, categories, branch, outer)
		if err != nil {
			return nil, err
		}
		dg.Branches = append(dg.Branches, bg)
	}
	return dg, nil
}

// seedVertex returns every schema type of category — the initial
// candidate set before any constraint narrows it (§4.5 step 1).
func seedVertex(catalog *typesystem.Catalog, category pattern.Category) *TypeSet {
	switch category {
	case pattern.CategoryType:
		return NewTypeSet(append(append(append(
			catalog.AllIDsOfKind(typesystem.KindEntity),
			catalog.AllIDsOfKind(typesystem.KindRelation)...),
			catalog.AllIDsOfKind(typesystem.KindAttribute)...),
			catalog.AllIDsOfKind(typesystem.KindRole)...)...)
	case pattern.CategoryThing, pattern.CategoryThingList:
		return NewTypeSet(append(
			catalog.AllIDsOfKind(typesystem.KindEntity),
			catalog.AllIDsOfKind(typesystem.KindRelation)...)...)
	case pattern.CategoryAttribute:
		return NewTypeSet(catalog.AllIDsOfKind(typesystem.KindAttribute)...)
	default: // CategoryValue, CategoryValueList: no schema types.
		return EmptyTypeSet()
	}
}

func buildIsaEdge(catalog *typesystem.Catalog, c pattern.Isa) *Edge {
	e := &Edge{Left: c.Type, Right: c.Thing, Constraint: c, LeftToRight: map[TypeID]*TypeSet{}, RightToLeft: map[TypeID]*TypeSet{}}
	for _, id := range allTypeIDs(catalog) {
		if c.Kind == pattern.IsaExact {
			e.LeftToRight[id] = NewTypeSet(id)
		} else {
			e.LeftToRight[id] = NewTypeSet(append([]TypeID{id}, catalog.Subtypes(id)...)...)
		}
	}
	for _, id := range allTypeIDs(catalog) {
		if c.Kind == pattern.IsaExact {
			e.RightToLeft[id] = NewTypeSet(id)
		} else {
			e.RightToLeft[id] = NewTypeSet(append([]TypeID{id}, catalog.Supertypes(id)...)...)
		}
	}
	return e
}

func buildSubEdge(catalog *typesystem.Catalog, c pattern.Sub) *Edge {
	e := &Edge{Left: c.Sub, Right: c.Super, Constraint: c, LeftToRight: map[TypeID]*TypeSet{}, RightToLeft: map[TypeID]*TypeSet{}}
	for _, id := range allTypeIDs(catalog) {
		e.LeftToRight[id] = NewTypeSet(append([]TypeID{id}, catalog.Supertypes(id)...)...)
		e.RightToLeft[id] = NewTypeSet(append([]TypeID{id}, catalog.Subtypes(id)...)...)
	}
	return e
}

func buildOwnsEdge(catalog *typesystem.Catalog, owner, attr Variable, c pattern.Constraint) *Edge {
	e := &Edge{Left: owner, Right: attr, Constraint: c, LeftToRight: map[TypeID]*TypeSet{}, RightToLeft: map[TypeID]*TypeSet{}}
	for _, id := range catalog.AllIDsOfKind(typesystem.KindEntity) {
		e.LeftToRight[id] = NewTypeSet(keysOfOwns(catalog.OwnsClosure(id))...)
	}
	for _, id := range catalog.AllIDsOfKind(typesystem.KindRelation) {
		e.LeftToRight[id] = NewTypeSet(keysOfOwns(catalog.OwnsClosure(id))...)
	}
	for _, id := range catalog.AllIDsOfKind(typesystem.KindAttribute) {
		e.RightToLeft[id] = NewTypeSet(ownerTypesOf(catalog, id)...)
	}
	return e
}

func buildRelatesEdge(catalog *typesystem.Catalog, relation, role Variable, c pattern.Constraint) *Edge {
	e := &Edge{Left: relation, Right: role, Constraint: c, LeftToRight: map[TypeID]*TypeSet{}, RightToLeft: map[TypeID]*TypeSet{}}
	for _, id := range catalog.AllIDsOfKind(typesystem.KindRelation) {
		e.LeftToRight[id] = NewTypeSet(keysOfRelates(catalog.RelatesClosure(id))...)
	}
	for _, id := range catalog.AllIDsOfKind(typesystem.KindRole) {
		e.RightToLeft[id] = NewTypeSet(relationTypesOf(catalog, id)...)
	}
	return e
}

func buildPlaysEdge(catalog *typesystem.Catalog, player, role Variable, c pattern.Constraint) *Edge {
	e := &Edge{Left: player, Right: role, Constraint: c, LeftToRight: map[TypeID]*TypeSet{}, RightToLeft: map[TypeID]*TypeSet{}}
	for _, id := range append(catalog.AllIDsOfKind(typesystem.KindEntity), catalog.AllIDsOfKind(typesystem.KindRelation)...) {
		e.LeftToRight[id] = NewTypeSet(keysOfPlays(catalog.PlaysClosure(id))...)
	}
	for _, id := range catalog.AllIDsOfKind(typesystem.KindRole) {
		e.RightToLeft[id] = NewTypeSet(playerTypesOf(catalog, id)...)
	}
	return e
}

func allTypeIDs(catalog *typesystem.Catalog) []TypeID {
	out := catalog.AllIDsOfKind(typesystem.KindEntity)
	out = append(out, catalog.AllIDsOfKind(typesystem.KindRelation)...)
	out = append(out, catalog.AllIDsOfKind(typesystem.KindAttribute)...)
	out = append(out, catalog.AllIDsOfKind(typesystem.KindRole)...)
	return out
}

func keysOfOwns(m map[TypeID]*typesystem.Owns) []TypeID {
	out := make([]TypeID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func keysOfRelates(m map[TypeID]*typesystem.Relates) []TypeID {
	out := make([]TypeID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func keysOfPlays(m map[TypeID]*typesystem.Plays) []TypeID {
	out := make([]TypeID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// ownerTypesOf/relationTypesOf/playerTypesOf mirror TypeCache's
// reverse-index helpers directly against the Catalog (graph building
// happens once per compile, so the closure recomputation TypeCache
// exists to avoid isn't on a hot path here).
func ownerTypesOf(catalog *typesystem.Catalog, attr TypeID) []TypeID {
	var out []TypeID
	for _, owner := range allOwnerCandidates(catalog) {
		if _, ok := catalog.OwnsClosure(owner)[attr]; ok {
			out = append(out, owner)
		}
	}
	return out
}

func relationTypesOf(catalog *typesystem.Catalog, role TypeID) []TypeID {
	var out []TypeID
	for _, rel := range catalog.AllIDsOfKind(typesystem.KindRelation) {
		if _, ok := catalog.RelatesClosure(rel)[role]; ok {
			out = append(out, rel)
		}
	}
	return out
}

func playerTypesOf(catalog *typesystem.Catalog, role TypeID) []TypeID {
	var out []TypeID
	for _, player := range allOwnerCandidates(catalog) {
		if _, ok := catalog.PlaysClosure(player)[role]; ok {
			out = append(out, player)
		}
	}
	return out
}

func allOwnerCandidates(catalog *typesystem.Catalog) []TypeID {
	out := catalog.AllIDsOfKind(typesystem.KindEntity)
	return append(out, catalog.AllIDsOfKind(typesystem.KindRelation)...)
}
