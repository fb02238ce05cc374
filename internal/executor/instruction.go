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

package executor

import (
	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/planner"
	"github.com/conceptgraph/conceptgraph/internal/thing"
)

// binding is one base-instruction result: the value of the
// instruction's sort variable, plus whatever other variables the same
// instruction bound alongside it (e.g. a Has instruction's attribute
// side, once the owner is the sort variable).
type binding struct {
	sort  VariableValue
	extra map[pattern.Variable]VariableValue
}

// candidateTypes returns the inferred candidate type set for v, or nil
// if the graph has no entry — e.g. ctx carries no inference at all.
func candidateTypes(env *Environment, v pattern.Variable) []thing.TypeID {
	if env.Inferred == nil {
		return nil
	}
	set, ok := env.Inferred.Vertices[v]
	if !ok {
		return nil
	}
	out := make([]thing.TypeID, 0, set.Len())
	for _, t := range set.Slice() {
		out = append(out, thing.TypeID(t))
	}
	return out
}

// runInstruction evaluates one planner.Instruction against row and
// returns the resulting bindings — one per matching instance — for the
// IntersectionStep that owns it to group by sort key.
func runInstruction(env *Environment, inst planner.Instruction, row Row) ([]binding, error) {
	if env.interrupted() {
		return nil, cgerrors.New(cgerrors.KindInterrupted, "execution interrupted")
	}
	if inst.Constraint == nil {
		return runThingScan(env, inst, row)
	}
	switch c := inst.Constraint.(type) {
	case pattern.Has:
		return runHas(env, inst.Mode, c, row)
	case pattern.Links:
		return runLinks(env, inst.Mode, c, row)
	default:
		return nil, cgerrors.New(cgerrors.KindQueryTypeInference, "unsupported base instruction constraint")
	}
}

// runThingScan handles the thingVertex fallback: a full scan over one
// variable's inferred candidate types, with no counterpart variable.
func runThingScan(env *Environment, inst planner.Instruction, row Row) ([]binding, error) {
	v := inst.ScanVar
	category := pattern.CategoryThing
	if env.Inferred != nil {
		category = env.Inferred.Categories[v]
	}
	types := candidateTypes(env, v)
	var out []binding
	for _, t := range types {
		switch category {
		case pattern.CategoryAttribute:
			attrs, err := env.Things.AttributesOfType(env.Snapshot, t)
			if err != nil {
				return nil, err
			}
			for _, a := range attrs {
				out = append(out, binding{sort: AttributeValueOf(a)})
			}
		default:
			objs, err := env.Things.ObjectsOfType(env.Snapshot, t)
			if err != nil {
				return nil, err
			}
			for _, o := range objs {
				out = append(out, binding{sort: ThingValue(o)})
			}
		}
	}
	return out, nil
}

// runHas handles a pattern.Has instruction in every iteration mode
// (§4.1's DataHasEdges is owner-keyed, so attribute-bound scans always
// degrade through the owner-type prefix — see HasEdgesForOwnerType).
func runHas(env *Environment, mode planner.IterationMode, c pattern.Has, row Row) ([]binding, error) {
	switch mode {
	case planner.BoundFromBoundTo:
		owner := row.Get(c.Owner).Thing
		attr := row.Get(c.Attribute).Attribute
		attrs, err := env.Things.HasAttributes(env.Snapshot, owner)
		if err != nil {
			return nil, err
		}
		for _, a := range attrs {
			if a == attr {
				return []binding{{sort: ThingValue(owner)}}, nil
			}
		}
		return nil, nil

	case planner.BoundFrom:
		owner := row.Get(c.Owner).Thing
		attrs, err := env.Things.HasAttributes(env.Snapshot, owner)
		if err != nil {
			return nil, err
		}
		out := make([]binding, 0, len(attrs))
		for _, a := range attrs {
			out = append(out, binding{sort: AttributeValueOf(a)})
		}
		return out, nil

	case planner.UnboundInverted:
		boundAttr := row.Get(c.Attribute).Attribute
		var out []binding
		for _, t := range candidateTypes(env, c.Owner) {
			edges, err := env.Things.HasEdgesForOwnerType(env.Snapshot, t)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				if e.Attr != boundAttr {
					continue
				}
				out = append(out, binding{sort: ThingValue(e.Owner)})
			}
		}
		return out, nil

	default: // Unbound
		var out []binding
		for _, t := range candidateTypes(env, c.Owner) {
			edges, err := env.Things.HasEdgesForOwnerType(env.Snapshot, t)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				out = append(out, binding{
					sort:  ThingValue(e.Owner),
					extra: map[pattern.Variable]VariableValue{c.Attribute: AttributeValueOf(e.Attr)},
				})
			}
		}
		return out, nil
	}
}

// runLinks handles a pattern.Links instruction in every iteration mode.
func runLinks(env *Environment, mode planner.IterationMode, c pattern.Links, row Row) ([]binding, error) {
	roleMatches := func(role thing.TypeID) bool {
		if c.Role == 0 {
			return true
		}
		roleVal := row.Get(c.Role)
		return roleVal.Kind == TypeKind && roleVal.Type == role
	}

	switch mode {
	case planner.BoundFromBoundTo:
		relation := row.Get(c.Relation).Thing
		player := row.Get(c.Player).Thing
		edges, err := env.Things.RolePlayersOfRelation(env.Snapshot, relation)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if e.Player == player && roleMatches(e.Role) {
				return []binding{{sort: ThingValue(relation)}}, nil
			}
		}
		return nil, nil

	case planner.BoundFrom:
		relation := row.Get(c.Relation).Thing
		edges, err := env.Things.RolePlayersOfRelation(env.Snapshot, relation)
		if err != nil {
			return nil, err
		}
		out := make([]binding, 0, len(edges))
		for _, e := range edges {
			if !roleMatches(e.Role) {
				continue
			}
			b := binding{sort: ThingValue(e.Player)}
			if c.Role != 0 {
				b.extra = map[pattern.Variable]VariableValue{c.Role: TypeValue(e.Role)}
			}
			out = append(out, b)
		}
		return out, nil

	case planner.UnboundInverted:
		player := row.Get(c.Player).Thing
		var out []binding
		for _, t := range candidateTypes(env, c.Relation) {
			edges, err := env.Things.RolePlayersForRelationType(env.Snapshot, t)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				if e.Player != player || !roleMatches(e.Role) {
					continue
				}
				b := binding{sort: ThingValue(e.Relation)}
				if c.Role != 0 {
					b.extra = map[pattern.Variable]VariableValue{c.Role: TypeValue(e.Role)}
				}
				out = append(out, b)
			}
		}
		return out, nil

	default: // Unbound
		var out []binding
		for _, t := range candidateTypes(env, c.Relation) {
			edges, err := env.Things.RolePlayersForRelationType(env.Snapshot, t)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				if !roleMatches(e.Role) {
					continue
				}
				extra := map[pattern.Variable]VariableValue{c.Player: ThingValue(e.Player)}
				if c.Role != 0 {
					extra[c.Role] = TypeValue(e.Role)
				}
				out = append(out, binding{sort: ThingValue(e.Relation), extra: extra})
			}
		}
		return out, nil
	}
}
