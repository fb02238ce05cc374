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

// write.go compiles and runs Insert/Delete stages (§4.7.1). Unlike a
// Match stage, there is no planner.Plan here: insert/delete is a
// fixed, statically-ordered instruction list built once at compile
// time from the stage's own conjunction, exactly as the teacher's
// insert_planner.rs builds one pass over Isa/Has/RolePlayer constraints
// (comment there: "there's no planning to be done here, just
// execution" — no cost-based ordering applies to a write).
package executor

import (
	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/thing"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// TypeSource is either a variable already bound by the time the insert
// runs, or a type resolved once at compile time from a Label literal.
type TypeSource struct {
	FromInput bool
	Input     pattern.Variable
	Constant  typesystem.TypeID
}

// ValueSource is either a bound variable or a literal constant
// resolved at compile time from an ExpressionBinding.
type ValueSource struct {
	FromInput bool
	Input     pattern.Variable
	Constant  thing.Value
}

// ThingSource is either a variable already bound by the match, or the
// index into the insert instructions this run created — teacher's
// ThingSource::{Input, Inserted}.
type ThingSource struct {
	FromInput bool
	Input     pattern.Variable
	Inserted  int
}

type InsertInstruction interface{ insertNode() }

type insertEntity struct {
	Var  pattern.Variable
	Type TypeSource
}
type insertRelation struct {
	Var  pattern.Variable
	Type TypeSource
}
type insertAttribute struct {
	Var   pattern.Variable
	Type  TypeSource
	Value ValueSource
}
type insertHas struct {
	Owner, Attribute ThingSource
}
type insertRolePlayer struct {
	Relation, Player ThingSource
	Role             TypeSource
}

func (insertEntity) insertNode()     {}
func (insertRelation) insertNode()   {}
func (insertAttribute) insertNode()  {}
func (insertHas) insertNode()        {}
func (insertRolePlayer) insertNode() {}

// InsertPlan is the statically-ordered instruction list an Insert
// stage runs once per match row.
type InsertPlan struct {
	Instructions []InsertInstruction
}

// CompileInsert builds an InsertPlan from an insert clause's
// conjunction: Isa constraints become creation instructions (kind
// resolved from the paired Label literal, since an insert's type must
// be statically known — §4.7.1's "ambiguous types raise
// InsertCompilationError at plan time"), and Has/Links become edge
// instructions over either a freshly created thing or one the match
// already bound.
func CompileInsert(conj pattern.Conjunction, inputVars map[pattern.Variable]bool, catalog *typesystem.Catalog) (*InsertPlan, error) {
	labelTypes := map[pattern.Variable]typesystem.TypeID{}
	for _, c := range conj.Constraints {
		lbl, ok := c.(pattern.Label)
		if !ok {
			continue
		}
		id, found := catalog.ResolveLabel(lbl.Kind, lbl.Literal)
		if !found {
			return nil, cgerrors.New(cgerrors.KindLabelNotResolved, "insert type label not resolved").
				WithContext("label", lbl.Literal)
		}
		labelTypes[lbl.Var] = id
	}

	valueConsts := map[pattern.Variable]thing.Value{}
	for _, c := range conj.Constraints {
		eb, ok := c.(pattern.ExpressionBinding)
		if !ok {
			continue
		}
		constExpr, ok := eb.Expr.(pattern.ConstantExpr)
		if !ok {
			return nil, cgerrors.New(cgerrors.KindInsertCompilation,
				"insert value must be a constant expression").WithContext("variable", uint64(eb.Var))
		}
		if constExpr.IsDouble {
			valueConsts[eb.Var] = thing.Double(constExpr.Double)
		} else {
			valueConsts[eb.Var] = thing.Long(constExpr.Long)
		}
	}

	created := map[pattern.Variable]int{}
	var instructions []InsertInstruction

	for _, c := range conj.Constraints {
		isa, ok := c.(pattern.Isa)
		if !ok {
			continue
		}
		if inputVars[isa.Thing] {
			return nil, cgerrors.New(cgerrors.KindIsaConstraintForBoundVar,
				"insert cannot re-isa a variable the match already bound").
				WithContext("variable", uint64(isa.Thing))
		}
		typeID, ok := labelTypes[isa.Type]
		if !ok {
			return nil, cgerrors.New(cgerrors.KindCouldNotDetermineArgType,
				"insert isa requires a statically resolvable type label").
				WithContext("variable", uint64(isa.Thing))
		}
		ts := TypeSource{Constant: typeID}
		switch catalog.Kind(typeID) {
		case typesystem.KindEntity:
			instructions = append(instructions, insertEntity{Var: isa.Thing, Type: ts})
		case typesystem.KindRelation:
			instructions = append(instructions, insertRelation{Var: isa.Thing, Type: ts})
		case typesystem.KindAttribute:
			val, ok := valueConsts[isa.Thing]
			if !ok {
				return nil, cgerrors.New(cgerrors.KindInsertCompilation,
					"insert attribute requires a bound value").WithContext("variable", uint64(isa.Thing))
			}
			instructions = append(instructions, insertAttribute{Var: isa.Thing, Type: ts, Value: ValueSource{Constant: val}})
		default:
			return nil, cgerrors.New(cgerrors.KindInsertCompilation,
				"cannot insert an instance of a role type")
		}
		created[isa.Thing] = len(instructions) - 1
	}

	thingSource := func(v pattern.Variable) (ThingSource, error) {
		if idx, ok := created[v]; ok {
			return ThingSource{Inserted: idx}, nil
		}
		if inputVars[v] {
			return ThingSource{FromInput: true, Input: v}, nil
		}
		return ThingSource{}, cgerrors.New(cgerrors.KindInsertCompilation,
			"insert references a variable neither created nor bound by the match").
			WithContext("variable", uint64(v))
	}

	for _, c := range conj.Constraints {
		switch has := c.(type) {
		case pattern.Has:
			owner, err := thingSource(has.Owner)
			if err != nil {
				return nil, err
			}
			attr, err := thingSource(has.Attribute)
			if err != nil {
				return nil, err
			}
			instructions = append(instructions, insertHas{Owner: owner, Attribute: attr})

		case pattern.Links:
			relation, err := thingSource(has.Relation)
			if err != nil {
				return nil, err
			}
			player, err := thingSource(has.Player)
			if err != nil {
				return nil, err
			}
			var role TypeSource
			if t, ok := labelTypes[has.Role]; ok {
				role = TypeSource{Constant: t}
			} else if inputVars[has.Role] {
				role = TypeSource{FromInput: true, Input: has.Role}
			} else {
				return nil, cgerrors.New(cgerrors.KindInsertCompilation,
					"insert links requires a statically resolvable role")
			}
			instructions = append(instructions, insertRolePlayer{Relation: relation, Player: player, Role: role})
		}
	}

	return &InsertPlan{Instructions: instructions}, nil
}

// RunInsert executes plan against row, creating instances and edges
// and returning row extended with every newly created variable's
// binding.
func RunInsert(env *Environment, plan *InsertPlan, row Row) (Row, error) {
	out := row.Clone()
	inserted := make([]VariableValue, len(plan.Instructions))

	resolveType := func(ts TypeSource) typesystem.TypeID {
		if ts.FromInput {
			return out.Get(ts.Input).Type
		}
		return ts.Constant
	}
	resolveThing := func(ts ThingSource) VariableValue {
		if ts.FromInput {
			return out.Get(ts.Input)
		}
		return inserted[ts.Inserted]
	}

	for i, raw := range plan.Instructions {
		switch inst := raw.(type) {
		case insertEntity:
			id, err := env.Things.CreateEntity(env.Snapshot, env.Batch, resolveType(inst.Type))
			if err != nil {
				return Row{}, err
			}
			inserted[i] = ThingValue(id)
			out = out.With(inst.Var, inserted[i])

		case insertRelation:
			id, err := env.Things.CreateRelation(env.Snapshot, env.Batch, resolveType(inst.Type))
			if err != nil {
				return Row{}, err
			}
			inserted[i] = ThingValue(id)
			out = out.With(inst.Var, inserted[i])

		case insertAttribute:
			val := inst.Value.Constant
			if inst.Value.FromInput {
				val = out.Get(inst.Value.Input).Value
			}
			id, err := env.Things.CreateAttribute(env.Snapshot, env.Batch, resolveType(inst.Type), val)
			if err != nil {
				return Row{}, err
			}
			inserted[i] = AttributeValueOf(id)
			out = out.With(inst.Var, inserted[i])

		case insertHas:
			owner := resolveThing(inst.Owner).Thing
			attr := resolveThing(inst.Attribute).Attribute
			if err := env.Things.SetHas(env.Snapshot, env.Batch, owner, attr); err != nil {
				return Row{}, err
			}

		case insertRolePlayer:
			relation := resolveThing(inst.Relation).Thing
			player := resolveThing(inst.Player).Thing
			role := resolveType(inst.Role)
			if err := env.Things.AddPlayer(env.Snapshot, env.Batch, relation, role, player); err != nil {
				return Row{}, err
			}
		}
	}
	return out, nil
}

// --- Delete ------------------------------------------------------------

type DeleteInstruction interface{ deleteNode() }

type deleteHas struct{ Owner, Attribute pattern.Variable }
type deleteRolePlayer struct {
	Relation, Player pattern.Variable
	Role             TypeSource
}
type deleteThing struct {
	Var  pattern.Variable
	Kind typesystem.Kind
}

func (deleteHas) deleteNode()        {}
func (deleteRolePlayer) deleteNode() {}
func (deleteThing) deleteNode()      {}

// DeletePlan is the statically-ordered instruction list a Delete stage
// runs once per match row.
type DeletePlan struct {
	Instructions []DeleteInstruction
}

// CompileDelete builds a DeletePlan: Has/Links name edges to remove,
// Isa names a whole instance to remove — rejected at compile time if
// its resolved kind is Role (§4.7.1: "cannot delete a role type via an
// isa delete"). matchLabelTypes carries any Label resolution the
// preceding Match stage already did for a delete-clause type variable
// (e.g. `$x isa person` deleting the type the match bound $x to,
// rather than the delete clause re-declaring its own label literal).
func CompileDelete(conj pattern.Conjunction, inputVars map[pattern.Variable]bool, catalog *typesystem.Catalog, matchLabelTypes map[pattern.Variable]typesystem.TypeID) (*DeletePlan, error) {
	labelTypes := map[pattern.Variable]typesystem.TypeID{}
	for v, t := range matchLabelTypes {
		labelTypes[v] = t
	}
	for _, c := range conj.Constraints {
		if lbl, ok := c.(pattern.Label); ok {
			if id, found := catalog.ResolveLabel(lbl.Kind, lbl.Literal); found {
				labelTypes[lbl.Var] = id
			}
		}
	}

	requireBound := func(v pattern.Variable) error {
		if !inputVars[v] {
			return cgerrors.New(cgerrors.KindDeleteCompilation,
				"delete references a variable the match did not bind").WithContext("variable", uint64(v))
		}
		return nil
	}

	var instructions []DeleteInstruction
	for _, c := range conj.Constraints {
		switch d := c.(type) {
		case pattern.Has:
			if err := requireBound(d.Owner); err != nil {
				return nil, err
			}
			if err := requireBound(d.Attribute); err != nil {
				return nil, err
			}
			instructions = append(instructions, deleteHas{Owner: d.Owner, Attribute: d.Attribute})

		case pattern.Links:
			if err := requireBound(d.Relation); err != nil {
				return nil, err
			}
			if err := requireBound(d.Player); err != nil {
				return nil, err
			}
			var role TypeSource
			if t, ok := labelTypes[d.Role]; ok {
				role = TypeSource{Constant: t}
			} else if inputVars[d.Role] {
				role = TypeSource{FromInput: true, Input: d.Role}
			} else {
				return nil, cgerrors.New(cgerrors.KindDeleteCompilation, "delete links requires a resolvable role")
			}
			instructions = append(instructions, deleteRolePlayer{Relation: d.Relation, Player: d.Player, Role: role})

		case pattern.Isa:
			if err := requireBound(d.Thing); err != nil {
				return nil, err
			}
			typeID, ok := labelTypes[d.Type]
			if !ok {
				return nil, cgerrors.New(cgerrors.KindDeleteCompilation,
					"delete isa requires a statically resolvable type label")
			}
			kind := catalog.Kind(typeID)
			if kind == typesystem.KindRole {
				return nil, cgerrors.New(cgerrors.KindDeleteCompilation, "cannot delete a role type via an isa delete")
			}
			instructions = append(instructions, deleteThing{Var: d.Thing, Kind: kind})
		}
	}
	return &DeletePlan{Instructions: instructions}, nil
}

// RunDelete executes plan against row.
func RunDelete(env *Environment, plan *DeletePlan, row Row) error {
	resolveType := func(ts TypeSource) typesystem.TypeID {
		if ts.FromInput {
			return row.Get(ts.Input).Type
		}
		return ts.Constant
	}

	for _, raw := range plan.Instructions {
		switch inst := raw.(type) {
		case deleteHas:
			owner := row.Get(inst.Owner).Thing
			attr := row.Get(inst.Attribute).Attribute
			if err := env.Things.UnsetHas(env.Snapshot, env.Batch, owner, attr); err != nil {
				return err
			}

		case deleteRolePlayer:
			relation := row.Get(inst.Relation).Thing
			player := row.Get(inst.Player).Thing
			role := resolveType(inst.Role)
			if err := env.Things.RemovePlayerMany(env.Snapshot, env.Batch, relation, role, player); err != nil {
				return err
			}

		case deleteThing:
			if inst.Kind == typesystem.KindAttribute {
				attr := row.Get(inst.Var).Attribute
				if err := env.Things.DeleteAttribute(env.Snapshot, env.Batch, attr); err != nil {
					return err
				}
				continue
			}
			obj := row.Get(inst.Var).Thing
			if err := env.Things.Delete(env.Snapshot, env.Batch, obj); err != nil {
				return err
			}
		}
	}
	return nil
}
