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

// runCheckStep evaluates a fully-bound constraint against row and
// reports whether row survives. Comparison and Is never produce new
// bindings (§4.7); a fully-bound Has/Links is handled by runHas/
// runLinks's BoundFromBoundTo case via the normal instruction path.
func runCheckStep(env *Environment, step planner.CheckStep, row Row) (bool, error) {
	switch c := step.Instruction.Constraint.(type) {
	case pattern.Comparison:
		return evalComparison(env, c, row)
	case pattern.Is:
		return valuesEqual(row.Get(c.LHS), row.Get(c.RHS)), nil
	case pattern.Has, pattern.Links:
		bindings, err := runInstruction(env, step.Instruction, row)
		if err != nil {
			return false, err
		}
		return len(bindings) > 0, nil
	default:
		return false, cgerrors.New(cgerrors.KindQueryTypeInference, "unsupported check constraint")
	}
}

func valuesEqual(a, b VariableValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case TypeKind:
		return a.Type == b.Type
	case ThingKind:
		return a.Thing == b.Thing
	case AttributeKind:
		return a.Attribute == b.Attribute
	case ValueKind:
		return thing.CompareValues(a.Value, b.Value) == 0
	default:
		return false
	}
}

// evalComparison resolves both sides to a comparable Value (an
// Attribute-kind side is dereferenced to its stored value) and applies
// Op (§4.7.1).
func evalComparison(env *Environment, c pattern.Comparison, row Row) (bool, error) {
	lhs, err := comparable(env, row.Get(c.LHS))
	if err != nil {
		return false, err
	}
	rhs, err := comparable(env, row.Get(c.RHS))
	if err != nil {
		return false, err
	}

	switch c.Op {
	case pattern.CompareEQ:
		return thing.CompareValues(lhs, rhs) == 0, nil
	case pattern.CompareNEQ:
		return thing.CompareValues(lhs, rhs) != 0, nil
	case pattern.CompareLT:
		return thing.CompareValues(lhs, rhs) < 0, nil
	case pattern.CompareLTE:
		return thing.CompareValues(lhs, rhs) <= 0, nil
	case pattern.CompareGT:
		return thing.CompareValues(lhs, rhs) > 0, nil
	case pattern.CompareGTE:
		return thing.CompareValues(lhs, rhs) >= 0, nil
	case pattern.CompareContains:
		return thing.ValueContains(lhs, rhs), nil
	case pattern.CompareLike:
		return thing.ValueLike(lhs, rhs)
	default:
		return false, cgerrors.New(cgerrors.KindQueryTypeInference, "unsupported comparison operator")
	}
}

// comparable resolves v to the thing.Value a Comparison actually
// compares: a Value-kind slot is used as is, and an Attribute-kind slot
// (which carries an id, as runHas binds it) is dereferenced through
// env.Things.AttributeValue against env.Snapshot. Any other kind is
// rejected.
func comparable(env *Environment, v VariableValue) (thing.Value, error) {
	if v.Kind == AttributeKind && env != nil && env.Things != nil {
		return env.Things.AttributeValue(env.Snapshot, v.Attribute)
	}
	if v.Kind != ValueKind {
		return thing.Value{}, cgerrors.New(cgerrors.KindQueryTypeInference,
			"comparison operand is not a resolved value")
	}
	return v.Value, nil
}
