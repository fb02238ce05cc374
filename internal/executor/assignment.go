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
	"github.com/conceptgraph/conceptgraph/internal/thing"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// numericAsDouble widens a Long or Double value to float64 for mixed
// arithmetic.
func numericAsDouble(v thing.Value) float64 {
	if v.Type == typesystem.ValueTypeDouble {
		return v.Double
	}
	return float64(v.Long)
}

// runAssignmentStep evaluates binding.Expr against row and binds the
// result to binding.Var. Per §4.7: "Assignment ... drops row on
// expression error per §7" — an evaluation error (division by zero)
// drops just this row rather than aborting the surrounding step, so
// the error is swallowed here and reported as "no row produced", not
// returned to the caller.
func runAssignmentStep(binding pattern.ExpressionBinding, row Row) (Row, bool) {
	val, err := evalExpression(binding.Expr, row)
	if err != nil {
		return Row{}, false
	}
	return row.With(binding.Var, ValueOf(val)), true
}

func evalExpression(expr pattern.Expression, row Row) (thing.Value, error) {
	switch e := expr.(type) {
	case pattern.ConstantExpr:
		if e.IsDouble {
			return thing.Double(e.Double), nil
		}
		return thing.Long(e.Long), nil

	case pattern.VariableExpr:
		v := row.Get(e.Var)
		switch v.Kind {
		case ValueKind:
			return v.Value, nil
		case AttributeKind:
			return thing.Value{}, cgerrors.New(cgerrors.KindExpressionCompilation,
				"attribute variable must be materialised to a value before use in an expression")
		default:
			return thing.Value{}, cgerrors.New(cgerrors.KindExpressionCompilation,
				"variable has no numeric value bound")
		}

	case pattern.BinaryExpr:
		lhs, err := evalExpression(e.LHS, row)
		if err != nil {
			return thing.Value{}, err
		}
		rhs, err := evalExpression(e.RHS, row)
		if err != nil {
			return thing.Value{}, err
		}
		return evalBinaryOp(e.Op, lhs, rhs)

	default:
		return thing.Value{}, cgerrors.New(cgerrors.KindExpressionCompilation, "unsupported expression node")
	}
}

// evalBinaryOp applies op to lhs/rhs, promoting to Double if either
// side is a Double (the teacher's usual "widen, never narrow" numeric
// rule) and erroring on integer division/modulo by zero, which
// runAssignmentStep turns into a dropped row rather than a query abort.
func evalBinaryOp(op pattern.BinaryOp, lhs, rhs thing.Value) (thing.Value, error) {
	asDouble := lhs.Type == typesystem.ValueTypeDouble || rhs.Type == typesystem.ValueTypeDouble
	if asDouble {
		l := numericAsDouble(lhs)
		r := numericAsDouble(rhs)
		switch op {
		case pattern.OpAdd:
			return thing.Double(l + r), nil
		case pattern.OpSub:
			return thing.Double(l - r), nil
		case pattern.OpMul:
			return thing.Double(l * r), nil
		case pattern.OpDiv:
			if r == 0 {
				return thing.Value{}, cgerrors.New(cgerrors.KindExpressionCompilation, "division by zero")
			}
			return thing.Double(l / r), nil
		case pattern.OpMod:
			return thing.Value{}, cgerrors.New(cgerrors.KindExpressionCompilation, "modulo is undefined for double operands")
		}
	}

	l, r := lhs.Long, rhs.Long
	switch op {
	case pattern.OpAdd:
		return thing.Long(l + r), nil
	case pattern.OpSub:
		return thing.Long(l - r), nil
	case pattern.OpMul:
		return thing.Long(l * r), nil
	case pattern.OpDiv:
		if r == 0 {
			return thing.Value{}, cgerrors.New(cgerrors.KindExpressionCompilation, "division by zero")
		}
		return thing.Long(l / r), nil
	case pattern.OpMod:
		if r == 0 {
			return thing.Value{}, cgerrors.New(cgerrors.KindExpressionCompilation, "modulo by zero")
		}
		return thing.Long(l % r), nil
	default:
		return thing.Value{}, cgerrors.New(cgerrors.KindExpressionCompilation, "unsupported binary operator")
	}
}
