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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/planner"
	"github.com/conceptgraph/conceptgraph/internal/thing"
)

func TestRunFunctionCallStepBindsResults(t *testing.T) {
	env := &Environment{Functions: FunctionRegistry{
		"double": func(args []thing.Value) ([]thing.Value, error) {
			return []thing.Value{thing.Long(args[0].Long * 2)}, nil
		},
	}}
	row := NewRow(int(varAgeType)+1).With(varAge, ValueOf(thing.Long(21)))
	call := pattern.FunctionCall{Function: "double", Args: []pattern.Variable{varAge}, Assigned: []pattern.Variable{varPersonType}}

	out, err := runFunctionCallStep(env, call, row)
	require.NoError(t, err)
	require.Equal(t, int64(42), out.Get(varPersonType).Value.Long)
}

func TestRunFunctionCallStepErrorsOnUnknownFunction(t *testing.T) {
	env := &Environment{Functions: FunctionRegistry{}}
	call := pattern.FunctionCall{Function: "missing"}
	_, err := runFunctionCallStep(env, call, NewRow(1))
	require.Error(t, err)
	var cgErr *cgerrors.Error
	require.ErrorAs(t, err, &cgErr)
	require.Equal(t, cgerrors.KindFunctionTypeInference, cgErr.Kind)
}

func TestRunNegationStepFailsWhenInnerYieldsRow(t *testing.T) {
	inner := &planner.Plan{}
	env := &Environment{}
	row := NewRow(1)

	ok, err := runNegationStep(env, planner.NegationStep{Inner: inner}, row)
	require.NoError(t, err)
	require.False(t, ok, "empty inner plan always yields the start row, so negation fails")
}

func TestRunOptionalStepPassesThroughWhenInnerEmpty(t *testing.T) {
	inner := &planner.Plan{Steps: []planner.Step{
		planner.CheckStep{Instruction: planner.Instruction{
			Constraint: pattern.Comparison{LHS: varPerson, RHS: varAge, Op: pattern.CompareEQ},
		}},
	}}
	row := NewRow(int(varAgeType)+1).
		With(varPerson, ValueOf(thing.Long(1))).
		With(varAge, ValueOf(thing.Long(2)))

	out, err := runOptionalStep(&Environment{}, planner.OptionalStep{Inner: inner}, row)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, row, out[0])
}

func TestRunDisjunctionStepUnionsBranches(t *testing.T) {
	branchA := &planner.Plan{Steps: []planner.Step{
		planner.AssignmentStep{Binding: pattern.ExpressionBinding{Var: varAge, Expr: pattern.ConstantExpr{Long: 1}}},
	}}
	branchB := &planner.Plan{Steps: []planner.Step{
		planner.AssignmentStep{Binding: pattern.ExpressionBinding{Var: varAge, Expr: pattern.ConstantExpr{Long: 2}}},
	}}

	out, err := runDisjunctionStep(&Environment{}, planner.DisjunctionStep{Branches: []*planner.Plan{branchA, branchB}}, NewRow(int(varAgeType)+1))
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, int64(1), out[0].Get(varAge).Value.Long)
	require.Equal(t, int64(2), out[1].Get(varAge).Value.Long)
}
