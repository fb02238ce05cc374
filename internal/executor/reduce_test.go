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
	"github.com/conceptgraph/conceptgraph/internal/thing"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

func TestRunReduceSumGroupsByOwner(t *testing.T) {
	rows := []Row{
		NewRow(int(varAge) + 1).With(varPerson, ThingValue(thing.ObjectID{Type: 1, Inst: 1})).With(varAge, ValueOf(thing.Long(10))),
		NewRow(int(varAge) + 1).With(varPerson, ThingValue(thing.ObjectID{Type: 1, Inst: 1})).With(varAge, ValueOf(thing.Long(20))),
		NewRow(int(varAge) + 1).With(varPerson, ThingValue(thing.ObjectID{Type: 1, Inst: 2})).With(varAge, ValueOf(thing.Long(5))),
	}
	it := newSliceIterator(rows)
	out, err := RunReduce(&Environment{}, it, Reducer{Kind: ReduceSum, Var: varAge, GroupBy: []pattern.Variable{varPerson}})
	require.NoError(t, err)
	require.Len(t, out, 2)

	sums := map[thing.ObjectID]float64{}
	for _, r := range out {
		sums[r.Get(varPerson).Thing] = r.Get(varAge).Value.Double
	}
	require.Equal(t, 30.0, sums[thing.ObjectID{Type: 1, Inst: 1}])
	require.Equal(t, 5.0, sums[thing.ObjectID{Type: 1, Inst: 2}])
}

func TestCompileReducerRejectsNonNumericValueType(t *testing.T) {
	err := CompileReducer(Reducer{Kind: ReduceSum, Var: varAge}, typesystem.ValueTypeString)
	require.Error(t, err)
	var cgErr *cgerrors.Error
	require.ErrorAs(t, err, &cgErr)
	require.Equal(t, cgerrors.KindUnsupportedValueTypeForOp, cgErr.Kind)
}

func TestRunAssignmentStepDropsRowOnDivisionByZero(t *testing.T) {
	row := NewRow(int(varAge) + 1).With(varAge, ValueOf(thing.Long(0)))
	binding := pattern.ExpressionBinding{
		Var: varPersonType,
		Expr: pattern.BinaryExpr{
			Op:  pattern.OpDiv,
			LHS: pattern.ConstantExpr{Long: 10},
			RHS: pattern.VariableExpr{Var: varAge},
		},
	}
	_, ok := runAssignmentStep(binding, row)
	require.False(t, ok)
}
