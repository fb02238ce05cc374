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

	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/planner"
	"github.com/conceptgraph/conceptgraph/internal/thing"
)

func TestRunCheckStepComparisonGT(t *testing.T) {
	row := NewRow(int(varAgeType)+1).
		With(varPerson, ValueOf(thing.Long(10))).
		With(varAge, ValueOf(thing.Long(5)))

	step := planner.CheckStep{Instruction: planner.Instruction{
		Constraint: pattern.Comparison{LHS: varPerson, RHS: varAge, Op: pattern.CompareGT},
	}}
	ok, err := runCheckStep(&Environment{}, step, row)
	require.NoError(t, err)
	require.True(t, ok)

	step.Instruction.Constraint = pattern.Comparison{LHS: varAge, RHS: varPerson, Op: pattern.CompareGT}
	ok, err = runCheckStep(&Environment{}, step, row)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRunCheckStepIsComparesByKind(t *testing.T) {
	row := NewRow(int(varAgeType)+1).
		With(varPerson, ValueOf(thing.Long(7))).
		With(varAge, ValueOf(thing.Long(7)))

	step := planner.CheckStep{Instruction: planner.Instruction{
		Constraint: pattern.Is{LHS: varPerson, RHS: varAge},
	}}
	ok, err := runCheckStep(&Environment{}, step, row)
	require.NoError(t, err)
	require.True(t, ok)

	row = row.With(varAge, ValueOf(thing.Long(8)))
	ok, err = runCheckStep(&Environment{}, step, row)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRunCheckStepComparisonRejectsUnresolvedOperand(t *testing.T) {
	row := NewRow(int(varAgeType) + 1)
	step := planner.CheckStep{Instruction: planner.Instruction{
		Constraint: pattern.Comparison{LHS: varPerson, RHS: varAge, Op: pattern.CompareEQ},
	}}
	_, err := runCheckStep(&Environment{}, step, row)
	require.Error(t, err)
}
