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

package pattern

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

func TestLinksVariablesOmitsUnsetRole(t *testing.T) {
	l := Links{Relation: 1, Player: 2}
	require.Equal(t, []Variable{1, 2}, l.Variables())

	l.Role = 3
	require.Equal(t, []Variable{1, 2, 3}, l.Variables())
}

func TestConjunctionVariablesDeduplicatesAcrossNesting(t *testing.T) {
	conj := Conjunction{
		Constraints: []Constraint{
			Isa{Thing: 1, Type: 2},
			Has{Owner: 1, Attribute: 4},
		},
		Disjunctions: []Disjunction{{
			Branches: []Conjunction{
				{Constraints: []Constraint{Comparison{LHS: 4, Op: CompareGT, RHS: 5}}},
				{Constraints: []Constraint{Comparison{LHS: 4, Op: CompareLT, RHS: 6}}},
			},
		}},
		Negations: []Negation{{
			Inner: Conjunction{Constraints: []Constraint{Has{Owner: 1, Attribute: 7}}},
		}},
	}

	vars := conj.Variables()
	require.ElementsMatch(t, []Variable{1, 2, 4, 5, 6, 7}, vars)

	// no duplicates
	seen := map[Variable]int{}
	for _, v := range vars {
		seen[v]++
	}
	for v, count := range seen {
		require.Equalf(t, 1, count, "variable %v appeared %d times", v, count)
	}
}

func TestSharedVariables(t *testing.T) {
	inner := Conjunction{Constraints: []Constraint{
		Comparison{LHS: 1, Op: CompareEQ, RHS: 2},
	}}
	outer := map[Variable]bool{1: true, 3: true}
	require.Equal(t, []Variable{1}, inner.SharedVariables(outer))
}

func TestExpressionBindingVariablesIncludesInputsAndTarget(t *testing.T) {
	expr := BinaryExpr{
		Op:  OpAdd,
		LHS: VariableExpr{Var: 2},
		RHS: ConstantExpr{Long: 1},
	}
	binding := ExpressionBinding{Var: 1, Expr: expr}
	require.Equal(t, []Variable{1, 2}, binding.Variables())
}

func TestLabelCarriesExplicitKind(t *testing.T) {
	l := Label{Var: 1, Kind: typesystem.KindRelation, Literal: "friendship"}
	require.Equal(t, typesystem.KindRelation, l.Kind)
	require.Equal(t, []Variable{1}, l.Variables())
}

func TestCategoryIsList(t *testing.T) {
	require.True(t, CategoryThingList.IsList())
	require.True(t, CategoryValueList.IsList())
	require.False(t, CategoryThing.IsList())
	require.False(t, CategoryValue.IsList())
}
