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

package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/inference"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

const (
	varOwner pattern.Variable = iota + 1
	varAttr
	varLiteral
)

func TestPlanOrdersHasThenComparison(t *testing.T) {
	// $owner has $attr; $attr == $literal (already bound by an
	// enclosing stage) — the Has constraint has no required inputs, so
	// it's always orderable first, and the Comparison can only be
	// ordered once both its sides are bound.
	conj := pattern.Conjunction{
		Constraints: []pattern.Constraint{
			pattern.Has{Owner: varOwner, Attribute: varAttr},
			pattern.Comparison{LHS: varAttr, Op: pattern.CompareEQ, RHS: varLiteral},
		},
	}
	p, err := PlanConjunction(conj, map[Variable]bool{varLiteral: true}, nil)
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)

	_, isIntersection := p.Steps[0].(IntersectionStep)
	require.True(t, isIntersection, "Has should plan before the Comparison it feeds")
	_, isCheck := p.Steps[1].(CheckStep)
	require.True(t, isCheck)
}

func TestPlanReturnsErrorWhenNoOrderingSatisfiesRequiredInputs(t *testing.T) {
	// Comparison requires both LHS and RHS bound; neither is ever
	// produced by another constraint, so no valid ordering exists.
	conj := pattern.Conjunction{
		Constraints: []pattern.Constraint{
			pattern.Comparison{LHS: varAttr, Op: pattern.CompareEQ, RHS: varLiteral},
		},
	}
	_, err := PlanConjunction(conj, nil, nil)
	require.Error(t, err)
	var cgErr *cgerrors.Error
	require.ErrorAs(t, err, &cgErr)
	require.Equal(t, cgerrors.KindNoValidOrdering, cgErr.Kind)
}

func TestPlanGroupsSameSortVariableIntoOneIntersectionStep(t *testing.T) {
	// Two Has constraints sharing the same owner both sort by that
	// owner once neither side is pre-bound, so they should collapse
	// into a single IntersectionStep.
	const attr2 pattern.Variable = 10
	conj := pattern.Conjunction{
		Constraints: []pattern.Constraint{
			pattern.Has{Owner: varOwner, Attribute: varAttr},
			pattern.Has{Owner: varOwner, Attribute: attr2},
		},
	}
	p, err := PlanConjunction(conj, nil, nil)
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	step, ok := p.Steps[0].(IntersectionStep)
	require.True(t, ok)
	require.Equal(t, varOwner, step.SortVar)
	require.Len(t, step.Instructions, 2)
}

func TestPlanNegationPlansInnerConjunctionIndependently(t *testing.T) {
	conj := pattern.Conjunction{
		Constraints: []pattern.Constraint{
			pattern.Has{Owner: varOwner, Attribute: varAttr},
		},
		Negations: []pattern.Negation{{
			Inner: pattern.Conjunction{Constraints: []pattern.Constraint{
				pattern.Has{Owner: varOwner, Attribute: varLiteral},
			}},
		}},
	}
	p, err := PlanConjunction(conj, nil, nil)
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)
	neg, ok := p.Steps[1].(NegationStep)
	require.True(t, ok)
	require.Len(t, neg.Inner.Steps, 1)
}

func TestPlanEmitsBareSchemaOnlyVariableViaFallbackScan(t *testing.T) {
	// `$owner isa person;` with no Has/Links/Expression/FunctionCall
	// touching $owner: Isa alone is schema-only and produces no vertex,
	// so without the thingVertex fallback $owner would never be
	// ordered at all (§8 testable property 7).
	const personType typesystem.TypeID = 7
	conj := pattern.Conjunction{
		Constraints: []pattern.Constraint{
			pattern.Isa{Thing: varOwner, Type: varAttr, Kind: pattern.IsaExact},
		},
	}
	ctx := &Context{
		Inferred: &inference.Graph{
			Categories: map[Variable]pattern.Category{
				varOwner: pattern.CategoryThing,
				varAttr:  pattern.CategoryType,
			},
			Vertices: map[Variable]*inference.TypeSet{
				varOwner: inference.NewTypeSet(personType),
			},
		},
	}
	p, err := PlanConjunction(conj, nil, ctx)
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	step, ok := p.Steps[0].(IntersectionStep)
	require.True(t, ok)
	require.Len(t, step.Instructions, 1)
	require.Nil(t, step.Instructions[0].Constraint)
	require.Equal(t, varOwner, step.Instructions[0].ScanVar)
}

func TestPlanDisjunctionPlansEachBranch(t *testing.T) {
	conj := pattern.Conjunction{
		Disjunctions: []pattern.Disjunction{{
			Branches: []pattern.Conjunction{
				{Constraints: []pattern.Constraint{pattern.Comparison{LHS: varAttr, Op: pattern.CompareEQ, RHS: varAttr}}},
				{Constraints: []pattern.Constraint{pattern.Comparison{LHS: varAttr, Op: pattern.CompareNEQ, RHS: varAttr}}},
			},
		}},
	}
	p, err := PlanConjunction(conj, map[Variable]bool{varAttr: true}, nil)
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	d, ok := p.Steps[0].(DisjunctionStep)
	require.True(t, ok)
	require.Len(t, d.Branches, 2)
}
