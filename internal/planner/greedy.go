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
	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
)

// PlanConjunction is the entry point: build a PlannerGraph over conj
// and greedily order it into a Plan (§4.6 step 3), given the
// variables an enclosing scope already bound.
func PlanConjunction(conj pattern.Conjunction, outerBound map[Variable]bool, ctx *Context) (*Plan, error) {
	bound := cloneBound(outerBound)
	graph := Build(conj, bound, ctx)
	return orderGraph(graph, bound, ctx)
}

type orderedVertex struct {
	vertex     ConstraintVertex
	meta       Metadata
	boundSoFar map[Variable]bool
}

// orderGraph runs the greedy selection loop: repeatedly pick the
// cheapest vertex whose required inputs are already bound, breaking
// ties by earliest position in graph.Vertices (a stable, deterministic
// tie-break — §4.6 step 3), until every vertex is ordered.
func orderGraph(graph *PlannerGraph, bound map[Variable]bool, ctx *Context) (*Plan, error) {
	remaining := append([]ConstraintVertex(nil), graph.Vertices...)
	var ordering []orderedVertex

	// A two-ended instruction's sort variable isn't usable by a later
	// constraint until its whole IntersectionStep group closes (the
	// group runs as one intersected, sorted scan — the variable has no
	// single value until that scan produces a row) — so its binding is
	// deferred across consecutive same-sort-var picks rather than
	// applied the instant the vertex is chosen.
	var pendingSortVar Variable
	havePending := false
	flushPending := func() {
		if havePending {
			bound[pendingSortVar] = true
			havePending = false
		}
	}

	for len(remaining) > 0 {
		bestIdx := -1
		var bestCost Cost
		var bestMeta Metadata
		for i, v := range remaining {
			if !requiredInputsBound(bound, v.RequiredInputs()) {
				continue
			}
			cost, meta := v.CostAndMetadata(bound, ctx)
			if bestIdx == -1 || cost.Cost < bestCost.Cost {
				bestIdx, bestCost, bestMeta = i, cost, meta
			}
		}
		if bestIdx == -1 {
			// Nothing is eligible with the pending group's sort
			// variable still deferred — close the group and retry
			// before concluding the ordering is genuinely stuck.
			if havePending {
				flushPending()
				continue
			}
			return nil, cgerrors.New(cgerrors.KindNoValidOrdering,
				"no constraint's required inputs are satisfied by the current ordering").
				WithContext("remainingVertices", len(remaining))
		}

		chosen := remaining[bestIdx]
		groups := bestMeta.HasSortVar && !bestMeta.Mode.IsCheck()
		if !groups || !havePending || pendingSortVar != bestMeta.SortVar {
			flushPending()
		}
		ordering = append(ordering, orderedVertex{vertex: chosen, meta: bestMeta, boundSoFar: cloneBound(bound)})

		for _, v := range chosen.Variables() {
			if groups && v == bestMeta.SortVar {
				continue
			}
			bound[v] = true
		}
		if groups {
			pendingSortVar, havePending = bestMeta.SortVar, true
		}
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	flushPending()

	return assemble(ordering, ctx)
}

func requiredInputsBound(bound map[Variable]bool, required []Variable) bool {
	for _, v := range required {
		if !bound[v] {
			return false
		}
	}
	return true
}

func cloneBound(bound map[Variable]bool) map[Variable]bool {
	out := make(map[Variable]bool, len(bound))
	for v := range bound {
		out[v] = true
	}
	return out
}

// assemble turns the chosen ordering into a Step list: consecutive
// two-ended instructions sharing a sort variable collapse into one
// IntersectionStep, fully-bound instructions become CheckSteps, and
// assignments / calls / nested sub-patterns each get their own step
// (§4.7).
func assemble(ordering []orderedVertex, ctx *Context) (*Plan, error) {
	p := &Plan{}
	var current *IntersectionStep
	flush := func() {
		if current != nil {
			p.Steps = append(p.Steps, *current)
			current = nil
		}
	}

	for _, ov := range ordering {
		switch vv := ov.vertex.(type) {
		case *hasVertex, *linksVertex, *thingVertex:
			inst := Instruction{Constraint: ov.vertex.Constraint(), Mode: ov.meta.Mode}
			if tv, ok := ov.vertex.(*thingVertex); ok {
				inst.ScanVar = tv.v
			}
			if ov.meta.Mode.IsCheck() {
				flush()
				p.Steps = append(p.Steps, CheckStep{Instruction: inst})
				continue
			}
			if current != nil && ov.meta.HasSortVar && current.SortVar == ov.meta.SortVar {
				current.Instructions = append(current.Instructions, inst)
				continue
			}
			flush()
			current = &IntersectionStep{SortVar: ov.meta.SortVar, Instructions: []Instruction{inst}}

		case *checkVertex:
			flush()
			p.Steps = append(p.Steps, CheckStep{Instruction: Instruction{Constraint: vv.c, Mode: BoundFromBoundTo}})

		case *expressionVertex:
			flush()
			p.Steps = append(p.Steps, AssignmentStep{Binding: vv.c})

		case *functionCallVertex:
			flush()
			p.Steps = append(p.Steps, FunctionCallStep{Call: vv.c})

		case *subPatternVertex:
			flush()
			inner, err := PlanConjunction(vv.inner, ov.boundSoFar, ctx)
			if err != nil {
				return nil, err
			}
			if vv.isOptional {
				p.Steps = append(p.Steps, OptionalStep{Inner: inner})
			} else {
				p.Steps = append(p.Steps, NegationStep{Inner: inner})
			}

		case *disjunctionVertex:
			flush()
			branches := make([]*Plan, 0, len(vv.branches))
			for _, b := range vv.branches {
				branchPlan, err := PlanConjunction(b, ov.boundSoFar, ctx)
				if err != nil {
					return nil, err
				}
				branches = append(branches, branchPlan)
			}
			p.Steps = append(p.Steps, DisjunctionStep{Branches: branches})
		}
	}
	flush()
	return p, nil
}
