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
	"github.com/conceptgraph/conceptgraph/internal/inference"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/stats"
)

// Variable aliases pattern.Variable so callers of this package rarely
// need to import internal/pattern by name too.
type Variable = pattern.Variable

// Metadata is what a constraint vertex reports alongside its Cost:
// the iteration mode its prefix membership resolved to, and — for a
// two-ended constraint — the variable its output stream is sorted by,
// which determines IntersectionStep grouping (§4.6, §4.7).
type Metadata struct {
	Mode       IterationMode
	SortVar    Variable
	HasSortVar bool
}

// Context is the read-only environment every ConstraintVertex.Cost
// call draws on: the converged type-inference graph (for expected
// cardinalities per variable) and the statistics snapshot (for actual
// per-type-pair counts).
type Context struct {
	Inferred   *inference.Graph
	Statistics *stats.Statistics
}

// ConstraintVertex is one constraint-shaped candidate in the planner
// graph (§4.6): a Has/Links/Comparison/Is/ExpressionBinding/
// FunctionCall constraint, or a nested Negation/Disjunction/Optional
// sub-pattern planned as a unit.
type ConstraintVertex interface {
	// Variables returns every variable this vertex touches.
	Variables() []Variable
	// RequiredInputs returns the subset of Variables() that must
	// already be bound before this vertex may be chosen — the vertex
	// cannot generate these itself (§4.6 step 3's "required inputs").
	RequiredInputs() []Variable
	// CostAndMetadata estimates the cost of adding this vertex next,
	// given which variables the ordering-so-far has already bound.
	CostAndMetadata(bound map[Variable]bool, ctx *Context) (Cost, Metadata)
	// Constraint returns the underlying pattern constraint (or nil for
	// a nested Negation/Disjunction/Optional, which carry their own
	// inner conjunction instead).
	Constraint() pattern.Constraint
}

// expectedTypeSetSize returns how many candidate schema types v's
// converged vertex holds, or 1 if the graph has no entry (e.g. a Value
// variable, which carries no schema types) — used as a generic
// branching-factor stand-in when Statistics has no finer-grained
// count.
func expectedTypeSetSize(ctx *Context, v Variable) int {
	if ctx == nil || ctx.Inferred == nil {
		return 1
	}
	if s, ok := ctx.Inferred.Vertices[v]; ok && !s.IsEmpty() {
		return s.Len()
	}
	return 1
}

// --- Has -------------------------------------------------------------

type hasVertex struct{ c pattern.Has }

func newHasVertex(c pattern.Has) *hasVertex { return &hasVertex{c: c} }

func (v *hasVertex) Variables() []Variable       { return v.c.Variables() }
func (v *hasVertex) RequiredInputs() []Variable  { return nil } // always valid: has iterator (teacher's PlannerVertex::Has)
func (v *hasVertex) Constraint() pattern.Constraint { return v.c }

func (v *hasVertex) CostAndMetadata(bound map[Variable]bool, ctx *Context) (Cost, Metadata) {
	ownerBound, attrBound := bound[v.c.Owner], bound[v.c.Attribute]
	// Statistics has no reverse (attribute -> owner) index, so a fully
	// unbound or attribute-only-bound scan is costed as iterating every
	// candidate owner type's has-edges — expectedTypeSetSize(owner)
	// stands in for "how many owner types this could fan out over".
	full := perOwnerHasCount(ctx, v.c.Owner) * float64(expectedTypeSetSize(ctx, v.c.Owner))

	switch {
	case ownerBound && attrBound:
		return Cost{Cost: advanceIteratorRelativeCost, IORatio: 0}, Metadata{Mode: BoundFromBoundTo}
	case ownerBound && !attrBound:
		expected := perOwnerHasCount(ctx, v.c.Owner)
		return Cost{Cost: openIteratorRelativeCost + expected*advanceIteratorRelativeCost, IORatio: 0.5},
			Metadata{Mode: BoundFrom, SortVar: v.c.Attribute, HasSortVar: true}
	case !ownerBound && attrBound:
		// No reverse (attribute -> owner) index exists in this
		// storage layout (§4.1's DataHasEdges is owner-keyed), so an
		// attribute-bound owner-unbound scan degrades to a full-owner
		// scan filtered by the bound attribute — costed accordingly.
		return Cost{Cost: openIteratorRelativeCost + full*advanceIteratorRelativeCost, IORatio: 1},
			Metadata{Mode: UnboundInverted, SortVar: v.c.Owner, HasSortVar: true}
	default:
		return Cost{Cost: openIteratorRelativeCost + full*advanceIteratorRelativeCost, IORatio: 0.5},
			Metadata{Mode: Unbound, SortVar: v.c.Owner, HasSortVar: true}
	}
}

func perOwnerHasCount(ctx *Context, owner Variable) float64 {
	if ctx == nil || ctx.Statistics == nil || ctx.Inferred == nil {
		return 1
	}
	ownerTypes, ok := ctx.Inferred.Vertices[owner]
	if !ok {
		return 1
	}
	var total int64
	for _, t := range ownerTypes.Slice() {
		total += ctx.Statistics.TotalHasForOwner(t)
	}
	if ownerTypes.Len() == 0 {
		return 1
	}
	return float64(total) / float64(ownerTypes.Len())
}

// --- Links -------------------------------------------------------------

type linksVertex struct{ c pattern.Links }

func newLinksVertex(c pattern.Links) *linksVertex { return &linksVertex{c: c} }

func (v *linksVertex) Variables() []Variable       { return v.c.Variables() }
func (v *linksVertex) RequiredInputs() []Variable  { return nil } // always valid: links iterator
func (v *linksVertex) Constraint() pattern.Constraint { return v.c }

func (v *linksVertex) CostAndMetadata(bound map[Variable]bool, ctx *Context) (Cost, Metadata) {
	relBound, playerBound := bound[v.c.Relation], bound[v.c.Player]
	expected := expectedLinkCount(ctx, v.c)

	switch {
	case relBound && playerBound:
		return Cost{Cost: advanceIteratorRelativeCost, IORatio: 0}, Metadata{Mode: BoundFromBoundTo}
	case relBound && !playerBound:
		return Cost{Cost: openIteratorRelativeCost + expected*advanceIteratorRelativeCost, IORatio: 0.5},
			Metadata{Mode: BoundFrom, SortVar: v.c.Player, HasSortVar: true}
	case !relBound && playerBound:
		return Cost{Cost: openIteratorRelativeCost + expected*advanceIteratorRelativeCost, IORatio: 0.5},
			Metadata{Mode: UnboundInverted, SortVar: v.c.Relation, HasSortVar: true}
	default:
		return Cost{Cost: openIteratorRelativeCost + expected*advanceIteratorRelativeCost, IORatio: 0.5},
			Metadata{Mode: Unbound, SortVar: v.c.Relation, HasSortVar: true}
	}
}

func expectedLinkCount(ctx *Context, c pattern.Links) float64 {
	if ctx == nil || ctx.Statistics == nil || ctx.Inferred == nil {
		return 1
	}
	relTypes, relOK := ctx.Inferred.Vertices[c.Relation]
	playerTypes, playerOK := ctx.Inferred.Vertices[c.Player]
	if !relOK || !playerOK {
		return 1
	}
	var roleTypes []inference.TypeID
	if c.Role != 0 {
		if rs, ok := ctx.Inferred.Vertices[c.Role]; ok {
			roleTypes = rs.Slice()
		}
	}
	var total int64
	var pairs int64
	for _, r := range relTypes.Slice() {
		for _, p := range playerTypes.Slice() {
			if len(roleTypes) == 0 {
				total += ctx.Statistics.TotalLinksForRole(r, 0)
				pairs++
				continue
			}
			for _, role := range roleTypes {
				total += ctx.Statistics.LinkCount(r, role, p)
				pairs++
			}
		}
	}
	if pairs == 0 {
		return 1
	}
	avg := float64(total) / float64(pairs)
	if avg <= 0 {
		return 1
	}
	return avg
}

// --- Comparison / Is: pure checks, never produce new bindings -------

type checkVertex struct {
	c        pattern.Constraint
	required []Variable
}

func newComparisonVertex(c pattern.Comparison) *checkVertex {
	return &checkVertex{c: c, required: []Variable{c.LHS, c.RHS}}
}

func newIsVertex(c pattern.Is) *checkVertex {
	return &checkVertex{c: c, required: []Variable{c.LHS, c.RHS}}
}

func (v *checkVertex) Variables() []Variable       { return v.required }
func (v *checkVertex) RequiredInputs() []Variable  { return v.required }
func (v *checkVertex) Constraint() pattern.Constraint { return v.c }

func (v *checkVertex) CostAndMetadata(map[Variable]bool, *Context) (Cost, Metadata) {
	cost := advanceIteratorRelativeCost
	if cmp, ok := v.c.(pattern.Comparison); ok {
		switch cmp.Op {
		case pattern.CompareContains:
			cost *= containsExpectedChecksPerMatch
		case pattern.CompareLike:
			cost *= regexExpectedChecksPerMatch
		}
	}
	return Cost{Cost: cost, IORatio: 0}, Metadata{Mode: BoundFromBoundTo}
}

// --- ExpressionBinding: generates Var from already-bound inputs -----

type expressionVertex struct{ c pattern.ExpressionBinding }

func newExpressionVertex(c pattern.ExpressionBinding) *expressionVertex {
	return &expressionVertex{c: c}
}

func (v *expressionVertex) Variables() []Variable      { return v.c.Variables() }
func (v *expressionVertex) RequiredInputs() []Variable { return v.c.Expr.Inputs() }
func (v *expressionVertex) Constraint() pattern.Constraint { return v.c }

func (v *expressionVertex) CostAndMetadata(map[Variable]bool, *Context) (Cost, Metadata) {
	return Cost{Cost: advanceIteratorRelativeCost, IORatio: 0}, Metadata{}
}

// --- FunctionCall: generates Assigned from Args ----------------------

type functionCallVertex struct{ c pattern.FunctionCall }

func newFunctionCallVertex(c pattern.FunctionCall) *functionCallVertex {
	return &functionCallVertex{c: c}
}

func (v *functionCallVertex) Variables() []Variable      { return v.c.Variables() }
func (v *functionCallVertex) RequiredInputs() []Variable { return v.c.Args }
func (v *functionCallVertex) Constraint() pattern.Constraint { return v.c }

func (v *functionCallVertex) CostAndMetadata(map[Variable]bool, *Context) (Cost, Metadata) {
	// Unknown selectivity: costed as a fixed, moderately expensive
	// opaque call — never the cheapest option when an indexed
	// alternative is available, but still plannable on its own.
	return Cost{Cost: openIteratorRelativeCost, IORatio: 0}, Metadata{}
}

// --- Negation / Optional: planned as a unit, all shared vars required ---

type subPatternVertex struct {
	inner    pattern.Conjunction
	required []Variable
	isOptional bool
}

func newNegationVertex(n pattern.Negation, outer map[Variable]bool) *subPatternVertex {
	return &subPatternVertex{inner: n.Inner, required: n.Inner.SharedVariables(outer)}
}

func newOptionalVertex(o pattern.Optional, outer map[Variable]bool) *subPatternVertex {
	return &subPatternVertex{inner: o.Inner, required: o.Inner.SharedVariables(outer), isOptional: true}
}

func (v *subPatternVertex) Variables() []Variable       { return v.required }
func (v *subPatternVertex) RequiredInputs() []Variable  { return v.required }
func (v *subPatternVertex) Constraint() pattern.Constraint { return nil }

func (v *subPatternVertex) CostAndMetadata(map[Variable]bool, *Context) (Cost, Metadata) {
	// A full sub-plan runs per outer row; costed as one iterator open
	// plus one advance. The sub-plan's own cost is not taken into
	// account.
	return Cost{Cost: openIteratorRelativeCost + advanceIteratorRelativeCost, IORatio: 0.5}, Metadata{}
}

// --- Thing: synthetic fallback scan for a variable no Has/Links/-----
// ExpressionBinding/FunctionCall constraint ever produces, e.g. a bare
// `$x isa person;` with no further constraint on $x. Schema-only
// constraints (Isa/Sub/Label/Owns/Relates/Plays) narrow $x's candidate
// types via inference but never themselves iterate instance data, so
// without this vertex such a variable would never be ordered —
// violating §8 testable property 7 ("the planner emits every variable
// exactly once"). Gated to Thing/Attribute categories only: a Type
// variable is fully resolved by its inferred type set with no instance
// scan, and Value/ThingList/ValueList variables are only ever produced
// by an ExpressionBinding or FunctionCall, never bound bare.
type thingVertex struct{ v Variable }

func newThingVertex(v Variable) *thingVertex { return &thingVertex{v: v} }

func (t *thingVertex) Variables() []Variable       { return []Variable{t.v} }
func (t *thingVertex) RequiredInputs() []Variable  { return nil }
func (t *thingVertex) Constraint() pattern.Constraint { return nil }

func (t *thingVertex) CostAndMetadata(bound map[Variable]bool, ctx *Context) (Cost, Metadata) {
	if bound[t.v] {
		return Cost{Cost: advanceIteratorRelativeCost, IORatio: 0}, Metadata{Mode: BoundFromBoundTo}
	}
	count := expectedInstanceCount(ctx, t.v)
	return Cost{Cost: openIteratorRelativeCost + count*advanceIteratorRelativeCost, IORatio: 0.5},
		Metadata{Mode: Unbound, SortVar: t.v, HasSortVar: true}
}

// expectedInstanceCount sums Statistics.InstanceCount over v's
// inferred candidate types — the size of the fallback scan.
func expectedInstanceCount(ctx *Context, v Variable) float64 {
	if ctx == nil || ctx.Statistics == nil || ctx.Inferred == nil {
		return 1
	}
	types, ok := ctx.Inferred.Vertices[v]
	if !ok {
		return 1
	}
	var total int64
	for _, t := range types.Slice() {
		total += ctx.Statistics.InstanceCount(t)
	}
	if total <= 0 {
		return 1
	}
	return float64(total)
}

// --- Disjunction: planned per branch, outer prefix forwarded --------

type disjunctionVertex struct {
	branches []pattern.Conjunction
	required []Variable
}

func newDisjunctionVertex(d pattern.Disjunction, outer map[Variable]bool) *disjunctionVertex {
	dv := &disjunctionVertex{branches: d.Branches}
	seen := map[Variable]bool{}
	for _, b := range d.Branches {
		for _, v := range b.SharedVariables(outer) {
			if !seen[v] {
				seen[v] = true
				dv.required = append(dv.required, v)
			}
		}
	}
	return dv
}

func (v *disjunctionVertex) Variables() []Variable       { return v.required }
func (v *disjunctionVertex) RequiredInputs() []Variable  { return v.required }
func (v *disjunctionVertex) Constraint() pattern.Constraint { return nil }

func (v *disjunctionVertex) CostAndMetadata(map[Variable]bool, *Context) (Cost, Metadata) {
	cost := ZeroCost
	for range v.branches {
		cost = Chain(cost, Cost{Cost: openIteratorRelativeCost, IORatio: 0.5})
	}
	return cost, Metadata{}
}
