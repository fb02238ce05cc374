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

package inference

import (
	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
)

// Infer runs the fixpoint narrowing described in §4.5 step 2-4: repeatedly
// propagate every edge until no vertex changes, recursing into nested
// disjunctions (whose branch results union back onto shared outer
// vertices, narrowing the outer conjunction further) and negations/
// optionals (solved independently; per spec §4.5 step 4 they never
// narrow the outer vertex sets). Returns KindUnsatisfiablePattern if any
// schema-typed vertex in g (or in a nested negation/optional,
// recursively) ends up empty; Value/ValueList vertices hold no schema
// types and are not checked. A disjunction branch that becomes
// unsatisfiable is not an error by itself: it only contributes nothing
// to the union (see DisjunctionGraph.infer).
func (g *Graph) Infer() error {
	for {
		changed := false
		for _, e := range g.Edges {
			if e.propagate(g.Vertices) {
				changed = true
			}
		}

		for _, dg := range g.NestedDisjunctions {
			dchanged, err := dg.infer(g.Vertices)
			if err != nil {
				return err
			}
			if dchanged {
				changed = true
			}
		}

		if !changed {
			break
		}
	}

	for v, s := range g.Vertices {
		if c := g.Categories[v]; c == pattern.CategoryValue || c == pattern.CategoryValueList {
			continue
		}
		if s.IsEmpty() {
			return cgerrors.New(cgerrors.KindUnsatisfiablePattern, "variable has no remaining candidate types").
				WithContext("variable", v.String())
		}
	}

	for _, ng := range g.NestedNegations {
		if err := ng.Infer(); err != nil {
			return err
		}
	}
	for _, og := range g.NestedOptionals {
		if err := og.Infer(); err != nil {
			return err
		}
	}
	return nil
}

// infer solves every branch of dg against outer's current vertex sets,
// then narrows each shared variable in outer to the union of that
// variable's converged set across all branches, reporting whether any
// outer vertex changed. A branch that becomes unsatisfiable contributes
// nothing (an empty set) to the union rather than failing the whole
// disjunction — only if every branch is unsatisfiable on a shared
// variable does that variable end up empty, which Infer's own
// post-loop check then reports.
func (dg *DisjunctionGraph) infer(outer map[Variable]*TypeSet) (bool, error) {
	unions := make(map[Variable]*TypeSet, len(dg.SharedVariables))
	for _, v := range dg.SharedVariables {
		unions[v] = EmptyTypeSet()
	}

	for _, branch := range dg.Branches {
		if err := branch.Infer(); err != nil {
			continue // unsatisfiable branch contributes nothing; not a hard error here
		}
		for _, v := range dg.SharedVariables {
			if s, ok := branch.Vertices[v]; ok {
				unions[v] = unions[v].Union(s)
			}
		}
	}
	// If every branch was unsatisfiable, shared variables collapse to
	// empty here and Infer's post-loop emptiness check reports it.

	changed := false
	for _, v := range dg.SharedVariables {
		if outer[v].IntersectInPlace(unions[v]) {
			changed = true
		}
	}
	return changed, nil
}
