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

package pipeline

import (
	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/executor"
	"github.com/conceptgraph/conceptgraph/internal/inference"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/planner"
	"github.com/conceptgraph/conceptgraph/internal/stats"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// Pipeline is a compiled, ready-to-run §4.8 stage chain.
type Pipeline struct {
	stages []compiledStage
}

// compiledStage turns one upstream row stream into a downstream one.
// Match/Insert/Delete/Require/Offset/Limit are pure streaming
// transforms; Select/Sort/Reduce are barriers that drain upstream
// fully before producing any output (documented per stage below).
type compiledStage interface {
	run(env *executor.Environment, upstream executor.Iterator) executor.Iterator
}

// Compile performs §4.8 step 1's one-pass compilation: walk stages in
// order, threading a running `bound` set and `var -> type set` map
// forward. Every Match stage re-derives its variables' categories and
// re-runs type inference seeded from whatever the running map already
// knows, so a later stage sees the narrowed annotations an earlier
// Match produced rather than starting from the full per-category seed
// set every time. Insert/Delete/Reduce compile against whichever
// variables the stages before them already bound; outerBound seeds the
// set with anything the caller already resolved (e.g. a fetch
// sub-pipeline's captured outer variables).
func Compile(stages []Stage, catalog *typesystem.Catalog, statistics *stats.Statistics, outerBound map[pattern.Variable]bool) (*Pipeline, error) {
	bound := make(map[pattern.Variable]bool, len(outerBound))
	for v, b := range outerBound {
		bound[v] = b
	}
	types := make(map[pattern.Variable]*inference.TypeSet)
	labelTypes := make(map[pattern.Variable]typesystem.TypeID)

	compiled := make([]compiledStage, 0, len(stages))
	for _, stage := range stages {
		switch s := stage.(type) {
		case MatchStage:
			next, err := compileMatch(s, catalog, statistics, bound, types, labelTypes)
			if err != nil {
				return nil, err
			}
			compiled = append(compiled, next)

		case InsertStage:
			plan, err := executor.CompileInsert(s.Conjunction, bound, catalog)
			if err != nil {
				return nil, err
			}
			for _, v := range s.Conjunction.Variables() {
				bound[v] = true
			}
			recordLabelTypes(catalog, s.Conjunction, labelTypes)
			compiled = append(compiled, compiledInsert{plan: plan})

		case DeleteStage:
			plan, err := executor.CompileDelete(s.Conjunction, bound, catalog, labelTypes)
			if err != nil {
				return nil, err
			}
			compiled = append(compiled, compiledDelete{plan: plan})

		case SelectStage:
			compiled = append(compiled, compiledSelect{vars: s.Vars})
			narrowed := make(map[pattern.Variable]bool, len(s.Vars))
			for _, v := range s.Vars {
				narrowed[v] = true
			}
			bound = narrowed

		case SortStage:
			if len(s.Vars) != len(s.Desc) {
				return nil, cgerrors.New(cgerrors.KindPipelineCompilation,
					"sort stage Vars/Desc length mismatch")
			}
			compiled = append(compiled, compiledSort{vars: s.Vars, desc: s.Desc})

		case OffsetStage:
			compiled = append(compiled, compiledOffset{n: s.N})

		case LimitStage:
			compiled = append(compiled, compiledLimit{n: s.N})

		case RequireStage:
			compiled = append(compiled, compiledRequire{vars: s.Vars})

		case ReduceStage:
			if len(s.Reducers) != len(s.ValueTypes) {
				return nil, cgerrors.New(cgerrors.KindPipelineCompilation,
					"reduce stage Reducers/ValueTypes length mismatch")
			}
			for i, r := range s.Reducers {
				if err := executor.CompileReducer(r, s.ValueTypes[i]); err != nil {
					return nil, err
				}
			}
			narrowed := make(map[pattern.Variable]bool)
			for _, r := range s.Reducers {
				for _, v := range r.GroupBy {
					narrowed[v] = true
				}
				narrowed[r.Var] = true
			}
			bound = narrowed
			compiled = append(compiled, compiledReduce{reducers: s.Reducers})

		default:
			return nil, cgerrors.New(cgerrors.KindPipelineCompilation, "unrecognised pipeline stage type")
		}
	}
	return &Pipeline{stages: compiled}, nil
}

// compileMatch runs §4.8 step 1's per-Match re-inference and greedy
// planning, mutating bound/types/labelTypes in place for the stages
// that follow.
func compileMatch(
	s MatchStage,
	catalog *typesystem.Catalog,
	statistics *stats.Statistics,
	bound map[pattern.Variable]bool,
	types map[pattern.Variable]*inference.TypeSet,
	labelTypes map[pattern.Variable]typesystem.TypeID,
) (compiledStage, error) {
	categories := pattern.DeriveCategories(s.Conjunction)
	graph, err := inference.BuildSeeded(catalog, categories, s.Conjunction, types)
	if err != nil {
		return nil, cgerrors.Wrap(err, cgerrors.KindQueryTypeInference, "match stage type inference")
	}
	if err := graph.Infer(); err != nil {
		return nil, cgerrors.Wrap(err, cgerrors.KindQueryTypeInference, "match stage type inference")
	}
	for v, ts := range graph.Vertices {
		types[v] = ts
	}

	plan, err := planner.PlanConjunction(s.Conjunction, bound, &planner.Context{Inferred: graph, Statistics: statistics})
	if err != nil {
		return nil, err
	}
	for _, v := range s.Conjunction.Variables() {
		bound[v] = true
	}
	recordLabelTypes(catalog, s.Conjunction, labelTypes)
	return compiledMatch{plan: plan, graph: graph}, nil
}

// recordLabelTypes resolves every Label constraint in conj and folds
// its (Var, TypeID) into out, so a later Delete stage's `isa` clause
// can resolve a type a preceding Match already pinned down by label
// (write.go's CompileDelete doc comment: "matchLabelTypes carries any
// Label resolution the preceding Match stage already did").
func recordLabelTypes(catalog *typesystem.Catalog, conj pattern.Conjunction, out map[pattern.Variable]typesystem.TypeID) {
	for _, c := range conj.Constraints {
		if lbl, ok := c.(pattern.Label); ok {
			if id, found := catalog.ResolveLabel(lbl.Kind, lbl.Literal); found {
				out[lbl.Var] = id
			}
		}
	}
}
