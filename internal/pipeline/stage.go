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

// Package pipeline implements §4.8: a sequence of Match/Insert/Delete/
// Select/Sort/Offset/Limit/Require/Reduce stages, compiled in one pass
// against a running `var -> type set` map and run as a chained row
// Iterator against a single transaction's snapshot/managers.
package pipeline

import (
	"github.com/conceptgraph/conceptgraph/internal/executor"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// Stage is one uncompiled pipeline stage, as supplied by the caller
// (the query compiler, or a hand-built pipeline in tests).
type Stage interface{ stageNode() }

// MatchStage runs a pattern against the current row, fanning it out
// per the planner's chosen plan (§4.6, §4.7). Type inference re-runs
// against Conjunction every time this stage compiles (§4.8 step 1),
// seeded from whatever the running type map already knows about
// variables this conjunction shares with earlier stages.
type MatchStage struct {
	Conjunction pattern.Conjunction
}

func (MatchStage) stageNode() {}

// InsertStage extends each row with newly created instances (§4.7.1).
type InsertStage struct {
	Conjunction pattern.Conjunction
}

func (InsertStage) stageNode() {}

// DeleteStage removes the named things/edges from each row (§4.7.1).
type DeleteStage struct {
	Conjunction pattern.Conjunction
}

func (DeleteStage) stageNode() {}

// SelectStage projects each row onto Vars, folding any now-redundant
// fan-out into Multiplicity (§8 edge case 4: "select drops fan-out").
type SelectStage struct {
	Vars []pattern.Variable
}

func (SelectStage) stageNode() {}

// SortStage orders the row stream by Vars, descending where Desc[i]
// is true (§5: "the executor does not reorder rows within a sorted
// step beyond the declared sort variable" — ties keep their relative
// input order, i.e. a stable sort).
type SortStage struct {
	Vars []pattern.Variable
	Desc []bool
}

func (SortStage) stageNode() {}

// OffsetStage skips the first N rows.
type OffsetStage struct{ N uint64 }

func (OffsetStage) stageNode() {}

// LimitStage yields at most N rows.
type LimitStage struct{ N uint64 }

func (LimitStage) stageNode() {}

// RequireStage drops any row where one of Vars is still Empty — the
// stage a pipeline places after an Optional match to filter out rows
// that never matched the optional branch.
type RequireStage struct {
	Vars []pattern.Variable
}

func (RequireStage) stageNode() {}

// ReduceStage accumulates the row stream into one row per distinct
// GroupBy combination per reducer (§4.7.2). ValueTypes runs parallel
// to Reducers: the value-type category CompileReducer checks
// Reducers[i] against — patterns are constructed programmatically
// (constraint.go's Label doc comment notes the same convention), so
// the caller that builds the pipeline already knows each reduced
// variable's resolved value type rather than this package inferring
// it from the running type map.
type ReduceStage struct {
	Reducers   []executor.Reducer
	ValueTypes []typesystem.ValueType
}

func (ReduceStage) stageNode() {}
