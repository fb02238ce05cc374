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
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/conceptgraph/conceptgraph/internal/executor"
	"github.com/conceptgraph/conceptgraph/internal/inference"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/planner"
	"github.com/conceptgraph/conceptgraph/internal/thing"
)

// IntoIterator runs the compiled chain against a single starting row
// (§6: the pipeline "consumes a parsed IR plus an optional initial
// row"), returning the final row stream. A write stage mutates env's
// WriteBatch as it's drained — the caller is responsible for only
// reaching here with a write-capable Environment when the pipeline
// contains an Insert/Delete stage.
func (p *Pipeline) IntoIterator(env *executor.Environment, start executor.Row) executor.Iterator {
	it := executor.Iterator(executor.NewRowIterator([]executor.Row{start}))
	for _, stage := range p.stages {
		it = stage.run(env, it)
	}
	return it
}

// flatMapIterator applies expand to every upstream row, lazily pulling
// the next upstream row once the current row's sub-iterator is
// exhausted — the same shape executor's stepIterator uses to compose
// Match's nested steps, reused here so Match/Insert/Delete/Require
// compose as one flat streaming chain instead of a fully materialised
// list between every stage.
type flatMapIterator struct {
	upstream executor.Iterator
	expand   func(executor.Row) executor.Iterator

	current executor.Iterator
	err     error
	done    bool
}

func newFlatMapIterator(upstream executor.Iterator, expand func(executor.Row) executor.Iterator) *flatMapIterator {
	return &flatMapIterator{upstream: upstream, expand: expand}
}

func (f *flatMapIterator) Next() bool {
	if f.err != nil || f.done {
		return false
	}
	for {
		if f.current != nil {
			if f.current.Next() {
				return true
			}
			if err := f.current.Err(); err != nil {
				f.err = err
				f.done = true
				return false
			}
			f.current.Close()
			f.current = nil
		}
		if !f.upstream.Next() {
			if err := f.upstream.Err(); err != nil {
				f.err = err
			}
			f.done = true
			return false
		}
		f.current = f.expand(f.upstream.Row())
	}
}

func (f *flatMapIterator) Row() executor.Row { return f.current.Row() }
func (f *flatMapIterator) Err() error        { return f.err }
func (f *flatMapIterator) Close() {
	if f.current != nil {
		f.current.Close()
	}
	f.upstream.Close()
}

// compiledMatch fans a row out per the planner's chosen plan. graph is
// this stage's own converged type-inference graph (§4.8 step 1 re-runs
// inference per Match) — run() threads it through on a *copy* of env
// rather than mutating env.Inferred in place, so two Match stages in
// the same pipeline with no barrier between them can't clobber each
// other's graph mid-stream as their iterators interleave lazily.
type compiledMatch struct {
	plan  *planner.Plan
	graph *inference.Graph
}

func (c compiledMatch) run(env *executor.Environment, upstream executor.Iterator) executor.Iterator {
	stageEnv := *env
	stageEnv.Inferred = c.graph
	return newFlatMapIterator(upstream, func(row executor.Row) executor.Iterator {
		return executor.RunPlan(&stageEnv, c.plan, row)
	})
}

// compiledInsert runs one insert per upstream row, extending it with
// the newly created instances (write.go's InsertPlan/RunInsert).
type compiledInsert struct{ plan *executor.InsertPlan }

func (c compiledInsert) run(env *executor.Environment, upstream executor.Iterator) executor.Iterator {
	return newFlatMapIterator(upstream, func(row executor.Row) executor.Iterator {
		out, err := executor.RunInsert(env, c.plan, row)
		if err != nil {
			return executor.NewErrIterator(err)
		}
		return executor.NewRowIterator([]executor.Row{out})
	})
}

// compiledDelete runs one delete per upstream row; the row itself
// passes through unchanged (the deletion is a side effect on env's
// WriteBatch, not a row transform).
type compiledDelete struct{ plan *executor.DeletePlan }

func (c compiledDelete) run(env *executor.Environment, upstream executor.Iterator) executor.Iterator {
	return newFlatMapIterator(upstream, func(row executor.Row) executor.Iterator {
		if err := executor.RunDelete(env, c.plan, row); err != nil {
			return executor.NewErrIterator(err)
		}
		return executor.NewRowIterator([]executor.Row{row})
	})
}

// compiledRequire drops any row where one of vars is still Empty — a
// filtering streaming transform, no materialisation needed.
type compiledRequire struct{ vars []pattern.Variable }

func (c compiledRequire) run(_ *executor.Environment, upstream executor.Iterator) executor.Iterator {
	return newFlatMapIterator(upstream, func(row executor.Row) executor.Iterator {
		for _, v := range c.vars {
			if row.Get(v).Kind == executor.Empty {
				return executor.NewRowIterator(nil)
			}
		}
		return executor.NewRowIterator([]executor.Row{row})
	})
}

// compiledOffset skips the first n rows; a lightweight streaming
// wrapper, no need to drain or buffer anything.
type compiledOffset struct{ n uint64 }

func (c compiledOffset) run(_ *executor.Environment, upstream executor.Iterator) executor.Iterator {
	return &offsetIterator{upstream: upstream, remaining: c.n}
}

type offsetIterator struct {
	upstream  executor.Iterator
	remaining uint64
}

func (o *offsetIterator) Next() bool {
	for o.remaining > 0 {
		if !o.upstream.Next() {
			return false
		}
		o.remaining--
	}
	return o.upstream.Next()
}
func (o *offsetIterator) Row() executor.Row { return o.upstream.Row() }
func (o *offsetIterator) Err() error        { return o.upstream.Err() }
func (o *offsetIterator) Close()            { o.upstream.Close() }

// compiledLimit yields at most n rows.
type compiledLimit struct{ n uint64 }

func (c compiledLimit) run(_ *executor.Environment, upstream executor.Iterator) executor.Iterator {
	return &limitIterator{upstream: upstream, remaining: c.n}
}

type limitIterator struct {
	upstream  executor.Iterator
	remaining uint64
	done      bool
}

func (l *limitIterator) Next() bool {
	if l.done || l.remaining == 0 {
		return false
	}
	if !l.upstream.Next() {
		l.done = true
		return false
	}
	l.remaining--
	return true
}
func (l *limitIterator) Row() executor.Row { return l.upstream.Row() }
func (l *limitIterator) Err() error        { return l.upstream.Err() }
func (l *limitIterator) Close()            { l.upstream.Close() }

// compiledSelect is a barrier stage: projects every row onto vars,
// folding any now-redundant fan-out into Multiplicity (§8 edge case
// 4 — three rows sharing a projection collapse into one row whose
// Multiplicity is the sum of the collapsed rows', in first-occurrence
// order).
type compiledSelect struct{ vars []pattern.Variable }

func (c compiledSelect) run(_ *executor.Environment, upstream executor.Iterator) executor.Iterator {
	var order []string
	folded := make(map[string]executor.Row)

	for upstream.Next() {
		row := upstream.Row()
		projected := executor.NewRow(len(row.Values))
		projected.Multiplicity = row.Multiplicity
		for _, v := range c.vars {
			projected = projected.With(v, row.Get(v))
		}
		key, err := projectionKey(projected, c.vars)
		if err != nil {
			upstream.Close()
			return executor.NewErrIterator(err)
		}
		if existing, ok := folded[key]; ok {
			existing.Multiplicity += row.Multiplicity
			folded[key] = existing
			continue
		}
		folded[key] = projected
		order = append(order, key)
	}
	if err := upstream.Err(); err != nil {
		upstream.Close()
		return executor.NewErrIterator(err)
	}
	upstream.Close()

	rows := make([]executor.Row, 0, len(order))
	for _, key := range order {
		rows = append(rows, folded[key])
	}
	return executor.NewRowIterator(rows)
}

// compiledSort is a barrier stage: drains upstream fully, then stable-
// sorts by vars/desc (§5: ties keep their relative input order).
type compiledSort struct {
	vars []pattern.Variable
	desc []bool
}

func (c compiledSort) run(_ *executor.Environment, upstream executor.Iterator) executor.Iterator {
	var rows []executor.Row
	for upstream.Next() {
		rows = append(rows, upstream.Row())
	}
	if err := upstream.Err(); err != nil {
		upstream.Close()
		return executor.NewErrIterator(err)
	}
	upstream.Close()

	sort.SliceStable(rows, func(i, j int) bool {
		for k, v := range c.vars {
			cmp := compareCell(rows[i].Get(v), rows[j].Get(v))
			if cmp == 0 {
				continue
			}
			if c.desc[k] {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return executor.NewRowIterator(rows)
}

// compiledReduce is a barrier stage over executor.RunReduce, chained
// reducer by reducer (each reducer regroups the same upstream rows
// independently per §4.7.2, so results merge column-wise into one
// output row per distinct GroupBy combination the first reducer saw).
type compiledReduce struct{ reducers []executor.Reducer }

func (c compiledReduce) run(env *executor.Environment, upstream executor.Iterator) executor.Iterator {
	var source []executor.Row
	for upstream.Next() {
		source = append(source, upstream.Row())
	}
	if err := upstream.Err(); err != nil {
		upstream.Close()
		return executor.NewErrIterator(err)
	}
	upstream.Close()

	if len(c.reducers) == 0 {
		return executor.NewRowIterator(nil)
	}

	rows, err := executor.RunReduce(env, executor.NewRowIterator(source), c.reducers[0])
	if err != nil {
		return executor.NewErrIterator(err)
	}
	for _, r := range c.reducers[1:] {
		more, err := executor.RunReduce(env, executor.NewRowIterator(source), r)
		if err != nil {
			return executor.NewErrIterator(err)
		}
		rows = mergeReduceColumn(rows, more, r)
	}
	return executor.NewRowIterator(rows)
}

// mergeReduceColumn folds extra's reducer result (keyed by extra's own
// GroupBy binding) into base, matching rows by their shared GroupBy
// projection so a Reduce stage with more than one reducer produces one
// row per group rather than one row stream per reducer.
func mergeReduceColumn(base, extra []executor.Row, r executor.Reducer) []executor.Row {
	index := make(map[string]executor.Row, len(extra))
	for _, row := range extra {
		key, err := projectionKey(row, r.GroupBy)
		if err != nil {
			continue
		}
		index[key] = row
	}
	out := make([]executor.Row, len(base))
	for i, row := range base {
		key, err := projectionKey(row, r.GroupBy)
		if err == nil {
			if match, ok := index[key]; ok {
				row = row.With(r.Var, match.Get(r.Var))
			}
		}
		out[i] = row
	}
	return out
}

// projectionKey builds a deterministic grouping/ordering key over vars
// from row, using thing.Value's canonical byte encoding for Value-kind
// cells (the same order-preserving layout thing.CompareValues already
// relies on) and plain numeric encodings for Type/Thing/Attribute
// cells, since executor's own sortKey/keyOf helpers are unexported and
// (unlike this package's key) don't cover Value-kind cells at all.
func projectionKey(row executor.Row, vars []pattern.Variable) (string, error) {
	var sb strings.Builder
	for _, v := range vars {
		val := row.Get(v)
		fmt.Fprintf(&sb, "%d:", val.Kind)
		switch val.Kind {
		case executor.TypeKind:
			fmt.Fprintf(&sb, "%d|", val.Type)
		case executor.ThingKind:
			fmt.Fprintf(&sb, "%d:%d|", val.Thing.Type, val.Thing.Inst)
		case executor.AttributeKind:
			fmt.Fprintf(&sb, "%d:%x:%d|", val.Attribute.Type, val.Attribute.HashPrefix, val.Attribute.Disambiguator)
		case executor.ValueKind:
			enc, err := val.Value.Canonical()
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, "%d:", val.Value.Type)
			sb.Write(enc)
			sb.WriteByte('|')
		default:
			sb.WriteByte('|')
		}
	}
	return sb.String(), nil
}

// compareCell orders two cells the same way projectionKey groups them,
// for SortStage.
func compareCell(a, b executor.VariableValue) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case executor.TypeKind:
		return cmpUint64(uint64(a.Type), uint64(b.Type))
	case executor.ThingKind:
		if a.Thing.Type != b.Thing.Type {
			return cmpUint64(uint64(a.Thing.Type), uint64(b.Thing.Type))
		}
		return cmpUint64(a.Thing.Inst, b.Thing.Inst)
	case executor.AttributeKind:
		if a.Attribute.Type != b.Attribute.Type {
			return cmpUint64(uint64(a.Attribute.Type), uint64(b.Attribute.Type))
		}
		if c := bytes.Compare(a.Attribute.HashPrefix[:], b.Attribute.HashPrefix[:]); c != 0 {
			return c
		}
		return cmpUint64(uint64(a.Attribute.Disambiguator), uint64(b.Attribute.Disambiguator))
	case executor.ValueKind:
		return thing.CompareValues(a.Value, b.Value)
	default:
		return 0
	}
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
