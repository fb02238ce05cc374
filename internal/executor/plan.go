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

import "github.com/conceptgraph/conceptgraph/internal/planner"

// RunPlan evaluates plan against a single starting row and returns the
// Iterator over its output rows — the composition point every nested
// sub-plan (Negation/Optional/Disjunction) as well as the top-level
// Match stage call through (§4.7).
func RunPlan(env *Environment, plan *planner.Plan, start Row) Iterator {
	it := Iterator(newSliceIterator([]Row{start}))
	for _, step := range plan.Steps {
		it = newStepIterator(env, step, it)
	}
	return it
}

// stepIterator applies one Step to every row its upstream produces,
// lazily pulling the next upstream row once the current row's output
// is exhausted. A Step that can fan a single input row out to many
// output rows (IntersectionStep, OptionalStep, DisjunctionStep)
// buffers that row's whole output before advancing upstream; this
// keeps each step's own logic a plain "one row in, N rows out"
// function instead of a hand-rolled coroutine.
type stepIterator struct {
	env      *Environment
	step     planner.Step
	upstream Iterator

	pending []Row
	pos     int
	err     error
	done    bool
}

func newStepIterator(env *Environment, step planner.Step, upstream Iterator) *stepIterator {
	return &stepIterator{env: env, step: step, upstream: upstream, pos: -1}
}

func (s *stepIterator) Next() bool {
	if s.err != nil || s.done {
		return false
	}
	for {
		s.pos++
		if s.pos < len(s.pending) {
			return true
		}
		if !s.upstream.Next() {
			if err := s.upstream.Err(); err != nil {
				s.err = err
			}
			s.done = true
			return false
		}
		row := s.upstream.Row()
		rows, err := s.apply(row)
		if err != nil {
			s.err = err
			s.done = true
			return false
		}
		s.pending = rows
		s.pos = -1
	}
}

func (s *stepIterator) Row() Row   { return s.pending[s.pos] }
func (s *stepIterator) Err() error { return s.err }
func (s *stepIterator) Close()     { s.upstream.Close() }

// apply dispatches one upstream row through s.step, producing zero or
// more output rows.
func (s *stepIterator) apply(row Row) ([]Row, error) {
	switch step := s.step.(type) {
	case planner.IntersectionStep:
		return runIntersectionStep(s.env, step, row)

	case planner.CheckStep:
		ok, err := runCheckStep(s.env, step, row)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return []Row{row}, nil

	case planner.AssignmentStep:
		out, ok := runAssignmentStep(step.Binding, row)
		if !ok {
			return nil, nil
		}
		return []Row{out}, nil

	case planner.FunctionCallStep:
		out, err := runFunctionCallStep(s.env, step.Call, row)
		if err != nil {
			return nil, err
		}
		return []Row{out}, nil

	case planner.NegationStep:
		ok, err := runNegationStep(s.env, step, row)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return []Row{row}, nil

	case planner.OptionalStep:
		return runOptionalStep(s.env, step, row)

	case planner.DisjunctionStep:
		return runDisjunctionStep(s.env, step, row)

	default:
		return []Row{row}, nil
	}
}
