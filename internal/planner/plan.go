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

// Step is one instruction of a Plan (§4.7), in the order the executor
// should run them.
type Step interface {
	stepNode()
}

// Instruction pairs a chosen constraint with the iteration mode the
// ordering resolved it to. ScanVar is set instead of Constraint for a
// synthetic fallback scan (a variable with no Has/Links/
// ExpressionBinding/FunctionCall of its own, e.g. a bare `$x isa
// person;`): the executor opens a full instance scan over ScanVar's
// inferred candidate types rather than iterating a constraint's index.
type Instruction struct {
	Constraint pattern.Constraint
	Mode       IterationMode
	ScanVar    Variable
}

// IntersectionStep groups one or more Instructions that share a sort
// variable: the executor opens each as a sorted iterator over that
// variable and intersects them, rather than nesting loops (§4.7).
type IntersectionStep struct {
	SortVar      Variable
	Instructions []Instruction
}

func (IntersectionStep) stepNode() {}

// CheckStep evaluates a fully-bound constraint (Comparison, Is, or a
// Has/Links whose endpoints are both already bound) against the
// current row without producing new bindings.
type CheckStep struct {
	Instruction Instruction
}

func (CheckStep) stepNode() {}

// AssignmentStep evaluates an ExpressionBinding against the current
// row and binds its result.
type AssignmentStep struct {
	Binding pattern.ExpressionBinding
}

func (AssignmentStep) stepNode() {}

// FunctionCallStep invokes a function against the current row's bound
// arguments and binds its results.
type FunctionCallStep struct {
	Call pattern.FunctionCall
}

func (FunctionCallStep) stepNode() {}

// NegationStep fails the current row iff its inner Plan yields at
// least one row.
type NegationStep struct {
	Inner *Plan
}

func (NegationStep) stepNode() {}

// OptionalStep runs its inner Plan against the current row; rows the
// inner plan yields replace the current row (bindings attached), and
// if it yields none, the current row passes through with the inner
// pattern's variables left unset.
type OptionalStep struct {
	Inner *Plan
}

func (OptionalStep) stepNode() {}

// DisjunctionStep runs each branch Plan against the current row and
// yields the union of every branch's output rows.
type DisjunctionStep struct {
	Branches []*Plan
}

func (DisjunctionStep) stepNode() {}

// Plan is the ordered, cost-chosen list of steps the executor runs to
// evaluate one Conjunction (§4.6, §4.7).
type Plan struct {
	Steps []Step
}
