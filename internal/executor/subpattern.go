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

// runNegationStep fails row iff step.Inner yields at least one row
// (§4.7): it never contributes bindings, only filters.
func runNegationStep(env *Environment, step planner.NegationStep, row Row) (bool, error) {
	it := RunPlan(env, step.Inner, row)
	defer it.Close()
	found := it.Next()
	if err := it.Err(); err != nil {
		return false, err
	}
	return !found, nil
}

// runOptionalStep runs step.Inner against row: every row it yields is
// emitted with the inner pattern's bindings attached, and if it yields
// none, row passes through unchanged with those variables left unset
// (§4.7).
func runOptionalStep(env *Environment, step planner.OptionalStep, row Row) ([]Row, error) {
	it := RunPlan(env, step.Inner, row)
	defer it.Close()

	var out []Row
	for it.Next() {
		out = append(out, it.Row())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return []Row{row}, nil
	}
	return out, nil
}
