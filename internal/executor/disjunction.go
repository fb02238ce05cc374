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

// runDisjunctionStep runs every branch against row in turn and
// concatenates their output rows (§4.7: "the union of every branch's
// output rows"). Branches run sequentially rather than k-way merged —
// a Disjunction's branches are independent sub-patterns with no shared
// sort order to merge on, unlike an IntersectionStep's instructions.
func runDisjunctionStep(env *Environment, step planner.DisjunctionStep, row Row) ([]Row, error) {
	var out []Row
	for _, branch := range step.Branches {
		it := RunPlan(env, branch, row)
		for it.Next() {
			out = append(out, it.Row())
		}
		err := it.Err()
		it.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
