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

import (
	"github.com/conceptgraph/conceptgraph/internal/inference"
	"github.com/conceptgraph/conceptgraph/internal/storage"
	"github.com/conceptgraph/conceptgraph/internal/thing"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// Function is a built-in evaluated by a FunctionCallStep. Args arrive
// already resolved to Values in argument order; Results must be
// returned in the FunctionCall's Assigned order.
type Function func(args []thing.Value) (results []thing.Value, err error)

// FunctionRegistry resolves a pattern.FunctionCall's Function name.
type FunctionRegistry map[string]Function

// Environment is everything a Plan's Iterator tree needs to read or
// mutate instance data and resolve schema during execution — one
// Environment is built per query/pipeline stage and threaded down
// through every step (§4.7).
type Environment struct {
	Snapshot  *storage.ReadSnapshot
	Batch     *storage.WriteBatch
	Things    *thing.Manager
	Catalog   *typesystem.Catalog
	Inferred  *inference.Graph
	Functions FunctionRegistry
	Interrupt <-chan struct{}
}

// interrupted reports whether the caller's interrupt channel has
// fired, letting a long base scan bail out early (§4.7: iteration
// "may be interrupted between rows").
func (e *Environment) interrupted() bool {
	if e.Interrupt == nil {
		return false
	}
	select {
	case <-e.Interrupt:
		return true
	default:
		return false
	}
}
