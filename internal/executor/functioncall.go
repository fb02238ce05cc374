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
	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/thing"
)

// runFunctionCallStep resolves call.Function in env.Functions, feeds
// it call.Args resolved from row, and binds the results to
// call.Assigned in order (§4.7). Unlike Assignment, a function error
// is terminal for the surrounding step per §7's general policy — §4.7
// only carves the drop-the-row exception out for Assignment.
func runFunctionCallStep(env *Environment, call pattern.FunctionCall, row Row) (Row, error) {
	fn, ok := env.Functions[call.Function]
	if !ok {
		return Row{}, cgerrors.New(cgerrors.KindFunctionTypeInference, "unknown function").
			WithContext("function", call.Function)
	}

	inputs := make([]thing.Value, 0, len(call.Args))
	for _, v := range call.Args {
		a := row.Get(v)
		if a.Kind != ValueKind {
			return Row{}, cgerrors.New(cgerrors.KindCallerSigValueTypeMismatch,
				"function argument is not a resolved value")
		}
		inputs = append(inputs, a.Value)
	}

	results, err := fn(inputs)
	if err != nil {
		return Row{}, err
	}
	if len(results) != len(call.Assigned) {
		return Row{}, cgerrors.New(cgerrors.KindCallerSignatureMismatch,
			"function result count does not match assigned variable count")
	}

	out := row
	for i, v := range call.Assigned {
		out = out.With(v, ValueOf(results[i]))
	}
	return out, nil
}
