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

// IterationMode is the iteration direction §4.6 assigns a two-ended
// constraint (Has/Links) once the ordering's prefix fixes which of
// its endpoints are already bound.
type IterationMode uint8

const (
	// Unbound: neither endpoint is in the prefix yet — iterate the
	// constraint globally, producing both endpoints.
	Unbound IterationMode = iota + 1
	// UnboundInverted: one endpoint is available from a small cached
	// set (e.g. a just-resolved label) rather than row-by-row — iterate
	// per instance of that set and k-merge the per-instance streams.
	UnboundInverted
	// BoundFrom: one endpoint is fixed by the current row — scan the
	// other side from it.
	BoundFrom
	// BoundFromBoundTo: both endpoints are fixed by the row — the
	// constraint degenerates to a membership check.
	BoundFromBoundTo
)

func (m IterationMode) String() string {
	switch m {
	case Unbound:
		return "Unbound"
	case UnboundInverted:
		return "UnboundInverted"
	case BoundFrom:
		return "BoundFrom"
	case BoundFromBoundTo:
		return "BoundFromBoundTo"
	default:
		return "UnknownIterationMode"
	}
}

// IsCheck reports whether m means the constraint no longer produces
// new bindings — only verifies the current row (§4.7's CheckStep).
func (m IterationMode) IsCheck() bool { return m == BoundFromBoundTo }
