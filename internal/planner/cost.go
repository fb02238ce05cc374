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

// Package planner implements §4.6: turning an annotated pattern block
// plus Statistics into a deterministic, greedy-ordered plan the
// executor can run directly.
package planner

// Relative costs for opening a fresh iterator versus advancing an
// already-open one, and the expected per-match check cost of the two
// predicate kinds that don't narrow via an index — mirrored from the
// teacher planner's OPEN_ITERATOR_RELATIVE_COST /
// ADVANCE_ITERATOR_RELATIVE_COST constants.
const (
	openIteratorRelativeCost    = 5.0
	advanceIteratorRelativeCost = 1.0
	regexExpectedChecksPerMatch = 2.0
	containsExpectedChecksPerMatch = 2.0
)

// Cost is §4.6's per-candidate cost estimate: an absolute cost plus
// the fraction of that cost attributable to I/O (as opposed to
// in-memory work), so combinators can distinguish "ten times the
// work, same I/O shape" from "ten times the work, ten times the I/O".
type Cost struct {
	Cost    float64
	IORatio float64
}

// ZeroCost is the identity for Chain/Join: adding it changes nothing.
var ZeroCost = Cost{}

// Chain composes a followed by b, run sequentially (a's output feeds
// b): costs add, and the combined I/O ratio is whichever dominates —
// a plan step inherits the worse of its parts' I/O-boundedness rather
// than averaging it away.
func Chain(a, b Cost) Cost {
	return Cost{Cost: a.Cost + b.Cost, IORatio: maxF64(a.IORatio, b.IORatio)}
}

// Join composes a and b where both must hold for a row to survive
// (e.g. two constraints on the same prefix): costs add like Chain, but
// kept as a distinct combinator name because a greedy search reasons
// about "adding one more constraint to the ordering" (Join) versus
// "then doing the next step" (Chain) — same arithmetic today, but
// named for where a future cost model might diverge.
func Join(a, b Cost) Cost {
	return Cost{Cost: a.Cost + b.Cost, IORatio: maxF64(a.IORatio, b.IORatio)}
}

// CombineParallel composes independent candidate costs considered
// side by side during a single greedy-selection round (not chosen
// together, just compared): takes the cheaper of the two, since
// that's what a min-cost selection does with them.
func CombineParallel(a, b Cost) Cost {
	if b.Cost < a.Cost {
		return b
	}
	return a
}

func maxF64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
