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

// Iterator is the lending-iterator contract every plan step implements
// (§4.7: "Iterator errors are terminal for the surrounding step"). A
// caller must drain Next() to false (or stop early and Close) before
// inspecting Err.
type Iterator interface {
	// Next advances to the next row. Returns false at end-of-stream or
	// on error — check Err to tell which.
	Next() bool
	// Row returns the current row. Valid only after Next returned true.
	Row() Row
	// Err returns the first error Next encountered, if any.
	Err() error
	// Close releases any resources (snapshot cursors) the iterator
	// holds. Safe to call multiple times.
	Close()
}

// sliceIterator adapts a pre-materialised []Row into an Iterator — the
// shape every base instruction scan and the in-memory intersection
// join produce their output as.
type sliceIterator struct {
	rows []Row
	pos  int
}

func newSliceIterator(rows []Row) *sliceIterator {
	return &sliceIterator{rows: rows, pos: -1}
}

// NewRowIterator exposes sliceIterator to other packages (internal/
// pipeline materialises a Select/Sort/Reduce barrier's output back
// into an Iterator the same way the base instruction scans do).
func NewRowIterator(rows []Row) Iterator { return newSliceIterator(rows) }

// NewErrIterator exposes errIterator to other packages, for surfacing
// a compile-time error through the Iterator contract uniformly.
func NewErrIterator(err error) Iterator { return errIterator{err: err} }

func (s *sliceIterator) Next() bool {
	s.pos++
	return s.pos < len(s.rows)
}

func (s *sliceIterator) Row() Row {
	return s.rows[s.pos]
}

func (s *sliceIterator) Err() error { return nil }
func (s *sliceIterator) Close()     {}

// errIterator is an Iterator that immediately fails with err — used to
// surface a plan-time or open-time error through the normal Iterator
// contract instead of a separate error return, so every step composes
// uniformly.
type errIterator struct{ err error }

func (e errIterator) Next() bool { return false }
func (e errIterator) Row() Row   { return Row{} }
func (e errIterator) Err() error { return e.err }
func (e errIterator) Close()     {}
