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

package pattern

// Conjunction is a flat list of constraints plus nested sub-patterns
// (§3.4: "a block contains a conjunction of constraints ... nested
// patterns: disjunction, negation, optional").
type Conjunction struct {
	Constraints  []Constraint
	Disjunctions []Disjunction
	Negations    []Negation
	Optionals    []Optional
}

// Disjunction is a set of alternative conjunctions; a row satisfies it
// if it satisfies at least one branch.
type Disjunction struct {
	Branches []Conjunction
}

// Negation succeeds for a row iff its inner conjunction yields zero
// rows when evaluated against it.
type Negation struct {
	Inner Conjunction
}

// Optional behaves like Negation for rows where the inner conjunction
// yields zero rows (those rows pass through with its variables unset),
// but otherwise yields every row the inner conjunction produces.
type Optional struct {
	Inner Conjunction
}

// Variables returns every variable touched anywhere in c, including
// inside nested disjunctions/negations/optionals, deduplicated, in
// first-seen order.
func (c Conjunction) Variables() []Variable {
	seen := make(map[Variable]bool)
	var out []Variable
	add := func(v Variable) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, constraint := range c.Constraints {
		for _, v := range constraint.Variables() {
			add(v)
		}
	}
	for _, d := range c.Disjunctions {
		for _, branch := range d.Branches {
			for _, v := range branch.Variables() {
				add(v)
			}
		}
	}
	for _, n := range c.Negations {
		for _, v := range n.Inner.Variables() {
			add(v)
		}
	}
	for _, o := range c.Optionals {
		for _, v := range o.Inner.Variables() {
			add(v)
		}
	}
	return out
}

// SharedVariables returns the variables c.Variables() has in common
// with outer — the set a nested Disjunction/Negation/Optional must
// forward bindings for and, for a Disjunction, must union its
// branches' results back on.
func (c Conjunction) SharedVariables(outer map[Variable]bool) []Variable {
	var out []Variable
	for _, v := range c.Variables() {
		if outer[v] {
			out = append(out, v)
		}
	}
	return out
}

// Block is the root pattern of a functional unit (a query stage, or a
// function body): a single top-level conjunction.
type Block struct {
	Conjunction Conjunction
}
