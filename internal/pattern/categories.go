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

// DeriveCategories walks every constraint in c (including nested
// disjunctions/negations/optionals) and assigns each variable the
// Category its constraint position implies — the same classification
// the teacher's VariableCategory derivation applies per constraint
// shape (Isa's thing side is Thing/Object, its type side is
// Type/ThingType/RoleType; Has's attribute side is Attribute; a
// Comparison or ExpressionBinding operand is Value). A variable a
// constraint only reaches indirectly (e.g. one side of an untyped Is)
// is left unassigned here; the caller merges in any category a prior
// pipeline stage already pinned down before handing this to
// inference.Build.
func DeriveCategories(c Conjunction) map[Variable]Category {
	out := make(map[Variable]Category)
	deriveInto(c, out)
	return out
}

func deriveInto(c Conjunction, out map[Variable]Category) {
	assign := func(v Variable, cat Category) {
		if _, ok := out[v]; !ok {
			out[v] = cat
		}
	}
	for _, constraint := range c.Constraints {
		switch k := constraint.(type) {
		case Isa:
			assign(k.Thing, CategoryThing)
			assign(k.Type, CategoryType)
		case Sub:
			assign(k.Sub, CategoryType)
			assign(k.Super, CategoryType)
		case Label:
			assign(k.Var, CategoryType)
		case Has:
			assign(k.Owner, CategoryThing)
			assign(k.Attribute, CategoryAttribute)
		case Links:
			assign(k.Relation, CategoryThing)
			assign(k.Player, CategoryThing)
			if k.Role != 0 {
				assign(k.Role, CategoryType)
			}
		case Owns:
			assign(k.Owner, CategoryType)
			assign(k.Attr, CategoryType)
		case Relates:
			assign(k.Relation, CategoryType)
			assign(k.Role, CategoryType)
		case Plays:
			assign(k.Player, CategoryType)
			assign(k.Role, CategoryType)
		case Comparison:
			assign(k.LHS, CategoryValue)
			assign(k.RHS, CategoryValue)
		case ExpressionBinding:
			assign(k.Var, CategoryValue)
			for _, in := range k.Expr.Inputs() {
				assign(in, CategoryValue)
			}
		case FunctionCall:
			for _, v := range k.Args {
				assign(v, CategoryValue)
			}
			for _, v := range k.Assigned {
				assign(v, CategoryValue)
			}
		}
	}
	for _, d := range c.Disjunctions {
		for _, branch := range d.Branches {
			deriveInto(branch, out)
		}
	}
	for _, n := range c.Negations {
		deriveInto(n.Inner, out)
	}
	for _, o := range c.Optionals {
		deriveInto(o.Inner, out)
	}
}
