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

// Package pattern implements the pattern IR of §3.4: blocks of
// constraints over variables, consumed by the type inference pass and
// the planner.
package pattern

import "fmt"

// Variable identifies a pattern variable within a block. Variables are
// assigned a static, deterministic ordering at parse time (§4.5 design
// note 1), so Variable is simply that ordinal.
type Variable uint32

func (v Variable) String() string { return fmt.Sprintf("$%d", uint32(v)) }

// Category classifies what kind of value a variable can be bound to
// (§3.4). List categories hold an ordered sequence of the
// corresponding singular category.
type Category uint8

const (
	CategoryType Category = iota + 1
	CategoryThing
	CategoryAttribute
	CategoryValue
	CategoryThingList
	CategoryValueList
)

func (c Category) String() string {
	switch c {
	case CategoryType:
		return "Type"
	case CategoryThing:
		return "Thing"
	case CategoryAttribute:
		return "Attribute"
	case CategoryValue:
		return "Value"
	case CategoryThingList:
		return "ThingList"
	case CategoryValueList:
		return "ValueList"
	default:
		return "Unknown"
	}
}

// IsList reports whether c is one of the List variants.
func (c Category) IsList() bool { return c == CategoryThingList || c == CategoryValueList }
