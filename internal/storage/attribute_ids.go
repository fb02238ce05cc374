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

package storage

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Attribute identity is value-based (§3.3, §4.4): two Put calls for
// the same type and value must land on the same instance id. Rather
// than storing full values as DataAttributes keys (unbounded key
// size), the key is prefixed by a fixed-width hash of the value, with
// a disambiguator suffix to break rare collisions.
const valueHashPrefixLen = 8

// ValueHashPrefix returns the fixed-width prefix of DataAttributes'
// composite key for a given attribute value: the 8-byte big-endian
// xxhash of its canonical encoding.
func ValueHashPrefix(canonicalValue []byte) [valueHashPrefixLen]byte {
	var out [valueHashPrefixLen]byte
	binary.BigEndian.PutUint64(out[:], xxhash.Sum64(canonicalValue))
	return out
}

// AttributeKey builds the DataAttributes logical key for a given
// type, value, and disambiguator: typeID || value-hash-prefix ||
// disambiguator. disambiguator starts at 0 and increments only on a
// genuine hash collision between two distinct values of the same
// type (§4.4).
func AttributeKey(typeID uint64, canonicalValue []byte, disambiguator uint32) []byte {
	prefix := ValueHashPrefix(canonicalValue)
	key := make([]byte, 8+valueHashPrefixLen+4)
	binary.BigEndian.PutUint64(key[0:8], typeID)
	copy(key[8:8+valueHashPrefixLen], prefix[:])
	binary.BigEndian.PutUint32(key[8+valueHashPrefixLen:], disambiguator)
	return key
}

// AttributeKeyPrefix returns the portion of AttributeKey shared by
// every disambiguator of the same (typeID, value) pair, for scanning
// past existing disambiguators when resolving a hash collision.
func AttributeKeyPrefix(typeID uint64, canonicalValue []byte) []byte {
	prefix := ValueHashPrefix(canonicalValue)
	key := make([]byte, 8+valueHashPrefixLen)
	binary.BigEndian.PutUint64(key[0:8], typeID)
	copy(key[8:], prefix[:])
	return key
}
