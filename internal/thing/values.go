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

// values.go encodes attribute values to the canonical byte form used
// both as the attribute's value-hash input (§4.1.4) and as its stored
// payload. Numeric types sort correctly as raw bytes so range
// constraints and ordered scans agree with value order; Decimal is
// backed by github.com/holiman/uint256 as a fixed-point integer scaled
// by 1e9, matching how the rest of the stack avoids float64 for
// money-like values.
package thing

import (
	"encoding/binary"
	"math"
	"sort"
	"time"

	"github.com/holiman/uint256"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// DecimalScale is the fixed-point scale backing ValueTypeDecimal: one
// unit of the Decimal's integer representation is 1e-9.
const DecimalScale = 1_000_000_000

// Value is a typed attribute value. Exactly one field group is
// populated, selected by Type.
type Value struct {
	Type typesystem.ValueType

	Bool     bool
	Long     int64
	Double   float64
	Decimal  *uint256.Int // unsigned magnitude, scaled by DecimalScale
	DecimalNeg bool
	Time     time.Time // Date/DateTime/DateTimeTZ
	TZName   string    // DateTimeTZ only
	Duration time.Duration
	Str      string
	Struct   map[string]Value
}

func Bool(b bool) Value   { return Value{Type: typesystem.ValueTypeBoolean, Bool: b} }
func Long(n int64) Value  { return Value{Type: typesystem.ValueTypeLong, Long: n} }
func Double(f float64) Value { return Value{Type: typesystem.ValueTypeDouble, Double: f} }
func String(s string) Value  { return Value{Type: typesystem.ValueTypeString, Str: s} }
func DateTime(t time.Time) Value {
	return Value{Type: typesystem.ValueTypeDateTime, Time: t}
}
func DurationValue(d time.Duration) Value {
	return Value{Type: typesystem.ValueTypeDuration, Duration: d}
}

// Canonical returns the deterministic, order-preserving byte encoding
// of v — the input to the attribute value-hash (§4.1.4) and the
// payload stored in DataAttributes.
func (v Value) Canonical() ([]byte, error) {
	switch v.Type {
	case typesystem.ValueTypeBoolean:
		if v.Bool {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case typesystem.ValueTypeLong:
		buf := make([]byte, 8)
		// Flip the sign bit so two's-complement integers sort the same
		// way as their unsigned big-endian byte representation.
		binary.BigEndian.PutUint64(buf, uint64(v.Long)^(1<<63))
		return buf, nil
	case typesystem.ValueTypeDouble:
		bits := math.Float64bits(v.Double)
		if v.Double < 0 {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, bits)
		return buf, nil
	case typesystem.ValueTypeDecimal:
		if v.Decimal == nil {
			return nil, cgerrors.New(cgerrors.KindValueTypeNotFound, "decimal value has no magnitude")
		}
		magnitude := v.Decimal.Bytes32()
		buf := make([]byte, 33)
		if v.DecimalNeg {
			buf[0] = 0
			for i := range magnitude {
				magnitude[i] = ^magnitude[i]
			}
		} else {
			buf[0] = 1
		}
		copy(buf[1:], magnitude[:])
		return buf, nil
	case typesystem.ValueTypeDate, typesystem.ValueTypeDateTime:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(v.Time.UTC().UnixNano())^(1<<63))
		return buf, nil
	case typesystem.ValueTypeDateTimeTZ:
		buf := make([]byte, 8+len(v.TZName))
		binary.BigEndian.PutUint64(buf, uint64(v.Time.UTC().UnixNano())^(1<<63))
		copy(buf[8:], v.TZName)
		return buf, nil
	case typesystem.ValueTypeDuration:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(int64(v.Duration))^(1<<63))
		return buf, nil
	case typesystem.ValueTypeString:
		return []byte(v.Str), nil
	case typesystem.ValueTypeStruct:
		return encodeStruct(v.Struct)
	default:
		return nil, cgerrors.New(cgerrors.KindValueTypeNotFound, "unsupported value type").WithContext("value_type", int(v.Type))
	}
}

// DecodeValue reverses Canonical: given the declared ValueType of the
// attribute that stored canonical (DataAttributes' payload is exactly
// Canonical's output), it reconstructs the Value an executor row
// needs to evaluate a Comparison or project an attribute's value.
func DecodeValue(vt typesystem.ValueType, canonical []byte) (Value, error) {
	switch vt {
	case typesystem.ValueTypeBoolean:
		if len(canonical) != 1 {
			return Value{}, cgerrors.New(cgerrors.KindDeserialize, "bad boolean attribute payload")
		}
		return Bool(canonical[0] != 0), nil
	case typesystem.ValueTypeLong:
		if len(canonical) != 8 {
			return Value{}, cgerrors.New(cgerrors.KindDeserialize, "bad long attribute payload")
		}
		return Long(int64(binary.BigEndian.Uint64(canonical) ^ (1 << 63))), nil
	case typesystem.ValueTypeDouble:
		if len(canonical) != 8 {
			return Value{}, cgerrors.New(cgerrors.KindDeserialize, "bad double attribute payload")
		}
		bits := binary.BigEndian.Uint64(canonical)
		if bits&(1<<63) != 0 {
			bits &^= 1 << 63
		} else {
			bits = ^bits
		}
		return Double(math.Float64frombits(bits)), nil
	case typesystem.ValueTypeDecimal:
		if len(canonical) != 33 {
			return Value{}, cgerrors.New(cgerrors.KindDeserialize, "bad decimal attribute payload")
		}
		neg := canonical[0] == 0
		var magnitude [32]byte
		copy(magnitude[:], canonical[1:])
		if neg {
			for i := range magnitude {
				magnitude[i] = ^magnitude[i]
			}
		}
		return Value{Type: typesystem.ValueTypeDecimal, Decimal: new(uint256.Int).SetBytes32(magnitude[:]), DecimalNeg: neg}, nil
	case typesystem.ValueTypeDate, typesystem.ValueTypeDateTime:
		if len(canonical) != 8 {
			return Value{}, cgerrors.New(cgerrors.KindDeserialize, "bad datetime attribute payload")
		}
		nanos := int64(binary.BigEndian.Uint64(canonical) ^ (1 << 63))
		return Value{Type: vt, Time: time.Unix(0, nanos).UTC()}, nil
	case typesystem.ValueTypeDateTimeTZ:
		if len(canonical) < 8 {
			return Value{}, cgerrors.New(cgerrors.KindDeserialize, "bad datetime-tz attribute payload")
		}
		nanos := int64(binary.BigEndian.Uint64(canonical[:8]) ^ (1 << 63))
		return Value{Type: vt, Time: time.Unix(0, nanos).UTC(), TZName: string(canonical[8:])}, nil
	case typesystem.ValueTypeDuration:
		if len(canonical) != 8 {
			return Value{}, cgerrors.New(cgerrors.KindDeserialize, "bad duration attribute payload")
		}
		return DurationValue(time.Duration(int64(binary.BigEndian.Uint64(canonical) ^ (1 << 63)))), nil
	case typesystem.ValueTypeString:
		return String(string(canonical)), nil
	case typesystem.ValueTypeStruct:
		fields, err := decodeStruct(canonical)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: typesystem.ValueTypeStruct, Struct: fields}, nil
	default:
		return Value{}, cgerrors.New(cgerrors.KindValueTypeNotFound, "unsupported value type").WithContext("value_type", int(vt))
	}
}

func decodeStruct(buf []byte) (map[string]Value, error) {
	read4 := func() (uint32, error) {
		if len(buf) < 4 {
			return 0, cgerrors.New(cgerrors.KindDeserialize, "truncated struct attribute payload")
		}
		n := binary.BigEndian.Uint32(buf[:4])
		buf = buf[4:]
		return n, nil
	}
	count, err := read4()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Value, count)
	for i := uint32(0); i < count; i++ {
		klen, err := read4()
		if err != nil {
			return nil, err
		}
		if uint32(len(buf)) < klen {
			return nil, cgerrors.New(cgerrors.KindDeserialize, "truncated struct field name")
		}
		key := string(buf[:klen])
		buf = buf[klen:]
		vlen, err := read4()
		if err != nil {
			return nil, err
		}
		if uint32(len(buf)) < vlen {
			return nil, cgerrors.New(cgerrors.KindDeserialize, "truncated struct field value")
		}
		// The wire format does not record a field's ValueType, so every
		// field decodes as a String holding that field's canonical bytes;
		// the original field types are not restored.
		out[key] = Value{Type: typesystem.ValueTypeString, Str: string(buf[:vlen])}
		buf = buf[vlen:]
	}
	return out, nil
}

func encodeStruct(fields map[string]Value) ([]byte, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := make([]byte, 0, 64)
	var tmp4 [4]byte
	binary.BigEndian.PutUint32(tmp4[:], uint32(len(keys)))
	buf = append(buf, tmp4[:]...)
	for _, k := range keys {
		binary.BigEndian.PutUint32(tmp4[:], uint32(len(k)))
		buf = append(buf, tmp4[:]...)
		buf = append(buf, k...)
		enc, err := fields[k].Canonical()
		if err != nil {
			return nil, err
		}
		binary.BigEndian.PutUint32(tmp4[:], uint32(len(enc)))
		buf = append(buf, tmp4[:]...)
		buf = append(buf, enc...)
	}
	return buf, nil
}

// CompatibleWith reports whether v's runtime shape matches vt, the
// AttributeType's declared ValueType — callers reject a mismatch
// before ever computing a canonical encoding.
func (v Value) CompatibleWith(vt typesystem.ValueType) bool {
	return vt == typesystem.ValueTypeNone || v.Type == vt
}
