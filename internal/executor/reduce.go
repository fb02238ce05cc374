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
	"encoding/binary"
	"math"
	"sort"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/thing"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// ReducerKind is one of §4.7.2's value-typed reduce instructions.
type ReducerKind uint8

const (
	ReduceCount ReducerKind = iota
	ReduceCountVar
	ReduceSum
	ReduceMin
	ReduceMax
	ReduceMean
	ReduceMedian
	ReduceStd
)

// Reducer is one Reduce stage instruction: Kind applied to Var
// (ignored for ReduceCount, which counts rows regardless of binding),
// grouped by GroupBy.
type Reducer struct {
	Kind    ReducerKind
	Var     pattern.Variable
	GroupBy []pattern.Variable
}

// CompileReducer validates r against the value-type category its
// input variable carries — Sum/Min/Max/Mean/Median/Std reject any
// ValueType other than Long/Double at plan time (§4.7.2:
// "UnsupportedValueTypeForReducer").
func CompileReducer(r Reducer, valueType typesystem.ValueType) error {
	if r.Kind == ReduceCount || r.Kind == ReduceCountVar {
		return nil
	}
	switch valueType {
	case typesystem.ValueTypeLong, typesystem.ValueTypeDouble:
		return nil
	default:
		return cgerrors.New(cgerrors.KindUnsupportedValueTypeForOp,
			"reducer does not support this value type").WithContext("valueType", uint64(valueType))
	}
}

type reduceGroupKey string

func groupKeyOf(row Row, groupBy []pattern.Variable) reduceGroupKey {
	var buf []byte
	for _, v := range groupBy {
		val := row.Get(v)
		k := keyOf(val)
		buf = append(buf, byte(k.kind))
		buf = binary.BigEndian.AppendUint64(buf, uint64(k.t))
		buf = binary.BigEndian.AppendUint64(buf, uint64(k.obj.Type))
		buf = binary.BigEndian.AppendUint64(buf, k.obj.Inst)
		buf = binary.BigEndian.AppendUint64(buf, uint64(k.attr.Type))
		buf = append(buf, k.attr.HashPrefix[:]...)
		buf = binary.BigEndian.AppendUint32(buf, k.attr.Disambiguator)
		if val.Kind == ValueKind {
			if enc, err := val.Value.Canonical(); err == nil {
				buf = binary.BigEndian.AppendUint32(buf, uint32(len(enc)))
				buf = append(buf, enc...)
			}
		}
	}
	return reduceGroupKey(buf)
}

// RunReduce consumes every row it yields and produces one output row
// per distinct GroupBy combination, with r.Var bound to the
// accumulated result.
func RunReduce(env *Environment, it Iterator, r Reducer) ([]Row, error) {
	defer it.Close()

	type accumulator struct {
		groupRow Row
		count    int64
		sum      float64
		min, max float64
		have     bool
		samples  []float64
	}
	groups := map[reduceGroupKey]*accumulator{}
	var order []reduceGroupKey

	for it.Next() {
		row := it.Row()
		key := groupKeyOf(row, r.GroupBy)
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{groupRow: row}
			groups[key] = acc
			order = append(order, key)
		}
		if r.Kind == ReduceCountVar && row.Get(r.Var).Kind == Empty {
			continue
		}
		acc.count++

		if r.Kind == ReduceCount || r.Kind == ReduceCountVar {
			continue
		}
		val := row.Get(r.Var).Value
		f := numericAsDouble(val)
		acc.samples = append(acc.samples, f)
		acc.sum += f
		if !acc.have || f < acc.min {
			acc.min = f
		}
		if !acc.have || f > acc.max {
			acc.max = f
		}
		acc.have = true
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(order))
	for _, key := range order {
		acc := groups[key]
		result := reduceResult(r.Kind, acc.count, acc.sum, acc.min, acc.max, acc.samples)
		out = append(out, acc.groupRow.With(r.Var, result))
	}
	return out, nil
}

func reduceResult(kind ReducerKind, count int64, sum, min, max float64, samples []float64) VariableValue {
	switch kind {
	case ReduceCount, ReduceCountVar:
		return ValueOf(thing.Long(count))
	case ReduceSum:
		return ValueOf(thing.Double(sum))
	case ReduceMin:
		return ValueOf(thing.Double(min))
	case ReduceMax:
		return ValueOf(thing.Double(max))
	case ReduceMean:
		if count == 0 {
			return ValueOf(thing.Double(0))
		}
		return ValueOf(thing.Double(sum / float64(len(samples))))
	case ReduceMedian:
		return ValueOf(thing.Double(median(samples)))
	case ReduceStd:
		return ValueOf(thing.Double(stddev(samples)))
	default:
		return VariableValue{}
	}
}

func median(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func stddev(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var mean float64
	for _, s := range samples {
		mean += s
	}
	mean /= float64(len(samples))
	var variance float64
	for _, s := range samples {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(samples))
	return math.Sqrt(variance)
}
