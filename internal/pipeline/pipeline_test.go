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

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conceptgraph/conceptgraph/internal/executor"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/storage"
	"github.com/conceptgraph/conceptgraph/internal/thing"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

const (
	varP pattern.Variable = iota + 1
	varA
	varPT
	varAT
)

func newTestDB(t *testing.T) *storage.Database {
	t.Helper()
	db, err := storage.Open(storage.Options{Dir: t.TempDir(), Backend: storage.BackendMemory})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// buildPersonAgeSchema creates person --owns--> age (long, unordered,
// not @key — so one person can own many age attribute instances, the
// fan-out §8 edge case 4 relies on).
func buildPersonAgeSchema(t *testing.T, db *storage.Database) (*typesystem.Catalog, typesystem.TypeID, typesystem.TypeID) {
	t.Helper()
	mgr := typesystem.NewManager(typesystem.NewCatalog())
	person, err := mgr.CreateEntityType("person")
	require.NoError(t, err)
	age, err := mgr.CreateAttributeType("age")
	require.NoError(t, err)
	require.NoError(t, mgr.SetValueType(age.ID, typesystem.ValueTypeLong))
	require.NoError(t, mgr.SetOwns(person.ID, age.ID, typesystem.Unordered))
	require.Nil(t, mgr.Validate())

	batch := db.BeginWrite()
	mgr.Flush(batch)
	_, err = db.Commit(batch)
	require.NoError(t, err)
	return mgr.Catalog(), person.ID, age.ID
}

func TestPipelineMatchSelectFoldsFanOutIntoMultiplicity(t *testing.T) {
	db := newTestDB(t)
	catalog, personType, ageType := buildPersonAgeSchema(t, db)
	cache := typesystem.NewTypeCache(db.CurrentSeq(), catalog, 0)
	tm := thing.NewManager(cache, thing.NewIDAllocator())

	snap := db.OpenReadSnapshot()
	batch := db.BeginWrite()
	counts := []int{1, 7, 2}
	for _, n := range counts {
		owner, err := tm.CreateEntity(snap, batch, personType)
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			attr, err := tm.CreateAttribute(snap, batch, ageType, thing.Long(int64(i)))
			require.NoError(t, err)
			require.NoError(t, tm.SetHas(snap, batch, owner, attr))
		}
	}
	snap.Close()
	_, err := db.Commit(batch)
	require.NoError(t, err)

	readSnap := db.OpenReadSnapshot()
	defer readSnap.Close()

	conj := pattern.Conjunction{
		Constraints: []pattern.Constraint{
			pattern.Has{Owner: varP, Attribute: varA},
		},
	}
	pipe, err := Compile([]Stage{
		MatchStage{Conjunction: conj},
		SelectStage{Vars: []pattern.Variable{varP}},
	}, catalog, nil, nil)
	require.NoError(t, err)

	env := &executor.Environment{Snapshot: readSnap, Things: tm, Catalog: catalog}
	it := pipe.IntoIterator(env, executor.NewRow(int(varA)+1))
	defer it.Close()

	var multiplicities []uint64
	for it.Next() {
		multiplicities = append(multiplicities, it.Row().Multiplicity)
	}
	require.NoError(t, it.Err())
	require.Len(t, multiplicities, 3)

	var total uint64
	for _, m := range multiplicities {
		total += m
	}
	require.Equal(t, uint64(10), total)
	require.ElementsMatch(t, []uint64{1, 7, 2}, multiplicities)
}

func TestPipelineInsertStageExtendsRowWithNewInstances(t *testing.T) {
	db := newTestDB(t)
	mgr := typesystem.NewManager(typesystem.NewCatalog())
	person, err := mgr.CreateEntityType("person")
	require.NoError(t, err)
	age, err := mgr.CreateAttributeType("age")
	require.NoError(t, err)
	require.NoError(t, mgr.SetValueType(age.ID, typesystem.ValueTypeLong))
	require.NoError(t, mgr.SetOwns(person.ID, age.ID, typesystem.Unordered))
	require.Nil(t, mgr.Validate())

	schemaBatch := db.BeginWrite()
	mgr.Flush(schemaBatch)
	_, err = db.Commit(schemaBatch)
	require.NoError(t, err)

	catalog := mgr.Catalog()
	cache := typesystem.NewTypeCache(db.CurrentSeq(), catalog, 0)
	tm := thing.NewManager(cache, thing.NewIDAllocator())

	conj := pattern.Conjunction{
		Constraints: []pattern.Constraint{
			pattern.Isa{Thing: varP, Type: varPT, Kind: pattern.IsaExact},
			pattern.Label{Var: varPT, Kind: typesystem.KindEntity, Literal: "person"},
			pattern.Isa{Thing: varA, Type: varAT, Kind: pattern.IsaExact},
			pattern.Label{Var: varAT, Kind: typesystem.KindAttribute, Literal: "age"},
			pattern.ExpressionBinding{Var: varA, Expr: pattern.ConstantExpr{Long: 30}},
			pattern.Has{Owner: varP, Attribute: varA},
		},
	}
	pipe, err := Compile([]Stage{InsertStage{Conjunction: conj}}, catalog, nil, nil)
	require.NoError(t, err)

	snap := db.OpenReadSnapshot()
	batch := db.BeginWrite()
	env := &executor.Environment{Snapshot: snap, Batch: batch, Things: tm, Catalog: catalog}
	it := pipe.IntoIterator(env, executor.NewRow(int(varAT)+1))

	require.True(t, it.Next())
	row := it.Row()
	require.False(t, it.Next())
	require.NoError(t, it.Err())
	it.Close()
	snap.Close()
	_, err = db.Commit(batch)
	require.NoError(t, err)

	require.Equal(t, executor.ThingKind, row.Get(varP).Kind)
	require.Equal(t, executor.AttributeKind, row.Get(varA).Kind)

	readSnap := db.OpenReadSnapshot()
	defer readSnap.Close()
	attrs, err := tm.HasAttributes(readSnap, row.Get(varP).Thing)
	require.NoError(t, err)
	require.Equal(t, []thing.AttributeID{row.Get(varA).Attribute}, attrs)
}

func TestPipelineSortOffsetLimitOrdersAndWindowsRows(t *testing.T) {
	db := newTestDB(t)
	catalog, personType, ageType := buildPersonAgeSchema(t, db)
	cache := typesystem.NewTypeCache(db.CurrentSeq(), catalog, 0)
	tm := thing.NewManager(cache, thing.NewIDAllocator())

	snap := db.OpenReadSnapshot()
	batch := db.BeginWrite()
	ages := []int64{30, 10, 20, 40}
	for _, age := range ages {
		owner, err := tm.CreateEntity(snap, batch, personType)
		require.NoError(t, err)
		attr, err := tm.CreateAttribute(snap, batch, ageType, thing.Long(age))
		require.NoError(t, err)
		require.NoError(t, tm.SetHas(snap, batch, owner, attr))
	}
	snap.Close()
	_, err := db.Commit(batch)
	require.NoError(t, err)

	readSnap := db.OpenReadSnapshot()
	defer readSnap.Close()

	conj := pattern.Conjunction{
		Constraints: []pattern.Constraint{
			pattern.Has{Owner: varP, Attribute: varA},
		},
	}
	pipe, err := Compile([]Stage{
		MatchStage{Conjunction: conj},
		SortStage{Vars: []pattern.Variable{varA}, Desc: []bool{false}},
		OffsetStage{N: 1},
		LimitStage{N: 2},
	}, catalog, nil, nil)
	require.NoError(t, err)

	env := &executor.Environment{Snapshot: readSnap, Things: tm, Catalog: catalog}
	it := pipe.IntoIterator(env, executor.NewRow(int(varA)+1))
	defer it.Close()

	var got []int64
	for it.Next() {
		got = append(got, it.Row().Get(varA).Value.Long)
	}
	require.NoError(t, it.Err())
	require.Equal(t, []int64{20, 30}, got)
}

func TestPipelineRequireDropsRowsStillMissingAVariable(t *testing.T) {
	pipe, err := Compile([]Stage{
		RequireStage{Vars: []pattern.Variable{varA}},
	}, typesystem.NewCatalog(), nil, nil)
	require.NoError(t, err)

	env := &executor.Environment{}
	bound := executor.NewRow(int(varA) + 1).With(varA, executor.ValueOf(thing.Long(1)))
	it := pipe.IntoIterator(env, bound)
	require.True(t, it.Next())
	require.False(t, it.Next())
	it.Close()

	unbound := executor.NewRow(int(varA) + 1)
	it = pipe.IntoIterator(env, unbound)
	require.False(t, it.Next())
	require.NoError(t, it.Err())
	it.Close()
}

func TestPipelineReduceSumGroupsByOwner(t *testing.T) {
	db := newTestDB(t)
	catalog, personType, ageType := buildPersonAgeSchema(t, db)
	cache := typesystem.NewTypeCache(db.CurrentSeq(), catalog, 0)
	tm := thing.NewManager(cache, thing.NewIDAllocator())

	snap := db.OpenReadSnapshot()
	batch := db.BeginWrite()

	alice, err := tm.CreateEntity(snap, batch, personType)
	require.NoError(t, err)
	for _, v := range []int64{10, 20} {
		attr, err := tm.CreateAttribute(snap, batch, ageType, thing.Long(v))
		require.NoError(t, err)
		require.NoError(t, tm.SetHas(snap, batch, alice, attr))
	}

	bob, err := tm.CreateEntity(snap, batch, personType)
	require.NoError(t, err)
	bobAttr, err := tm.CreateAttribute(snap, batch, ageType, thing.Long(5))
	require.NoError(t, err)
	require.NoError(t, tm.SetHas(snap, batch, bob, bobAttr))

	snap.Close()
	_, err = db.Commit(batch)
	require.NoError(t, err)

	readSnap := db.OpenReadSnapshot()
	defer readSnap.Close()

	conj := pattern.Conjunction{
		Constraints: []pattern.Constraint{
			pattern.Has{Owner: varP, Attribute: varA},
		},
	}
	pipe, err := Compile([]Stage{
		MatchStage{Conjunction: conj},
		ReduceStage{
			Reducers:   []executor.Reducer{{Kind: executor.ReduceSum, Var: varA, GroupBy: []pattern.Variable{varP}}},
			ValueTypes: []typesystem.ValueType{typesystem.ValueTypeLong},
		},
	}, catalog, nil, nil)
	require.NoError(t, err)

	env := &executor.Environment{Snapshot: readSnap, Things: tm, Catalog: catalog}
	it := pipe.IntoIterator(env, executor.NewRow(int(varA)+1))
	defer it.Close()

	sums := make(map[thing.ObjectID]float64)
	for it.Next() {
		row := it.Row()
		sums[row.Get(varP).Thing] = row.Get(varA).Value.Double
	}
	require.NoError(t, it.Err())
	require.Len(t, sums, 2)
	require.Equal(t, float64(30), sums[alice])
	require.Equal(t, float64(5), sums[bob])
}
