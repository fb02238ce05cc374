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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/thing"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

const (
	varPerson pattern.Variable = iota + 1
	varPersonType
	varAge
	varAgeType
)

func TestCompileAndRunInsertCreatesEntityAndAttribute(t *testing.T) {
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
			pattern.Isa{Thing: varPerson, Type: varPersonType, Kind: pattern.IsaExact},
			pattern.Label{Var: varPersonType, Kind: typesystem.KindEntity, Literal: "person"},
			pattern.Isa{Thing: varAge, Type: varAgeType, Kind: pattern.IsaExact},
			pattern.Label{Var: varAgeType, Kind: typesystem.KindAttribute, Literal: "age"},
			pattern.ExpressionBinding{Var: varAge, Expr: pattern.ConstantExpr{Long: 30}},
			pattern.Has{Owner: varPerson, Attribute: varAge},
		},
	}
	plan, err := CompileInsert(conj, nil, catalog)
	require.NoError(t, err)
	require.Len(t, plan.Instructions, 3)

	snap := db.OpenReadSnapshot()
	batch := db.BeginWrite()
	env := &Environment{Snapshot: snap, Batch: batch, Things: tm, Catalog: catalog}
	row, err := RunInsert(env, plan, NewRow(int(varAgeType)+1))
	require.NoError(t, err)
	snap.Close()
	_, err = db.Commit(batch)
	require.NoError(t, err)

	require.Equal(t, ThingKind, row.Get(varPerson).Kind)
	require.Equal(t, AttributeKind, row.Get(varAge).Kind)

	readSnap := db.OpenReadSnapshot()
	defer readSnap.Close()
	attrs, err := tm.HasAttributes(readSnap, row.Get(varPerson).Thing)
	require.NoError(t, err)
	require.Equal(t, []thing.AttributeID{row.Get(varAge).Attribute}, attrs)
}

func TestCompileInsertRejectsIsaOnBoundVariable(t *testing.T) {
	mgr := typesystem.NewManager(typesystem.NewCatalog())
	_, err := mgr.CreateEntityType("person")
	require.NoError(t, err)
	require.Nil(t, mgr.Validate())

	conj := pattern.Conjunction{
		Constraints: []pattern.Constraint{
			pattern.Isa{Thing: varPerson, Type: varPersonType, Kind: pattern.IsaExact},
			pattern.Label{Var: varPersonType, Kind: typesystem.KindEntity, Literal: "person"},
		},
	}
	_, err = CompileInsert(conj, map[pattern.Variable]bool{varPerson: true}, mgr.Catalog())
	require.Error(t, err)
}

func TestCompileAndRunDeleteRemovesHasEdge(t *testing.T) {
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

	snap := db.OpenReadSnapshot()
	batch := db.BeginWrite()
	alice, err := tm.CreateEntity(snap, batch, person.ID)
	require.NoError(t, err)
	aliceAge, err := tm.CreateAttribute(snap, batch, age.ID, thing.Long(30))
	require.NoError(t, err)
	require.NoError(t, tm.SetHas(snap, batch, alice, aliceAge))
	snap.Close()
	_, err = db.Commit(batch)
	require.NoError(t, err)

	conj := pattern.Conjunction{
		Constraints: []pattern.Constraint{
			pattern.Has{Owner: varPerson, Attribute: varAge},
		},
	}
	plan, err := CompileDelete(conj, map[pattern.Variable]bool{varPerson: true, varAge: true}, catalog, nil)
	require.NoError(t, err)
	require.Len(t, plan.Instructions, 1)

	row := NewRow(int(varAge) + 1).With(varPerson, ThingValue(alice)).With(varAge, AttributeValueOf(aliceAge))

	delSnap := db.OpenReadSnapshot()
	delBatch := db.BeginWrite()
	env := &Environment{Snapshot: delSnap, Batch: delBatch, Things: tm, Catalog: catalog}
	require.NoError(t, RunDelete(env, plan, row))
	delSnap.Close()
	_, err = db.Commit(delBatch)
	require.NoError(t, err)

	readSnap := db.OpenReadSnapshot()
	defer readSnap.Close()
	attrs, err := tm.HasAttributes(readSnap, alice)
	require.NoError(t, err)
	require.Empty(t, attrs)
}
