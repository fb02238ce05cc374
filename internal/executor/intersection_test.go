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

	"github.com/conceptgraph/conceptgraph/internal/inference"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/planner"
	"github.com/conceptgraph/conceptgraph/internal/thing"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

const (
	varIOwner pattern.Variable = iota + 100
	varIName
	varIAge
)

func TestRunIntersectionStepJoinsTwoHasInstructionsByOwner(t *testing.T) {
	db := newTestDB(t)
	mgr := typesystem.NewManager(typesystem.NewCatalog())
	person, err := mgr.CreateEntityType("person")
	require.NoError(t, err)
	name, err := mgr.CreateAttributeType("name")
	require.NoError(t, err)
	require.NoError(t, mgr.SetValueType(name.ID, typesystem.ValueTypeString))
	require.NoError(t, mgr.SetOwns(person.ID, name.ID, typesystem.Unordered))
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
	aliceName, err := tm.CreateAttribute(snap, batch, name.ID, thing.String("alice"))
	require.NoError(t, err)
	aliceAge, err := tm.CreateAttribute(snap, batch, age.ID, thing.Long(30))
	require.NoError(t, err)
	require.NoError(t, tm.SetHas(snap, batch, alice, aliceName))
	require.NoError(t, tm.SetHas(snap, batch, alice, aliceAge))

	// bob only has a name, so he must not survive the intersection.
	bob, err := tm.CreateEntity(snap, batch, person.ID)
	require.NoError(t, err)
	bobName, err := tm.CreateAttribute(snap, batch, name.ID, thing.String("bob"))
	require.NoError(t, err)
	require.NoError(t, tm.SetHas(snap, batch, bob, bobName))
	snap.Close()
	_, err = db.Commit(batch)
	require.NoError(t, err)

	readSnap := db.OpenReadSnapshot()
	defer readSnap.Close()

	env := &Environment{
		Snapshot: readSnap,
		Things:   tm,
		Catalog:  catalog,
		Inferred: &inference.Graph{
			Vertices: map[pattern.Variable]*inference.TypeSet{
				varIOwner: inference.NewTypeSet(person.ID),
			},
		},
	}

	step := planner.IntersectionStep{
		SortVar: varIOwner,
		Instructions: []planner.Instruction{
			{Constraint: pattern.Has{Owner: varIOwner, Attribute: varIName}, Mode: planner.Unbound},
			{Constraint: pattern.Has{Owner: varIOwner, Attribute: varIAge}, Mode: planner.Unbound},
		},
	}

	out, err := runIntersectionStep(env, step, NewRow(int(varIAge)+1))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, ThingValue(alice), out[0].Get(varIOwner))
	require.Equal(t, AttributeValueOf(aliceName), out[0].Get(varIName))
	require.Equal(t, AttributeValueOf(aliceAge), out[0].Get(varIAge))
}
