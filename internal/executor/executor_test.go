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
	"github.com/conceptgraph/conceptgraph/internal/storage"
	"github.com/conceptgraph/conceptgraph/internal/thing"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

const (
	varOwner pattern.Variable = iota + 1
	varAttr
)

func newTestDB(t *testing.T) *storage.Database {
	t.Helper()
	db, err := storage.Open(storage.Options{Dir: t.TempDir(), Backend: storage.BackendMemory})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// buildPersonNameSchema creates person --owns--> name (string).
func buildPersonNameSchema(t *testing.T, db *storage.Database) (*typesystem.Catalog, typesystem.TypeID, typesystem.TypeID) {
	t.Helper()
	mgr := typesystem.NewManager(typesystem.NewCatalog())
	person, err := mgr.CreateEntityType("person")
	require.NoError(t, err)
	name, err := mgr.CreateAttributeType("name")
	require.NoError(t, err)
	require.NoError(t, mgr.SetValueType(name.ID, typesystem.ValueTypeString))
	require.NoError(t, mgr.SetOwns(person.ID, name.ID, typesystem.Unordered))
	require.Nil(t, mgr.Validate())

	batch := db.BeginWrite()
	mgr.Flush(batch)
	_, err = db.Commit(batch)
	require.NoError(t, err)

	return mgr.Catalog(), person.ID, name.ID
}

func TestRunPlanMatchesHasEdgeUnbound(t *testing.T) {
	db := newTestDB(t)
	catalog, personType, nameType := buildPersonNameSchema(t, db)
	cache := typesystem.NewTypeCache(db.CurrentSeq(), catalog, 0)
	tm := thing.NewManager(cache, thing.NewIDAllocator())

	snap := db.OpenReadSnapshot()
	batch := db.BeginWrite()
	alice, err := tm.CreateEntity(snap, batch, personType)
	require.NoError(t, err)
	aliceName, err := tm.CreateAttribute(snap, batch, nameType, thing.String("alice"))
	require.NoError(t, err)
	require.NoError(t, tm.SetHas(snap, batch, alice, aliceName))
	snap.Close()
	_, err = db.Commit(batch)
	require.NoError(t, err)

	readSnap := db.OpenReadSnapshot()
	defer readSnap.Close()

	conj := pattern.Conjunction{
		Constraints: []pattern.Constraint{
			pattern.Has{Owner: varOwner, Attribute: varAttr},
		},
	}
	ctx := &planner.Context{
		Inferred: &inference.Graph{
			Vertices: map[pattern.Variable]*inference.TypeSet{
				varOwner: inference.NewTypeSet(personType),
			},
		},
	}
	plan, err := planner.PlanConjunction(conj, nil, ctx)
	require.NoError(t, err)

	env := &Environment{Snapshot: readSnap, Things: tm, Catalog: catalog, Inferred: ctx.Inferred}
	it := RunPlan(env, plan, NewRow(int(varAttr)+1))
	defer it.Close()

	var rows []Row
	for it.Next() {
		rows = append(rows, it.Row())
	}
	require.NoError(t, it.Err())
	require.Len(t, rows, 1)
	require.Equal(t, ThingValue(alice), rows[0].Get(varOwner))
	require.Equal(t, AttributeValueOf(aliceName), rows[0].Get(varAttr))
}

func TestRunPlanThingVertexFallbackScansFullInstanceSet(t *testing.T) {
	db := newTestDB(t)
	catalog, personType, _ := buildPersonNameSchema(t, db)
	cache := typesystem.NewTypeCache(db.CurrentSeq(), catalog, 0)
	tm := thing.NewManager(cache, thing.NewIDAllocator())

	snap := db.OpenReadSnapshot()
	batch := db.BeginWrite()
	alice, err := tm.CreateEntity(snap, batch, personType)
	require.NoError(t, err)
	bob, err := tm.CreateEntity(snap, batch, personType)
	require.NoError(t, err)
	snap.Close()
	_, err = db.Commit(batch)
	require.NoError(t, err)

	readSnap := db.OpenReadSnapshot()
	defer readSnap.Close()

	conj := pattern.Conjunction{
		Constraints: []pattern.Constraint{
			pattern.Isa{Thing: varOwner, Type: varAttr, Kind: pattern.IsaExact},
		},
	}
	ctx := &planner.Context{
		Inferred: &inference.Graph{
			Categories: map[pattern.Variable]pattern.Category{
				varOwner: pattern.CategoryThing,
				varAttr:  pattern.CategoryType,
			},
			Vertices: map[pattern.Variable]*inference.TypeSet{
				varOwner: inference.NewTypeSet(personType),
			},
		},
	}
	plan, err := planner.PlanConjunction(conj, nil, ctx)
	require.NoError(t, err)

	env := &Environment{Snapshot: readSnap, Things: tm, Catalog: catalog, Inferred: ctx.Inferred}
	it := RunPlan(env, plan, NewRow(int(varAttr)+1))
	defer it.Close()

	var owners []thing.ObjectID
	for it.Next() {
		owners = append(owners, it.Row().Get(varOwner).Thing)
	}
	require.NoError(t, it.Err())
	require.ElementsMatch(t, []thing.ObjectID{alice, bob}, owners)
}
