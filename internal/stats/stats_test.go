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

package stats

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conceptgraph/conceptgraph/internal/storage"
	"github.com/conceptgraph/conceptgraph/internal/thing"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

func TestComputeCountsInstancesEdgesAndLinks(t *testing.T) {
	db, err := storage.Open(storage.Options{Dir: t.TempDir(), Backend: storage.BackendMemory})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mgr := typesystem.NewManager(typesystem.NewCatalog())
	person, err := mgr.CreateEntityType("person")
	require.NoError(t, err)
	name, err := mgr.CreateAttributeType("name")
	require.NoError(t, err)
	require.NoError(t, mgr.SetValueType(name.ID, typesystem.ValueTypeString))
	require.NoError(t, mgr.SetOwns(person.ID, name.ID, typesystem.Unordered))
	friendship, err := mgr.CreateRelationType("friendship")
	require.NoError(t, err)
	friend, err := mgr.CreateRelates(friendship.ID, "friend")
	require.NoError(t, err)
	require.NoError(t, mgr.SetPlays(person.ID, friend.ID))
	require.Nil(t, mgr.Validate())

	schemaBatch := db.BeginWrite()
	mgr.Flush(schemaBatch)
	_, err = db.Commit(schemaBatch)
	require.NoError(t, err)

	cache := typesystem.NewTypeCache(db.CurrentSeq(), mgr.Catalog(), 0)
	tm := thing.NewManager(cache, thing.NewIDAllocator())

	batch := db.BeginWrite()
	snap := db.OpenReadSnapshot()
	alice, err := tm.CreateEntity(snap, batch, person.ID)
	require.NoError(t, err)
	bob, err := tm.CreateEntity(snap, batch, person.ID)
	require.NoError(t, err)
	aliceName, err := tm.CreateAttribute(snap, batch, name.ID, thing.String("alice"))
	require.NoError(t, err)
	require.NoError(t, tm.SetHas(snap, batch, alice, aliceName))

	friendship1, err := tm.CreateRelation(snap, batch, friendship.ID)
	require.NoError(t, err)
	require.NoError(t, tm.AddPlayer(snap, batch, friendship1, friend.ID, alice))
	require.NoError(t, tm.AddPlayer(snap, batch, friendship1, friend.ID, bob))
	_, err = db.Commit(batch)
	require.NoError(t, err)
	snap.Close()

	readSnap := db.OpenReadSnapshot()
	t.Cleanup(readSnap.Close)
	st, err := Compute(readSnap, tm)
	require.NoError(t, err)

	require.Equal(t, int64(2), st.InstanceCount(person.ID))
	require.Equal(t, int64(1), st.InstanceCount(friendship.ID))
	require.Equal(t, int64(1), st.HasCount(person.ID, name.ID))
	require.Equal(t, int64(2), st.LinkCount(friendship.ID, friend.ID, person.ID))
	require.Equal(t, int64(2), st.TotalLinksForRole(friendship.ID, friend.ID))
	require.Equal(t, int64(1), st.TotalHasForOwner(person.ID))
}
