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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conceptgraph/conceptgraph/internal/storage"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

func newTestDB(t *testing.T) *storage.Database {
	t.Helper()
	db, err := storage.Open(storage.Options{Dir: t.TempDir(), Backend: storage.BackendMemory})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// buildSchema creates person --owns--> name (cardinality 1..1), and
// friendship relates friend, played by person.
func buildSchema(t *testing.T, db *storage.Database) (*typesystem.Catalog, typesystem.TypeID, typesystem.TypeID, typesystem.TypeID, typesystem.TypeID) {
	t.Helper()
	mgr := typesystem.NewManager(typesystem.NewCatalog())
	person, err := mgr.CreateEntityType("person")
	require.NoError(t, err)
	name, err := mgr.CreateAttributeType("name")
	require.NoError(t, err)
	require.NoError(t, mgr.SetValueType(name.ID, typesystem.ValueTypeString))
	require.NoError(t, mgr.SetOwns(person.ID, name.ID, typesystem.Unordered))
	require.NoError(t, mgr.SetAnnotation(name.ID, typesystem.Annotation{Kind: typesystem.AnnotationKey}))

	friendship, err := mgr.CreateRelationType("friendship")
	require.NoError(t, err)
	friend, err := mgr.CreateRelates(friendship.ID, "friend")
	require.NoError(t, err)
	require.NoError(t, mgr.SetPlays(person.ID, friend.ID))
	require.Nil(t, mgr.Validate())

	batch := db.BeginWrite()
	mgr.Flush(batch)
	_, err = db.Commit(batch)
	require.NoError(t, err)

	return mgr.Catalog(), person.ID, name.ID, friendship.ID, friend.ID
}

func TestCreateEntityAndHas(t *testing.T) {
	db := newTestDB(t)
	catalog, personType, nameType, _, _ := buildSchema(t, db)
	cache := typesystem.NewTypeCache(db.CurrentSeq(), catalog, 0)
	alloc := NewIDAllocator()
	mgr := NewManager(cache, alloc)

	snap := db.OpenReadSnapshot()
	batch := db.BeginWrite()

	alice, err := mgr.CreateEntity(snap, batch, personType)
	require.NoError(t, err)

	attr, err := mgr.CreateAttribute(snap, batch, nameType, String("alice"))
	require.NoError(t, err)

	require.NoError(t, mgr.SetHas(snap, batch, alice, attr))
	snap.Close()

	commitSeq, err := db.Commit(batch)
	require.NoError(t, err)

	readSnap := db.OpenReadSnapshot()
	defer readSnap.Close()
	require.Equal(t, commitSeq, readSnap.Seq())

	attrs, err := mgr.HasAttributes(readSnap, alice)
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	require.Equal(t, attr, attrs[0])

	failure := mgr.Finalise(readSnap, []ObjectID{alice})
	require.Nil(t, failure)
}

func TestOrderedOwnsReplacesWholeList(t *testing.T) {
	db := newTestDB(t)
	mgr0 := typesystem.NewManager(typesystem.NewCatalog())
	person, err := mgr0.CreateEntityType("person")
	require.NoError(t, err)
	nickname, err := mgr0.CreateAttributeType("nickname")
	require.NoError(t, err)
	require.NoError(t, mgr0.SetValueType(nickname.ID, typesystem.ValueTypeString))
	require.NoError(t, mgr0.SetOwns(person.ID, nickname.ID, typesystem.Ordered))
	require.Nil(t, mgr0.Validate())
	batch0 := db.BeginWrite()
	mgr0.Flush(batch0)
	_, err = db.Commit(batch0)
	require.NoError(t, err)

	cache := typesystem.NewTypeCache(db.CurrentSeq(), mgr0.Catalog(), 0)
	alloc := NewIDAllocator()
	mgr := NewManager(cache, alloc)

	snap := db.OpenReadSnapshot()
	batch := db.BeginWrite()
	frank, err := mgr.CreateEntity(snap, batch, person.ID)
	require.NoError(t, err)
	a1, err := mgr.CreateAttribute(snap, batch, nickname.ID, String("frankie"))
	require.NoError(t, err)
	a2, err := mgr.CreateAttribute(snap, batch, nickname.ID, String("frank-the-tank"))
	require.NoError(t, err)
	require.NoError(t, mgr.SetOrderedOwns(snap, batch, frank, nickname.ID, []AttributeID{a1, a2}))
	snap.Close()
	_, err = db.Commit(batch)
	require.NoError(t, err)

	readSnap := db.OpenReadSnapshot()
	ordered, err := mgr.OrderedAttributes(readSnap, frank, nickname.ID)
	require.NoError(t, err)
	require.Equal(t, []AttributeID{a1, a2}, ordered)
	readSnap.Close()

	snap2 := db.OpenReadSnapshot()
	batch2 := db.BeginWrite()
	require.NoError(t, mgr.SetOrderedOwns(snap2, batch2, frank, nickname.ID, []AttributeID{a2}))
	snap2.Close()
	_, err = db.Commit(batch2)
	require.NoError(t, err)

	finalSnap := db.OpenReadSnapshot()
	defer finalSnap.Close()
	ordered, err = mgr.OrderedAttributes(finalSnap, frank, nickname.ID)
	require.NoError(t, err)
	require.Equal(t, []AttributeID{a2}, ordered)
}

func TestCreateAttributeIsIdempotentByValue(t *testing.T) {
	db := newTestDB(t)
	catalog, _, nameType, _, _ := buildSchema(t, db)
	cache := typesystem.NewTypeCache(db.CurrentSeq(), catalog, 0)
	alloc := NewIDAllocator()
	mgr := NewManager(cache, alloc)

	snap := db.OpenReadSnapshot()
	batch := db.BeginWrite()
	a1, err := mgr.CreateAttribute(snap, batch, nameType, String("bob"))
	require.NoError(t, err)
	snap.Close()
	_, err = db.Commit(batch)
	require.NoError(t, err)

	snap2 := db.OpenReadSnapshot()
	defer snap2.Close()
	batch2 := db.BeginWrite()
	a2, err := mgr.CreateAttribute(snap2, batch2, nameType, String("bob"))
	require.NoError(t, err)

	require.Equal(t, a1, a2)
}

func TestCardinalityViolationSurfacesOnFinalise(t *testing.T) {
	db := newTestDB(t)
	catalog, personType, nameType, _, _ := buildSchema(t, db)
	cache := typesystem.NewTypeCache(db.CurrentSeq(), catalog, 0)
	alloc := NewIDAllocator()
	mgr := NewManager(cache, alloc)

	snap := db.OpenReadSnapshot()
	batch := db.BeginWrite()
	carol, err := mgr.CreateEntity(snap, batch, personType)
	require.NoError(t, err)
	snap.Close()
	_, err = db.Commit(batch)
	require.NoError(t, err)

	readSnap := db.OpenReadSnapshot()
	defer readSnap.Close()
	// carol owns zero names, but name is @key (cardinality exactly 1).
	failure := mgr.Finalise(readSnap, []ObjectID{carol})
	require.NotNil(t, failure)
	require.Equal(t, 1, failure.TotalCount)
	_ = nameType
}

func TestAddPlayerAndDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	catalog, personType, nameType, friendshipType, friendRole := buildSchema(t, db)
	cache := typesystem.NewTypeCache(db.CurrentSeq(), catalog, 0)
	alloc := NewIDAllocator()
	mgr := NewManager(cache, alloc)

	snap := db.OpenReadSnapshot()
	batch := db.BeginWrite()
	dave, err := mgr.CreateEntity(snap, batch, personType)
	require.NoError(t, err)
	erin, err := mgr.CreateEntity(snap, batch, personType)
	require.NoError(t, err)
	rel, err := mgr.CreateRelation(snap, batch, friendshipType)
	require.NoError(t, err)
	require.NoError(t, mgr.AddPlayer(snap, batch, rel, friendRole, dave))
	require.NoError(t, mgr.AddPlayer(snap, batch, rel, friendRole, erin))
	snap.Close()
	_, err = db.Commit(batch)
	require.NoError(t, err)

	readSnap := db.OpenReadSnapshot()
	players, err := mgr.RolePlayers(readSnap, rel)
	require.NoError(t, err)
	require.Len(t, players, 2)
	readSnap.Close()

	snap2 := db.OpenReadSnapshot()
	batch2 := db.BeginWrite()
	require.NoError(t, mgr.Delete(snap2, batch2, dave))
	snap2.Close()
	_, err = db.Commit(batch2)
	require.NoError(t, err)

	finalSnap := db.OpenReadSnapshot()
	defer finalSnap.Close()
	relations, err := mgr.RelationsPlayedIn(finalSnap, dave)
	require.NoError(t, err)
	require.Empty(t, relations)

	remaining, err := mgr.RolePlayers(finalSnap, rel)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	_ = nameType
}
