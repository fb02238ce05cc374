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

package typesystem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conceptgraph/conceptgraph/internal/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(NewCatalog())
}

func TestManagerCreateAndSupertypes(t *testing.T) {
	m := newTestManager(t)

	animal, err := m.CreateEntityType("animal")
	require.NoError(t, err)
	dog, err := m.CreateEntityType("dog")
	require.NoError(t, err)
	require.NoError(t, m.SetSupertype(dog.ID, animal.ID))

	c := m.Catalog()
	require.Equal(t, []TypeID{animal.ID}, c.Supertypes(dog.ID))
	require.True(t, c.IsSubtypeOrSelf(dog.ID, animal.ID))
	require.False(t, c.IsSubtypeOrSelf(animal.ID, dog.ID))
}

func TestManagerRejectsDuplicateLabel(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateEntityType("person")
	require.NoError(t, err)
	_, err = m.CreateEntityType("person")
	require.Error(t, err)
}

func TestManagerRejectsCycle(t *testing.T) {
	m := newTestManager(t)
	a, err := m.CreateEntityType("a")
	require.NoError(t, err)
	b, err := m.CreateEntityType("b")
	require.NoError(t, err)
	require.NoError(t, m.SetSupertype(b.ID, a.ID))
	require.Error(t, m.SetSupertype(a.ID, b.ID))
}

func TestOwnsClosureNarrowing(t *testing.T) {
	m := newTestManager(t)
	person, err := m.CreateEntityType("person")
	require.NoError(t, err)
	student, err := m.CreateEntityType("student")
	require.NoError(t, err)
	require.NoError(t, m.SetSupertype(student.ID, person.ID))

	name, err := m.CreateAttributeType("name")
	require.NoError(t, err)
	require.NoError(t, m.SetValueType(name.ID, ValueTypeString))
	require.NoError(t, m.SetOwns(person.ID, name.ID, Ordered))

	closure := m.Catalog().OwnsClosure(student.ID)
	require.Contains(t, closure, name.ID)
	require.Equal(t, Ordered, closure[name.ID].Ordering)

	// Relaxing Ordered -> Unordered on the subtype must fail validation.
	require.NoError(t, m.SetOwns(student.ID, name.ID, Unordered))
	failure := m.Validate()
	require.NotNil(t, failure)
}

func TestRelatableRelationValidation(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateRelationType("friendship")
	require.NoError(t, err)

	failure := m.Validate()
	require.NotNil(t, failure)
	require.Equal(t, 1, failure.TotalCount)
}

func TestRelatesAndRoleQualifiedLabel(t *testing.T) {
	m := newTestManager(t)
	friendship, err := m.CreateRelationType("friendship")
	require.NoError(t, err)
	friend, err := m.CreateRelates(friendship.ID, "friend")
	require.NoError(t, err)

	require.Equal(t, "friendship:friend", friend.QualifiedLabel("friendship"))
	require.Nil(t, m.Validate())
}

func TestTypeCacheMemoizesAndTracksOwners(t *testing.T) {
	m := newTestManager(t)
	person, err := m.CreateEntityType("person")
	require.NoError(t, err)
	name, err := m.CreateAttributeType("name")
	require.NoError(t, err)
	require.NoError(t, m.SetValueType(name.ID, ValueTypeString))
	require.NoError(t, m.SetOwns(person.ID, name.ID, Unordered))

	cache := NewTypeCache(1, m.Catalog(), 0)
	owners := cache.OwnerTypesOf(name.ID)
	require.Contains(t, owners, person.ID)

	// second call hits the LRU path but returns identical data
	require.Equal(t, cache.Owns(person.ID), cache.Owns(person.ID))
}

func TestFlushAndLoadRoundTrip(t *testing.T) {
	m := newTestManager(t)
	person, err := m.CreateEntityType("person")
	require.NoError(t, err)
	student, err := m.CreateEntityType("student")
	require.NoError(t, err)
	require.NoError(t, m.SetSupertype(student.ID, person.ID))
	name, err := m.CreateAttributeType("name")
	require.NoError(t, err)
	require.NoError(t, m.SetValueType(name.ID, ValueTypeString))
	require.NoError(t, m.SetAnnotation(name.ID, Annotation{Kind: AnnotationKey}))
	require.NoError(t, m.SetOwns(person.ID, name.ID, Ordered))
	friendship, err := m.CreateRelationType("friendship")
	require.NoError(t, err)
	friend, err := m.CreateRelates(friendship.ID, "friend")
	require.NoError(t, err)
	require.NoError(t, m.SetPlays(person.ID, friend.ID))

	db, err := storage.Open(storage.Options{Dir: t.TempDir(), Backend: storage.BackendMemory})
	require.NoError(t, err)
	defer db.Close()

	batch := db.BeginWrite()
	m.Flush(batch)
	_, err = db.Commit(batch)
	require.NoError(t, err)

	snap := db.OpenReadSnapshot()
	defer snap.Close()

	loaded, err := Load(snap)
	require.NoError(t, err)

	loadedLabel, ok := loaded.Label(name.ID)
	require.True(t, ok)
	require.Equal(t, "name", loadedLabel)

	require.True(t, loaded.IsSubtypeOrSelf(student.ID, person.ID))

	closure := loaded.OwnsClosure(person.ID)
	require.Contains(t, closure, name.ID)
	require.Equal(t, Ordered, closure[name.ID].Ordering)
	require.True(t, hasAnnotation(closure[name.ID].Annotations, AnnotationKey))

	plays := loaded.PlaysClosure(person.ID)
	require.Contains(t, plays, friend.ID)

	relates := loaded.RelatesClosure(friendship.ID)
	require.Contains(t, relates, friend.ID)
}
