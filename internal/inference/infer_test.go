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

package inference

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
	"github.com/conceptgraph/conceptgraph/internal/pattern"
	"github.com/conceptgraph/conceptgraph/internal/typesystem"
)

// buildCatalog creates:
//
//	animal <- dog, cat
//	person owns name (string); dog owns name too
//	ownership relates owner, played by person; relates pet, played by animal
func buildCatalog(t *testing.T) (cat *typesystem.Catalog, person, dog, catType, name, ownership, ownerRole, petRole typesystem.TypeID) {
	t.Helper()
	mgr := typesystem.NewManager(typesystem.NewCatalog())

	personT, err := mgr.CreateEntityType("person")
	require.NoError(t, err)
	animalT, err := mgr.CreateEntityType("animal")
	require.NoError(t, err)
	dogT, err := mgr.CreateEntityType("dog")
	require.NoError(t, err)
	require.NoError(t, mgr.SetSupertype(dogT.ID, animalT.ID))
	catT, err := mgr.CreateEntityType("cat")
	require.NoError(t, err)
	require.NoError(t, mgr.SetSupertype(catT.ID, animalT.ID))

	nameT, err := mgr.CreateAttributeType("name")
	require.NoError(t, err)
	require.NoError(t, mgr.SetValueType(nameT.ID, typesystem.ValueTypeString))
	require.NoError(t, mgr.SetOwns(personT.ID, nameT.ID, typesystem.Unordered))
	require.NoError(t, mgr.SetOwns(animalT.ID, nameT.ID, typesystem.Unordered))

	ownershipT, err := mgr.CreateRelationType("ownership")
	require.NoError(t, err)
	ownerRoleT, err := mgr.CreateRelates(ownershipT.ID, "owner")
	require.NoError(t, err)
	petRoleT, err := mgr.CreateRelates(ownershipT.ID, "pet")
	require.NoError(t, err)
	require.NoError(t, mgr.SetPlays(personT.ID, ownerRoleT.ID))
	require.NoError(t, mgr.SetPlays(animalT.ID, petRoleT.ID))

	require.Nil(t, mgr.Validate())

	return mgr.Catalog(), personT.ID, dogT.ID, catT.ID, nameT.ID, ownershipT.ID, ownerRoleT.ID, petRoleT.ID
}

func TestInferNarrowsOwnerThroughHas(t *testing.T) {
	cat, person, _, _, name, _, _, _ := buildCatalog(t)

	const vOwner, vAttr pattern.Variable = 1, 2
	conj := pattern.Conjunction{Constraints: []pattern.Constraint{
		pattern.Has{Owner: vOwner, Attribute: vAttr},
		pattern.Label{Var: vOwner, Kind: typesystem.KindEntity, Literal: "person"},
	}}
	categories := map[pattern.Variable]pattern.Category{
		vOwner: pattern.CategoryThing,
		vAttr:  pattern.CategoryAttribute,
	}

	g, err := Build(cat, categories, conj)
	require.NoError(t, err)
	require.NoError(t, g.Infer())

	require.True(t, g.Vertices[vOwner].Contains(person))
	require.Equal(t, 1, g.Vertices[vOwner].Len())
	require.True(t, g.Vertices[vAttr].Contains(name))
}

func TestInferPropagatesLinksBothWays(t *testing.T) {
	cat, person, _, catType, _, ownership, ownerRole, petRole := buildCatalog(t)
	_ = catType

	const vRelation, vPlayer, vRole pattern.Variable = 1, 2, 3
	conj := pattern.Conjunction{Constraints: []pattern.Constraint{
		pattern.Links{Relation: vRelation, Player: vPlayer, Role: vRole},
		pattern.Label{Var: vRelation, Kind: typesystem.KindRelation, Literal: "ownership"},
		pattern.Label{Var: vRole, Kind: typesystem.KindRole, Literal: "ownership:owner"},
	}}
	categories := map[pattern.Variable]pattern.Category{
		vRelation: pattern.CategoryThing,
		vPlayer:   pattern.CategoryThing,
		vRole:     pattern.CategoryType,
	}

	g, err := Build(cat, categories, conj)
	require.NoError(t, err)
	require.NoError(t, g.Infer())

	require.True(t, g.Vertices[vRelation].Contains(ownership))
	require.True(t, g.Vertices[vRole].Contains(ownerRole))
	require.True(t, g.Vertices[vPlayer].Contains(person))
	require.False(t, g.Vertices[vPlayer].Contains(petRole))
}

func TestInferUnsatisfiablePattern(t *testing.T) {
	cat, person, dog, _, _, _, _, petRole := buildCatalog(t)
	_ = dog

	const vPlayer, vRole pattern.Variable = 1, 2
	conj := pattern.Conjunction{Constraints: []pattern.Constraint{
		pattern.Plays{Player: vPlayer, Role: vRole},
		pattern.Label{Var: vPlayer, Kind: typesystem.KindEntity, Literal: "person"},
		pattern.Label{Var: vRole, Kind: typesystem.KindRole, Literal: "ownership:pet"},
	}}
	categories := map[pattern.Variable]pattern.Category{
		vPlayer: pattern.CategoryThing,
		vRole:   pattern.CategoryType,
	}

	g, err := Build(cat, categories, conj)
	require.NoError(t, err)

	// person never plays pet (only animal/dog/cat do), so the fixpoint
	// must collapse vPlayer to empty.
	err = g.Infer()
	require.Error(t, err)
	var cgErr *cgerrors.Error
	require.ErrorAs(t, err, &cgErr)
	require.Equal(t, cgerrors.KindUnsatisfiablePattern, cgErr.Kind)

	require.False(t, g.Vertices[vPlayer].Contains(person))
	require.False(t, g.Vertices[vRole].Contains(petRole))
}

func TestInferDisjunctionUnionsBackOntoOuter(t *testing.T) {
	cat, person, dog, catType, _, _, _, _ := buildCatalog(t)

	const vThing pattern.Variable = 1
	conj := pattern.Conjunction{
		Disjunctions: []pattern.Disjunction{{
			Branches: []pattern.Conjunction{
				{Constraints: []pattern.Constraint{pattern.Label{Var: vThing, Kind: typesystem.KindEntity, Literal: "dog"}}},
				{Constraints: []pattern.Constraint{pattern.Label{Var: vThing, Kind: typesystem.KindEntity, Literal: "cat"}}},
			},
		}},
	}
	categories := map[pattern.Variable]pattern.Category{vThing: pattern.CategoryThing}

	g, err := Build(cat, categories, conj)
	require.NoError(t, err)
	require.NoError(t, g.Infer())

	require.True(t, g.Vertices[vThing].Contains(dog))
	require.True(t, g.Vertices[vThing].Contains(catType))
	require.False(t, g.Vertices[vThing].Contains(person))
	require.Equal(t, 2, g.Vertices[vThing].Len())
}
