package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMap() MapDefinition {
	return MapDefinition{
		ID:          "dust2",
		DisplayName: "Dust II",
		World:       "world",
		Enabled:     true,
		LobbySpawn:  NewPosition("world", 0, 64, 0, 0, 0),
		SideASpawn:  NewPosition("world", 10, 64, 10, 90, 0),
		SideBSpawn:  NewPosition("world", -10, 64, -10, -90, 0),
		BombSites: []BombSite{
			{Name: "A", Center: NewPosition("world", 50, 64, 50, 0, 0), Radius: 3},
		},
	}
}

func TestBombSite_Contains(t *testing.T) {
	site := BombSite{Name: "A", Center: NewPosition("world", 0, 0, 0, 0, 0), Radius: 5}

	assert.True(t, site.Contains(NewPosition("world", 3, 0, 4, 0, 0)))
	assert.False(t, site.Contains(NewPosition("world", 3, 1, 4.5, 0, 0)))
	assert.False(t, site.Contains(NewPosition("nether", 0, 0, 0, 0, 0)))
}

func TestMapDefinition_DerivesDoNotAlias(t *testing.T) {
	base := testMap()

	moved := base.WithBombSite("A", NewPosition("world", 1, 2, 3, 0, 0), 4)
	added := base.WithBombSite("B", NewPosition("world", 9, 9, 9, 0, 0), 5)

	require.Len(t, base.BombSites, 1)
	assert.Equal(t, 50.0, base.BombSites[0].Center.X())
	assert.Equal(t, 1.0, moved.BombSites[0].Center.X())
	assert.Equal(t, 4.0, moved.BombSites[0].Radius)
	require.Len(t, added.BombSites, 2)
	assert.Equal(t, "B", added.BombSites[1].Name)

	spectator := base.WithSpawn(SpawnSpectator, NewPosition("world", 7, 7, 7, 0, 0))
	require.NotNil(t, spectator.SpectatorSpawn)
	assert.Nil(t, base.SpectatorSpawn)

	again := spectator.WithEnabled(false)
	again.SpectatorSpawn.Vec[0] = 100
	assert.Equal(t, 7.0, spectator.SpectatorSpawn.X())
}

func TestMapDefinition_WithBombSiteRadius(t *testing.T) {
	base := testMap()

	out, err := base.WithBombSiteRadius("a", 8)
	require.NoError(t, err)
	assert.Equal(t, 8.0, out.BombSites[0].Radius)
	assert.Equal(t, 3.0, base.BombSites[0].Radius)

	_, err = base.WithBombSiteRadius("B", 8)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = base.WithBombSiteRadius("A", 0)
	assert.True(t, errors.Is(err, ErrInvalidMap))
}

func TestMapDefinition_Validate(t *testing.T) {
	assert.NoError(t, testMap().Validate())

	noSites := testMap()
	noSites.BombSites = nil
	assert.ErrorIs(t, noSites.Validate(), ErrInvalidMap)

	dup := testMap().WithBombSite("B", NewPosition("world", 0, 0, 0, 0, 0), 3)
	dup.BombSites[1].Name = "a"
	assert.ErrorIs(t, dup.Validate(), ErrInvalidMap)

	noWorld := testMap()
	noWorld.World = ""
	assert.Error(t, noWorld.Validate())

	foreignSpawn := testMap().WithSpawn(SpawnSideB, NewPosition("nether", 0, 64, 0, 0, 0))
	err := foreignSpawn.Validate()
	assert.ErrorIs(t, err, ErrInvalidMap)
	assert.ErrorContains(t, err, `ct spawn is in world "nether"`)

	foreignSpectator := testMap().WithSpawn(SpawnSpectator, NewPosition("nether", 0, 64, 0, 0, 0))
	assert.ErrorIs(t, foreignSpectator.Validate(), ErrInvalidMap)

	foreignSite := testMap().WithBombSite("B", NewPosition("nether", 0, 64, 0, 0, 0), 3)
	assert.NoError(t, foreignSite.Validate(), "bomb sites may sit in another world")
}

func TestMapDefinition_Spawn(t *testing.T) {
	m := testMap()

	pos, ok := m.Spawn(SpawnFor(SideB))
	require.True(t, ok)
	assert.Equal(t, -10.0, pos.X())

	_, ok = m.Spawn(SpawnSpectator)
	assert.False(t, ok)
}

func TestErrorKinds(t *testing.T) {
	assert.ErrorIs(t, ErrSideFull, ErrCapacity)
	assert.ErrorIs(t, ErrAlreadyInMatch, ErrConflict)
	assert.ErrorIs(t, ErrNotInMatch, ErrNotFound)
	assert.ErrorIs(t, ErrNoAvailableMap, ErrResourceUnavailable)
	assert.ErrorIs(t, ErrAtCapacity, ErrResourceUnavailable)
	assert.NotErrorIs(t, ErrAtCapacity, ErrCapacity)
}
