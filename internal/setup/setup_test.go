package setup

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/man10/strike/internal/maps"
	"github.com/man10/strike/internal/storage/memory"
	"github.com/man10/strike/pkg/core"
	"github.com/man10/strike/pkg/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	sessions *Sessions
	registry *maps.Registry
	host     *host.Recorder
	player   core.PlayerID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := host.NewRecorder(nil, "dust2")
	reg := maps.New(memory.New(), h, nil)
	p := uuid.New()
	h.SetName(p, "builder")
	return &fixture{
		sessions: NewSessions(reg, h, nil),
		registry: reg,
		host:     h,
		player:   p,
	}
}

func (f *fixture) standAt(x, y, z float64) {
	f.host.SetLocation(f.player, core.NewPosition("dust2", x, y, z, 90, 0))
}

func builtMap(id string) core.MapDefinition {
	at := func(x float64) core.Position { return core.NewPosition("dust2", x, 64, 0, 0, 0) }
	return core.MapDefinition{
		ID:          id,
		DisplayName: "Taken",
		World:       "dust2",
		LobbySpawn:  at(0),
		SideASpawn:  at(10),
		SideBSpawn:  at(-10),
		BombSites:   []core.BombSite{{Name: "A", Center: at(20), Radius: 3}},
	}
}

func (f *fixture) say(t *testing.T, input string) {
	t.Helper()
	handled, err := f.sessions.Handle(context.Background(), f.player, input)
	require.NoError(t, err)
	require.True(t, handled)
}

func (f *fixture) step(t *testing.T) Step {
	t.Helper()
	s, ok := f.sessions.Step(f.player)
	require.True(t, ok)
	return s
}

func TestWizard_FullRun(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Begin(f.player, "dust2"))
	assert.True(t, f.sessions.Active(f.player))

	f.say(t, "Dust II")
	f.standAt(0, 64, 0)
	f.say(t, "confirm")
	f.standAt(10, 64, 10)
	f.say(t, "confirm")
	f.standAt(-10, 64, -10)
	f.say(t, "CONFIRM")
	f.standAt(5, 64, 5)
	f.say(t, "confirm")
	f.say(t, "4.5")
	f.standAt(-5, 64, -5)
	f.say(t, "confirm")
	f.say(t, "6")
	f.say(t, "Valve")
	assert.Equal(t, StepDescription, f.step(t))
	assert.False(t, f.registry.Has("dust2"), "nothing is saved before the last step")
	f.say(t, "Classic bomb map")

	assert.False(t, f.sessions.Active(f.player))
	m, ok := f.registry.Get("dust2")
	require.True(t, ok)
	assert.Equal(t, "Dust II", m.DisplayName)
	assert.Equal(t, "Valve", m.Author)
	assert.Equal(t, "Classic bomb map", m.Description)
	assert.Equal(t, "dust2", m.World)
	assert.True(t, m.Enabled)
	assert.Equal(t, 10.0, m.SideASpawn.X())
	assert.Equal(t, -10.0, m.SideBSpawn.X())
	require.Len(t, m.BombSites, 2)
	assert.Equal(t, "A", m.BombSites[0].Name)
	assert.Equal(t, 4.5, m.BombSites[0].Radius)
	assert.Equal(t, "B", m.BombSites[1].Name)
	assert.Equal(t, 6.0, m.BombSites[1].Radius)
}

func TestWizard_SkipSiteBAndDefaults(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Begin(f.player, "aim"))
	f.standAt(1, 2, 3)

	f.say(t, "Aim Map")
	for i := 0; i < 4; i++ {
		f.say(t, "confirm")
	}
	f.say(t, "3")
	assert.Equal(t, StepSiteB, f.step(t))

	f.say(t, "skip")
	assert.Equal(t, StepAuthor, f.step(t))

	f.say(t, "back")
	assert.Equal(t, StepSiteB, f.step(t), "back from author returns to the skipped site")
	f.say(t, "skip")

	f.say(t, "skip")
	f.say(t, "skip")

	m, ok := f.registry.Get("aim")
	require.True(t, ok)
	assert.Equal(t, "builder", m.Author)
	assert.Empty(t, m.Description)
	require.Len(t, m.BombSites, 1)
	assert.Equal(t, "A", m.BombSites[0].Name)
}

func TestWizard_BackAfterSiteBConfirmed(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Begin(f.player, "nuke"))
	f.standAt(0, 0, 0)

	f.say(t, "Nuke")
	for i := 0; i < 4; i++ {
		f.say(t, "confirm")
	}
	f.say(t, "5")
	f.say(t, "confirm")
	f.say(t, "5")
	require.Equal(t, StepAuthor, f.step(t))

	f.say(t, "back")
	assert.Equal(t, StepSiteBRadius, f.step(t))

	f.say(t, "back")
	f.say(t, "back")
	assert.Equal(t, StepSiteARadius, f.step(t))
}

func TestWizard_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Begin(f.player, "train"))

	f.say(t, "   ")
	assert.Equal(t, StepMapName, f.step(t))
	f.say(t, "back")
	assert.Equal(t, StepMapName, f.step(t))

	f.say(t, "Train")
	f.say(t, "here")
	assert.Equal(t, StepLobbySpawn, f.step(t))

	f.say(t, "confirm")
	assert.Equal(t, StepLobbySpawn, f.step(t), "no known position")

	f.standAt(0, 0, 0)
	for i := 0; i < 4; i++ {
		f.say(t, "confirm")
	}
	for _, bad := range []string{"abc", "0", "-2", "NaN", "Inf"} {
		f.say(t, bad)
		assert.Equal(t, StepSiteARadius, f.step(t), bad)
	}

	msgs := f.host.Texts(f.player, host.CallMessage)
	assert.Contains(t, msgs, "[Strike] Please enter a display name")
	assert.Contains(t, msgs, "[Strike] You are already at the first step")
	assert.Contains(t, msgs, "[Strike] Please enter a positive number")
}

func TestWizard_Cancel(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Begin(f.player, "inferno"))
	f.say(t, "Inferno")

	f.say(t, "Cancel")
	assert.False(t, f.sessions.Active(f.player))
	assert.False(t, f.registry.Has("inferno"))
	assert.False(t, f.sessions.Cancel(f.player))

	handled, err := f.sessions.Handle(context.Background(), f.player, "hello")
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestBegin(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.Upsert(context.Background(), builtMap("office")))

	err := f.sessions.Begin(f.player, "office")
	assert.ErrorIs(t, err, core.ErrMapExists)
	assert.False(t, f.sessions.Active(f.player))

	assert.ErrorIs(t, f.sessions.Begin(f.player, "bad id"), core.ErrInvalidMap)

	require.NoError(t, f.sessions.Begin(f.player, "one"))
	f.say(t, "One")
	require.NoError(t, f.sessions.Begin(f.player, "two"))
	assert.Equal(t, StepMapName, f.step(t), "a new wizard replaces the old one")

	f.sessions.Drop(f.player)
	assert.False(t, f.sessions.Active(f.player))
}

type failingStore struct {
	*maps.Registry
}

func (failingStore) Create(context.Context, core.MapDefinition) error {
	return errors.New("disk full")
}

func TestWizard_SaveFailureKeepsDraft(t *testing.T) {
	f := newFixture(t)
	f.sessions = NewSessions(failingStore{f.registry}, f.host, nil)
	require.NoError(t, f.sessions.Begin(f.player, "vertigo"))
	f.standAt(0, 0, 0)

	f.say(t, "Vertigo")
	for i := 0; i < 4; i++ {
		f.say(t, "confirm")
	}
	f.say(t, "5")
	f.say(t, "skip")
	f.say(t, "skip")

	_, err := f.sessions.Handle(context.Background(), f.player, "skip")
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, StepDescription, f.step(t))
}

func TestWizard_RejectsSpawnInAnotherWorld(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Begin(f.player, "overpass"))
	f.say(t, "Overpass")
	f.standAt(0, 64, 0)
	f.say(t, "confirm")

	f.host.SetLocation(f.player, core.NewPosition("nether", 10, 64, 10, 0, 0))
	f.say(t, "confirm")
	assert.Equal(t, StepSideASpawn, f.step(t))
	assert.Contains(t, f.host.Texts(f.player, host.CallMessage),
		"[Strike] You are in world nether, but spawns must be in the lobby's world dust2")

	f.standAt(10, 64, 10)
	f.say(t, "confirm")
	assert.Equal(t, StepSideBSpawn, f.step(t))
}

func TestWizard_MapCreatedMeanwhile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Begin(f.player, "ancient"))
	f.standAt(0, 0, 0)

	f.say(t, "Ancient")
	for i := 0; i < 4; i++ {
		f.say(t, "confirm")
	}
	f.say(t, "5")
	f.say(t, "skip")
	f.say(t, "skip")

	require.NoError(t, f.registry.Upsert(context.Background(), builtMap("ancient")))

	_, err := f.sessions.Handle(context.Background(), f.player, "skip")
	assert.ErrorIs(t, err, core.ErrMapExists)
	assert.True(t, f.sessions.Active(f.player))
	assert.Equal(t, StepDescription, f.step(t))

	m, ok := f.registry.Get("ancient")
	require.True(t, ok)
	assert.Equal(t, "Taken", m.DisplayName, "the other map is left untouched")
	assert.Contains(t, f.host.Texts(f.player, host.CallMessage),
		"[Strike] A map named ancient was created meanwhile, type 'cancel' and start over with another id")
}
