package coordinator

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/man10/strike/internal/config"
	"github.com/man10/strike/internal/match"
	"github.com/man10/strike/pkg/core"
	"github.com/man10/strike/pkg/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticMaps []core.MapDefinition

func (s staticMaps) EnabledMaps() []core.MapDefinition { return s }

func mapDef(id string) core.MapDefinition {
	return core.MapDefinition{
		ID:          id,
		DisplayName: id,
		World:       id,
		Enabled:     true,
		LobbySpawn:  core.NewPosition(id, 0, 64, 0, 0, 0),
		SideASpawn:  core.NewPosition(id, 10, 64, 10, 0, 0),
		SideBSpawn:  core.NewPosition(id, -10, 64, -10, 0, 0),
		BombSites:   []core.BombSite{{Name: "A", Center: core.NewPosition(id, 5, 64, 5, 0, 0), Radius: 3}},
	}
}

type historySink struct {
	mu   sync.Mutex
	seen []match.Summary
}

func (h *historySink) Record(s match.Summary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, s)
}

func (h *historySink) all() []match.Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]match.Summary(nil), h.seen...)
}

func newCoordinator(t *testing.T, maps staticMaps, mutate ...func(*Dependencies)) (*Coordinator, *historySink) {
	t.Helper()
	rules := config.DefaultRules()
	rules.MinPlayers = 2
	rules.MaxPlayersPerTeam = 5
	rules.MaxConcurrentGames = 1

	sink := &historySink{}
	deps := Dependencies{
		Maps:    maps,
		Host:    host.NewRecorder(nil),
		Rules:   rules,
		History: sink,
		Rand:    rand.New(rand.NewPCG(3, 4)),
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	c, err := New(deps)
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return c, sink
}

func TestJoinGame_SharesJoinableMatchThenAtCapacity(t *testing.T) {
	c, _ := newCoordinator(t, staticMaps{mapDef("mapA"), mapDef("mapB")}, func(d *Dependencies) {
		d.Rules.MinPlayers = 3
	})

	first, err := c.JoinGame(uuid.New())
	require.NoError(t, err)
	m, ok := c.Match(first)
	require.True(t, ok)
	assert.Contains(t, []string{"mapA", "mapB"}, m.Map().ID)

	second, err := c.JoinGame(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.ActiveCount())

	require.NoError(t, c.ForceStart(first))
	require.NotEqual(t, match.StateWaiting, m.State())

	_, err = c.JoinGame(uuid.New())
	assert.ErrorIs(t, err, core.ErrAtCapacity)
	assert.ErrorIs(t, err, core.ErrResourceUnavailable)
	assert.Equal(t, 1, c.ActiveCount())
}

func TestJoinGame_CountdownIsNotJoinable(t *testing.T) {
	c, _ := newCoordinator(t, staticMaps{mapDef("mapA"), mapDef("mapB")}, func(d *Dependencies) {
		d.Rules.MaxConcurrentGames = 2
	})

	a, err := c.JoinGame(uuid.New())
	require.NoError(t, err)
	_, err = c.JoinGame(uuid.New())
	require.NoError(t, err)

	m, _ := c.Match(a)
	require.Equal(t, match.StateCountdown, m.State())

	b, err := c.JoinGame(uuid.New())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	mb, _ := c.Match(b)
	assert.NotEqual(t, m.Map().ID, mb.Map().ID, "a map is bound to one live match")
}

func TestJoinGame_AlreadyInMatch(t *testing.T) {
	c, _ := newCoordinator(t, staticMaps{mapDef("mapA")})
	p := uuid.New()

	id, err := c.JoinGame(p)
	require.NoError(t, err)

	again, err := c.JoinGame(p)
	assert.ErrorIs(t, err, core.ErrAlreadyInMatch)
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, c.PlayerCount())
}

func TestJoinGame_NoAvailableMap(t *testing.T) {
	c, _ := newCoordinator(t, staticMaps{mapDef("mapA")}, func(d *Dependencies) {
		d.Rules.MaxConcurrentGames = 3
	})

	id, err := c.JoinGame(uuid.New())
	require.NoError(t, err)
	require.NoError(t, c.ForceStart(id))

	_, err = c.JoinGame(uuid.New())
	assert.ErrorIs(t, err, core.ErrNoAvailableMap)

	empty, _ := newCoordinator(t, nil)
	_, err = empty.JoinGame(uuid.New())
	assert.ErrorIs(t, err, core.ErrNoAvailableMap)
}

func TestMapReleasedOnMatchEnd(t *testing.T) {
	c, sink := newCoordinator(t, staticMaps{mapDef("mapA")})

	first, err := c.JoinGame(uuid.New())
	require.NoError(t, err)
	require.NoError(t, c.ForceStop(first))
	assert.Zero(t, c.ActiveCount())
	assert.Zero(t, c.PlayerCount())

	second, err := c.JoinGame(uuid.New())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	m, _ := c.Match(second)
	assert.Equal(t, "mapA", m.Map().ID)

	ended := sink.all()
	require.Len(t, ended, 1)
	assert.Equal(t, first, ended[0].MatchID)
	assert.Equal(t, match.ReasonForced, ended[0].Reason)
	assert.Equal(t, 2, c.MatchesCreated())
}

func TestLeaveGame(t *testing.T) {
	c, sink := newCoordinator(t, staticMaps{mapDef("mapA")})
	a, b := uuid.New(), uuid.New()

	assert.ErrorIs(t, c.LeaveGame(a), core.ErrNotInMatch)

	id, err := c.JoinGame(a)
	require.NoError(t, err)
	_, err = c.JoinGame(b)
	require.NoError(t, err)

	require.NoError(t, c.LeaveGame(a))
	_, ok := c.MatchOf(a)
	assert.False(t, ok)
	m, ok := c.MatchOf(b)
	require.True(t, ok)
	assert.Equal(t, id, m.ID())
	assert.Equal(t, match.StateWaiting, m.State())

	require.NoError(t, c.LeaveGame(b))
	assert.Zero(t, c.ActiveCount(), "an emptied match is discarded")
	require.Len(t, sink.all(), 1)
	assert.Equal(t, match.ReasonEmpty, sink.all()[0].Reason)
}

func TestForceOperations_UnknownMatch(t *testing.T) {
	c, _ := newCoordinator(t, staticMaps{mapDef("mapA")})

	assert.ErrorIs(t, c.ForceStart(core.NewMatchID()), core.ErrUnknownMatch)
	assert.ErrorIs(t, c.ForceStop(core.NewMatchID()), core.ErrNotFound)
}

func TestMatchTimeoutReleasesRegistry(t *testing.T) {
	c, sink := newCoordinator(t, staticMaps{mapDef("mapA")})
	p := uuid.New()

	id, err := c.JoinGame(p)
	require.NoError(t, err)
	m, _ := c.Match(id)

	for i := 0; i < match.WaitingTimeout; i++ {
		m.Tick()
	}
	assert.Zero(t, c.ActiveCount())
	_, ok := c.MatchOf(p)
	assert.False(t, ok)
	require.Len(t, sink.all(), 1)
	assert.Equal(t, match.ReasonTimeout, sink.all()[0].Reason)

	_, err = c.JoinGame(p)
	assert.NoError(t, err)
}

func TestSetRules_AppliesToNewMatches(t *testing.T) {
	c, _ := newCoordinator(t, staticMaps{mapDef("mapA"), mapDef("mapB")})

	first, err := c.JoinGame(uuid.New())
	require.NoError(t, err)
	m1, _ := c.Match(first)

	rules := c.Rules()
	rules.MaxPlayersPerTeam = 1
	rules.MaxConcurrentGames = 2
	c.SetRules(rules)
	require.NoError(t, c.ForceStart(first))

	second, err := c.JoinGame(uuid.New())
	require.NoError(t, err)
	m2, _ := c.Match(second)

	assert.Equal(t, 10, m1.MaxPlayers())
	assert.Equal(t, 2, m2.MaxPlayers())
}

func TestShutdown(t *testing.T) {
	c, sink := newCoordinator(t, staticMaps{mapDef("mapA"), mapDef("mapB")}, func(d *Dependencies) {
		d.Rules.MaxConcurrentGames = 2
		d.Rules.MaxPlayersPerTeam = 1
	})

	for i := 0; i < 4; i++ {
		_, err := c.JoinGame(uuid.New())
		require.NoError(t, err)
	}
	require.Equal(t, 2, c.ActiveCount())

	c.Shutdown()
	c.Shutdown()

	assert.Zero(t, c.ActiveCount())
	assert.Zero(t, c.PlayerCount())
	ended := sink.all()
	require.Len(t, ended, 2)
	for _, s := range ended {
		assert.Equal(t, match.ReasonShutdown, s.Reason)
	}

	_, err := c.JoinGame(uuid.New())
	assert.ErrorIs(t, err, core.ErrState)
}

func TestConcurrentJoinLeave_OneMatchPerPlayer(t *testing.T) {
	c, _ := newCoordinator(t, staticMaps{mapDef("mapA"), mapDef("mapB"), mapDef("mapC")}, func(d *Dependencies) {
		d.Rules.MaxConcurrentGames = 3
		d.Rules.MaxPlayersPerTeam = 2
		d.Rules.MinPlayers = 4
	})

	players := make([]core.PlayerID, 20)
	for i := range players {
		players[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for i, p := range players {
		wg.Add(1)
		go func(i int, p core.PlayerID) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = c.JoinGame(p)
				if (i+j)%3 == 0 {
					_ = c.LeaveGame(p)
				}
			}
		}(i, p)
	}
	wg.Wait()

	seen := map[core.PlayerID]core.MatchID{}
	for _, m := range c.Matches() {
		assert.LessOrEqual(t, len(m.Players()), m.MaxPlayers())
		for _, p := range m.Players() {
			prev, dup := seen[p]
			assert.False(t, dup, "player %s in %s and %s", p, prev, m.ID())
			seen[p] = m.ID()
		}
	}
	for p, id := range seen {
		m, ok := c.MatchOf(p)
		require.True(t, ok)
		assert.Equal(t, id, m.ID())
	}
	assert.Equal(t, len(seen), c.PlayerCount())
}

func TestTickInterval_StartsMatchLoops(t *testing.T) {
	c, sink := newCoordinator(t, staticMaps{mapDef("mapA")}, func(d *Dependencies) {
		d.TickInterval = time.Millisecond
	})

	_, err := c.JoinGame(uuid.New())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(sink.all()) == 1
	}, 5*time.Second, 10*time.Millisecond, "waiting timeout should end the match")
	assert.Zero(t, c.ActiveCount())
}
