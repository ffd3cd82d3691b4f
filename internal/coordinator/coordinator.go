// Package coordinator matches players to matches and matches to maps.
//
// Locking: joinMu serializes every join, leave and admin operation. regMu
// guards the match registry only and is never held while calling into a
// match, because a match calls back into onMatchEnd (which takes regMu) from
// its own tick goroutine.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/man10/strike/internal/cache"
	"github.com/man10/strike/internal/config"
	"github.com/man10/strike/internal/economy"
	"github.com/man10/strike/internal/match"
	"github.com/man10/strike/pkg/core"
	"github.com/man10/strike/pkg/host"
	"go.opentelemetry.io/otel/metric"
)

// MapSource lists the maps new matches may be bound to.
type MapSource interface {
	EnabledMaps() []core.MapDefinition
}

// Recorder receives the summary of every ended match.
type Recorder interface {
	Record(s match.Summary)
}

// Dependencies holds all dependencies for the coordinator
type Dependencies struct {
	Maps      MapSource
	Host      host.Host
	Economy   *economy.Bridge
	Logger    *slog.Logger
	Rules     config.Rules
	MainLobby *core.Position
	TeamNames [2]string
	History   Recorder
	Rand      *rand.Rand
	Now       func() time.Time
	// TickInterval drives every match's tick loop. Zero leaves ticking to the caller.
	TickInterval time.Duration
}

// Coordinator owns the set of live matches.
type Coordinator struct {
	deps Dependencies
	log  *slog.Logger
	rng  *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc

	joinMu sync.Mutex
	closed bool

	regMu     sync.Mutex
	matches   map[core.MatchID]*match.Match
	order     []core.MatchID
	rules     config.Rules
	mainLobby *core.Position

	index   *cache.PlayerIndex
	created cache.SafeCounter

	matchesActive  metric.Int64ObservableGauge
	playersActive  metric.Int64ObservableGauge
	matchesCreated metric.Int64Counter
	matchesEnded   metric.Int64Counter
}

// New creates a coordinator. Uses the global OTel meter for metrics.
func New(deps Dependencies) (*Coordinator, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		deps:      deps,
		log:       deps.Logger.With("component", "coordinator"),
		rng:       deps.Rand,
		ctx:       ctx,
		cancel:    cancel,
		matches:   make(map[core.MatchID]*match.Match),
		rules:     deps.Rules,
		mainLobby: deps.MainLobby,
		index:     cache.NewPlayerIndex(),
	}
	if err := c.initMetrics(); err != nil {
		cancel()
		return nil, err
	}
	return c, nil
}

// JoinGame places p in a joinable match, creating one when none exists.
func (c *Coordinator) JoinGame(p core.PlayerID) (core.MatchID, error) {
	c.joinMu.Lock()
	defer c.joinMu.Unlock()

	if c.closed {
		return core.MatchID{}, fmt.Errorf("%w: coordinator is shut down", core.ErrState)
	}
	if m, ok := c.matchOf(p); ok {
		return m.ID(), core.ErrAlreadyInMatch
	}

	live := c.liveMatches()
	for _, m := range live {
		if !m.CanJoinPlayer(p) {
			continue
		}
		c.index.Set(p, m.ID())
		if m.AddPlayer(p) {
			c.log.Debug("player joined existing match", "player", p, "match", core.ShortID(m.ID()))
			return m.ID(), nil
		}
		c.index.Delete(p)
	}

	c.regMu.Lock()
	rules := c.rules
	c.regMu.Unlock()

	if len(live) >= rules.MaxConcurrentGames {
		return core.MatchID{}, core.ErrAtCapacity
	}
	gameMap, ok := c.pickMap(live)
	if !ok {
		return core.MatchID{}, core.ErrNoAvailableMap
	}

	m := c.createMatch(gameMap, rules)
	c.index.Set(p, m.ID())
	if !m.AddPlayer(p) {
		c.index.Delete(p)
		m.ForceEnd()
		return core.MatchID{}, fmt.Errorf("%w: new match rejected the player", core.ErrMatchFull)
	}
	return m.ID(), nil
}

// LeaveGame removes p from its match.
func (c *Coordinator) LeaveGame(p core.PlayerID) error {
	c.joinMu.Lock()
	defer c.joinMu.Unlock()

	m, ok := c.matchOf(p)
	if !ok {
		return core.ErrNotInMatch
	}
	c.index.Delete(p)
	if !m.RemovePlayer(p) {
		return core.ErrNotInMatch
	}
	c.log.Debug("player left match", "player", p, "match", core.ShortID(m.ID()))
	return nil
}

// ForceStart starts a match that is still in its lobby.
func (c *Coordinator) ForceStart(id core.MatchID) error {
	c.joinMu.Lock()
	defer c.joinMu.Unlock()

	m, ok := c.Match(id)
	if !ok {
		return core.ErrUnknownMatch
	}
	return m.ForceStart()
}

// ForceStop ends a match.
func (c *Coordinator) ForceStop(id core.MatchID) error {
	c.joinMu.Lock()
	defer c.joinMu.Unlock()

	m, ok := c.Match(id)
	if !ok {
		return core.ErrUnknownMatch
	}
	if !m.ForceEnd() {
		return fmt.Errorf("%w: match already ended", core.ErrState)
	}
	return nil
}

// Shutdown ends every match and refuses further joins.
func (c *Coordinator) Shutdown() {
	c.joinMu.Lock()
	defer c.joinMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true

	for _, m := range c.liveMatches() {
		m.ForceEndWith(match.ReasonShutdown)
	}

	c.regMu.Lock()
	c.matches = make(map[core.MatchID]*match.Match)
	c.order = nil
	c.regMu.Unlock()
	c.index.Reset()
	c.cancel()
	c.log.Info("coordinator shut down")
}

// SetRules replaces the ruleset used for matches created from now on.
func (c *Coordinator) SetRules(r config.Rules) {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	c.rules = r
}

// SetMainLobby replaces the lobby new matches send players back to.
func (c *Coordinator) SetMainLobby(pos *core.Position) {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	c.mainLobby = pos
}

// Rules returns the ruleset for new matches.
func (c *Coordinator) Rules() config.Rules {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	return c.rules
}

// MatchOf returns the match p occupies.
func (c *Coordinator) MatchOf(p core.PlayerID) (*match.Match, bool) {
	return c.matchOf(p)
}

// Match looks up a live match by id.
func (c *Coordinator) Match(id core.MatchID) (*match.Match, bool) {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	m, ok := c.matches[id]
	return m, ok
}

// Matches returns the live matches in creation order.
func (c *Coordinator) Matches() []*match.Match {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	out := make([]*match.Match, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.matches[id])
	}
	return out
}

// ActiveCount is the number of live matches.
func (c *Coordinator) ActiveCount() int {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	return len(c.matches)
}

// PlayerCount is the number of players in any match.
func (c *Coordinator) PlayerCount() int {
	return c.index.Len()
}

// MatchesCreated is the number of matches created since start.
func (c *Coordinator) MatchesCreated() int {
	return c.created.Value()
}

// matchOf resolves p through the index. Entries pointing at a match that is
// gone, ending, or no longer holds p are dropped.
func (c *Coordinator) matchOf(p core.PlayerID) (*match.Match, bool) {
	id, ok := c.index.Get(p)
	if !ok {
		return nil, false
	}
	m, ok := c.Match(id)
	if !ok || m.State() == match.StateEnding || !m.Contains(p) {
		c.index.Delete(p)
		return nil, false
	}
	return m, true
}

// liveMatches returns the registered matches that have not ended.
// It takes regMu only to copy the registry.
func (c *Coordinator) liveMatches() []*match.Match {
	out := c.Matches()
	live := out[:0]
	for _, m := range out {
		if m.State() != match.StateEnding {
			live = append(live, m)
		}
	}
	return live
}

// pickMap chooses uniformly among enabled maps not bound to a live match.
func (c *Coordinator) pickMap(live []*match.Match) (core.MapDefinition, bool) {
	bound := make(map[string]bool, len(live))
	for _, m := range live {
		bound[m.Map().ID] = true
	}

	var free []core.MapDefinition
	for _, def := range c.deps.Maps.EnabledMaps() {
		if !bound[def.ID] {
			free = append(free, def)
		}
	}
	if len(free) == 0 {
		return core.MapDefinition{}, false
	}
	return free[c.rng.IntN(len(free))], true
}

func (c *Coordinator) createMatch(gameMap core.MapDefinition, rules config.Rules) *match.Match {
	c.regMu.Lock()
	lobby := c.mainLobby
	c.regMu.Unlock()

	m := match.New(match.Params{
		Rules:     rules,
		Map:       gameMap,
		Host:      c.deps.Host,
		Logger:    c.deps.Logger,
		Economy:   c.deps.Economy,
		MainLobby: lobby,
		TeamNames: c.deps.TeamNames,
		OnEnd:     c.onMatchEnd,
		Rand:      rand.New(rand.NewPCG(c.rng.Uint64(), c.rng.Uint64())),
		Now:       c.deps.Now,
	})

	c.regMu.Lock()
	c.matches[m.ID()] = m
	c.order = append(c.order, m.ID())
	c.regMu.Unlock()

	c.created.Inc()
	c.matchesCreated.Add(c.ctx, 1)
	c.log.Info("match created", "match", core.ShortID(m.ID()), "map", gameMap.ID)

	if c.deps.TickInterval > 0 {
		m.Start(c.ctx, c.deps.TickInterval)
	}
	return m
}

// onMatchEnd drops an ended match from the registry, freeing its map.
func (c *Coordinator) onMatchEnd(s match.Summary) {
	c.regMu.Lock()
	delete(c.matches, s.MatchID)
	for i, id := range c.order {
		if id == s.MatchID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.regMu.Unlock()

	c.index.DeleteMatch(s.MatchID)
	c.matchesEnded.Add(c.ctx, 1)
	c.log.Info("match removed", "match", core.ShortID(s.MatchID), "map", s.MapID, "reason", s.Reason)

	if c.deps.History != nil {
		c.deps.History.Record(s)
	}
}
