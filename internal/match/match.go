// Package match runs a single match from lobby to completion.
//
// Every mutating operation takes the match mutex, so check-then-act sequences
// such as "not full, then insert" are atomic. Host calls are made while the
// lock is held; the end callback and economy payouts run after it is released.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/man10/strike/internal/config"
	"github.com/man10/strike/internal/economy"
	"github.com/man10/strike/internal/roster"
	"github.com/man10/strike/pkg/core"
	"github.com/man10/strike/pkg/host"
)

// Prefix starts every chat line a match sends.
const Prefix = "[Strike]"

const payoutTimeout = 5 * time.Second

// Params holds everything a match needs.
type Params struct {
	ID        core.MatchID
	Rules     config.Rules
	Map       core.MapDefinition
	Host      host.Host
	Logger    *slog.Logger
	Economy   *economy.Bridge
	MainLobby *core.Position
	TeamNames [2]string
	// OnEnd is called once, without the match lock held, when the match ends.
	OnEnd func(Summary)
	Rand  *rand.Rand
	Now   func() time.Time
}

// Match is one gameplay session.
type Match struct {
	id        core.MatchID
	rules     config.Rules
	gameMap   core.MapDefinition
	host      host.Host
	log       *slog.Logger
	economy   *economy.Bridge
	mainLobby *core.Position
	teamNames [2]string
	onEnd     func(Summary)
	now       func() time.Time

	mu      sync.Mutex
	state   State
	players map[core.PlayerID]struct{}
	order   []core.PlayerID
	roster  *roster.Roster
	money   map[core.PlayerID]int

	countdown int
	buying    int
	roundLeft int
	waiting   int
	round     int
	score     [2]int

	createdAt time.Time
	startedAt time.Time

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a match in WAITING. Call Start to attach the tick loop.
func New(p Params) *Match {
	if p.ID == (core.MatchID{}) {
		p.ID = core.NewMatchID()
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Rand == nil {
		p.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	for _, s := range core.Sides {
		if p.TeamNames[s] == "" {
			p.TeamNames[s] = s.String()
		}
	}

	m := &Match{
		id:        p.ID,
		rules:     p.Rules,
		gameMap:   p.Map,
		host:      p.Host,
		economy:   p.Economy,
		mainLobby: p.MainLobby,
		teamNames: p.TeamNames,
		onEnd:     p.OnEnd,
		now:       p.Now,
		state:     StateWaiting,
		players:   make(map[core.PlayerID]struct{}),
		roster:    roster.New(p.Rules.MaxPlayersPerTeam, p.Rand),
		money:     make(map[core.PlayerID]int),
		countdown: CountdownSeconds,
		createdAt: p.Now(),
	}
	m.log = p.Logger.With("match", core.ShortID(m.id), "map", p.Map.ID)
	return m
}

// Start runs the tick loop until the match ends or ctx is cancelled.
func (m *Match) Start(ctx context.Context, interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil || m.state == StateEnding {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Tick()
			}
		}
	}(m.done)
}

// Done is closed when the tick loop exits. It is nil before Start.
func (m *Match) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// stopTicker must be called with m.mu held.
func (m *Match) stopTicker() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
	})
}

func (m *Match) ID() core.MatchID { return m.id }

// Map returns the bound map definition.
func (m *Match) Map() core.MapDefinition { return m.gameMap }

func (m *Match) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// MaxPlayers is the capacity of both sides together.
func (m *Match) MaxPlayers() int {
	return 2 * m.rules.MaxPlayersPerTeam
}

// Players returns the members in join order.
func (m *Match) Players() []core.PlayerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.PlayerID(nil), m.order...)
}

// Contains reports whether p is a member.
func (m *Match) Contains(p core.PlayerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.players[p]
	return ok
}

// SideOf returns the side p was assigned to, once teams are drawn.
func (m *Match) SideOf(p core.PlayerID) (core.Side, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roster.SideOf(p)
}

// CanJoin reports whether the match accepts new players through matchmaking.
func (m *Match) CanJoin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canJoinLocked()
}

// CanJoinPlayer is CanJoin for a specific player that must not be a member.
func (m *Match) CanJoinPlayer(p core.PlayerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, member := m.players[p]
	return !member && m.canJoinLocked()
}

func (m *Match) canJoinLocked() bool {
	return m.state == StateWaiting && len(m.players) < m.MaxPlayers()
}

// AddPlayer admits p while the match is WAITING or COUNTDOWN and not full.
func (m *Match) AddPlayer(p core.PlayerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Joinable() || len(m.players) >= m.MaxPlayers() {
		return false
	}
	if _, ok := m.players[p]; ok {
		return false
	}

	m.players[p] = struct{}{}
	m.order = append(m.order, p)
	m.broadcast(fmt.Sprintf("%s joined the match (%d/%d)", m.host.Name(p), len(m.players), m.MaxPlayers()))
	m.log.Debug("player joined", "player", p, "players", len(m.players))

	if m.state == StateCountdown {
		m.prepareAndTeleport(p, m.gameMap.LobbySpawn, "Teleported to the waiting area")
	}
	if m.state == StateWaiting && len(m.players) >= m.rules.MinPlayers {
		m.beginCountdown()
	}
	return true
}

// RemovePlayer takes p out of the match. An emptied match ends.
func (m *Match) RemovePlayer(p core.PlayerID) bool {
	m.mu.Lock()
	if _, ok := m.players[p]; !ok {
		m.mu.Unlock()
		return false
	}

	delete(m.players, p)
	for i, id := range m.order {
		if id == p {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.roster.Remove(p)
	delete(m.money, p)

	m.host.SetFrozen(p, false)
	if m.mainLobby != nil {
		m.prepareAndTeleport(p, *m.mainLobby, "Returned to the main lobby")
	}
	m.broadcast(fmt.Sprintf("%s left the match (%d/%d)", m.host.Name(p), len(m.players), m.MaxPlayers()))
	m.log.Debug("player left", "player", p, "players", len(m.players))

	if m.state == StateCountdown && len(m.players) < m.rules.MinPlayers {
		m.cancelCountdown()
	}

	var finish func()
	if len(m.players) == 0 && m.state != StateEnding {
		finish = m.endLocked(ReasonEmpty, nil)
	}
	m.mu.Unlock()

	if finish != nil {
		finish()
	}
	return true
}

// ForceStart skips the rest of the lobby and draws teams now.
func (m *Match) ForceStart() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Joinable() {
		return fmt.Errorf("%w: match is %s", core.ErrState, m.state)
	}
	if len(m.players) == 0 {
		return fmt.Errorf("%w: match has no players", core.ErrState)
	}
	m.log.Info("match force-started", "players", len(m.players))
	m.beginMatch()
	return nil
}

// ForceEnd ends the match. It reports false when the match had already ended.
func (m *Match) ForceEnd() bool {
	return m.ForceEndWith(ReasonForced)
}

// ForceEndWith is ForceEnd with an explicit reason.
func (m *Match) ForceEndWith(reason EndReason) bool {
	m.mu.Lock()
	if m.state == StateEnding {
		m.mu.Unlock()
		return false
	}
	m.broadcast("The match was ended")
	finish := m.endLocked(reason, nil)
	m.mu.Unlock()

	finish()
	return true
}

// EndRound resolves the current round in favour of winner.
func (m *Match) EndRound(winner core.Side, reason RoundReason) error {
	m.mu.Lock()
	if m.state != StateInProgress {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: no round in progress (%s)", core.ErrState, state)
	}
	finish := m.endRoundLocked(winner, reason)
	m.mu.Unlock()

	if finish != nil {
		finish()
	}
	return nil
}

// Tick advances the match by one second.
func (m *Match) Tick() {
	m.mu.Lock()
	var finish func()

	switch m.state {
	case StateWaiting:
		m.waiting++
		if m.waiting >= WaitingTimeout {
			m.broadcast("Not enough players joined in time")
			finish = m.endLocked(ReasonTimeout, nil)
		}

	case StateCountdown:
		// The full count is announced when the countdown begins.
		m.countdown--
		if m.countdown <= 0 {
			m.beginMatch()
			break
		}
		if announceAt(m.countdown) {
			m.broadcast(fmt.Sprintf("Match starts in %d seconds", m.countdown))
			if m.countdown <= 5 {
				m.title(fmt.Sprintf("%d", m.countdown), "")
			}
		}

	case StateBuying:
		if m.buying <= 0 {
			m.beginRound()
			break
		}
		if announceAt(m.buying) {
			m.broadcast(fmt.Sprintf("Buy phase ends in %d seconds", m.buying))
		}
		m.actionBar(fmt.Sprintf("Buy phase: %ds", m.buying))
		m.buying--

	case StateInProgress:
		if m.roundLeft <= 0 {
			finish = m.endRoundLocked(core.SideB, ReasonTimeExpired)
			break
		}
		if m.roundLeft <= 10 {
			m.actionBar(fmt.Sprintf("Round time: %ds", m.roundLeft))
		}
		if m.roundLeft == 30 || m.roundLeft == 10 {
			m.broadcast(fmt.Sprintf("%d seconds left in the round", m.roundLeft))
		}
		m.roundLeft--
	}
	m.mu.Unlock()

	if finish != nil {
		finish()
	}
}

func (m *Match) setState(s State) {
	if m.state == s {
		return
	}
	m.log.Info("match state changed", "from", m.state, "to", s)
	m.state = s
}

func (m *Match) beginCountdown() {
	m.setState(StateCountdown)
	m.countdown = CountdownSeconds
	m.waiting = 0
	for _, p := range m.order {
		m.prepareAndTeleport(p, m.gameMap.LobbySpawn, "Teleported to the waiting area")
	}
	m.broadcast(fmt.Sprintf("Enough players joined! The match starts in %d seconds", CountdownSeconds))
}

func (m *Match) cancelCountdown() {
	m.setState(StateWaiting)
	m.countdown = CountdownSeconds
	m.waiting = 0
	m.broadcast("Not enough players, the countdown was cancelled")
}

// beginMatch draws teams for everyone still unassigned and opens round one.
func (m *Match) beginMatch() {
	for _, p := range m.order {
		side, err := m.roster.AssignBalanced(p)
		if err != nil {
			m.log.Error("could not assign side", "player", p, "error", err)
			continue
		}
		m.host.Message(p, fmt.Sprintf("%s You are on the %s", Prefix, m.teamNames[side]))
	}
	for _, p := range m.order {
		m.money[p] = m.rules.StartMoney
		m.host.ClearInventory(p)
	}

	m.startedAt = m.now()
	m.round = 1
	m.score = [2]int{}
	m.broadcast("=== Match started! ===")
	m.broadcast("Map: " + m.gameMap.DisplayName)
	m.beginBuying()
}

// beginBuying sends both sides to their spawns and freezes them.
func (m *Match) beginBuying() {
	m.setState(StateBuying)
	m.buying = m.rules.PreparationTime

	for _, side := range core.Sides {
		spawn, _ := m.gameMap.Spawn(core.SpawnFor(side))
		for _, p := range m.roster.MembersOf(side) {
			m.host.ResetState(p)
			m.host.Teleport(p, spawn)
			m.host.SetFrozen(p, true)
			m.host.Message(p, fmt.Sprintf("%s Money: %s", Prefix, economy.Format(float64(m.money[p]))))
		}
	}
	m.broadcast(fmt.Sprintf("Round %d - buy phase (%ds)", m.round, m.buying))
}

func (m *Match) beginRound() {
	m.setState(StateInProgress)
	m.roundLeft = m.rules.RoundTime
	for _, p := range m.order {
		m.host.SetFrozen(p, false)
	}
	m.broadcast(fmt.Sprintf("Round %d started!", m.round))
}

// endRoundLocked scores the round and moves on. The returned func, if any,
// must be called after the lock is released.
func (m *Match) endRoundLocked(winner core.Side, reason RoundReason) func() {
	m.score[winner]++
	m.broadcast(fmt.Sprintf("Round %d: %s win (%s) [%d - %d]",
		m.round, m.teamNames[winner], reason, m.score[core.SideA], m.score[core.SideB]))
	m.log.Info("round ended", "round", m.round, "winner", winner.Key(), "reason", reason,
		"scoreA", m.score[core.SideA], "scoreB", m.score[core.SideB])

	for _, p := range m.roster.MembersOf(winner) {
		m.credit(p, m.rules.WinReward)
	}
	for _, p := range m.roster.MembersOf(winner.Other()) {
		m.credit(p, m.rules.LoseReward)
	}

	if m.score[winner] >= m.rules.RoundsToWin {
		m.broadcast(fmt.Sprintf("%s win the match!", m.teamNames[winner]))
		return m.endLocked(ReasonCompleted, &winner)
	}
	if m.round >= m.rules.MaxRounds() {
		m.broadcast("The match ended in a draw")
		return m.endLocked(ReasonDraw, nil)
	}

	m.round++
	m.beginBuying()
	return nil
}

// endLocked moves to ENDING and returns the work that must run unlocked:
// economy payouts and the end callback.
func (m *Match) endLocked(reason EndReason, winner *core.Side) func() {
	m.setState(StateEnding)
	m.stopTicker()

	summary := Summary{
		MatchID:   m.id,
		MapID:     m.gameMap.ID,
		Reason:    reason,
		Winner:    winner,
		Score:     m.score,
		Rounds:    m.round,
		Players:   append([]core.PlayerID(nil), m.order...),
		StartedAt: m.startedAt,
		EndedAt:   m.now(),
	}
	for _, s := range core.Sides {
		summary.Sides[s] = m.roster.MembersOf(s)
	}

	for _, p := range m.order {
		m.host.SetFrozen(p, false)
		if m.mainLobby != nil {
			m.prepareAndTeleport(p, *m.mainLobby, "Returned to the main lobby")
		}
	}

	m.players = make(map[core.PlayerID]struct{})
	m.order = nil
	m.roster.Clear()
	clear(m.money)
	m.log.Info("match ended", "reason", reason, "rounds", summary.Rounds)

	return func() {
		m.payout(summary)
		if m.onEnd != nil {
			m.onEnd(summary)
		}
	}
}

// payout deposits the match result rewards to every player of a completed match.
func (m *Match) payout(s Summary) {
	if s.Winner == nil || !m.economy.IsEnabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), payoutTimeout)
	defer cancel()

	winner := *s.Winner
	for _, p := range s.Sides[winner] {
		m.economy.Deposit(ctx, p, float64(m.rules.WinReward))
	}
	for _, p := range s.Sides[winner.Other()] {
		m.economy.Deposit(ctx, p, float64(m.rules.LoseReward))
	}
}

func (m *Match) prepareAndTeleport(p core.PlayerID, pos core.Position, msg string) {
	m.host.ResetState(p)
	m.host.ClearInventory(p)
	m.host.Teleport(p, pos)
	m.host.Message(p, Prefix+" "+msg)
}

func (m *Match) broadcast(msg string) {
	for _, p := range m.order {
		m.host.Message(p, Prefix+" "+msg)
	}
}

func (m *Match) title(title, subtitle string) {
	for _, p := range m.order {
		m.host.Title(p, title, subtitle)
	}
}

func (m *Match) actionBar(text string) {
	for _, p := range m.order {
		m.host.ActionBar(p, text)
	}
}
