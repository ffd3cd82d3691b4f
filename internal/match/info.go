package match

import (
	"time"

	"github.com/man10/strike/pkg/core"
)

// Info is a point-in-time view of a match.
type Info struct {
	ID          core.MatchID
	MapID       string
	MapName     string
	State       State
	Players     int
	MaxPlayers  int
	Round       int
	Score       [2]int
	SecondsLeft int
	Sides       [2][]core.PlayerID
	CreatedAt   time.Time
	StartedAt   time.Time
}

// Snapshot returns the current Info.
func (m *Match) Snapshot() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := Info{
		ID:         m.id,
		MapID:      m.gameMap.ID,
		MapName:    m.gameMap.DisplayName,
		State:      m.state,
		Players:    len(m.players),
		MaxPlayers: m.MaxPlayers(),
		Round:      m.round,
		Score:      m.score,
		CreatedAt:  m.createdAt,
		StartedAt:  m.startedAt,
	}
	switch m.state {
	case StateWaiting:
		info.SecondsLeft = WaitingTimeout - m.waiting
	case StateCountdown:
		info.SecondsLeft = m.countdown
	case StateBuying:
		info.SecondsLeft = m.buying
	case StateInProgress:
		info.SecondsLeft = m.roundLeft
	}
	for _, s := range core.Sides {
		info.Sides[s] = m.roster.MembersOf(s)
	}
	return info
}

// Summary describes a finished match.
type Summary struct {
	MatchID core.MatchID
	MapID   string
	Reason  EndReason
	// Winner is nil unless the match was played to completion.
	Winner    *core.Side
	Score     [2]int
	Rounds    int
	Players   []core.PlayerID
	Sides     [2][]core.PlayerID
	StartedAt time.Time
	EndedAt   time.Time
}

// Played reports whether the match got past the lobby.
func (s Summary) Played() bool {
	return !s.StartedAt.IsZero()
}
