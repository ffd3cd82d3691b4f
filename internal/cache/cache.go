package cache

import (
	"sync"

	"github.com/man10/strike/pkg/core"
)

// PlayerIndex maps players to the match they occupy, so a lookup does not
// have to scan every live match.
type PlayerIndex struct {
	m       sync.Mutex
	players map[core.PlayerID]core.MatchID
}

func NewPlayerIndex() *PlayerIndex {
	return &PlayerIndex{
		players: make(map[core.PlayerID]core.MatchID),
	}
}

func (c *PlayerIndex) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.players = make(map[core.PlayerID]core.MatchID)
}

func (c *PlayerIndex) Get(p core.PlayerID) (core.MatchID, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	id, ok := c.players[p]
	return id, ok
}

func (c *PlayerIndex) Set(p core.PlayerID, id core.MatchID) {
	c.m.Lock()
	defer c.m.Unlock()
	c.players[p] = id
}

// Delete removes p. It reports whether an entry existed.
func (c *PlayerIndex) Delete(p core.PlayerID) bool {
	c.m.Lock()
	defer c.m.Unlock()
	_, ok := c.players[p]
	delete(c.players, p)
	return ok
}

// DeleteMatch removes every player indexed under id and returns how many.
func (c *PlayerIndex) DeleteMatch(id core.MatchID) int {
	c.m.Lock()
	defer c.m.Unlock()
	n := 0
	for p, m := range c.players {
		if m == id {
			delete(c.players, p)
			n++
		}
	}
	return n
}

// Len returns the number of indexed players.
func (c *PlayerIndex) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.players)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
