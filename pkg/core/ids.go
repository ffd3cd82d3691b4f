package core

import "github.com/google/uuid"

// PlayerID identifies a player across sessions.
type PlayerID = uuid.UUID

// MatchID identifies a running match.
type MatchID = uuid.UUID

// NewMatchID returns a fresh random match identifier.
func NewMatchID() MatchID {
	return uuid.New()
}

// ShortID is the first block of an id, used in player-facing text.
func ShortID(id uuid.UUID) string {
	return id.String()[:8]
}
