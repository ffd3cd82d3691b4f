// Package host describes the game server runtime the match services act on.
// Nothing in the core talks to a concrete server; everything goes through Host.
package host

import "github.com/man10/strike/pkg/core"

// Players answers questions about connected players.
type Players interface {
	Name(p core.PlayerID) string
	Location(p core.PlayerID) (core.Position, bool)
}

// Messenger delivers text to a player.
type Messenger interface {
	Message(p core.PlayerID, text string)
	Title(p core.PlayerID, title, subtitle string)
	ActionBar(p core.PlayerID, text string)
}

// Controller mutates player state.
type Controller interface {
	Teleport(p core.PlayerID, pos core.Position)
	// ResetState restores health and hunger and clears effects.
	ResetState(p core.PlayerID)
	ClearInventory(p core.PlayerID)
	SetFrozen(p core.PlayerID, frozen bool)
}

// Worlds resolves world names.
type Worlds interface {
	WorldLoaded(name string) bool
}

// Host is the full runtime surface.
type Host interface {
	Players
	Messenger
	Controller
	Worlds
}
