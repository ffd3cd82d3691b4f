package core

import (
	"fmt"
	"strings"
)

// Side is one of the two opposing teams of a match.
type Side int

const (
	// SideA is the attacking side (terrorists).
	SideA Side = iota
	// SideB is the defending side (counter-terrorists).
	SideB
)

// Sides lists both sides in a stable order.
var Sides = [2]Side{SideA, SideB}

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// Key is the short identifier used in commands and logs.
func (s Side) Key() string {
	if s == SideA {
		return "t"
	}
	return "ct"
}

func (s Side) String() string {
	if s == SideA {
		return "Terrorists"
	}
	return "Counter-Terrorists"
}

// ParseSide accepts the short and long side names used by commands.
func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "t", "terrorist", "terrorists", "a":
		return SideA, nil
	case "ct", "counter-terrorist", "counter-terrorists", "counterterrorist", "b":
		return SideB, nil
	default:
		return 0, fmt.Errorf("unknown side %q", raw)
	}
}

// SpawnKind names one of the spawn points of a map.
type SpawnKind int

const (
	SpawnLobby SpawnKind = iota
	SpawnSideA
	SpawnSideB
	SpawnSpectator
)

// SpawnFor returns the spawn kind used by a side.
func SpawnFor(s Side) SpawnKind {
	if s == SideA {
		return SpawnSideA
	}
	return SpawnSideB
}

func (k SpawnKind) String() string {
	switch k {
	case SpawnLobby:
		return "lobby"
	case SpawnSideA:
		return "t"
	case SpawnSideB:
		return "ct"
	case SpawnSpectator:
		return "spectator"
	default:
		return fmt.Sprintf("spawn(%d)", int(k))
	}
}

// ParseSpawnKind maps a command argument to a spawn kind.
func ParseSpawnKind(raw string) (SpawnKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "lobby":
		return SpawnLobby, nil
	case "spectator", "spec":
		return SpawnSpectator, nil
	}
	side, err := ParseSide(raw)
	if err != nil {
		return 0, fmt.Errorf("unknown spawn %q", raw)
	}
	return SpawnFor(side), nil
}
