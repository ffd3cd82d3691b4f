package core

import (
	"fmt"
	"strings"
)

// BombSite is a spherical objective zone.
type BombSite struct {
	Name   string
	Center Position
	Radius float64
}

// Contains reports whether p lies within the site radius.
func (b BombSite) Contains(p Position) bool {
	d, ok := b.Center.Distance(p)
	return ok && d <= b.Radius
}

// MapDefinition describes a playable arena. Values are immutable: every With*
// method returns a copy that shares no storage with the receiver.
type MapDefinition struct {
	ID             string
	DisplayName    string
	Description    string
	Author         string
	World          string
	Enabled        bool
	LobbySpawn     Position
	SideASpawn     Position
	SideBSpawn     Position
	SpectatorSpawn *Position
	BombSites      []BombSite
}

func (m MapDefinition) clone() MapDefinition {
	out := m
	out.BombSites = append([]BombSite(nil), m.BombSites...)
	if m.SpectatorSpawn != nil {
		s := *m.SpectatorSpawn
		out.SpectatorSpawn = &s
	}
	return out
}

// Spawn returns the spawn position of the given kind.
// The second value is false when the spectator spawn is not set.
func (m MapDefinition) Spawn(kind SpawnKind) (Position, bool) {
	switch kind {
	case SpawnLobby:
		return m.LobbySpawn, true
	case SpawnSideA:
		return m.SideASpawn, true
	case SpawnSideB:
		return m.SideBSpawn, true
	case SpawnSpectator:
		if m.SpectatorSpawn == nil {
			return Position{}, false
		}
		return *m.SpectatorSpawn, true
	}
	return Position{}, false
}

// BombSite looks a site up by name, case-insensitively.
func (m MapDefinition) BombSite(name string) (BombSite, bool) {
	for _, s := range m.BombSites {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return BombSite{}, false
}

// SiteAt returns the bomb site containing p, if any.
func (m MapDefinition) SiteAt(p Position) (BombSite, bool) {
	for _, s := range m.BombSites {
		if s.Contains(p) {
			return s, true
		}
	}
	return BombSite{}, false
}

func (m MapDefinition) WithID(id string) MapDefinition {
	out := m.clone()
	out.ID = id
	return out
}

func (m MapDefinition) WithDisplayName(name string) MapDefinition {
	out := m.clone()
	out.DisplayName = name
	return out
}

func (m MapDefinition) WithDescription(desc string) MapDefinition {
	out := m.clone()
	out.Description = desc
	return out
}

func (m MapDefinition) WithAuthor(author string) MapDefinition {
	out := m.clone()
	out.Author = author
	return out
}

func (m MapDefinition) WithEnabled(enabled bool) MapDefinition {
	out := m.clone()
	out.Enabled = enabled
	return out
}

// WithSpawn replaces one spawn point.
func (m MapDefinition) WithSpawn(kind SpawnKind, pos Position) MapDefinition {
	out := m.clone()
	switch kind {
	case SpawnLobby:
		out.LobbySpawn = pos
	case SpawnSideA:
		out.SideASpawn = pos
	case SpawnSideB:
		out.SideBSpawn = pos
	case SpawnSpectator:
		out.SpectatorSpawn = &pos
	}
	return out
}

// WithBombSite adds a site or moves an existing one with the same name.
// Site order is preserved.
func (m MapDefinition) WithBombSite(name string, center Position, radius float64) MapDefinition {
	out := m.clone()
	for i, s := range out.BombSites {
		if strings.EqualFold(s.Name, name) {
			out.BombSites[i] = BombSite{Name: s.Name, Center: center, Radius: radius}
			return out
		}
	}
	out.BombSites = append(out.BombSites, BombSite{Name: name, Center: center, Radius: radius})
	return out
}

// WithBombSiteRadius changes the radius of an existing site.
func (m MapDefinition) WithBombSiteRadius(name string, radius float64) (MapDefinition, error) {
	if radius <= 0 {
		return m, fmt.Errorf("%w: radius must be positive", ErrInvalidMap)
	}
	out := m.clone()
	for i, s := range out.BombSites {
		if strings.EqualFold(s.Name, name) {
			out.BombSites[i].Radius = radius
			return out, nil
		}
	}
	return m, fmt.Errorf("%w: bomb site %q", ErrNotFound, name)
}

// Validate checks the structural invariants of a playable map.
func (m MapDefinition) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidMap)
	}
	if m.World == "" {
		return fmt.Errorf("%w: %s has no world", ErrInvalidMap, m.ID)
	}
	for _, kind := range []SpawnKind{SpawnLobby, SpawnSideA, SpawnSideB, SpawnSpectator} {
		if pos, ok := m.Spawn(kind); ok && pos.World != m.World {
			return fmt.Errorf("%w: %s %s spawn is in world %q, not %q", ErrInvalidMap, m.ID, kind, pos.World, m.World)
		}
	}
	if len(m.BombSites) == 0 {
		return fmt.Errorf("%w: %s has no bomb sites", ErrInvalidMap, m.ID)
	}
	seen := make(map[string]struct{}, len(m.BombSites))
	for _, s := range m.BombSites {
		key := strings.ToUpper(s.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s has duplicate bomb site %s", ErrInvalidMap, m.ID, s.Name)
		}
		seen[key] = struct{}{}
		if s.Radius <= 0 {
			return fmt.Errorf("%w: %s bomb site %s has radius %.2f", ErrInvalidMap, m.ID, s.Name, s.Radius)
		}
	}
	return nil
}
