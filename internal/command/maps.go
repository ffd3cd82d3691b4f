package command

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/man10/strike/internal/dispatcher"
	"github.com/man10/strike/pkg/core"
)

func (s *Service) registerMapCommands(d *dispatcher.Dispatcher) {
	d.Register("map:list", s.reply(s.mapList), dispatcher.Usage("map:list", "List all maps"))
	d.Register("map:info", s.reply(s.mapInfo), dispatcher.Usage("map:info <map>", "Show map details"))
	d.Register("map:where", s.reply(s.mapWhere), dispatcher.Usage("map:where", "Show distances to spawns and bomb sites"))
	d.Register("map:setup", s.reply(s.mapSetup), dispatcher.Logged(), dispatcher.Usage("map:setup <map>", "Create a map with the setup wizard"))
	d.Register("map:setspawn", s.reply(s.mapSetSpawn), dispatcher.Logged(), dispatcher.Usage("map:setspawn <map> <t|ct|spectator>", "Move a spawn to your position"))
	d.Register("map:setlobby", s.reply(s.mapSetLobby), dispatcher.Logged(), dispatcher.Usage("map:setlobby <map>", "Move the map lobby to your position"))
	d.Register("map:setbomb", s.reply(s.mapSetBomb), dispatcher.Logged(), dispatcher.Usage("map:setbomb <map> <A|B>", "Move or add a bomb site at your position"))
	d.Register("map:setbombradius", s.reply(s.mapSetBombRadius), dispatcher.Logged(), dispatcher.Usage("map:setbombradius <map> <A|B> <radius>", "Change a bomb site radius"))
	d.Register("map:setname", s.reply(s.mapSetName), dispatcher.Logged(), dispatcher.Usage("map:setname <map> <name>", "Change the display name"))
	d.Register("map:setauthor", s.reply(s.mapSetAuthor), dispatcher.Logged(), dispatcher.Usage("map:setauthor <map> <author>", "Change the author"))
	d.Register("map:setdesc", s.reply(s.mapSetDesc), dispatcher.Logged(), dispatcher.Usage("map:setdesc <map> <description>", "Change the description"))
	d.Register("map:enable", s.reply(s.mapEnable(true)), dispatcher.Logged(), dispatcher.Usage("map:enable <map>", "Allow new matches on a map"))
	d.Register("map:disable", s.reply(s.mapEnable(false)), dispatcher.Logged(), dispatcher.Usage("map:disable <map>", "Stop new matches on a map"))
	d.Register("map:copy", s.reply(s.mapCopy), dispatcher.Logged(), dispatcher.Usage("map:copy <map> <new-id>", "Duplicate a map"))
	d.Register("map:delete", s.reply(s.mapDelete), dispatcher.Logged(), dispatcher.Usage("map:delete <map>", "Delete a map"))
	d.Register("map:reload", s.reply(s.mapReload), dispatcher.Logged(), dispatcher.Usage("map:reload", "Reload maps from storage"))
}

func (s *Service) mapList(e dispatcher.Event) (string, error) {
	all := s.deps.Maps.All()
	if len(all) == 0 {
		return "No maps are configured", nil
	}
	out := []string{"===== Maps ====="}
	enabled := 0
	for _, m := range all {
		status := "off"
		if m.Enabled {
			status = "on "
			enabled++
		}
		sites := make([]string, 0, len(m.BombSites))
		for _, b := range m.BombSites {
			sites = append(sites, "site "+b.Name)
		}
		out = append(out, fmt.Sprintf("[%s] %s - %s (%s) by %s", status, m.ID, m.DisplayName, strings.Join(sites, ", "), m.Author))
	}
	out = append(out, fmt.Sprintf("Total: %d maps (%d enabled)", len(all), enabled))
	return lines(out...), nil
}

func (s *Service) mapInfo(e dispatcher.Event) (string, error) {
	id := e.Arg(0)
	if id == "" {
		return "", usage("map:info <map>")
	}
	m, ok := s.deps.Maps.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrUnknownMap, id)
	}
	desc := m.Description
	if desc == "" {
		desc = "none"
	}
	status := "disabled"
	if m.Enabled {
		status = "enabled"
	}
	out := []string{
		"===== Map: " + m.DisplayName + " =====",
		"ID: " + m.ID,
		"Description: " + desc,
		"Author: " + m.Author,
		"World: " + m.World,
		"Status: " + status,
		"Lobby: " + m.LobbySpawn.String(),
		"T spawn: " + m.SideASpawn.String(),
		"CT spawn: " + m.SideBSpawn.String(),
	}
	if m.SpectatorSpawn != nil {
		out = append(out, "Spectator: "+m.SpectatorSpawn.String())
	}
	for _, b := range m.BombSites {
		out = append(out, fmt.Sprintf("Site %s: %s (radius %.1fm)", b.Name, b.Center, b.Radius))
	}
	return lines(out...), nil
}

func (s *Service) mapWhere(e dispatcher.Event) (string, error) {
	pos, err := s.location(e)
	if err != nil {
		return "", err
	}
	out := []string{"Position: " + pos.String()}
	found := false
	for _, m := range s.deps.Maps.All() {
		if m.World != pos.World {
			continue
		}
		found = true
		out = append(out, "--- "+m.DisplayName+" ---")
		if d, ok := pos.Distance(m.SideASpawn); ok {
			out = append(out, fmt.Sprintf("T spawn: %.1fm", d))
		}
		if d, ok := pos.Distance(m.SideBSpawn); ok {
			out = append(out, fmt.Sprintf("CT spawn: %.1fm", d))
		}
		for _, b := range m.BombSites {
			if b.Contains(pos) {
				out = append(out, "Site "+b.Name+": in range")
			} else if d, ok := pos.Distance(b.Center); ok {
				out = append(out, fmt.Sprintf("Site %s: %.1fm", b.Name, d))
			}
		}
	}
	if !found {
		return "", fmt.Errorf("%w: no map in world %s", core.ErrUnknownMap, pos.World)
	}
	return lines(out...), nil
}

func (s *Service) mapSetup(e dispatcher.Event) (string, error) {
	if err := requirePlayer(e); err != nil {
		return "", err
	}
	id := e.Arg(0)
	if id == "" {
		return "", usage("map:setup <map>")
	}
	if err := s.deps.Setup.Begin(e.Sender, id); err != nil {
		return "", err
	}
	return "", nil
}

// update applies fn to a stored map and reports the change.
func (s *Service) update(id string, fn func(core.MapDefinition) (core.MapDefinition, error), done string) (string, error) {
	ctx, cancel := storeContext()
	defer cancel()
	m, err := s.deps.Maps.Update(ctx, id, fn)
	if err != nil {
		return "", err
	}
	s.log.Info("map updated", "map", m.ID, "change", done)
	return fmt.Sprintf("%s: %s", m.ID, done), nil
}

func (s *Service) mapSetSpawn(e dispatcher.Event) (string, error) {
	if len(e.Args) < 2 {
		return "", usage("map:setspawn <map> <t|ct|spectator>")
	}
	kind, err := core.ParseSpawnKind(e.Arg(1))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUsage, err)
	}
	pos, err := s.location(e)
	if err != nil {
		return "", err
	}
	return s.update(e.Arg(0), func(m core.MapDefinition) (core.MapDefinition, error) {
		if err := inMapWorld(m, kind, pos); err != nil {
			return m, err
		}
		return m.WithSpawn(kind, pos), nil
	}, kind.String()+" spawn set to "+pos.String())
}

// inMapWorld rejects a spawn outside the map's world.
func inMapWorld(m core.MapDefinition, kind core.SpawnKind, pos core.Position) error {
	if pos.World != m.World {
		return fmt.Errorf("%w: the %s spawn of %s must be in world %s, you are in %s", core.ErrInvalidMap, kind, m.ID, m.World, pos.World)
	}
	return nil
}

func (s *Service) mapSetLobby(e dispatcher.Event) (string, error) {
	if e.Arg(0) == "" {
		return "", usage("map:setlobby <map>")
	}
	pos, err := s.location(e)
	if err != nil {
		return "", err
	}
	return s.update(e.Arg(0), func(m core.MapDefinition) (core.MapDefinition, error) {
		if err := inMapWorld(m, core.SpawnLobby, pos); err != nil {
			return m, err
		}
		return m.WithSpawn(core.SpawnLobby, pos), nil
	}, "lobby set to "+pos.String())
}

func siteName(raw string) (string, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if name != "A" && name != "B" {
		return "", fmt.Errorf("%w: site must be A or B", ErrUsage)
	}
	return name, nil
}

func (s *Service) mapSetBomb(e dispatcher.Event) (string, error) {
	if len(e.Args) < 2 {
		return "", usage("map:setbomb <map> <A|B>")
	}
	name, err := siteName(e.Arg(1))
	if err != nil {
		return "", err
	}
	pos, err := s.location(e)
	if err != nil {
		return "", err
	}
	return s.update(e.Arg(0), func(m core.MapDefinition) (core.MapDefinition, error) {
		radius := DefaultSiteRadius
		if cur, ok := m.BombSite(name); ok {
			radius = cur.Radius
		}
		return m.WithBombSite(name, pos, radius), nil
	}, "site "+name+" set to "+pos.String())
}

func (s *Service) mapSetBombRadius(e dispatcher.Event) (string, error) {
	if len(e.Args) < 3 {
		return "", usage("map:setbombradius <map> <A|B> <radius>")
	}
	name, err := siteName(e.Arg(1))
	if err != nil {
		return "", err
	}
	radius, err := strconv.ParseFloat(e.Arg(2), 64)
	if err != nil || radius <= 0 || math.IsInf(radius, 0) || math.IsNaN(radius) {
		return "", fmt.Errorf("%w: radius must be a positive number", ErrUsage)
	}
	return s.update(e.Arg(0), func(m core.MapDefinition) (core.MapDefinition, error) {
		return m.WithBombSiteRadius(name, radius)
	}, fmt.Sprintf("site %s radius set to %.1fm", name, radius))
}

func (s *Service) mapSetText(e dispatcher.Event, syntax, what string, with func(core.MapDefinition, string) core.MapDefinition) (string, error) {
	if len(e.Args) < 2 {
		return "", usage(syntax)
	}
	text := strings.Join(e.Args[1:], " ")
	return s.update(e.Arg(0), func(m core.MapDefinition) (core.MapDefinition, error) {
		return with(m, text), nil
	}, what+" set to "+text)
}

func (s *Service) mapSetName(e dispatcher.Event) (string, error) {
	return s.mapSetText(e, "map:setname <map> <name>", "display name", core.MapDefinition.WithDisplayName)
}

func (s *Service) mapSetAuthor(e dispatcher.Event) (string, error) {
	return s.mapSetText(e, "map:setauthor <map> <author>", "author", core.MapDefinition.WithAuthor)
}

func (s *Service) mapSetDesc(e dispatcher.Event) (string, error) {
	return s.mapSetText(e, "map:setdesc <map> <description>", "description", core.MapDefinition.WithDescription)
}

func (s *Service) mapEnable(enabled bool) func(dispatcher.Event) (string, error) {
	verb := "disabled"
	if enabled {
		verb = "enabled"
	}
	return func(e dispatcher.Event) (string, error) {
		if e.Arg(0) == "" {
			return "", usage("map:" + strings.TrimSuffix(verb, "d") + " <map>")
		}
		return s.update(e.Arg(0), func(m core.MapDefinition) (core.MapDefinition, error) {
			return m.WithEnabled(enabled), nil
		}, verb)
	}
}

func (s *Service) mapCopy(e dispatcher.Event) (string, error) {
	if len(e.Args) < 2 {
		return "", usage("map:copy <map> <new-id>")
	}
	ctx, cancel := storeContext()
	defer cancel()
	m, err := s.deps.Maps.Copy(ctx, e.Arg(0), e.Arg(1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Copied %s to %s", e.Arg(0), m.ID), nil
}

func (s *Service) mapDelete(e dispatcher.Event) (string, error) {
	id := e.Arg(0)
	if id == "" {
		return "", usage("map:delete <map>")
	}
	ctx, cancel := storeContext()
	defer cancel()
	removed, err := s.deps.Maps.Remove(ctx, id)
	if err != nil {
		return "", err
	}
	if !removed {
		return "", fmt.Errorf("%w: %s", core.ErrUnknownMap, id)
	}
	return "Deleted map " + id, nil
}

func (s *Service) mapReload(e dispatcher.Event) (string, error) {
	ctx, cancel := storeContext()
	defer cancel()
	n, err := s.deps.Maps.Reload(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Reloaded %d maps", n), nil
}
