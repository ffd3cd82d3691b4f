package maps

import (
	"fmt"

	"github.com/man10/strike/internal/storage"
	"github.com/man10/strike/pkg/core"
)

// DefaultSiteRadius applies to stored bomb sites without a radius.
const DefaultSiteRadius = 3.0

// ValidID reports whether id can name a map file.
func ValidID(id string) bool {
	return storage.ValidMapID(id)
}

func toPosition(world string, p storage.Point) core.Position {
	return core.NewPosition(world, p.X, p.Y, p.Z, float32(p.Yaw), float32(p.Pitch))
}

func toPoint(p core.Position) *storage.Point {
	return &storage.Point{X: p.X(), Y: p.Y(), Z: p.Z(), Yaw: float64(p.Yaw), Pitch: float64(p.Pitch)}
}

// FromRecord decodes a stored record. Lobby and side spawns are required and
// the result must pass MapDefinition.Validate.
func FromRecord(rec storage.MapRecord) (core.MapDefinition, error) {
	def := core.MapDefinition{
		ID:          rec.ID,
		DisplayName: rec.DisplayName,
		Description: rec.Description,
		Author:      rec.Author,
		World:       rec.World,
		Enabled:     rec.Enabled,
	}
	if def.DisplayName == "" {
		def.DisplayName = rec.ID
	}

	required := []struct {
		name string
		p    *storage.Point
		dst  *core.Position
	}{
		{"lobby-spawn", rec.LobbySpawn, &def.LobbySpawn},
		{"terrorist-spawn", rec.TerroristSpawn, &def.SideASpawn},
		{"counter-terrorist-spawn", rec.CounterTerroristSpawn, &def.SideBSpawn},
	}
	for _, r := range required {
		if r.p == nil {
			return def, fmt.Errorf("%w: %s is missing %s", core.ErrInvalidMap, rec.ID, r.name)
		}
		*r.dst = toPosition(rec.World, *r.p)
	}
	if rec.SpectatorSpawn != nil {
		pos := toPosition(rec.World, *rec.SpectatorSpawn)
		def.SpectatorSpawn = &pos
	}

	for _, s := range rec.BombSites {
		world := s.World
		if world == "" {
			world = rec.World
		}
		radius := s.Radius
		if radius <= 0 {
			radius = DefaultSiteRadius
		}
		def.BombSites = append(def.BombSites, core.BombSite{
			Name:   s.Name,
			Center: core.NewPosition(world, s.X, s.Y, s.Z, 0, 0),
			Radius: radius,
		})
	}

	if err := def.Validate(); err != nil {
		return def, err
	}
	return def, nil
}

// ToRecord encodes a definition for storage.
func ToRecord(def core.MapDefinition) storage.MapRecord {
	rec := storage.MapRecord{
		ID:                    def.ID,
		DisplayName:           def.DisplayName,
		Description:           def.Description,
		Author:                def.Author,
		World:                 def.World,
		Enabled:               def.Enabled,
		LobbySpawn:            toPoint(def.LobbySpawn),
		TerroristSpawn:        toPoint(def.SideASpawn),
		CounterTerroristSpawn: toPoint(def.SideBSpawn),
	}
	if def.SpectatorSpawn != nil {
		rec.SpectatorSpawn = toPoint(*def.SpectatorSpawn)
	}
	for _, s := range def.BombSites {
		site := storage.SiteRecord{
			Name:   s.Name,
			X:      s.Center.X(),
			Y:      s.Center.Y(),
			Z:      s.Center.Z(),
			Radius: s.Radius,
		}
		if s.Center.World != def.World {
			site.World = s.Center.World
		}
		rec.BombSites = append(rec.BombSites, site)
	}
	return rec
}
