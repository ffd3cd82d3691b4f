// internal/storage/storage.go
package storage

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

var mapIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidMapID reports whether id can name a stored map. File stores use the
// id as a file name, so separators, dots and the template name are refused.
func ValidMapID(id string) bool {
	return mapIDPattern.MatchString(id) && id != "template"
}

// Point is a persisted position. The world is implied by the owning record.
type Point struct {
	X     float64 `yaml:"x" json:"x"`
	Y     float64 `yaml:"y" json:"y"`
	Z     float64 `yaml:"z" json:"z"`
	Yaw   float64 `yaml:"yaw" json:"yaw"`
	Pitch float64 `yaml:"pitch" json:"pitch"`
}

// SiteRecord is a persisted bomb site.
type SiteRecord struct {
	Name   string  `yaml:"-" json:"name"`
	World  string  `yaml:"world,omitempty" json:"world,omitempty"`
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Z      float64 `yaml:"z" json:"z"`
	Radius float64 `yaml:"radius,omitempty" json:"radius,omitempty"`
}

// SiteList is written as a YAML mapping keyed by site name, in list order.
type SiteList []SiteRecord

// MarshalYAML implements yaml.Marshaler.
func (l SiteList) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range l {
		var val yaml.Node
		if err := val.Encode(s); err != nil {
			return nil, fmt.Errorf("encoding bomb site %s: %w", s.Name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.Name},
			&val,
		)
	}
	return node, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *SiteList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: bomb-sites must be a mapping", value.Line)
	}
	out := make(SiteList, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var s SiteRecord
		if err := value.Content[i+1].Decode(&s); err != nil {
			return fmt.Errorf("bomb site %s: %w", value.Content[i].Value, err)
		}
		s.Name = value.Content[i].Value
		out = append(out, s)
	}
	*l = out
	return nil
}

// MapRecord is the persisted form of a map definition. The ID is not part of
// the document; file stores derive it from the file name.
type MapRecord struct {
	ID                    string   `yaml:"-" json:"id"`
	DisplayName           string   `yaml:"display-name" json:"displayName"`
	Description           string   `yaml:"description" json:"description"`
	Author                string   `yaml:"author" json:"author"`
	World                 string   `yaml:"world" json:"world"`
	Enabled               bool     `yaml:"enabled" json:"enabled"`
	LobbySpawn            *Point   `yaml:"lobby-spawn,omitempty" json:"lobbySpawn,omitempty"`
	TerroristSpawn        *Point   `yaml:"terrorist-spawn,omitempty" json:"terroristSpawn,omitempty"`
	CounterTerroristSpawn *Point   `yaml:"counter-terrorist-spawn,omitempty" json:"counterTerroristSpawn,omitempty"`
	SpectatorSpawn        *Point   `yaml:"spectator-spawn,omitempty" json:"spectatorSpawn,omitempty"`
	BombSites             SiteList `yaml:"bomb-sites,omitempty" json:"bombSites,omitempty"`
}

// LoadReport is the result of reading every stored map. Records that could
// not be decoded are listed in Failed by id and skipped.
type LoadReport struct {
	Records []MapRecord
	Failed  map[string]error
}

// MatchRecord is the persisted summary of a finished match.
type MatchRecord struct {
	MatchID   string
	MapID     string
	Reason    string
	Winner    string
	ScoreA    int
	ScoreB    int
	Rounds    int
	Players   []string
	StartedAt time.Time
	EndedAt   time.Time
}

// Duration is the wall time the match was live.
func (r MatchRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Backend is the lifecycle every storage implementation shares.
type Backend interface {
	Init() error
	Close() error
}

// MapStore persists map definitions.
type MapStore interface {
	LoadMaps(ctx context.Context) (LoadReport, error)
	SaveMap(ctx context.Context, rec MapRecord) error
	// DeleteMap reports whether a record existed.
	DeleteMap(ctx context.Context, id string) (bool, error)
}

// HistoryStore persists finished matches.
type HistoryStore interface {
	SaveMatches(ctx context.Context, recs []MatchRecord) error
	RecentMatches(ctx context.Context, limit int) ([]MatchRecord, error)
}

// MapBackend is a MapStore with a lifecycle.
type MapBackend interface {
	Backend
	MapStore
}

// HistoryBackend is a HistoryStore with a lifecycle.
type HistoryBackend interface {
	Backend
	HistoryStore
}
