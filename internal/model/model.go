package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels lists every table migrated at startup.
var DatabaseModels = []any{
	&Map{},
	&Match{},
	&MatchPlayer{},
}

// Map is a stored map definition. Spawns and bomb sites are JSON documents so
// the table shape does not change when a map gains a site.
type Map struct {
	ID          string `json:"id" gorm:"primaryKey;size:64"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DisplayName string         `json:"displayName" gorm:"size:128"`
	Description string         `json:"description" gorm:"size:1000"`
	Author      string         `json:"author" gorm:"size:64"`
	World       string         `json:"world" gorm:"size:64;index"`
	Enabled     bool           `json:"enabled" gorm:"index"`
	Spawns      datatypes.JSON `json:"spawns"`
	BombSites   datatypes.JSON `json:"bombSites"`
}

func (*Map) TableName() string {
	return "maps"
}

// Match is a finished match.
type Match struct {
	gorm.Model
	MatchID   string        `json:"matchId" gorm:"size:36;uniqueIndex"`
	MapID     string        `json:"mapId" gorm:"size:64;index"`
	Reason    string        `json:"reason" gorm:"size:32"`
	Winner    string        `json:"winner" gorm:"size:8"`
	ScoreA    int           `json:"scoreA"`
	ScoreB    int           `json:"scoreB"`
	Rounds    int           `json:"rounds"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt" gorm:"index:idx_match_ended_at"`
	Players   []MatchPlayer `gorm:"foreignKey:MatchRef;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Match) TableName() string {
	return "matches"
}

// MatchPlayer links a player to a finished match.
type MatchPlayer struct {
	ID       uint   `gorm:"primarykey"`
	MatchRef uint   `gorm:"index"`
	PlayerID string `json:"playerId" gorm:"size:36;index"`
}

func (*MatchPlayer) TableName() string {
	return "match_players"
}
