// Package gormstorage implements the map and history stores on GORM, usable
// with both the Postgres and SQLite dialects.
package gormstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/man10/strike/internal/model"
	"github.com/man10/strike/internal/storage"
	"github.com/man10/strike/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend stores maps and match history in a relational database.
type Backend struct {
	deps Dependencies
}

// New creates a backend. Init must be called before use.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("%w: no database connection", core.ErrPersistence)
	}
	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("%w: failed to migrate schema: %v", core.ErrPersistence, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type spawns struct {
	Lobby            *storage.Point `json:"lobby,omitempty"`
	Terrorist        *storage.Point `json:"terrorist,omitempty"`
	CounterTerrorist *storage.Point `json:"counterTerrorist,omitempty"`
	Spectator        *storage.Point `json:"spectator,omitempty"`
}

func toModel(rec storage.MapRecord) (model.Map, error) {
	sp, err := json.Marshal(spawns{
		Lobby:            rec.LobbySpawn,
		Terrorist:        rec.TerroristSpawn,
		CounterTerrorist: rec.CounterTerroristSpawn,
		Spectator:        rec.SpectatorSpawn,
	})
	if err != nil {
		return model.Map{}, err
	}
	sites, err := json.Marshal([]storage.SiteRecord(rec.BombSites))
	if err != nil {
		return model.Map{}, err
	}
	return model.Map{
		ID:          rec.ID,
		DisplayName: rec.DisplayName,
		Description: rec.Description,
		Author:      rec.Author,
		World:       rec.World,
		Enabled:     rec.Enabled,
		Spawns:      sp,
		BombSites:   sites,
	}, nil
}

func fromModel(m model.Map) (storage.MapRecord, error) {
	rec := storage.MapRecord{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Description: m.Description,
		Author:      m.Author,
		World:       m.World,
		Enabled:     m.Enabled,
	}
	var sp spawns
	if len(m.Spawns) > 0 {
		if err := json.Unmarshal(m.Spawns, &sp); err != nil {
			return rec, fmt.Errorf("decoding spawns: %w", err)
		}
	}
	rec.LobbySpawn = sp.Lobby
	rec.TerroristSpawn = sp.Terrorist
	rec.CounterTerroristSpawn = sp.CounterTerrorist
	rec.SpectatorSpawn = sp.Spectator

	if len(m.BombSites) > 0 {
		var sites []storage.SiteRecord
		if err := json.Unmarshal(m.BombSites, &sites); err != nil {
			return rec, fmt.Errorf("decoding bomb sites: %w", err)
		}
		rec.BombSites = sites
	}
	return rec, nil
}

// LoadMaps reads every stored map.
func (b *Backend) LoadMaps(ctx context.Context) (storage.LoadReport, error) {
	report := storage.LoadReport{Failed: make(map[string]error)}

	var rows []model.Map
	if err := b.deps.DB.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return report, fmt.Errorf("%w: loading maps: %v", core.ErrPersistence, err)
	}
	for _, row := range rows {
		rec, err := fromModel(row)
		if err != nil {
			report.Failed[row.ID] = fmt.Errorf("%w: %v", core.ErrPersistence, err)
			continue
		}
		report.Records = append(report.Records, rec)
	}
	return report, nil
}

// SaveMap inserts or replaces a map row.
func (b *Backend) SaveMap(ctx context.Context, rec storage.MapRecord) error {
	row, err := toModel(rec)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %v", core.ErrPersistence, rec.ID, err)
	}
	err = b.deps.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at", "display_name", "description", "author", "world", "enabled", "spawns", "bomb_sites"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("%w: saving %s: %v", core.ErrPersistence, rec.ID, err)
	}
	return nil
}

// DeleteMap removes a map row.
func (b *Backend) DeleteMap(ctx context.Context, id string) (bool, error) {
	res := b.deps.DB.WithContext(ctx).Delete(&model.Map{}, "id = ?", id)
	if res.Error != nil {
		return false, fmt.Errorf("%w: deleting %s: %v", core.ErrPersistence, id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SaveMatches writes a batch of finished matches in one transaction.
func (b *Backend) SaveMatches(ctx context.Context, recs []storage.MatchRecord) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]model.Match, 0, len(recs))
	for _, r := range recs {
		row := model.Match{
			MatchID:   r.MatchID,
			MapID:     r.MapID,
			Reason:    r.Reason,
			Winner:    r.Winner,
			ScoreA:    r.ScoreA,
			ScoreB:    r.ScoreB,
			Rounds:    r.Rounds,
			StartedAt: r.StartedAt,
			EndedAt:   r.EndedAt,
		}
		for _, p := range r.Players {
			row.Players = append(row.Players, model.MatchPlayer{PlayerID: p})
		}
		rows = append(rows, row)
	}

	err := b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("%w: saving %d matches: %v", core.ErrPersistence, len(recs), err)
	}
	return nil
}

// RecentMatches returns the most recently ended matches, newest first.
func (b *Backend) RecentMatches(ctx context.Context, limit int) ([]storage.MatchRecord, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	var rows []model.Match
	err := b.deps.DB.WithContext(ctx).
		Preload("Players").
		Order("ended_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: loading matches: %v", core.ErrPersistence, err)
	}

	out := make([]storage.MatchRecord, 0, len(rows))
	for _, row := range rows {
		rec := storage.MatchRecord{
			MatchID:   row.MatchID,
			MapID:     row.MapID,
			Reason:    row.Reason,
			Winner:    row.Winner,
			ScoreA:    row.ScoreA,
			ScoreB:    row.ScoreB,
			Rounds:    row.Rounds,
			StartedAt: row.StartedAt,
			EndedAt:   row.EndedAt,
		}
		for _, p := range row.Players {
			rec.Players = append(rec.Players, p.PlayerID)
		}
		out = append(out, rec)
	}
	return out, nil
}
