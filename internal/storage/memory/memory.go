// internal/storage/memory/memory.go
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/man10/strike/internal/storage"
)

// Backend keeps maps and match history in process memory. Contents are lost on
// restart; it backs the "memory" storage type and tests.
type Backend struct {
	mu      sync.RWMutex
	maps    map[string]storage.MapRecord
	matches []storage.MatchRecord
}

// New creates an empty backend.
func New() *Backend {
	return &Backend{maps: make(map[string]storage.MapRecord)}
}

func (b *Backend) Init() error  { return nil }
func (b *Backend) Close() error { return nil }

func cloneRecord(rec storage.MapRecord) storage.MapRecord {
	rec.BombSites = append(storage.SiteList(nil), rec.BombSites...)
	for _, p := range []**storage.Point{&rec.LobbySpawn, &rec.TerroristSpawn, &rec.CounterTerroristSpawn, &rec.SpectatorSpawn} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	return rec
}

func (b *Backend) LoadMaps(ctx context.Context) (storage.LoadReport, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	report := storage.LoadReport{Failed: make(map[string]error)}
	for _, rec := range b.maps {
		report.Records = append(report.Records, cloneRecord(rec))
	}
	sort.Slice(report.Records, func(i, j int) bool { return report.Records[i].ID < report.Records[j].ID })
	return report, nil
}

func (b *Backend) SaveMap(ctx context.Context, rec storage.MapRecord) error {
	if rec.ID == "" {
		return errors.New("map record has no id")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maps[rec.ID] = cloneRecord(rec)
	return nil
}

func (b *Backend) DeleteMap(ctx context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.maps[id]
	delete(b.maps, id)
	return ok, nil
}

func (b *Backend) SaveMatches(ctx context.Context, recs []storage.MatchRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.matches = append(b.matches, recs...)
	return nil
}

// RecentMatches returns up to limit matches, most recently ended first.
func (b *Backend) RecentMatches(ctx context.Context, limit int) ([]storage.MatchRecord, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	b.mu.RLock()
	out := append([]storage.MatchRecord(nil), b.matches...)
	b.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
