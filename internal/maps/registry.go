// Package maps holds the set of known map definitions and keeps it in sync
// with a storage.MapStore.
package maps

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/man10/strike/internal/storage"
	"github.com/man10/strike/pkg/core"
	"github.com/man10/strike/pkg/host"
)

// Registry is safe for concurrent use. Reads never block on persistence;
// mutations are serialized and written to the store before they become visible.
type Registry struct {
	store  storage.MapStore
	worlds host.Worlds
	log    *slog.Logger

	writeMu sync.Mutex

	mu   sync.RWMutex
	maps map[string]core.MapDefinition
}

// New creates an empty registry. Call Load to populate it.
func New(store storage.MapStore, worlds host.Worlds, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		store:  store,
		worlds: worlds,
		log:    log,
		maps:   make(map[string]core.MapDefinition),
	}
}

// Load replaces the registry contents with the store's records. Records that
// fail to decode, reference an unloaded world, or have no bomb sites are
// skipped with a warning. If the store cannot be read at all the registry is
// left empty and the error is returned.
func (r *Registry) Load(ctx context.Context) (int, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	report, err := r.store.LoadMaps(ctx)
	if err != nil {
		r.mu.Lock()
		r.maps = make(map[string]core.MapDefinition)
		r.mu.Unlock()
		return 0, fmt.Errorf("loading maps: %w", err)
	}

	for id, ferr := range report.Failed {
		r.log.Warn("Skipping unreadable map", "map", id, "error", ferr)
	}

	loaded := make(map[string]core.MapDefinition, len(report.Records))
	for _, rec := range report.Records {
		def, err := FromRecord(rec)
		if err != nil {
			r.log.Warn("Skipping invalid map", "map", rec.ID, "error", err)
			continue
		}
		if r.worlds != nil && !r.worlds.WorldLoaded(def.World) {
			r.log.Warn("Skipping map with unknown world", "map", def.ID, "world", def.World)
			continue
		}
		loaded[def.ID] = def
	}

	r.mu.Lock()
	r.maps = loaded
	r.mu.Unlock()

	r.log.Info("Maps loaded", "count", len(loaded), "skipped", len(report.Records)-len(loaded)+len(report.Failed))
	return len(loaded), nil
}

// Get returns a map by id.
func (r *Registry) Get(id string) (core.MapDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.maps[id]
	return m, ok
}

// Has reports whether a map id is known.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

func (r *Registry) sorted(filter func(core.MapDefinition) bool) []core.MapDefinition {
	r.mu.RLock()
	out := make([]core.MapDefinition, 0, len(r.maps))
	for _, m := range r.maps {
		if filter == nil || filter(m) {
			out = append(out, m)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every map sorted by id.
func (r *Registry) All() []core.MapDefinition {
	return r.sorted(nil)
}

// EnabledMaps returns the maps eligible for new matches, sorted by id.
func (r *Registry) EnabledMaps() []core.MapDefinition {
	return r.sorted(func(m core.MapDefinition) bool { return m.Enabled })
}

// Upsert validates and persists a map, then makes it visible.
func (r *Registry) Upsert(ctx context.Context, m core.MapDefinition) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_, err := r.upsertLocked(ctx, m)
	return err
}

// Create is Upsert for a new id. It fails with core.ErrMapExists when the id
// is already taken, including by a map added since the caller last looked.
func (r *Registry) Create(ctx context.Context, m core.MapDefinition) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_, err := r.createLocked(ctx, m)
	return err
}

func (r *Registry) createLocked(ctx context.Context, m core.MapDefinition) (core.MapDefinition, error) {
	if r.Has(m.ID) {
		return core.MapDefinition{}, fmt.Errorf("%w: %s", core.ErrMapExists, m.ID)
	}
	return r.upsertLocked(ctx, m)
}

// upsertLocked stores m and returns it as later loads will see it: a blank
// display name falls back to the id.
func (r *Registry) upsertLocked(ctx context.Context, m core.MapDefinition) (core.MapDefinition, error) {
	if !ValidID(m.ID) {
		return core.MapDefinition{}, fmt.Errorf("%w: invalid map id %q", core.ErrInvalidMap, m.ID)
	}
	if strings.TrimSpace(m.DisplayName) == "" {
		m = m.WithDisplayName(m.ID)
	}
	if err := m.Validate(); err != nil {
		return core.MapDefinition{}, err
	}
	if err := r.store.SaveMap(ctx, ToRecord(m)); err != nil {
		return core.MapDefinition{}, err
	}

	r.mu.Lock()
	r.maps[m.ID] = m
	r.mu.Unlock()
	return m, nil
}

// Update applies fn to an existing map and upserts the result.
func (r *Registry) Update(ctx context.Context, id string, fn func(core.MapDefinition) (core.MapDefinition, error)) (core.MapDefinition, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	cur, ok := r.Get(id)
	if !ok {
		return core.MapDefinition{}, fmt.Errorf("%w: %s", core.ErrUnknownMap, id)
	}
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	next.ID = id
	stored, err := r.upsertLocked(ctx, next)
	if err != nil {
		return cur, err
	}
	return stored, nil
}

// Remove deletes a map from the store and the registry.
func (r *Registry) Remove(ctx context.Context, id string) (bool, error) {
	if !ValidID(id) {
		return false, fmt.Errorf("%w: invalid map id %q", core.ErrInvalidMap, id)
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	stored, err := r.store.DeleteMap(ctx, id)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	_, known := r.maps[id]
	delete(r.maps, id)
	r.mu.Unlock()

	return stored || known, nil
}

// Copy duplicates src under a new id. The copy's display name gets a " (Copy)" suffix.
func (r *Registry) Copy(ctx context.Context, src, dst string) (core.MapDefinition, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	from, ok := r.Get(src)
	if !ok {
		return core.MapDefinition{}, fmt.Errorf("%w: %s", core.ErrUnknownMap, src)
	}
	return r.createLocked(ctx, from.WithID(dst).WithDisplayName(from.DisplayName+" (Copy)"))
}

// Reload is Load under the name used by the admin command.
func (r *Registry) Reload(ctx context.Context) (int, error) {
	return r.Load(ctx)
}
