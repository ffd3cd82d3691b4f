// Package yamlfile stores one YAML document per map in a directory.
package yamlfile

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/man10/strike/internal/storage"
	"github.com/man10/strike/pkg/core"
	"gopkg.in/yaml.v3"
)

// TemplateName is the reference file written into a fresh directory. It is never loaded.
const TemplateName = "template.yml"

const ext = ".yml"

//go:embed template.yml
var template []byte

// Store keeps map records under dir as <id>.yml.
type Store struct {
	dir string
	log *slog.Logger
}

// New creates a store rooted at dir.
func New(dir string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{dir: dir, log: log}
}

// Init creates the directory and writes the template when it does not exist yet.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating maps dir: %v", core.ErrPersistence, err)
	}
	path := filepath.Join(s.dir, TemplateName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, template, 0o644); err != nil {
			return fmt.Errorf("%w: writing template: %v", core.ErrPersistence, err)
		}
		s.log.Info("Wrote map template", "path", path)
	}
	return nil
}

// Close is a no-op; files are written synchronously.
func (s *Store) Close() error { return nil }

// Path returns the file path of a map id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+ext)
}

// LoadMaps reads every <id>.yml except the template.
func (s *Store) LoadMaps(ctx context.Context) (storage.LoadReport, error) {
	report := storage.LoadReport{Failed: make(map[string]error)}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return report, fmt.Errorf("%w: reading maps dir: %v", core.ErrPersistence, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) || e.Name() == TemplateName {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		id := strings.TrimSuffix(name, ext)
		rec, err := s.read(filepath.Join(s.dir, name))
		if err != nil {
			report.Failed[id] = err
			continue
		}
		rec.ID = id
		report.Records = append(report.Records, rec)
	}
	return report, nil
}

func (s *Store) read(path string) (storage.MapRecord, error) {
	var rec storage.MapRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, fmt.Errorf("%w: %v", core.ErrPersistence, err)
	}
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("%w: decoding %s: %v", core.ErrPersistence, filepath.Base(path), err)
	}
	return rec, nil
}

// SaveMap writes the record through a temporary file so readers never see a partial document.
func (s *Store) SaveMap(ctx context.Context, rec storage.MapRecord) error {
	if !storage.ValidMapID(rec.ID) {
		return fmt.Errorf("%w: %w: invalid map id %q", core.ErrPersistence, core.ErrInvalidMap, rec.ID)
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %v", core.ErrPersistence, rec.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+rec.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersistence, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing %s: %v", core.ErrPersistence, rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersistence, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(rec.ID)); err != nil {
		return fmt.Errorf("%w: replacing %s: %v", core.ErrPersistence, rec.ID, err)
	}
	return nil
}

// DeleteMap removes the file of a map id.
func (s *Store) DeleteMap(ctx context.Context, id string) (bool, error) {
	if !storage.ValidMapID(id) {
		return false, fmt.Errorf("%w: %w: invalid map id %q", core.ErrPersistence, core.ErrInvalidMap, id)
	}
	err := os.Remove(s.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: deleting %s: %v", core.ErrPersistence, id, err)
	}
	return true, nil
}
