// Package backends selects storage implementations from configuration.
package backends

import (
	"fmt"
	"log/slog"

	"github.com/man10/strike/internal/config"
	"github.com/man10/strike/internal/storage"
	gormstorage "github.com/man10/strike/internal/storage/gorm"
	"github.com/man10/strike/internal/storage/memory"
	"github.com/man10/strike/internal/storage/yamlfile"
	"gorm.io/gorm"
)

// NewMapBackend creates the map store named by cfg.Type. The database-backed
// types need db; the others ignore it.
func NewMapBackend(cfg config.StorageConfig, db *gorm.DB, log *slog.Logger) (storage.MapBackend, error) {
	switch cfg.Type {
	case "yaml", "":
		return yamlfile.New(cfg.MapsDir, log), nil
	case "sqlite", "postgres":
		if db == nil {
			return nil, fmt.Errorf("storage type %s needs a database connection", cfg.Type)
		}
		return gormstorage.New(gormstorage.Dependencies{DB: db, Logger: log}), nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// NewHistoryBackend stores match history in db, or in memory when db is nil.
func NewHistoryBackend(db *gorm.DB, log *slog.Logger) storage.HistoryBackend {
	if db == nil {
		return memory.New()
	}
	return gormstorage.New(gormstorage.Dependencies{DB: db, Logger: log})
}
