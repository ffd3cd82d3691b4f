package database

import (
	"database/sql"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/man10/strike/internal/config"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Manager handles the relational database connection.
type Manager struct {
	DB             *gorm.DB
	SqlDB          *sql.DB
	IsValid        bool
	UsingSQLite    bool
	SqliteFilePath string
	Logger         zerolog.Logger

	cfg config.DatabaseConfig
}

// NewManager creates a new database manager. sqlitePath is used when Postgres
// is disabled or unreachable; an empty path means an in-memory database.
func NewManager(log zerolog.Logger, cfg config.DatabaseConfig, sqlitePath string) *Manager {
	return &Manager{
		Logger:         log,
		SqliteFilePath: sqlitePath,
		cfg:            cfg,
	}
}

// Connect opens Postgres when enabled, falling back to SQLite when it fails.
func (m *Manager) Connect() error {
	if m.cfg.Enabled {
		db, err := m.GetPostgresDB()
		if err == nil {
			err = m.ping(db)
		}
		if err == nil {
			m.DB = db
			m.IsValid = true
			m.SqlDB.SetMaxOpenConns(10)
			m.Logger.Info().Str("host", m.cfg.Host).Msg("Connected to Postgres")
			return nil
		}
		m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
	}

	db, err := m.GetSqliteDB(m.SqliteFilePath)
	if err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to get local SQLite DB: %w", err)
	}
	if err := m.ping(db); err != nil {
		m.IsValid = false
		return err
	}
	m.DB = db
	m.UsingSQLite = true
	m.IsValid = true
	return nil
}

func (m *Manager) ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	m.SqlDB = sqlDB
	return nil
}

// DSN builds the Postgres connection string.
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(`host=%s port=%d user=%s password=%s dbname=%s sslmode=disable`,
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
}

// GetPostgresDB returns a connection to the Postgres database.
func (m *Manager) GetPostgresDB() (*gorm.DB, error) {
	m.Logger.Debug().Str("host", m.cfg.Host).Int("port", m.cfg.Port).Str("database", m.cfg.Database).
		Msg("Connecting to Postgres DB")

	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  DSN(m.cfg),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// GetSqliteDB returns a connection to a SQLite database.
// If path is empty, a private in-memory database is used.
func (m *Manager) GetSqliteDB(path string) (*gorm.DB, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if path == "" {
		m.Logger.Info().Msg("Using local SQLite DB in memory")
	} else {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	}
	return db, nil
}

// OpenSQLite opens path, or a fresh named in-memory database when path is empty.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	if path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL;")
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return db, nil
}

// Close closes the connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	m.IsValid = false
	return m.SqlDB.Close()
}
