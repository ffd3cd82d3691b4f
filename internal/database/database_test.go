package database

import (
	"path/filepath"
	"testing"

	"github.com/man10/strike/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_DisabledPostgresUsesSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strike.db")
	m := NewManager(zerolog.Nop(), config.DatabaseConfig{Enabled: false}, path)

	require.NoError(t, m.Connect())
	defer m.Close()

	assert.True(t, m.IsValid)
	assert.True(t, m.UsingSQLite)
	assert.Equal(t, "sqlite", m.DB.Name())
	assert.FileExists(t, path)
}

func TestConnect_UnreachablePostgresFallsBack(t *testing.T) {
	cfg := config.DatabaseConfig{
		Enabled:  true,
		Host:     "127.0.0.1",
		Port:     1,
		Username: "postgres",
		Database: "strike",
	}
	m := NewManager(zerolog.Nop(), cfg, "")

	require.NoError(t, m.Connect())
	defer m.Close()

	assert.True(t, m.UsingSQLite)
	assert.True(t, m.IsValid)
}

func TestOpenSQLite_InMemoryDatabasesAreIsolated(t *testing.T) {
	a, err := OpenSQLite("")
	require.NoError(t, err)
	b, err := OpenSQLite("")
	require.NoError(t, err)

	require.NoError(t, a.Exec("CREATE TABLE only_in_a (id INTEGER)").Error)
	assert.True(t, a.Migrator().HasTable("only_in_a"))
	assert.False(t, b.Migrator().HasTable("only_in_a"))
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5433, Username: "u", Password: "p", Database: "strike"})
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=strike sslmode=disable", dsn)
}
