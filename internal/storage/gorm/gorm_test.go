package gormstorage

import (
	"context"
	"testing"
	"time"

	"github.com/man10/strike/internal/database"
	"github.com/man10/strike/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks
var (
	_ storage.MapBackend     = (*Backend)(nil)
	_ storage.HistoryBackend = (*Backend)(nil)
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.OpenSQLite("")
	require.NoError(t, err)

	b := New(Dependencies{DB: db})
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func sampleMap(id string) storage.MapRecord {
	return storage.MapRecord{
		ID:                    id,
		DisplayName:           "Dust II",
		Author:                "Valve",
		World:                 "dust2",
		Enabled:               true,
		LobbySpawn:            &storage.Point{X: 0, Y: 64, Z: 0},
		TerroristSpawn:        &storage.Point{X: 10, Y: 64, Z: 10, Yaw: 90},
		CounterTerroristSpawn: &storage.Point{X: -10, Y: 64, Z: -10, Yaw: -90},
		BombSites: storage.SiteList{
			{Name: "A", X: 50, Y: 64, Z: 50, Radius: 3},
			{Name: "B", X: -50, Y: 64, Z: -50, Radius: 5},
		},
	}
}

func TestInit_NoDB(t *testing.T) {
	b := New(Dependencies{})
	assert.Error(t, b.Init())
}

func TestSaveAndLoadMaps(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.SaveMap(ctx, sampleMap("dust2")))

	report, err := b.LoadMaps(ctx)
	require.NoError(t, err)
	require.Len(t, report.Records, 1)
	assert.Empty(t, report.Failed)

	got := report.Records[0]
	assert.Equal(t, sampleMap("dust2"), got)
}

func TestSaveMap_Upserts(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	rec := sampleMap("dust2")
	require.NoError(t, b.SaveMap(ctx, rec))

	rec.Enabled = false
	rec.BombSites = rec.BombSites[:1]
	require.NoError(t, b.SaveMap(ctx, rec))

	report, err := b.LoadMaps(ctx)
	require.NoError(t, err)
	require.Len(t, report.Records, 1)
	assert.False(t, report.Records[0].Enabled)
	assert.Len(t, report.Records[0].BombSites, 1)
}

func TestDeleteMap(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.SaveMap(ctx, sampleMap("dust2")))

	ok, err := b.DeleteMap(ctx, "dust2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.DeleteMap(ctx, "dust2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.SaveMap(ctx, sampleMap("dust2")))
}

func TestMatchHistory(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	start := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

	recs := []storage.MatchRecord{
		{MatchID: "m1", MapID: "dust2", Reason: "completed", Winner: "t", ScoreA: 13, ScoreB: 7, Rounds: 20,
			Players: []string{"p1", "p2"}, StartedAt: start, EndedAt: start.Add(30 * time.Minute)},
		{MatchID: "m2", MapID: "mirage", Reason: "forced", Rounds: 1,
			Players: []string{"p3"}, StartedAt: start, EndedAt: start.Add(time.Hour)},
	}
	require.NoError(t, b.SaveMatches(ctx, recs))
	require.NoError(t, b.SaveMatches(ctx, nil))

	got, err := b.RecentMatches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[0].MatchID)
	assert.Equal(t, "m1", got[1].MatchID)
	assert.ElementsMatch(t, []string{"p1", "p2"}, got[1].Players)
	assert.Equal(t, 13, got[1].ScoreA)

	got, err = b.RecentMatches(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = b.RecentMatches(ctx, 0)
	assert.Error(t, err)
}
