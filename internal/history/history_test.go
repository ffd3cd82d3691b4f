package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/man10/strike/internal/match"
	"github.com/man10/strike/internal/storage"
	"github.com/man10/strike/internal/storage/memory"
	"github.com/man10/strike/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)

func summary(i int) match.Summary {
	winner := core.SideB
	return match.Summary{
		MatchID:   core.NewMatchID(),
		MapID:     "dust2",
		Reason:    match.ReasonCompleted,
		Winner:    &winner,
		Score:     [2]int{3, 13},
		Rounds:    16,
		Players:   []core.PlayerID{uuid.New(), uuid.New()},
		StartedAt: base.Add(time.Duration(i) * time.Hour),
		EndedAt:   base.Add(time.Duration(i)*time.Hour + 40*time.Minute),
	}
}

type failingStore struct {
	*memory.Backend
	mu   sync.Mutex
	fail bool
}

func (f *failingStore) SaveMatches(ctx context.Context, recs []storage.MatchRecord) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.Backend.SaveMatches(ctx, recs)
}

type metricsSink struct {
	mu   sync.Mutex
	recs []storage.MatchRecord
}

func (m *metricsSink) WriteMatch(_ context.Context, rec storage.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func TestToRecord(t *testing.T) {
	s := summary(0)
	rec := ToRecord(s)

	assert.Equal(t, s.MatchID.String(), rec.MatchID)
	assert.Equal(t, "completed", rec.Reason)
	assert.Equal(t, "ct", rec.Winner)
	assert.Equal(t, 3, rec.ScoreA)
	assert.Equal(t, 13, rec.ScoreB)
	assert.Equal(t, []string{s.Players[0].String(), s.Players[1].String()}, rec.Players)
	assert.Equal(t, 40*time.Minute, rec.Duration())

	s.Winner = nil
	assert.Empty(t, ToRecord(s).Winner)
}

func TestRecordAndFlush(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sink := &metricsSink{}
	r := New(Dependencies{Store: store, Metrics: sink, BatchSize: 2})

	for i := 0; i < 3; i++ {
		r.Record(summary(i))
	}
	unplayed := summary(9)
	unplayed.StartedAt = time.Time{}
	r.Record(unplayed)
	assert.Equal(t, 3, r.Pending())

	n, err := r.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, r.Pending())

	require.NoError(t, r.FlushAll(ctx))
	assert.Zero(t, r.Pending())
	assert.Len(t, sink.recs, 3)

	recent, err := r.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].EndedAt.After(recent[1].EndedAt))
}

func TestFlush_RequeuesOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Backend: memory.New(), fail: true}
	sink := &metricsSink{}
	r := New(Dependencies{Store: store, Metrics: sink})

	r.Record(summary(0))
	_, err := r.Flush(ctx)
	assert.ErrorIs(t, err, core.ErrPersistence)
	assert.Equal(t, 1, r.Pending())
	assert.Empty(t, sink.recs, "metrics are written after the store accepts the batch")

	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()

	n, err := r.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStartStop(t *testing.T) {
	store := memory.New()
	r := New(Dependencies{Store: store})

	r.Start(5 * time.Millisecond)
	r.Start(5 * time.Millisecond)
	assert.True(t, r.IsRunning())

	r.Record(summary(0))
	require.Eventually(t, func() bool { return r.Pending() == 0 }, 2*time.Second, 5*time.Millisecond)

	r.Record(summary(1))
	require.NoError(t, r.Stop(context.Background()))
	assert.False(t, r.IsRunning())
	assert.Zero(t, r.Pending())

	recent, err := store.RecentMatches(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
