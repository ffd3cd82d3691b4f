// Package history records finished matches to storage and InfluxDB.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/man10/strike/internal/match"
	"github.com/man10/strike/internal/queue"
	"github.com/man10/strike/internal/storage"
	"github.com/man10/strike/pkg/core"
)

// MatchWriter receives every flushed record, e.g. the InfluxDB manager.
type MatchWriter interface {
	WriteMatch(ctx context.Context, rec storage.MatchRecord) error
}

// Dependencies holds all dependencies for the recorder
type Dependencies struct {
	Store     storage.HistoryStore
	Metrics   MatchWriter
	Logger    *slog.Logger
	BatchSize int
	// QueueLimit bounds pending records; the oldest are dropped beyond it.
	QueueLimit int
}

// Recorder batches match summaries and writes them in the background.
type Recorder struct {
	deps    Dependencies
	log     *slog.Logger
	pending *queue.Queue[storage.MatchRecord]

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
}

// New creates a recorder. Call Start to flush periodically.
func New(deps Dependencies) *Recorder {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = 100
	}
	return &Recorder{
		deps:    deps,
		log:     deps.Logger.With("component", "history"),
		pending: queue.New[storage.MatchRecord](deps.QueueLimit),
	}
}

// ToRecord converts a match summary to its persisted form.
func ToRecord(s match.Summary) storage.MatchRecord {
	rec := storage.MatchRecord{
		MatchID:   s.MatchID.String(),
		MapID:     s.MapID,
		Reason:    string(s.Reason),
		ScoreA:    s.Score[core.SideA],
		ScoreB:    s.Score[core.SideB],
		Rounds:    s.Rounds,
		Players:   make([]string, 0, len(s.Players)),
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
	}
	if s.Winner != nil {
		rec.Winner = s.Winner.Key()
	}
	for _, p := range s.Players {
		rec.Players = append(rec.Players, p.String())
	}
	return rec
}

// Record enqueues a finished match. Matches that never left the lobby are
// not recorded.
func (r *Recorder) Record(s match.Summary) {
	if !s.Played() {
		r.log.Debug("skipping unplayed match", "match", core.ShortID(s.MatchID), "reason", s.Reason)
		return
	}
	if dropped := r.pending.Push(ToRecord(s)); dropped > 0 {
		r.log.Warn("history queue full, dropped oldest records", "dropped", dropped)
	}
}

// Pending returns the number of records waiting to be flushed.
func (r *Recorder) Pending() int {
	return r.pending.Len()
}

// Flush writes one batch. Records are put back when the store rejects them.
func (r *Recorder) Flush(ctx context.Context) (int, error) {
	batch := r.pending.Drain(r.deps.BatchSize)
	if len(batch) == 0 {
		return 0, nil
	}

	if r.deps.Store != nil {
		if err := r.deps.Store.SaveMatches(ctx, batch); err != nil {
			if dropped := r.pending.Requeue(batch); dropped > 0 {
				r.log.Warn("history queue full, dropped records", "dropped", dropped)
			}
			return 0, fmt.Errorf("%w: saving %d matches: %w", core.ErrPersistence, len(batch), err)
		}
	}

	if r.deps.Metrics != nil {
		for _, rec := range batch {
			if err := r.deps.Metrics.WriteMatch(ctx, rec); err != nil {
				r.log.Warn("failed to write match metrics", "match", rec.MatchID, "error", err)
			}
		}
	}

	r.log.Debug("flushed match history", "count", len(batch))
	return len(batch), nil
}

// FlushAll flushes until the queue is empty or a write fails.
func (r *Recorder) FlushAll(ctx context.Context) error {
	for r.pending.Len() > 0 {
		if _, err := r.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns the newest stored matches.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]storage.MatchRecord, error) {
	if r.deps.Store == nil {
		return nil, nil
	}
	return r.deps.Store.RecentMatches(ctx, limit)
}

// IsRunning returns whether the flush loop is running
func (r *Recorder) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isRunning
}

// Start flushes every interval until Stop is called.
func (r *Recorder) Start(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return
	}
	r.isRunning = true
	r.stopChan = make(chan struct{})
	r.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, err := r.Flush(context.Background()); err != nil {
					r.log.Error("history flush failed", "error", err)
				}
			}
		}
	}(r.stopChan, r.done)
}

// Stop ends the flush loop and writes whatever is still queued.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		close(r.stopChan)
		r.isRunning = false
	}
	done := r.done
	r.mu.Unlock()

	if done != nil {
		<-done
	}
	return r.FlushAll(ctx)
}
