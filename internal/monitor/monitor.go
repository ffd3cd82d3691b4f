package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/man10/strike/internal/match"
	"github.com/man10/strike/pkg/core"
)

// MatchSource lists live matches.
type MatchSource interface {
	Matches() []*match.Match
	PlayerCount() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Matches    MatchSource
	Logger     *slog.Logger
	StatusFile string
	Now        func() time.Time
	// PendingHistory reports queued history records; optional.
	PendingHistory func() int
}

// MatchStatus is one line of the status report.
type MatchStatus struct {
	ID          string `json:"id"`
	Map         string `json:"map"`
	State       string `json:"state"`
	Players     int    `json:"players"`
	MaxPlayers  int    `json:"maxPlayers"`
	Round       int    `json:"round"`
	ScoreT      int    `json:"scoreT"`
	ScoreCT     int    `json:"scoreCT"`
	SecondsLeft int    `json:"secondsLeft"`
}

// Status is a snapshot of the whole process.
type Status struct {
	Time           time.Time     `json:"time"`
	ActiveMatches  int           `json:"activeMatches"`
	Players        int           `json:"players"`
	PendingHistory int           `json:"pendingHistory"`
	Matches        []MatchStatus `json:"matches"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the current program status
func (s *Service) Status() Status {
	matches := s.deps.Matches.Matches()
	st := Status{
		Time:          s.deps.Now().UTC(),
		ActiveMatches: len(matches),
		Players:       s.deps.Matches.PlayerCount(),
		Matches:       make([]MatchStatus, 0, len(matches)),
	}
	if s.deps.PendingHistory != nil {
		st.PendingHistory = s.deps.PendingHistory()
	}
	for _, m := range matches {
		info := m.Snapshot()
		st.Matches = append(st.Matches, MatchStatus{
			ID:          core.ShortID(info.ID),
			Map:         info.MapID,
			State:       info.State.String(),
			Players:     info.Players,
			MaxPlayers:  info.MaxPlayers,
			Round:       info.Round,
			ScoreT:      info.Score[core.SideA],
			ScoreCT:     info.Score[core.SideB],
			SecondsLeft: info.SecondsLeft,
		})
	}
	return st
}

// WriteStatus writes the current status to the status file.
func (s *Service) WriteStatus() error {
	st := s.Status()
	s.deps.Logger.Debug("status", "matches", st.ActiveMatches, "players", st.Players, "pendingHistory", st.PendingHistory)

	if s.deps.StatusFile == "" {
		return nil
	}
	out, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if dir := filepath.Dir(s.deps.StatusFile); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating status dir: %w", err)
		}
	}
	if err := os.WriteFile(s.deps.StatusFile, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return nil
}

// Start begins writing status snapshots every interval.
func (s *Service) Start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					s.deps.Logger.Warn("failed to write status", "error", err)
				}
			}
		}
	}(s.stopChan, s.done)
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.isRunning = false
	done := s.done
	s.mu.Unlock()
	<-done
}
