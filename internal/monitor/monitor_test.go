package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/man10/strike/internal/config"
	"github.com/man10/strike/internal/match"
	"github.com/man10/strike/pkg/core"
	"github.com/man10/strike/pkg/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	matches []*match.Match
}

func (f fakeSource) Matches() []*match.Match { return f.matches }

func (f fakeSource) PlayerCount() int {
	n := 0
	for _, m := range f.matches {
		n += len(m.Players())
	}
	return n
}

func newMatch(t *testing.T, players int) *match.Match {
	t.Helper()
	rules := config.DefaultRules()
	m := match.New(match.Params{
		Rules: rules,
		Map:   core.MapDefinition{ID: "mirage", World: "mirage"},
		Host:  host.NewRecorder(nil),
	})
	for i := 0; i < players; i++ {
		require.True(t, m.AddPlayer(uuid.New()))
	}
	return m
}

func TestStatus(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	src := fakeSource{matches: []*match.Match{newMatch(t, 1), newMatch(t, 2)}}
	s := NewService(Dependencies{
		Matches:        src,
		Now:            func() time.Time { return now },
		PendingHistory: func() int { return 4 },
	})

	st := s.Status()
	assert.Equal(t, now, st.Time)
	assert.Equal(t, 2, st.ActiveMatches)
	assert.Equal(t, 3, st.Players)
	assert.Equal(t, 4, st.PendingHistory)
	require.Len(t, st.Matches, 2)
	assert.Equal(t, "WAITING", st.Matches[0].State)
	assert.Equal(t, "COUNTDOWN", st.Matches[1].State)
	assert.Equal(t, match.CountdownSeconds, st.Matches[1].SecondsLeft)
	assert.Equal(t, 10, st.Matches[0].MaxPlayers)
}

func TestWriteStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "status.txt")
	s := NewService(Dependencies{Matches: fakeSource{matches: []*match.Match{newMatch(t, 1)}}, StatusFile: path})

	require.NoError(t, s.WriteStatus())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Equal(t, 1, st.ActiveMatches)
	assert.Equal(t, "mirage", st.Matches[0].Map)
}

func TestStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.txt")
	s := NewService(Dependencies{Matches: fakeSource{}, StatusFile: path})

	assert.False(t, s.IsRunning())
	s.Start(5 * time.Millisecond)
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}
