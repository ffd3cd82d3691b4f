package host

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/man10/strike/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_RecordsCalls(t *testing.T) {
	var out bytes.Buffer
	r := NewRecorder(&out, "dust2")
	p := uuid.New()
	r.SetName(p, "alice")

	r.Message(p, "hello")
	r.Title(p, "5", "get ready")
	r.Title(p, "GO", "")
	r.ActionBar(p, "Round time: 3s")
	r.SetFrozen(p, true)

	assert.Equal(t, []string{"hello"}, r.Texts(p, CallMessage))
	assert.Equal(t, []string{"5 | get ready", "GO"}, r.Texts(p, CallTitle))
	assert.Equal(t, []string{"Round time: 3s"}, r.Texts(p, CallActionBar))
	assert.True(t, r.Frozen(p))

	r.SetFrozen(p, false)
	assert.False(t, r.Frozen(p))
	assert.Len(t, r.Calls(p, CallFreeze), 1)
	assert.Len(t, r.Calls(p, CallUnfreeze), 1)

	assert.Contains(t, out.String(), "[message -> alice] hello")

	r.Reset()
	assert.Empty(t, r.Calls(p, CallMessage))
}

func TestRecorder_TeleportMovesPlayer(t *testing.T) {
	r := NewRecorder(nil)
	p := uuid.New()

	_, ok := r.Location(p)
	assert.False(t, ok)

	dest := core.NewPosition("dust2", 1, 64, 2, 90, 0)
	r.Teleport(p, dest)

	got, ok := r.Location(p)
	require.True(t, ok)
	assert.Equal(t, dest, got)
	require.Len(t, r.Calls(p, CallTeleport), 1)
	assert.Equal(t, dest, r.Calls(p, CallTeleport)[0].Pos)
}

func TestRecorder_Worlds(t *testing.T) {
	r := NewRecorder(nil, "dust2")
	assert.True(t, r.WorldLoaded("dust2"))
	assert.False(t, r.WorldLoaded("mirage"))

	r.AddWorld("mirage")
	assert.True(t, r.WorldLoaded("mirage"))
}

func TestRecorder_NameFallsBackToShortID(t *testing.T) {
	r := NewRecorder(nil)
	p := uuid.New()
	assert.Equal(t, core.ShortID(p), r.Name(p))
}
