package host

import (
	"fmt"
	"io"
	"sync"

	"github.com/man10/strike/pkg/core"
)

// CallKind names a recorded host interaction.
type CallKind string

const (
	CallMessage   CallKind = "message"
	CallTitle     CallKind = "title"
	CallActionBar CallKind = "actionbar"
	CallTeleport  CallKind = "teleport"
	CallReset     CallKind = "reset"
	CallClear     CallKind = "clear"
	CallFreeze    CallKind = "freeze"
	CallUnfreeze  CallKind = "unfreeze"
)

// Call is one recorded interaction.
type Call struct {
	Kind   CallKind
	Player core.PlayerID
	Text   string
	Pos    core.Position
}

// Recorder is an in-process Host. It keeps every call it receives and can echo
// player-facing text to a writer, which makes it usable both as a console host
// and as a test double.
type Recorder struct {
	mu        sync.Mutex
	out       io.Writer
	calls     []Call
	names     map[core.PlayerID]string
	locations map[core.PlayerID]core.Position
	frozen    map[core.PlayerID]bool
	worlds    map[string]bool
}

// NewRecorder creates a Recorder. out may be nil.
func NewRecorder(out io.Writer, worlds ...string) *Recorder {
	r := &Recorder{
		out:       out,
		names:     make(map[core.PlayerID]string),
		locations: make(map[core.PlayerID]core.Position),
		frozen:    make(map[core.PlayerID]bool),
		worlds:    make(map[string]bool),
	}
	for _, w := range worlds {
		r.worlds[w] = true
	}
	return r
}

// AddWorld marks a world as loaded.
func (r *Recorder) AddWorld(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.worlds[name] = true
}

// SetName registers a display name for a player.
func (r *Recorder) SetName(p core.PlayerID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[p] = name
}

// SetLocation moves a player without recording a teleport.
func (r *Recorder) SetLocation(p core.PlayerID, pos core.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations[p] = pos
}

func (r *Recorder) Name(p core.PlayerID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.names[p]; ok {
		return n
	}
	return core.ShortID(p)
}

func (r *Recorder) Location(p core.PlayerID) (core.Position, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.locations[p]
	return pos, ok
}

func (r *Recorder) WorldLoaded(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.worlds[name]
}

func (r *Recorder) Message(p core.PlayerID, text string) {
	r.record(Call{Kind: CallMessage, Player: p, Text: text})
}

func (r *Recorder) Title(p core.PlayerID, title, subtitle string) {
	text := title
	if subtitle != "" {
		text = title + " | " + subtitle
	}
	r.record(Call{Kind: CallTitle, Player: p, Text: text})
}

func (r *Recorder) ActionBar(p core.PlayerID, text string) {
	r.record(Call{Kind: CallActionBar, Player: p, Text: text})
}

func (r *Recorder) Teleport(p core.PlayerID, pos core.Position) {
	r.mu.Lock()
	r.locations[p] = pos
	r.mu.Unlock()
	r.record(Call{Kind: CallTeleport, Player: p, Pos: pos})
}

func (r *Recorder) ResetState(p core.PlayerID) {
	r.record(Call{Kind: CallReset, Player: p})
}

func (r *Recorder) ClearInventory(p core.PlayerID) {
	r.record(Call{Kind: CallClear, Player: p})
}

func (r *Recorder) SetFrozen(p core.PlayerID, frozen bool) {
	r.mu.Lock()
	r.frozen[p] = frozen
	r.mu.Unlock()
	kind := CallUnfreeze
	if frozen {
		kind = CallFreeze
	}
	r.record(Call{Kind: kind, Player: p})
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	out := r.out
	name, ok := r.names[c.Player]
	r.mu.Unlock()

	if out == nil {
		return
	}
	if !ok {
		name = core.ShortID(c.Player)
	}
	switch c.Kind {
	case CallMessage, CallTitle, CallActionBar:
		fmt.Fprintf(out, "[%s -> %s] %s\n", c.Kind, name, c.Text)
	case CallTeleport:
		fmt.Fprintf(out, "[teleport -> %s] %s\n", name, c.Pos)
	}
}

// Calls returns the recorded calls of one kind for a player.
func (r *Recorder) Calls(p core.PlayerID, kind CallKind) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Player == p && c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Texts returns the text of every message, title and action bar sent to p.
func (r *Recorder) Texts(p core.PlayerID, kind CallKind) []string {
	calls := r.Calls(p, kind)
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Text)
	}
	return out
}

// Frozen reports the last freeze state set for p.
func (r *Recorder) Frozen(p core.PlayerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen[p]
}

// Reset forgets all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
