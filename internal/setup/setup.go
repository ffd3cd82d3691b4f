// Package setup runs the interactive map creation wizard. A player walks
// through the steps by typing into chat; nothing is saved until the last step.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/man10/strike/internal/form"
	"github.com/man10/strike/internal/maps"
	"github.com/man10/strike/internal/match"
	"github.com/man10/strike/pkg/core"
	"github.com/man10/strike/pkg/host"
)

// Step is one wizard step.
type Step int

const (
	StepMapName Step = iota
	StepLobbySpawn
	StepSideASpawn
	StepSideBSpawn
	StepSiteA
	StepSiteARadius
	StepSiteB
	StepSiteBRadius
	StepAuthor
	StepDescription
	StepCompleted
)

var stepNames = [...]string{
	"map name", "lobby spawn", "terrorist spawn", "counter-terrorist spawn",
	"bomb site A", "site A radius", "bomb site B", "site B radius",
	"author", "description", "completed",
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Wizard inputs with a fixed meaning.
const (
	InputCancel  = "cancel"
	InputBack    = "back"
	InputSkip    = "skip"
	InputConfirm = "confirm"
)

// MapStore is the part of the map registry the wizard writes to.
type MapStore interface {
	Has(id string) bool
	// Create fails with core.ErrMapExists when the id is taken.
	Create(ctx context.Context, m core.MapDefinition) error
}

// Host is what the wizard needs from the runtime.
type Host interface {
	host.Players
	host.Messenger
}

type draft struct {
	displayName string
	author      string
	description string
	lobby       core.Position
	sideA       core.Position
	sideB       core.Position
	siteA       core.Position
	siteARadius float64
	siteB       *core.Position
	siteBRadius float64
}

type session struct {
	mapID string
	flow  *form.Flow[Step]
	draft draft
}

// Sessions holds one wizard per player.
type Sessions struct {
	maps MapStore
	host Host
	log  *slog.Logger

	mu     sync.Mutex
	active map[core.PlayerID]*session
}

// NewSessions creates an empty session set.
func NewSessions(store MapStore, h Host, log *slog.Logger) *Sessions {
	if log == nil {
		log = slog.Default()
	}
	return &Sessions{
		maps:   store,
		host:   h,
		log:    log.With("component", "setup"),
		active: make(map[core.PlayerID]*session),
	}
}

func newFlow() *form.Flow[Step] {
	f, err := form.New(
		StepMapName, StepLobbySpawn, StepSideASpawn, StepSideBSpawn,
		StepSiteA, StepSiteARadius, StepSiteB, StepSiteBRadius,
		StepAuthor, StepDescription, StepCompleted,
	)
	if err != nil {
		panic(err)
	}
	if err := f.SkipTo(StepSiteB, StepAuthor); err != nil {
		panic(err)
	}
	return f
}

// Begin starts a wizard for mapID, replacing any wizard p already had open.
func (s *Sessions) Begin(p core.PlayerID, mapID string) error {
	if !maps.ValidID(mapID) {
		return fmt.Errorf("%w: invalid map id %q", core.ErrInvalidMap, mapID)
	}
	if s.maps.Has(mapID) {
		return fmt.Errorf("%w: %s", core.ErrMapExists, mapID)
	}

	s.mu.Lock()
	_, replaced := s.active[p]
	sess := &session{mapID: mapID, flow: newFlow()}
	s.active[p] = sess
	s.mu.Unlock()

	if replaced {
		s.send(p, "Your previous map setup was cancelled")
	}
	s.log.Info("map setup started", "player", p, "map", mapID)
	s.host.Message(p, match.Prefix+" === Map setup wizard: "+mapID+" ===")
	s.host.Message(p, "Type 'cancel' at any time to stop, or 'back' to return to the previous step")
	s.prompt(p, sess)
	return nil
}

// Active reports whether p has a wizard open.
func (s *Sessions) Active(p core.PlayerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[p]
	return ok
}

// Step returns the step p's wizard is on.
func (s *Sessions) Step(p core.PlayerID) (Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.active[p]
	if !ok {
		return 0, false
	}
	return sess.flow.Current(), true
}

// Cancel closes p's wizard without saving.
func (s *Sessions) Cancel(p core.PlayerID) bool {
	s.mu.Lock()
	_, ok := s.active[p]
	delete(s.active, p)
	s.mu.Unlock()
	if ok {
		s.send(p, "Map setup cancelled")
	}
	return ok
}

// Drop closes p's wizard silently, e.g. when p disconnects.
func (s *Sessions) Drop(p core.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, p)
}

// Handle feeds one line of input to p's wizard. It reports false when p has
// no wizard open and the input was not consumed.
func (s *Sessions) Handle(ctx context.Context, p core.PlayerID, input string) (bool, error) {
	s.mu.Lock()
	sess, ok := s.active[p]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}

	input = strings.TrimSpace(input)
	switch strings.ToLower(input) {
	case InputCancel:
		s.Cancel(p)
		return true, nil
	case InputBack:
		s.mu.Lock()
		moved := sess.flow.Back()
		s.mu.Unlock()
		if !moved {
			s.send(p, "You are already at the first step")
			return true, nil
		}
		s.send(p, "Went back to the previous step")
		s.prompt(p, sess)
		return true, nil
	}

	s.mu.Lock()
	advanced := s.apply(p, sess, input)
	done := sess.flow.Current() == StepCompleted
	s.mu.Unlock()

	if done {
		return true, s.complete(ctx, p, sess)
	}
	if advanced {
		s.prompt(p, sess)
	}
	return true, nil
}

// apply handles input for the current step and moves the flow on success.
// Called with s.mu held.
func (s *Sessions) apply(p core.PlayerID, sess *session, input string) bool {
	d := &sess.draft
	word := strings.ToLower(input)

	switch step := sess.flow.Current(); step {
	case StepMapName:
		if input == "" {
			s.send(p, "Please enter a display name")
			return false
		}
		d.displayName = input

	case StepLobbySpawn, StepSideASpawn, StepSideBSpawn, StepSiteA:
		pos, ok := s.capture(p, word, false)
		if !ok {
			return false
		}
		if (step == StepSideASpawn || step == StepSideBSpawn) && pos.World != d.lobby.World {
			s.send(p, fmt.Sprintf("You are in world %s, but spawns must be in the lobby's world %s", pos.World, d.lobby.World))
			return false
		}
		switch step {
		case StepLobbySpawn:
			d.lobby = pos
		case StepSideASpawn:
			d.sideA = pos
		case StepSideBSpawn:
			d.sideB = pos
		case StepSiteA:
			d.siteA = pos
		}
		s.send(p, step.String()+" set")

	case StepSiteB:
		if word == InputSkip {
			d.siteB = nil
			sess.flow.Skip()
			s.send(p, "Bomb site B skipped")
			return true
		}
		pos, ok := s.capture(p, word, true)
		if !ok {
			return false
		}
		d.siteB = &pos
		s.send(p, "bomb site B set")

	case StepSiteARadius, StepSiteBRadius:
		r, err := parseRadius(input)
		if err != nil {
			s.send(p, "Please enter a positive number")
			return false
		}
		if step == StepSiteARadius {
			d.siteARadius = r
		} else {
			d.siteBRadius = r
		}
		s.send(p, fmt.Sprintf("%s set to %.1fm", step, r))

	case StepAuthor:
		if word == InputSkip {
			d.author = s.host.Name(p)
			s.send(p, "Author skipped, using "+d.author)
		} else {
			d.author = input
			s.send(p, "Author set")
		}

	case StepDescription:
		if word == InputSkip {
			d.description = ""
			s.send(p, "Description skipped")
		} else {
			d.description = input
			s.send(p, "Description set")
		}

	default:
		return false
	}

	sess.flow.Next()
	return true
}

func (s *Sessions) capture(p core.PlayerID, word string, skippable bool) (core.Position, bool) {
	if word != InputConfirm {
		if skippable {
			s.send(p, "Stand on the position and type 'confirm', or type 'skip'")
		} else {
			s.send(p, "Stand on the position and type 'confirm'")
		}
		return core.Position{}, false
	}
	pos, ok := s.host.Location(p)
	if !ok {
		s.send(p, "Your position is not available")
		return core.Position{}, false
	}
	return pos, true
}

func parseRadius(input string) (float64, error) {
	r, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0, err
	}
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, fmt.Errorf("radius %v out of range", r)
	}
	return r, nil
}

// definition builds the map a finished draft describes. The world is the
// lobby spawn's world.
func (sess *session) definition() core.MapDefinition {
	d := sess.draft
	def := core.MapDefinition{
		ID:          sess.mapID,
		DisplayName: d.displayName,
		Description: d.description,
		Author:      d.author,
		World:       d.lobby.World,
		Enabled:     true,
		LobbySpawn:  d.lobby,
		SideASpawn:  d.sideA,
		SideBSpawn:  d.sideB,
	}
	def = def.WithBombSite("A", d.siteA, d.siteARadius)
	if d.siteB != nil {
		def = def.WithBombSite("B", *d.siteB, d.siteBRadius)
	}
	return def
}

func (s *Sessions) complete(ctx context.Context, p core.PlayerID, sess *session) error {
	s.mu.Lock()
	def := sess.definition()
	s.mu.Unlock()

	if err := s.maps.Create(ctx, def); err != nil {
		s.mu.Lock()
		sess.flow.Back()
		s.mu.Unlock()
		s.log.Error("map setup failed to save", "player", p, "map", sess.mapID, "error", err)
		switch {
		case errors.Is(err, core.ErrMapExists):
			s.send(p, "A map named "+sess.mapID+" was created meanwhile, type 'cancel' and start over with another id")
		case errors.Is(err, core.ErrInvalidMap):
			s.send(p, "The map is not valid ("+err.Error()+"), go back and fix it")
		default:
			s.send(p, "The map could not be saved, fix the problem and try again")
		}
		s.prompt(p, sess)
		return fmt.Errorf("saving map %s: %w", sess.mapID, err)
	}

	s.mu.Lock()
	if s.active[p] == sess {
		delete(s.active, p)
	}
	s.mu.Unlock()

	s.log.Info("map setup completed", "player", p, "map", def.ID, "sites", len(def.BombSites))
	s.host.Message(p, match.Prefix+" === Setup complete! ===")
	s.host.Message(p, fmt.Sprintf("Map '%s' is ready. Use map:info %s to review it", def.DisplayName, def.ID))
	return nil
}

func (s *Sessions) prompt(p core.PlayerID, sess *session) {
	s.mu.Lock()
	step := sess.flow.Current()
	total := sess.flow.Len() - 1
	s.mu.Unlock()

	if step == StepCompleted {
		return
	}
	s.host.Message(p, fmt.Sprintf("[Step %d/%d] %s", int(step)+1, total, step))
	switch step {
	case StepMapName:
		s.host.Message(p, "Enter the display name of the map (e.g. Dust II)")
	case StepLobbySpawn, StepSideASpawn, StepSideBSpawn, StepSiteA:
		s.host.Message(p, "Stand on the "+step.String()+" and type 'confirm'")
	case StepSiteB:
		s.host.Message(p, "Stand on the center of bomb site B and type 'confirm', or 'skip' if the map has one site")
	case StepSiteARadius, StepSiteBRadius:
		s.host.Message(p, "Enter the plantable radius in blocks (default 5.0, recommended 3.0 to 7.0)")
	case StepAuthor:
		s.host.Message(p, "Enter the author name, or 'skip' to use your own name")
	case StepDescription:
		s.host.Message(p, "Enter a short description, or 'skip'")
	}
}

func (s *Sessions) send(p core.PlayerID, text string) {
	s.host.Message(p, match.Prefix+" "+text)
}
