// Package command exposes the player and admin command surface on a
// dispatcher. Handlers reply with text; permission checks happen in the host.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/man10/strike/internal/coordinator"
	"github.com/man10/strike/internal/dispatcher"
	"github.com/man10/strike/internal/economy"
	"github.com/man10/strike/internal/maps"
	"github.com/man10/strike/internal/match"
	"github.com/man10/strike/internal/setup"
	"github.com/man10/strike/pkg/core"
	"github.com/man10/strike/pkg/host"
)

// ErrPlayerOnly is returned when the console runs a command that needs a player.
var ErrPlayerOnly = errors.New("this command can only be used by a player")

// ErrUsage is returned when arguments are missing or malformed.
var ErrUsage = errors.New("usage")

// QuitCommand is the internal command the host dispatches when a player disconnects.
const QuitCommand = "player:quit"

// DefaultSiteRadius is the radius map:setbomb gives a new bomb site.
const DefaultSiteRadius = 5.0

const storeTimeout = 10 * time.Second

// Dependencies holds all dependencies needed by command handlers
type Dependencies struct {
	Coordinator *coordinator.Coordinator
	Maps        *maps.Registry
	Setup       *setup.Sessions
	Host        host.Host
	Economy     *economy.Bridge
	Logger      *slog.Logger
	// Reload re-reads configuration and maps.
	Reload func(ctx context.Context) error
	// SaveMainLobby persists a new main lobby; optional.
	SaveMainLobby func(pos core.Position) error
}

// Service implements the command handlers.
type Service struct {
	deps Dependencies
	log  *slog.Logger
	d    *dispatcher.Dispatcher
}

// NewService creates a new command service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps, log: deps.Logger.With("component", "command")}
}

// Register adds every command to d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	s.d = d

	d.Register("help", s.reply(s.help), dispatcher.Usage("help", "Show this list"))
	d.Register("join", s.reply(s.join), dispatcher.Logged(), dispatcher.Usage("join", "Join a match"))
	d.Register("leave", s.reply(s.leave), dispatcher.Logged(), dispatcher.Usage("leave", "Leave your match"))
	d.Register("info", s.reply(s.info), dispatcher.Usage("info", "Show match and server information"))
	d.Register("balance", s.reply(s.balance), dispatcher.Usage("balance", "Show your balance"))
	d.Register("chat", s.reply(s.chat), dispatcher.Usage("chat <text>", "Send input to the map setup wizard"))

	d.Register("reload", s.reply(s.reload), dispatcher.Logged(), dispatcher.Usage("reload", "Reload configuration and maps"))
	d.Register("forcestart", s.reply(s.forceStart), dispatcher.Logged(), dispatcher.Usage("forcestart [match]", "Start a match now"))
	d.Register("forcestop", s.reply(s.forceStop), dispatcher.Logged(), dispatcher.Usage("forcestop [match]", "End a match now"))
	d.Register("setmainlobby", s.reply(s.setMainLobby), dispatcher.Logged(), dispatcher.Usage("setmainlobby", "Set the main lobby to your position"))

	s.registerMapCommands(d)

	d.Register(QuitCommand, s.quit, dispatcher.Buffered(64), dispatcher.Blocking(), dispatcher.Internal())
}

// reply adapts a text handler to the dispatcher.
func (s *Service) reply(h func(dispatcher.Event) (string, error)) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		return h(e)
	}
}

// Describe turns an error into text for the sender.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPlayerOnly):
		return "This command can only be used by a player"
	case errors.Is(err, ErrUsage):
		return "Usage: " + strings.TrimPrefix(err.Error(), ErrUsage.Error()+": ")
	case errors.Is(err, core.ErrAlreadyInMatch):
		return "You are already in a match"
	case errors.Is(err, core.ErrNotInMatch):
		return "You are not in a match"
	case errors.Is(err, core.ErrAtCapacity):
		return "All match slots are in use, please wait"
	case errors.Is(err, core.ErrNoAvailableMap):
		return "No map is available right now"
	case errors.Is(err, core.ErrEconomyUnavailable):
		return "The economy is not available"
	case errors.Is(err, economy.ErrInsufficientFunds):
		return "You do not have enough money"
	case errors.Is(err, core.ErrMapExists):
		return "A map with that id already exists"
	case errors.Is(err, core.ErrUnknownMap):
		return "Map not found"
	case errors.Is(err, core.ErrUnknownMatch):
		return "Match not found"
	case errors.Is(err, core.ErrInvalidMap):
		return "Invalid map: " + err.Error()
	case errors.Is(err, core.ErrCapacity):
		return "The match is full"
	case errors.Is(err, core.ErrState):
		return "That cannot be done right now"
	case errors.Is(err, core.ErrNotFound):
		return "Not found: " + err.Error()
	case errors.Is(err, core.ErrPersistence):
		return "Saving failed, check the server log"
	default:
		return err.Error()
	}
}

func usage(syntax string) error {
	return fmt.Errorf("%w: %s", ErrUsage, syntax)
}

func requirePlayer(e dispatcher.Event) error {
	if e.FromConsole() {
		return ErrPlayerOnly
	}
	return nil
}

func (s *Service) location(e dispatcher.Event) (core.Position, error) {
	if err := requirePlayer(e); err != nil {
		return core.Position{}, err
	}
	pos, ok := s.deps.Host.Location(e.Sender)
	if !ok {
		return core.Position{}, fmt.Errorf("%w: position of %s", core.ErrNotFound, core.ShortID(e.Sender))
	}
	return pos, nil
}

// resolveMatch finds a match by id prefix, or the sender's own match when arg is empty.
func (s *Service) resolveMatch(e dispatcher.Event, arg string) (*match.Match, error) {
	if arg == "" {
		if e.FromConsole() {
			return nil, usage("<match>")
		}
		m, ok := s.deps.Coordinator.MatchOf(e.Sender)
		if !ok {
			return nil, core.ErrNotInMatch
		}
		return m, nil
	}

	var found *match.Match
	for _, m := range s.deps.Coordinator.Matches() {
		if strings.HasPrefix(m.ID().String(), strings.ToLower(arg)) {
			if found != nil {
				return nil, fmt.Errorf("%w: %q matches more than one match", core.ErrConflict, arg)
			}
			found = m
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownMatch, arg)
	}
	return found, nil
}

func storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

func lines(parts ...string) string {
	return strings.Join(parts, "\n")
}
