package command

import (
	"fmt"
	"strings"

	"github.com/man10/strike/internal/dispatcher"
	"github.com/man10/strike/pkg/core"
)

func (s *Service) help(e dispatcher.Event) (string, error) {
	out := []string{"===== Strike commands ====="}
	for _, h := range s.d.Commands() {
		syntax := h.Syntax
		if syntax == "" {
			syntax = h.Command
		}
		out = append(out, fmt.Sprintf("%s - %s", syntax, h.Summary))
	}
	return lines(out...), nil
}

func (s *Service) join(e dispatcher.Event) (string, error) {
	if err := requirePlayer(e); err != nil {
		return "", err
	}
	id, err := s.deps.Coordinator.JoinGame(e.Sender)
	if err != nil {
		return "", err
	}
	m, ok := s.deps.Coordinator.Match(id)
	if !ok {
		return "Joined match " + core.ShortID(id), nil
	}
	return fmt.Sprintf("Joined match %s on %s", core.ShortID(id), m.Map().DisplayName), nil
}

func (s *Service) leave(e dispatcher.Event) (string, error) {
	if err := requirePlayer(e); err != nil {
		return "", err
	}
	if err := s.deps.Coordinator.LeaveGame(e.Sender); err != nil {
		return "", err
	}
	return "You left the match", nil
}

func (s *Service) info(e dispatcher.Event) (string, error) {
	economyState := "disabled"
	if s.deps.Economy.IsEnabled() {
		economyState = "enabled"
	}
	out := []string{
		"===== Strike info =====",
		fmt.Sprintf("Active matches: %d", s.deps.Coordinator.ActiveCount()),
		fmt.Sprintf("Players in matches: %d", s.deps.Coordinator.PlayerCount()),
		fmt.Sprintf("Enabled maps: %d", len(s.deps.Maps.EnabledMaps())),
		"Economy: " + economyState,
	}

	for _, m := range s.deps.Coordinator.Matches() {
		info := m.Snapshot()
		line := fmt.Sprintf("%s %s [%s] %d/%d", core.ShortID(info.ID), info.MapName, info.State, info.Players, info.MaxPlayers)
		if info.Round > 0 {
			line += fmt.Sprintf(" round %d %d-%d", info.Round, info.Score[core.SideA], info.Score[core.SideB])
		}
		out = append(out, line)
	}

	if !e.FromConsole() {
		if m, ok := s.deps.Coordinator.MatchOf(e.Sender); ok {
			side := "unassigned"
			if sd, ok := m.SideOf(e.Sender); ok {
				side = sd.String()
			}
			out = append(out, fmt.Sprintf("You are in %s (%s)", core.ShortID(m.ID()), side))
			if money, ok := m.Money(e.Sender); ok {
				out = append(out, fmt.Sprintf("Match money: $%d", money))
			}
		}
	}
	return lines(out...), nil
}

func (s *Service) balance(e dispatcher.Event) (string, error) {
	if err := requirePlayer(e); err != nil {
		return "", err
	}
	if err := s.deps.Economy.Require(); err != nil {
		return "", err
	}
	ctx, cancel := storeContext()
	defer cancel()
	return "Balance: " + s.deps.Economy.Format(s.deps.Economy.BalanceOf(ctx, e.Sender)), nil
}

func (s *Service) chat(e dispatcher.Event) (string, error) {
	if err := requirePlayer(e); err != nil {
		return "", err
	}
	ctx, cancel := storeContext()
	defer cancel()
	handled, err := s.deps.Setup.Handle(ctx, e.Sender, strings.Join(e.Args, " "))
	if err != nil {
		return "", err
	}
	if !handled {
		return "", fmt.Errorf("%w: no setup wizard is open", core.ErrState)
	}
	return "", nil
}

func (s *Service) reload(e dispatcher.Event) (string, error) {
	if s.deps.Reload == nil {
		return "", fmt.Errorf("%w: reload is not configured", core.ErrState)
	}
	ctx, cancel := storeContext()
	defer cancel()
	if err := s.deps.Reload(ctx); err != nil {
		return "", err
	}
	return "Configuration reloaded", nil
}

func (s *Service) forceStart(e dispatcher.Event) (string, error) {
	m, err := s.resolveMatch(e, e.Arg(0))
	if err != nil {
		return "", err
	}
	if err := s.deps.Coordinator.ForceStart(m.ID()); err != nil {
		return "", err
	}
	return "Match " + core.ShortID(m.ID()) + " started", nil
}

func (s *Service) forceStop(e dispatcher.Event) (string, error) {
	m, err := s.resolveMatch(e, e.Arg(0))
	if err != nil {
		return "", err
	}
	if err := s.deps.Coordinator.ForceStop(m.ID()); err != nil {
		return "", err
	}
	return "Match " + core.ShortID(m.ID()) + " stopped", nil
}

func (s *Service) setMainLobby(e dispatcher.Event) (string, error) {
	pos, err := s.location(e)
	if err != nil {
		return "", err
	}
	if s.deps.SaveMainLobby != nil {
		if err := s.deps.SaveMainLobby(pos); err != nil {
			return "", fmt.Errorf("%w: saving main lobby: %w", core.ErrPersistence, err)
		}
	}
	s.deps.Coordinator.SetMainLobby(&pos)
	s.log.Info("main lobby set", "position", pos.String())
	return "Main lobby set to " + pos.String(), nil
}

func (s *Service) quit(e dispatcher.Event) (any, error) {
	if err := requirePlayer(e); err != nil {
		return nil, err
	}
	s.PlayerQuit(e.Sender)
	return nil, nil
}

// PlayerQuit cleans up after a disconnected player.
func (s *Service) PlayerQuit(p core.PlayerID) {
	s.deps.Setup.Drop(p)
	if err := s.deps.Coordinator.LeaveGame(p); err == nil {
		s.log.Debug("removed disconnected player from match", "player", p)
	}
}
