package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/man10/strike/pkg/core"
	"github.com/spf13/viper"
)

// Rules is the ruleset a match is created with. Times are in seconds.
type Rules struct {
	MinPlayers         int
	MaxPlayersPerTeam  int
	MaxConcurrentGames int
	RoundsToWin        int
	RoundTime          int
	BombPlantTime      int
	BombDefuseTime     int
	BombTimer          int
	PreparationTime    int

	StartMoney   int
	WinReward    int
	LoseReward   int
	KillReward   int
	PlantReward  int
	DefuseReward int
	MaxMoney     int
}

// DefaultRules returns the stock ruleset.
func DefaultRules() Rules {
	v := viper.New()
	setRuleDefaults(v)
	return rulesFromViper(v)
}

// MaxRounds is the number of rounds after which a match ends in a draw.
func (r Rules) MaxRounds() int {
	return 2*r.RoundsToWin - 1
}

// Validate rejects rulesets no match could be played with.
func (r Rules) Validate() error {
	var errs []error
	positive := map[string]int{
		"game.min-players":          r.MinPlayers,
		"game.max-players-per-team": r.MaxPlayersPerTeam,
		"game.max-concurrent-games": r.MaxConcurrentGames,
		"game.rounds-to-win":        r.RoundsToWin,
		"game.round-time":           r.RoundTime,
	}
	for key, val := range positive {
		if val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", key, val))
		}
	}
	if r.PreparationTime < 0 {
		errs = append(errs, fmt.Errorf("game.preparation-time must not be negative, got %d", r.PreparationTime))
	}
	if r.MinPlayers > 2*r.MaxPlayersPerTeam {
		errs = append(errs, fmt.Errorf("game.min-players %d exceeds two full teams of %d", r.MinPlayers, r.MaxPlayersPerTeam))
	}
	if r.MaxMoney < r.StartMoney {
		errs = append(errs, fmt.Errorf("economy.max-money %d is below economy.start-money %d", r.MaxMoney, r.StartMoney))
	}
	return errors.Join(errs...)
}

func setRuleDefaults(v *viper.Viper) {
	v.SetDefault("game.min-players", 2)
	v.SetDefault("game.max-players-per-team", 5)
	v.SetDefault("game.max-concurrent-games", 3)
	v.SetDefault("game.rounds-to-win", 13)
	v.SetDefault("game.round-time", 120)
	v.SetDefault("game.bomb-plant-time", 3)
	v.SetDefault("game.bomb-defuse-time", 5)
	v.SetDefault("game.bomb-timer", 40)
	v.SetDefault("game.preparation-time", 15)

	v.SetDefault("economy.start-money", 800)
	v.SetDefault("economy.win-reward", 3000)
	v.SetDefault("economy.lose-reward", 1900)
	v.SetDefault("economy.kill-reward", 300)
	v.SetDefault("economy.plant-reward", 300)
	v.SetDefault("economy.defuse-reward", 300)
	v.SetDefault("economy.max-money", 16000)
}

func rulesFromViper(v *viper.Viper) Rules {
	return Rules{
		MinPlayers:         v.GetInt("game.min-players"),
		MaxPlayersPerTeam:  v.GetInt("game.max-players-per-team"),
		MaxConcurrentGames: v.GetInt("game.max-concurrent-games"),
		RoundsToWin:        v.GetInt("game.rounds-to-win"),
		RoundTime:          v.GetInt("game.round-time"),
		BombPlantTime:      v.GetInt("game.bomb-plant-time"),
		BombDefuseTime:     v.GetInt("game.bomb-defuse-time"),
		BombTimer:          v.GetInt("game.bomb-timer"),
		PreparationTime:    v.GetInt("game.preparation-time"),

		StartMoney:   v.GetInt("economy.start-money"),
		WinReward:    v.GetInt("economy.win-reward"),
		LoseReward:   v.GetInt("economy.lose-reward"),
		KillReward:   v.GetInt("economy.kill-reward"),
		PlantReward:  v.GetInt("economy.plant-reward"),
		DefuseReward: v.GetInt("economy.defuse-reward"),
		MaxMoney:     v.GetInt("economy.max-money"),
	}
}

// LoadRuleset reads a standalone ruleset file, such as a per-mode override.
// A missing file is reported as core.ErrNotFound.
func LoadRuleset(path string) (Rules, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultRules(), fmt.Errorf("%w: ruleset file %s", core.ErrNotFound, path)
		}
		return DefaultRules(), fmt.Errorf("error reading ruleset file: %w", err)
	}

	v := viper.New()
	setRuleDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return DefaultRules(), fmt.Errorf("error reading ruleset file: %w", err)
	}

	rules := rulesFromViper(v)
	if err := rules.Validate(); err != nil {
		return DefaultRules(), fmt.Errorf("invalid ruleset %s: %w", path, err)
	}
	return rules, nil
}
