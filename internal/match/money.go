package match

import (
	"fmt"

	"github.com/man10/strike/internal/economy"
	"github.com/man10/strike/pkg/core"
)

// Money returns the in-match balance of p.
func (m *Match) Money(p core.PlayerID) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.money[p]
	return bal, ok
}

// Spend deducts amount from p. Purchases are only possible during the buy phase.
func (m *Match) Spend(p core.PlayerID, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateBuying {
		return fmt.Errorf("%w: purchases are closed (%s)", core.ErrState, m.state)
	}
	bal, ok := m.money[p]
	if !ok {
		return core.ErrNotInMatch
	}
	if amount <= 0 {
		return fmt.Errorf("invalid amount %d", amount)
	}
	if bal < amount {
		return fmt.Errorf("%w: have %d, need %d", economy.ErrInsufficientFunds, bal, amount)
	}
	m.money[p] = bal - amount
	return nil
}

// AwardKill credits the kill reward to p.
func (m *Match) AwardKill(p core.PlayerID) error {
	return m.award(p, m.rules.KillReward)
}

// AwardPlant credits the bomb plant reward to p.
func (m *Match) AwardPlant(p core.PlayerID) error {
	return m.award(p, m.rules.PlantReward)
}

// AwardDefuse credits the bomb defuse reward to p.
func (m *Match) AwardDefuse(p core.PlayerID) error {
	return m.award(p, m.rules.DefuseReward)
}

func (m *Match) award(p core.PlayerID, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateInProgress {
		return fmt.Errorf("%w: no round in progress (%s)", core.ErrState, m.state)
	}
	if _, ok := m.money[p]; !ok {
		return core.ErrNotInMatch
	}
	m.credit(p, amount)
	return nil
}

// credit adds amount to p's balance, capped at the ruleset maximum.
func (m *Match) credit(p core.PlayerID, amount int) {
	bal, ok := m.money[p]
	if !ok {
		return
	}
	m.money[p] = min(bal+amount, m.rules.MaxMoney)
}
