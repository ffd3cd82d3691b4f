// Package economy bridges match rewards to an external balance provider.
package economy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/man10/strike/pkg/core"
)

// ErrInsufficientFunds is returned by providers when a withdrawal exceeds the balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Provider is an external balance service.
type Provider interface {
	Balance(ctx context.Context, p core.PlayerID) (float64, error)
	Deposit(ctx context.Context, p core.PlayerID, amount float64) error
	Withdraw(ctx context.Context, p core.PlayerID, amount float64) error
}

// Bridge adapts a Provider to boolean results. With no provider every
// operation is a silent no-op and IsEnabled reports false.
type Bridge struct {
	provider Provider
	log      *slog.Logger
}

// NewBridge creates a bridge. provider may be nil.
func NewBridge(provider Provider, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{provider: provider, log: log}
}

// IsEnabled reports whether a provider is attached.
func (b *Bridge) IsEnabled() bool {
	return b != nil && b.provider != nil
}

// BalanceOf returns the balance of p, or 0 when unavailable.
func (b *Bridge) BalanceOf(ctx context.Context, p core.PlayerID) float64 {
	if !b.IsEnabled() {
		return 0
	}
	bal, err := b.provider.Balance(ctx, p)
	if err != nil {
		b.log.Warn("balance lookup failed", "player", p, "error", err)
		return 0
	}
	return bal
}

// Deposit credits amount to p.
func (b *Bridge) Deposit(ctx context.Context, p core.PlayerID, amount float64) bool {
	if !b.IsEnabled() || amount <= 0 {
		return false
	}
	if err := b.provider.Deposit(ctx, p, amount); err != nil {
		b.log.Warn("deposit failed", "player", p, "amount", amount, "error", err)
		return false
	}
	return true
}

// Withdraw debits amount from p when the balance covers it.
func (b *Bridge) Withdraw(ctx context.Context, p core.PlayerID, amount float64) bool {
	if !b.IsEnabled() || amount <= 0 {
		return false
	}
	if err := b.provider.Withdraw(ctx, p, amount); err != nil {
		if !errors.Is(err, ErrInsufficientFunds) {
			b.log.Warn("withdraw failed", "player", p, "amount", amount, "error", err)
		}
		return false
	}
	return true
}

// Has reports whether p holds at least amount.
func (b *Bridge) Has(ctx context.Context, p core.PlayerID, amount float64) bool {
	if !b.IsEnabled() {
		return false
	}
	bal, err := b.provider.Balance(ctx, p)
	if err != nil {
		return false
	}
	return bal >= amount
}

// Require returns core.ErrEconomyUnavailable when no provider is attached.
func (b *Bridge) Require() error {
	if !b.IsEnabled() {
		return core.ErrEconomyUnavailable
	}
	return nil
}

// Format renders an amount as currency, e.g. "$1,234.50".
func Format(amount float64) string {
	if amount < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -amount)
	}
	return "$" + humanize.FormatFloat("#,###.##", amount)
}

// Format renders an amount the way the bridge reports balances.
func (b *Bridge) Format(amount float64) string {
	return Format(amount)
}
