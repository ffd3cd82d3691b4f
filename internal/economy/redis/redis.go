// Package redis stores player balances in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/man10/strike/internal/economy"
	"github.com/man10/strike/pkg/core"
	goredis "github.com/redis/go-redis/v9"
)

// withdrawScript decrements the balance only when it covers the amount.
// Returns the new balance, or -1 when funds are insufficient.
var withdrawScript = goredis.NewScript(`
local bal = tonumber(redis.call("GET", KEYS[1]) or "0")
local amount = tonumber(ARGV[1])
if bal < amount then
  return "-1"
end
return redis.call("INCRBYFLOAT", KEYS[1], -amount)
`)

// Provider is an economy.Provider backed by one string key per player.
type Provider struct {
	client    goredis.UniversalClient
	keyPrefix string
}

var _ economy.Provider = (*Provider)(nil)

// Options configures a connection.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, opts Options) (*Provider, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis %s: %w", core.ErrEconomyUnavailable, opts.Addr, err)
	}
	return New(client, opts.KeyPrefix), nil
}

// New wraps an existing client.
func New(client goredis.UniversalClient, keyPrefix string) *Provider {
	return &Provider{client: client, keyPrefix: keyPrefix}
}

func (p *Provider) key(id core.PlayerID) string {
	return p.keyPrefix + id.String()
}

// Balance returns the stored balance; a missing key is a zero balance.
func (p *Provider) Balance(ctx context.Context, id core.PlayerID) (float64, error) {
	bal, err := p.client.Get(ctx, p.key(id)).Float64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading balance: %w", err)
	}
	return bal, nil
}

// Deposit adds amount to the balance.
func (p *Provider) Deposit(ctx context.Context, id core.PlayerID, amount float64) error {
	if err := p.client.IncrByFloat(ctx, p.key(id), amount).Err(); err != nil {
		return fmt.Errorf("depositing: %w", err)
	}
	return nil
}

// Withdraw subtracts amount, failing with economy.ErrInsufficientFunds
// when the balance is too low.
func (p *Provider) Withdraw(ctx context.Context, id core.PlayerID, amount float64) error {
	res, err := withdrawScript.Run(ctx, p.client, []string{p.key(id)}, strconv.FormatFloat(amount, 'f', -1, 64)).Text()
	if err != nil {
		return fmt.Errorf("withdrawing: %w", err)
	}
	if res == "-1" {
		return economy.ErrInsufficientFunds
	}
	return nil
}

// Close closes the client.
func (p *Provider) Close() error {
	return p.client.Close()
}
