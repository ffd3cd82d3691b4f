package coordinator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/man10/strike/internal/coordinator"

func (c *Coordinator) initMetrics() error {
	m := otel.Meter(instrumentationName)

	var err error
	c.matchesActive, err = m.Int64ObservableGauge(
		"strike.matches.active",
		metric.WithDescription("Matches currently registered"),
	)
	if err != nil {
		return fmt.Errorf("creating active matches gauge: %w", err)
	}

	c.playersActive, err = m.Int64ObservableGauge(
		"strike.players.active",
		metric.WithDescription("Players currently in a match"),
	)
	if err != nil {
		return fmt.Errorf("creating active players gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(c.matchesActive, int64(c.ActiveCount()))
			o.ObserveInt64(c.playersActive, int64(c.PlayerCount()))
			return nil
		},
		c.matchesActive, c.playersActive,
	)
	if err != nil {
		return fmt.Errorf("registering coordinator callback: %w", err)
	}

	c.matchesCreated, err = m.Int64Counter(
		"strike.matches.created",
		metric.WithDescription("Total matches created"),
	)
	if err != nil {
		return fmt.Errorf("creating matches created counter: %w", err)
	}

	c.matchesEnded, err = m.Int64Counter(
		"strike.matches.ended",
		metric.WithDescription("Total matches ended"),
	)
	if err != nil {
		return fmt.Errorf("creating matches ended counter: %w", err)
	}
	return nil
}
