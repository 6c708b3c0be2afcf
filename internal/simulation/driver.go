package simulation

import (
	"context"
	"log/slog"
	"time"

	"github.com/nvandessel/fuzzbrake/internal/logging"
)

// Driver runs an Engine against the wall clock.
type Driver struct {
	engine *Engine
	period time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewDriver creates a driver firing at the engine's tick period.
func NewDriver(e *Engine, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Driver{
		engine: e,
		period: e.Config().TickPeriod,
		logger: logger,
		now:    time.Now,
	}
}

// Run feeds wall-clock time into the engine until ctx is cancelled.
// It keeps running across Stop/Start cycles, so a server can start and
// stop the simulation through the engine while the driver stays up.
func (d *Driver) Run(ctx context.Context) error {
	return d.loop(ctx, false)
}

// RunUntilStopped is Run but returns nil as soon as the engine stops.
func (d *Driver) RunUntilStopped(ctx context.Context) error {
	return d.loop(ctx, true)
}

func (d *Driver) loop(ctx context.Context, untilStopped bool) error {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	last := d.now()
	d.logger.Debug("driver started", "period", d.period)

	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("driver stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			now := d.now()
			elapsed := now.Sub(last)
			last = now

			d.engine.Advance(elapsed)
			if untilStopped && !d.engine.Running() {
				return nil
			}
		}
	}
}
