package consumer

import (
	"context"
	"time"

	"voltonic-power/internal/engine"

	"go.uber.org/zap"
)

// Ticker runs one decision tick
type Ticker interface {
	Tick(ctx context.Context, at time.Time) (*engine.TickSummary, error)
}

// TickDriver drives the engine at a fixed interval, one tick at a time
type TickDriver struct {
	engine   Ticker
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewTickDriver creates the driver
func NewTickDriver(eng Ticker, interval time.Duration, logger *zap.Logger) *TickDriver {
	if interval <= 0 {
		interval = time.Minute
	}
	return &TickDriver{
		engine:   eng,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs a tick immediately, then every interval until ctx is cancelled.
// Ticks run on this goroutine, so they never overlap.
func (d *TickDriver) Start(ctx context.Context) error {
	d.logger.Info("Tick driver started",
		zap.Duration("interval", d.interval),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Tick driver stopped")
			return nil
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

// runOnce a failed tick is logged and the loop continues
func (d *TickDriver) runOnce(ctx context.Context) {
	at := d.now()
	if _, err := d.engine.Tick(ctx, at); err != nil {
		d.logger.Error("Tick failed",
			zap.Time("at", at),
			zap.Error(err),
		)
	}
}
