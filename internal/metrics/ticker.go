package metrics

import (
	"context"
	"time"

	"voltonic-power/internal/engine"
)

// TickRunner anything that runs a tick (engine.Engine)
type TickRunner interface {
	Tick(ctx context.Context, at time.Time) (*engine.TickSummary, error)
}

// InstrumentedTicker times every tick of the wrapped runner
type InstrumentedTicker struct {
	next    TickRunner
	metrics *Metrics
}

// NewInstrumentedTicker wraps next
func NewInstrumentedTicker(next TickRunner, m *Metrics) *InstrumentedTicker {
	return &InstrumentedTicker{next: next, metrics: m}
}

func (t *InstrumentedTicker) Tick(ctx context.Context, at time.Time) (*engine.TickSummary, error) {
	start := time.Now()
	summary, err := t.next.Tick(ctx, at)
	t.metrics.ObserveTick(time.Since(start), err)
	return summary, err
}
