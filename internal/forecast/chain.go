package forecast

import (
	"context"
	"time"

	"voltonic-power/internal/engine"

	"go.uber.org/zap"
)

// Chain asks each forecaster in turn and returns the first prediction.
// A failing forecaster is logged and skipped.
type Chain struct {
	forecasters []engine.Forecaster
	logger      *zap.Logger
}

var (
	_ engine.Forecaster   = (*Chain)(nil)
	_ engine.LoadObserver = (*Chain)(nil)
)

// NewChain nil entries are ignored
func NewChain(logger *zap.Logger, forecasters ...engine.Forecaster) *Chain {
	c := &Chain{logger: logger}
	for _, f := range forecasters {
		if f != nil {
			c.forecasters = append(c.forecasters, f)
		}
	}
	return c
}

// ObserveBuildingLoad forwards to every member that tracks history
func (c *Chain) ObserveBuildingLoad(buildingID int64, at time.Time, loadKW float64) {
	for _, f := range c.forecasters {
		if o, ok := f.(engine.LoadObserver); ok {
			o.ObserveBuildingLoad(buildingID, at, loadKW)
		}
	}
}

// PredictBuildingLoad the last error is returned only when no forecaster answered
func (c *Chain) PredictBuildingLoad(ctx context.Context, buildingID int64, at time.Time) (float64, bool, error) {
	var lastErr error
	for i, f := range c.forecasters {
		kw, ok, err := f.PredictBuildingLoad(ctx, buildingID, at)
		if err != nil {
			lastErr = err
			c.logger.Debug("Forecaster failed, trying next",
				zap.Int("position", i),
				zap.Int64("building_id", buildingID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			return kw, true, nil
		}
	}
	return 0, false, lastErr
}
