package forecast

import (
	"context"
	"math"
	"sync"
	"time"

	"voltonic-power/internal/models"

	"gonum.org/v1/gonum/stat"
)

const minTrendSamples = 3

// Sample one building aggregate
type Sample struct {
	At     time.Time
	LoadKW float64
}

// TrendForecaster extrapolates a least-squares line through the most recent
// aggregates of each building
type TrendForecaster struct {
	mu      sync.Mutex
	window  int
	horizon time.Duration
	series  map[int64][]Sample
}

// NewTrendForecaster window is the number of aggregates kept per building
func NewTrendForecaster(window int, horizon time.Duration) *TrendForecaster {
	if window < minTrendSamples {
		window = minTrendSamples
	}
	return &TrendForecaster{
		window:  window,
		horizon: horizon,
		series:  make(map[int64][]Sample),
	}
}

// Backfill seeds a building with historical aggregates, oldest first
func (f *TrendForecaster) Backfill(buildingID int64, samples []Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range samples {
		f.appendLocked(buildingID, s)
	}
}

// ObserveBuildingLoad records the aggregate of the tick just computed
func (f *TrendForecaster) ObserveBuildingLoad(buildingID int64, at time.Time, loadKW float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendLocked(buildingID, Sample{At: at, LoadKW: loadKW})
}

func (f *TrendForecaster) appendLocked(buildingID int64, s Sample) {
	series := append(f.series[buildingID], s)
	if len(series) > f.window {
		series = series[len(series)-f.window:]
	}
	f.series[buildingID] = series
}

// PredictBuildingLoad ok is false until minTrendSamples aggregates are known
func (f *TrendForecaster) PredictBuildingLoad(_ context.Context, buildingID int64, at time.Time) (float64, bool, error) {
	f.mu.Lock()
	series := append([]Sample(nil), f.series[buildingID]...)
	f.mu.Unlock()

	if len(series) < minTrendSamples {
		return 0, false, nil
	}

	origin := series[0].At
	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	for i, s := range series {
		xs[i] = s.At.Sub(origin).Minutes()
		ys[i] = s.LoadKW
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	target := at.Add(f.horizon).Sub(origin).Minutes()
	predicted := alpha + beta*target
	// samples sharing one timestamp have no slope
	if math.IsNaN(predicted) || math.IsInf(predicted, 0) {
		return 0, false, nil
	}
	if predicted < 0 {
		predicted = 0
	}
	return models.Round(predicted, 2), true, nil
}
