package engine

import (
	"context"
	"time"

	"voltonic-power/internal/models"
)

// Store storage collaborator consumed by the tick pipeline
type Store interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	ListSchedules(ctx context.Context, weekday int) ([]models.ScheduleEntry, error)
	ListEnergySources(ctx context.Context) ([]models.EnergySource, error)
	// LatestGridStatus returns nil when no status has ever been recorded
	LatestGridStatus(ctx context.Context) (*models.GridStatus, error)
	ListPowerConfigs(ctx context.Context) ([]models.BuildingPowerConfig, error)
	ListPatterns(ctx context.Context) ([]models.CancellationPattern, error)
	// SaveTick persists one tick; retries must re-send the same batch
	SaveTick(ctx context.Context, batch *TickBatch) error
}

// Forecaster predicts a building's aggregate load for the next window
type Forecaster interface {
	PredictBuildingLoad(ctx context.Context, buildingID int64, at time.Time) (float64, bool, error)
}

// LoadObserver optionally implemented by forecasters that learn from realized aggregates
type LoadObserver interface {
	ObserveBuildingLoad(buildingID int64, at time.Time, loadKW float64)
}

// Listener notified after a tick is committed
type Listener interface {
	OnTick(ctx context.Context, batch *TickBatch, summary *TickSummary)
}

// TickBatch everything one tick writes
type TickBatch struct {
	At       time.Time
	Readings []models.Reading
	Patterns []models.CancellationPattern
	Configs  []models.BuildingPowerConfig
	Actions  []models.AutonomousAction
}

// TickSummary per tick counters
type TickSummary struct {
	At                 time.Time
	RoomsSimulated     int
	RoomsSkipped       int
	Optimized          int
	AutoCutoffs        int
	Spikes             int
	PredictiveSwitches int
	SolarAvailability  float64
	GridAvailable      bool
	BuildingLoads      map[int64]float64
	Recommendations    map[int64]string
	Modes              []models.BuildingPowerConfig // every building after the tick
}
