package spike

import (
	"context"
	"fmt"
	"time"

	"voltonic-power/internal/actionlog"
	"voltonic-power/internal/models"
	"voltonic-power/internal/selector"

	"go.uber.org/zap"
)

// Recommendation actions returned by PredictiveSwitch
const (
	ActionTransitionStarted = "TRANSITION_STARTED"
	ActionEveningTransition = "EVENING_TRANSITION"
)

// SpikeResult outcome of one building check
type SpikeResult struct {
	BuildingID     int64
	Spike          bool
	PreviousLoadKW *float64
	CurrentLoadKW  float64
	IncreaseKW     float64
	SolarKW        float64
	GridKW         float64
	Action         *models.AutonomousAction
}

// Recommendation forecast driven advice; the caller decides whether to act on it
type Recommendation struct {
	Action          string                   `json:"action"`
	Reason          string                   `json:"reason"`
	PredictedLoadKW float64                  `json:"predicted_load,omitempty"`
	CurrentLoadKW   float64                  `json:"current_load,omitempty"`
	CapacityKW      float64                  `json:"current_capacity,omitempty"`
	Availability    float64                  `json:"solar_availability"`
	Advice          string                   `json:"recommendation"`
	FirstStep       *TransitionPlan          `json:"first_step,omitempty"`
	Record          *models.AutonomousAction `json:"-"`
}

// Manager detects tick-over-tick demand spikes per building
type Manager struct {
	store           StateStore
	states          map[int64]BuildingLoadState
	log             *actionlog.Log
	transitionSteps int
	logger          *zap.Logger
}

// NewManager store may be nil for purely in-process state
func NewManager(store StateStore, log *actionlog.Log, transitionSteps int, logger *zap.Logger) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		store:           store,
		states:          make(map[int64]BuildingLoadState),
		log:             log,
		transitionSteps: transitionSteps,
		logger:          logger,
	}
}

// CheckSpike compares currentLoadKW with the building's previous aggregate.
// An increase above the config threshold activates hybrid mode with the load split
// between solar (capped at effective capacity) and grid. The previous aggregate is
// always replaced. A StateStore failure is returned after the check completes.
func (m *Manager) CheckSpike(ctx context.Context, cfg *models.BuildingPowerConfig, currentLoadKW float64, at time.Time) (SpikeResult, error) {
	res := SpikeResult{BuildingID: cfg.BuildingID, CurrentLoadKW: currentLoadKW}

	prev, loadErr := m.previous(ctx, cfg.BuildingID)
	if prev != nil {
		p := prev.PreviousLoadKW
		res.PreviousLoadKW = &p
		res.IncreaseKW = models.Round(currentLoadKW-p, 2)
	}

	var spikeErr error
	if prev != nil && currentLoadKW-prev.PreviousLoadKW > cfg.SpikeThresholdKW {
		spikeErr = m.activateHybrid(cfg, &res, at)
	}

	// the new aggregate is stored even when the spike could not be recorded
	state := BuildingLoadState{BuildingID: cfg.BuildingID, PreviousLoadKW: currentLoadKW, UpdatedAt: at}
	m.states[cfg.BuildingID] = state
	if err := m.store.Save(ctx, state); err != nil {
		return res, fmt.Errorf("save load state for building %d: %w", cfg.BuildingID, err)
	}
	if spikeErr != nil {
		return res, spikeErr
	}
	if loadErr != nil {
		return res, loadErr
	}
	return res, nil
}

func (m *Manager) activateHybrid(cfg *models.BuildingPowerConfig, res *SpikeResult, at time.Time) error {
	availability := selector.SolarAvailability(at.Hour())
	capacity := cfg.SolarCapacityKW * availability

	solar := res.CurrentLoadKW
	if solar > capacity {
		solar = capacity
	}
	grid := res.CurrentLoadKW - capacity
	if grid < 0 {
		grid = 0
	}
	res.Spike = true
	res.SolarKW = models.Round(solar, 2)
	res.GridKW = models.Round(grid, 2)

	before := models.ModeState{
		Mode:          cfg.Mode,
		HybridActive:  cfg.HybridModeActive,
		SolarOutputKW: cfg.CurrentSolarOutputKW,
		TotalLoadKW:   *res.PreviousLoadKW,
	}

	// no solar to split with: the spike is recorded, the building stays on its current mode
	if availability > 0 {
		cfg.SetMode(models.PowerModeHybrid, at)
		cfg.HybridModeActive = true
		cfg.LastSourceSwitch = &at
	}
	cfg.CurrentSolarOutputKW = res.SolarKW
	cfg.UpdatedAt = at

	after := models.ModeState{
		Mode:           cfg.Mode,
		HybridActive:   cfg.HybridModeActive,
		SolarOutputKW:  res.SolarKW,
		GridLoadKW:     res.GridKW,
		TotalLoadKW:    models.Round(res.CurrentLoadKW, 2),
		SolarAvailable: availability,
	}

	reason := fmt.Sprintf("Demand spike of %.2f kW exceeds %.2f kW threshold", res.IncreaseKW, cfg.SpikeThresholdKW)
	action, err := actionlog.BuildModeChange(models.ActionDemandSpike, cfg.BuildingID, reason, before, after, at)
	if err != nil {
		return err
	}
	recorded := m.log.Append(action)
	res.Action = &recorded

	m.logger.Warn("Demand spike detected",
		zap.Int64("building_id", cfg.BuildingID),
		zap.Float64("increase_kw", res.IncreaseKW),
		zap.Float64("solar_kw", res.SolarKW),
		zap.Float64("grid_kw", res.GridKW),
	)
	return nil
}

// previous in-process state first, then the StateStore
func (m *Manager) previous(ctx context.Context, buildingID int64) (*BuildingLoadState, error) {
	if s, ok := m.states[buildingID]; ok {
		return &s, nil
	}
	s, err := m.store.Get(ctx, buildingID)
	if err != nil {
		return nil, fmt.Errorf("load state for building %d: %w", buildingID, err)
	}
	return s, nil
}

// Previous stored aggregate for a building
func (m *Manager) Previous(buildingID int64) (float64, bool) {
	s, ok := m.states[buildingID]
	return s.PreviousLoadKW, ok
}

// PredictiveSwitch looks one hour ahead: a forecast above next hour's solar capacity on a
// building not yet in hybrid mode records a PREDICTIVE_SWITCH and recommends starting a
// gradual solar to grid transition. The hybrid flag is left alone. Otherwise, from 18:00
// on, a tapering next hour yields an evening transition recommendation. nil means no advice.
func (m *Manager) PredictiveSwitch(cfg *models.BuildingPowerConfig, predictedLoadKW, currentLoadKW float64, at time.Time) (*Recommendation, error) {
	hour := at.Hour()
	availability := selector.SolarAvailability(hour + 1)
	capacity := cfg.SolarCapacityKW * availability

	if predictedLoadKW > capacity && availability > 0 && !cfg.HybridModeActive {
		reason := fmt.Sprintf("Predicted load (%.1f kW) will exceed solar capacity (%.1f kW) next window", predictedLoadKW, capacity)
		action, err := actionlog.BuildPredictiveSwitch(cfg.BuildingID, reason, cfg.Mode, at)
		if err != nil {
			return nil, err
		}
		recorded := m.log.Append(action)
		first := GradualTransition(string(models.SourceSolar), string(models.SourceGrid), 1, m.transitionSteps)

		m.logger.Info("Predictive switch recommended",
			zap.Int64("building_id", cfg.BuildingID),
			zap.Float64("predicted_kw", predictedLoadKW),
			zap.Float64("capacity_kw", capacity),
		)
		return &Recommendation{
			Action:          ActionTransitionStarted,
			Reason:          reason,
			PredictedLoadKW: predictedLoadKW,
			CurrentLoadKW:   currentLoadKW,
			CapacityKW:      models.Round(capacity, 2),
			Availability:    availability,
			Advice:          "Begin gradual transition to hybrid mode",
			FirstStep:       &first,
			Record:          &recorded,
		}, nil
	}

	if hour >= 18 && availability < 1.0 {
		return &Recommendation{
			Action:        ActionEveningTransition,
			Reason:        "Solar output reducing (evening)",
			CurrentLoadKW: currentLoadKW,
			Availability:  availability,
			Advice:        "Transitioning to grid-primary mode",
		}, nil
	}

	return nil, nil
}
