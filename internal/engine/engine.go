package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"voltonic-power/internal/actionlog"
	"voltonic-power/internal/config"
	"voltonic-power/internal/learner"
	"voltonic-power/internal/models"
	"voltonic-power/internal/selector"
	"voltonic-power/internal/spike"
	"voltonic-power/internal/telemetry"

	"go.uber.org/zap"
)

// Engine runs the per-tick power decision pipeline.
// It is the single writer of learner, selector and spike state; Tick calls are serialized.
type Engine struct {
	mu sync.RWMutex

	store      Store
	forecaster Forecaster
	listeners  []Listener
	logger     *zap.Logger

	synth    *telemetry.Synthesizer
	learner  *learner.Learner
	selector *selector.Selector
	spikes   *spike.Manager
	log      *actionlog.Log
	cutoff   *actionlog.Cutoff
}

// New wires the pipeline. stateStore and forecaster may be nil.
func New(cfg *config.Config, store Store, stateStore spike.StateStore, forecaster Forecaster, rng *rand.Rand, logger *zap.Logger) *Engine {
	log := actionlog.NewLog()
	return &Engine{
		store:      store,
		forecaster: forecaster,
		logger:     logger,
		synth:      telemetry.NewSynthesizer(rng, cfg.Power.LoadProfiles, cfg.Power.FallbackRoomType),
		learner: learner.New(learner.Options{
			Threshold:          cfg.Power.Cancellation.Threshold,
			MinObservations:    cfg.Power.Cancellation.MinObservations,
			AnalysisMinSamples: cfg.Power.Cancellation.AnalysisMinSamples,
			RiskyMinScheduled:  cfg.Power.Cancellation.RiskyMinScheduled,
			Probabilities:      cfg.Power.Cancellation.Probabilities,
			DefaultProbability: cfg.Power.Cancellation.DefaultProbability,
		}, rng),
		selector: selector.New(selector.Defaults{
			SolarCapacityKW:        cfg.Power.SolarCapacityKW,
			GridCapacityKW:         cfg.Power.GridCapacityKW,
			SpikeThresholdKW:       cfg.Power.SpikeThresholdKW,
			GridDownSolarRoomTypes: cfg.Power.GridDownSolarRoomTypes,
		}, logger),
		spikes: spike.NewManager(stateStore, log, cfg.Power.TransitionSteps, logger),
		log:    log,
		cutoff: actionlog.NewCutoff(log, cfg.Power.EnergyHoursPerTick),
	}
}

// AddListener registers a post-commit listener
func (e *Engine) AddListener(l Listener) {
	e.listeners = append(e.listeners, l)
}

// Warm loads persisted cancellation patterns and building configs
func (e *Engine) Warm(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	patterns, err := e.store.ListPatterns(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cancellation patterns: %w", err)
	}
	configs, err := e.store.ListPowerConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load power configs: %w", err)
	}
	e.learner.Load(patterns)
	e.selector.Load(configs)

	e.logger.Info("Engine state loaded",
		zap.Int("patterns", len(patterns)),
		zap.Int("power_configs", len(configs)),
	)
	return nil
}

// Tick runs one full pass over all rooms at time at and commits the result
func (e *Engine) Tick(ctx context.Context, at time.Time) (*TickSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	weekday := models.Weekday(at)
	hour := at.Hour()

	// 1. reference data
	rooms, err := e.store.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	schedules, err := e.store.ListSchedules(ctx, weekday)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	sources, err := e.store.ListEnergySources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list energy sources: %w", err)
	}
	grid, err := e.store.LatestGridStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get grid status: %w", err)
	}

	gridAvailable := grid == nil || grid.GridAvailable
	e.selector.BeginTick(at, sources)

	summary := &TickSummary{
		At:                at,
		SolarAvailability: e.selector.Availability(),
		GridAvailable:     gridAvailable,
		BuildingLoads:     make(map[int64]float64),
		Recommendations:   make(map[int64]string),
	}

	scheduled := make(map[int64]bool)
	for _, s := range schedules {
		if s.Covers(at) {
			scheduled[s.RoomID] = true
		}
	}

	// rooms of a building are processed in a stable order
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].BuildingID != rooms[j].BuildingID {
			return rooms[i].BuildingID < rooms[j].BuildingID
		}
		return rooms[i].ID < rooms[j].ID
	})

	// 2. rooms
	readings := make([]models.Reading, 0, len(rooms))
	var buildings []int64
	for _, room := range rooms {
		reading, ok, err := e.processRoom(room, scheduled[room.ID], gridAvailable, weekday, hour, at)
		if err != nil {
			return nil, err
		}
		if !ok {
			summary.RoomsSkipped++
			continue
		}
		if reading.Optimized {
			summary.Optimized++
			summary.AutoCutoffs++
		}
		if _, seen := summary.BuildingLoads[room.BuildingID]; !seen {
			buildings = append(buildings, room.BuildingID)
		}
		summary.BuildingLoads[room.BuildingID] += reading.TotalLoadKW
		readings = append(readings, reading)
	}
	summary.RoomsSimulated = len(readings)

	if err := e.recordTransitions(); err != nil {
		return nil, err
	}

	// 3. buildings
	for _, buildingID := range buildings {
		load := models.Round(summary.BuildingLoads[buildingID], 2)
		summary.BuildingLoads[buildingID] = load
		e.processBuilding(ctx, buildingID, load, at, summary)
	}

	// 4. persist
	batch := &TickBatch{
		At:       at,
		Readings: readings,
		Patterns: e.learner.DrainDirty(),
		Configs:  e.selector.DrainDirty(),
		Actions:  e.log.Drain(),
	}
	if err := e.store.SaveTick(ctx, batch); err != nil {
		// learned state and audit records stay in memory; queue them for the next commit
		for _, p := range batch.Patterns {
			e.learner.MarkDirty(p.Key())
		}
		for _, c := range batch.Configs {
			e.selector.MarkDirty(c.BuildingID)
		}
		// readings chunks may already be committed; their audit records must follow
		e.log.Requeue(batch.Actions)
		return summary, fmt.Errorf("failed to commit tick: %w", err)
	}

	summary.Modes = e.selector.Configs()
	for _, l := range e.listeners {
		l.OnTick(ctx, batch, summary)
	}

	e.logger.Info("Tick completed",
		zap.Int("rooms_simulated", summary.RoomsSimulated),
		zap.Int("rooms_skipped", summary.RoomsSkipped),
		zap.Int("optimized", summary.Optimized),
		zap.Int("auto_cutoffs", summary.AutoCutoffs),
		zap.Int("spikes", summary.Spikes),
		zap.Int("predictive_switches", summary.PredictiveSwitches),
		zap.Float64("solar_availability", summary.SolarAvailability),
		zap.Bool("grid_available", summary.GridAvailable),
		zap.Int("actions", len(batch.Actions)),
	)
	return summary, nil
}

// processRoom synthesizes, vetoes or assigns a source, then learns from the realized occupancy.
// ok is false when the room has to be skipped.
func (e *Engine) processRoom(room models.Room, isScheduled, gridAvailable bool, weekday, hour int, at time.Time) (models.Reading, bool, error) {
	cancelled := false
	if isScheduled {
		d := e.learner.SimulateCancellation(room.Type, room.ID, weekday, hour)
		cancelled = d.Cancelled
		if cancelled {
			e.logger.Debug("Scheduled slot cancelled",
				zap.Int64("room_id", room.ID),
				zap.String("method", d.Method),
				zap.Float64("rate", d.Rate),
			)
		}
	}

	reading := e.synth.Synthesize(room, isScheduled, e.synth.AmbientTemperature(), cancelled, at)
	occupied := reading.Occupied

	forced, rate := e.learner.ShouldForceCutoff(room.ID, weekday, hour)
	if isScheduled && forced {
		reason := fmt.Sprintf("Learned cancellation pattern (historical rate: %.1f%%)", rate*100)
		if _, err := e.cutoff.Apply(room, &reading, reason, at); err != nil {
			return reading, false, fmt.Errorf("failed to apply cutoff for room %d: %w", room.ID, err)
		}
	} else {
		sel, err := e.selector.Select(room, room.BuildingID, reading.TotalLoadKW, gridAvailable)
		if errors.Is(err, selector.ErrUnconfigured) {
			e.logger.Warn("Skipping room, no energy source",
				zap.Int64("room_id", room.ID),
				zap.Int64("building_id", room.BuildingID),
				zap.Error(err),
			)
			return reading, false, nil
		}
		if err != nil {
			return reading, false, err
		}
		reading.SourceID = &sel.SourceID
	}

	if isScheduled {
		e.learner.RecordOutcome(room.ID, weekday, hour, occupied, at)
	}
	return reading, true, nil
}

// recordTransitions turns selector mode changes into audit records
func (e *Engine) recordTransitions() error {
	for _, t := range e.selector.DrainTransitions() {
		from := models.ModeState{Mode: t.From, HybridActive: t.From == models.PowerModeHybrid, SolarAvailable: t.Availability}
		to := models.ModeState{
			Mode:           t.To,
			HybridActive:   t.To == models.PowerModeHybrid,
			TotalLoadKW:    t.LoadKW,
			SolarAvailable: t.Availability,
		}
		if t.Kind == models.ActionHybridMode {
			to.SolarOutputKW = t.CapacityKW
			to.GridLoadKW = models.Round(t.LoadKW-t.CapacityKW, 2)
		}
		action, err := actionlog.BuildModeChange(t.Kind, t.BuildingID, t.Reason, from, to, t.At)
		if err != nil {
			return err
		}
		e.log.Append(action)
	}
	return nil
}

// processBuilding spike check and forecast look-ahead for one building aggregate
func (e *Engine) processBuilding(ctx context.Context, buildingID int64, load float64, at time.Time, summary *TickSummary) {
	cfg := e.selector.Config(buildingID)

	res, err := e.spikes.CheckSpike(ctx, cfg, load, at)
	if err != nil {
		e.logger.Warn("Building load state not persisted",
			zap.Int64("building_id", buildingID),
			zap.Error(err),
		)
	}
	if res.Spike {
		summary.Spikes++
		e.selector.MarkDirty(buildingID)
	}

	if e.forecaster == nil {
		return
	}
	if o, ok := e.forecaster.(LoadObserver); ok {
		o.ObserveBuildingLoad(buildingID, at, load)
	}

	predicted, ok, err := e.forecaster.PredictBuildingLoad(ctx, buildingID, at)
	if err != nil {
		e.logger.Warn("Load forecast failed",
			zap.Int64("building_id", buildingID),
			zap.Error(err),
		)
		return
	}
	if !ok {
		return
	}

	rec, err := e.spikes.PredictiveSwitch(cfg, predicted, load, at)
	if err != nil {
		e.logger.Error("Predictive switch failed", zap.Int64("building_id", buildingID), zap.Error(err))
		return
	}
	if rec == nil {
		return
	}
	summary.Recommendations[buildingID] = rec.Action
	if rec.Record != nil {
		summary.PredictiveSwitches++
	}
}

// RiskySchedules buckets with a high cancellation rate, for reporting
func (e *Engine) RiskySchedules(minRate float64) []models.CancellationPattern {
	return e.learner.RiskySchedules(minRate)
}

// AnalyzeRoom cancellation statistics for a room
func (e *Engine) AnalyzeRoom(roomID int64, weekday *int) (learner.Analysis, error) {
	return e.learner.Analyze(roomID, weekday)
}

// PowerModes latest per-building configs
func (e *Engine) PowerModes() []models.BuildingPowerConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.selector.Configs()
}
