package selector

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"voltonic-power/internal/models"

	"go.uber.org/zap"
)

// ErrUnconfigured required energy source missing from reference data
var ErrUnconfigured = errors.New("energy sources not configured")

// Defaults applied to lazily created building configs
type Defaults struct {
	SolarCapacityKW  float64
	GridCapacityKW   float64
	SpikeThresholdKW float64
	// Room types served from solar during a grid outage; others use diesel
	GridDownSolarRoomTypes []models.RoomType
}

// Selection source assigned to one room
type Selection struct {
	SourceID int64
	Source   models.SourceName
	Mode     models.PowerMode
	Reason   string
}

// Transition building mode change made during selection
type Transition struct {
	BuildingID   int64
	Kind         models.ActionKind
	From         models.PowerMode
	To           models.PowerMode
	Reason       string
	Availability float64
	LoadKW       float64
	CapacityKW   float64
	At           time.Time
}

// Selector assigns energy sources room by room.
// Rooms of one building must be selected in a fixed order within a tick: later
// rooms see the solar load committed by earlier ones.
type Selector struct {
	defaults      Defaults
	solarFallback map[models.RoomType]bool
	logger        *zap.Logger

	at           time.Time
	availability float64
	sources      map[models.SourceName]models.EnergySource

	configs     map[int64]*models.BuildingPowerConfig
	dirty       map[int64]struct{}
	solarLoad   map[int64]float64 // solar load committed this tick per building
	transitions []Transition
}

// New creates a selector
func New(defaults Defaults, logger *zap.Logger) *Selector {
	fallback := make(map[models.RoomType]bool, len(defaults.GridDownSolarRoomTypes))
	for _, t := range defaults.GridDownSolarRoomTypes {
		fallback[t] = true
	}
	return &Selector{
		defaults:      defaults,
		solarFallback: fallback,
		logger:        logger,
		configs:       make(map[int64]*models.BuildingPowerConfig),
		dirty:         make(map[int64]struct{}),
		solarLoad:     make(map[int64]float64),
	}
}

// Load replaces the known building configs with persisted ones
func (s *Selector) Load(configs []models.BuildingPowerConfig) {
	s.configs = make(map[int64]*models.BuildingPowerConfig, len(configs))
	s.dirty = make(map[int64]struct{})
	for i := range configs {
		c := configs[i]
		if c.Mode == "" {
			c.Mode = models.PowerModeSolarOnly
			if c.HybridModeActive {
				c.Mode = models.PowerModeHybrid
			}
		}
		s.configs[c.BuildingID] = &c
	}
}

// BeginTick resets per-tick state and installs the energy sources for the tick at time at
func (s *Selector) BeginTick(at time.Time, sources []models.EnergySource) {
	s.at = at
	s.availability = SolarAvailability(at.Hour())
	s.sources = make(map[models.SourceName]models.EnergySource, len(sources))
	for _, src := range sources {
		s.sources[src.Name] = src
	}
	s.solarLoad = make(map[int64]float64)
	s.transitions = nil
}

// Availability solar availability factor for the current tick
func (s *Selector) Availability() float64 {
	return s.availability
}

// Config returns the building's config, creating it with defaults on first reference
func (s *Selector) Config(buildingID int64) *models.BuildingPowerConfig {
	if c, ok := s.configs[buildingID]; ok {
		return c
	}
	c := models.NewBuildingPowerConfig(buildingID, s.defaults.SolarCapacityKW, s.defaults.GridCapacityKW, s.defaults.SpikeThresholdKW, s.at)
	s.configs[buildingID] = c
	s.dirty[buildingID] = struct{}{}
	s.logger.Info("Created building power config",
		zap.Int64("building_id", buildingID),
		zap.Float64("solar_capacity_kw", c.SolarCapacityKW),
	)
	return c
}

// MarkDirty flags a config changed outside the selector for persistence
func (s *Selector) MarkDirty(buildingID int64) {
	s.dirty[buildingID] = struct{}{}
}

// Select picks the source for one room:
//  1. no solar this hour: grid
//  2. grid down: solar for fallback room types, diesel otherwise
//  3. building solar load plus this room fits effective capacity: solar, else hybrid and grid
func (s *Selector) Select(room models.Room, buildingID int64, roomLoadKW float64, gridAvailable bool) (Selection, error) {
	cfg := s.Config(buildingID)

	// 1. night
	if s.availability == 0 {
		s.transition(cfg, models.PowerModeGridPrimary, models.ActionSourceSwitch,
			"Solar unavailable, grid primary", roomLoadKW)
		return s.pick(models.SourceGrid, cfg.Mode, "solar unavailable")
	}

	if cfg.Mode == models.PowerModeGridPrimary {
		s.transition(cfg, models.PowerModeSolarOnly, models.ActionSourceSwitch,
			"Solar available again, returning to solar", roomLoadKW)
	}

	// 2. grid outage
	if !gridAvailable {
		if s.solarFallback[room.Type] {
			return s.pick(models.SourceSolar, cfg.Mode, "grid down, solar fallback")
		}
		return s.pick(models.SourceDiesel, cfg.Mode, "grid down, diesel backup")
	}

	// 3. capacity
	capacity := cfg.SolarCapacityKW * s.availability
	committed := s.solarLoad[buildingID]
	if committed+roomLoadKW <= capacity {
		sel, err := s.pick(models.SourceSolar, cfg.Mode, "within solar capacity")
		if err != nil {
			return sel, err
		}
		s.solarLoad[buildingID] = committed + roomLoadKW
		return sel, nil
	}

	reason := fmt.Sprintf("Building load %.2f kW exceeds solar capacity %.2f kW", committed+roomLoadKW, capacity)
	if !cfg.HybridModeActive {
		s.transition(cfg, models.PowerModeHybrid, models.ActionHybridMode, reason, committed+roomLoadKW)
	}
	cfg.HybridModeActive = true
	return s.pick(models.SourceGrid, cfg.Mode, "solar capacity exceeded")
}

func (s *Selector) pick(name models.SourceName, mode models.PowerMode, reason string) (Selection, error) {
	src, ok := s.sources[name]
	if !ok {
		return Selection{}, fmt.Errorf("%w: %s", ErrUnconfigured, name)
	}
	return Selection{SourceID: src.ID, Source: name, Mode: mode, Reason: reason}, nil
}

func (s *Selector) transition(cfg *models.BuildingPowerConfig, to models.PowerMode, kind models.ActionKind, reason string, loadKW float64) {
	from, changed := cfg.SetMode(to, s.at)
	if !changed {
		return
	}
	s.dirty[cfg.BuildingID] = struct{}{}
	s.transitions = append(s.transitions, Transition{
		BuildingID:   cfg.BuildingID,
		Kind:         kind,
		From:         from,
		To:           to,
		Reason:       reason,
		Availability: s.availability,
		LoadKW:       models.Round(loadKW, 2),
		CapacityKW:   models.Round(cfg.SolarCapacityKW*s.availability, 2),
		At:           s.at,
	})
	s.logger.Info("Building power mode changed",
		zap.Int64("building_id", cfg.BuildingID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}

// DrainTransitions mode changes since the last drain, in order
func (s *Selector) DrainTransitions() []Transition {
	out := s.transitions
	s.transitions = nil
	return out
}

// DrainDirty copies of configs created or changed since the last drain, by building id
func (s *Selector) DrainDirty() []models.BuildingPowerConfig {
	out := make([]models.BuildingPowerConfig, 0, len(s.dirty))
	for id := range s.dirty {
		if c, ok := s.configs[id]; ok {
			out = append(out, *c)
		}
	}
	s.dirty = make(map[int64]struct{})
	sort.Slice(out, func(i, j int) bool { return out[i].BuildingID < out[j].BuildingID })
	return out
}

// Configs copies of all known configs, by building id
func (s *Selector) Configs() []models.BuildingPowerConfig {
	out := make([]models.BuildingPowerConfig, 0, len(s.configs))
	for _, c := range s.configs {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BuildingID < out[j].BuildingID })
	return out
}
