package models

import "time"

// PowerMode building supply mode
type PowerMode string

const (
	PowerModeSolarOnly   PowerMode = "solar_only"
	PowerModeHybrid      PowerMode = "hybrid"
	PowerModeGridPrimary PowerMode = "grid_primary"
)

// allowed mode transitions; staying in the same mode is not a transition
var powerModeTransitions = map[PowerMode][]PowerMode{
	PowerModeSolarOnly:   {PowerModeHybrid, PowerModeGridPrimary},
	PowerModeHybrid:      {PowerModeGridPrimary},
	PowerModeGridPrimary: {PowerModeSolarOnly, PowerModeHybrid},
}

// CanTransition reports whether from -> to is a legal mode change
func CanTransition(from, to PowerMode) bool {
	for _, next := range powerModeTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// BuildingPowerConfig per building power state (building_power_config table, unique on building_id)
type BuildingPowerConfig struct {
	BuildingID           int64      `json:"building_id" db:"building_id"`
	SolarCapacityKW      float64    `json:"solar_capacity_kw" db:"solar_capacity_kw"`
	CurrentSolarOutputKW float64    `json:"current_solar_output_kw" db:"current_solar_output_kw"`
	GridCapacityKW       float64    `json:"grid_capacity_kw" db:"grid_capacity_kw"`
	SpikeThresholdKW     float64    `json:"demand_spike_threshold_kw" db:"demand_spike_threshold_kw"`
	HybridModeActive     bool       `json:"hybrid_mode_active" db:"hybrid_mode_active"`
	Mode                 PowerMode  `json:"power_mode" db:"power_mode"`
	LastSourceSwitch     *time.Time `json:"last_source_switch,omitempty" db:"last_source_switch"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// NewBuildingPowerConfig config with the campus defaults
func NewBuildingPowerConfig(buildingID int64, solarKW, gridKW, spikeKW float64, now time.Time) *BuildingPowerConfig {
	return &BuildingPowerConfig{
		BuildingID:       buildingID,
		SolarCapacityKW:  solarKW,
		GridCapacityKW:   gridKW,
		SpikeThresholdKW: spikeKW,
		Mode:             PowerModeSolarOnly,
		UpdatedAt:        now,
	}
}

// SetMode moves the config to mode if the transition is legal.
// Returns the previous mode and whether anything changed.
func (c *BuildingPowerConfig) SetMode(mode PowerMode, at time.Time) (PowerMode, bool) {
	prev := c.Mode
	if !CanTransition(prev, mode) {
		return prev, false
	}
	c.Mode = mode
	switch mode {
	case PowerModeHybrid:
		c.HybridModeActive = true
	case PowerModeSolarOnly:
		c.HybridModeActive = false
	}
	c.LastSourceSwitch = &at
	c.UpdatedAt = at
	return prev, true
}

// ModeState mode snapshot stored in audit records
type ModeState struct {
	Mode           PowerMode `json:"mode"`
	HybridActive   bool      `json:"hybrid_mode_active"`
	SolarOutputKW  float64   `json:"solar_output_kw"`
	GridLoadKW     float64   `json:"grid_load_kw,omitempty"`
	TotalLoadKW    float64   `json:"total_load_kw,omitempty"`
	SolarAvailable float64   `json:"solar_availability,omitempty"`
}
