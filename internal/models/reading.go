package models

import "time"

// Reading one synthesized telemetry sample (energy_readings table)
type Reading struct {
	ID              int64     `json:"id,omitempty" db:"id"`
	RoomID          int64     `json:"room_id" db:"room_id"`
	BuildingID      int64     `json:"building_id" db:"-"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
	Occupied        bool      `json:"occupancy_status" db:"occupancy_status"`
	TemperatureC    float64   `json:"temperature" db:"temperature"`
	BaseLoadKW      float64   `json:"base_load_kw" db:"base_load_kw"`
	ClimateLoadKW   float64   `json:"ac_load_kw" db:"ac_load_kw"`
	LightingLoadKW  float64   `json:"lighting_load_kw" db:"lighting_load_kw"`
	EquipmentLoadKW float64   `json:"equipment_load_kw" db:"equipment_load_kw"`
	TotalLoadKW     float64   `json:"total_load_kw" db:"total_load_kw"`
	SourceID        *int64    `json:"source_id,omitempty" db:"source_id"` // nil when nothing serves the room
	Optimized       bool      `json:"is_optimized" db:"is_optimized"`
}

// LoadSnapshot load components captured in audit state
type LoadSnapshot struct {
	TotalLoadKW     float64 `json:"total_load_kw"`
	BaseLoadKW      float64 `json:"base_load_kw"`
	ClimateLoadKW   float64 `json:"ac_load_kw"`
	LightingLoadKW  float64 `json:"lighting_load_kw"`
	EquipmentLoadKW float64 `json:"equipment_load_kw"`
	Occupied        bool    `json:"occupancy_status"`
}

// Snapshot current load components
func (r *Reading) Snapshot() LoadSnapshot {
	return LoadSnapshot{
		TotalLoadKW:     r.TotalLoadKW,
		BaseLoadKW:      r.BaseLoadKW,
		ClimateLoadKW:   r.ClimateLoadKW,
		LightingLoadKW:  r.LightingLoadKW,
		EquipmentLoadKW: r.EquipmentLoadKW,
		Occupied:        r.Occupied,
	}
}
