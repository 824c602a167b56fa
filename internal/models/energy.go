package models

import "time"

// SourceName energy source identifier
type SourceName string

const (
	SourceGrid   SourceName = "grid"
	SourceSolar  SourceName = "solar"
	SourceDiesel SourceName = "diesel"
)

// EnergySource static reference data (energy_sources table)
type EnergySource struct {
	ID         int64      `json:"id" db:"id"`
	Name       SourceName `json:"name" db:"name"`
	CostPerKWh float64    `json:"cost_per_kwh" db:"cost_per_kwh"`
	Priority   int        `json:"priority" db:"priority"`
	Available  bool       `json:"is_available" db:"is_available"`
}

// GridStatus grid outage record; the latest one is authoritative
type GridStatus struct {
	ID            int64     `json:"id,omitempty" db:"id"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
	GridAvailable bool      `json:"grid_available" db:"grid_available"`
	Reason        string    `json:"reason,omitempty" db:"reason"`
}
