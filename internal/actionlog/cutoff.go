package actionlog

import (
	"time"

	"voltonic-power/internal/models"
)

// Cutoff forced zero-load override for rooms the learner expects to stay empty
type Cutoff struct {
	log          *Log
	hoursPerTick float64
}

// NewCutoff hoursPerTick converts a tick's kW load into kWh saved
func NewCutoff(log *Log, hoursPerTick float64) *Cutoff {
	return &Cutoff{log: log, hoursPerTick: hoursPerTick}
}

// Apply zeroes every load component of reading, marks it optimized and records a POWER_CUTOFF
// with the pre-override loads. The reading loses its source: nothing is being served.
func (c *Cutoff) Apply(room models.Room, reading *models.Reading, reason string, at time.Time) (models.AutonomousAction, error) {
	before := reading.Snapshot()

	reading.BaseLoadKW = 0
	reading.ClimateLoadKW = 0
	reading.LightingLoadKW = 0
	reading.EquipmentLoadKW = 0
	reading.TotalLoadKW = 0
	reading.SourceID = nil
	reading.Optimized = true

	action, err := Build(
		models.ActionPowerCutoff,
		Int64(room.ID),
		Int64(room.BuildingID),
		reason,
		models.Round(before.TotalLoadKW*c.hoursPerTick, 4),
		before,
		reading.Snapshot(),
		true,
		Float(CutoffConfidence),
		at,
	)
	if err != nil {
		return models.AutonomousAction{}, err
	}
	return c.log.Append(action), nil
}
