package models

import (
	"encoding/json"
	"time"
)

// ActionKind autonomous action type
type ActionKind string

const (
	ActionPowerCutoff      ActionKind = "POWER_CUTOFF"
	ActionSourceSwitch     ActionKind = "SOURCE_SWITCH"
	ActionHybridMode       ActionKind = "HYBRID_MODE"
	ActionDemandSpike      ActionKind = "DEMAND_SPIKE"
	ActionPredictiveSwitch ActionKind = "PREDICTIVE_SWITCH"
)

// AutonomousAction append-only audit record (autonomous_actions table)
type AutonomousAction struct {
	ID             string          `json:"id" db:"id"`
	Timestamp      time.Time       `json:"timestamp" db:"timestamp"`
	ActionType     ActionKind      `json:"action_type" db:"action_type"`
	RoomID         *int64          `json:"room_id,omitempty" db:"room_id"`
	BuildingID     *int64          `json:"building_id,omitempty" db:"building_id"`
	Reason         string          `json:"reason" db:"reason"`
	EnergySavedKWh float64         `json:"energy_saved_kwh" db:"energy_saved_kwh"`
	PreviousState  json.RawMessage `json:"previous_state" db:"previous_state"` // JSONB
	NewState       json.RawMessage `json:"new_state" db:"new_state"`           // JSONB
	IsOptimization bool            `json:"is_optimization" db:"is_optimization"`
	Confidence     *float64        `json:"confidence_score,omitempty" db:"confidence_score"`
}
