package actionlog

import (
	"encoding/json"
	"fmt"
	"time"

	"voltonic-power/internal/models"
)

// Confidence values attached to pattern and forecast driven actions
const (
	CutoffConfidence     = 0.85
	PredictiveConfidence = 0.75
)

// Build serializes previous/new state into an action record
func Build(
	kind models.ActionKind,
	roomID *int64,
	buildingID *int64,
	reason string,
	energySavedKWh float64,
	previousState interface{},
	newState interface{},
	isOptimization bool,
	confidence *float64,
	at time.Time,
) (*models.AutonomousAction, error) {
	prev, err := json.Marshal(previousState)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal previous state: %w", err)
	}
	next, err := json.Marshal(newState)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal new state: %w", err)
	}

	return &models.AutonomousAction{
		Timestamp:      at,
		ActionType:     kind,
		RoomID:         roomID,
		BuildingID:     buildingID,
		Reason:         reason,
		EnergySavedKWh: energySavedKWh,
		PreviousState:  prev,
		NewState:       next,
		IsOptimization: isOptimization,
		Confidence:     confidence,
	}, nil
}

// BuildModeChange building level mode change (SOURCE_SWITCH, HYBRID_MODE, DEMAND_SPIKE)
func BuildModeChange(kind models.ActionKind, buildingID int64, reason string, from, to models.ModeState, at time.Time) (*models.AutonomousAction, error) {
	return Build(kind, nil, &buildingID, reason, 0, from, to, true, nil, at)
}

// BuildPredictiveSwitch forecast driven early warning
func BuildPredictiveSwitch(buildingID int64, reason string, from models.PowerMode, at time.Time) (*models.AutonomousAction, error) {
	return Build(models.ActionPredictiveSwitch, nil, &buildingID, reason, 0,
		map[string]string{"mode": string(from)},
		map[string]string{"mode": "transitioning_to_hybrid"},
		true, Float(PredictiveConfidence), at)
}

// Float pointer helper for optional confidence values
func Float(v float64) *float64 {
	return &v
}

// Int64 pointer helper for optional room/building references
func Int64(v int64) *int64 {
	return &v
}
