package actionlog

import (
	"encoding/json"
	"testing"
	"time"

	"voltonic-power/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCutoff_Apply(t *testing.T) {
	log := NewLog()
	cutoff := NewCutoff(log, 1.0/60.0)

	src := int64(2)
	reading := &models.Reading{
		RoomID:          5,
		BaseLoadKW:      1.0,
		ClimateLoadKW:   1.5,
		LightingLoadKW:  0.5,
		EquipmentLoadKW: 3.0,
		TotalLoadKW:     6.0,
		Occupied:        true,
		SourceID:        &src,
	}
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	action, err := cutoff.Apply(models.Room{ID: 5, BuildingID: 1}, reading, "Learned cancellation pattern", at)
	require.NoError(t, err)

	assert.Zero(t, reading.BaseLoadKW)
	assert.Zero(t, reading.ClimateLoadKW)
	assert.Zero(t, reading.LightingLoadKW)
	assert.Zero(t, reading.EquipmentLoadKW)
	assert.Zero(t, reading.TotalLoadKW)
	assert.True(t, reading.Optimized)
	assert.Nil(t, reading.SourceID)

	assert.Equal(t, models.ActionPowerCutoff, action.ActionType)
	assert.Equal(t, 0.1, action.EnergySavedKWh)
	require.NotNil(t, action.Confidence)
	assert.Equal(t, 0.85, *action.Confidence)
	assert.True(t, action.IsOptimization)
	assert.Equal(t, at, action.Timestamp)
	require.NotNil(t, action.RoomID)
	assert.Equal(t, int64(5), *action.RoomID)
	_, err = uuid.Parse(action.ID)
	assert.NoError(t, err)

	var prev, next models.LoadSnapshot
	require.NoError(t, json.Unmarshal(action.PreviousState, &prev))
	require.NoError(t, json.Unmarshal(action.NewState, &next))
	assert.Equal(t, 6.0, prev.TotalLoadKW)
	assert.Equal(t, 3.0, prev.EquipmentLoadKW)
	assert.Zero(t, next.TotalLoadKW)

	assert.Equal(t, 1, log.Len())
}

func TestCutoff_EnergyFactorIsConfigurable(t *testing.T) {
	cutoff := NewCutoff(NewLog(), 0.5)
	reading := &models.Reading{TotalLoadKW: 3.0}

	action, err := cutoff.Apply(models.Room{ID: 1}, reading, "test", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1.5, action.EnergySavedKWh)
}

func TestLog_AppendAndDrain(t *testing.T) {
	log := NewLog()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return fixed }

	a, err := BuildModeChange(models.ActionHybridMode, 3, "overflow",
		models.ModeState{Mode: models.PowerModeSolarOnly},
		models.ModeState{Mode: models.PowerModeHybrid, HybridActive: true}, time.Time{})
	require.NoError(t, err)
	first := log.Append(a)
	assert.Equal(t, fixed, first.Timestamp)
	assert.NotEmpty(t, first.ID)

	b, err := BuildPredictiveSwitch(3, "forecast", models.PowerModeSolarOnly, fixed.Add(time.Minute))
	require.NoError(t, err)
	second := log.Append(b)
	assert.NotEqual(t, first.ID, second.ID)
	assert.JSONEq(t, `{"mode":"transitioning_to_hybrid"}`, string(second.NewState))
	assert.Equal(t, 0.75, *second.Confidence)

	drained := log.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, models.ActionHybridMode, drained[0].ActionType)
	assert.Equal(t, models.ActionPredictiveSwitch, drained[1].ActionType)
	assert.Empty(t, log.Drain())
}

func TestLog_RequeueKeepsOrderAndIDs(t *testing.T) {
	log := NewLog()
	at := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	first := log.Append(&models.AutonomousAction{ActionType: models.ActionPowerCutoff, Timestamp: at})
	failed := log.Drain()

	second := log.Append(&models.AutonomousAction{ActionType: models.ActionDemandSpike, Timestamp: at.Add(time.Minute)})
	log.Requeue(failed)
	log.Requeue(nil)

	drained := log.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, first.ID, drained[0].ID)
	assert.Equal(t, second.ID, drained[1].ID)
	assert.Equal(t, 0, log.Len())
}
