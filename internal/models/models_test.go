package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancellationPattern_LatchesAtSevenObservations(t *testing.T) {
	p := &CancellationPattern{RoomID: 1, Weekday: 2, Hour: 10}
	at := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	outcomes := []bool{true, false, true, false, true, false}
	for _, occupied := range outcomes {
		p.Record(occupied, at, 0.5, 7)
	}
	assert.Equal(t, 6, p.ScheduledCount)
	assert.Equal(t, 3, p.OccupiedCount)
	assert.False(t, p.AutoCutoffEnabled)
	assert.Equal(t, PatternObserving, p.State())

	p.Record(false, at, 0.5, 7)
	assert.Equal(t, 7, p.ScheduledCount)
	assert.InDelta(t, 1-3.0/7.0, p.CancellationRate, 1e-9)
	assert.True(t, p.AutoCutoffEnabled)
	assert.Equal(t, PatternAutoCutoff, p.State())

	// latch holds even when occupancy recovers
	for i := 0; i < 20; i++ {
		p.Record(true, at, 0.5, 7)
	}
	assert.Less(t, p.CancellationRate, 0.5)
	assert.True(t, p.AutoCutoffEnabled)
	assert.LessOrEqual(t, p.OccupiedCount, p.ScheduledCount)
}

func TestPowerModeTransitions(t *testing.T) {
	assert.True(t, CanTransition(PowerModeSolarOnly, PowerModeHybrid))
	assert.True(t, CanTransition(PowerModeGridPrimary, PowerModeSolarOnly))
	assert.False(t, CanTransition(PowerModeHybrid, PowerModeSolarOnly))
	assert.False(t, CanTransition(PowerModeHybrid, PowerModeHybrid))

	now := time.Now()
	cfg := NewBuildingPowerConfig(1, 452, 1000, 2, now)
	prev, changed := cfg.SetMode(PowerModeHybrid, now)
	assert.True(t, changed)
	assert.Equal(t, PowerModeSolarOnly, prev)
	assert.True(t, cfg.HybridModeActive)
	require.NotNil(t, cfg.LastSourceSwitch)

	_, changed = cfg.SetMode(PowerModeSolarOnly, now)
	assert.False(t, changed)
	assert.Equal(t, PowerModeHybrid, cfg.Mode)

	_, changed = cfg.SetMode(PowerModeGridPrimary, now)
	assert.True(t, changed)
	_, changed = cfg.SetMode(PowerModeSolarOnly, now)
	assert.True(t, changed)
	assert.False(t, cfg.HybridModeActive)
}

func TestScheduleEntry_Covers(t *testing.T) {
	start, err := ParseClock("09:00")
	require.NoError(t, err)
	end, err := ParseClock("10:30:00")
	require.NoError(t, err)
	entry := ScheduleEntry{RoomID: 1, Weekday: 0, StartTime: start, EndTime: end}

	monday := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, Weekday(monday))
	assert.True(t, entry.Covers(monday))
	assert.True(t, entry.Covers(monday.Add(90*time.Minute)))
	assert.False(t, entry.Covers(monday.Add(91*time.Minute)))
	assert.False(t, entry.Covers(monday.AddDate(0, 0, 1)))
	assert.Equal(t, 6, Weekday(monday.AddDate(0, 0, 6)))
	assert.Equal(t, "10:30:00", end.String())

	_, err = ParseClock("9am")
	assert.Error(t, err)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.83, Round(5.0/6.0, 2))
	assert.Equal(t, 0.1, Round(6.0/60.0, 4))
	assert.Equal(t, 3.1, Round(3.14159, 1))
}
