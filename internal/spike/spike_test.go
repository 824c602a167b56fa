package spike

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"voltonic-power/internal/actionlog"
	"voltonic-power/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(store StateStore) (*Manager, *actionlog.Log) {
	log := actionlog.NewLog()
	return NewManager(store, log, 6, zap.NewNop()), log
}

func testConfig(solarKW float64) *models.BuildingPowerConfig {
	return models.NewBuildingPowerConfig(1, solarKW, 1000, 2.0, time.Time{})
}

var noon = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestCheckSpike_DetectsIncreaseAboveThreshold(t *testing.T) {
	ctx := context.Background()
	m, log := newTestManager(nil)
	cfg := testConfig(11)

	res, err := m.CheckSpike(ctx, cfg, 10.0, noon)
	require.NoError(t, err)
	assert.False(t, res.Spike, "first observation has nothing to compare against")

	res, err = m.CheckSpike(ctx, cfg, 13.0, noon.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, res.Spike)
	assert.Equal(t, 3.0, res.IncreaseKW)
	assert.Equal(t, 11.0, res.SolarKW)
	assert.Equal(t, 2.0, res.GridKW)

	assert.True(t, cfg.HybridModeActive)
	assert.Equal(t, models.PowerModeHybrid, cfg.Mode)
	assert.Equal(t, 11.0, cfg.CurrentSolarOutputKW)
	require.NotNil(t, cfg.LastSourceSwitch)

	actions := log.Drain()
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionDemandSpike, actions[0].ActionType)
	var before, after models.ModeState
	require.NoError(t, json.Unmarshal(actions[0].PreviousState, &before))
	require.NoError(t, json.Unmarshal(actions[0].NewState, &after))
	assert.Equal(t, models.PowerModeSolarOnly, before.Mode)
	assert.Equal(t, models.PowerModeHybrid, after.Mode)
	assert.Equal(t, 2.0, after.GridLoadKW)
}

func TestCheckSpike_BelowThresholdStillUpdatesPrevious(t *testing.T) {
	ctx := context.Background()
	m, log := newTestManager(nil)
	cfg := testConfig(452)

	_, err := m.CheckSpike(ctx, cfg, 10.0, noon)
	require.NoError(t, err)
	res, err := m.CheckSpike(ctx, cfg, 11.5, noon.Add(time.Minute))
	require.NoError(t, err)

	assert.False(t, res.Spike)
	assert.Equal(t, 1.5, res.IncreaseKW)
	assert.Empty(t, log.Drain())
	assert.False(t, cfg.HybridModeActive)

	prev, ok := m.Previous(1)
	assert.True(t, ok)
	assert.Equal(t, 11.5, prev)
}

func TestCheckSpike_NightSpikeGoesAllGrid(t *testing.T) {
	ctx := context.Background()
	m, log := newTestManager(nil)
	cfg := testConfig(452)
	cfg.SetMode(models.PowerModeGridPrimary, noon)
	night := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)

	_, err := m.CheckSpike(ctx, cfg, 1.0, night)
	require.NoError(t, err)
	res, err := m.CheckSpike(ctx, cfg, 8.0, night.Add(time.Minute))
	require.NoError(t, err)

	assert.True(t, res.Spike)
	assert.Zero(t, res.SolarKW)
	assert.Equal(t, 8.0, res.GridKW)

	// nothing to split with solar, so the building stays on grid
	assert.Equal(t, models.PowerModeGridPrimary, cfg.Mode)
	assert.False(t, cfg.HybridModeActive)
	require.NotNil(t, cfg.LastSourceSwitch)
	assert.Equal(t, noon, *cfg.LastSourceSwitch)

	actions := log.Drain()
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionDemandSpike, actions[0].ActionType)
	var after models.ModeState
	require.NoError(t, json.Unmarshal(actions[0].NewState, &after))
	assert.Equal(t, models.PowerModeGridPrimary, after.Mode)
	assert.Equal(t, 8.0, after.GridLoadKW)
}

func TestCheckSpike_RecordFailureStillStoresPrevious(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m, log := newTestManager(store)
	// a NaN capacity yields a split the audit record cannot encode
	cfg := testConfig(math.NaN())

	_, err := m.CheckSpike(ctx, cfg, 10.0, noon)
	require.NoError(t, err)
	_, err = m.CheckSpike(ctx, cfg, 13.0, noon.Add(time.Minute))
	require.Error(t, err)
	assert.Empty(t, log.Drain())

	prev, ok := m.Previous(1)
	require.True(t, ok)
	assert.Equal(t, 13.0, prev)

	saved, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 13.0, saved.PreviousLoadKW)
}

func TestCheckSpike_RestoresPreviousFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, BuildingLoadState{BuildingID: 1, PreviousLoadKW: 10.0}))

	m, _ := newTestManager(store)
	res, err := m.CheckSpike(ctx, testConfig(452), 13.0, noon)
	require.NoError(t, err)
	assert.True(t, res.Spike)

	saved, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 13.0, saved.PreviousLoadKW)
}

type failingStore struct{}

func (failingStore) Get(context.Context, int64) (*BuildingLoadState, error) {
	return nil, errors.New("redis down")
}

func (failingStore) Save(context.Context, BuildingLoadState) error {
	return errors.New("redis down")
}

func TestCheckSpike_StoreFailureKeepsInProcessState(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(failingStore{})
	cfg := testConfig(452)

	_, err := m.CheckSpike(ctx, cfg, 10.0, noon)
	assert.Error(t, err)

	res, err := m.CheckSpike(ctx, cfg, 13.0, noon.Add(time.Minute))
	assert.Error(t, err)
	assert.True(t, res.Spike)
}

func TestGradualTransition(t *testing.T) {
	plan := GradualTransition("solar", "grid", 0, 6)
	assert.Equal(t, 1, plan.Step)
	assert.Equal(t, 0.83, plan.CurrentShare)
	assert.Equal(t, 0.17, plan.TargetShare)
	assert.False(t, plan.Complete)

	plan = GradualTransition("solar", "grid", 6, 6)
	assert.Equal(t, 0.0, plan.CurrentShare)
	assert.Equal(t, 1.0, plan.TargetShare)
	assert.True(t, plan.Complete)

	plan = GradualTransition("solar", "grid", 9, 6)
	assert.Equal(t, 6, plan.Step)
	assert.True(t, plan.Complete)

	plan = GradualTransition("solar", "grid", 3, 6)
	assert.Equal(t, 0.5, plan.CurrentShare)
	assert.Equal(t, 0.5, plan.TargetShare)
}

func TestPredictiveSwitch_ForecastAboveNextHourCapacity(t *testing.T) {
	m, log := newTestManager(nil)
	cfg := testConfig(10)
	at := time.Date(2025, 3, 10, 17, 30, 0, 0, time.UTC) // next hour availability 0.3 => 3 kW

	rec, err := m.PredictiveSwitch(cfg, 4.0, 2.5, at)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, ActionTransitionStarted, rec.Action)
	assert.Equal(t, 3.0, rec.CapacityKW)
	require.NotNil(t, rec.FirstStep)
	assert.Equal(t, 0.17, rec.FirstStep.TargetShare)
	assert.False(t, cfg.HybridModeActive, "prediction never flips the hybrid flag")

	actions := log.Drain()
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionPredictiveSwitch, actions[0].ActionType)
	assert.Equal(t, 0.75, *actions[0].Confidence)
}

func TestPredictiveSwitch_SkipsHybridBuildings(t *testing.T) {
	m, log := newTestManager(nil)
	cfg := testConfig(10)
	cfg.HybridModeActive = true

	rec, err := m.PredictiveSwitch(cfg, 40.0, 2.5, noon)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, log.Drain())
}

func TestPredictiveSwitch_EveningTransition(t *testing.T) {
	m, log := newTestManager(nil)
	cfg := testConfig(452)
	at := time.Date(2025, 3, 10, 18, 10, 0, 0, time.UTC)

	rec, err := m.PredictiveSwitch(cfg, 1.0, 1.0, at)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, ActionEveningTransition, rec.Action)
	assert.Equal(t, 0.3, rec.Availability)
	assert.Empty(t, log.Drain(), "evening advice is not recorded")
}

func TestPredictiveSwitch_NightForecastIgnored(t *testing.T) {
	m, _ := newTestManager(nil)
	at := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)

	rec, err := m.PredictiveSwitch(testConfig(452), 900, 1.0, at)
	require.NoError(t, err)
	assert.Nil(t, rec)
}
