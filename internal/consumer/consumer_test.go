package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqttcommon "voltonic-power/common/mqtt"
	rediscommon "voltonic-power/common/redis"
	"voltonic-power/internal/actionlog"
	"voltonic-power/internal/config"
	"voltonic-power/internal/engine"
	"voltonic-power/internal/models"
	"voltonic-power/internal/spike"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCacheConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Cache.ModeKeyPrefix = "power:mode:"
	cfg.Cache.StateKeyPrefix = "power:state:"
	cfg.Cache.ForecastKeyPrefix = "power:forecast:"
	cfg.Cache.StateTTL = 24 * time.Hour
	cfg.Cache.ForecastTTL = 10 * time.Minute
	cfg.Cache.ActionStream = "power:actions"
	cfg.Cache.ActionStreamMaxLen = 1000
	return cfg
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *config.Config) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = redisClient.Close() })
	return mr, redisClient, testCacheConfig()
}

func TestStateManager_RoundTrip(t *testing.T) {
	mr, redisClient, cfg := setupTestRedis(t)
	sm := NewStateManager(cfg, redisClient, zap.NewNop())
	ctx := context.Background()

	state, err := sm.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, state, "missing baseline is not an error")

	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, sm.Save(ctx, spike.BuildingLoadState{BuildingID: 7, PreviousLoadKW: 12.5, UpdatedAt: at}))

	state, err = sm.Get(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 12.5, state.PreviousLoadKW)
	assert.True(t, at.Equal(state.UpdatedAt))

	assert.Equal(t, 24*time.Hour, mr.TTL("power:state:7"))

	require.NoError(t, sm.DeleteState(ctx, 7))
	state, err = sm.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStateManager_CorruptValue(t *testing.T) {
	mr, redisClient, cfg := setupTestRedis(t)
	sm := NewStateManager(cfg, redisClient, zap.NewNop())

	require.NoError(t, mr.Set("power:state:3", "not json"))
	_, err := sm.Get(context.Background(), 3)
	assert.Error(t, err)
}

func TestStateManager_FeedsSpikeManager(t *testing.T) {
	_, redisClient, cfg := setupTestRedis(t)
	store := NewStateManager(cfg, redisClient, zap.NewNop())
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	first := spike.NewManager(store, actionlog.NewLog(), 6, zap.NewNop())
	bpc := models.NewBuildingPowerConfig(1, 452, 1000, 2.0, at)
	_, err := first.CheckSpike(context.Background(), bpc, 10, at)
	require.NoError(t, err)

	// a fresh manager restores the baseline from Redis
	second := spike.NewManager(store, actionlog.NewLog(), 6, zap.NewNop())
	res, err := second.CheckSpike(context.Background(), bpc, 13, at.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, res.Spike)
}

func TestCacheManager_PowerModes(t *testing.T) {
	_, redisClient, cfg := setupTestRedis(t)
	cm := NewCacheManager(cfg, redisClient, zap.NewNop())
	ctx := context.Background()

	_, err := cm.GetPowerMode(ctx, 1)
	assert.ErrorIs(t, err, ErrCacheMiss)

	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	hybrid := models.NewBuildingPowerConfig(1, 452, 1000, 2.0, at)
	hybrid.SetMode(models.PowerModeHybrid, at)
	solar := models.NewBuildingPowerConfig(2, 452, 1000, 2.0, at)
	require.NoError(t, cm.UpdatePowerModes(ctx, []models.BuildingPowerConfig{*hybrid, *solar}))

	got, err := cm.GetPowerMode(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PowerModeHybrid, got.Mode)
	assert.True(t, got.HybridModeActive)

	got, err = cm.GetPowerMode(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.PowerModeSolarOnly, got.Mode)
}

func TestCacheManager_ForecastExpires(t *testing.T) {
	mr, redisClient, cfg := setupTestRedis(t)
	cm := NewCacheManager(cfg, redisClient, zap.NewNop())
	ctx := context.Background()

	_, err := cm.GetForecast(ctx, 4)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cm.SetForecast(ctx, 4, 42.5, time.Now()))
	kw, err := cm.GetForecast(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 42.5, kw)

	mr.FastForward(11 * time.Minute)
	_, err = cm.GetForecast(ctx, 4)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestActionPublisher_OnTick(t *testing.T) {
	_, redisClient, cfg := setupTestRedis(t)
	cm := NewCacheManager(cfg, redisClient, zap.NewNop())
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	pub := NewActionPublisher(cfg, redisClient, cm, zap.NewNop())

	room := int64(5)
	batch := &engine.TickBatch{
		At: at,
		Actions: []models.AutonomousAction{
			{ID: "a1", Timestamp: at, ActionType: models.ActionPowerCutoff, RoomID: &room, EnergySavedKWh: 0.1, IsOptimization: true},
			{ID: "a2", Timestamp: at, ActionType: models.ActionSourceSwitch, IsOptimization: true},
		},
	}
	summary := &engine.TickSummary{Modes: []models.BuildingPowerConfig{*models.NewBuildingPowerConfig(9, 452, 1000, 2.0, at)}}
	pub.OnTick(context.Background(), batch, summary)

	entries, err := redisClient.XRange(context.Background(), "power:actions", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var first models.AutonomousAction
	require.NoError(t, rediscommon.DecodeStreamJSON(entries[0], &first))
	assert.Equal(t, "a1", first.ID)
	assert.Equal(t, models.ActionPowerCutoff, first.ActionType)
	assert.Equal(t, 0.1, first.EnergySavedKWh)

	cached, err := cm.GetPowerMode(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), cached.BuildingID)
}

type fakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string]mqttcommon.MessageHandler
	subbed   chan struct{}
	unsubbed []string
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: map[string]mqttcommon.MessageHandler{}, subbed: make(chan struct{})}
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler mqttcommon.MessageHandler) error {
	f.mu.Lock()
	f.handlers[topic] = handler
	f.mu.Unlock()
	close(f.subbed)
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubbed = append(f.unsubbed, topics...)
	return nil
}

func (f *fakeSubscriber) handler(topic string) mqttcommon.MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[topic]
}

type recordingWriter struct {
	mu       sync.Mutex
	statuses []models.GridStatus
	err      error
}

func (w *recordingWriter) InsertGridStatus(_ context.Context, status *models.GridStatus) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.statuses = append(w.statuses, *status)
	return nil
}

func TestGridStatusConsumer(t *testing.T) {
	sub := newFakeSubscriber()
	writer := &recordingWriter{}
	c := NewGridStatusConsumer(sub, writer, "campus/grid/status", zap.NewNop())
	fixed := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	<-sub.subbed

	h := sub.handler("campus/grid/status")
	require.NotNil(t, h)

	require.NoError(t, h("campus/grid/status", []byte(`{"grid_available": false, "reason": "storm"}`)))
	require.NoError(t, h("campus/grid/status", []byte(`{"grid_available": true, "timestamp": "2025-03-10T13:00:00Z"}`)))
	assert.Error(t, h("campus/grid/status", []byte(`{"reason": "no flag"}`)))
	assert.Error(t, h("campus/grid/status", []byte(`garbage`)))

	cancel()
	require.NoError(t, <-done)

	require.Len(t, writer.statuses, 2)
	assert.False(t, writer.statuses[0].GridAvailable)
	assert.Equal(t, "storm", writer.statuses[0].Reason)
	assert.True(t, fixed.Equal(writer.statuses[0].Timestamp))
	assert.True(t, writer.statuses[1].GridAvailable)
	assert.Equal(t, 13, writer.statuses[1].Timestamp.Hour())
	assert.Equal(t, []string{"campus/grid/status"}, sub.unsubbed)
}

func TestGridStatusConsumer_WriterError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("db down")}
	c := NewGridStatusConsumer(newFakeSubscriber(), writer, "t", zap.NewNop())

	err := c.handleMessage(context.Background(), "t", []byte(`{"grid_available": false}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

type countingTicker struct {
	mu     sync.Mutex
	calls  int
	failAt int
	cancel context.CancelFunc
	stopAt int
}

func (c *countingTicker) Tick(_ context.Context, at time.Time) (*engine.TickSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls >= c.stopAt {
		c.cancel()
	}
	if c.calls == c.failAt {
		return nil, errors.New("commit failed")
	}
	return &engine.TickSummary{At: at}, nil
}

func TestTickDriver_ContinuesAfterFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticker := &countingTicker{failAt: 1, stopAt: 3, cancel: cancel}
	driver := NewTickDriver(ticker, 5*time.Millisecond, zap.NewNop())

	require.NoError(t, driver.Start(ctx))

	ticker.mu.Lock()
	defer ticker.mu.Unlock()
	assert.GreaterOrEqual(t, ticker.calls, 3, "first tick fails, the loop keeps going")
}

func TestTickDriver_FirstTickAtStartup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticker := &countingTicker{stopAt: 1, cancel: cancel}
	driver := NewTickDriver(ticker, time.Hour, zap.NewNop())

	require.NoError(t, driver.Start(ctx))
	assert.Equal(t, 1, ticker.calls)
}
