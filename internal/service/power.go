package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"voltonic-power/common/database"
	mqttcommon "voltonic-power/common/mqtt"
	rediscommon "voltonic-power/common/redis"
	"voltonic-power/internal/config"
	"voltonic-power/internal/consumer"
	"voltonic-power/internal/engine"
	"voltonic-power/internal/forecast"
	"voltonic-power/internal/httpapi"
	"voltonic-power/internal/metrics"
	"voltonic-power/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// PowerService wires storage, caches, the engine and its drivers
type PowerService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client // nil when grid status over MQTT is disabled
	logger      *zap.Logger

	store        *repository.Store
	stateManager *consumer.StateManager
	cacheManager *consumer.CacheManager
	engine       *engine.Engine
	trend        *forecast.TrendForecaster
	metrics      *metrics.Metrics
	tickDriver   *consumer.TickDriver
	gridConsumer *consumer.GridStatusConsumer
	httpServer   *http.Server
}

// NewPowerService connects to PostgreSQL, Redis and optionally MQTT
func NewPowerService(cfg *config.Config, logger *zap.Logger) (*PowerService, error) {
	// 1. database
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, err
	}

	// 2. redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. storage and caches
	store := repository.NewStore(db, cfg.Persistence.BatchSize, repository.RetryPolicy{
		MaxTries:       cfg.Persistence.MaxRetries,
		InitialBackoff: cfg.Persistence.InitialBackoff,
	}, logger)
	stateManager := consumer.NewStateManager(cfg, redisClient, logger)
	cacheManager := consumer.NewCacheManager(cfg, redisClient, logger)

	// 4. forecasting: prediction service first, local trend as fallback
	horizon := time.Duration(cfg.Forecast.HorizonMinutes) * time.Minute
	trend := forecast.NewTrendForecaster(cfg.Forecast.TrendWindow, horizon)
	var remote engine.Forecaster
	if cfg.Forecast.BaseURL != "" {
		remote = forecast.NewClient(cfg.Forecast.BaseURL, cfg.Forecast.Timeout, cfg.Forecast.RetryCount,
			cfg.Forecast.HorizonMinutes, cacheManager, logger)
	}
	forecaster := forecast.NewChain(logger, remote, trend)

	// 5. engine
	seed := cfg.Power.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	eng := engine.New(cfg, store, stateManager, forecaster, rand.New(rand.NewSource(seed)), logger)

	// 6. metrics and fan-out
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	eng.AddListener(m)
	eng.AddListener(consumer.NewActionPublisher(cfg, redisClient, cacheManager, logger))

	tickDriver := consumer.NewTickDriver(metrics.NewInstrumentedTicker(eng, m), cfg.Power.TickInterval, logger)

	s := &PowerService{
		config:       cfg,
		db:           db,
		redisClient:  redisClient,
		logger:       logger,
		store:        store,
		stateManager: stateManager,
		cacheManager: cacheManager,
		engine:       eng,
		trend:        trend,
		metrics:      m,
		tickDriver:   tickDriver,
	}

	// 7. grid status over MQTT
	if cfg.GridStatus.Enabled {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			s.Stop()
			return nil, fmt.Errorf("failed to connect mqtt: %w", err)
		}
		s.mqttClient = mqttClient
		s.gridConsumer = consumer.NewGridStatusConsumer(mqttClient, store.Energy, cfg.GridStatus.Topic, logger)
	}

	// 8. http
	s.httpServer = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           s.newRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

func (s *PowerService) newRouter() *httpapi.Router {
	router := httpapi.NewRouter(s.metrics, s.logger)
	checks := map[string]httpapi.HealthCheck{
		"postgres": s.db.PingContext,
		"redis": func(ctx context.Context) error {
			return rediscommon.Ping(ctx, s.redisClient)
		},
	}
	if s.mqttClient != nil {
		checks["mqtt"] = func(context.Context) error { return s.mqttClient.Healthy() }
	}
	router.RegisterOpsRoutes(checks)
	router.RegisterPowerRoutes(httpapi.NewPowerHandler(s.engine, s.store.Actions,
		s.config.Power.Cancellation.Threshold, s.logger))
	return router
}

// Start warms the engine, then runs the tick driver until ctx is cancelled
func (s *PowerService) Start(ctx context.Context) error {
	s.logger.Info("Starting power service",
		zap.Duration("tick_interval", s.config.Power.TickInterval),
		zap.String("http_addr", s.config.HTTP.Addr),
		zap.Bool("grid_status_mqtt", s.gridConsumer != nil),
	)

	if err := s.engine.Warm(ctx); err != nil {
		return fmt.Errorf("failed to warm engine: %w", err)
	}
	s.backfillTrend(ctx)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	if s.gridConsumer != nil {
		go func() {
			if err := s.gridConsumer.Start(ctx); err != nil {
				s.logger.Error("Grid status consumer failed", zap.Error(err))
			}
		}()
	}

	if err := s.tickDriver.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tick driver: %w", err)
	}
	return nil
}

// backfillTrend seeds the trend forecaster with persisted aggregates
func (s *PowerService) backfillTrend(ctx context.Context) {
	latest, err := s.store.Readings.LatestBuildingLoads(ctx)
	if err != nil {
		s.logger.Warn("Trend backfill skipped", zap.Error(err))
		return
	}
	for _, l := range latest {
		recent, err := s.store.Readings.RecentBuildingLoads(ctx, l.BuildingID, s.config.Forecast.TrendWindow)
		if err != nil {
			s.logger.Warn("Trend backfill failed",
				zap.Int64("building_id", l.BuildingID),
				zap.Error(err),
			)
			continue
		}
		samples := make([]forecast.Sample, 0, len(recent))
		for _, r := range recent {
			samples = append(samples, forecast.Sample{At: r.Timestamp, LoadKW: r.TotalLoadKW})
		}
		s.trend.Backfill(l.BuildingID, samples)
	}
	s.logger.Info("Trend forecaster backfilled", zap.Int("buildings", len(latest)))
}

// Stop releases every connection
func (s *PowerService) Stop() error {
	s.logger.Info("Stopping power service")

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
		}
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := rediscommon.Close(s.redisClient); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}
