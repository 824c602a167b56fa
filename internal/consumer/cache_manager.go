package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"voltonic-power/internal/config"
	"voltonic-power/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss nothing cached under the key
var ErrCacheMiss = errors.New("cache miss")

// CacheManager Redis cache for power modes and load forecasts
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager creates the cache manager
func NewCacheManager(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (c *CacheManager) modeKey(buildingID int64) string {
	return c.config.Cache.ModeKeyPrefix + strconv.FormatInt(buildingID, 10)
}

func (c *CacheManager) forecastKey(buildingID int64) string {
	return c.config.Cache.ForecastKeyPrefix + strconv.FormatInt(buildingID, 10)
}

// UpdatePowerModes writes the latest config of each building, no TTL
func (c *CacheManager) UpdatePowerModes(ctx context.Context, configs []models.BuildingPowerConfig) error {
	if len(configs) == 0 {
		return nil
	}

	pipe := c.redisClient.Pipeline()
	for i := range configs {
		jsonData, err := json.Marshal(configs[i])
		if err != nil {
			return fmt.Errorf("failed to marshal power mode: %w", err)
		}
		pipe.Set(ctx, c.modeKey(configs[i].BuildingID), jsonData, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update power modes: %w", err)
	}

	c.logger.Debug("Power modes cached",
		zap.Int("building_count", len(configs)),
	)
	return nil
}

// GetPowerMode cached config of one building
func (c *CacheManager) GetPowerMode(ctx context.Context, buildingID int64) (*models.BuildingPowerConfig, error) {
	val, err := c.redisClient.Get(ctx, c.modeKey(buildingID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get power mode: %w", err)
	}

	var cfg models.BuildingPowerConfig
	if err := json.Unmarshal([]byte(val), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal power mode: %w", err)
	}
	return &cfg, nil
}

// ForecastEntry cached next-hour prediction
type ForecastEntry struct {
	BuildingID      int64     `json:"building_id"`
	PredictedLoadKW float64   `json:"predicted_load_kw"`
	PredictedAt     time.Time `json:"predicted_at"`
}

// GetForecast returns ErrCacheMiss once the entry has expired
func (c *CacheManager) GetForecast(ctx context.Context, buildingID int64) (float64, error) {
	val, err := c.redisClient.Get(ctx, c.forecastKey(buildingID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("failed to get forecast: %w", err)
	}

	var entry ForecastEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return 0, fmt.Errorf("failed to unmarshal forecast: %w", err)
	}
	return entry.PredictedLoadKW, nil
}

// SetForecast caches a prediction for ForecastTTL
func (c *CacheManager) SetForecast(ctx context.Context, buildingID int64, loadKW float64, at time.Time) error {
	jsonData, err := json.Marshal(ForecastEntry{
		BuildingID:      buildingID,
		PredictedLoadKW: loadKW,
		PredictedAt:     at,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal forecast: %w", err)
	}

	if err := c.redisClient.Set(ctx, c.forecastKey(buildingID), jsonData, c.config.Cache.ForecastTTL).Err(); err != nil {
		return fmt.Errorf("failed to set forecast: %w", err)
	}
	return nil
}
