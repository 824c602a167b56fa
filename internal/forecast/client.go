package forecast

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"voltonic-power/internal/consumer"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Cache forecast cache (consumer.CacheManager)
type Cache interface {
	GetForecast(ctx context.Context, buildingID int64) (float64, error)
	SetForecast(ctx context.Context, buildingID int64, loadKW float64, at time.Time) error
}

// PredictResponse prediction service response
type PredictResponse struct {
	BuildingID      int64   `json:"building_id"`
	PredictedLoadKW float64 `json:"predicted_load_kw"`
	PredictionTime  string  `json:"prediction_time,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
}

// Client next-hour building load from the prediction service
type Client struct {
	httpClient     *resty.Client
	horizonMinutes int
	cache          Cache
	logger         *zap.Logger
}

// NewClient cache may be nil
func NewClient(baseURL string, timeout time.Duration, retryCount, horizonMinutes int, cache Cache, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient:     client,
		horizonMinutes: horizonMinutes,
		cache:          cache,
		logger:         logger,
	}
}

// PredictBuildingLoad serves from cache when it can, otherwise asks the service
func (c *Client) PredictBuildingLoad(ctx context.Context, buildingID int64, at time.Time) (float64, bool, error) {
	if c.cache != nil {
		kw, err := c.cache.GetForecast(ctx, buildingID)
		if err == nil {
			return kw, true, nil
		}
		if !errors.Is(err, consumer.ErrCacheMiss) {
			c.logger.Warn("Forecast cache read failed",
				zap.Int64("building_id", buildingID),
				zap.Error(err),
			)
		}
	}

	var response PredictResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("building_id", strconv.FormatInt(buildingID, 10)).
		SetQueryParam("horizon_minutes", strconv.Itoa(c.horizonMinutes)).
		SetResult(&response).
		Get("/api/v1/predict")
	if err != nil {
		return 0, false, fmt.Errorf("failed to call prediction service: %w", err)
	}
	if resp.IsError() {
		return 0, false, fmt.Errorf("prediction service returned %d", resp.StatusCode())
	}

	if c.cache != nil {
		if err := c.cache.SetForecast(ctx, buildingID, response.PredictedLoadKW, at); err != nil {
			c.logger.Warn("Forecast cache write failed",
				zap.Int64("building_id", buildingID),
				zap.Error(err),
			)
		}
	}

	c.logger.Debug("Load forecast received",
		zap.Int64("building_id", buildingID),
		zap.Float64("predicted_load_kw", response.PredictedLoadKW),
	)
	return response.PredictedLoadKW, true, nil
}
