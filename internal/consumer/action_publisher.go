package consumer

import (
	"context"

	rediscommon "voltonic-power/common/redis"
	"voltonic-power/internal/config"
	"voltonic-power/internal/engine"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ActionPublisher fans committed ticks out to Redis: every action to the
// action stream, and the latest power mode of each building to the cache
type ActionPublisher struct {
	config      *config.Config
	redisClient *redis.Client
	cache       *CacheManager
	logger      *zap.Logger
}

var _ engine.Listener = (*ActionPublisher)(nil)

// NewActionPublisher creates the publisher
func NewActionPublisher(cfg *config.Config, redisClient *redis.Client, cache *CacheManager, logger *zap.Logger) *ActionPublisher {
	return &ActionPublisher{
		config:      cfg,
		redisClient: redisClient,
		cache:       cache,
		logger:      logger,
	}
}

// OnTick publishing failures are logged; the tick is already committed
func (p *ActionPublisher) OnTick(ctx context.Context, batch *engine.TickBatch, summary *engine.TickSummary) {
	for i := range batch.Actions {
		action := &batch.Actions[i]
		if _, err := rediscommon.PublishJSONToStream(ctx, p.redisClient, p.config.Cache.ActionStream, p.config.Cache.ActionStreamMaxLen, action); err != nil {
			p.logger.Error("Failed to publish action",
				zap.String("action_id", action.ID),
				zap.String("action_type", string(action.ActionType)),
				zap.Error(err),
			)
		}
	}

	if err := p.cache.UpdatePowerModes(ctx, summary.Modes); err != nil {
		p.logger.Error("Failed to cache power modes",
			zap.Error(err),
		)
	}
}
