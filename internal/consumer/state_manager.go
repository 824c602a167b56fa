package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"voltonic-power/internal/config"
	"voltonic-power/internal/spike"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StateManager keeps the previous-tick building load in Redis so a restart
// does not lose the spike baseline
type StateManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

var _ spike.StateStore = (*StateManager)(nil)

// NewStateManager creates the state manager
func NewStateManager(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *StateManager {
	return &StateManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// GetStateKey power:state:{building_id}
func (s *StateManager) GetStateKey(buildingID int64) string {
	return s.config.Cache.StateKeyPrefix + strconv.FormatInt(buildingID, 10)
}

// Get returns nil, nil when no state is stored
func (s *StateManager) Get(ctx context.Context, buildingID int64) (*spike.BuildingLoadState, error) {
	val, err := s.redisClient.Get(ctx, s.GetStateKey(buildingID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get load state: %w", err)
	}

	var state spike.BuildingLoadState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal load state: %w", err)
	}
	return &state, nil
}

// Save writes the state with the configured TTL
func (s *StateManager) Save(ctx context.Context, state spike.BuildingLoadState) error {
	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal load state: %w", err)
	}

	if err := s.redisClient.Set(ctx, s.GetStateKey(state.BuildingID), jsonData, s.config.Cache.StateTTL).Err(); err != nil {
		return fmt.Errorf("failed to set load state: %w", err)
	}
	return nil
}

// DeleteState drops the baseline of one building
func (s *StateManager) DeleteState(ctx context.Context, buildingID int64) error {
	if err := s.redisClient.Del(ctx, s.GetStateKey(buildingID)).Err(); err != nil {
		return fmt.Errorf("failed to delete load state: %w", err)
	}
	return nil
}
