package repository

import (
	"context"
	"database/sql"
	"fmt"

	"voltonic-power/internal/engine"
	"voltonic-power/internal/models"

	"go.uber.org/zap"
)

// Store PostgreSQL storage for the tick pipeline
type Store struct {
	db        *sql.DB
	batchSize int
	retry     RetryPolicy
	logger    *zap.Logger

	Rooms    *RoomRepository
	Energy   *EnergyRepository
	Configs  *PowerConfigRepository
	Patterns *PatternRepository
	Readings *ReadingRepository
	Actions  *ActionRepository
}

var _ engine.Store = (*Store)(nil)

// NewStore batchSize bounds the readings written per transaction
func NewStore(db *sql.DB, batchSize int, retry RetryPolicy, logger *zap.Logger) *Store {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Store{
		db:        db,
		batchSize: batchSize,
		retry:     retry,
		logger:    logger,
		Rooms:     NewRoomRepository(db, logger),
		Energy:    NewEnergyRepository(db, logger),
		Configs:   NewPowerConfigRepository(db, logger),
		Patterns:  NewPatternRepository(db, logger),
		Readings:  NewReadingRepository(db, logger),
		Actions:   NewActionRepository(db, logger),
	}
}

func (s *Store) ListRooms(ctx context.Context) ([]models.Room, error) {
	return s.Rooms.ListRooms(ctx)
}

func (s *Store) ListSchedules(ctx context.Context, weekday int) ([]models.ScheduleEntry, error) {
	return s.Rooms.ListSchedules(ctx, weekday)
}

func (s *Store) ListEnergySources(ctx context.Context) ([]models.EnergySource, error) {
	return s.Energy.ListEnergySources(ctx)
}

func (s *Store) LatestGridStatus(ctx context.Context) (*models.GridStatus, error) {
	return s.Energy.LatestGridStatus(ctx)
}

func (s *Store) ListPowerConfigs(ctx context.Context) ([]models.BuildingPowerConfig, error) {
	return s.Configs.ListPowerConfigs(ctx)
}

func (s *Store) ListPatterns(ctx context.Context) ([]models.CancellationPattern, error) {
	return s.Patterns.ListPatterns(ctx)
}

// SaveTick commits readings in chunks of batchSize, one transaction each, then
// patterns, configs and actions together. A failed chunk is retried on its own;
// chunks already committed are not re-sent.
func (s *Store) SaveTick(ctx context.Context, batch *engine.TickBatch) error {
	// 1. readings
	for start := 0; start < len(batch.Readings); start += s.batchSize {
		end := start + s.batchSize
		if end > len(batch.Readings) {
			end = len(batch.Readings)
		}
		chunk := batch.Readings[start:end]
		label := fmt.Sprintf("readings[%d:%d]", start, end)
		if err := commitWithRetry(ctx, s.db, s.retry, s.logger, label, func(tx *sql.Tx) error {
			return s.Readings.insertBatchTx(ctx, tx, chunk)
		}); err != nil {
			return err
		}
	}

	if len(batch.Patterns) == 0 && len(batch.Configs) == 0 && len(batch.Actions) == 0 {
		return nil
	}

	// 2. learned state and audit trail
	return commitWithRetry(ctx, s.db, s.retry, s.logger, "state", func(tx *sql.Tx) error {
		for i := range batch.Patterns {
			if err := s.Patterns.upsertTx(ctx, tx, &batch.Patterns[i]); err != nil {
				return err
			}
		}
		for i := range batch.Configs {
			if err := s.Configs.upsertTx(ctx, tx, &batch.Configs[i]); err != nil {
				return err
			}
		}
		for i := range batch.Actions {
			if err := s.Actions.insertTx(ctx, tx, &batch.Actions[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
