package repository

import (
	"context"
	"database/sql"
	"fmt"

	"voltonic-power/internal/models"

	"go.uber.org/zap"
)

// PatternRepository cancellation_patterns, unique on (room_id, day_of_week, hour)
type PatternRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPatternRepository creates the repository
func NewPatternRepository(db *sql.DB, logger *zap.Logger) *PatternRepository {
	return &PatternRepository{
		db:     db,
		logger: logger,
	}
}

// ListPatterns whole pattern table
func (r *PatternRepository) ListPatterns(ctx context.Context) ([]models.CancellationPattern, error) {
	query := `
		SELECT
			room_id,
			day_of_week,
			hour,
			scheduled_count,
			occupied_count,
			cancellation_rate,
			auto_cutoff_enabled,
			last_updated
		FROM cancellation_patterns
		ORDER BY room_id, day_of_week, hour
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cancellation patterns: %w", err)
	}
	defer rows.Close()

	patterns := []models.CancellationPattern{}
	for rows.Next() {
		var p models.CancellationPattern
		if err := rows.Scan(
			&p.RoomID,
			&p.Weekday,
			&p.Hour,
			&p.ScheduledCount,
			&p.OccupiedCount,
			&p.CancellationRate,
			&p.AutoCutoffEnabled,
			&p.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cancellation pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cancellation patterns: %w", err)
	}

	return patterns, nil
}

// upsertTx writes absolute counters, so replaying the same row is harmless
func (r *PatternRepository) upsertTx(ctx context.Context, tx *sql.Tx, p *models.CancellationPattern) error {
	query := `
		INSERT INTO cancellation_patterns (
			room_id, day_of_week, hour,
			scheduled_count, occupied_count, cancellation_rate,
			auto_cutoff_enabled, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (room_id, day_of_week, hour) DO UPDATE SET
			scheduled_count = EXCLUDED.scheduled_count,
			occupied_count = EXCLUDED.occupied_count,
			cancellation_rate = EXCLUDED.cancellation_rate,
			auto_cutoff_enabled = cancellation_patterns.auto_cutoff_enabled OR EXCLUDED.auto_cutoff_enabled,
			last_updated = EXCLUDED.last_updated
	`

	_, err := tx.ExecContext(ctx, query,
		p.RoomID,
		p.Weekday,
		p.Hour,
		p.ScheduledCount,
		p.OccupiedCount,
		p.CancellationRate,
		p.AutoCutoffEnabled,
		p.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cancellation pattern room=%d day=%d hour=%d: %w", p.RoomID, p.Weekday, p.Hour, err)
	}
	return nil
}
