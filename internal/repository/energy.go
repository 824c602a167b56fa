package repository

import (
	"context"
	"database/sql"
	"fmt"

	"voltonic-power/internal/models"

	"go.uber.org/zap"
)

// EnergyRepository energy sources and grid status
type EnergyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEnergyRepository creates the repository
func NewEnergyRepository(db *sql.DB, logger *zap.Logger) *EnergyRepository {
	return &EnergyRepository{
		db:     db,
		logger: logger,
	}
}

// ListEnergySources all configured sources by priority
func (r *EnergyRepository) ListEnergySources(ctx context.Context) ([]models.EnergySource, error) {
	query := `
		SELECT id, name, cost_per_kwh, priority, is_available
		FROM energy_sources
		ORDER BY priority, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query energy sources: %w", err)
	}
	defer rows.Close()

	sources := []models.EnergySource{}
	for rows.Next() {
		var src models.EnergySource
		var name string
		if err := rows.Scan(&src.ID, &name, &src.CostPerKWh, &src.Priority, &src.Available); err != nil {
			return nil, fmt.Errorf("failed to scan energy source: %w", err)
		}
		src.Name = models.SourceName(name)
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate energy sources: %w", err)
	}

	return sources, nil
}

// LatestGridStatus most recent grid status, nil when none was ever recorded
func (r *EnergyRepository) LatestGridStatus(ctx context.Context) (*models.GridStatus, error) {
	query := `
		SELECT id, timestamp, grid_available, reason
		FROM grid_status
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var status models.GridStatus
	var reason sql.NullString
	err := r.db.QueryRowContext(ctx, query).Scan(&status.ID, &status.Timestamp, &status.GridAvailable, &reason)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get grid status: %w", err)
	}
	if reason.Valid {
		status.Reason = reason.String
	}

	return &status, nil
}

// InsertGridStatus records a grid status change
func (r *EnergyRepository) InsertGridStatus(ctx context.Context, status *models.GridStatus) error {
	if status == nil {
		return fmt.Errorf("status is required")
	}

	query := `
		INSERT INTO grid_status (timestamp, grid_available, reason)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var reason interface{}
	if status.Reason != "" {
		reason = status.Reason
	}
	if err := r.db.QueryRowContext(ctx, query, status.Timestamp, status.GridAvailable, reason).Scan(&status.ID); err != nil {
		return fmt.Errorf("failed to insert grid status: %w", err)
	}

	return nil
}
