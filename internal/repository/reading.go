package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"voltonic-power/internal/models"

	"go.uber.org/zap"
)

const readingColumnCount = 11

// ReadingRepository energy_readings
type ReadingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingRepository creates the repository
func NewReadingRepository(db *sql.DB, logger *zap.Logger) *ReadingRepository {
	return &ReadingRepository{
		db:     db,
		logger: logger,
	}
}

// insertBatchTx appends readings with one multi-row INSERT
func (r *ReadingRepository) insertBatchTx(ctx context.Context, tx *sql.Tx, readings []models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	values := make([]string, 0, len(readings))
	args := make([]interface{}, 0, len(readings)*readingColumnCount)
	for i, rd := range readings {
		base := i * readingColumnCount
		placeholders := make([]string, readingColumnCount)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")

		var sourceID interface{}
		if rd.SourceID != nil {
			sourceID = *rd.SourceID
		}
		args = append(args,
			rd.RoomID,
			rd.Timestamp,
			rd.Occupied,
			rd.TemperatureC,
			rd.BaseLoadKW,
			rd.ClimateLoadKW,
			rd.LightingLoadKW,
			rd.EquipmentLoadKW,
			rd.TotalLoadKW,
			sourceID,
			rd.Optimized,
		)
	}

	query := `
		INSERT INTO energy_readings (
			room_id, timestamp, occupancy_status, temperature,
			base_load_kw, ac_load_kw, lighting_load_kw, equipment_load_kw,
			total_load_kw, source_id, is_optimized
		) VALUES ` + strings.Join(values, ", ")

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %d readings: %w", len(readings), err)
	}
	return nil
}

// BuildingLoad aggregate load of a building at the latest reading timestamp
type BuildingLoad struct {
	BuildingID  int64     `json:"building_id"`
	Timestamp   time.Time `json:"timestamp"`
	TotalLoadKW float64   `json:"total_load_kw"`
}

// LatestBuildingLoads per-building aggregate of the most recent tick
func (r *ReadingRepository) LatestBuildingLoads(ctx context.Context) ([]BuildingLoad, error) {
	query := `
		SELECT f.building_id, er.timestamp, SUM(er.total_load_kw)
		FROM energy_readings er
		JOIN rooms r ON r.id = er.room_id
		JOIN floors f ON f.id = r.floor_id
		WHERE er.timestamp = (SELECT MAX(timestamp) FROM energy_readings)
		GROUP BY f.building_id, er.timestamp
		ORDER BY f.building_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query building loads: %w", err)
	}
	defer rows.Close()

	loads := []BuildingLoad{}
	for rows.Next() {
		var l BuildingLoad
		if err := rows.Scan(&l.BuildingID, &l.Timestamp, &l.TotalLoadKW); err != nil {
			return nil, fmt.Errorf("failed to scan building load: %w", err)
		}
		loads = append(loads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate building loads: %w", err)
	}
	return loads, nil
}

// RecentBuildingLoads per-tick aggregates of one building, oldest first
func (r *ReadingRepository) RecentBuildingLoads(ctx context.Context, buildingID int64, limit int) ([]BuildingLoad, error) {
	if limit <= 0 {
		limit = 30
	}

	query := `
		SELECT building_id, timestamp, total FROM (
			SELECT f.building_id, er.timestamp, SUM(er.total_load_kw) AS total
			FROM energy_readings er
			JOIN rooms r ON r.id = er.room_id
			JOIN floors f ON f.id = r.floor_id
			WHERE f.building_id = $1
			GROUP BY f.building_id, er.timestamp
			ORDER BY er.timestamp DESC
			LIMIT $2
		) recent
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, query, buildingID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent loads for building %d: %w", buildingID, err)
	}
	defer rows.Close()

	loads := []BuildingLoad{}
	for rows.Next() {
		var l BuildingLoad
		if err := rows.Scan(&l.BuildingID, &l.Timestamp, &l.TotalLoadKW); err != nil {
			return nil, fmt.Errorf("failed to scan building load: %w", err)
		}
		loads = append(loads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate building loads: %w", err)
	}
	return loads, nil
}
