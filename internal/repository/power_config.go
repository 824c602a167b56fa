package repository

import (
	"context"
	"database/sql"
	"fmt"

	"voltonic-power/internal/models"

	"go.uber.org/zap"
)

// PowerConfigRepository building_power_config, one row per building
type PowerConfigRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPowerConfigRepository creates the repository
func NewPowerConfigRepository(db *sql.DB, logger *zap.Logger) *PowerConfigRepository {
	return &PowerConfigRepository{
		db:     db,
		logger: logger,
	}
}

const powerConfigColumns = `
	building_id,
	solar_capacity_kw,
	current_solar_output_kw,
	grid_capacity_kw,
	demand_spike_threshold_kw,
	hybrid_mode_active,
	power_mode,
	last_source_switch,
	updated_at
`

// ListPowerConfigs all building configs
func (r *PowerConfigRepository) ListPowerConfigs(ctx context.Context) ([]models.BuildingPowerConfig, error) {
	query := `SELECT ` + powerConfigColumns + ` FROM building_power_config ORDER BY building_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query power configs: %w", err)
	}
	defer rows.Close()

	configs := []models.BuildingPowerConfig{}
	for rows.Next() {
		var cfg models.BuildingPowerConfig
		var mode sql.NullString
		var lastSwitch sql.NullTime
		if err := rows.Scan(
			&cfg.BuildingID,
			&cfg.SolarCapacityKW,
			&cfg.CurrentSolarOutputKW,
			&cfg.GridCapacityKW,
			&cfg.SpikeThresholdKW,
			&cfg.HybridModeActive,
			&mode,
			&lastSwitch,
			&cfg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan power config: %w", err)
		}
		if mode.Valid {
			cfg.Mode = models.PowerMode(mode.String)
		}
		if lastSwitch.Valid {
			cfg.LastSourceSwitch = &lastSwitch.Time
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate power configs: %w", err)
	}

	return configs, nil
}

// upsertTx inserts or replaces a building config inside tx
func (r *PowerConfigRepository) upsertTx(ctx context.Context, tx *sql.Tx, cfg *models.BuildingPowerConfig) error {
	query := `
		INSERT INTO building_power_config (` + powerConfigColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (building_id) DO UPDATE SET
			solar_capacity_kw = EXCLUDED.solar_capacity_kw,
			current_solar_output_kw = EXCLUDED.current_solar_output_kw,
			grid_capacity_kw = EXCLUDED.grid_capacity_kw,
			demand_spike_threshold_kw = EXCLUDED.demand_spike_threshold_kw,
			hybrid_mode_active = EXCLUDED.hybrid_mode_active,
			power_mode = EXCLUDED.power_mode,
			last_source_switch = EXCLUDED.last_source_switch,
			updated_at = EXCLUDED.updated_at
	`

	var lastSwitch interface{}
	if cfg.LastSourceSwitch != nil {
		lastSwitch = *cfg.LastSourceSwitch
	}
	_, err := tx.ExecContext(ctx, query,
		cfg.BuildingID,
		cfg.SolarCapacityKW,
		cfg.CurrentSolarOutputKW,
		cfg.GridCapacityKW,
		cfg.SpikeThresholdKW,
		cfg.HybridModeActive,
		string(cfg.Mode),
		lastSwitch,
		cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert power config for building %d: %w", cfg.BuildingID, err)
	}
	return nil
}
