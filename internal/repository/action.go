package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"voltonic-power/internal/models"

	"go.uber.org/zap"
)

// ActionRepository autonomous_actions audit trail (append only)
type ActionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewActionRepository creates the repository
func NewActionRepository(db *sql.DB, logger *zap.Logger) *ActionRepository {
	return &ActionRepository{
		db:     db,
		logger: logger,
	}
}

// ActionFilters audit trail query filters
type ActionFilters struct {
	ActionTypes []models.ActionKind
	StartTime   *time.Time // timestamp >= StartTime
	EndTime     *time.Time // timestamp <= EndTime
	RoomID      *int64
	BuildingID  *int64
}

// insertTx appends one record inside tx; the id makes a replayed insert a no-op
func (r *ActionRepository) insertTx(ctx context.Context, tx *sql.Tx, a *models.AutonomousAction) error {
	query := `
		INSERT INTO autonomous_actions (
			id, timestamp, action_type, room_id, building_id, reason,
			energy_saved_kwh, previous_state, new_state, is_optimization, confidence_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	var roomID, buildingID, confidence interface{}
	if a.RoomID != nil {
		roomID = *a.RoomID
	}
	if a.BuildingID != nil {
		buildingID = *a.BuildingID
	}
	if a.Confidence != nil {
		confidence = *a.Confidence
	}

	_, err := tx.ExecContext(ctx, query,
		a.ID,
		a.Timestamp,
		string(a.ActionType),
		roomID,
		buildingID,
		a.Reason,
		a.EnergySavedKWh,
		string(jsonOrEmpty(a.PreviousState)),
		string(jsonOrEmpty(a.NewState)),
		a.IsOptimization,
		confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to insert autonomous action %s: %w", a.ID, err)
	}
	return nil
}

// buildWhereClause WHERE parts for ListActions and CountActions
func (r *ActionRepository) buildWhereClause(filters ActionFilters, args *[]interface{}, argN *int) []string {
	where := []string{}

	if len(filters.ActionTypes) > 0 {
		placeholders := make([]string, len(filters.ActionTypes))
		for i := range filters.ActionTypes {
			placeholders[i] = fmt.Sprintf("$%d", *argN)
			*args = append(*args, string(filters.ActionTypes[i]))
			*argN++
		}
		where = append(where, fmt.Sprintf("action_type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("timestamp >= $%d", *argN))
		*args = append(*args, *filters.StartTime)
		*argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("timestamp <= $%d", *argN))
		*args = append(*args, *filters.EndTime)
		*argN++
	}
	if filters.RoomID != nil {
		where = append(where, fmt.Sprintf("room_id = $%d", *argN))
		*args = append(*args, *filters.RoomID)
		*argN++
	}
	if filters.BuildingID != nil {
		where = append(where, fmt.Sprintf("building_id = $%d", *argN))
		*args = append(*args, *filters.BuildingID)
		*argN++
	}

	return where
}

// ListActions filtered audit trail, newest first, with the total match count
func (r *ActionRepository) ListActions(ctx context.Context, filters ActionFilters, page, size int) ([]models.AutonomousAction, int, error) {
	args := []interface{}{}
	argN := 1
	where := r.buildWhereClause(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	queryCount := fmt.Sprintf(`SELECT COUNT(*) FROM autonomous_actions %s`, whereClause)
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count autonomous actions: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`
		SELECT
			id,
			timestamp,
			action_type,
			room_id,
			building_id,
			reason,
			energy_saved_kwh,
			previous_state,
			new_state,
			is_optimization,
			confidence_score
		FROM autonomous_actions
		%s
		ORDER BY timestamp DESC, id
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)+1, len(args)+2)
	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query autonomous actions: %w", err)
	}
	defer rows.Close()

	actions := []models.AutonomousAction{}
	for rows.Next() {
		var a models.AutonomousAction
		var actionType string
		var roomID, buildingID sql.NullInt64
		var confidence sql.NullFloat64
		var reason sql.NullString
		var prev, next []byte

		if err := rows.Scan(
			&a.ID,
			&a.Timestamp,
			&actionType,
			&roomID,
			&buildingID,
			&reason,
			&a.EnergySavedKWh,
			&prev,
			&next,
			&a.IsOptimization,
			&confidence,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan autonomous action: %w", err)
		}

		a.ActionType = models.ActionKind(actionType)
		if roomID.Valid {
			a.RoomID = &roomID.Int64
		}
		if buildingID.Valid {
			a.BuildingID = &buildingID.Int64
		}
		if confidence.Valid {
			a.Confidence = &confidence.Float64
		}
		if reason.Valid {
			a.Reason = reason.String
		}
		a.PreviousState = json.RawMessage(jsonOrEmpty(prev))
		a.NewState = json.RawMessage(jsonOrEmpty(next))

		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate autonomous actions: %w", err)
	}

	return actions, total, nil
}

// CutoffAccuracy how often a POWER_CUTOFF since the given time was followed by an empty room
type CutoffAccuracy struct {
	TotalPredictions   int       `json:"total_predictions"`
	CorrectPredictions int       `json:"correct_predictions"`
	AccuracyPercent    *float64  `json:"accuracy"` // nil without cutoffs
	Since              time.Time `json:"since"`
}

// GetCutoffAccuracy compares each cutoff with the room's next reading
func (r *ActionRepository) GetCutoffAccuracy(ctx context.Context, since time.Time) (*CutoffAccuracy, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE nxt.occupancy_status = FALSE)
		FROM autonomous_actions a
		LEFT JOIN LATERAL (
			SELECT er.occupancy_status
			FROM energy_readings er
			WHERE er.room_id = a.room_id
			  AND er.timestamp > a.timestamp
			ORDER BY er.timestamp
			LIMIT 1
		) nxt ON TRUE
		WHERE a.action_type = $1
		  AND a.timestamp >= $2
	`

	res := &CutoffAccuracy{Since: since}
	err := r.db.QueryRowContext(ctx, query, string(models.ActionPowerCutoff), since).
		Scan(&res.TotalPredictions, &res.CorrectPredictions)
	if err != nil {
		return nil, fmt.Errorf("failed to compute cutoff accuracy: %w", err)
	}

	if res.TotalPredictions > 0 {
		pct := models.Round(float64(res.CorrectPredictions)/float64(res.TotalPredictions)*100, 1)
		res.AccuracyPercent = &pct
	}
	return res, nil
}

func jsonOrEmpty(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}
