package repository

import (
	"context"
	"database/sql"
	"fmt"

	"voltonic-power/internal/models"

	"go.uber.org/zap"
)

// RoomRepository rooms and timetable lookups
type RoomRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRoomRepository creates the repository
func NewRoomRepository(db *sql.DB, logger *zap.Logger) *RoomRepository {
	return &RoomRepository{
		db:     db,
		logger: logger,
	}
}

// ListRooms all rooms with their building resolved through floors
func (r *RoomRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	query := `
		SELECT
			r.id,
			r.name,
			r.room_type,
			r.capacity,
			r.base_load_kw,
			r.floor_id,
			f.building_id
		FROM rooms r
		JOIN floors f ON f.id = r.floor_id
		ORDER BY f.building_id, r.id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	rooms := []models.Room{}
	for rows.Next() {
		var room models.Room
		var roomType string
		if err := rows.Scan(
			&room.ID,
			&room.Name,
			&roomType,
			&room.Capacity,
			&room.BaseLoadKW,
			&room.FloorID,
			&room.BuildingID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		room.Type = models.RoomType(roomType)
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rooms: %w", err)
	}

	return rooms, nil
}

// ListSchedules timetable entries for one weekday (0 = Monday)
func (r *RoomRepository) ListSchedules(ctx context.Context, weekday int) ([]models.ScheduleEntry, error) {
	query := `
		SELECT
			id,
			room_id,
			day_of_week,
			start_time::text,
			end_time::text
		FROM timetable
		WHERE day_of_week = $1
		ORDER BY room_id, start_time
	`

	rows, err := r.db.QueryContext(ctx, query, weekday)
	if err != nil {
		return nil, fmt.Errorf("failed to query timetable: %w", err)
	}
	defer rows.Close()

	entries := []models.ScheduleEntry{}
	for rows.Next() {
		var entry models.ScheduleEntry
		var start, end string
		if err := rows.Scan(&entry.ID, &entry.RoomID, &entry.Weekday, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan timetable entry: %w", err)
		}

		entry.StartTime, err = models.ParseClock(start)
		if err != nil {
			r.logger.Warn("Skipping timetable entry with bad start time",
				zap.Int64("schedule_id", entry.ID),
				zap.String("start_time", start),
			)
			continue
		}
		entry.EndTime, err = models.ParseClock(end)
		if err != nil {
			r.logger.Warn("Skipping timetable entry with bad end time",
				zap.Int64("schedule_id", entry.ID),
				zap.String("end_time", end),
			)
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate timetable: %w", err)
	}

	return entries, nil
}
