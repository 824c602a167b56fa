package models

import (
	"fmt"
	"time"
)

// RoomType room category, drives load profiles and cancellation odds
type RoomType string

const (
	RoomTypeClassroom  RoomType = "classroom"
	RoomTypeSmartClass RoomType = "Smart_Class"
	RoomTypeLab        RoomType = "lab"
	RoomTypeStaff      RoomType = "staff"
)

// Room campus room (rooms table joined through floors)
type Room struct {
	ID         int64    `json:"id" db:"id"`
	Name       string   `json:"name" db:"name"`
	Type       RoomType `json:"room_type" db:"room_type"`
	Capacity   int      `json:"capacity" db:"capacity"`
	BaseLoadKW float64  `json:"base_load_kw" db:"base_load_kw"`
	FloorID    int64    `json:"floor_id" db:"floor_id"`
	BuildingID int64    `json:"building_id" db:"building_id"` // resolved through floors.building_id
}

// LoadProfile equipment draw range for one room type (kW)
type LoadProfile struct {
	EquipmentMin  float64
	EquipmentMax  float64
	EquipmentIdle float64
}

// ClockTime seconds since midnight
type ClockTime int

// ParseClock parses "15:04" or "15:04:05"
func ParseClock(s string) (ClockTime, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockTime(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid clock time %q", s)
}

// ClockOf time-of-day part of t
func ClockOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(c)/3600, int(c)%3600/60, int(c)%60)
}

// ScheduleEntry one timetable slot
type ScheduleEntry struct {
	ID        int64     `json:"id" db:"id"`
	RoomID    int64     `json:"room_id" db:"room_id"`
	Weekday   int       `json:"day_of_week" db:"day_of_week"` // 0 = Monday
	StartTime ClockTime `json:"start_time" db:"start_time"`
	EndTime   ClockTime `json:"end_time" db:"end_time"`
}

// Covers reports whether the slot includes t; both ends are inclusive
func (s ScheduleEntry) Covers(t time.Time) bool {
	if Weekday(t) != s.Weekday {
		return false
	}
	c := ClockOf(t)
	return c >= s.StartTime && c <= s.EndTime
}

// Weekday Monday-based weekday (Monday = 0 ... Sunday = 6)
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
