package models

import "time"

// PatternState cancellation bucket state
type PatternState string

const (
	PatternObserving  PatternState = "observing"
	PatternAutoCutoff PatternState = "auto_cutoff"
)

// PatternKey identifies a (room, weekday, hour) bucket
type PatternKey struct {
	RoomID  int64
	Weekday int
	Hour    int
}

// CancellationPattern learned cancellation statistics (cancellation_patterns table)
type CancellationPattern struct {
	RoomID            int64     `json:"room_id" db:"room_id"`
	Weekday           int       `json:"day_of_week" db:"day_of_week"`
	Hour              int       `json:"hour" db:"hour"`
	ScheduledCount    int       `json:"scheduled_count" db:"scheduled_count"`
	OccupiedCount     int       `json:"occupied_count" db:"occupied_count"`
	CancellationRate  float64   `json:"cancellation_rate" db:"cancellation_rate"`
	AutoCutoffEnabled bool      `json:"auto_cutoff_enabled" db:"auto_cutoff_enabled"`
	LastUpdated       time.Time `json:"last_updated" db:"last_updated"`
}

// Key bucket key
func (p *CancellationPattern) Key() PatternKey {
	return PatternKey{RoomID: p.RoomID, Weekday: p.Weekday, Hour: p.Hour}
}

// State observing until latched, auto_cutoff afterwards
func (p *CancellationPattern) State() PatternState {
	if p.AutoCutoffEnabled {
		return PatternAutoCutoff
	}
	return PatternObserving
}

// Record adds one observed outcome and latches auto cutoff once the thresholds hold.
// The latch is never cleared.
func (p *CancellationPattern) Record(occupied bool, at time.Time, threshold float64, minObservations int) {
	p.ScheduledCount++
	if occupied {
		p.OccupiedCount++
	}
	p.CancellationRate = 1 - float64(p.OccupiedCount)/float64(p.ScheduledCount)
	if !p.AutoCutoffEnabled && p.CancellationRate >= threshold && p.ScheduledCount >= minObservations {
		p.AutoCutoffEnabled = true
	}
	p.LastUpdated = at
}
