package learner

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"voltonic-power/internal/models"
)

// ErrInsufficientData too few observations to analyse a room
var ErrInsufficientData = errors.New("insufficient data for analysis")

// Cancellation decision methods
const (
	MethodLearned = "ml_prediction"
	MethodRandom  = "random"
)

// Options learner thresholds and fallback odds
type Options struct {
	Threshold          float64
	MinObservations    int
	AnalysisMinSamples int
	RiskyMinScheduled  int
	Probabilities      map[models.RoomType]float64
	DefaultProbability float64
}

// Decision outcome of SimulateCancellation
type Decision struct {
	Cancelled bool
	Method    string
	Rate      float64 // learned rate, or the base probability for the random method
}

// Analysis aggregated cancellation statistics for a room
type Analysis struct {
	RoomID                int64   `json:"room_id"`
	Weekday               *int    `json:"day_of_week,omitempty"`
	SampleCount           int     `json:"sample_count"`
	ScheduledCount        int     `json:"scheduled_count"`
	OccupiedCount         int     `json:"occupied_count"`
	CancellationRate      float64 `json:"cancellation_rate"`
	AutoCutoffRecommended bool    `json:"auto_cutoff_recommended"`
}

// Learner holds the cancellation pattern table.
// The tick pipeline is the only writer; readers take snapshots.
type Learner struct {
	mu       sync.RWMutex
	opts     Options
	rng      *rand.Rand
	patterns map[models.PatternKey]*models.CancellationPattern
	dirty    map[models.PatternKey]struct{}
}

// New creates an empty learner
func New(opts Options, rng *rand.Rand) *Learner {
	return &Learner{
		opts:     opts,
		rng:      rng,
		patterns: make(map[models.PatternKey]*models.CancellationPattern),
		dirty:    make(map[models.PatternKey]struct{}),
	}
}

// Load replaces the table with persisted patterns
func (l *Learner) Load(patterns []models.CancellationPattern) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.patterns = make(map[models.PatternKey]*models.CancellationPattern, len(patterns))
	l.dirty = make(map[models.PatternKey]struct{})
	for i := range patterns {
		p := patterns[i]
		l.patterns[p.Key()] = &p
	}
}

// ShouldForceCutoff reports whether the bucket has latched auto cutoff, plus its rate
func (l *Learner) ShouldForceCutoff(roomID int64, weekday, hour int) (bool, float64) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.patterns[models.PatternKey{RoomID: roomID, Weekday: weekday, Hour: hour}]
	if !ok {
		return false, 0
	}
	return p.AutoCutoffEnabled, p.CancellationRate
}

// RecordOutcome feeds one realized outcome into the bucket, creating it on first sight
func (l *Learner) RecordOutcome(roomID int64, weekday, hour int, occupied bool, at time.Time) models.CancellationPattern {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := models.PatternKey{RoomID: roomID, Weekday: weekday, Hour: hour}
	p, ok := l.patterns[key]
	if !ok {
		p = &models.CancellationPattern{RoomID: roomID, Weekday: weekday, Hour: hour}
		l.patterns[key] = p
	}
	p.Record(occupied, at, l.opts.Threshold, l.opts.MinObservations)
	l.dirty[key] = struct{}{}
	return *p
}

// SimulateCancellation decides whether a scheduled slot is skipped this tick.
// A latched bucket always cancels; otherwise the room type's base probability is drawn.
func (l *Learner) SimulateCancellation(roomType models.RoomType, roomID int64, weekday, hour int) Decision {
	if cutoff, rate := l.ShouldForceCutoff(roomID, weekday, hour); cutoff {
		return Decision{Cancelled: true, Method: MethodLearned, Rate: rate}
	}

	prob, ok := l.opts.Probabilities[roomType]
	if !ok {
		prob = l.opts.DefaultProbability
	}
	return Decision{Cancelled: l.rng.Float64() < prob, Method: MethodRandom, Rate: prob}
}

// Analyze aggregates a room's buckets, optionally for one weekday.
// Below the minimum sample count it returns the partial analysis with ErrInsufficientData.
func (l *Learner) Analyze(roomID int64, weekday *int) (Analysis, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a := Analysis{RoomID: roomID, Weekday: weekday}
	for key, p := range l.patterns {
		if key.RoomID != roomID {
			continue
		}
		if weekday != nil && key.Weekday != *weekday {
			continue
		}
		a.ScheduledCount += p.ScheduledCount
		a.OccupiedCount += p.OccupiedCount
	}
	a.SampleCount = a.ScheduledCount

	if a.SampleCount < l.opts.AnalysisMinSamples {
		return a, ErrInsufficientData
	}

	rate := 1 - float64(a.OccupiedCount)/float64(a.ScheduledCount)
	a.CancellationRate = models.Round(rate, 3)
	a.AutoCutoffRecommended = rate >= l.opts.Threshold
	return a, nil
}

// RiskySchedules buckets at or above minRate with enough observations, highest rate first
func (l *Learner) RiskySchedules(minRate float64) []models.CancellationPattern {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.CancellationPattern
	for _, p := range l.patterns {
		if p.CancellationRate >= minRate && p.ScheduledCount >= l.opts.RiskyMinScheduled {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CancellationRate != out[j].CancellationRate {
			return out[i].CancellationRate > out[j].CancellationRate
		}
		return lessKey(out[i].Key(), out[j].Key())
	})
	return out
}

// MarkDirty queues a bucket for the next drain again, e.g. after a failed commit
func (l *Learner) MarkDirty(key models.PatternKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.patterns[key]; ok {
		l.dirty[key] = struct{}{}
	}
}

// DrainDirty returns buckets changed since the last drain, in key order
func (l *Learner) DrainDirty() []models.CancellationPattern {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.CancellationPattern, 0, len(l.dirty))
	for key := range l.dirty {
		out = append(out, *l.patterns[key])
	}
	l.dirty = make(map[models.PatternKey]struct{})
	sortPatterns(out)
	return out
}

// Snapshot copy of the whole table, in key order
func (l *Learner) Snapshot() []models.CancellationPattern {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.CancellationPattern, 0, len(l.patterns))
	for _, p := range l.patterns {
		out = append(out, *p)
	}
	sortPatterns(out)
	return out
}

func sortPatterns(ps []models.CancellationPattern) {
	sort.Slice(ps, func(i, j int) bool { return lessKey(ps[i].Key(), ps[j].Key()) })
}

func lessKey(a, b models.PatternKey) bool {
	if a.RoomID != b.RoomID {
		return a.RoomID < b.RoomID
	}
	if a.Weekday != b.Weekday {
		return a.Weekday < b.Weekday
	}
	return a.Hour < b.Hour
}
