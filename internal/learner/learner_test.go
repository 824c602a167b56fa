package learner

import (
	"math/rand"
	"testing"
	"time"

	"voltonic-power/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{
		Threshold:          0.5,
		MinObservations:    7,
		AnalysisMinSamples: 10,
		RiskyMinScheduled:  5,
		Probabilities: map[models.RoomType]float64{
			models.RoomTypeClassroom: 0.25,
			models.RoomTypeLab:       0.10,
			"always_skipped":         1.0,
			"never_skipped":          0.0,
		},
		DefaultProbability: 0.10,
	}
}

func newTestLearner(seed int64) *Learner {
	return New(testOptions(), rand.New(rand.NewSource(seed)))
}

var at = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func record(l *Learner, roomID int64, weekday, hour int, outcomes ...bool) {
	for _, o := range outcomes {
		l.RecordOutcome(roomID, weekday, hour, o, at)
	}
}

func TestRecordOutcome_LatchesAfterSevenObservations(t *testing.T) {
	l := newTestLearner(1)

	record(l, 1, 2, 10, true, false, true, false, true, false, false)

	cutoff, rate := l.ShouldForceCutoff(1, 2, 10)
	assert.True(t, cutoff)
	assert.InDelta(t, 0.571, rate, 0.001)
}

func TestRecordOutcome_SixObservationsDoNotLatch(t *testing.T) {
	l := newTestLearner(1)

	// rate 0.5 but only six observations
	record(l, 1, 2, 10, true, false, true, false, true, false)

	cutoff, rate := l.ShouldForceCutoff(1, 2, 10)
	assert.False(t, cutoff)
	assert.InDelta(t, 0.5, rate, 1e-9)
}

func TestShouldForceCutoff_UnknownBucket(t *testing.T) {
	l := newTestLearner(1)
	cutoff, rate := l.ShouldForceCutoff(99, 0, 9)
	assert.False(t, cutoff)
	assert.Zero(t, rate)
}

func TestSimulateCancellation_LearnedCutoffWins(t *testing.T) {
	l := newTestLearner(1)
	record(l, 5, 1, 14, false, false, false, false, false, false, false)

	d := l.SimulateCancellation("never_skipped", 5, 1, 14)
	assert.True(t, d.Cancelled)
	assert.Equal(t, MethodLearned, d.Method)
	assert.Equal(t, 1.0, d.Rate)
}

func TestSimulateCancellation_FallsBackToRoomTypeOdds(t *testing.T) {
	l := newTestLearner(1)

	d := l.SimulateCancellation("always_skipped", 1, 0, 9)
	assert.True(t, d.Cancelled)
	assert.Equal(t, MethodRandom, d.Method)

	d = l.SimulateCancellation("never_skipped", 1, 0, 9)
	assert.False(t, d.Cancelled)

	d = l.SimulateCancellation("unknown", 1, 0, 9)
	assert.Equal(t, 0.10, d.Rate)
}

func TestSimulateCancellation_ClassroomRate(t *testing.T) {
	l := newTestLearner(9)
	cancelled := 0
	const n = 4000
	for i := 0; i < n; i++ {
		if l.SimulateCancellation(models.RoomTypeClassroom, 1, 0, 9).Cancelled {
			cancelled++
		}
	}
	assert.InDelta(t, 0.25, float64(cancelled)/n, 0.03)
}

func TestAnalyze_InsufficientData(t *testing.T) {
	l := newTestLearner(1)
	record(l, 3, 0, 9, false, false, false)
	record(l, 3, 1, 9, false, false, false, false, false)

	a, err := l.Analyze(3, nil)
	require.ErrorIs(t, err, ErrInsufficientData)
	assert.Equal(t, 8, a.SampleCount)
	assert.Zero(t, a.CancellationRate)
}

func TestAnalyze_AggregatesBuckets(t *testing.T) {
	l := newTestLearner(1)
	record(l, 3, 0, 9, true, false, false, false, true, false)
	record(l, 3, 0, 11, true, true, true, false)
	record(l, 3, 4, 9, true, true, true, true, true, true, true, true, true, true)
	record(l, 4, 0, 9, false, false, false, false, false, false, false, false, false, false)

	monday := 0
	a, err := l.Analyze(3, &monday)
	require.NoError(t, err)
	assert.Equal(t, 10, a.ScheduledCount)
	assert.Equal(t, 5, a.OccupiedCount)
	assert.Equal(t, 0.5, a.CancellationRate)
	assert.True(t, a.AutoCutoffRecommended)

	a, err = l.Analyze(3, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, a.ScheduledCount)
	assert.Equal(t, 0.25, a.CancellationRate)
	assert.False(t, a.AutoCutoffRecommended)
}

func TestRiskySchedules(t *testing.T) {
	l := newTestLearner(1)
	record(l, 1, 0, 9, false, false, false, false, true)         // 0.8, 5 obs
	record(l, 2, 0, 9, false, false, false, false, false, false) // 1.0, 6 obs
	record(l, 3, 0, 9, false, false, false, false)               // 1.0, too few
	record(l, 4, 0, 9, false, true, true, true, true)            // 0.2

	risky := l.RiskySchedules(0.5)
	require.Len(t, risky, 2)
	assert.Equal(t, int64(2), risky[0].RoomID)
	assert.Equal(t, int64(1), risky[1].RoomID)
}

func TestDrainDirty(t *testing.T) {
	l := newTestLearner(1)
	l.Load([]models.CancellationPattern{
		{RoomID: 1, Weekday: 0, Hour: 9, ScheduledCount: 3, OccupiedCount: 3},
		{RoomID: 2, Weekday: 0, Hour: 9, ScheduledCount: 1},
	})
	assert.Empty(t, l.DrainDirty())

	l.RecordOutcome(2, 0, 9, true, at)
	l.RecordOutcome(1, 0, 9, false, at)

	dirty := l.DrainDirty()
	require.Len(t, dirty, 2)
	assert.Equal(t, int64(1), dirty[0].RoomID)
	assert.Equal(t, 4, dirty[0].ScheduledCount)
	assert.Equal(t, 2, dirty[1].ScheduledCount)
	assert.Equal(t, 1, dirty[1].OccupiedCount)
	assert.Empty(t, l.DrainDirty())

	assert.Len(t, l.Snapshot(), 2)
}

func TestClosedLoop_DeterministicForSeed(t *testing.T) {
	run := func() []models.CancellationPattern {
		l := newTestLearner(2024)
		for day := 0; day < 30; day++ {
			d := l.SimulateCancellation(models.RoomTypeClassroom, 1, day%7, 10)
			l.RecordOutcome(1, day%7, 10, !d.Cancelled, at)
		}
		return l.Snapshot()
	}
	assert.Equal(t, run(), run())
}
