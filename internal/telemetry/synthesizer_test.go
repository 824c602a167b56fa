package telemetry

import (
	"math/rand"
	"testing"
	"time"

	"voltonic-power/internal/models"

	"github.com/stretchr/testify/assert"
)

var testProfiles = map[models.RoomType]models.LoadProfile{
	models.RoomTypeClassroom:  {EquipmentMin: 0.2, EquipmentMax: 0.5, EquipmentIdle: 0.1},
	models.RoomTypeSmartClass: {EquipmentMin: 3.0, EquipmentMax: 4.5, EquipmentIdle: 0.5},
	models.RoomTypeStaff:      {EquipmentMin: 0.3, EquipmentMax: 0.7, EquipmentIdle: 0.3},
	"test_bench":              {EquipmentMin: 9.0, EquipmentMax: 9.0, EquipmentIdle: 1.0},
}

func newTestSynthesizer(seed int64) *Synthesizer {
	return NewSynthesizer(rand.New(rand.NewSource(seed)), testProfiles, models.RoomTypeStaff)
}

func TestSynthesize_ScheduledHotRoom(t *testing.T) {
	s := newTestSynthesizer(1)
	room := models.Room{ID: 7, BuildingID: 2, Type: models.RoomTypeSmartClass, BaseLoadKW: 1.0}
	at := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		r := s.Synthesize(room, true, 31.0, false, at)
		assert.True(t, r.Occupied)
		assert.Equal(t, int64(2), r.BuildingID)
		assert.GreaterOrEqual(t, r.EquipmentLoadKW, 3.0)
		assert.LessOrEqual(t, r.EquipmentLoadKW, 4.5)
		assert.GreaterOrEqual(t, r.ClimateLoadKW, 1.5)
		assert.LessOrEqual(t, r.ClimateLoadKW, 2.0)
		assert.GreaterOrEqual(t, r.LightingLoadKW, 0.3)
		assert.LessOrEqual(t, r.LightingLoadKW, 0.5)
		assert.Equal(t, models.Round(r.BaseLoadKW+r.ClimateLoadKW+r.LightingLoadKW+r.EquipmentLoadKW, 2), r.TotalLoadKW)
	}
}

func TestSynthesize_CancelledRoomIsIdle(t *testing.T) {
	s := newTestSynthesizer(2)
	room := models.Room{ID: 1, Type: models.RoomTypeClassroom, BaseLoadKW: 0.5}

	r := s.Synthesize(room, true, 35.0, true, time.Now())
	assert.False(t, r.Occupied)
	assert.Equal(t, 0.1, r.EquipmentLoadKW)
	assert.Equal(t, 0.2, r.ClimateLoadKW)
	assert.Equal(t, 0.05, r.LightingLoadKW)
	assert.Equal(t, 0.85, r.TotalLoadKW)
}

func TestSynthesize_CoolRoomKeepsClimateIdle(t *testing.T) {
	s := newTestSynthesizer(3)
	room := models.Room{ID: 1, Type: models.RoomTypeClassroom}

	r := s.Synthesize(room, true, 29.0, false, time.Now())
	assert.True(t, r.Occupied)
	assert.Equal(t, 0.2, r.ClimateLoadKW)
}

func TestSynthesize_UnknownTypeUsesFallbackProfile(t *testing.T) {
	s := newTestSynthesizer(4)
	room := models.Room{ID: 1, Type: "greenhouse"}

	r := s.Synthesize(room, true, 20.0, true, time.Now())
	assert.Equal(t, 0.3, r.EquipmentLoadKW)
}

func TestSynthesize_SyntheticRoomType(t *testing.T) {
	s := newTestSynthesizer(5)
	room := models.Room{ID: 1, Type: "test_bench"}

	r := s.Synthesize(room, true, 20.0, false, time.Now())
	assert.Equal(t, 9.0, r.EquipmentLoadKW)
}

func TestSynthesize_UnscheduledUseIsRare(t *testing.T) {
	s := newTestSynthesizer(6)
	room := models.Room{ID: 1, Type: models.RoomTypeClassroom}

	occupied := 0
	const n = 5000
	for i := 0; i < n; i++ {
		if s.Synthesize(room, false, 25.0, false, time.Now()).Occupied {
			occupied++
		}
	}
	assert.InDelta(t, 0.1, float64(occupied)/n, 0.02)
}

func TestSynthesize_DeterministicForSeed(t *testing.T) {
	room := models.Room{ID: 1, Type: models.RoomTypeSmartClass, BaseLoadKW: 0.8}
	at := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	a, b := newTestSynthesizer(42), newTestSynthesizer(42)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Synthesize(room, i%2 == 0, 30.0, false, at), b.Synthesize(room, i%2 == 0, 30.0, false, at))
	}
}

func TestAmbientTemperature_Range(t *testing.T) {
	s := newTestSynthesizer(7)
	for i := 0; i < 200; i++ {
		temp := s.AmbientTemperature()
		assert.GreaterOrEqual(t, temp, 24.0)
		assert.LessOrEqual(t, temp, 36.0)
		assert.Equal(t, models.Round(temp, 1), temp)
	}
}
