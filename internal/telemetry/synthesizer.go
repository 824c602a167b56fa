package telemetry

import (
	"math/rand"
	"time"

	"voltonic-power/internal/models"
)

const (
	// HeatThresholdC climate control ramps up above this temperature when occupied
	HeatThresholdC = 29.0

	unscheduledUseChance = 0.1

	climateIdleKW  = 0.2
	lightingIdleKW = 0.05

	minAmbientC = 24.0
	maxAmbientC = 36.0
)

var (
	climateActiveKW  = [2]float64{1.5, 2.0}
	lightingActiveKW = [2]float64{0.3, 0.5}
)

// Synthesizer produces plausible per-room readings from an injected random source
type Synthesizer struct {
	rng      *rand.Rand
	profiles map[models.RoomType]models.LoadProfile
	fallback models.LoadProfile
}

// NewSynthesizer profiles is the room type table; fallbackType names the profile used for unknown types
func NewSynthesizer(rng *rand.Rand, profiles map[models.RoomType]models.LoadProfile, fallbackType models.RoomType) *Synthesizer {
	return &Synthesizer{
		rng:      rng,
		profiles: profiles,
		fallback: profiles[fallbackType],
	}
}

// Synthesize builds one reading. Scheduled and not cancelled means occupied,
// cancelled means empty, otherwise a small unscheduled-use chance applies.
func (s *Synthesizer) Synthesize(room models.Room, scheduled bool, temperatureC float64, cancelled bool, at time.Time) models.Reading {
	var occupied bool
	switch {
	case cancelled:
	case scheduled:
		occupied = true
	default:
		occupied = s.rng.Float64() < unscheduledUseChance
	}

	profile := s.profile(room.Type)

	equipment := profile.EquipmentIdle
	if occupied {
		equipment = s.uniform(profile.EquipmentMin, profile.EquipmentMax)
	}

	climate := climateIdleKW
	if occupied && temperatureC > HeatThresholdC {
		climate = s.uniform(climateActiveKW[0], climateActiveKW[1])
	}

	lighting := lightingIdleKW
	if occupied {
		lighting = s.uniform(lightingActiveKW[0], lightingActiveKW[1])
	}

	equipment = models.Round(equipment, 2)
	climate = models.Round(climate, 2)
	lighting = models.Round(lighting, 2)

	return models.Reading{
		RoomID:          room.ID,
		BuildingID:      room.BuildingID,
		Timestamp:       at,
		Occupied:        occupied,
		TemperatureC:    temperatureC,
		BaseLoadKW:      room.BaseLoadKW,
		ClimateLoadKW:   climate,
		LightingLoadKW:  lighting,
		EquipmentLoadKW: equipment,
		TotalLoadKW:     models.Round(room.BaseLoadKW+climate+lighting+equipment, 2),
	}
}

// AmbientTemperature draws the campus temperature for a tick, one decimal place
func (s *Synthesizer) AmbientTemperature() float64 {
	return models.Round(s.uniform(minAmbientC, maxAmbientC), 1)
}

func (s *Synthesizer) profile(t models.RoomType) models.LoadProfile {
	if p, ok := s.profiles[t]; ok {
		return p
	}
	return s.fallback
}

func (s *Synthesizer) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}
