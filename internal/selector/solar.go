package selector

// SolarAvailability fraction of nameplate solar capacity usable at hour.
// Full sun in [6,18), evening taper in [18,20), nothing otherwise. Hours wrap at 24.
func SolarAvailability(hour int) float64 {
	hour = ((hour % 24) + 24) % 24
	switch {
	case hour >= 6 && hour < 18:
		return 1.0
	case hour >= 18 && hour < 20:
		return 0.3
	default:
		return 0.0
	}
}
