package astro

import "math"

// AngleBetween returns the shortest separation between two ecliptic
// longitudes, in [0, 180]. It is symmetric and AngleBetween(x, x) == 0.
func AngleBetween(d1, d2 float64) float64 {
	diff := math.Mod(math.Abs(d1-d2), 360)
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}

// Normalize maps any finite longitude into [0, 360).
func Normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// -0 and values that round up to 360
	if deg >= 360 || deg == 0 {
		return 0
	}
	return deg
}

// ValidDegree reports whether deg is usable as a longitude.
func ValidDegree(deg float64) bool {
	return !math.IsNaN(deg) && !math.IsInf(deg, 0)
}
