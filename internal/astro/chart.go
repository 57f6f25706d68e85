package astro

import "time"

// Position is a body's ecliptic longitude.
type Position struct {
	Degree float64 `json:"degree" yaml:"degree"`
}

// Snapshot holds transiting positions for one calendar date. Bodies may be
// missing when the provider had no data for them.
type Snapshot struct {
	Date    time.Time         `json:"date"`
	Planets map[Body]Position `json:"planets"`
}

// Degree returns the longitude of b and whether it is present and usable.
func (s *Snapshot) Degree(b Body) (float64, bool) {
	if s == nil {
		return 0, false
	}
	p, ok := s.Planets[b]
	if !ok || !ValidDegree(p.Degree) {
		return 0, false
	}
	return p.Degree, true
}

// NatalChart holds a user's birth positions.
type NatalChart struct {
	UserID          string            `json:"user_id"`
	Planets         map[Body]Position `json:"planets"`
	AscendantDegree float64           `json:"ascendant_degree"`
}

// Degree returns the natal longitude of b and whether it is present and usable.
func (c *NatalChart) Degree(b Body) (float64, bool) {
	if c == nil {
		return 0, false
	}
	if b == Ascendant {
		return c.AscendantDegree, ValidDegree(c.AscendantDegree)
	}
	p, ok := c.Planets[b]
	if !ok || !ValidDegree(p.Degree) {
		return 0, false
	}
	return p.Degree, true
}

// Usable reports whether the chart has enough structure to scan against.
func (c *NatalChart) Usable() bool {
	return c != nil && c.Planets != nil && ValidDegree(c.AscendantDegree)
}
