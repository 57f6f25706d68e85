package astro

// Body names a celestial body or chart point.
type Body string

const (
	Sun     Body = "Sun"
	Moon    Body = "Moon"
	Mercury Body = "Mercury"
	Venus   Body = "Venus"
	Mars    Body = "Mars"
	Jupiter Body = "Jupiter"
	Saturn  Body = "Saturn"
	Rahu    Body = "Rahu"
	Ketu    Body = "Ketu"

	// Ascendant is the rising degree of a natal chart. It is a chart point,
	// never a transiting body.
	Ascendant Body = "Ascendant"
)

// Bodies lists every known transiting body in a stable order.
var Bodies = []Body{Sun, Moon, Mercury, Venus, Mars, Jupiter, Saturn, Rahu, Ketu}

// Known reports whether b is a recognised transiting body.
func (b Body) Known() bool {
	for _, k := range Bodies {
		if k == b {
			return true
		}
	}
	return false
}

// Slow reports whether b is one of the slow movers (Jupiter, Saturn and the nodes).
func (b Body) Slow() bool {
	switch b {
	case Jupiter, Saturn, Rahu, Ketu:
		return true
	}
	return false
}

// Fast reports whether b is one of the personal, fast-moving bodies.
func (b Body) Fast() bool {
	switch b {
	case Sun, Moon, Mercury, Venus, Mars:
		return true
	}
	return false
}
