package astro

import (
	"fmt"
	"strings"
)

// Aspect is a named angular relationship between two longitudes.
type Aspect string

const (
	Conjunction Aspect = "conjunction"
	Opposition  Aspect = "opposition"
	Square      Aspect = "square"
	Trine       Aspect = "trine"
	Sextile     Aspect = "sextile"

	// minor aspects, only scanned on request
	SemiSextile Aspect = "semi_sextile"
	Quincunx    Aspect = "quincunx"
)

// MajorAspects are scanned on every detection run, in evaluation order.
var MajorAspects = []Aspect{Conjunction, Opposition, Square, Trine, Sextile}

// MinorAspects are added when minor aspects are requested.
var MinorAspects = []Aspect{SemiSextile, Quincunx}

// Known reports whether a is one of the major or minor aspects.
func (a Aspect) Known() bool {
	switch a {
	case Conjunction, Opposition, Square, Trine, Sextile, SemiSextile, Quincunx:
		return true
	}
	return false
}

// Degrees returns the exact separation that defines the aspect.
func (a Aspect) Degrees() float64 {
	switch a {
	case Conjunction:
		return 0
	case SemiSextile:
		return 30
	case Sextile:
		return 60
	case Square:
		return 90
	case Trine:
		return 120
	case Quincunx:
		return 150
	case Opposition:
		return 180
	}
	panic(fmt.Sprintf("astro: unknown aspect %q", string(a)))
}

// Title renders the aspect for headings, e.g. "Opposition" or "Semi-Sextile".
func (a Aspect) Title() string {
	parts := strings.Split(string(a), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}

// Deviation returns how far a raw separation is from the exact aspect, in degrees.
func (a Aspect) Deviation(separation float64) float64 {
	d := separation - a.Degrees()
	if d < 0 {
		return -d
	}
	return d
}
