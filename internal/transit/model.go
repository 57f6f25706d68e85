package transit

import (
	"errors"
	"fmt"

	"github.com/linnemanlabs/orrery/internal/astro"
)

// ErrInvalidTransit marks a transit whose fields contradict each other or
// could not have come out of detection.
var ErrInvalidTransit = errors.New("invalid transit")

// Type classifies a detected transit.
type Type string

const (
	// TypeConjunction is two transiting bodies meeting each other.
	TypeConjunction Type = "conjunction"

	// TypeTransitToNatal is a transiting body conjunct a natal point.
	TypeTransitToNatal Type = "transit_to_natal"

	// TypeReturn is a transiting body conjunct its own natal position.
	TypeReturn Type = "return"

	// TypeAspect is any non-conjunction aspect to a natal point.
	TypeAspect Type = "aspect"
)

// Transit is one detected relationship. It is derived on every detection
// call and never stored on its own.
type Transit struct {
	Type          Type         `json:"type"`
	Planets       []astro.Body `json:"planets,omitempty"`
	TransitPlanet astro.Body   `json:"transit_planet,omitempty"`
	NatalPlanet   astro.Body   `json:"natal_planet,omitempty"`
	Angle         float64      `json:"angle"`
	Orb           float64      `json:"orb"`
	Significance  Significance `json:"significance"`
	AspectType    astro.Aspect `json:"aspect_type,omitempty"`
	Description   string       `json:"description"`
	Duration      string       `json:"duration,omitempty"`
}

// Validate checks t against the shape detection produces: a known type and
// tier, 0 <= angle <= orb with a positive orb, and the bodies and aspect each
// type carries.
func (t *Transit) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidTransit}, args...)...))
	}

	if !t.Significance.Valid() {
		bad("significance %q", t.Significance)
	}
	if !astro.ValidDegree(t.Orb) || t.Orb <= 0 {
		bad("orb %v must be positive", t.Orb)
	}
	if !astro.ValidDegree(t.Angle) || t.Angle < 0 || t.Angle > t.Orb {
		bad("angle %v outside [0, orb %v]", t.Angle, t.Orb)
	}

	switch t.Type {
	case TypeConjunction:
		if len(t.Planets) != 2 || !t.Planets[0].Known() || !t.Planets[1].Known() || t.Planets[0] == t.Planets[1] {
			bad("conjunction needs two distinct known planets, got %v", t.Planets)
		}
	case TypeReturn:
		if !t.TransitPlanet.Known() || t.NatalPlanet != t.TransitPlanet {
			bad("return needs matching transit and natal planets, got %q and %q", t.TransitPlanet, t.NatalPlanet)
		}
	case TypeTransitToNatal, TypeAspect:
		if !t.TransitPlanet.Known() {
			bad("unknown transit planet %q", t.TransitPlanet)
		}
		if !t.NatalPlanet.Known() && t.NatalPlanet != astro.Ascendant {
			bad("unknown natal point %q", t.NatalPlanet)
		}
		if t.Type == TypeAspect && (!t.AspectType.Known() || t.AspectType == astro.Conjunction) {
			bad("aspect needs a non-conjunction aspect type, got %q", t.AspectType)
		}
	default:
		bad("unknown type %q", t.Type)
	}

	return errors.Join(errs...)
}

// describe renders the human label for t from its other fields.
func describe(t *Transit) string {
	switch t.Type {
	case TypeConjunction:
		if len(t.Planets) == 2 {
			return fmt.Sprintf("%s conjunct %s (%.2f° from exact)", t.Planets[0], t.Planets[1], t.Angle)
		}
	case TypeReturn:
		return fmt.Sprintf("%s return (%.2f° from exact)", t.TransitPlanet, t.Angle)
	case TypeTransitToNatal:
		return fmt.Sprintf("Transiting %s conjunct natal %s (%.2f° from exact)", t.TransitPlanet, t.NatalPlanet, t.Angle)
	case TypeAspect:
		return fmt.Sprintf("Transiting %s %s natal %s (%.2f° from exact)",
			t.TransitPlanet, aspectVerb(t.AspectType), t.NatalPlanet, t.Angle)
	}
	return fmt.Sprintf("%s transit (%.2f° from exact)", t.Type, t.Angle)
}

func aspectVerb(a astro.Aspect) string {
	switch a {
	case astro.Opposition:
		return "opposite"
	case astro.Square:
		return "square"
	case astro.Trine:
		return "trine"
	case astro.Sextile:
		return "sextile"
	case astro.SemiSextile:
		return "semi-sextile"
	case astro.Quincunx:
		return "quincunx"
	}
	return string(a)
}
