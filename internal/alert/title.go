package alert

import (
	"fmt"

	"github.com/linnemanlabs/orrery/internal/transit"
)

// urgency markers prefixed to titles of the two highest tiers.
const (
	markerCritical = "\U0001f534 "
	markerHigh     = "\U0001f7e0 "
)

// Title renders the deterministic alert title for tr.
func Title(tr *transit.Transit) string {
	var body string
	switch tr.Type {
	case transit.TypeConjunction:
		if len(tr.Planets) == 2 {
			body = fmt.Sprintf("%s & %s Conjunction", tr.Planets[0], tr.Planets[1])
		} else {
			body = "Planetary Conjunction"
		}
	case transit.TypeReturn:
		body = fmt.Sprintf("%s Return", tr.TransitPlanet)
	case transit.TypeTransitToNatal:
		body = fmt.Sprintf("%s Transits Your %s", tr.TransitPlanet, tr.NatalPlanet)
	case transit.TypeAspect:
		body = fmt.Sprintf("%s %s Your %s", tr.TransitPlanet, tr.AspectType.Title(), tr.NatalPlanet)
	default:
		body = "Planetary Transit"
	}

	switch tr.Significance {
	case transit.Critical:
		return markerCritical + body
	case transit.High:
		return markerHigh + body
	}
	return body
}
