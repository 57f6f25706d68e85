package alert

import (
	"fmt"
	"strings"

	"github.com/linnemanlabs/orrery/internal/transit"
)

var closings = map[transit.Significance]string{
	transit.Critical: "This is a major, slow-moving influence, so give yourself time and plan for the long term.",
	transit.High:     "This is a notable influence worth paying attention to in your plans.",
	transit.Medium:   "Notice how this shows up in your days and adjust as you go.",
	transit.Low:      "This is a gentle influence you can simply keep in mind.",
}

// fallbackMessage builds deterministic copy for tr that never depends on
// an external service.
func fallbackMessage(tr *transit.Transit) string {
	var b strings.Builder

	switch tr.Type {
	case transit.TypeConjunction:
		if len(tr.Planets) == 2 {
			fmt.Fprintf(&b, "%s and %s are meeting in the sky, blending their energies.", tr.Planets[0], tr.Planets[1])
		} else {
			b.WriteString("Two planets are meeting in the sky, blending their energies.")
		}
	case transit.TypeReturn:
		fmt.Fprintf(&b, "%s is returning to the position it held when you were born, marking a new cycle.", tr.TransitPlanet)
	case transit.TypeTransitToNatal:
		fmt.Fprintf(&b, "Transiting %s is crossing your natal %s, bringing its themes into focus.", tr.TransitPlanet, tr.NatalPlanet)
	case transit.TypeAspect:
		fmt.Fprintf(&b, "Transiting %s forms a %s with your natal %s.", tr.TransitPlanet, strings.ToLower(tr.AspectType.Title()), tr.NatalPlanet)
	default:
		b.WriteString("A planetary transit is active in your chart.")
	}

	span := tr.Duration
	if span == "" {
		span = "the coming days"
	}
	fmt.Fprintf(&b, " It is expected to last about %s.", span)

	closing, ok := closings[tr.Significance]
	if !ok {
		closing = closings[transit.Medium]
	}
	b.WriteString(" ")
	b.WriteString(closing)

	return b.String()
}
