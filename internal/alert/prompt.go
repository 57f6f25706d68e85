package alert

import (
	"fmt"
	"strings"

	"github.com/linnemanlabs/orrery/internal/transit"
)

const basePersona = `You are an astrology writer producing short, personal transit alerts for a mobile app.
Write in plain language for someone with no astrological training.
Never use fear-based language. Never make medical, legal or financial claims.
Never predict outcomes as certain; describe tendencies and invitations instead.`

// systemVariants holds the tier-specific emphasis appended to the persona.
var systemVariants = map[transit.Significance]string{
	transit.Critical: "This is a rare, long-lasting transit. Emphasize long-term preparation, patience and steady commitments over months.",
	transit.High:     "This transit is notable. Highlight the main theme and one or two concrete ways to work with it.",
	transit.Medium:   "This transit is moderate. Keep the tone balanced and practical.",
	transit.Low:      "This transit is minor. Keep the alert brief and light.",
}

// systemPrompt returns the system prompt and the variant name used.
func systemPrompt(s transit.Significance) (string, string) {
	variant, ok := systemVariants[s]
	if !ok {
		s = transit.Medium
		variant = systemVariants[s]
	}
	return basePersona + "\n\n" + variant, string(s)
}

// buildPrompt constructs the user message for one transit.
func buildPrompt(tr *transit.Transit, profile *Profile, opts *Options) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Transit type: %s\n", tr.Type)
	fmt.Fprintf(&b, "Description: %s\n", tr.Description)
	fmt.Fprintf(&b, "Significance: %s\n", tr.Significance)
	fmt.Fprintf(&b, "Distance from exact: %.2f° (orb %.1f°)\n", tr.Angle, tr.Orb)
	if tr.Duration != "" {
		fmt.Fprintf(&b, "Expected duration: %s\n", tr.Duration)
	}
	if tr.AspectType != "" {
		fmt.Fprintf(&b, "Aspect: %s\n", tr.AspectType)
	}

	if profile != nil {
		if profile.FullName != "" {
			fmt.Fprintf(&b, "Reader's name: %s\n", profile.FullName)
		}
		if profile.BirthLocation != "" {
			fmt.Fprintf(&b, "Reader's birth location: %s\n", profile.BirthLocation)
		}
	}

	b.WriteString("\nWrite an alert that includes:\n")
	step := 1
	item := func(s string) {
		fmt.Fprintf(&b, "%d. %s\n", step, s)
		step++
	}
	item("A short explanation of what this transit means for the reader.")
	item("Practical guidance for the coming days.")
	if opts.timing() {
		item("When the influence peaks and when it fades.")
	}
	if opts.remedies() {
		item("One simple, optional remedy or reflective practice.")
	}

	fmt.Fprintf(&b, "\nTone: %s.\n", opts.tone())
	fmt.Fprintf(&b, "Keep the alert under %d characters.\n", opts.maxLength())
	b.WriteString("Return only the alert text, without a title or markdown.")

	return b.String()
}
