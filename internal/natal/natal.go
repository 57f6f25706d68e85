package natal

import (
	"errors"
	"fmt"
	"slices"

	"github.com/linnemanlabs/orrery/internal/alert"
	"github.com/linnemanlabs/orrery/internal/astro"
)

// ErrInvalidChart marks a chart that cannot be stored.
var ErrInvalidChart = errors.New("invalid natal chart")

// Record is everything stored for one user.
type Record struct {
	Chart   astro.NatalChart `json:"chart"`
	Profile alert.Profile    `json:"profile"`
}

// Validate rejects records the detector could never use.
func (r *Record) Validate() error {
	var errs []error
	if r.Chart.UserID == "" {
		errs = append(errs, fmt.Errorf("%w: user id is required", ErrInvalidChart))
	}
	if !astro.ValidDegree(r.Chart.AscendantDegree) {
		errs = append(errs, fmt.Errorf("%w: ascendant degree %v", ErrInvalidChart, r.Chart.AscendantDegree))
	}
	if len(r.Chart.Planets) == 0 {
		errs = append(errs, fmt.Errorf("%w: no natal positions", ErrInvalidChart))
	}
	for _, b := range sortedBodies(r.Chart.Planets) {
		if !b.Known() {
			errs = append(errs, fmt.Errorf("%w: unknown body %q", ErrInvalidChart, b))
			continue
		}
		if !astro.ValidDegree(r.Chart.Planets[b].Degree) {
			errs = append(errs, fmt.Errorf("%w: %s degree %v", ErrInvalidChart, b, r.Chart.Planets[b].Degree))
		}
	}
	return errors.Join(errs...)
}

// normalize returns a copy of r with every degree in [0, 360).
func (r *Record) normalize() *Record {
	out := &Record{Profile: r.Profile}
	out.Chart.UserID = r.Chart.UserID
	out.Chart.AscendantDegree = astro.Normalize(r.Chart.AscendantDegree)
	out.Chart.Planets = make(map[astro.Body]astro.Position, len(r.Chart.Planets))
	for b, p := range r.Chart.Planets {
		out.Chart.Planets[b] = astro.Position{Degree: astro.Normalize(p.Degree)}
	}
	return out
}

func sortedBodies(m map[astro.Body]astro.Position) []astro.Body {
	out := make([]astro.Body, 0, len(m))
	for b := range m {
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}
