package transit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/linnemanlabs/orrery/internal/astro"
)

// ErrInvalidOptions marks a caller error in detection options.
var ErrInvalidOptions = errors.New("invalid detection options")

// maxCustomOrb bounds a caller supplied orb.
const maxCustomOrb = 30.0

// Options tune a detection run. The zero value scans major aspects for every
// tracked body at the default orbs and keeps all tiers.
type Options struct {
	IncludeMinorAspects bool               `json:"include_minor_aspects,omitempty"`
	CustomOrbs          map[string]float64 `json:"custom_orbs,omitempty"`
	SignificanceFilter  Significance       `json:"significance_filter,omitempty"`
	PlanetFilter        []astro.Body       `json:"planet_filter,omitempty"`
}

// Validate rejects options that indicate a programming error at the call site.
func (o *Options) Validate() error {
	var errs []error
	if o.SignificanceFilter != "" && !o.SignificanceFilter.Valid() {
		errs = append(errs, fmt.Errorf("%w: unknown significance filter %q", ErrInvalidOptions, o.SignificanceFilter))
	}
	for key, orb := range o.CustomOrbs {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Errorf("%w: empty custom orb key", ErrInvalidOptions))
			continue
		}
		if !astro.ValidDegree(orb) || orb <= 0 || orb > maxCustomOrb {
			errs = append(errs, fmt.Errorf("%w: custom orb %q = %v (must be in (0, %v])", ErrInvalidOptions, key, orb, maxCustomOrb))
		}
	}
	for _, b := range o.PlanetFilter {
		if !b.Known() {
			errs = append(errs, fmt.Errorf("%w: unknown planet %q in planet filter", ErrInvalidOptions, b))
		}
	}
	return errors.Join(errs...)
}

func (o *Options) minSignificance() Significance {
	if o.SignificanceFilter == "" {
		return Low
	}
	return o.SignificanceFilter
}

func (o *Options) allows(b astro.Body) bool {
	if len(o.PlanetFilter) == 0 {
		return true
	}
	for _, f := range o.PlanetFilter {
		if f == b {
			return true
		}
	}
	return false
}

func (o *Options) aspects() []astro.Aspect {
	if !o.IncludeMinorAspects {
		return astro.MajorAspects
	}
	out := make([]astro.Aspect, 0, len(astro.MajorAspects)+len(astro.MinorAspects))
	out = append(out, astro.MajorAspects...)
	return append(out, astro.MinorAspects...)
}

// customOrb returns the first override present among keys.
func (o *Options) customOrb(keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := o.CustomOrbs[k]; ok {
			return v, true
		}
	}
	return 0, false
}

// OrbTable holds the default orbs for each pass. The ascendant pass keeps
// its own constants; they are not derived from the natal-planet orbs.
type OrbTable struct {
	ConjunctionSlow  float64
	ConjunctionFast  float64
	ConjunctionMixed float64

	Natal          map[astro.Aspect]float64
	Ascendant      map[astro.Aspect]float64
	MinorAspectOrb float64
}

// DefaultOrbs returns the stock orb table.
func DefaultOrbs() OrbTable {
	return OrbTable{
		ConjunctionSlow:  3,
		ConjunctionFast:  2,
		ConjunctionMixed: 2.5,
		Natal: map[astro.Aspect]float64{
			astro.Conjunction: 3,
			astro.Opposition:  3,
			astro.Square:      2,
			astro.Trine:       2,
			astro.Sextile:     2,
		},
		// Starts equal to Natal but is tuned on its own.
		Ascendant: map[astro.Aspect]float64{
			astro.Conjunction: 3,
			astro.Opposition:  3,
			astro.Square:      2,
			astro.Trine:       2,
			astro.Sextile:     2,
		},
		MinorAspectOrb: 1,
	}
}

func (t OrbTable) conjunction(a, b astro.Body) float64 {
	switch {
	case a.Slow() && b.Slow():
		return t.ConjunctionSlow
	case a.Fast() && b.Fast():
		return t.ConjunctionFast
	default:
		return t.ConjunctionMixed
	}
}

func (t OrbTable) aspect(table map[astro.Aspect]float64, a astro.Aspect) float64 {
	if v, ok := table[a]; ok {
		return v
	}
	return t.MinorAspectOrb
}
