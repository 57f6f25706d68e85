package ephemeris

import (
	"errors"
	"time"

	"github.com/linnemanlabs/orrery/internal/astro"
)

// ErrNoData is returned when the provider has nothing for the requested date.
var ErrNoData = errors.New("no ephemeris data")

const dateLayout = "2006-01-02"

// rawPosition is the wire shape of one body. Degree is a pointer so a
// missing value can be told apart from 0°.
type rawPosition struct {
	Degree *float64 `json:"degree" yaml:"degree"`
}

// buildSnapshot keeps known bodies with usable degrees, normalised to
// [0, 360), and reports the names it dropped.
func buildSnapshot(date time.Time, raw map[string]rawPosition) (*astro.Snapshot, []string) {
	snap := &astro.Snapshot{
		Date:    date,
		Planets: make(map[astro.Body]astro.Position, len(raw)),
	}
	var dropped []string
	for name, p := range raw {
		b := astro.Body(name)
		if !b.Known() || p.Degree == nil || !astro.ValidDegree(*p.Degree) {
			dropped = append(dropped, name)
			continue
		}
		snap.Planets[b] = astro.Position{Degree: astro.Normalize(*p.Degree)}
	}
	return snap, dropped
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
