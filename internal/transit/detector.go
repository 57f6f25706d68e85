package transit

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/orrery/internal/astro"
)

var tracer = otel.Tracer("github.com/linnemanlabs/orrery/internal/transit")

// Ephemeris supplies transiting positions for a calendar date.
type Ephemeris interface {
	Positions(ctx context.Context, date time.Time) (*astro.Snapshot, error)
}

// ChartStore supplies a user's natal chart.
type ChartStore interface {
	NatalChart(ctx context.Context, userID string) (*astro.NatalChart, bool, error)
}

// Bodies scanned by each pass.
var (
	conjunctionBodies = []astro.Body{astro.Jupiter, astro.Saturn, astro.Rahu, astro.Ketu, astro.Mars, astro.Sun, astro.Moon}
	natalMovers       = []astro.Body{astro.Jupiter, astro.Saturn, astro.Rahu, astro.Ketu, astro.Mars}
	natalTargets      = []astro.Body{astro.Sun, astro.Moon, astro.Mars, astro.Mercury, astro.Jupiter, astro.Venus, astro.Saturn}
	ascendantTransits = []astro.Body{astro.Jupiter, astro.Saturn, astro.Rahu, astro.Ketu}
)

// Degradation reasons reported on DetectEvent.
const (
	ReasonEphemeris = "ephemeris_unavailable"
	ReasonNatal     = "natal_unavailable"
)

// Detector finds significant transits for a user on a date.
type Detector struct {
	ephemeris    Ephemeris
	charts       ChartStore
	logger       log.Logger
	hooks        Hooks
	orbs         OrbTable
	fetchTimeout time.Duration
}

// NewDetector creates a detector with the default orb table.
func NewDetector(ephemeris Ephemeris, charts ChartStore, logger log.Logger, hooks Hooks) *Detector {
	if logger == nil {
		logger = log.Nop()
	}
	return &Detector{
		ephemeris: ephemeris,
		charts:    charts,
		logger:    logger,
		hooks:     hooks,
		orbs:      DefaultOrbs(),
	}
}

// SetOrbs replaces the default orb table.
func (d *Detector) SetOrbs(t OrbTable) { d.orbs = t }

// SetFetchTimeout bounds each upstream fetch. Zero leaves only the caller's
// context deadline in effect.
func (d *Detector) SetFetchTimeout(timeout time.Duration) { d.fetchTimeout = timeout }

// Detect returns the significant transits for userID on date, sorted by
// descending significance and then by tightness. Missing or malformed
// upstream data yields an empty result, not an error; only invalid options
// are reported.
func (d *Detector) Detect(ctx context.Context, userID string, date time.Time, opts Options) ([]Transit, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "transit.Detect", trace.WithAttributes(
		attribute.String("orrery.user_id", userID),
		attribute.String("orrery.date", date.Format(time.DateOnly)),
		attribute.String("orrery.significance_filter", string(opts.minSignificance())),
	))
	defer span.End()

	start := time.Now()
	L := d.logger.With("user_id", userID, "date", date.Format(time.DateOnly))

	ev := &DetectEvent{UserID: userID, BySignificance: map[Significance]int{}}
	defer func() {
		ev.Duration = time.Since(start).Seconds()
		if d.hooks.OnDetect != nil {
			d.hooks.OnDetect(ev)
		}
	}()

	snap, chart, reason, err := d.fetch(ctx, userID, date)
	if reason != "" {
		ev.Degraded = reason
		span.SetAttributes(attribute.String("orrery.degraded", reason))
		if err != nil {
			span.RecordError(err)
		}
		L.Warn(ctx, "transit detection degraded, returning no transits", "reason", reason, "error", err)
		return []Transit{}, nil
	}

	var candidates []Transit
	candidates = append(candidates, d.conjunctions(snap, &opts)...)
	candidates = append(candidates, d.natalAspects(snap, chart, &opts)...)
	candidates = append(candidates, d.ascendantAspects(snap, chart, &opts)...)
	ev.Candidates = len(candidates)

	floor := opts.minSignificance()
	out := make([]Transit, 0, len(candidates))
	for _, t := range candidates {
		if t.Significance.AtLeast(floor) {
			out = append(out, t)
		}
	}
	sortTransits(out)

	for _, t := range out {
		ev.BySignificance[t.Significance]++
	}
	ev.Returned = len(out)
	span.SetAttributes(
		attribute.Int("orrery.candidates", len(candidates)),
		attribute.Int("orrery.transits", len(out)),
	)
	span.SetStatus(codes.Ok, "")

	L.Info(ctx, "transit detection complete", "candidates", len(candidates), "transits", len(out))
	return out, nil
}

// fetch loads both upstream inputs. A non-empty reason means detection must
// degrade to an empty result.
func (d *Detector) fetch(ctx context.Context, userID string, date time.Time) (*astro.Snapshot, *astro.NatalChart, string, error) {
	if d.ephemeris == nil || d.charts == nil {
		return nil, nil, ReasonEphemeris, errors.New("detector has no upstream sources")
	}

	fctx, cancel := d.bounded(ctx)
	snap, err := d.ephemeris.Positions(fctx, date)
	cancel()
	if err != nil {
		return nil, nil, ReasonEphemeris, err
	}
	if snap == nil || len(snap.Planets) == 0 {
		return nil, nil, ReasonEphemeris, errors.New("ephemeris returned no positions")
	}

	fctx, cancel = d.bounded(ctx)
	chart, ok, err := d.charts.NatalChart(fctx, userID)
	cancel()
	if err != nil {
		return nil, nil, ReasonNatal, err
	}
	if !ok || !chart.Usable() {
		return nil, nil, ReasonNatal, errors.New("natal chart missing or malformed")
	}
	return snap, chart, "", nil
}

func (d *Detector) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.fetchTimeout > 0 {
		return context.WithTimeout(ctx, d.fetchTimeout)
	}
	return context.WithCancel(ctx)
}

// conjunctions scans every unordered pair of tracked transiting bodies once.
func (d *Detector) conjunctions(snap *astro.Snapshot, opts *Options) []Transit {
	var out []Transit
	for i := 0; i < len(conjunctionBodies); i++ {
		a := conjunctionBodies[i]
		if !opts.allows(a) {
			continue
		}
		da, ok := snap.Degree(a)
		if !ok {
			continue
		}
		for j := i + 1; j < len(conjunctionBodies); j++ {
			b := conjunctionBodies[j]
			if !opts.allows(b) {
				continue
			}
			db, ok := snap.Degree(b)
			if !ok {
				continue
			}

			angle := astro.AngleBetween(da, db)
			orb := d.orbs.conjunction(a, b)
			if v, ok := opts.customOrb(string(a)+"_"+string(b), string(b)+"_"+string(a)); ok {
				orb = v
			}
			if angle > orb {
				continue
			}

			t := Transit{
				Type:         TypeConjunction,
				Planets:      []astro.Body{a, b},
				Angle:        angle,
				Orb:          orb,
				Significance: ConjunctionSignificance(a, b, angle),
				Duration:     ConjunctionDuration(a, b),
			}
			t.Description = describe(&t)
			out = append(out, t)
		}
	}
	return out
}

// natalAspects scans the slow movers against natal planets.
func (d *Detector) natalAspects(snap *astro.Snapshot, chart *astro.NatalChart, opts *Options) []Transit {
	var out []Transit
	for _, tp := range natalMovers {
		if !opts.allows(tp) {
			continue
		}
		td, ok := snap.Degree(tp)
		if !ok {
			continue
		}
		for _, np := range natalTargets {
			nd, ok := chart.Degree(np)
			if !ok {
				continue
			}
			sep := astro.AngleBetween(td, nd)
			for _, asp := range opts.aspects() {
				orb := d.orbs.aspect(d.orbs.Natal, asp)
				if v, ok := opts.customOrb(string(tp)+"_"+string(np)+"_"+string(asp), string(asp)); ok {
					orb = v
				}
				dev := asp.Deviation(sep)
				if dev > orb {
					continue
				}
				out = append(out, natalTransit(tp, np, asp, dev, orb, NatalSignificance(tp, np, asp)))
			}
		}
	}
	return out
}

// ascendantAspects scans the slowest movers against the natal ascendant.
func (d *Detector) ascendantAspects(snap *astro.Snapshot, chart *astro.NatalChart, opts *Options) []Transit {
	asc, ok := chart.Degree(astro.Ascendant)
	if !ok {
		return nil
	}
	var out []Transit
	for _, tp := range ascendantTransits {
		if !opts.allows(tp) {
			continue
		}
		td, ok := snap.Degree(tp)
		if !ok {
			continue
		}
		sep := astro.AngleBetween(td, asc)
		for _, asp := range opts.aspects() {
			orb := d.orbs.aspect(d.orbs.Ascendant, asp)
			if v, ok := opts.customOrb(string(tp)+"_Ascendant_"+string(asp), "ascendant_"+string(asp)); ok {
				orb = v
			}
			dev := asp.Deviation(sep)
			if dev > orb {
				continue
			}
			out = append(out, natalTransit(tp, astro.Ascendant, asp, dev, orb, AscendantSignificance(tp, asp)))
		}
	}
	return out
}

func natalTransit(tp, np astro.Body, asp astro.Aspect, dev, orb float64, tier Significance) Transit {
	typ := TypeAspect
	if asp == astro.Conjunction {
		typ = TypeTransitToNatal
		if tp == np {
			typ = TypeReturn
		}
	}
	t := Transit{
		Type:          typ,
		TransitPlanet: tp,
		NatalPlanet:   np,
		Angle:         dev,
		Orb:           orb,
		Significance:  tier,
		AspectType:    asp,
		Duration:      TransitDuration(tp),
	}
	if asp == astro.Conjunction {
		// conjunctions carry no aspect type
		t.AspectType = ""
	}
	t.Description = describe(&t)
	return t
}

// sortTransits orders by descending tier, then tighter matches first.
func sortTransits(ts []Transit) {
	sort.SliceStable(ts, func(i, j int) bool {
		ri, rj := ts[i].Significance.Rank(), ts[j].Significance.Rank()
		if ri != rj {
			return ri > rj
		}
		return ts[i].Angle < ts[j].Angle
	})
}
