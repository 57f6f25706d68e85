package transit

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/linnemanlabs/orrery/internal/astro"
)

// Duration buckets. They are human guidance, not a schedule.
const (
	DurationHours      = "2-3 hours"
	DurationDays       = "1-2 days"
	DurationFewDays    = "3-5 days"
	DurationWeekish    = "3-7 days"
	DurationWeeks      = "1-2 weeks"
	DurationLongWeeks  = "2-3 weeks"
	DurationMonths     = "2-3 months"
	DurationSeasons    = "3-6 months"
	defaultExpiration  = 7 * 24 * time.Hour
	minDayExpiration   = 3 * 24 * time.Hour
	minHourExpiration  = 24 * time.Hour
	daysPerMonthApprox = 30
)

// dailySpeed is the approximate mean motion of each body in degrees per day.
var dailySpeed = map[astro.Body]float64{
	astro.Sun:     1.0,
	astro.Moon:    13.2,
	astro.Mercury: 1.4,
	astro.Venus:   1.2,
	astro.Mars:    0.52,
	astro.Jupiter: 0.083,
	astro.Saturn:  0.033,
	astro.Rahu:    0.053,
	astro.Ketu:    0.053,
}

// speedOf returns the table speed, treating unknown bodies as Sun-paced.
func speedOf(b astro.Body) float64 {
	if s, ok := dailySpeed[b]; ok {
		return s
	}
	return 1.0
}

// ConjunctionDuration estimates how long two transiting bodies stay together
// from their relative daily motion.
func ConjunctionDuration(a, b astro.Body) string {
	rel := math.Abs(speedOf(a) - speedOf(b))
	switch {
	case rel < 0.1:
		return DurationLongWeeks
	case rel < 0.5:
		return DurationWeeks
	default:
		return DurationWeekish
	}
}

var transitDurations = map[astro.Body]string{
	astro.Sun:     DurationDays,
	astro.Mercury: DurationDays,
	astro.Venus:   DurationDays,
	astro.Moon:    DurationHours,
	astro.Mars:    DurationFewDays,
	astro.Jupiter: DurationLongWeeks,
	astro.Saturn:  DurationMonths,
	astro.Rahu:    DurationSeasons,
	astro.Ketu:    DurationSeasons,
}

// TransitDuration estimates how long a single transiting body's contact lasts.
func TransitDuration(b astro.Body) string {
	if d, ok := transitDurations[b]; ok {
		return d
	}
	return DurationWeeks
}

// durationRe captures the leading magnitude and the unit of a bucket such as
// "2-3 weeks" or "1 month".
var durationRe = regexp.MustCompile(`(\d+)(?:\s*-\s*\d+)?\s*(hour|day|week|month)s?`)

// ExpirationFrom turns a duration bucket into a concrete expiry after now,
// using the lower bound of the bucket. Day buckets expire no sooner than three
// days out and hour buckets no sooner than one day. Unparseable buckets
// expire in seven days. The result is always after now.
func ExpirationFrom(bucket string, now time.Time) time.Time {
	m := durationRe.FindStringSubmatch(bucket)
	if m == nil {
		return now.Add(defaultExpiration)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return now.Add(defaultExpiration)
	}

	var d time.Duration
	switch m[2] {
	case "hour":
		d = max(time.Duration(n)*time.Hour, minHourExpiration)
	case "day":
		d = max(time.Duration(n)*24*time.Hour, minDayExpiration)
	case "week":
		d = time.Duration(n) * 7 * 24 * time.Hour
	case "month":
		d = time.Duration(n) * daysPerMonthApprox * 24 * time.Hour
	}
	if d <= 0 {
		return now.Add(defaultExpiration)
	}
	return now.Add(d)
}
