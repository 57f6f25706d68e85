package transit

import (
	"fmt"

	"github.com/linnemanlabs/orrery/internal/astro"
)

// Significance is the ordered importance tier of a transit.
type Significance string

const (
	Low      Significance = "low"
	Medium   Significance = "medium"
	High     Significance = "high"
	Critical Significance = "critical"
)

// Rank orders tiers low=1 .. critical=4. Unknown values rank 0.
func (s Significance) Rank() int {
	switch s {
	case Low:
		return 1
	case Medium:
		return 2
	case High:
		return 3
	case Critical:
		return 4
	}
	return 0
}

// Valid reports whether s is one of the four tiers.
func (s Significance) Valid() bool { return s.Rank() > 0 }

// AtLeast reports whether s ranks at or above min.
func (s Significance) AtLeast(min Significance) bool { return s.Rank() >= min.Rank() }

// Demote drops one tier, stopping at low.
func (s Significance) Demote() Significance {
	switch s {
	case Critical:
		return High
	case High:
		return Medium
	}
	return Low
}

// ParseSignificance converts a tier name, rejecting anything else.
func ParseSignificance(v string) (Significance, error) {
	s := Significance(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown significance %q (want low, medium, high or critical)", ErrInvalidOptions, v)
	}
	return s, nil
}

// tightConjunction is the separation at or below which a conjunction
// between transiting bodies takes the upper tier of its rule.
const tightConjunction = 1.0

// pair is an unordered pair of bodies.
type pair struct{ a, b astro.Body }

func makePair(a, b astro.Body) pair {
	if b < a {
		a, b = b, a
	}
	return pair{a, b}
}

// conjunctionRule grades a conjunction of two transiting bodies.
type conjunctionRule struct {
	pair  pair
	tight Significance
	wide  Significance
}

// conjunctionRules are evaluated first match wins; pairs with no rule use
// conjunctionDefault.
var conjunctionRules = []conjunctionRule{
	{makePair(astro.Jupiter, astro.Saturn), Critical, High},
	{makePair(astro.Saturn, astro.Rahu), Critical, High},
	{makePair(astro.Jupiter, astro.Rahu), Critical, High},
	{makePair(astro.Mars, astro.Saturn), High, Medium},
	{makePair(astro.Sun, astro.Saturn), High, Medium},
	{makePair(astro.Moon, astro.Rahu), High, Medium},
}

var conjunctionDefault = conjunctionRule{tight: Medium, wide: Low}

// ConjunctionSignificance grades two transiting bodies within orb of each other.
func ConjunctionSignificance(a, b astro.Body, angle float64) Significance {
	rule := conjunctionDefault
	key := makePair(a, b)
	for _, r := range conjunctionRules {
		if r.pair == key {
			rule = r
			break
		}
	}
	if angle <= tightConjunction {
		return rule.tight
	}
	return rule.wide
}

// natalRule grades a transiting body against a natal point. The tier is the
// conjunction tier; any other aspect is demoted one step.
type natalRule struct {
	transiting astro.Body
	natal      astro.Body
	tier       Significance
}

// natalRules are evaluated first match wins. Pairs with no rule use
// natalDefault.
//
// TODO: several slow-body pairs (Ketu to the lights, Saturn to Venus) fall
// through to the default; confirm with product whether that is intended.
var natalRules = []natalRule{
	{astro.Saturn, astro.Sun, Critical},
	{astro.Saturn, astro.Moon, Critical},
	{astro.Rahu, astro.Sun, Critical},
	{astro.Rahu, astro.Moon, Critical},
	{astro.Jupiter, astro.Sun, High},
	{astro.Jupiter, astro.Moon, High},
	{astro.Saturn, astro.Mars, High},
}

const natalDefault = Medium

// returnTiers grade a body conjunct its own natal position.
var returnTiers = map[astro.Body]Significance{
	astro.Saturn:  Critical,
	astro.Jupiter: High,
}

const returnDefault = Medium

// NatalSignificance grades a transiting body aspecting a natal planet.
func NatalSignificance(transiting, natal astro.Body, aspect astro.Aspect) Significance {
	if transiting == natal && aspect == astro.Conjunction {
		if tier, ok := returnTiers[transiting]; ok {
			return tier
		}
		return returnDefault
	}

	tier := natalDefault
	for _, r := range natalRules {
		if r.transiting == transiting && r.natal == natal {
			tier = r.tier
			break
		}
	}
	if aspect != astro.Conjunction {
		return tier.Demote()
	}
	return tier
}

// ascendantMovers are the bodies whose contacts to the ascendant rank high.
var ascendantMovers = map[astro.Body]bool{
	astro.Jupiter: true,
	astro.Saturn:  true,
	astro.Rahu:    true,
}

// AscendantSignificance grades a transiting body aspecting the natal ascendant.
func AscendantSignificance(transiting astro.Body, aspect astro.Aspect) Significance {
	tier := Medium
	if ascendantMovers[transiting] {
		tier = High
	}
	if aspect != astro.Conjunction {
		return tier.Demote()
	}
	return tier
}
