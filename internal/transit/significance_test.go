package transit

import (
	"errors"
	"testing"

	"github.com/linnemanlabs/orrery/internal/astro"
)

func TestConjunctionSignificance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		a, b  astro.Body
		angle float64
		want  Significance
	}{
		{"critical pair tight", astro.Jupiter, astro.Saturn, 0.5, Critical},
		{"critical pair reversed", astro.Saturn, astro.Jupiter, 1.0, Critical},
		{"critical pair wide", astro.Saturn, astro.Rahu, 2.2, High},
		{"critical pair jupiter rahu", astro.Rahu, astro.Jupiter, 0.1, Critical},
		{"high pair tight", astro.Mars, astro.Saturn, 0.9, High},
		{"high pair wide", astro.Saturn, astro.Sun, 1.5, Medium},
		{"high pair moon rahu", astro.Rahu, astro.Moon, 1.01, Medium},
		{"unlisted tight", astro.Sun, astro.Moon, 0.3, Medium},
		{"unlisted wide", astro.Mars, astro.Ketu, 2.4, Low},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ConjunctionSignificance(tt.a, tt.b, tt.angle); got != tt.want {
				t.Errorf("ConjunctionSignificance(%s, %s, %v) = %s, want %s", tt.a, tt.b, tt.angle, got, tt.want)
			}
		})
	}
}

func TestNatalSignificance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tp, np astro.Body
		aspect astro.Aspect
		want   Significance
	}{
		{"saturn return", astro.Saturn, astro.Saturn, astro.Conjunction, Critical},
		{"jupiter return", astro.Jupiter, astro.Jupiter, astro.Conjunction, High},
		{"mars return", astro.Mars, astro.Mars, astro.Conjunction, Medium},
		{"saturn opposite own natal is not a return", astro.Saturn, astro.Saturn, astro.Opposition, Low},
		{"saturn conjunct sun", astro.Saturn, astro.Sun, astro.Conjunction, Critical},
		{"saturn square sun demoted", astro.Saturn, astro.Sun, astro.Square, High},
		{"rahu conjunct moon", astro.Rahu, astro.Moon, astro.Conjunction, Critical},
		{"jupiter conjunct moon", astro.Jupiter, astro.Moon, astro.Conjunction, High},
		{"jupiter opposite moon demoted", astro.Jupiter, astro.Moon, astro.Opposition, Medium},
		{"saturn conjunct mars", astro.Saturn, astro.Mars, astro.Conjunction, High},
		{"unlisted conjunction", astro.Ketu, astro.Venus, astro.Conjunction, Medium},
		{"unlisted trine", astro.Ketu, astro.Venus, astro.Trine, Low},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NatalSignificance(tt.tp, tt.np, tt.aspect); got != tt.want {
				t.Errorf("NatalSignificance(%s, %s, %s) = %s, want %s", tt.tp, tt.np, tt.aspect, got, tt.want)
			}
		})
	}
}

func TestAscendantSignificance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tp     astro.Body
		aspect astro.Aspect
		want   Significance
	}{
		{astro.Jupiter, astro.Conjunction, High},
		{astro.Saturn, astro.Square, Medium},
		{astro.Rahu, astro.Conjunction, High},
		{astro.Ketu, astro.Conjunction, Medium},
		{astro.Ketu, astro.Trine, Low},
		{astro.Mars, astro.Sextile, Low},
	}
	for _, tt := range tests {
		if got := AscendantSignificance(tt.tp, tt.aspect); got != tt.want {
			t.Errorf("AscendantSignificance(%s, %s) = %s, want %s", tt.tp, tt.aspect, got, tt.want)
		}
	}
}

func TestSignificance_Ordering(t *testing.T) {
	t.Parallel()

	tiers := []Significance{Low, Medium, High, Critical}
	for i, s := range tiers {
		if s.Rank() != i+1 {
			t.Errorf("%s.Rank() = %d, want %d", s, s.Rank(), i+1)
		}
	}
	if !Critical.AtLeast(High) || Medium.AtLeast(High) {
		t.Error("AtLeast ordering broken")
	}
	if Critical.Demote() != High || High.Demote() != Medium || Medium.Demote() != Low || Low.Demote() != Low {
		t.Error("Demote chain broken")
	}
	if Significance("severe").Valid() {
		t.Error("unknown tier should be invalid")
	}
}

func TestParseSignificance(t *testing.T) {
	t.Parallel()

	s, err := ParseSignificance("high")
	if err != nil || s != High {
		t.Fatalf("ParseSignificance(high) = %q, %v", s, err)
	}
	_, err = ParseSignificance("urgent")
	if !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("err = %v, want ErrInvalidOptions", err)
	}
}
