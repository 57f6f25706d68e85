package ephemeris

import (
	"context"
	"fmt"
	"maps"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/orrery/internal/astro"
)

// FileProvider serves positions from a YAML file of dated snapshots:
//
//	snapshots:
//	  - date: "2026-10-17"
//	    planets:
//	      Sun: {degree: 204.1}
//	      Saturn: {degree: 355.7}
type FileProvider struct {
	byDate map[string]*astro.Snapshot
}

type fileFormat struct {
	Snapshots []struct {
		Date    string                 `yaml:"date"`
		Planets map[string]rawPosition `yaml:"planets"`
	} `yaml:"snapshots"`
}

// LoadFile reads and parses path. Unknown bodies and missing or non-finite
// degrees are dropped; a malformed date fails the whole load.
func LoadFile(path string) (*FileProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ephemeris file: %w", err)
	}
	return parseFile(data)
}

func parseFile(data []byte) (*FileProvider, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse ephemeris file: %w", err)
	}

	p := &FileProvider{byDate: make(map[string]*astro.Snapshot, len(f.Snapshots))}
	for i, s := range f.Snapshots {
		day, err := time.Parse(dateLayout, s.Date)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: bad date %q: %w", i, s.Date, err)
		}
		snap, _ := buildSnapshot(day, s.Planets)
		p.byDate[s.Date] = snap
	}
	return p, nil
}

// Positions returns a copy of the snapshot for date's calendar day.
func (p *FileProvider) Positions(ctx context.Context, date time.Time) (*astro.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := dayOf(date).Format(dateLayout)
	snap, ok := p.byDate[key]
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoData, key)
	}
	cp := *snap
	cp.Planets = maps.Clone(snap.Planets)
	return &cp, nil
}
