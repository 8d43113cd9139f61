package pipeline

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidScore is returned when a review score falls outside every
// configured rating band. It indicates a gap in the band table, not bad data.
var ErrInvalidScore = errors.New("score outside all rating bands")

// BandRange maps an inclusive score range to a rating band label.
type BandRange struct {
	Low   int    `yaml:"low" json:"low"`
	High  int    `yaml:"high" json:"high"`
	Label string `yaml:"label" json:"label"`
}

// BandTable is an ordered set of band ranges partitioning the score domain.
type BandTable []BandRange

// DefaultBands returns the reference band table over the 50-100 point scale.
func DefaultBands() BandTable {
	return BandTable{
		{Low: 50, High: 59, Label: "50-59 (Very Poor)"},
		{Low: 60, High: 69, Label: "60-69 (Poor)"},
		{Low: 70, High: 79, Label: "70-79 (Average)"},
		{Low: 80, High: 84, Label: "80-84 (Good)"},
		{Low: 85, High: 89, Label: "85-89 (Very Good)"},
		{Low: 90, High: 94, Label: "90-94 (Excellent)"},
		{Low: 95, High: 100, Label: "95-100 (Perfect)"},
	}
}

// Validate checks that the table is a proper partition of its score domain:
// ordered, no overlaps, no gaps, every label non-empty.
func (t BandTable) Validate() error {
	if len(t) == 0 {
		return errors.New("BandTable: no bands configured")
	}
	for i, b := range t {
		if b.Label == "" {
			return fmt.Errorf("BandTable: band %d has empty label", i)
		}
		if b.Low > b.High {
			return fmt.Errorf("BandTable: band %q has low %d > high %d", b.Label, b.Low, b.High)
		}
		if i == 0 {
			continue
		}
		prev := t[i-1]
		if b.Low != prev.High+1 {
			return fmt.Errorf("BandTable: band %q starts at %d, want %d (after %q)", b.Label, b.Low, prev.High+1, prev.Label)
		}
	}
	return nil
}

// BandFor returns the label of the one band containing points.
func (t BandTable) BandFor(points int) (string, error) {
	for _, b := range t {
		if points >= b.Low && points <= b.High {
			return b.Label, nil
		}
	}
	return "", fmt.Errorf("%w: %d", ErrInvalidScore, points)
}

// Domain returns the inclusive score range the table covers.
func (t BandTable) Domain() (low, high int) {
	if len(t) == 0 {
		return 0, 0
	}
	return t[0].Low, t[len(t)-1].High
}

type bandTableFile struct {
	Bands []BandRange `yaml:"bands"`
}

// LoadBandTable reads a band table override from a YAML file:
//
//	bands:
//	  - {low: 50, high: 79, label: "50-79 (Below Average)"}
//	  - {low: 80, high: 100, label: "80-100 (Recommended)"}
//
// The loaded table is validated before being returned.
func LoadBandTable(path string) (BandTable, error) {
	if path == "" {
		return nil, errors.New("LoadBandTable: path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadBandTable: read file: %w", err)
	}
	var f bandTableFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("LoadBandTable: unmarshal: %w", err)
	}
	t := BandTable(f.Bands)
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("LoadBandTable: %w", err)
	}
	return t, nil
}
