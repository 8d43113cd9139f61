package pipeline

import (
	"fmt"
	"sort"
)

// GroupKey identifies a review group: one wine variant in one rating band.
type GroupKey struct {
	Variant string `json:"variant"`
	Band    string `json:"rating_band"`
}

// ReviewGroup holds the member review texts for one (variant, band) key plus
// the aggregates carried into the output table. Texts preserve input order.
type ReviewGroup struct {
	Key       GroupKey
	Texts     []string
	AvgPoints float64
	Years     []string
	Count     int
}

// GroupReviews partitions cleaned reviews by (variant, rating band). Input
// reviews are not mutated. Groups are returned sorted by variant then band
// label so iteration order is deterministic.
func GroupReviews(reviews []Review, bands BandTable) ([]ReviewGroup, error) {
	if err := bands.Validate(); err != nil {
		return nil, fmt.Errorf("GroupReviews: %w", err)
	}

	type agg struct {
		texts  []string
		points int
		years  map[string]struct{}
	}
	byKey := make(map[GroupKey]*agg)

	for _, r := range reviews {
		band, err := bands.BandFor(r.Points)
		if err != nil {
			return nil, fmt.Errorf("GroupReviews: variant %q: %w", r.Variant, err)
		}
		key := GroupKey{Variant: r.Variant, Band: band}
		a, ok := byKey[key]
		if !ok {
			a = &agg{years: make(map[string]struct{})}
			byKey[key] = a
		}
		a.texts = append(a.texts, r.Text)
		a.points += r.Points
		a.years[r.Year] = struct{}{}
	}

	groups := make([]ReviewGroup, 0, len(byKey))
	for key, a := range byKey {
		years := make([]string, 0, len(a.years))
		for y := range a.years {
			years = append(years, y)
		}
		sort.Strings(years)

		groups = append(groups, ReviewGroup{
			Key:       key,
			Texts:     a.texts,
			AvgPoints: float64(a.points) / float64(len(a.texts)),
			Years:     years,
			Count:     len(a.texts),
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Key.Variant != groups[j].Key.Variant {
			return groups[i].Key.Variant < groups[j].Key.Variant
		}
		return groups[i].Key.Band < groups[j].Key.Band
	})
	return groups, nil
}

// FilterGroups keeps groups with at least minReviews members. Groups below
// the threshold are excluded, not errors.
func FilterGroups(groups []ReviewGroup, minReviews int) []ReviewGroup {
	if minReviews <= 1 {
		return groups
	}
	out := make([]ReviewGroup, 0, len(groups))
	for _, g := range groups {
		if g.Count >= minReviews {
			out = append(out, g)
		}
	}
	return out
}
