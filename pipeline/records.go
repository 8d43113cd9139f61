package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// Review is one cleaned wine review record. Reviews are never mutated after
// normalization.
type Review struct {
	Variant string `json:"variant"`
	Year    string `json:"year"`
	Points  int    `json:"points"`
	Text    string `json:"text"`
}

// RawRecord is one record from the raw export: a flat key -> value map built
// from "key: value" lines.
type RawRecord map[string]string

// ParseStats reports what happened to the raw records during a clean pass.
type ParseStats struct {
	RecordsParsed     int
	DroppedDuplicates int
	DroppedInvalid    int
}

// Raw export field names (CellarTracker-style dump).
const (
	fieldVariant  = "wine/variant"
	fieldYear     = "wine/year"
	fieldWineID   = "wine/wineId"
	fieldPoints   = "review/points"
	fieldText     = "review/text"
	fieldUserID   = "review/userId"
	fieldTime     = "review/time"
	missingMarker = "N/A"
)

// ParseCellarExport streams the raw review export and calls fn for each
// record. Records are blocks of "key: value" lines separated by blank lines;
// values are HTML-unescaped. The export is typically hundreds of MB, so the
// file is never read into memory at once.
func ParseCellarExport(ctx context.Context, r io.Reader, fn func(RawRecord) error) error {
	if ctx == nil {
		return errors.New("ParseCellarExport: ctx is nil")
	}
	if r == nil {
		return errors.New("ParseCellarExport: reader is nil")
	}
	if fn == nil {
		return errors.New("ParseCellarExport: fn is nil")
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	current := RawRecord{}
	flush := func() error {
		if len(current) == 0 {
			return nil
		}
		rec := current
		current = RawRecord{}
		return fn(rec)
	}

	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}

		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := html.UnescapeString(strings.TrimSpace(line[idx+1:]))
		if key != "" {
			current[key] = value
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("ParseCellarExport: scan: %w", err)
	}

	// Catch the last record when the file doesn't end with a blank line.
	return flush()
}

// CleanCellarExport parses the raw export and normalizes it into Reviews:
// duplicates (same wine, user, and review time) keep the first occurrence,
// and records missing a required field or carrying the N/A marker are
// dropped silently but counted.
func CleanCellarExport(ctx context.Context, r io.Reader) ([]Review, ParseStats, error) {
	var (
		reviews []Review
		stats   ParseStats
		seen    = make(map[string]struct{})
	)

	err := ParseCellarExport(ctx, r, func(rec RawRecord) error {
		stats.RecordsParsed++

		dupKey := rec[fieldWineID] + "\x00" + rec[fieldUserID] + "\x00" + rec[fieldTime]
		if dupKey != "\x00\x00" {
			if _, ok := seen[dupKey]; ok {
				stats.DroppedDuplicates++
				return nil
			}
			seen[dupKey] = struct{}{}
		}

		review, ok := normalizeRecord(rec)
		if !ok {
			stats.DroppedInvalid++
			return nil
		}
		reviews = append(reviews, review)
		return nil
	})
	if err != nil {
		return nil, ParseStats{}, err
	}
	return reviews, stats, nil
}

func normalizeRecord(rec RawRecord) (Review, bool) {
	variant := strings.TrimSpace(rec[fieldVariant])
	year := strings.TrimSpace(rec[fieldYear])
	pointsRaw := strings.TrimSpace(rec[fieldPoints])
	text := strings.TrimSpace(rec[fieldText])

	for _, v := range []string{variant, year, pointsRaw, text} {
		if v == "" || v == missingMarker {
			return Review{}, false
		}
	}

	points, err := strconv.Atoi(pointsRaw)
	if err != nil {
		return Review{}, false
	}

	return Review{
		Variant: variant,
		Year:    year,
		Points:  points,
		Text:    text,
	}, true
}

// SampleReviews deterministically down-samples reviews to at most n, keeping
// the surviving reviews in their original order. n <= 0 disables sampling.
func SampleReviews(reviews []Review, n int, seed int64) []Review {
	if n <= 0 || len(reviews) <= n {
		return reviews
	}

	rng := rand.New(rand.NewSource(seed))
	idxs := rng.Perm(len(reviews))[:n]
	sort.Ints(idxs)

	out := make([]Review, 0, n)
	for _, i := range idxs {
		out = append(out, reviews[i])
	}
	return out
}
