package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vinparlor/cellar-digest/pipeline/fileutils"
)

// BuildIndexRecord creates a stable index row for a group summary artifact.
func BuildIndexRecord(gs GroupSummary, summaryPath string) IndexRecord {
	return IndexRecord{
		Variant:     gs.Variant,
		RatingBand:  gs.RatingBand,
		AvgPoints:   gs.AvgPoints,
		ReviewCount: gs.ReviewCount,
		ChunkCount:  gs.ChunkCount,
		Passes:      gs.Passes,
		SummaryPath: summaryPath,
		Summary:     strings.TrimSpace(gs.Summary),
		Terms:       dedupeStrings(gs.Terms),
	}
}

var groupSummariesCSVHeader = []string{
	"variant", "rating_band", "avg_points", "wine_years", "review_count", "chunk_count", "passes", "summary",
}

// WriteGroupSummariesCSV writes the output summary table atomically. Rows are
// written in the order given, which callers keep sorted by group key.
func WriteGroupSummariesCSV(path string, summaries []GroupSummary) error {
	if path == "" {
		return errors.New("WriteGroupSummariesCSV: path is empty")
	}

	rows := make([][]string, 0, len(summaries))
	for _, gs := range summaries {
		rows = append(rows, []string{
			gs.Variant,
			gs.RatingBand,
			strconv.FormatFloat(gs.AvgPoints, 'f', 2, 64),
			strings.Join(gs.Years, ";"),
			strconv.Itoa(gs.ReviewCount),
			strconv.Itoa(gs.ChunkCount),
			strconv.Itoa(gs.Passes),
			gs.Summary,
		})
	}
	if err := fileutils.WriteCSVFileAtomic(path, groupSummariesCSVHeader, rows); err != nil {
		return fmt.Errorf("WriteGroupSummariesCSV: %w", err)
	}
	return nil
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
