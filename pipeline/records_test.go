package pipeline

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const rawExportSample = `wine/name: Example Merlot 2010
wine/wineId: 11
wine/variant: Merlot
wine/year: 2010
review/points: 88
review/time: 1100
review/userId: 5
review/text: Dark cherry &amp; plum, soft finish.

wine/wineId: 12
wine/variant: Syrah
wine/year: 2011
review/points: 91
review/time: 1200
review/userId: 6
review/text: Peppery and dense.`

func TestParseCellarExport_SplitsRecordsAndUnescapes(t *testing.T) {
	t.Parallel()

	var records []RawRecord
	err := ParseCellarExport(context.Background(), strings.NewReader(rawExportSample), func(rec RawRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("ParseCellarExport: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records)=%d, want 2", len(records))
	}
	if got := records[0]["review/text"]; got != "Dark cherry & plum, soft finish." {
		t.Fatalf("record0 text=%q, want unescaped ampersand", got)
	}
	if got := records[1]["wine/variant"]; got != "Syrah" {
		t.Fatalf("record1 variant=%q, want Syrah", got)
	}
}

func TestCleanCellarExport_DropsDuplicatesAndInvalid(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		"wine/wineId: 11",
		"wine/variant: Merlot",
		"wine/year: 2010",
		"review/points: 88",
		"review/time: 1100",
		"review/userId: 5",
		"review/text: Solid and round.",
		"",
		// Same wine, user, and time: duplicate of the first record.
		"wine/wineId: 11",
		"wine/variant: Merlot",
		"wine/year: 2010",
		"review/points: 88",
		"review/time: 1100",
		"review/userId: 5",
		"review/text: Solid and round.",
		"",
		"wine/wineId: 12",
		"wine/variant: Syrah",
		"wine/year: N/A",
		"review/points: 91",
		"review/time: 1200",
		"review/userId: 6",
		"review/text: Peppery.",
		"",
		"wine/wineId: 13",
		"wine/variant: Zinfandel",
		"wine/year: 2012",
		"review/points: 85",
		"review/time: 1300",
		"review/userId: 7",
	}, "\n")

	reviews, stats, err := CleanCellarExport(context.Background(), strings.NewReader(raw))
	if err != nil {
		t.Fatalf("CleanCellarExport: %v", err)
	}
	if len(reviews) != 1 {
		t.Fatalf("len(reviews)=%d, want 1", len(reviews))
	}
	want := Review{Variant: "Merlot", Year: "2010", Points: 88, Text: "Solid and round."}
	if reviews[0] != want {
		t.Fatalf("reviews[0]=%+v, want %+v", reviews[0], want)
	}
	if stats.RecordsParsed != 4 {
		t.Fatalf("RecordsParsed=%d, want 4", stats.RecordsParsed)
	}
	if stats.DroppedDuplicates != 1 {
		t.Fatalf("DroppedDuplicates=%d, want 1", stats.DroppedDuplicates)
	}
	if stats.DroppedInvalid != 2 {
		t.Fatalf("DroppedInvalid=%d, want 2", stats.DroppedInvalid)
	}
}

func TestSampleReviews_DeterministicAndOrderPreserving(t *testing.T) {
	t.Parallel()

	reviews := make([]Review, 10)
	for i := range reviews {
		reviews[i] = Review{Variant: "Merlot", Year: "2010", Points: 80 + i, Text: "t"}
	}

	a := SampleReviews(reviews, 4, 42)
	b := SampleReviews(reviews, 4, 42)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different samples:\n%v\n%v", a, b)
	}
	if len(a) != 4 {
		t.Fatalf("len(sample)=%d, want 4", len(a))
	}
	for i := 1; i < len(a); i++ {
		if a[i].Points <= a[i-1].Points {
			t.Fatalf("sample not in input order at %d: %v", i, a)
		}
	}

	if got := SampleReviews(reviews, 0, 42); len(got) != len(reviews) {
		t.Fatalf("n=0 should keep all reviews, got %d", len(got))
	}
	if got := SampleReviews(reviews, 100, 42); len(got) != len(reviews) {
		t.Fatalf("n>len should keep all reviews, got %d", len(got))
	}
}

func TestReviewsCSV_RoundTrip(t *testing.T) {
	t.Parallel()

	reviews := []Review{
		{Variant: "Merlot", Year: "2010", Points: 88, Text: "Dark cherry, \"soft\" finish.\nLong."},
		{Variant: "Syrah", Year: "2011", Points: 91, Text: "Peppery."},
	}

	path := filepath.Join(t.TempDir(), "reviews.csv")
	if err := WriteReviewsCSV(path, reviews, false); err != nil {
		t.Fatalf("WriteReviewsCSV: %v", err)
	}
	if err := WriteReviewsCSV(path, reviews, false); err == nil {
		t.Fatalf("WriteReviewsCSV should refuse to overwrite without the flag")
	}
	if err := WriteReviewsCSV(path, reviews, true); err != nil {
		t.Fatalf("WriteReviewsCSV overwrite: %v", err)
	}

	got, err := ReadReviewsCSV(path)
	if err != nil {
		t.Fatalf("ReadReviewsCSV: %v", err)
	}
	if !reflect.DeepEqual(got, reviews) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, reviews)
	}
}
