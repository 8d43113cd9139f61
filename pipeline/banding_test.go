package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultBands_CoversDomain(t *testing.T) {
	t.Parallel()

	bands := DefaultBands()
	if err := bands.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	low, high := bands.Domain()
	if low != 50 || high != 100 {
		t.Fatalf("Domain=%d..%d, want 50..100", low, high)
	}
	for p := low; p <= high; p++ {
		if _, err := bands.BandFor(p); err != nil {
			t.Fatalf("BandFor(%d): %v", p, err)
		}
	}

	if got, _ := bands.BandFor(85); got != "85-89 (Very Good)" {
		t.Fatalf("BandFor(85)=%q", got)
	}
	if got, _ := bands.BandFor(100); got != "95-100 (Perfect)" {
		t.Fatalf("BandFor(100)=%q", got)
	}
}

func TestBandFor_OutOfDomain(t *testing.T) {
	t.Parallel()

	bands := DefaultBands()
	for _, p := range []int{49, 101, -1} {
		_, err := bands.BandFor(p)
		if !errors.Is(err, ErrInvalidScore) {
			t.Fatalf("BandFor(%d) err=%v, want ErrInvalidScore", p, err)
		}
	}
}

func TestBandTable_ValidateRejectsBadTables(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		table BandTable
	}{
		{"empty", BandTable{}},
		{"gap", BandTable{{50, 59, "a"}, {61, 100, "b"}}},
		{"overlap", BandTable{{50, 60, "a"}, {60, 100, "b"}}},
		{"inverted", BandTable{{60, 50, "a"}}},
		{"empty label", BandTable{{50, 100, ""}}},
	}
	for _, tc := range cases {
		if err := tc.table.Validate(); err == nil {
			t.Fatalf("%s: Validate should fail", tc.name)
		}
	}
}

func TestLoadBandTable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bands.yaml")
	doc := `bands:
  - {low: 50, high: 79, label: "50-79 (Below Average)"}
  - {low: 80, high: 100, label: "80-100 (Recommended)"}
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	table, err := LoadBandTable(path)
	if err != nil {
		t.Fatalf("LoadBandTable: %v", err)
	}
	if len(table) != 2 {
		t.Fatalf("len(table)=%d, want 2", len(table))
	}
	if got, _ := table.BandFor(79); got != "50-79 (Below Average)" {
		t.Fatalf("BandFor(79)=%q", got)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("bands:\n  - {low: 50, high: 59, label: a}\n  - {low: 70, high: 100, label: b}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadBandTable(bad); err == nil {
		t.Fatalf("LoadBandTable should reject a table with gaps")
	}
}
