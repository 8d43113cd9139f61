package fileutils

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSanitizeFilenameComponent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"Pinot Noir", "Pinot_Noir"},
		{"85-89 (Very Good)", "85-89__Very_Good"},
		{"Cabernet-Shiraz", "Cabernet-Shiraz"},
		{"...", ""},
		{"  ", ""},
	}
	for _, tc := range cases {
		if got := SanitizeFilenameComponent(tc.in); got != tc.want {
			t.Fatalf("SanitizeFilenameComponent(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("  padded  ", 10); got != "padded" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("abcdefgh", 4); got != "abcd…" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("abcdefgh", 0); got != "abcdefgh" {
		t.Fatalf("max=0 should disable truncation, got %q", got)
	}
}

func TestWriteFileAtomicSameDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "out.txt")
	if err := WriteFileAtomicSameDir(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomicSameDir: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "hello\n" {
		t.Fatalf("content=%q, want trailing newline", string(b))
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp_out_") {
			t.Fatalf("leftover temp file: %s", e.Name())
		}
	}
}

func TestWriteCSVFileAtomic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	header := []string{"a", "b"}
	rows := [][]string{{"1", "x,y"}, {"2", "line\nbreak"}}
	if err := WriteCSVFileAtomic(path, header, rows); err != nil {
		t.Fatalf("WriteCSVFileAtomic: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	got, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := append([][]string{header}, rows...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\ngot  %v\nwant %v", got, want)
	}
}

func TestWriteJSONFileAtomic(t *testing.T) {
	t.Parallel()

	type payload struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}
	path := filepath.Join(t.TempDir(), "out.json")
	if err := WriteJSONFileAtomic(path, payload{Name: "merlot", N: 3}, true); err != nil {
		t.Fatalf("WriteJSONFileAtomic: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "\n  \"name\"") {
		t.Fatalf("pretty output not indented: %q", string(b))
	}

	var got payload
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != (payload{Name: "merlot", N: 3}) {
		t.Fatalf("got %+v", got)
	}
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if FileExists(path) {
		t.Fatalf("FileExists should be false for a missing file")
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !FileExists(path) {
		t.Fatalf("FileExists should be true after write")
	}
}

func TestSanitizeNewlines(t *testing.T) {
	t.Parallel()

	if got := SanitizeNewlines("a\r\nb\rc\nd"); got != "a\\nb\\nc\\nd" {
		t.Fatalf("got %q", got)
	}
}
