package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/vinparlor/cellar-digest/pipeline/fileutils"
)

var reviewsCSVHeader = []string{"variant", "year", "points", "text"}

// WriteReviewsCSV writes the cleaned review table atomically.
func WriteReviewsCSV(path string, reviews []Review, overwrite bool) error {
	if path == "" {
		return errors.New("WriteReviewsCSV: path is empty")
	}
	if !overwrite && fileutils.FileExists(path) {
		return fmt.Errorf("WriteReviewsCSV: output file already exists: %s", path)
	}

	rows := make([][]string, 0, len(reviews))
	for _, r := range reviews {
		rows = append(rows, []string{r.Variant, r.Year, strconv.Itoa(r.Points), r.Text})
	}
	if err := fileutils.WriteCSVFileAtomic(path, reviewsCSVHeader, rows); err != nil {
		return fmt.Errorf("WriteReviewsCSV: %w", err)
	}
	return nil
}

// ReadReviewsCSV loads a cleaned review table produced by WriteReviewsCSV.
func ReadReviewsCSV(path string) ([]Review, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ReadReviewsCSV: open: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(reviewsCSVHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ReadReviewsCSV: read header: %w", err)
	}
	for i, want := range reviewsCSVHeader {
		if header[i] != want {
			return nil, fmt.Errorf("ReadReviewsCSV: unexpected header column %d: %q (want %q)", i, header[i], want)
		}
	}

	var reviews []Review
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadReviewsCSV: read row: %w", err)
		}
		points, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, fmt.Errorf("ReadReviewsCSV: bad points %q: %w", row[2], err)
		}
		reviews = append(reviews, Review{
			Variant: row[0],
			Year:    row[1],
			Points:  points,
			Text:    row[3],
		})
	}
	return reviews, nil
}
