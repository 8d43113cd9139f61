package pipeline

// GroupSummary is the final artifact for one review group.
type GroupSummary struct {
	Variant    string  `json:"variant"`
	RatingBand string  `json:"rating_band"`
	AvgPoints  float64 `json:"avg_points"`

	// Years are the distinct vintage years covered by the group's reviews.
	Years []string `json:"wine_years,omitempty"`

	ReviewCount int `json:"review_count"`

	// ChunkCount and Passes record how the reduction ran: how many chunks the
	// group's text split into and how many chunk-summarize rounds it took.
	ChunkCount int `json:"chunk_count"`
	Passes     int `json:"passes"`

	// Summary is the customer-facing paragraph for the group.
	Summary string `json:"summary"`

	// Terms are tasting-glossary terms the model referenced for this group.
	Terms []string `json:"terms,omitempty"`
}

// IndexRecord is a single row in index.jsonl, mapping a group to its summary
// file with a shortened summary for quick scanning.
type IndexRecord struct {
	Variant     string  `json:"variant"`
	RatingBand  string  `json:"rating_band"`
	AvgPoints   float64 `json:"avg_points"`
	ReviewCount int     `json:"review_count"`
	ChunkCount  int     `json:"chunk_count"`
	Passes      int     `json:"passes"`

	SummaryPath string `json:"summary_path"`

	Summary string   `json:"summary"`
	Terms   []string `json:"terms,omitempty"`
}

// Failure is a row in failures.jsonl recording a group whose summarization
// failed. Other groups keep running.
type Failure struct {
	Variant    string `json:"variant"`
	RatingBand string `json:"rating_band"`
	Error      string `json:"error"`
}
