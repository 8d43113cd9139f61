package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	InputPath string
	OutDir    string

	Model  string
	APIKey string

	BandsPath  string
	MinReviews int
	MaxGroups  int

	MaxChunkTokens   int
	MinSummaryTokens int
	MaxSummaryTokens int
	MaxPasses        int

	Concurrency int
	BatchSize   int

	GlossaryPath     string
	GlossaryMaxTerms int
	GlossaryMinCount int

	IndexSummaryMaxChars int

	Resume    bool
	Overwrite bool
	Pretty    bool
	DryRun    bool
}

func (c Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("missing -in")
	}
	if c.OutDir == "" {
		return fmt.Errorf("missing -out-dir")
	}
	if !c.DryRun && c.Model == "" {
		return fmt.Errorf("missing -model")
	}
	if c.MinReviews < 1 {
		return fmt.Errorf("min-reviews must be >= 1")
	}
	if c.MaxGroups < 0 {
		return fmt.Errorf("max-groups must be >= 0")
	}
	if c.MaxChunkTokens < 1 {
		return fmt.Errorf("max-chunk-tokens must be >= 1")
	}
	if c.MinSummaryTokens < 1 {
		return fmt.Errorf("min-summary-tokens must be >= 1")
	}
	if c.MaxSummaryTokens < c.MinSummaryTokens {
		return fmt.Errorf("max-summary-tokens must be >= min-summary-tokens")
	}
	if c.MaxPasses < 1 {
		return fmt.Errorf("max-passes must be >= 1")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch-size must be >= 1")
	}
	if c.GlossaryMaxTerms < 0 {
		return fmt.Errorf("glossary-max-terms must be >= 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		InputPath:            filepath.FromSlash("data/cleaned_wine_reviews.csv"),
		OutDir:               filepath.FromSlash("data/summaries"),
		Model:                "gpt-5-mini",
		MinReviews:           5,
		MaxChunkTokens:       900,
		MinSummaryTokens:     30,
		MaxSummaryTokens:     80,
		MaxPasses:            4,
		Concurrency:          4,
		BatchSize:            10,
		GlossaryMaxTerms:     40,
		GlossaryMinCount:     2,
		IndexSummaryMaxChars: 600,
		Resume:               true,
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.InputPath, "in", cfg.InputPath, "Path to the cleaned review CSV")
	fs.StringVar(&cfg.OutDir, "out-dir", cfg.OutDir, "Directory for per-group summary files, summaries.csv and index.jsonl")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model for summarization")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (falls back to OPENAI_API_KEY)")
	fs.StringVar(&cfg.BandsPath, "bands", "", "Optional YAML file overriding the rating band table")
	fs.IntVar(&cfg.MinReviews, "min-reviews", cfg.MinReviews, "Skip groups with fewer reviews than this")
	fs.IntVar(&cfg.MaxGroups, "max-groups", 0, "Process at most N groups (0 = all); useful for smoke runs")
	fs.IntVar(&cfg.MaxChunkTokens, "max-chunk-tokens", cfg.MaxChunkTokens, "Token bound per chunk sent to the model")
	fs.IntVar(&cfg.MinSummaryTokens, "min-summary-tokens", cfg.MinSummaryTokens, "Minimum summary length in tokens")
	fs.IntVar(&cfg.MaxSummaryTokens, "max-summary-tokens", cfg.MaxSummaryTokens, "Maximum summary length in tokens")
	fs.IntVar(&cfg.MaxPasses, "max-passes", cfg.MaxPasses, "Reduction pass cap per group before the group is recorded as failed")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Groups summarized in parallel within a batch")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Groups per batch; the tasting glossary is refreshed between batches")
	fs.StringVar(&cfg.GlossaryPath, "glossary", "", "Optional tasting glossary JSON maintained across batches and runs")
	fs.IntVar(&cfg.GlossaryMaxTerms, "glossary-max-terms", cfg.GlossaryMaxTerms, "Glossary terms included in prompts (0 = none)")
	fs.IntVar(&cfg.GlossaryMinCount, "glossary-min-count", cfg.GlossaryMinCount, "Cull glossary entries seen fewer times than this at end of run")
	fs.IntVar(&cfg.IndexSummaryMaxChars, "index-summary-max-chars", cfg.IndexSummaryMaxChars, "Truncate summaries in index.jsonl to this many characters (0 = no limit)")
	fs.BoolVar(&cfg.Resume, "resume", cfg.Resume, "Skip groups whose summary file already exists")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "Re-summarize groups whose summary file already exists")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Indent per-group JSON output")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Report the groups that would be summarized, then exit")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExamples:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/group-summarizer -dry-run")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/group-summarizer -in data/cleaned_wine_reviews.csv -out-dir data/summaries -glossary data/glossary.json")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/group-summarizer -max-groups 3 -concurrency 1 -pretty")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.InputPath = filepath.Clean(cfg.InputPath)
	cfg.OutDir = filepath.Clean(cfg.OutDir)
	return cfg, nil
}
