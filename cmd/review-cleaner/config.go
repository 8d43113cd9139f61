package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	InputPath  string
	OutputPath string
	Sample     int
	Seed       int64
	Overwrite  bool
}

func (c Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("missing -in")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("missing -out")
	}
	if c.Sample < 0 {
		return fmt.Errorf("sample must be >= 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		InputPath:  filepath.FromSlash("data/cellartracker.txt"),
		OutputPath: filepath.FromSlash("data/cleaned_wine_reviews.csv"),
		Sample:     50000,
		Seed:       42,
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.InputPath, "in", cfg.InputPath, "Path to the raw review export (key: value records separated by blank lines)")
	fs.StringVar(&cfg.OutputPath, "out", cfg.OutputPath, "Path for the cleaned review CSV")
	fs.IntVar(&cfg.Sample, "sample", cfg.Sample, "Deterministically down-sample to at most N cleaned reviews (0 = keep all)")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for the sampling RNG")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "Overwrite an existing output file")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nExamples:")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/review-cleaner -overwrite")
		fmt.Fprintln(fs.Output(), "  go run ./cmd/review-cleaner -in data/cellartracker.txt -out data/cleaned_wine_reviews.csv -sample 0")
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.InputPath = filepath.Clean(cfg.InputPath)
	cfg.OutputPath = filepath.Clean(cfg.OutputPath)
	return cfg, nil
}
