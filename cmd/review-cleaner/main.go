package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vinparlor/cellar-digest/pipeline"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(cfg.InputPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("open -in: %w", err).Error())
		os.Exit(1)
	}
	defer f.Close()

	reviews, stats, err := pipeline.CleanCellarExport(ctx, f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	sampled := pipeline.SampleReviews(reviews, cfg.Sample, cfg.Seed)
	if len(sampled) < len(reviews) {
		fmt.Fprintf(os.Stderr, "sampled %d of %d cleaned reviews (seed=%d)\n", len(sampled), len(reviews), cfg.Seed)
	}

	if err := pipeline.WriteReviewsCSV(cfg.OutputPath, sampled, cfg.Overwrite); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "records_parsed=%d dropped_duplicates=%d dropped_invalid=%d reviews_out=%d out=%s\n",
		stats.RecordsParsed, stats.DroppedDuplicates, stats.DroppedInvalid, len(sampled), cfg.OutputPath)
}
