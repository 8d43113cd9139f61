package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/vinparlor/cellar-digest/pipeline"
	"github.com/vinparlor/cellar-digest/pipeline/fileutils"
	"github.com/vinparlor/cellar-digest/pipeline/provider"
)

const (
	summaryFileSuffix = ".group.summary.json"
	summariesCSVName  = "summaries.csv"
	indexName         = "index.jsonl"
	failuresName      = "failures.jsonl"
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

	_ = godotenv.Load()
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" && !cfg.DryRun {
		fmt.Fprintln(os.Stderr, "missing API key: pass -api-key or set OPENAI_API_KEY")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed, err := run(ctx, cfg, apiKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d group(s) failed; see %s\n", failed, filepath.Join(cfg.OutDir, failuresName))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, apiKey string) (failed int, err error) {
	bands := pipeline.DefaultBands()
	if cfg.BandsPath != "" {
		bands, err = pipeline.LoadBandTable(cfg.BandsPath)
		if err != nil {
			return 0, err
		}
	}

	reviews, err := pipeline.ReadReviewsCSV(cfg.InputPath)
	if err != nil {
		return 0, err
	}

	groups, err := pipeline.GroupReviews(reviews, bands)
	if err != nil {
		return 0, err
	}
	kept := pipeline.FilterGroups(groups, cfg.MinReviews)
	if cfg.MaxGroups > 0 && len(kept) > cfg.MaxGroups {
		kept = kept[:cfg.MaxGroups]
	}
	fmt.Fprintf(os.Stderr, "loaded %d reviews into %d groups, %d kept (min-reviews=%d)\n",
		len(reviews), len(groups), len(kept), cfg.MinReviews)

	if cfg.DryRun {
		for _, g := range kept {
			fmt.Fprintf(os.Stdout, "variant=%q band=%q reviews=%d avg_points=%.2f years=%d\n",
				g.Key.Variant, g.Key.Band, g.Count, g.AvgPoints, len(g.Years))
		}
		fmt.Fprintf(os.Stdout, "groups_total=%d groups_kept=%d dry_run=true\n", len(groups), len(kept))
		return 0, nil
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return 0, fmt.Errorf("create -out-dir: %w", err)
	}

	tok := pipeline.NewProseTokenizer()
	client := openai.NewClient(option.WithAPIKey(apiKey))
	sum := &provider.OpenAISummarizer{
		Client:         &client,
		Model:          cfg.Model,
		Tokenizer:      tok,
		MaxInputTokens: provider.DefaultMaxInputTokens,
	}

	var glossary *pipeline.Glossary
	if cfg.GlossaryPath != "" {
		g, err := pipeline.LoadGlossary(cfg.GlossaryPath)
		if err != nil {
			return 0, err
		}
		glossary = &g
	}

	processed, skipped, failures, err := summarizeGroups(ctx, cfg, kept, tok, sum, glossary)
	if err != nil {
		return len(failures), err
	}

	if glossary != nil {
		pipeline.CullGlossary(glossary, cfg.GlossaryMinCount)
		if err := pipeline.SaveGlossary(cfg.GlossaryPath, *glossary); err != nil {
			return len(failures), err
		}
	}

	summaries, err := rebuildOutputs(cfg)
	if err != nil {
		return len(failures), err
	}
	if err := writeFailures(filepath.Join(cfg.OutDir, failuresName), failures); err != nil {
		return len(failures), err
	}

	fmt.Fprintf(os.Stdout, "groups_total=%d groups_kept=%d summarized=%d skipped=%d failed=%d indexed=%d out_dir=%s\n",
		len(groups), len(kept), processed, skipped, len(failures), len(summaries), cfg.OutDir)
	return len(failures), nil
}

type groupResult struct {
	key       pipeline.GroupKey
	skipped   bool
	additions []pipeline.GlossaryAddition
	err       error
}

// glossarySummarizer is the optional side channel a summarizer exposes for the
// evolving tasting glossary.
type glossarySummarizer interface {
	SetGlossaryExcerpt(string)
	DrainGlossaryAdditions() []pipeline.GlossaryAddition
}

// summarizeGroups runs the kept groups in batches. Within a batch up to
// cfg.Concurrency groups are summarized in parallel; between batches the
// glossary excerpt fed into prompts is refreshed from terms merged so far.
// A failed group is recorded and the run continues.
func summarizeGroups(ctx context.Context, cfg Config, groups []pipeline.ReviewGroup, tok pipeline.Tokenizer, sum pipeline.Summarizer, glossary *pipeline.Glossary) (processed, skipped int64, failures []pipeline.Failure, err error) {
	opts := pipeline.ReduceOptions{
		MaxTokensPerChunk: cfg.MaxChunkTokens,
		MinSummaryTokens:  cfg.MinSummaryTokens,
		MaxSummaryTokens:  cfg.MaxSummaryTokens,
		MaxPasses:         cfg.MaxPasses,
	}

	gsum, _ := sum.(glossarySummarizer)
	start := time.Now()
	total := len(groups)

	for lo := 0; lo < len(groups); lo += cfg.BatchSize {
		hi := lo + cfg.BatchSize
		if hi > len(groups) {
			hi = len(groups)
		}
		batch := groups[lo:hi]

		if gsum != nil && glossary != nil {
			gsum.SetGlossaryExcerpt(glossaryForPrompt(*glossary, cfg.GlossaryMaxTerms))
		}

		sem := make(chan struct{}, cfg.Concurrency)
		resCh := make(chan groupResult, len(batch))
		var wg sync.WaitGroup
		for _, g := range batch {
			wg.Add(1)
			go func(g pipeline.ReviewGroup) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				resCh <- summarizeOneGroup(ctx, cfg, g, tok, sum, gsum, opts)
			}(g)
		}
		wg.Wait()
		close(resCh)

		for res := range resCh {
			if res.err != nil {
				if errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded) {
					return processed, skipped, failures, res.err
				}
				failures = append(failures, pipeline.Failure{
					Variant:    res.key.Variant,
					RatingBand: res.key.Band,
					Error:      res.err.Error(),
				})
				fmt.Fprintf(os.Stderr, "group failed: variant=%q band=%q: %v\n", res.key.Variant, res.key.Band, res.err)
				continue
			}
			if res.skipped {
				skipped++
				continue
			}
			processed++
			if glossary != nil && len(res.additions) > 0 {
				pipeline.MergeGlossary(glossary, res.additions, res.key.Variant)
			}
			fmt.Fprintf(os.Stderr, "progress group-summarizer: %d/%d groups summarized (last=%s | %s elapsed=%s)\n",
				processed+skipped, total, res.key.Variant, res.key.Band, time.Since(start).Round(time.Second))
		}

		if glossary != nil && cfg.GlossaryPath != "" {
			if err := pipeline.SaveGlossary(cfg.GlossaryPath, *glossary); err != nil {
				return processed, skipped, failures, err
			}
		}
	}

	sort.Slice(failures, func(i, j int) bool {
		if failures[i].Variant != failures[j].Variant {
			return failures[i].Variant < failures[j].Variant
		}
		return failures[i].RatingBand < failures[j].RatingBand
	})
	return processed, skipped, failures, nil
}

func summarizeOneGroup(ctx context.Context, cfg Config, g pipeline.ReviewGroup, tok pipeline.Tokenizer, sum pipeline.Summarizer, gsum glossarySummarizer, opts pipeline.ReduceOptions) groupResult {
	outPath := groupArtifactPath(cfg.OutDir, g.Key)
	if fileutils.FileExists(outPath) && !cfg.Overwrite {
		if cfg.Resume {
			return groupResult{key: g.Key, skipped: true}
		}
		return groupResult{key: g.Key, err: fmt.Errorf("summary file exists: %s (use -resume or -overwrite)", outPath)}
	}

	reduction, err := pipeline.ReduceGroup(ctx, g.Texts, tok, sum, opts)
	if err != nil {
		return groupResult{key: g.Key, err: err}
	}

	// Drained right after the group's calls finish. With concurrent groups a
	// drain can include a neighbor's terms; counts still converge.
	var additions []pipeline.GlossaryAddition
	if gsum != nil {
		additions = gsum.DrainGlossaryAdditions()
	}
	terms := make([]string, 0, len(additions))
	for _, a := range additions {
		terms = append(terms, a.Term)
	}

	gs := pipeline.GroupSummary{
		Variant:     g.Key.Variant,
		RatingBand:  g.Key.Band,
		AvgPoints:   g.AvgPoints,
		Years:       g.Years,
		ReviewCount: g.Count,
		ChunkCount:  reduction.ChunkCount,
		Passes:      reduction.Passes,
		Summary:     reduction.Summary,
		Terms:       terms,
	}
	if err := fileutils.WriteJSONFileAtomic(outPath, gs, cfg.Pretty); err != nil {
		return groupResult{key: g.Key, err: err}
	}
	return groupResult{key: g.Key, additions: additions}
}

// groupArtifactPath names the per-group summary file from its key.
func groupArtifactPath(outDir string, key pipeline.GroupKey) string {
	variant := fileutils.SanitizeFilenameComponent(key.Variant)
	if variant == "" {
		variant = "unknown"
	}
	band := fileutils.SanitizeFilenameComponent(key.Band)
	if band == "" {
		band = "unbanded"
	}
	return filepath.Join(outDir, variant+"__"+band+summaryFileSuffix)
}

// rebuildOutputs regenerates summaries.csv and index.jsonl from the per-group
// files on disk, so resumed and partially failed runs still index everything
// completed so far.
func rebuildOutputs(cfg Config) ([]pipeline.GroupSummary, error) {
	paths, err := filepath.Glob(filepath.Join(cfg.OutDir, "*"+summaryFileSuffix))
	if err != nil {
		return nil, fmt.Errorf("rebuildOutputs: glob: %w", err)
	}
	sort.Strings(paths)

	summaries := make([]pipeline.GroupSummary, 0, len(paths))
	records := make([]pipeline.IndexRecord, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("rebuildOutputs: read %s: %w", p, err)
		}
		var gs pipeline.GroupSummary
		if err := json.Unmarshal(b, &gs); err != nil {
			return nil, fmt.Errorf("rebuildOutputs: unmarshal %s: %w", p, err)
		}
		summaries = append(summaries, gs)

		rec := pipeline.BuildIndexRecord(gs, filepath.Base(p))
		rec.Summary = fileutils.Truncate(rec.Summary, cfg.IndexSummaryMaxChars)
		records = append(records, rec)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Variant != summaries[j].Variant {
			return summaries[i].Variant < summaries[j].Variant
		}
		return summaries[i].RatingBand < summaries[j].RatingBand
	})
	sort.Slice(records, func(i, j int) bool {
		if records[i].Variant != records[j].Variant {
			return records[i].Variant < records[j].Variant
		}
		return records[i].RatingBand < records[j].RatingBand
	})

	if err := pipeline.WriteGroupSummariesCSV(filepath.Join(cfg.OutDir, summariesCSVName), summaries); err != nil {
		return nil, err
	}
	if err := writeJSONLines(filepath.Join(cfg.OutDir, indexName), len(records), func(i int) any { return records[i] }); err != nil {
		return nil, fmt.Errorf("rebuildOutputs: write index: %w", err)
	}
	return summaries, nil
}

// writeFailures writes failures.jsonl, or removes a stale one when this run
// had no failures.
func writeFailures(path string, failures []pipeline.Failure) error {
	if len(failures) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("writeFailures: remove stale file: %w", err)
		}
		return nil
	}
	if err := writeJSONLines(path, len(failures), func(i int) any { return failures[i] }); err != nil {
		return fmt.Errorf("writeFailures: %w", err)
	}
	return nil
}

func writeJSONLines(path string, n int, row func(int) any) error {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		b, err := json.Marshal(row(i))
		if err != nil {
			return err
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(b)
	}
	return fileutils.WriteFileAtomicSameDir(path, buf.Bytes(), 0o644)
}

// glossaryForPrompt renders the top glossary entries as prompt lines. Entries
// without a definition are skipped.
func glossaryForPrompt(g pipeline.Glossary, maxTerms int) string {
	if maxTerms == 0 || len(g.Entries) == 0 {
		return ""
	}
	entries := g.Entries
	if maxTerms > 0 && len(entries) > maxTerms {
		entries = entries[:maxTerms]
	}
	var b strings.Builder
	for _, e := range entries {
		term := strings.TrimSpace(e.Term)
		if term == "" {
			continue
		}
		def := strings.TrimSpace(e.Definition)
		if def == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", term, def)
	}
	return b.String()
}
