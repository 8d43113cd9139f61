package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrReductionDepth is returned when a group's summaries still exceed the
// chunk bound after the configured number of reduction passes.
var ErrReductionDepth = errors.New("reduction did not converge within max passes")

// Summarizer is the external summarization collaborator. minLen and maxLen
// are target output lengths in tokens; honoring them is the collaborator's
// contract. Implementations may block for a long time and must respect ctx.
type Summarizer interface {
	Summarize(ctx context.Context, text string, minLen, maxLen int) (string, error)
}

// ReduceOptions bounds one group reduction.
type ReduceOptions struct {
	// MaxTokensPerChunk caps chunk size. It must stay under the model's hard
	// input ceiling with headroom for prompt scaffolding and special tokens.
	MaxTokensPerChunk int

	// MinSummaryTokens and MaxSummaryTokens bound each summary call's output.
	MinSummaryTokens int
	MaxSummaryTokens int

	// MaxPasses caps how many chunk-summarize rounds a single group may take
	// before reduction fails with ErrReductionDepth. Summaries are much
	// shorter than their sources, so with the reference configuration one
	// merge pass covers groups thousands of chunks wide; the cap is a guard,
	// not a tuning knob.
	MaxPasses int
}

// DefaultReduceOptions returns the reference configuration: 900-token chunks
// against a 1024-token model ceiling, 30-80 token summaries, 4 passes.
func DefaultReduceOptions() ReduceOptions {
	return ReduceOptions{
		MaxTokensPerChunk: 900,
		MinSummaryTokens:  30,
		MaxSummaryTokens:  80,
		MaxPasses:         4,
	}
}

func (o ReduceOptions) validate() error {
	if o.MaxTokensPerChunk <= 0 {
		return errors.New("MaxTokensPerChunk must be > 0")
	}
	if o.MinSummaryTokens <= 0 || o.MaxSummaryTokens < o.MinSummaryTokens {
		return fmt.Errorf("summary bounds invalid: min=%d max=%d", o.MinSummaryTokens, o.MaxSummaryTokens)
	}
	if o.MaxPasses <= 0 {
		return errors.New("MaxPasses must be > 0")
	}
	return nil
}

// Reduction is the result of reducing one group to a single summary.
type Reduction struct {
	Summary    string
	ChunkCount int
	Passes     int
}

// EffectiveMaxLength shrinks the summary length cap for short inputs so the
// model isn't asked to pad: min(maxLen, max(minLen+5, 80% of input tokens)).
func EffectiveMaxLength(minLen, maxLen, inputTokens int) int {
	dynamic := inputTokens * 8 / 10
	if dynamic < minLen+5 {
		dynamic = minLen + 5
	}
	if dynamic > maxLen {
		return maxLen
	}
	return dynamic
}

// ReduceGroup summarizes a group's member texts down to one summary:
//
//  1. chunk the concatenated text at MaxTokensPerChunk,
//  2. summarize each chunk independently, in order,
//  3. a single chunk's summary is the final summary; otherwise the chunk
//     summaries are joined and either re-chunked (when the join still exceeds
//     the bound) or summarized once more to produce the final summary.
//
// Each round strictly shrinks the text, so the loop terminates; MaxPasses
// guards against a collaborator that doesn't honor its length contract.
func ReduceGroup(ctx context.Context, texts []string, tok Tokenizer, s Summarizer, opts ReduceOptions) (Reduction, error) {
	if ctx == nil {
		return Reduction{}, errors.New("ReduceGroup: ctx is nil")
	}
	if tok == nil {
		return Reduction{}, errors.New("ReduceGroup: tokenizer is nil")
	}
	if s == nil {
		return Reduction{}, errors.New("ReduceGroup: summarizer is nil")
	}
	if err := opts.validate(); err != nil {
		return Reduction{}, fmt.Errorf("ReduceGroup: %w", err)
	}
	if len(texts) == 0 {
		return Reduction{}, errors.New("ReduceGroup: no texts")
	}

	current := texts
	chunkCount := 0

	for pass := 1; ; pass++ {
		if pass > opts.MaxPasses {
			return Reduction{}, fmt.Errorf("ReduceGroup: %w (max=%d)", ErrReductionDepth, opts.MaxPasses)
		}
		select {
		case <-ctx.Done():
			return Reduction{}, ctx.Err()
		default:
		}

		chunks, err := ChunkText(current, tok, opts.MaxTokensPerChunk)
		if err != nil {
			return Reduction{}, fmt.Errorf("ReduceGroup: chunk pass %d: %w", pass, err)
		}
		if len(chunks) == 0 {
			return Reduction{}, errors.New("ReduceGroup: texts tokenize to nothing")
		}
		if pass == 1 {
			chunkCount = len(chunks)
		}

		summaries := make([]string, 0, len(chunks))
		for i, chunk := range chunks {
			summary, err := summarizeBounded(ctx, s, tok, chunk, opts)
			if err != nil {
				return Reduction{}, fmt.Errorf("ReduceGroup: summarize chunk %d/%d pass %d: %w", i+1, len(chunks), pass, err)
			}
			summaries = append(summaries, summary)
		}

		if len(summaries) == 1 {
			return Reduction{Summary: summaries[0], ChunkCount: chunkCount, Passes: pass}, nil
		}

		joined := strings.Join(summaries, " ")
		joinedTokens, err := CountTokens(tok, joined)
		if err != nil {
			return Reduction{}, fmt.Errorf("ReduceGroup: count joined tokens pass %d: %w", pass, err)
		}
		if joinedTokens > opts.MaxTokensPerChunk {
			// Still too long for one summarization call: chunk again.
			current = []string{joined}
			continue
		}

		final, err := summarizeBounded(ctx, s, tok, joined, opts)
		if err != nil {
			return Reduction{}, fmt.Errorf("ReduceGroup: summarize merge pass %d: %w", pass, err)
		}
		return Reduction{Summary: final, ChunkCount: chunkCount, Passes: pass}, nil
	}
}

func summarizeBounded(ctx context.Context, s Summarizer, tok Tokenizer, text string, opts ReduceOptions) (string, error) {
	inputTokens, err := CountTokens(tok, text)
	if err != nil {
		return "", err
	}
	maxLen := EffectiveMaxLength(opts.MinSummaryTokens, opts.MaxSummaryTokens, inputTokens)
	summary, err := s.Summarize(ctx, text, opts.MinSummaryTokens, maxLen)
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", errors.New("summarizer returned empty summary")
	}
	return summary, nil
}
