package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

func TestBuildSummarizePrompt(t *testing.T) {
	t.Parallel()

	got := buildSummarizePrompt("Soft and round.", 30, 80, "")
	if !strings.Contains(got, "min_tokens=30") || !strings.Contains(got, "max_tokens=80") {
		t.Fatalf("length bounds missing: %q", got)
	}
	if strings.Contains(got, "tasting_glossary:") {
		t.Fatalf("empty glossary should not emit a glossary block: %q", got)
	}
	if !strings.HasSuffix(got, "reviews:\nSoft and round.") {
		t.Fatalf("reviews block malformed: %q", got)
	}

	withGlossary := buildSummarizePrompt("x", 30, 80, "- tannic: firm grip\n")
	if !strings.Contains(withGlossary, "tasting_glossary:\n- tannic: firm grip") {
		t.Fatalf("glossary block missing: %q", withGlossary)
	}
}

func TestSummarizeSchema_OpenAICompliant(t *testing.T) {
	t.Parallel()

	if got, ok := summarizeSchema["additionalProperties"].(bool); !ok || got {
		t.Fatalf("additionalProperties=%v, want false", summarizeSchema["additionalProperties"])
	}

	required, ok := summarizeSchema["required"].([]string)
	if !ok {
		t.Fatalf("required missing: %v", summarizeSchema["required"])
	}
	want := map[string]bool{"summary": false, "terms": false, "glossary_additions": false}
	for _, f := range required {
		if _, known := want[f]; !known {
			t.Fatalf("unexpected required field %q", f)
		}
		want[f] = true
	}
	for f, seen := range want {
		if !seen {
			t.Fatalf("field %q not required", f)
		}
	}
}

func TestOpenAISummarizer_RejectsOversizedInput(t *testing.T) {
	t.Parallel()

	// The ceiling guard fires before any API call, so a keyless client is safe.
	client := openai.NewClient()
	s := &OpenAISummarizer{
		Client:         &client,
		Model:          "m",
		Tokenizer:      countingTokenizer{n: 2000},
		MaxInputTokens: 1024,
	}

	_, err := s.Summarize(context.Background(), "text", 30, 80)
	if err == nil || !strings.Contains(err.Error(), "exceeds model ceiling") {
		t.Fatalf("err=%v", err)
	}
}

type countingTokenizer struct{ n int }

func (c countingTokenizer) Tokenize(text string) ([]string, error) {
	return make([]string, c.n), nil
}

func TestIsRetryableErrors(t *testing.T) {
	t.Parallel()

	if !isRateLimitError(errStr("429 Too Many Requests")) {
		t.Fatalf("429 should be a rate limit error")
	}
	if !isServerError(errStr("internal server error")) {
		t.Fatalf("500-class text should be a server error")
	}
	if isRateLimitError(nil) || isServerError(nil) {
		t.Fatalf("nil is never retryable")
	}
	if isRateLimitError(errStr("400 bad request")) {
		t.Fatalf("400 is not a rate limit error")
	}
}

type errStr string

func (e errStr) Error() string { return string(e) }
