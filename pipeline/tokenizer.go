package pipeline

import (
	"fmt"

	"github.com/tsawler/prose/v3"
)

// Tokenizer splits text into the atomic units counted against model length
// limits. It must be deterministic: the chunker relies on tokenizing the same
// text twice yielding the same tokens.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
}

// ProseTokenizer tokenizes with the prose NLP library. Sentence segmentation,
// POS tagging, and entity extraction are disabled; only the word tokenizer
// runs.
type ProseTokenizer struct{}

// NewProseTokenizer returns the default tokenizer used by the CLIs.
func NewProseTokenizer() ProseTokenizer {
	return ProseTokenizer{}
}

// Tokenize implements Tokenizer.
func (ProseTokenizer) Tokenize(text string) ([]string, error) {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, fmt.Errorf("ProseTokenizer: %w", err)
	}

	toks := doc.Tokens()
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.Text)
	}
	return out, nil
}

// CountTokens returns the token count of text under tok.
func CountTokens(tok Tokenizer, text string) (int, error) {
	if tok == nil {
		return 0, fmt.Errorf("CountTokens: tokenizer is nil")
	}
	tokens, err := tok.Tokenize(text)
	if err != nil {
		return 0, err
	}
	return len(tokens), nil
}
