package pipeline

import (
	"errors"
	"strings"
)

// ChunkTokens windows a token stream into slices of at most maxTokens each.
// The windows partition the input: every token appears in exactly one window,
// in original order. Sub-slices alias the input.
func ChunkTokens(tokens []string, maxTokens int) [][]string {
	if maxTokens <= 0 || len(tokens) <= maxTokens {
		return [][]string{tokens}
	}
	out := make([][]string, 0, (len(tokens)+maxTokens-1)/maxTokens)
	for start := 0; start < len(tokens); start += maxTokens {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, tokens[start:end])
	}
	return out
}

// ChunkText joins the member texts with single spaces, tokenizes once, and
// windows the token stream into chunks of at most maxTokens tokens. Chunk
// boundaries fall only on token boundaries. If the whole text fits under the
// bound, exactly one chunk is returned.
//
// This is a pure function of (texts, tokenizer, bound); it holds no state
// across calls.
func ChunkText(texts []string, tok Tokenizer, maxTokens int) ([]string, error) {
	if tok == nil {
		return nil, errors.New("ChunkText: tokenizer is nil")
	}
	if maxTokens <= 0 {
		return nil, errors.New("ChunkText: maxTokens must be > 0")
	}

	combined := strings.Join(texts, " ")
	tokens, err := tok.Tokenize(combined)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	windows := ChunkTokens(tokens, maxTokens)
	chunks := make([]string, 0, len(windows))
	for _, w := range windows {
		chunks = append(chunks, strings.Join(w, " "))
	}
	return chunks, nil
}
