package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/vinparlor/cellar-digest/pipeline/fileutils"
)

// Glossary is a cross-group evolving glossary of tasting terms, kept so the
// model uses consistent vocabulary across a run.
type Glossary struct {
	Version int             `json:"version"`
	Entries []GlossaryEntry `json:"entries"`
}

// GlossaryEntry is one tasting term.
type GlossaryEntry struct {
	Term       string `json:"term"`
	Definition string `json:"definition,omitempty"`
	Count      int    `json:"count"`

	// Variants are the wine variants whose summaries referenced the term.
	Variants []string `json:"variants,omitempty"`
}

// GlossaryAddition is a model-proposed term to add/update in the glossary.
type GlossaryAddition struct {
	Term       string `json:"term"`
	Definition string `json:"definition,omitempty"`
}

// LoadGlossary reads a glossary JSON file. A missing file yields an empty
// glossary, not an error.
func LoadGlossary(path string) (Glossary, error) {
	if path == "" {
		return Glossary{}, errors.New("LoadGlossary: path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Glossary{Version: 1, Entries: []GlossaryEntry{}}, nil
		}
		return Glossary{}, fmt.Errorf("LoadGlossary: read file: %w", err)
	}
	var g Glossary
	if err := json.Unmarshal(b, &g); err != nil {
		return Glossary{}, fmt.Errorf("LoadGlossary: unmarshal: %w", err)
	}
	if g.Version == 0 {
		g.Version = 1
	}
	if g.Entries == nil {
		g.Entries = []GlossaryEntry{}
	}
	return g, nil
}

// SaveGlossary writes the glossary JSON file atomically.
func SaveGlossary(path string, g Glossary) error {
	if path == "" {
		return errors.New("SaveGlossary: path is empty")
	}
	if err := fileutils.WriteJSONFileAtomic(path, g, true); err != nil {
		return fmt.Errorf("SaveGlossary: %w", err)
	}
	return nil
}

// MergeGlossary applies additions proposed while summarizing variant, bumping
// counts for known terms, and returns the normalized keys that were touched.
// Entries stay sorted highest count first, then term.
func MergeGlossary(g *Glossary, additions []GlossaryAddition, variant string) []string {
	if g == nil {
		return nil
	}
	if g.Version == 0 {
		g.Version = 1
	}
	if g.Entries == nil {
		g.Entries = []GlossaryEntry{}
	}

	index := make(map[string]int, len(g.Entries))
	for i := range g.Entries {
		key := normalizeGlossaryKey(g.Entries[i].Term)
		if key != "" {
			index[key] = i
		}
	}

	seenKeys := make(map[string]struct{}, len(additions))
	for _, a := range additions {
		key := normalizeGlossaryKey(a.Term)
		if key == "" {
			continue
		}
		if _, ok := seenKeys[key]; ok {
			continue
		}
		seenKeys[key] = struct{}{}

		def := strings.TrimSpace(a.Definition)
		if i, ok := index[key]; ok {
			e := &g.Entries[i]
			e.Count++
			e.Variants = appendVariant(e.Variants, variant)
			// Prefer a longer non-empty definition.
			if def != "" && len(def) > len(strings.TrimSpace(e.Definition)) {
				e.Definition = def
			}
			continue
		}

		g.Entries = append(g.Entries, GlossaryEntry{
			Term:       strings.TrimSpace(a.Term),
			Definition: def,
			Count:      1,
			Variants:   appendVariant(nil, variant),
		})
		index[key] = len(g.Entries) - 1
	}

	sort.SliceStable(g.Entries, func(i, j int) bool {
		if g.Entries[i].Count != g.Entries[j].Count {
			return g.Entries[i].Count > g.Entries[j].Count
		}
		return strings.ToLower(g.Entries[i].Term) < strings.ToLower(g.Entries[j].Term)
	})

	terms := make([]string, 0, len(seenKeys))
	for key := range seenKeys {
		terms = append(terms, key)
	}
	sort.Strings(terms)
	return terms
}

// CullGlossary removes entries with Count < minCount.
func CullGlossary(g *Glossary, minCount int) {
	if g == nil || minCount <= 1 {
		return
	}
	out := g.Entries[:0]
	for _, e := range g.Entries {
		if e.Count >= minCount {
			out = append(out, e)
		}
	}
	g.Entries = out
}

func appendVariant(variants []string, variant string) []string {
	variant = strings.TrimSpace(variant)
	if variant == "" {
		return variants
	}
	for _, v := range variants {
		if strings.EqualFold(v, variant) {
			return variants
		}
	}
	return append(variants, variant)
}

func normalizeGlossaryKey(term string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return ""
	}
	return strings.ToLower(term)
}
