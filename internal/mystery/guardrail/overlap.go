package guardrail

import (
	"strings"
	"unicode"
)

// Overlap scores how much of reference text a's significant words appear
// in text b, in [0, 1]. The engine only depends on this interface so the
// word-overlap heuristic can be swapped for embedding similarity without
// touching check control flow.
type Overlap interface {
	Score(a, b string) float64
}

// WordOverlap is the default strategy: the fraction of a's significant
// (stopword-filtered, lowercased) words that also occur in b.
type WordOverlap struct{}

func (WordOverlap) Score(a, b string) float64 {
	aw := significantWords(a)
	if len(aw) == 0 {
		return 0
	}
	bset := make(map[string]bool)
	for _, w := range significantWords(b) {
		bset[w] = true
	}
	hits := 0
	for _, w := range aw {
		if bset[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(aw))
}

// stopwords lists common English words excluded from overlap scoring.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "what": true, "which": true, "who": true, "how": true,
	"when": true, "where": true, "why": true, "you": true, "me": true,
	"i": true, "my": true, "your": true, "we": true, "they": true,
	"he": true, "she": true, "her": true, "him": true, "us": true,
	"them": true,
}

// significantWords splits text into unique lowercase non-stopword tokens.
func significantWords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]bool)
	var tokens []string
	for _, w := range words {
		if len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}
