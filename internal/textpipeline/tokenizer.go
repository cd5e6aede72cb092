// Package textpipeline implements the chunked text extraction codec and
// tokenizer that feed the word index (§4.4).
package textpipeline

import (
	"regexp"

	"golang.org/x/text/cases"
)

var wordRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

var foldCaser = cases.Fold()

// TokenizeOptions drives per-field tokenisation bounds (§4.4 "Tokenisation
// parameters").
type TokenizeOptions struct {
	MaxWordLength   int
	MinWordLength   int
	MaxWordsToIndex int
	Filter          bool
	Delimited       bool
}

// DefaultTokenizeOptions mirrors Tracker's historical field defaults.
func DefaultTokenizeOptions() TokenizeOptions {
	return TokenizeOptions{
		MaxWordLength:   30,
		MinWordLength:   3,
		MaxWordsToIndex: 10000,
		Filter:          true,
		Delimited:       true,
	}
}

// Tokenize splits text into lowercase, locale-folded words, dropping any
// token shorter or longer than the configured bounds and truncating at
// MaxWordsToIndex.
func Tokenize(text string, opts TokenizeOptions) []string {
	matches := wordRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(matches))

	for _, m := range matches {
		if opts.MaxWordsToIndex > 0 && len(tokens) >= opts.MaxWordsToIndex {
			break
		}
		if opts.MinWordLength > 0 && len([]rune(m)) < opts.MinWordLength {
			continue
		}
		if opts.MaxWordLength > 0 && len([]rune(m)) > opts.MaxWordLength {
			continue
		}
		tokens = append(tokens, foldCaser.String(m))
	}
	return tokens
}

// ScoreMap tallies token frequency ("add (token, 1) to a word-score map",
// §4.4 "Chunked compression").
func ScoreMap(tokens []string) map[string]int {
	scores := make(map[string]int, len(tokens))
	for _, t := range tokens {
		scores[t]++
	}
	return scores
}
