// Package textdiff computes word-level change lists and similarity scores
// between two plain-text documents.
package textdiff

import (
	"math"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ChangeType classifies a single diff segment.
type ChangeType string

const (
	Equal   ChangeType = "equal"
	Added   ChangeType = "added"
	Removed ChangeType = "removed"
)

// Change is one segment of the word-level diff. Value holds the affected
// words joined by single spaces; paragraph boundaries from the input are
// preserved as newline characters.
type Change struct {
	Type  ChangeType `json:"type"`
	Value string     `json:"value"`
}

// Result is the outcome of diffing two texts.
type Result struct {
	Similarity float64  `json:"similarity"`
	Changes    []Change `json:"changes"`
}

// Diff compares two plain-text strings at word granularity.
//
// Similarity is the number of unchanged words divided by the larger of the
// two word counts, as a percentage rounded to one decimal. Using the larger
// count in the denominator makes a pure addition of k words and a pure
// removal of the same k words score identically. Two empty texts score 100.
func Diff(source, target string) Result {
	srcTokens := tokenize(source)
	dstTokens := tokenize(target)

	srcWords := countWords(srcTokens)
	dstWords := countWords(dstTokens)

	if srcWords == 0 && dstWords == 0 {
		return Result{Similarity: 100}
	}

	dmp := diffmatchpatch.New()
	enc1, enc2, tokenArray := dmp.DiffLinesToChars(encode(srcTokens), encode(dstTokens))
	diffs := dmp.DiffMain(enc1, enc2, false)
	diffs = dmp.DiffCharsToLines(diffs, tokenArray)

	var changes []Change
	unchanged := 0
	for _, d := range diffs {
		value := decode(d.Text)
		if value == "" {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			unchanged += len(strings.Fields(value))
			changes = append(changes, Change{Type: Equal, Value: value})
		case diffmatchpatch.DiffDelete:
			changes = append(changes, Change{Type: Removed, Value: value})
		case diffmatchpatch.DiffInsert:
			changes = append(changes, Change{Type: Added, Value: value})
		}
	}

	maxWords := srcWords
	if dstWords > maxWords {
		maxWords = dstWords
	}
	similarity := math.Round(float64(unchanged)/float64(maxWords)*1000) / 10

	return Result{Similarity: similarity, Changes: changes}
}

// tokenize splits text into word tokens, keeping paragraph boundaries as
// literal "\n" tokens so that later stages can split changed runs on them.
func tokenize(text string) []string {
	var tokens []string
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			tokens = append(tokens, "\n")
		}
		tokens = append(tokens, strings.Fields(line)...)
	}
	// Collapse runs of boundary tokens produced by blank lines.
	out := tokens[:0]
	for _, t := range tokens {
		if t == "\n" && len(out) > 0 && out[len(out)-1] == "\n" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func countWords(tokens []string) int {
	n := 0
	for _, t := range tokens {
		if t != "\n" {
			n++
		}
	}
	return n
}

// encode turns the token stream into one token per line so that
// DiffLinesToChars can map each token to a single rune. A paragraph
// boundary token becomes an empty line.
func encode(tokens []string) string {
	var b strings.Builder
	for _, t := range tokens {
		if t == "\n" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(t)
		b.WriteString("\n")
	}
	return b.String()
}

// decode converts diff text back from line-encoded tokens: word lines become
// space-terminated words, empty lines become paragraph boundaries.
func decode(encoded string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(encoded, "\n") {
		if line == "" {
			continue
		}
		token := strings.TrimSuffix(line, "\n")
		if token == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(token)
		b.WriteString(" ")
	}
	return b.String()
}
