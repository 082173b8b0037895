package annotate

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sunzi-skynet/contentcheck-3000/internal/textdiff"
)

// Class is the highlight classification of a single character.
type Class int

const (
	// ClassNone marks characters the diff could not account for; they are
	// emitted without highlight markup.
	ClassNone Class = iota
	ClassMigrated
	ClassNotMigrated
	// ClassMoved marks content present on both pages but relocated. It
	// renders like ClassMigrated but is excluded from shared-block counts,
	// since relocated content is not a valid alignment anchor.
	ClassMoved
)

// taggedChar pairs one non-whitespace character with its classification.
// The stream is ephemeral: built from the change list and consumed
// immediately while walking a document's text.
type taggedChar struct {
	r     rune
	class Class
}

// movedMinWords and movedMinTokenLen guard against false "moved" positives
// on short common words that incidentally appear on both pages: a changed
// segment only counts as moved if it has at least two words, or is a single
// token of at least ten characters.
const (
	movedMinWords    = 2
	movedMinTokenLen = 10
)

// buildTagged flattens the change list into one side's tagged-character
// stream. Equal changes contribute migrated characters to both sides;
// removed changes contribute to the source side only and added changes to
// the target side only. Changed runs are split on paragraph boundaries and
// each segment is tested against the other side's normalized text to detect
// merely-relocated content.
func buildTagged(changes []textdiff.Change, changedType textdiff.ChangeType, otherText string) []taggedChar {
	otherNormalized := normalizeForSearch(otherText)

	var tagged []taggedChar
	for _, change := range changes {
		switch change.Type {
		case textdiff.Equal:
			tagged = appendChars(tagged, change.Value, ClassMigrated)
		case changedType:
			for _, segment := range strings.Split(change.Value, "\n") {
				class := ClassNotMigrated
				if isMoved(segment, otherNormalized) {
					class = ClassMoved
				}
				tagged = appendChars(tagged, segment, class)
			}
		}
	}
	return tagged
}

// isMoved reports whether a changed segment is present verbatim on the other
// side and is long enough to count as relocated rather than coincidental.
func isMoved(segment, otherNormalized string) bool {
	normalized := normalizeForSearch(segment)
	if normalized == "" {
		return false
	}
	words := strings.Fields(normalized)
	if len(words) < movedMinWords {
		if len(words) != 1 || utf8.RuneCountInString(words[0]) < movedMinTokenLen {
			return false
		}
	}
	return strings.Contains(otherNormalized, normalized)
}

func appendChars(tagged []taggedChar, text string, class Class) []taggedChar {
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		tagged = append(tagged, taggedChar{r: r, class: class})
	}
	return tagged
}

// normalizeForSearch lowercases and collapses all whitespace, the shared
// normal form for verbatim containment checks.
func normalizeForSearch(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
