package textdiff

import (
	"strings"
	"testing"
)

func TestDiffIdenticalTexts(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	result := Diff(text, text)

	if result.Similarity != 100 {
		t.Errorf("expected similarity 100, got %v", result.Similarity)
	}
	if len(result.Changes) != 1 {
		t.Fatalf("expected a single change, got %d", len(result.Changes))
	}
	if result.Changes[0].Type != Equal {
		t.Errorf("expected equal change, got %s", result.Changes[0].Type)
	}
	if strings.TrimSpace(result.Changes[0].Value) != text {
		t.Errorf("equal change does not span the full text: %q", result.Changes[0].Value)
	}
}

func TestDiffBothEmpty(t *testing.T) {
	result := Diff("", "")
	if result.Similarity != 100 {
		t.Errorf("expected similarity 100 for two empty texts, got %v", result.Similarity)
	}
	if len(result.Changes) != 0 {
		t.Errorf("expected no changes, got %d", len(result.Changes))
	}
}

func TestDiffDenominatorSymmetry(t *testing.T) {
	base := "alpha beta gamma delta epsilon"
	extended := base + " zeta eta theta"

	added := Diff(base, extended)
	removed := Diff(extended, base)

	if added.Similarity != removed.Similarity {
		t.Errorf("addition scored %v but removal scored %v; expected identical",
			added.Similarity, removed.Similarity)
	}
}

func TestDiffSimilarityValue(t *testing.T) {
	// 5 unchanged words out of max(5, 8) words.
	result := Diff("alpha beta gamma delta epsilon", "alpha beta gamma delta epsilon zeta eta theta")
	if result.Similarity != 62.5 {
		t.Errorf("expected similarity 62.5, got %v", result.Similarity)
	}
}

func TestDiffReconstructsBothSides(t *testing.T) {
	cases := []struct {
		name   string
		source string
		target string
	}{
		{"replacement", "one two three four", "one five three four"},
		{"addition", "start end", "start middle end"},
		{"removal", "keep drop keep", "keep keep"},
		{"paragraphs", "first para\nsecond para", "first para\nchanged para"},
		{"disjoint", "aaa bbb ccc", "xxx yyy zzz"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Diff(tc.source, tc.target)

			var src, dst strings.Builder
			for _, c := range result.Changes {
				if c.Type == Equal || c.Type == Removed {
					src.WriteString(c.Value)
				}
				if c.Type == Equal || c.Type == Added {
					dst.WriteString(c.Value)
				}
			}

			if got, want := normalize(src.String()), normalize(tc.source); got != want {
				t.Errorf("source reconstruction = %q, want %q", got, want)
			}
			if got, want := normalize(dst.String()), normalize(tc.target); got != want {
				t.Errorf("target reconstruction = %q, want %q", got, want)
			}
		})
	}
}

func TestDiffEmptyAgainstContent(t *testing.T) {
	result := Diff("", "some new words")
	if result.Similarity != 0 {
		t.Errorf("expected similarity 0, got %v", result.Similarity)
	}
	if len(result.Changes) != 1 || result.Changes[0].Type != Added {
		t.Fatalf("expected a single added change, got %+v", result.Changes)
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
