package contentcheck

import (
	"context"
	"strings"
	"testing"
)

const sourcePage = `<html><head><title>Docs</title></head><body><main>
	<h1>Getting Started</h1>
	<p>Install the package and run the setup command.</p>
	<p>This paragraph was removed during migration.</p>
	<img src="https://a.example/img/diagram.png" alt="Diagram">
</main></body></html>`

const targetPage = `<html><head><title>Docs v2</title></head><body><main>
	<h1>Getting Started</h1>
	<p>Install the package and run the setup command.</p>
	<p>A brand new paragraph appears here instead.</p>
	<img src="https://cdn.example/assets/diagram.png" alt="Diagram">
</main></body></html>`

func newTestComparator() *Comparator {
	return NewComparator(WithImageHashing(false))
}

func TestCompareContent(t *testing.T) {
	c := newTestComparator()
	result, err := c.CompareContent(context.Background(),
		"https://a.example/docs", "https://b.example/docs",
		[]byte(sourcePage), []byte(targetPage))
	if err != nil {
		t.Fatalf("CompareContent: %v", err)
	}

	if result.Similarity <= 0 || result.Similarity >= 100 {
		t.Errorf("similarity = %v, want partial match", result.Similarity)
	}
	if result.SourceBlocks == 0 || result.TargetBlocks == 0 {
		t.Errorf("block counts = %d/%d, want nonzero", result.SourceBlocks, result.TargetBlocks)
	}
	if len(result.Images) != 1 {
		t.Fatalf("images = %d, want 1", len(result.Images))
	}
	if result.Images[0].Status != "found" {
		t.Errorf("image status = %s, want found via filename fallback", result.Images[0].Status)
	}

	sess, ok := c.Sessions().Get(result.ID)
	if !ok {
		t.Fatal("no live session for result")
	}
	for _, doc := range []string{sess.SourceDoc, sess.TargetDoc} {
		for _, want := range []string{"data-cc-block", "cc-migrated", result.ID} {
			if !strings.Contains(doc, want) {
				t.Errorf("annotated document missing %q", want)
			}
		}
	}

	rec, err := c.Results().Get(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("stored record: %v", err)
	}
	if rec.Similarity != result.Similarity {
		t.Errorf("stored similarity = %v, want %v", rec.Similarity, result.Similarity)
	}
}

func TestCompareContentIdenticalPages(t *testing.T) {
	c := newTestComparator()
	result, err := c.CompareContent(context.Background(),
		"https://a.example", "https://b.example",
		[]byte(sourcePage), []byte(sourcePage))
	if err != nil {
		t.Fatalf("CompareContent: %v", err)
	}
	if result.Similarity != 100 {
		t.Errorf("similarity = %v, want 100", result.Similarity)
	}
}

func TestCompareContentEmptyPages(t *testing.T) {
	c := newTestComparator()
	result, err := c.CompareContent(context.Background(),
		"https://a.example", "https://b.example",
		[]byte("<html><body></body></html>"), []byte("<html><body></body></html>"))
	if err != nil {
		t.Fatalf("CompareContent: %v", err)
	}
	if result.Similarity != 100 {
		t.Errorf("similarity = %v, want 100 for two empty pages", result.Similarity)
	}
}

func TestCompareRecordsMetrics(t *testing.T) {
	c := newTestComparator()
	if _, err := c.CompareContent(context.Background(), "https://a.example", "https://b.example",
		[]byte(sourcePage), []byte(targetPage)); err != nil {
		t.Fatal(err)
	}
	snap := c.Metrics().GetSnapshot()
	if snap.ComparisonsRun != 1 {
		t.Errorf("comparisons run = %d, want 1", snap.ComparisonsRun)
	}
	if snap.SessionsCreated != 1 {
		t.Errorf("sessions created = %d, want 1", snap.SessionsCreated)
	}
}
