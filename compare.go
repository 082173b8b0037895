// Package contentcheck compares two HTML documents, a source page and its
// migrated target, and produces a visually synchronized, highlighted
// rendering of what text and images survived the migration.
package contentcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/sunzi-skynet/contentcheck-3000/internal/annotate"
	"github.com/sunzi-skynet/contentcheck-3000/internal/extract"
	"github.com/sunzi-skynet/contentcheck-3000/internal/fetch"
	"github.com/sunzi-skynet/contentcheck-3000/internal/imagematch"
	"github.com/sunzi-skynet/contentcheck-3000/internal/metrics"
	"github.com/sunzi-skynet/contentcheck-3000/internal/session"
	"github.com/sunzi-skynet/contentcheck-3000/internal/store"
	"github.com/sunzi-skynet/contentcheck-3000/internal/textdiff"
	"github.com/sunzi-skynet/contentcheck-3000/internal/viewsync"
)

// CompareResult summarizes one comparison. The annotated documents live in
// the session identified by ID and are served per side.
type CompareResult struct {
	ID           string            `json:"id"`
	SourceURL    string            `json:"sourceUrl"`
	TargetURL    string            `json:"targetUrl"`
	Similarity   float64           `json:"similarity"`
	Changes      []textdiff.Change `json:"changes"`
	Images       imagematch.Report `json:"images"`
	SourceBlocks int               `json:"sourceBlocks"`
	TargetBlocks int               `json:"targetBlocks"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// Comparator runs comparisons and owns the supporting collaborators.
type Comparator struct {
	fetcher    *fetch.Fetcher
	matcher    *imagematch.Matcher
	sessions   *session.Manager
	results    store.Store
	collector  *metrics.Collector
	maxTextLen int
	hashImages bool
}

// ComparatorOption configures a Comparator.
type ComparatorOption func(*Comparator)

// WithFetcher replaces the default fetcher.
func WithFetcher(f *fetch.Fetcher) ComparatorOption {
	return func(c *Comparator) { c.fetcher = f }
}

// WithStore sets the result store. Defaults to in-memory.
func WithStore(s store.Store) ComparatorOption {
	return func(c *Comparator) { c.results = s }
}

// WithSessionTTL bounds how long annotated documents stay servable.
func WithSessionTTL(ttl time.Duration) ComparatorOption {
	return func(c *Comparator) { c.sessions = session.NewManager(ttl) }
}

// WithMaxTextLen caps extracted text length per page.
func WithMaxTextLen(n int) ComparatorOption {
	return func(c *Comparator) { c.maxTextLen = n }
}

// WithImageHashing toggles the content-hash matching layer, which fetches
// image bytes.
func WithImageHashing(enabled bool) ComparatorOption {
	return func(c *Comparator) { c.hashImages = enabled }
}

// NewComparator creates a Comparator with default collaborators.
func NewComparator(opts ...ComparatorOption) *Comparator {
	c := &Comparator{
		fetcher:    fetch.New(),
		sessions:   session.NewManager(0),
		results:    store.NewMemoryStore(),
		collector:  metrics.NewCollector(),
		maxTextLen: extract.DefaultMaxTextLen,
		hashImages: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hashImages {
		c.matcher = imagematch.NewMatcher(c.fetcher)
	} else {
		c.matcher = imagematch.NewMatcher(nil)
	}
	return c
}

// Sessions exposes the session manager, mainly for the HTTP layer.
func (c *Comparator) Sessions() *session.Manager { return c.sessions }

// Metrics exposes the metrics collector.
func (c *Comparator) Metrics() *metrics.Collector { return c.collector }

// Results exposes the result store.
func (c *Comparator) Results() store.Store { return c.results }

// Compare fetches both pages, diffs their extracted text, matches images,
// and builds the two annotated documents. The returned result's ID addresses
// both the stored record and the live session serving the documents.
func (c *Comparator) Compare(ctx context.Context, sourceURL, targetURL string) (*CompareResult, error) {
	source, err := c.loadPage(ctx, sourceURL)
	if err != nil {
		c.collector.ComparisonError()
		return nil, fmt.Errorf("load source page: %w", err)
	}
	target, err := c.loadPage(ctx, targetURL)
	if err != nil {
		c.collector.ComparisonError()
		return nil, fmt.Errorf("load target page: %w", err)
	}

	result, err := c.compareContent(ctx, sourceURL, targetURL, source, target)
	if err != nil {
		c.collector.ComparisonError()
		return nil, err
	}
	return result, nil
}

// CompareContent runs a comparison over already-fetched page bytes. Useful
// when the caller controls retrieval.
func (c *Comparator) CompareContent(ctx context.Context, sourceURL, targetURL string, sourceHTML, targetHTML []byte) (*CompareResult, error) {
	source, err := c.extractPage(sourceHTML, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("extract source: %w", err)
	}
	target, err := c.extractPage(targetHTML, targetURL)
	if err != nil {
		return nil, fmt.Errorf("extract target: %w", err)
	}
	return c.compareContent(ctx, sourceURL, targetURL, source, target)
}

func (c *Comparator) compareContent(ctx context.Context, sourceURL, targetURL string, source, target *extract.Content) (*CompareResult, error) {
	diffStart := time.Now()
	diff := textdiff.Diff(source.Text, target.Text)
	diffTime := time.Since(diffStart)

	images := c.matcher.Compare(ctx, source.Images, target.Images)

	sessionID := c.sessions.NewID()

	renderStart := time.Now()
	annotated := annotate.Annotate(annotate.Input{
		Source:     source.Fragment,
		Target:     target.Fragment,
		SourceText: source.Text,
		TargetText: target.Text,
		Changes:    diff.Changes,
		Images:     images,
		SessionID:  sessionID,
	})
	renderTime := time.Since(renderStart)

	coordinator := viewsync.NewCoordinator(
		viewsync.WithAlignHook(c.collector.AlignmentCycle),
		viewsync.WithRelayHook(c.collector.ScrollRelay),
	)
	c.sessions.Create(&session.Session{
		ID:          sessionID,
		SourceURL:   sourceURL,
		TargetURL:   targetURL,
		SourceDoc:   annotated.SourceHTML,
		TargetDoc:   annotated.TargetHTML,
		Coordinator: coordinator,
	})
	c.collector.SessionCreated()

	result := &CompareResult{
		ID:           sessionID,
		SourceURL:    sourceURL,
		TargetURL:    targetURL,
		Similarity:   diff.Similarity,
		Changes:      diff.Changes,
		Images:       images,
		SourceBlocks: annotated.SourceBlocks,
		TargetBlocks: annotated.TargetBlocks,
		CreatedAt:    time.Now().UTC(),
	}

	if err := c.persist(ctx, result); err != nil {
		// Persistence is best effort; the live session still works.
		log.Printf("contentcheck: persist result %s: %v", result.ID, err)
	}

	c.collector.ComparisonRun(diffTime, renderTime)
	return result, nil
}

func (c *Comparator) loadPage(ctx context.Context, rawURL string) (*extract.Content, error) {
	body, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		c.collector.FetchFailure()
		return nil, err
	}
	return c.extractPage(body, rawURL)
}

func (c *Comparator) extractPage(body []byte, rawURL string) (*extract.Content, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		base = nil
	}
	return extract.Parse(strings.NewReader(string(body)), base, extract.Options{
		MaxTextLen: c.maxTextLen,
	})
}

func (c *Comparator) persist(ctx context.Context, result *CompareResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.results.Save(ctx, &store.Record{
		ID:         result.ID,
		SourceURL:  result.SourceURL,
		TargetURL:  result.TargetURL,
		Similarity: result.Similarity,
		CreatedAt:  result.CreatedAt,
		Result:     payload,
	})
}
