// Package metrics provides simple built-in metrics collection with no
// external dependencies.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks comparison-service counters.
type Collector struct {
	comparisonsRun    int64
	comparisonErrors  int64
	fetchFailures     int64
	sessionsCreated   int64
	sessionsExpired   int64
	alignmentCycles   int64
	scrollRelays      int64
	surfaceConnects   int64
	surfaceDisconnect int64

	mu              sync.Mutex
	totalDiffTime   time.Duration
	totalRenderTime time.Duration
	startTime       time.Time
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	ComparisonsRun     int64         `json:"comparisons_run"`
	ComparisonErrors   int64         `json:"comparison_errors"`
	FetchFailures      int64         `json:"fetch_failures"`
	SessionsCreated    int64         `json:"sessions_created"`
	SessionsExpired    int64         `json:"sessions_expired"`
	AlignmentCycles    int64         `json:"alignment_cycles"`
	ScrollRelays       int64         `json:"scroll_relays"`
	SurfaceConnects    int64         `json:"surface_connects"`
	SurfaceDisconnects int64         `json:"surface_disconnects"`
	AverageDiffTime    time.Duration `json:"average_diff_time"`
	AverageRenderTime  time.Duration `json:"average_render_time"`
	Uptime             time.Duration `json:"uptime"`
}

// NewCollector creates a collector.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

func (c *Collector) ComparisonRun(diffTime, renderTime time.Duration) {
	atomic.AddInt64(&c.comparisonsRun, 1)
	c.mu.Lock()
	c.totalDiffTime += diffTime
	c.totalRenderTime += renderTime
	c.mu.Unlock()
}

func (c *Collector) ComparisonError() { atomic.AddInt64(&c.comparisonErrors, 1) }

func (c *Collector) FetchFailure() { atomic.AddInt64(&c.fetchFailures, 1) }

func (c *Collector) SessionCreated() { atomic.AddInt64(&c.sessionsCreated, 1) }

func (c *Collector) SessionsExpired(n int) { atomic.AddInt64(&c.sessionsExpired, int64(n)) }

func (c *Collector) AlignmentCycle() { atomic.AddInt64(&c.alignmentCycles, 1) }

func (c *Collector) ScrollRelay() { atomic.AddInt64(&c.scrollRelays, 1) }

func (c *Collector) SurfaceConnect() { atomic.AddInt64(&c.surfaceConnects, 1) }

func (c *Collector) SurfaceDisconnect() { atomic.AddInt64(&c.surfaceDisconnect, 1) }

// GetSnapshot returns a consistent copy of the current counters.
func (c *Collector) GetSnapshot() Snapshot {
	runs := atomic.LoadInt64(&c.comparisonsRun)

	c.mu.Lock()
	var avgDiff, avgRender time.Duration
	if runs > 0 {
		avgDiff = c.totalDiffTime / time.Duration(runs)
		avgRender = c.totalRenderTime / time.Duration(runs)
	}
	c.mu.Unlock()

	return Snapshot{
		ComparisonsRun:     runs,
		ComparisonErrors:   atomic.LoadInt64(&c.comparisonErrors),
		FetchFailures:      atomic.LoadInt64(&c.fetchFailures),
		SessionsCreated:    atomic.LoadInt64(&c.sessionsCreated),
		SessionsExpired:    atomic.LoadInt64(&c.sessionsExpired),
		AlignmentCycles:    atomic.LoadInt64(&c.alignmentCycles),
		ScrollRelays:       atomic.LoadInt64(&c.scrollRelays),
		SurfaceConnects:    atomic.LoadInt64(&c.surfaceConnects),
		SurfaceDisconnects: atomic.LoadInt64(&c.surfaceDisconnect),
		AverageDiffTime:    avgDiff,
		AverageRenderTime:  avgRender,
		Uptime:             time.Since(c.startTime),
	}
}
