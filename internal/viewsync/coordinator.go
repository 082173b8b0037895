package viewsync

import (
	"log"
	"sync"
	"time"

	"github.com/sunzi-skynet/contentcheck-3000/internal/align"
)

// State is the coordinator's position in the sync lifecycle.
type State int

const (
	StateIdle State = iota
	StateEnabling
	StateMeasuring
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEnabling:
		return "enabling"
	case StateMeasuring:
		return "measuring"
	case StateSynced:
		return "synced"
	default:
		return "unknown"
	}
}

// Surface is one side's message sink. Send failures are logged and otherwise
// ignored: visual sync is a presentation enhancement, never a correctness
// guarantee.
type Surface interface {
	Send(msg Message) error
}

// scrollThrottle caps relayed scroll updates to prevent feedback
// amplification between the two surfaces.
const scrollThrottle = 50 * time.Millisecond

// DefaultSettleDelay gives highlight styling time to apply before the
// surfaces are asked to measure themselves.
const DefaultSettleDelay = 300 * time.Millisecond

// Coordinator drives the enable, measure, align, synchronized-scroll cycle
// for one comparison session. All state is owned by the instance; nothing is
// global, so concurrent sessions cannot cross-contaminate.
type Coordinator struct {
	mu sync.Mutex

	source Surface
	target Surface

	state      State
	pending    map[Side][]align.Block
	lastRelay  time.Time
	generation int

	settleDelay time.Duration
	now         func() time.Time
	after       func(time.Duration, func()) // timer hook, replaceable in tests

	onAlign func()
	onRelay func()
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSettleDelay overrides the delay between enabling and measuring.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.settleDelay = d }
}

// WithClock overrides the coordinator's time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithAlignHook registers a callback invoked after each alignment run.
func WithAlignHook(fn func()) Option {
	return func(c *Coordinator) { c.onAlign = fn }
}

// WithRelayHook registers a callback invoked after each relayed scroll.
func WithRelayHook(fn func()) Option {
	return func(c *Coordinator) { c.onRelay = fn }
}

// NewCoordinator creates an idle coordinator. Surfaces attach as their
// rendering contexts come online.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		state:       StateIdle,
		pending:     make(map[Side][]align.Block),
		settleDelay: DefaultSettleDelay,
		now:         time.Now,
	}
	c.after = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach binds a surface to its side and reports whether both sides are now
// connected. An existing surface for the side is replaced.
func (c *Coordinator) Attach(side Side, s Surface) (both bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if side == SideSource {
		c.source = s
	} else {
		c.target = s
	}
	return c.source != nil && c.target != nil
}

// Detach removes a side's surface, typically when its connection closes.
func (c *Coordinator) Detach(side Side) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if side == SideSource {
		c.source = nil
	} else {
		c.target = nil
	}
}

// State reports the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) surfaces() (source, target Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source, c.target
}

// Enable starts a sync cycle: both surfaces are told their side, and after a
// settle delay both are asked to measure. Re-enabling restarts the cycle.
func (c *Coordinator) Enable() {
	c.mu.Lock()
	c.state = StateEnabling
	c.pending = make(map[Side][]align.Block)
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	source, target := c.surfaces()
	c.send(source, Enable{Side: SideSource})
	c.send(target, Enable{Side: SideTarget})

	c.after(c.settleDelay, func() {
		c.mu.Lock()
		if c.generation != gen || c.state != StateEnabling {
			c.mu.Unlock()
			return
		}
		c.state = StateMeasuring
		c.mu.Unlock()

		source, target := c.surfaces()
		c.send(source, Measure{})
		c.send(target, Measure{})
	})
}

// Disable deactivates sync from any state. The measurement buffer is reset so
// stale reports from this cycle cannot leak into a future one.
func (c *Coordinator) Disable() {
	c.mu.Lock()
	c.state = StateIdle
	c.pending = make(map[Side][]align.Block)
	c.generation++
	c.mu.Unlock()

	source, target := c.surfaces()
	for _, s := range []Surface{source, target} {
		c.send(s, Disable{})
		c.send(s, ClearSpacers{})
	}
}

// SetHighlightMode relays a display-mode switch to both surfaces.
func (c *Coordinator) SetHighlightMode(mode string) {
	source, target := c.surfaces()
	c.send(source, SetHighlightMode{Mode: mode})
	c.send(target, SetHighlightMode{Mode: mode})
}

// HandleMessage processes one surface-to-coordinator message. Messages that
// do not fit the current state are dropped silently; a surface that never
// reports simply stalls the cycle, which is a non-fatal degradation.
func (c *Coordinator) HandleMessage(msg Message) {
	switch m := msg.(type) {
	case *Measurements:
		c.handleMeasurements(m)
	case Measurements:
		c.handleMeasurements(&m)
	case *Scrolled:
		c.handleScrolled(m)
	case Scrolled:
		c.handleScrolled(&m)
	}
}

func (c *Coordinator) handleMeasurements(m *Measurements) {
	c.mu.Lock()
	if c.state != StateMeasuring {
		c.mu.Unlock()
		return
	}

	// A duplicate report for a side before the other side reports replaces
	// the buffered one; alignment still runs exactly once per cycle.
	c.pending[m.Side] = m.Blocks
	source, haveSource := c.pending[SideSource]
	target, haveTarget := c.pending[SideTarget]
	if !haveSource || !haveTarget {
		c.mu.Unlock()
		return
	}

	result := align.Compute(source, target)
	c.pending = make(map[Side][]align.Block)
	c.state = StateSynced
	c.mu.Unlock()

	srcSurface, dstSurface := c.surfaces()
	c.send(srcSurface, ApplySpacers{Spacers: result.SourceSpacers})
	c.send(dstSurface, ApplySpacers{Spacers: result.TargetSpacers})

	if c.onAlign != nil {
		c.onAlign()
	}
}

func (c *Coordinator) handleScrolled(m *Scrolled) {
	c.mu.Lock()
	if c.state != StateSynced {
		c.mu.Unlock()
		return
	}
	now := c.now()
	if now.Sub(c.lastRelay) < scrollThrottle {
		c.mu.Unlock()
		return
	}
	c.lastRelay = now
	c.mu.Unlock()

	source, target := c.surfaces()
	if m.Side == SideSource {
		c.send(target, ScrollTo{Offset: m.Offset})
	} else {
		c.send(source, ScrollTo{Offset: m.Offset})
	}

	if c.onRelay != nil {
		c.onRelay()
	}
}

func (c *Coordinator) send(s Surface, msg Message) {
	if s == nil {
		return
	}
	if err := s.Send(msg); err != nil {
		log.Printf("viewsync: send %T failed: %v", msg, err)
	}
}
