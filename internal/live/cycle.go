package live

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// cycleGate turns an arbitrary rate of notifications into strictly
// sequential work cycles. Three rules, in order:
//
//   - debounce: a cycle starts only after the notify burst has been quiet
//     for the debounce window, carrying the union of everything notified;
//   - throttle: a cycle may not start sooner than the throttle interval
//     after the previous cycle started; an early debounce fire re-arms for
//     the remaining wait instead of dropping the pending set;
//   - single flight: while a cycle runs, notifications only accumulate;
//     the completing cycle re-arms the debounce when anything is pending.
type cycleGate struct {
	clk      clock.Clock
	debounce time.Duration
	throttle time.Duration
	run      func(ids map[string]struct{})

	mu        sync.Mutex
	timer     clock.Timer
	pending   map[string]struct{}
	running   bool
	lastStart time.Time
	started   bool
	closed    bool
}

func newCycleGate(clk clock.Clock, debounce, throttle time.Duration, run func(ids map[string]struct{})) *cycleGate {
	return &cycleGate{
		clk:      clk,
		debounce: debounce,
		throttle: throttle,
		run:      run,
		pending:  make(map[string]struct{}),
	}
}

// notify records intent and (re)arms the debounce timer. Never blocks,
// never fails.
func (g *cycleGate) notify(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.pending[id] = struct{}{}
	g.arm(g.debounce)
}

func (g *cycleGate) arm(d time.Duration) {
	if g.timer == nil {
		g.timer = g.clk.AfterFunc(d, g.fire)
		return
	}
	g.timer.Reset(d)
}

func (g *cycleGate) fire() {
	g.mu.Lock()
	if g.closed || len(g.pending) == 0 {
		g.mu.Unlock()
		return
	}
	if g.running {
		// The finishing cycle re-arms; nothing to do here.
		g.mu.Unlock()
		return
	}
	if g.started {
		wait := g.throttle - g.clk.Now().Sub(g.lastStart)
		if wait > 0 {
			// Throttled: delay, never drop.
			g.arm(wait)
			g.mu.Unlock()
			return
		}
	}
	ids := g.pending
	g.pending = make(map[string]struct{})
	g.running = true
	g.started = true
	g.lastStart = g.clk.Now()
	g.mu.Unlock()

	go func() {
		g.run(ids)
		g.done()
	}()
}

func (g *cycleGate) done() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
	if g.closed {
		return
	}
	if len(g.pending) > 0 {
		g.arm(g.debounce)
	}
}

func (g *cycleGate) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.pending = nil
	if g.timer != nil {
		g.timer.Stop()
	}
}
