package live

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/juju/clock"

	"traceview/internal/logging"
	"traceview/internal/types"
)

// FeedFetcher reads the flat project feed from the given time forward.
type FeedFetcher interface {
	FeedMessages(ctx context.Context, since time.Time, limit int) ([]types.FeedItem, error)
}

type FeedTailOptions struct {
	Debounce time.Duration
	Throttle time.Duration
	// Window is the late-arrival look-back: each catch-up queries from
	// max(subscribe time, last seen - Window) so items that arrived out of
	// order within the window are still picked up.
	Window     time.Duration
	FetchLimit int
	MaxItems   int
	// OnAppend receives the number of genuinely new items of a catch-up.
	OnAppend func(added int)
}

func (o FeedTailOptions) withDefaults() FeedTailOptions {
	if o.Debounce <= 0 {
		o.Debounce = 100 * time.Millisecond
	}
	if o.Throttle <= 0 {
		o.Throttle = 500 * time.Millisecond
	}
	if o.Window <= 0 {
		o.Window = 5 * time.Second
	}
	if o.FetchLimit <= 0 {
		o.FetchLimit = 200
	}
	if o.MaxItems <= 0 {
		o.MaxItems = 2000
	}
	return o
}

// FeedTail is the ungrouped counterpart of the Reconciler: the flat feed
// has no per-trace grouping to replace wholesale, so it tracks a watermark
// and merges only items it has not seen, by identity.
type FeedTail struct {
	fetcher FeedFetcher
	clk     clock.Clock
	log     logging.Logger
	opts    FeedTailOptions
	gate    *cycleGate

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	items        []types.FeedItem
	seen         map[types.FeedItemKey]struct{}
	lastSeen     time.Time
	subscribedAt time.Time
	version      int
	closed       bool
}

func NewFeedTail(fetcher FeedFetcher, clk clock.Clock, log logging.Logger, opts FeedTailOptions) *FeedTail {
	if clk == nil {
		clk = clock.WallClock
	}
	if log == nil {
		log = logging.Nop()
	}
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	t := &FeedTail{
		fetcher:      fetcher,
		clk:          clk,
		log:          log.With(logging.F("component", "feedtail")),
		opts:         opts,
		ctx:          ctx,
		cancel:       cancel,
		seen:         make(map[types.FeedItemKey]struct{}),
		subscribedAt: clk.Now(),
	}
	t.gate = newCycleGate(clk, opts.Debounce, opts.Throttle, t.cycle)
	return t
}

// Notify schedules a catch-up. Individual span ids are irrelevant here;
// the feed is re-read from the watermark regardless.
func (t *FeedTail) Notify() {
	t.gate.notify("feed")
}

func (t *FeedTail) cycle(map[string]struct{}) {
	t.mu.Lock()
	since := t.subscribedAt
	if !t.lastSeen.IsZero() {
		if lookback := t.lastSeen.Add(-t.opts.Window); lookback.After(since) {
			since = lookback
		}
	}
	t.mu.Unlock()

	fetched, err := t.fetcher.FeedMessages(t.ctx, since, t.opts.FetchLimit)
	if err != nil {
		t.log.Warn("feed catch-up failed", logging.F("err", err))
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	added := 0
	for _, item := range fetched {
		key := item.Key()
		if _, dup := t.seen[key]; dup {
			continue
		}
		t.seen[key] = struct{}{}
		t.items = append(t.items, item)
		added++
		if item.Timestamp.After(t.lastSeen) {
			t.lastSeen = item.Timestamp
		}
	}
	if added > 0 {
		sort.SliceStable(t.items, func(i, j int) bool {
			return t.items[i].Timestamp.Before(t.items[j].Timestamp)
		})
		if overflow := len(t.items) - t.opts.MaxItems; overflow > 0 {
			for _, item := range t.items[:overflow] {
				delete(t.seen, item.Key())
			}
			t.items = t.items[overflow:]
		}
		t.version++
	}
	onAppend := t.opts.OnAppend
	t.mu.Unlock()

	if added > 0 && onAppend != nil {
		onAppend(added)
	}
}

// Items returns the buffered feed, oldest first. Read-only for callers.
func (t *FeedTail) Items() []types.FeedItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.items
}

func (t *FeedTail) Version() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

// Clear empties the feed and moves the watermark to now so cleared items
// are not immediately fetched back in.
func (t *FeedTail) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = nil
	t.seen = make(map[types.FeedItemKey]struct{})
	t.subscribedAt = t.clk.Now()
	t.lastSeen = time.Time{}
	t.version++
}

func (t *FeedTail) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.gate.close()
	t.cancel()
}
