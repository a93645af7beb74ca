package live

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"

	"traceview/internal/logging"
	"traceview/internal/types"
)

// Fetcher is the external data-retrieval collaborator: it returns the
// canonical ordered conversation for one trace. Reads are idempotent.
type Fetcher interface {
	TraceMessages(ctx context.Context, traceID string) ([]types.Block, error)
}

type ReconcilerOptions struct {
	Debounce    time.Duration
	Throttle    time.Duration
	BufferLimit int
	// OnGrowth receives the summed positive block delta of a cycle; the
	// display layer uses it for the new-items badge when not following.
	OnGrowth func(added int)
}

func (o ReconcilerOptions) withDefaults() ReconcilerOptions {
	if o.Debounce <= 0 {
		o.Debounce = 100 * time.Millisecond
	}
	if o.Throttle <= 0 {
		o.Throttle = 500 * time.Millisecond
	}
	if o.BufferLimit <= 0 {
		o.BufferLimit = 2000
	}
	return o
}

// Reconciler converts a bursty stream of change notifications into
// infrequent canonical updates of the trace buffer. Notify only records
// intent; cycles run sequentially behind a debounce+throttle gate, fetch
// each affected trace, and replace its buffer entry atomically.
type Reconciler struct {
	fetcher Fetcher
	opts    ReconcilerOptions
	log     logging.Logger
	gate    *cycleGate

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	buf     *buffer
	version int
	closed  bool
}

func NewReconciler(fetcher Fetcher, clk clock.Clock, log logging.Logger, opts ReconcilerOptions) *Reconciler {
	if clk == nil {
		clk = clock.WallClock
	}
	if log == nil {
		log = logging.Nop()
	}
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	r := &Reconciler{
		fetcher: fetcher,
		opts:    opts,
		log:     log.With(logging.F("component", "reconciler")),
		ctx:     ctx,
		cancel:  cancel,
		buf:     newBuffer(opts.BufferLimit),
	}
	r.gate = newCycleGate(clk, opts.Debounce, opts.Throttle, r.cycle)
	return r
}

// Notify records that a trace changed. Non-blocking; always succeeds.
func (r *Reconciler) Notify(traceID string) {
	if traceID == "" {
		return
	}
	r.gate.notify(traceID)
}

// cycle fetches every pending trace and applies the results in one atomic
// buffer update. Fetches within a cycle are independent reads and run
// concurrently; cycles themselves never overlap (gate invariant).
func (r *Reconciler) cycle(ids map[string]struct{}) {
	results := make([]types.TraceGroup, 0, len(ids))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup
	for id := range ids {
		wg.Add(1)
		go func(traceID string) {
			defer wg.Done()
			blocks, err := r.fetcher.TraceMessages(r.ctx, traceID)
			if err != nil {
				// Deliberately no retry: the trace is picked up again
				// only when another notification names it.
				r.log.Warn("trace fetch failed, skipping",
					logging.F("trace_id", traceID), logging.F("err", err))
				return
			}
			group := types.TraceGroup{
				ID:        traceID,
				Blocks:    blocks,
				StartTime: groupStartTime(blocks),
			}
			resultsMu.Lock()
			results = append(results, group)
			resultsMu.Unlock()
		}(id)
	}
	wg.Wait()

	r.mu.Lock()
	if r.closed {
		// Late results after Close are discarded, never applied.
		r.mu.Unlock()
		return
	}
	added := 0
	for _, group := range results {
		added += r.buf.replace(group)
	}
	if dropped := r.buf.evict(); len(dropped) > 0 {
		r.log.Debug("evicted trace groups",
			logging.F("count", len(dropped)), logging.F("blocks", r.buf.size()))
	}
	if len(results) > 0 {
		r.version++
	}
	onGrowth := r.opts.OnGrowth
	r.mu.Unlock()

	if added > 0 && onGrowth != nil {
		onGrowth(added)
	}
}

// Blocks returns the flattened ordered view: groups ascending by start
// time, blocks within a group in server order. Read-only for callers.
func (r *Reconciler) Blocks() []types.Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.flatten()
}

// Groups returns the buffered trace groups ascending by start time.
func (r *Reconciler) Groups() []types.TraceGroup {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.sortedGroups()
}

// Group returns one buffered trace group by id.
func (r *Reconciler) Group(traceID string) (types.TraceGroup, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.group(traceID)
}

// Size returns the total buffered block count.
func (r *Reconciler) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.size()
}

// Version increments on every cycle that applied at least one result;
// pollers use it to skip re-rendering an unchanged buffer.
func (r *Reconciler) Version() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Clear empties the buffer. Pending notifications are kept: they describe
// traces that changed after the clear and will be re-fetched canonically.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf.clear()
	r.version++
}

// Close stops the cycle gate and cancels in-flight fetches. A cycle that
// already passed the fetch stage discards its results against the closed
// flag instead of mutating state.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.gate.close()
	r.cancel()
}

func groupStartTime(blocks []types.Block) time.Time {
	var start time.Time
	for _, block := range blocks {
		if start.IsZero() || block.Timestamp.Before(start) {
			start = block.Timestamp
		}
	}
	return start
}
