package stream

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/juju/clock"

	"traceview/internal/logging"
	"traceview/internal/types"
)

// ErrMaxAttempts is reported through OnError when consecutive failed
// connection attempts reach the configured ceiling. The subscription is
// dead afterwards; callers must subscribe again.
var ErrMaxAttempts = errors.New("stream: reconnect attempts exhausted")

// Handlers are the upward callbacks of one subscription. They are invoked
// from the subscription's own goroutine and must not block.
type Handlers struct {
	OnSpan  func(types.SpanEvent)
	OnOpen  func()
	OnError func(error)
	OnClose func()
}

type Options struct {
	// BaseDelay is the first reconnect backoff step; attempt n waits
	// min(BaseDelay * 2^(n-1), MaxBackoff).
	BaseDelay  time.Duration
	MaxBackoff time.Duration
	// ReopenDelay is the fixed short wait after a server terminate event,
	// bypassing the backoff ladder.
	ReopenDelay time.Duration
	// InactivityTimeout forces a reconnect when no event of any kind has
	// arrived within the window. The push transport cannot surface a dead
	// but silent connection, so a healthy idle one is knowingly recycled.
	InactivityTimeout time.Duration
	MaxAttempts       int
	Header            http.Header
}

func (o Options) withDefaults() Options {
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.ReopenDelay <= 0 {
		o.ReopenDelay = 250 * time.Millisecond
	}
	if o.InactivityTimeout <= 0 {
		o.InactivityTimeout = 90 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	return o
}

// Conn is one logical subscription to the push-stream endpoint. It owns a
// single goroutine that moves through connecting/open/reconnecting and
// fires the Handlers; Unsubscribe is the only external transition.
type Conn struct {
	url       string
	handlers  Handlers
	opts      Options
	transport Transport
	clock     clock.Clock
	log       logging.Logger
	dispatch  *Dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     types.ConnState
	closeOnce sync.Once
}

type consumeOutcome int

const (
	consumeUnsubscribed consumeOutcome = iota
	consumeTerminated
	consumeFailed
)

// Subscribe opens the subscription and returns immediately; connection
// management happens on an internal goroutine until Unsubscribe.
func Subscribe(url string, handlers Handlers, opts Options, transport Transport, clk clock.Clock, log logging.Logger) *Conn {
	if transport == nil {
		transport = NewHTTPTransport()
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if log == nil {
		log = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		url:       url,
		handlers:  handlers,
		opts:      opts.withDefaults(),
		transport: transport,
		clock:     clk,
		log:       log.With(logging.F("component", "stream")),
		ctx:       ctx,
		cancel:    cancel,
		state:     types.ConnState{Phase: types.ConnIdle},
	}
	c.dispatch = NewDispatcher(c.log, handlers.OnSpan, nil)
	go c.run()
	return c
}

// Unsubscribe closes the connection and stops all timers. Terminal: no
// reconnect is ever scheduled afterwards. Safe to call more than once.
func (c *Conn) Unsubscribe() {
	c.closeOnce.Do(c.cancel)
}

// State returns a snapshot of the connection state.
func (c *Conn) State() types.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) run() {
	attempts := 0
	for {
		if c.ctx.Err() != nil {
			c.finish()
			return
		}
		c.setState(types.ConnConnecting, attempts)
		reader, err := c.transport.Open(c.ctx, c.url, c.opts.Header)
		if err != nil {
			if c.ctx.Err() != nil {
				c.finish()
				return
			}
			attempts++
			c.log.Warn("stream open failed", logging.F("attempt", attempts), logging.F("err", err))
			if attempts >= c.opts.MaxAttempts {
				c.exhaust()
				return
			}
			c.setState(types.ConnReconnecting, attempts)
			if !c.sleep(backoffDelay(c.opts.BaseDelay, c.opts.MaxBackoff, attempts)) {
				c.finish()
				return
			}
			continue
		}

		attempts = 0
		c.setOpen()
		if c.handlers.OnOpen != nil {
			c.handlers.OnOpen()
		}
		c.log.Info("stream open", logging.F("url", c.url))

		switch c.consume(reader) {
		case consumeUnsubscribed:
			c.finish()
			return
		case consumeTerminated:
			// Graceful server retirement: expected, so no backoff ladder.
			attempts = 0
			c.setState(types.ConnReconnecting, 0)
			c.log.Info("stream terminated by server, reopening")
			if !c.sleep(c.opts.ReopenDelay) {
				c.finish()
				return
			}
		case consumeFailed:
			attempts++
			if attempts >= c.opts.MaxAttempts {
				c.exhaust()
				return
			}
			c.setState(types.ConnReconnecting, attempts)
			if !c.sleep(backoffDelay(c.opts.BaseDelay, c.opts.MaxBackoff, attempts)) {
				c.finish()
				return
			}
		}
	}
}

// consume pumps one open connection until it ends. The reader is always
// closed before this returns, and the reference is cleared before Close so
// the read-error path cannot observe a half-closed reader and schedule a
// second reconnect.
func (c *Conn) consume(reader EventReader) consumeOutcome {
	events := make(chan Event)
	readErrs := make(chan error, 1)
	quit := make(chan struct{})
	defer close(quit)

	go func() {
		for {
			event, err := reader.Next()
			if err != nil {
				select {
				case readErrs <- err:
				case <-quit:
				}
				return
			}
			select {
			case events <- event:
			case <-quit:
				return
			}
		}
	}()

	watchdog := c.clock.NewTimer(c.opts.InactivityTimeout)
	defer watchdog.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.closeReader(&reader)
			return consumeUnsubscribed
		case event := <-events:
			watchdog.Reset(c.opts.InactivityTimeout)
			if event.Type == eventTypeTerminate {
				c.closeReader(&reader)
				c.dispatch.Dispatch(event)
				return consumeTerminated
			}
			c.dispatch.Dispatch(event)
		case err := <-readErrs:
			c.closeReader(&reader)
			if c.ctx.Err() != nil {
				return consumeUnsubscribed
			}
			c.log.Warn("stream read failed", logging.F("err", err))
			return consumeFailed
		case <-watchdog.Chan():
			c.closeReader(&reader)
			c.log.Info("stream inactive, recycling connection",
				logging.F("window", c.opts.InactivityTimeout))
			return consumeFailed
		}
	}
}

func (c *Conn) closeReader(reader *EventReader) {
	r := *reader
	*reader = nil
	if r != nil {
		_ = r.Close()
	}
}

func (c *Conn) sleep(d time.Duration) bool {
	timer := c.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Conn) exhaust() {
	c.setState(types.ConnClosed, c.opts.MaxAttempts)
	c.log.Error("stream reconnect attempts exhausted",
		logging.F("attempts", c.opts.MaxAttempts))
	if c.handlers.OnError != nil {
		c.handlers.OnError(ErrMaxAttempts)
	}
	if c.handlers.OnClose != nil {
		c.handlers.OnClose()
	}
}

func (c *Conn) finish() {
	c.setState(types.ConnClosed, 0)
	if c.handlers.OnClose != nil {
		c.handlers.OnClose()
	}
}

func (c *Conn) setOpen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = types.ConnState{
		Phase:        types.ConnOpen,
		Attempts:     0,
		LastOpenedAt: c.clock.Now(),
	}
}

func (c *Conn) setState(phase types.ConnPhase, attempts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Phase = phase
	c.state.Attempts = attempts
}

// backoffDelay computes min(base * 2^(attempt-1), ceiling) for attempt >= 1.
func backoffDelay(base, ceiling time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := uint(attempt - 1)
	if shift > 20 {
		return ceiling
	}
	delay := base << shift
	if delay > ceiling || delay <= 0 {
		return ceiling
	}
	return delay
}
