package app

import (
	"net/http"

	"github.com/juju/clock"

	"traceview/internal/client"
	"traceview/internal/config"
	"traceview/internal/live"
	"traceview/internal/logging"
	"traceview/internal/stream"
	"traceview/internal/types"
)

// LiveSession wires the push-stream subscription to the buffer reconciler
// and buffers cross-goroutine signals for the UI to drain on its tick.
type LiveSession struct {
	Client     *client.Client
	Reconciler *live.Reconciler
	Conn       *stream.Conn

	growth chan int
	errs   chan error
}

// StartLive opens the subscription. Stream callbacks run on the stream
// goroutine and must stay non-blocking, so they only notify the reconciler
// and push onto buffered channels.
func StartLive(cfg config.Settings, api *client.Client, log logging.Logger) *LiveSession {
	s := &LiveSession{
		Client: api,
		growth: make(chan int, 64),
		errs:   make(chan error, 8),
	}
	s.Reconciler = live.NewReconciler(api, clock.WallClock, log, live.ReconcilerOptions{
		Debounce:    cfg.Live.DebounceWindow(),
		Throttle:    cfg.Live.ThrottleInterval(),
		BufferLimit: cfg.Live.BufferLimit(),
		OnGrowth: func(added int) {
			select {
			case s.growth <- added:
			default:
			}
		},
	})

	header := http.Header{}
	if api.APIKey() != "" {
		header.Set("x-api-key", api.APIKey())
	}
	s.Conn = stream.Subscribe(api.StreamURL("", ""), stream.Handlers{
		OnSpan: func(event types.SpanEvent) {
			s.Reconciler.Notify(event.TraceID)
		},
		OnError: func(err error) {
			select {
			case s.errs <- err:
			default:
			}
		},
	}, stream.Options{
		BaseDelay:         cfg.Live.ReconnectBaseDelay(),
		MaxBackoff:        cfg.Live.MaxBackoff(),
		ReopenDelay:       cfg.Live.TerminateReopenDelay(),
		InactivityTimeout: cfg.Live.InactivityTimeout(),
		MaxAttempts:       cfg.Live.MaxAttempts(),
		Header:            header,
	}, nil, nil, log)
	return s
}

// DrainGrowth returns the summed growth reported since the last drain.
func (s *LiveSession) DrainGrowth() int {
	total := 0
	for {
		select {
		case n := <-s.growth:
			total += n
		default:
			return total
		}
	}
}

// DrainError returns one pending stream error, or nil.
func (s *LiveSession) DrainError() error {
	select {
	case err := <-s.errs:
		return err
	default:
		return nil
	}
}

// ConnState snapshots the subscription state for the status indicator.
func (s *LiveSession) ConnState() types.ConnState {
	return s.Conn.State()
}

func (s *LiveSession) Close() {
	s.Conn.Unsubscribe()
	s.Reconciler.Close()
}
