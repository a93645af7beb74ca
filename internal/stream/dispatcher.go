package stream

import (
	"encoding/json"

	"traceview/internal/logging"
	"traceview/internal/types"
)

// Wire event names emitted by the trace server.
const (
	eventTypeSpan      = "span"
	eventTypeTerminate = "terminate"
)

// Dispatcher translates named wire events into typed callbacks. A malformed
// payload is logged and dropped; one bad message must not take down the
// stream. Inactivity tracking is not its concern: the connection resets the
// watchdog for every event before dispatching.
type Dispatcher struct {
	log         logging.Logger
	onSpan      func(types.SpanEvent)
	onTerminate func()
}

func NewDispatcher(log logging.Logger, onSpan func(types.SpanEvent), onTerminate func()) *Dispatcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Dispatcher{log: log, onSpan: onSpan, onTerminate: onTerminate}
}

// Dispatch routes one event. Returns true when the event was a terminate
// signal so the connection can start its graceful reopen.
func (d *Dispatcher) Dispatch(event Event) (terminated bool) {
	switch event.Type {
	case eventTypeSpan:
		var span types.SpanEvent
		if err := json.Unmarshal(event.Data, &span); err != nil {
			d.log.Warn("dropping malformed span event", logging.F("err", err))
			return false
		}
		if span.TraceID == "" {
			d.log.Warn("dropping span event without trace id")
			return false
		}
		if d.onSpan != nil {
			d.onSpan(span)
		}
		return false
	case eventTypeTerminate:
		if d.onTerminate != nil {
			d.onTerminate()
		}
		return true
	default:
		// Keep-alive or an event type this client does not know. Either
		// way it only matters for inactivity tracking.
		return false
	}
}
