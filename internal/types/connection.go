package types

import "time"

// ConnPhase is the lifecycle phase of the push-stream subscription.
type ConnPhase string

const (
	ConnIdle         ConnPhase = "idle"
	ConnConnecting   ConnPhase = "connecting"
	ConnOpen         ConnPhase = "open"
	ConnReconnecting ConnPhase = "reconnecting"
	ConnClosed       ConnPhase = "closed"
)

// ConnState is a snapshot of the subscription. Attempts only grows across
// failed connection attempts; it resets to zero on a successful open and on
// a server terminate event.
type ConnState struct {
	Phase        ConnPhase
	Attempts     int
	LastOpenedAt time.Time
}
