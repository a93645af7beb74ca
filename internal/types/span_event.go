package types

// SpanEvent is the change notification carried by the push stream. It is a
// pointer to what changed, never the payload itself; the authoritative data
// is always re-fetched.
type SpanEvent struct {
	ProjectID string `json:"project_id,omitempty"`
	TraceID   string `json:"trace_id"`
	SpanID    string `json:"span_id"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}
