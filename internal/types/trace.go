package types

import "time"

// Block is one flattened conversation entry (message turn, tool call,
// reasoning step) belonging to a trace, in backend-canonical order.
// Blocks are treated as immutable values once received.
type Block struct {
	EntryType    string    `json:"entry_type"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	TraceID      string    `json:"trace_id"`
	SpanID       string    `json:"span_id"`
	SessionID    string    `json:"session_id,omitempty"`
	MessageIndex int       `json:"message_index"`
	EntryIndex   int       `json:"entry_index"`
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model,omitempty"`
	Provider     string    `json:"provider,omitempty"`
}

// TraceGroup is one trace's ordered content. Blocks hold the exact order
// returned by the last successful fetch; the client never re-sorts within
// a group.
type TraceGroup struct {
	ID        string
	Blocks    []Block
	StartTime time.Time
}

// TraceSummary is one row of the recent-traces listing.
type TraceSummary struct {
	TraceID   string    `json:"trace_id"`
	Name      string    `json:"name,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	StartTime time.Time `json:"start_time"`
	SpanCount int       `json:"span_count,omitempty"`
}
