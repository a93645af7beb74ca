package types

import "time"

// FeedItem is one entry of the flat project-wide feed (no per-trace
// grouping). Identity for dedupe is SpanID plus EntryIndex, because a span
// can contribute several feed entries.
type FeedItem struct {
	TraceID    string    `json:"trace_id"`
	SpanID     string    `json:"span_id"`
	EntryIndex int       `json:"entry_index"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// Key returns the identity used to drop duplicates when windowed catch-up
// re-reads a time range.
func (i FeedItem) Key() FeedItemKey {
	return FeedItemKey{SpanID: i.SpanID, EntryIndex: i.EntryIndex}
}

type FeedItemKey struct {
	SpanID     string
	EntryIndex int
}
