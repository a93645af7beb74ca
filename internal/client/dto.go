package client

import "traceview/internal/types"

type messagesResponse struct {
	Messages []types.Block    `json:"messages"`
	Metadata messagesMetadata `json:"metadata"`
}

type messagesMetadata struct {
	TraceID    string `json:"trace_id,omitempty"`
	SpanCount  int    `json:"span_count,omitempty"`
	TotalCount int    `json:"total_count,omitempty"`
}

type feedResponse struct {
	Data       []types.FeedItem `json:"data"`
	Pagination feedPagination   `json:"pagination"`
}

type feedPagination struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

type tracesResponse struct {
	Data       []types.TraceSummary `json:"data"`
	Pagination tracesPagination     `json:"pagination"`
}

type tracesPagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"total_items"`
}
