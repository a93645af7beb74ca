package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"traceview/internal/types"
)

// Client talks to the trace server's REST surface. It is the external
// data-retrieval collaborator for the live layer: reconciliation cycles
// call TraceMessages and FeedMessages directly, with no retry of their own.
type Client struct {
	baseURL   string
	apiKey    string
	projectID string
	http      *http.Client
	clock     clock.Clock
}

func New(baseURL, apiKey, projectID string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		projectID: projectID,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		clock: clock.WallClock,
	}
}

// StreamURL returns the push-stream endpoint for this project. Optional
// trace/session filters are applied server-side per connection.
func (c *Client) StreamURL(traceID, sessionID string) string {
	u := c.baseURL + c.projectPath("/sse")
	query := url.Values{}
	if traceID != "" {
		query.Set("trace_id", traceID)
	}
	if sessionID != "" {
		query.Set("session_id", sessionID)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// APIKey exposes the configured credential so the stream transport can
// send the same header the REST calls do.
func (c *Client) APIKey() string {
	return c.apiKey
}

// TraceMessages fetches the canonical ordered conversation for one trace.
// The returned order is authoritative; callers must not re-sort it.
func (c *Client) TraceMessages(ctx context.Context, traceID string) ([]types.Block, error) {
	if strings.TrimSpace(traceID) == "" {
		return nil, errors.New("trace id is required")
	}
	var resp messagesResponse
	path := c.projectPath("/traces/" + url.PathEscape(traceID) + "/messages")
	if err := c.doJSON(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// FeedMessages fetches flat feed entries with event time >= since, oldest
// first, capped at limit. Used by windowed catch-up; idempotent read.
func (c *Client) FeedMessages(ctx context.Context, since time.Time, limit int) ([]types.FeedItem, error) {
	query := url.Values{}
	if !since.IsZero() {
		query.Set("start_time", since.UTC().Format(time.RFC3339Nano))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := c.projectPath("/feed/messages")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var resp feedResponse
	if err := c.doJSON(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ListTraces fetches recent trace summaries for the initial sidebar fill.
func (c *Client) ListTraces(ctx context.Context, from time.Time, limit int) ([]types.TraceSummary, error) {
	query := url.Values{}
	if !from.IsZero() {
		query.Set("from_timestamp", from.UTC().Format(time.RFC3339Nano))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := c.projectPath("/traces")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var resp tracesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ListTracesWithRetry is the startup-snapshot variant: it tolerates a
// server that is still coming up. Cycle fetches never go through here.
func (c *Client) ListTracesWithRetry(ctx context.Context, from time.Time, limit int) ([]types.TraceSummary, error) {
	var traces []types.TraceSummary
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			var err error
			traces, err = c.ListTraces(ctx, from, limit)
			return err
		},
		IsFatalError: func(err error) bool {
			if apiErr := AsAPIError(err); apiErr != nil {
				// Server answered; retrying will not change the outcome.
				return apiErr.StatusCode < 500
			}
			return ctx.Err() != nil
		},
		Attempts: 5,
		Delay:    500 * time.Millisecond,
		Clock:    c.clock,
		Stop:     ctx.Done(),
	})
	if err != nil {
		return nil, err
	}
	return traces, nil
}

func (c *Client) projectPath(suffix string) string {
	return "/api/v1/project/" + url.PathEscape(c.projectID) + "/otel" + suffix
}

func (c *Client) doJSON(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	type errorPayload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	var payload errorPayload
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	message := payload.Message
	if message == "" {
		message = payload.Error
	}
	if message == "" {
		message = resp.Status
	}
	return &APIError{StatusCode: resp.StatusCode, Code: payload.Code, Message: message}
}

type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("api error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// AsAPIError unwraps err to an APIError, or nil.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
