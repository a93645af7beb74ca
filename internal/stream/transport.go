package stream

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Event is one wire event off the push stream. Type is the SSE event name
// ("span", "terminate"); a comment/keep-alive line surfaces as an Event
// with an empty Type and no Data so the caller can reset its inactivity
// watchdog without processing a payload.
type Event struct {
	Type string
	Data []byte
}

// EventReader yields events from one open connection. Next blocks until an
// event arrives or the connection dies; Close releases the connection and
// unblocks a pending Next.
type EventReader interface {
	Next() (Event, error)
	Close() error
}

// Transport opens one-way push connections. The real implementation speaks
// SSE over HTTP; tests inject a deterministic fake.
type Transport interface {
	Open(ctx context.Context, url string, header http.Header) (EventReader, error)
}

// HTTPTransport is the production SSE transport.
type HTTPTransport struct {
	Client *http.Client
}

func (t *HTTPTransport) Open(ctx context.Context, url string, header http.Header) (EventReader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	httpClient := t.Client
	if httpClient == nil {
		// No global timeout: the connection is meant to stay open.
		httpClient = &http.Client{}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("stream open: unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseReader{resp: resp, scanner: scanner}, nil
}

type sseReader struct {
	resp      *http.Response
	scanner   *bufio.Scanner
	eventType string
	dataLines []string
}

func (r *sseReader) Next() (Event, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if len(r.dataLines) == 0 && r.eventType == "" {
				continue
			}
			event := Event{
				Type: r.eventType,
				Data: []byte(strings.Join(r.dataLines, "\n")),
			}
			r.eventType = ""
			r.dataLines = r.dataLines[:0]
			return event, nil
		}
		if strings.HasPrefix(line, ":") {
			// Comment line; the server uses these as keep-alives.
			return Event{}, nil
		}
		if strings.HasPrefix(line, "event:") {
			r.eventType = strings.TrimSpace(line[len("event:"):])
			continue
		}
		if strings.HasPrefix(line, "data:") {
			r.dataLines = append(r.dataLines, strings.TrimSpace(line[len("data:"):]))
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, fmt.Errorf("stream closed by server")
}

func (r *sseReader) Close() error {
	return r.resp.Body.Close()
}

// streamDialTimeout bounds how long Open may wait for response headers.
const streamDialTimeout = 15 * time.Second

// NewHTTPTransport returns a transport whose underlying client bounds the
// dial and TLS handshake but leaves the response body unbounded.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{
		Client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: streamDialTimeout,
			},
		},
	}
}
