package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func openTestStream(t *testing.T, body string, header http.Header) EventReader {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q, want text/event-stream", got)
		}
		if got := r.Header.Get("x-api-key"); header != nil && got != header.Get("x-api-key") {
			t.Errorf("x-api-key = %q, want %q", got, header.Get("x-api-key"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	transport := NewHTTPTransport()
	reader, err := transport.Open(context.Background(), server.URL, header)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { reader.Close() })
	return reader
}

func TestSSEReaderParsesNamedEvents(t *testing.T) {
	header := http.Header{}
	header.Set("x-api-key", "secret")
	reader := openTestStream(t, "event: span\ndata: {\"trace_id\":\"t1\"}\n\nevent: terminate\ndata: \n\n", header)

	event, err := reader.Next()
	if err != nil {
		t.Fatalf("first event: %v", err)
	}
	if event.Type != "span" {
		t.Fatalf("first event type = %q, want span", event.Type)
	}
	if string(event.Data) != `{"trace_id":"t1"}` {
		t.Fatalf("first event data = %q", event.Data)
	}

	event, err = reader.Next()
	if err != nil {
		t.Fatalf("second event: %v", err)
	}
	if event.Type != "terminate" {
		t.Fatalf("second event type = %q, want terminate", event.Type)
	}
}

func TestSSEReaderSurfacesKeepAliveComments(t *testing.T) {
	reader := openTestStream(t, ": keep-alive\n\nevent: span\ndata: {\"trace_id\":\"t2\"}\n\n", nil)

	event, err := reader.Next()
	if err != nil {
		t.Fatalf("keep-alive: %v", err)
	}
	if event.Type != "" || len(event.Data) != 0 {
		t.Fatalf("keep-alive surfaced as %+v, want empty event", event)
	}

	event, err = reader.Next()
	if err != nil {
		t.Fatalf("span after keep-alive: %v", err)
	}
	if event.Type != "span" {
		t.Fatalf("event type = %q, want span", event.Type)
	}
}

func TestSSEReaderJoinsMultiLineData(t *testing.T) {
	reader := openTestStream(t, "event: span\ndata: line one\ndata: line two\n\n", nil)

	event, err := reader.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if string(event.Data) != "line one\nline two" {
		t.Fatalf("data = %q", event.Data)
	}
}

func TestSSEReaderEndOfStream(t *testing.T) {
	reader := openTestStream(t, "event: span\ndata: {\"trace_id\":\"t3\"}\n\n", nil)

	if _, err := reader.Next(); err != nil {
		t.Fatalf("first event: %v", err)
	}
	if _, err := reader.Next(); err == nil {
		t.Fatalf("expected error once the server closes the stream")
	}
}

func TestOpenRejectsNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	transport := NewHTTPTransport()
	if _, err := transport.Open(context.Background(), server.URL, nil); err == nil {
		t.Fatalf("expected error for status 403")
	}
}
