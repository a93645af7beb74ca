package app

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/atotto/clipboard"
)

func TestCopyPrefersSystemClipboard(t *testing.T) {
	defer restoreClipboardHooks()
	systemCalls := 0
	oscCalls := 0
	clipboardWriteAll = func(string) error { systemCalls++; return nil }
	clipboardWriteOSC52 = func(string) error { oscCalls++; return nil }

	if err := copyTextToClipboard("trace-id"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if systemCalls != 1 || oscCalls != 0 {
		t.Fatalf("system=%d osc=%d, want 1/0", systemCalls, oscCalls)
	}
}

func TestCopyFallsBackToOSC52(t *testing.T) {
	defer restoreClipboardHooks()
	clipboardWriteAll = func(string) error { return errors.New("no display") }
	var got string
	clipboardWriteOSC52 = func(text string) error { got = text; return nil }

	if err := copyTextToClipboard("trace-id"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if got != "trace-id" {
		t.Fatalf("OSC52 received %q", got)
	}
}

func TestCopyReportsBothFailures(t *testing.T) {
	defer restoreClipboardHooks()
	clipboardWriteAll = func(string) error { return errors.New("no display") }
	clipboardWriteOSC52 = func(string) error { return errors.New("no tty") }

	err := copyTextToClipboard("trace-id")
	if err == nil {
		t.Fatalf("expected error when both paths fail")
	}
	if !strings.Contains(err.Error(), "no display") || !strings.Contains(err.Error(), "no tty") {
		t.Fatalf("error omits a cause: %v", err)
	}
}

func restoreClipboardHooks() {
	clipboardWriteAll = clipboard.WriteAll
	clipboardWriteOSC52 = writeOSC52Clipboard
}

func TestWriteOSC52Sequence(t *testing.T) {
	t.Setenv("TMUX", "")
	t.Setenv("TERM", "xterm-256color")

	var buf strings.Builder
	if err := writeOSC52Sequence(&buf, "hello"); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "\x1b]52;") {
		t.Fatalf("output missing OSC52 introducer: %q", out)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte("hello"))
	if !strings.Contains(out, encoded) {
		t.Fatalf("output missing base64 payload %q: %q", encoded, out)
	}
}

func TestShouldAttemptOSC52(t *testing.T) {
	t.Setenv("TERM", "")
	if shouldAttemptOSC52() {
		t.Fatalf("attempted OSC52 with no TERM")
	}
	t.Setenv("TERM", "dumb")
	if shouldAttemptOSC52() {
		t.Fatalf("attempted OSC52 on a dumb terminal")
	}
	t.Setenv("TERM", "xterm-256color")
	if !shouldAttemptOSC52() {
		t.Fatalf("refused OSC52 on a capable terminal")
	}
}
