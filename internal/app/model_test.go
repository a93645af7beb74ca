package app

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/juju/clock"

	"traceview/internal/live"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	session := &LiveSession{
		Reconciler: live.NewReconciler(nil, clock.WallClock, nil, live.ReconcilerOptions{}),
		growth:     make(chan int, 4),
		errs:       make(chan error, 1),
	}
	t.Cleanup(session.Reconciler.Close)

	vp := viewport.New(80, 10)
	m := Model{
		session:         session,
		viewport:        vp,
		follow:          NewFollowTracker(1),
		bottomThreshold: 2,
		ready:           true,
	}
	m.viewport.SetContent(strings.TrimRight(strings.Repeat("line\n", 100), "\n"))
	m.viewport.GotoBottom()
	return m
}

func wheel(m Model, button tea.MouseButton) Model {
	next, _ := m.updateMouse(tea.MouseMsg{Button: button, Action: tea.MouseActionPress})
	return next.(Model)
}

func TestWheelUpPausesFollow(t *testing.T) {
	m := newTestModel(t)
	if !m.follow.Following() {
		t.Fatalf("expected follow to start enabled")
	}

	m = wheel(m, tea.MouseButtonWheelUp)
	if m.follow.Following() {
		t.Fatalf("expected follow to pause after scrolling up")
	}
	if m.status != "follow: paused" {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestWheelDownBackToBottomResumesFollow(t *testing.T) {
	m := newTestModel(t)
	m = wheel(m, tea.MouseButtonWheelUp)
	if m.follow.Following() {
		t.Fatalf("expected follow paused")
	}

	m = wheel(m, tea.MouseButtonWheelDown)
	if !m.follow.Following() {
		t.Fatalf("expected follow to resume at the bottom")
	}
	if m.status != "follow: on" {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestNearBottomHonorsThreshold(t *testing.T) {
	m := newTestModel(t)
	if !m.nearBottom() {
		t.Fatalf("expected bottom position to count as near bottom")
	}

	m.viewport.LineUp(2)
	if !m.nearBottom() {
		t.Fatalf("expected a position inside the threshold to count as near bottom")
	}
	m.viewport.LineUp(1)
	if m.nearBottom() {
		t.Fatalf("expected a position past the threshold to count as scrolled away")
	}
}

func TestGrowthWhileFollowingIssuesSecondScroll(t *testing.T) {
	m := newTestModel(t)
	m.session.growth <- 3
	// A growth report always rides on a buffer change; Clear is the
	// simplest way to move the version without running a fetch cycle.
	m.session.Reconciler.Clear()

	m.consumeTick()
	if !m.scrollAgain {
		t.Fatalf("expected a deferred second scroll after growth")
	}

	// The next tick with no buffer change issues the follow-up scroll.
	m.consumeTick()
	if m.scrollAgain {
		t.Fatalf("expected the deferred scroll to be consumed")
	}
	if !m.viewport.AtBottom() {
		t.Fatalf("expected viewport pinned to the bottom while following")
	}
}

func TestGrowthWhilePausedFeedsBadge(t *testing.T) {
	m := newTestModel(t)
	m = wheel(m, tea.MouseButtonWheelUp)

	m.session.growth <- 2
	m.session.growth <- 3
	m.consumeTick()

	if m.scrollAgain {
		t.Fatalf("paused model scheduled a scroll")
	}
	if got := m.follow.PendingNew(); got != 5 {
		t.Fatalf("badge = %d, want 5", got)
	}
}
