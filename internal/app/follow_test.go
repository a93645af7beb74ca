package app

import "testing"

func TestFollowStartsEnabled(t *testing.T) {
	tracker := NewFollowTracker(1)
	if !tracker.Following() {
		t.Fatalf("new tracker not following")
	}
	if !tracker.ItemsAdded(3) {
		t.Fatalf("following tracker did not request scroll")
	}
	if tracker.PendingNew() != 0 {
		t.Fatalf("badge = %d while following, want 0", tracker.PendingNew())
	}
}

func TestUpwardScrollPausesFollow(t *testing.T) {
	tracker := NewFollowTracker(1)

	if !tracker.HandleScroll(-3, false) {
		t.Fatalf("upward scroll did not change follow intent")
	}
	if tracker.Following() {
		t.Fatalf("still following after upward scroll")
	}
	// Further upward scrolls are not a change.
	if tracker.HandleScroll(-3, false) {
		t.Fatalf("second upward scroll reported a change")
	}
}

func TestWheelNoiseBelowThresholdIgnored(t *testing.T) {
	tracker := NewFollowTracker(2)

	if tracker.HandleScroll(-1, false) {
		t.Fatalf("noise-level scroll changed follow intent")
	}
	if !tracker.Following() {
		t.Fatalf("noise-level scroll paused following")
	}
	if !tracker.HandleScroll(-3, false) {
		t.Fatalf("above-threshold scroll did not pause")
	}
}

func TestScrollBackToBottomResumesFollow(t *testing.T) {
	tracker := NewFollowTracker(1)
	tracker.HandleScroll(-5, false)
	tracker.ItemsAdded(4)
	if tracker.PendingNew() != 4 {
		t.Fatalf("badge = %d, want 4", tracker.PendingNew())
	}

	if !tracker.HandleScroll(3, true) {
		t.Fatalf("reaching the bottom did not change follow intent")
	}
	if !tracker.Following() {
		t.Fatalf("not following after reaching the bottom")
	}
	if tracker.PendingNew() != 0 {
		t.Fatalf("badge = %d after reaching bottom, want 0", tracker.PendingNew())
	}
}

func TestBadgeAccumulatesWhilePaused(t *testing.T) {
	tracker := NewFollowTracker(1)
	tracker.Pause()

	if tracker.ItemsAdded(2) {
		t.Fatalf("paused tracker requested scroll")
	}
	tracker.ItemsAdded(3)
	if tracker.PendingNew() != 5 {
		t.Fatalf("badge = %d, want 5", tracker.PendingNew())
	}
	if tracker.ItemsAdded(0) {
		t.Fatalf("zero growth requested scroll")
	}
	if tracker.PendingNew() != 5 {
		t.Fatalf("zero growth changed badge to %d", tracker.PendingNew())
	}
}

func TestJumpToLatestClearsBadge(t *testing.T) {
	tracker := NewFollowTracker(1)
	tracker.Pause()
	tracker.ItemsAdded(7)

	tracker.JumpToLatest()
	if !tracker.Following() || tracker.PendingNew() != 0 {
		t.Fatalf("jump to latest left following=%v badge=%d", tracker.Following(), tracker.PendingNew())
	}
}

func TestResetAfterClear(t *testing.T) {
	tracker := NewFollowTracker(1)
	tracker.Pause()
	tracker.ItemsAdded(2)

	tracker.Reset()
	if !tracker.Following() || tracker.PendingNew() != 0 {
		t.Fatalf("reset left following=%v badge=%d", tracker.Following(), tracker.PendingNew())
	}
}

func TestSetFollowingRestoresPreference(t *testing.T) {
	tracker := NewFollowTracker(1)
	tracker.SetFollowing(false)
	if tracker.Following() {
		t.Fatalf("restored paused preference ignored")
	}
	tracker.ItemsAdded(1)
	tracker.SetFollowing(true)
	if tracker.PendingNew() != 0 {
		t.Fatalf("badge = %d after re-enabling follow, want 0", tracker.PendingNew())
	}
}
