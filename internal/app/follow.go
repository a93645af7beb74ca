package app

// FollowTracker decides whether the transcript should track new arrivals
// or stay where the user scrolled to. Intent (autoFollow) is tracked
// separately from the observed position (atBottom): being at the bottom
// re-enables following, an intentional upward scroll pauses it.
type FollowTracker struct {
	autoFollow bool
	pendingNew int
	wheelNoise int
}

func NewFollowTracker(wheelNoise int) *FollowTracker {
	if wheelNoise < 0 {
		wheelNoise = 0
	}
	return &FollowTracker{autoFollow: true, wheelNoise: wheelNoise}
}

func (t *FollowTracker) Following() bool { return t.autoFollow }

// PendingNew is the badge count of items that arrived while not following.
func (t *FollowTracker) PendingNew() int { return t.pendingNew }

// HandleScroll observes one user scroll. delta is lines moved, negative
// for upward. Returns true when the follow intent changed.
func (t *FollowTracker) HandleScroll(delta int, atBottom bool) bool {
	if atBottom {
		changed := !t.autoFollow
		t.autoFollow = true
		t.pendingNew = 0
		return changed
	}
	if delta < -t.wheelNoise && t.autoFollow {
		t.autoFollow = false
		return true
	}
	return false
}

// ItemsAdded records reconciler growth. Returns true when the caller
// should scroll to the latest content; because rendered heights may not be
// known yet, the scroll is expected to be issued twice (immediately and
// after the next paint).
func (t *FollowTracker) ItemsAdded(n int) bool {
	if n <= 0 {
		return false
	}
	if t.autoFollow {
		return true
	}
	t.pendingNew += n
	return false
}

// JumpToLatest always re-enables following and clears the badge.
func (t *FollowTracker) JumpToLatest() {
	t.autoFollow = true
	t.pendingNew = 0
}

// Pause disables following without touching the badge; bound to the
// explicit follow-toggle key.
func (t *FollowTracker) Pause() {
	t.autoFollow = false
}

// Reset is the state after a buffer clear: follow on, badge empty.
func (t *FollowTracker) Reset() {
	t.autoFollow = true
	t.pendingNew = 0
}

// SetFollowing restores a persisted preference.
func (t *FollowTracker) SetFollowing(following bool) {
	t.autoFollow = following
	if following {
		t.pendingNew = 0
	}
}
