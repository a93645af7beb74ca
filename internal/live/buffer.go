package live

import (
	"sort"

	"traceview/internal/types"
)

// buffer holds the reconciler's trace groups plus a memoized flattened
// view. Not safe for concurrent use; the reconciler serializes access.
type buffer struct {
	groups map[string]types.TraceGroup
	limit  int
	blocks int

	flat      []types.Block
	flatValid bool
}

func newBuffer(limit int) *buffer {
	return &buffer{
		groups: make(map[string]types.TraceGroup),
		limit:  limit,
	}
}

// replace installs a group wholesale, never merging with the old entry, so
// upstream reordering or dedup is reflected exactly. An empty fetch removes
// the group. Returns the block-count delta.
func (b *buffer) replace(group types.TraceGroup) int {
	old, had := b.groups[group.ID]
	oldCount := 0
	if had {
		oldCount = len(old.Blocks)
	}
	if len(group.Blocks) == 0 {
		if had {
			delete(b.groups, group.ID)
		}
	} else {
		b.groups[group.ID] = group
	}
	b.blocks += len(group.Blocks) - oldCount
	b.flatValid = false
	return len(group.Blocks) - oldCount
}

// evict drops whole groups, oldest start time first, until the total block
// count fits the limit. A group is never truncated.
func (b *buffer) evict() []string {
	if b.limit <= 0 || b.blocks <= b.limit {
		return nil
	}
	ordered := b.sortedGroups()
	var dropped []string
	for _, group := range ordered {
		if b.blocks <= b.limit {
			break
		}
		delete(b.groups, group.ID)
		b.blocks -= len(group.Blocks)
		dropped = append(dropped, group.ID)
	}
	b.flatValid = false
	return dropped
}

// flatten returns all blocks, groups ascending by start time, block order
// within a group untouched. The slice is shared and must be treated as
// read-only by callers.
func (b *buffer) flatten() []types.Block {
	if b.flatValid {
		return b.flat
	}
	flat := make([]types.Block, 0, b.blocks)
	for _, group := range b.sortedGroups() {
		flat = append(flat, group.Blocks...)
	}
	b.flat = flat
	b.flatValid = true
	return b.flat
}

func (b *buffer) sortedGroups() []types.TraceGroup {
	ordered := make([]types.TraceGroup, 0, len(b.groups))
	for _, group := range b.groups {
		ordered = append(ordered, group)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].StartTime.Equal(ordered[j].StartTime) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].StartTime.Before(ordered[j].StartTime)
	})
	return ordered
}

func (b *buffer) clear() {
	b.groups = make(map[string]types.TraceGroup)
	b.blocks = 0
	b.flat = nil
	b.flatValid = false
}

func (b *buffer) size() int { return b.blocks }

func (b *buffer) group(id string) (types.TraceGroup, bool) {
	group, ok := b.groups[id]
	return group, ok
}
