package live

import (
	"testing"
	"time"

	"traceview/internal/types"
)

func mkGroup(id string, n int, start time.Time) types.TraceGroup {
	return types.TraceGroup{
		ID:        id,
		Blocks:    mkBlocks(id, n, start),
		StartTime: start,
	}
}

func TestBufferReplaceDelta(t *testing.T) {
	b := newBuffer(100)
	base := time.Unix(1000, 0)

	if got := b.replace(mkGroup("a", 3, base)); got != 3 {
		t.Fatalf("first replace delta = %d, want 3", got)
	}
	if got := b.replace(mkGroup("a", 5, base)); got != 2 {
		t.Fatalf("grow replace delta = %d, want 2", got)
	}
	if got := b.replace(mkGroup("a", 2, base)); got != -3 {
		t.Fatalf("shrink replace delta = %d, want -3", got)
	}
	if got := b.size(); got != 2 {
		t.Fatalf("size = %d, want 2", got)
	}
}

func TestBufferReplaceEmptyRemovesGroup(t *testing.T) {
	b := newBuffer(100)
	base := time.Unix(1000, 0)
	b.replace(mkGroup("a", 3, base))

	if got := b.replace(types.TraceGroup{ID: "a"}); got != -3 {
		t.Fatalf("empty replace delta = %d, want -3", got)
	}
	if _, ok := b.group("a"); ok {
		t.Fatalf("group survived empty replace")
	}
	if got := b.size(); got != 0 {
		t.Fatalf("size = %d, want 0", got)
	}
}

func TestBufferEvictOldestFirst(t *testing.T) {
	b := newBuffer(10)
	b.replace(mkGroup("c", 4, time.Unix(3000, 0)))
	b.replace(mkGroup("a", 4, time.Unix(1000, 0)))
	b.replace(mkGroup("b", 4, time.Unix(2000, 0)))

	dropped := b.evict()
	if len(dropped) != 1 || dropped[0] != "a" {
		t.Fatalf("dropped = %v, want [a]", dropped)
	}
	if got := b.size(); got != 8 {
		t.Fatalf("size = %d, want 8", got)
	}
	// Under the limit now; a second evict is a no-op.
	if dropped := b.evict(); dropped != nil {
		t.Fatalf("second evict dropped %v", dropped)
	}
}

func TestBufferEvictCascades(t *testing.T) {
	b := newBuffer(5)
	b.replace(mkGroup("a", 4, time.Unix(1000, 0)))
	b.replace(mkGroup("b", 4, time.Unix(2000, 0)))
	b.replace(mkGroup("c", 4, time.Unix(3000, 0)))

	dropped := b.evict()
	if len(dropped) != 2 || dropped[0] != "a" || dropped[1] != "b" {
		t.Fatalf("dropped = %v, want [a b]", dropped)
	}
	if _, ok := b.group("c"); !ok {
		t.Fatalf("newest group was evicted")
	}
}

func TestBufferEvictTiesBreakByID(t *testing.T) {
	b := newBuffer(3)
	same := time.Unix(1000, 0)
	b.replace(mkGroup("zz", 2, same))
	b.replace(mkGroup("aa", 2, same))

	dropped := b.evict()
	if len(dropped) != 1 || dropped[0] != "aa" {
		t.Fatalf("dropped = %v, want [aa]", dropped)
	}
}

func TestBufferFlattenMemoized(t *testing.T) {
	b := newBuffer(100)
	b.replace(mkGroup("b", 2, time.Unix(2000, 0)))
	b.replace(mkGroup("a", 2, time.Unix(1000, 0)))

	first := b.flatten()
	if len(first) != 4 {
		t.Fatalf("flatten returned %d blocks, want 4", len(first))
	}
	if first[0].TraceID != "a" || first[3].TraceID != "b" {
		t.Fatalf("flatten order wrong: %s .. %s", first[0].TraceID, first[3].TraceID)
	}
	if second := b.flatten(); &second[0] != &first[0] {
		t.Fatalf("unchanged buffer rebuilt its flattened view")
	}

	b.replace(mkGroup("a", 3, time.Unix(1000, 0)))
	if got := len(b.flatten()); got != 5 {
		t.Fatalf("flatten after replace returned %d blocks, want 5", got)
	}
}

func TestBufferClear(t *testing.T) {
	b := newBuffer(100)
	b.replace(mkGroup("a", 3, time.Unix(1000, 0)))
	b.clear()
	if got := b.size(); got != 0 {
		t.Fatalf("size after clear = %d, want 0", got)
	}
	if got := len(b.flatten()); got != 0 {
		t.Fatalf("flatten after clear returned %d blocks", got)
	}
}
